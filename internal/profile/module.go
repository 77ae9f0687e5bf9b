// Package profile provides tenant-scoped user profiles.
package profile

import (
	"tenant_auth_backend/internal/adapters/storage"
	apphttp "tenant_auth_backend/internal/http"
	"tenant_auth_backend/internal/profile/handler"
	"tenant_auth_backend/internal/profile/repository"
	"tenant_auth_backend/internal/profile/service"
	"tenant_auth_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the profile module. store may be nil when object storage is disabled.
func NewModule(pool *pgxpool.Pool, store storage.ObjectStore, phoneRegion string, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), store, phoneRegion)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string {
	return "profile"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
