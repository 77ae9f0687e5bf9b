// Package organization provides the organization bounded context module.
package organization

import (
	apphttp "tenant_auth_backend/internal/http"
	"tenant_auth_backend/internal/organization/domain"
	"tenant_auth_backend/internal/organization/handler"
	"tenant_auth_backend/internal/organization/repository"
	"tenant_auth_backend/internal/organization/service"
	"tenant_auth_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, tiers domain.TierMatrix, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), tiers)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string {
	return "organization"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
