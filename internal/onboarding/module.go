// Package onboarding tracks the first-run checklist of new members.
package onboarding

import (
	apphttp "tenant_auth_backend/internal/http"
	"tenant_auth_backend/internal/onboarding/handler"
	"tenant_auth_backend/internal/onboarding/repository"
	"tenant_auth_backend/internal/onboarding/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool) *Module {
	svc := service.New(repository.New(pool))
	return &Module{handler: handler.New(svc), service: svc}
}

func (m *Module) Name() string {
	return "onboarding"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
