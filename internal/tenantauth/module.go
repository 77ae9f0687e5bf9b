// Package tenantauth provides the tenant-scoped authentication module.
package tenantauth

import (
	"tenant_auth_backend/internal/authcore"
	apphttp "tenant_auth_backend/internal/http"
	"tenant_auth_backend/internal/identity/repository"
	"tenant_auth_backend/internal/notification"
	"tenant_auth_backend/internal/notification/inapp"
	onboardingservice "tenant_auth_backend/internal/onboarding/service"
	orgservice "tenant_auth_backend/internal/organization/service"
	profileservice "tenant_auth_backend/internal/profile/service"
	"tenant_auth_backend/internal/tenantauth/handler"
	"tenant_auth_backend/internal/tenantauth/service"
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(svc *service.Service, val *validator.Validator, cookie config.CookieConfig) *Module {
	return &Module{handler: handler.New(svc, val, cookie), service: svc}
}

func (m *Module) Name() string {
	return "tenantauth"
}

func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the public auth routes behind the auth rate limiter,
// plus the session and member management routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("")
	if ctx.AuthRateLimiter != nil {
		public.Use(ctx.AuthRateLimiter.RateLimit())
	}
	m.handler.RegisterPublicRoutes(public)
	m.handler.RegisterProtectedRoutes(ctx.Protected)
}

var (
	_ apphttp.Module        = (*Module)(nil)
	_ handler.TenantAuth    = (*service.Service)(nil)
	_ service.AuthCore      = (*authcore.Service)(nil)
	_ service.Organizations = (*orgservice.Service)(nil)
	_ service.Members       = (*repository.Repository)(nil)
	_ service.Profiles      = (*profileservice.Service)(nil)
	_ service.Onboarding    = (*onboardingservice.Service)(nil)
	_ service.Notifier      = (*notification.Module)(nil)
	_ service.Inbox         = (*inapp.Service)(nil)
)
