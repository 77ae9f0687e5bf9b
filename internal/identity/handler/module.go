package handler

import apphttp "tenant_auth_backend/internal/http"

// Module mounts the caller-facing identity routes. It lives next to the
// handler because the identity root package holds the domain types.
type Module struct {
	handler *Handler
}

func NewModule(users UserReader) *Module {
	return &Module{handler: New(users)}
}

func (m *Module) Name() string {
	return "identity"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
