package http

import (
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context with its own routes. The router only knows
// this interface; cmd/api decides which modules are mounted.
type Module interface {
	// Name is used in startup logs.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is the set of route groups and shared middleware handed to
// every module.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 with only the general per-IP limiter applied.
	V1 *gin.RouterGroup
	// Protected shares the /api/v1 prefix and requires a valid access token.
	Protected *gin.RouterGroup
	// Admin is /api/v1/admin and requires the platform_admin role, which no
	// organization can grant.
	Admin  *gin.RouterGroup
	Config config.JWTConfig
	// AuthMiddleware is the access token check, for modules that build
	// their own groups.
	AuthMiddleware gin.HandlerFunc
	// AuthRateLimiter is the stricter limiter for credential endpoints.
	// Modules apply it to their public auth routes themselves.
	AuthRateLimiter *httpkit.AuthRateLimiter
}
