// Package http defines what the router needs from the composition root.
package http

import (
	"context"

	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/logger"
	"tenant_auth_backend/platform/metrics"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled in cmd/api and handed to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health nil means the service always reports ready.
	Health HealthChecker
	// Metrics nil disables /metrics and request instrumentation.
	Metrics  *metrics.Metrics
	EventBus events.Bus
	Modules  []Module
}
