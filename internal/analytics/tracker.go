// Package analytics records product analytics events. Events are queued on
// asynq and persisted by the background worker.
package analytics

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"tenant_auth_backend/internal/scheduler"
	"tenant_auth_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	EventUserRegistered = "tenant_user_registered"
	EventUserLoggedIn   = "tenant_user_logged_in"
)

type Event struct {
	Name           string
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Properties     map[string]any
}

// Tracker records analytics events.
type Tracker interface {
	Track(ctx context.Context, event Event) error
}

// Enqueuer is the subset of the scheduler client used by QueueTracker.
type Enqueuer interface {
	EnqueueAnalyticsEvent(ctx context.Context, payload scheduler.AnalyticsEventPayload) error
}

// QueueTracker hands events to the background worker.
type QueueTracker struct {
	queue Enqueuer
	now   func() time.Time
}

func NewQueueTracker(queue Enqueuer) *QueueTracker {
	return &QueueTracker{queue: queue, now: time.Now}
}

func (t *QueueTracker) Track(ctx context.Context, event Event) error {
	payload, err := toPayload(event, t.now().UTC())
	if err != nil {
		return err
	}
	return t.queue.EnqueueAnalyticsEvent(ctx, payload)
}

// LogTracker writes events to the log. Used when no Redis is configured.
type LogTracker struct {
	log *logger.Logger
}

func NewLogTracker(log *logger.Logger) *LogTracker {
	if log == nil {
		log = logger.Discard()
	}
	return &LogTracker{log: log}
}

func (t *LogTracker) Track(_ context.Context, event Event) error {
	if strings.TrimSpace(event.Name) == "" {
		return fmt.Errorf("analytics: event name required")
	}
	t.log.Info("analytics event",
		"event", event.Name,
		"user_id", event.UserID.String(),
		"organization_id", event.OrganizationID.String(),
		"properties", event.Properties,
	)
	return nil
}

func toPayload(event Event, at time.Time) (scheduler.AnalyticsEventPayload, error) {
	if strings.TrimSpace(event.Name) == "" {
		return scheduler.AnalyticsEventPayload{}, fmt.Errorf("analytics: event name required")
	}
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return scheduler.AnalyticsEventPayload{}, fmt.Errorf("analytics: event id: %w", err)
	}
	payload := scheduler.AnalyticsEventPayload{
		ID:         id.String(),
		Name:       event.Name,
		Properties: event.Properties,
		OccurredAt: at,
	}
	if event.UserID != uuid.Nil {
		payload.UserID = event.UserID.String()
	}
	if event.OrganizationID != uuid.Nil {
		payload.OrganizationID = event.OrganizationID.String()
	}
	return payload, nil
}

var (
	_ Tracker  = (*QueueTracker)(nil)
	_ Tracker  = (*LogTracker)(nil)
	_ Enqueuer = (*scheduler.Client)(nil)
)
