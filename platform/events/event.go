// Package events is the in-process event bus modules use to hand work to each
// other without importing one another.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is implemented by every domain event. Embedding BaseEvent provides
// everything except EventName.
type Event interface {
	EventName() string
	EventID() string
	OccurredAt() time.Time
}

// BaseEvent carries the envelope shared by all events.
type BaseEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() string { return e.ID }

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a sortable id and the current UTC time.
func NewBaseEvent() BaseEvent {
	now := time.Now().UTC()
	return BaseEvent{ID: ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(), Timestamp: now}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to the handlers subscribed under their EventName.
type Bus interface {
	// Publish returns immediately; handler failures are never reported back.
	Publish(ctx context.Context, event Event)
	// PublishSync runs every handler before returning their joined errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
