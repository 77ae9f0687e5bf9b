package analytics

import (
	"context"
	"fmt"

	"tenant_auth_backend/internal/scheduler"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertEventQuery = `
	INSERT INTO analytics_events (id, name, user_id, organization_id, properties, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING`

// Repository persists analytics events delivered by the worker.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordEvent stores one event. Redelivered events are ignored by id.
func (r *Repository) RecordEvent(ctx context.Context, p scheduler.AnalyticsEventPayload) error {
	userID, err := optionalUUID(p.UserID)
	if err != nil {
		return fmt.Errorf("analytics user id: %w", err)
	}
	orgID, err := optionalUUID(p.OrganizationID)
	if err != nil {
		return fmt.Errorf("analytics organization id: %w", err)
	}
	props := p.Properties
	if props == nil {
		props = map[string]any{}
	}

	if _, err := r.pool.Exec(ctx, insertEventQuery, p.ID, p.Name, userID, orgID, props, p.OccurredAt); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

var _ scheduler.AnalyticsEventHandler = (*Repository)(nil)
