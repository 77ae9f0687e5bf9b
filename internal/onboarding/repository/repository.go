package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("onboarding record not found")
	ErrExists   = errors.New("onboarding record already exists")
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type Step struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Record struct {
	UserID         uuid.UUID  `json:"userId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Status         string     `json:"status"`
	Steps          []Step     `json:"steps"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// CompletedSteps counts finished steps.
func (r Record) CompletedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Completed {
			n++
		}
	}
	return n
}

func (r Record) TotalSteps() int {
	return len(r.Steps)
}

const insertRecordQuery = `
	INSERT INTO onboarding_records (user_id, organization_id, status, steps, started_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, organization_id) DO NOTHING`

const selectRecordQuery = `
	SELECT user_id, organization_id, status, steps, started_at, completed_at
	FROM onboarding_records
	WHERE user_id = $1 AND organization_id = $2`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, rec Record) error {
	tag, err := r.pool.Exec(ctx, insertRecordQuery, rec.UserID, rec.OrganizationID, rec.Status, rec.Steps, rec.StartedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, userID, organizationID uuid.UUID) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, selectRecordQuery, userID, organizationID).Scan(
		&rec.UserID, &rec.OrganizationID, &rec.Status, &rec.Steps, &rec.StartedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *Repository) Save(ctx context.Context, rec Record) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE onboarding_records SET status = $3, steps = $4, completed_at = $5
		WHERE user_id = $1 AND organization_id = $2
	`, rec.UserID, rec.OrganizationID, rec.Status, rec.Steps, rec.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
