package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("profile not found")

// PreferenceDoc is the stored form of preferences; nil fields fall back to defaults.
type PreferenceDoc struct {
	Language           *string `json:"language,omitempty"`
	Timezone           *string `json:"timezone,omitempty"`
	EmailNotifications *bool   `json:"emailNotifications,omitempty"`
	InAppNotifications *bool   `json:"inAppNotifications,omitempty"`
}

// Profile is the per-organization profile of a user.
type Profile struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	FirstName      string
	LastName       string
	Phone          string
	JobTitle       string
	AvatarKey      *string
	Preferences    PreferenceDoc
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const selectProfileQuery = `
	SELECT user_id, organization_id, first_name, last_name, phone, job_title, avatar_key, preferences, created_at, updated_at
	FROM tenant_user_profiles
	WHERE user_id = $1 AND organization_id = $2`

// Re-running the seed keeps values already set on the row.
const upsertProfileQuery = `
	INSERT INTO tenant_user_profiles (user_id, organization_id, first_name, last_name, phone, job_title)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id, organization_id) DO UPDATE SET
	    first_name = COALESCE(NULLIF(tenant_user_profiles.first_name, ''), EXCLUDED.first_name),
	    last_name  = COALESCE(NULLIF(tenant_user_profiles.last_name, ''), EXCLUDED.last_name),
	    phone      = COALESCE(NULLIF(tenant_user_profiles.phone, ''), EXCLUDED.phone),
	    job_title  = COALESCE(NULLIF(tenant_user_profiles.job_title, ''), EXCLUDED.job_title),
	    updated_at = now()
	RETURNING user_id, organization_id, first_name, last_name, phone, job_title, avatar_key, preferences, created_at, updated_at`

const updateProfileQuery = `
	UPDATE tenant_user_profiles
	SET first_name = COALESCE($3, first_name),
	    last_name  = COALESCE($4, last_name),
	    phone      = COALESCE($5, phone),
	    job_title  = COALESCE($6, job_title),
	    updated_at = now()
	WHERE user_id = $1 AND organization_id = $2
	RETURNING user_id, organization_id, first_name, last_name, phone, job_title, avatar_key, preferences, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Upsert(ctx context.Context, p Profile) (Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, upsertProfileQuery,
		p.UserID, p.OrganizationID, p.FirstName, p.LastName, p.Phone, p.JobTitle))
}

func (r *Repository) Get(ctx context.Context, userID, organizationID uuid.UUID) (Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, selectProfileQuery, userID, organizationID))
}

// Update applies the non-nil fields.
func (r *Repository) Update(ctx context.Context, userID, organizationID uuid.UUID, firstName, lastName, phone, jobTitle *string) (Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, updateProfileQuery, userID, organizationID, firstName, lastName, phone, jobTitle))
}

func (r *Repository) UpdatePreferences(ctx context.Context, userID, organizationID uuid.UUID, prefs PreferenceDoc) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenant_user_profiles
		SET preferences = preferences || $3::jsonb, updated_at = now()
		WHERE user_id = $1 AND organization_id = $2
	`, userID, organizationID, prefs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetAvatarKey(ctx context.Context, userID, organizationID uuid.UUID, key *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenant_user_profiles SET avatar_key = $3, updated_at = now()
		WHERE user_id = $1 AND organization_id = $2
	`, userID, organizationID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.UserID,
		&p.OrganizationID,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&p.JobTitle,
		&p.AvatarKey,
		&p.Preferences,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}
