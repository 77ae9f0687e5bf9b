package repository

import (
	"context"
	"errors"

	"tenant_auth_backend/internal/organization/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("organization not found")
	ErrSlugTaken = errors.New("organization slug already in use")
)

const pgUniqueViolation = "23505"

const selectOrganizationColumns = `
	SELECT id, name, slug, status, allowed_domains, require_invitation, subscription_tier,
	       features, max_users, usage_users, settings, created_at, updated_at
	FROM organizations`

const getOrganizationQuery = selectOrganizationColumns + ` WHERE id = $1`

const listOrganizationsQuery = selectOrganizationColumns + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

// The increment is a single UPDATE so concurrent registrations never lose a count.
const incrementUsersQuery = `
	UPDATE organizations
	SET usage_users = usage_users + 1, updated_at = now()
	WHERE id = $1
	RETURNING usage_users`

const insertOrganizationQuery = `
	INSERT INTO organizations
	    (id, name, slug, status, allowed_domains, require_invitation, subscription_tier, features, max_users, settings)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Organization, error) {
	org, err := scanOrganization(r.pool.QueryRow(ctx, getOrganizationQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Organization{}, ErrNotFound
	}
	return org, err
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.Organization, error) {
	rows, err := r.pool.Query(ctx, listOrganizationsQuery, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Organization, 0, limit)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, org *domain.Organization) error {
	domains := org.AllowedDomains
	if domains == nil {
		domains = []string{}
	}
	features := org.Features
	if features == nil {
		features = map[string]bool{}
	}

	err := r.pool.QueryRow(ctx, insertOrganizationQuery,
		org.ID, org.Name, org.Slug, string(org.Status), domains, org.RequireInvitation,
		string(org.SubscriptionTier), features, org.Limits.MaxUsers, org.Settings,
	).Scan(&org.CreatedAt, &org.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrSlugTaken
	}
	return err
}

// IncrementUsers bumps the user counter and returns the new value.
func (r *Repository) IncrementUsers(ctx context.Context, id uuid.UUID) (int, error) {
	var users int
	err := r.pool.QueryRow(ctx, incrementUsersQuery, id).Scan(&users)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return users, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE organizations SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrganization(row pgx.Row) (domain.Organization, error) {
	var (
		org    domain.Organization
		status string
		tier   string
	)
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&status,
		&org.AllowedDomains,
		&org.RequireInvitation,
		&tier,
		&org.Features,
		&org.Limits.MaxUsers,
		&org.Usage.Users,
		&org.Settings,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return domain.Organization{}, err
	}
	org.Status = domain.Status(status)
	org.SubscriptionTier = domain.Tier(tier)
	return org, nil
}
