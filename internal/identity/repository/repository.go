package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenant_auth_backend/internal/identity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const selectUserColumns = `
	SELECT id, email, COALESCE(username, ''), password_hash, password_history,
	       profile, security, verification, mfa, metadata, status, created_at, updated_at
	FROM users`

const getUserByIDQuery = selectUserColumns + ` WHERE id = $1`

const getUserByEmailQuery = selectUserColumns + ` WHERE email = lower($1)`

const listMembershipsQuery = `
	SELECT m.organization_id, m.is_primary, m.joined_at, m.status, m.invited_by,
	       m.job_title, m.department_id, m.team_ids,
	       COALESCE((
	           SELECT jsonb_agg(jsonb_build_object('roleName', r.role_name, 'assignedAt', r.assigned_at) ORDER BY r.assigned_at, r.role_name)
	           FROM membership_roles r
	           WHERE r.membership_id = m.id
	       ), '[]'::jsonb)
	FROM organization_memberships m
	WHERE m.user_id = $1
	ORDER BY m.joined_at`

const insertMembershipQuery = `
	INSERT INTO organization_memberships
	    (id, user_id, organization_id, is_primary, status, joined_at, invited_by, job_title, department_id, team_ids)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const updateMembershipStatusQuery = `
	UPDATE organization_memberships m
	SET status = $3, updated_at = now()
	FROM (
	    SELECT id, status FROM organization_memberships
	    WHERE user_id = $1 AND organization_id = $2
	    FOR UPDATE
	) prev
	WHERE m.id = prev.id
	RETURNING prev.status`

// Repository persists users, memberships and one-time tokens in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts the user with all memberships in one transaction.
func (r *Repository) CreateUser(ctx context.Context, user *identity.User) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	var username *string
	if user.Username != "" {
		username = &user.Username
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, email, username, password_hash, password_history, profile, security, verification, mfa, metadata, status)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, username, user.PasswordHash, nonNilStrings(user.PasswordHistory),
		user.Profile, user.Security, user.Verification, user.MFA, nonNilMap(user.Metadata), string(user.Status),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translateUnique(err)
	}

	for _, m := range user.Organizations {
		if err = insertMembership(ctx, tx, user.ID, m); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (identity.User, error) {
	return r.getUser(ctx, getUserByIDQuery, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (identity.User, error) {
	return r.getUser(ctx, getUserByEmailQuery, strings.TrimSpace(email))
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (identity.User, error) {
	var (
		user   identity.User
		status string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.PasswordHistory,
		&user.Profile,
		&user.Security,
		&user.Verification,
		&user.MFA,
		&user.Metadata,
		&status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.User{}, err
	}
	user.Status = identity.UserStatus(status)

	memberships, err := r.listMemberships(ctx, user.ID)
	if err != nil {
		return identity.User{}, err
	}
	user.Organizations = memberships
	return user, nil
}

func (r *Repository) listMemberships(ctx context.Context, userID uuid.UUID) ([]identity.Membership, error) {
	rows, err := r.pool.Query(ctx, listMembershipsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]identity.Membership, 0, 1)
	for rows.Next() {
		var (
			m      identity.Membership
			status string
		)
		if err := rows.Scan(
			&m.OrganizationID,
			&m.IsPrimary,
			&m.JoinedAt,
			&status,
			&m.InvitedBy,
			&m.JobTitle,
			&m.DepartmentID,
			&m.TeamIDs,
			&m.Roles,
		); err != nil {
			return nil, err
		}
		if m.Status, err = identity.ParseMembershipStatus(status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateSecurity(ctx context.Context, userID uuid.UUID, security identity.Security) error {
	return r.execOne(ctx, `UPDATE users SET security = $2, updated_at = now() WHERE id = $1`, userID, security)
}

// UpdateLastLogin merges the login stamp into the security document.
func (r *Repository) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time, ip string) error {
	return r.execOne(ctx, `
		UPDATE users
		SET security = security || jsonb_build_object('lastLoginAt', $2::timestamptz, 'lastLoginIp', $3::text, 'failedLoginAttempts', 0),
		    updated_at = now()
		WHERE id = $1
	`, userID, at.UTC(), ip)
}

func (r *Repository) MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.execOne(ctx, `
		UPDATE users
		SET verification = jsonb_build_object('emailVerified', true, 'emailVerifiedAt', $2::timestamptz),
		    updated_at = now()
		WHERE id = $1
	`, userID, at.UTC())
}

func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, history []string) error {
	return r.execOne(ctx, `
		UPDATE users
		SET password_hash = $2, password_history = $3,
		    security = security || jsonb_build_object('passwordChangedAt', now()),
		    updated_at = now()
		WHERE id = $1
	`, userID, hash, nonNilStrings(history))
}

func (r *Repository) SaveMFA(ctx context.Context, userID uuid.UUID, mfa identity.MFA) error {
	return r.execOne(ctx, `UPDATE users SET mfa = $2, updated_at = now() WHERE id = $1`, userID, mfa)
}

func (r *Repository) AddMembership(ctx context.Context, userID uuid.UUID, membership identity.Membership) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = insertMembership(ctx, tx, userID, membership); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateMembershipStatus moves the membership to status and returns the
// previous state. The row is kept whatever the new state.
func (r *Repository) UpdateMembershipStatus(ctx context.Context, userID, organizationID uuid.UUID, status identity.MembershipStatus) (identity.MembershipStatus, error) {
	var previous string
	err := r.pool.QueryRow(ctx, updateMembershipStatusQuery, userID, organizationID, string(status)).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return identity.ParseMembershipStatus(previous)
}

func (r *Repository) CreateUserToken(ctx context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_tokens (token_hash, user_id, type, expires_at)
		VALUES ($1, $2, $3, $4)
	`, tokenHash, userID, tokenType, expiresAt)
	return err
}

// GetUserToken returns the owner and expiry of an unused token.
func (r *Repository) GetUserToken(ctx context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error) {
	var (
		userID    uuid.UUID
		expiresAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, expires_at FROM user_tokens
		WHERE token_hash = $1 AND type = $2 AND used_at IS NULL
	`, tokenHash, tokenType).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, time.Time{}, identity.ErrNotFound
	}
	return userID, expiresAt, err
}

func (r *Repository) UseUserToken(ctx context.Context, tokenHash, tokenType string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_tokens SET used_at = now()
		WHERE token_hash = $1 AND type = $2 AND used_at IS NULL
	`, tokenHash, tokenType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrTokenUsed
	}
	return nil
}

func (r *Repository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func insertMembership(ctx context.Context, tx pgx.Tx, userID uuid.UUID, m identity.Membership) error {
	membershipID := uuid.New()
	teamIDs := m.TeamIDs
	if teamIDs == nil {
		teamIDs = []uuid.UUID{}
	}

	if _, err := tx.Exec(ctx, insertMembershipQuery,
		membershipID, userID, m.OrganizationID, m.IsPrimary, string(m.Status), m.JoinedAt,
		m.InvitedBy, m.JobTitle, m.DepartmentID, teamIDs,
	); err != nil {
		return translateUnique(err)
	}

	for _, role := range m.Roles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO membership_roles (membership_id, role_name, assigned_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (membership_id, role_name) DO NOTHING
		`, membershipID, role.RoleName, role.AssignedAt); err != nil {
			return fmt.Errorf("insert role %s: %w", role.RoleName, err)
		}
	}
	return nil
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return identity.ErrEmailTaken
	case strings.Contains(pgErr.ConstraintName, "organization"):
		return identity.ErrMembershipExists
	default:
		return err
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return in
}

var _ identity.Store = (*Repository)(nil)
