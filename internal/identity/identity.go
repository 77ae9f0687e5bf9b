// Package identity provides the identity bounded context: users and their
// organization memberships.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("identity: not found")
	ErrEmailTaken       = errors.New("identity: email already registered")
	ErrMembershipExists = errors.New("identity: membership already exists")
	ErrTokenUsed        = errors.New("identity: token already used")
)

const (
	TokenTypeEmailVerify   = "EMAIL_VERIFY"
	TokenTypePasswordReset = "PASSWORD_RESET"
)

// Store is the persistence contract for users. The pgx repository and the
// in-memory store both satisfy it.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateSecurity(ctx context.Context, userID uuid.UUID, security Security) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time, ip string) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, history []string) error
	SaveMFA(ctx context.Context, userID uuid.UUID, mfa MFA) error

	AddMembership(ctx context.Context, userID uuid.UUID, membership Membership) error
	UpdateMembershipStatus(ctx context.Context, userID, organizationID uuid.UUID, status MembershipStatus) (MembershipStatus, error)

	CreateUserToken(ctx context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error
	GetUserToken(ctx context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error)
	UseUserToken(ctx context.Context, tokenHash, tokenType string) error
}
