// Package authcore is the generic authentication core: registration, login,
// sessions, recovery and MFA. Callers specialise it per call with a Config
// carrying a user structure descriptor and lifecycle hooks.
package authcore

import (
	"context"
	"errors"
	"slices"
	"time"

	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/platform/config"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound   = errors.New("authcore: session not found")
	ErrChallengeNotFound = errors.New("authcore: mfa challenge not found")
)

// FieldGroup names a block of the user document the core populates.
type FieldGroup string

const (
	GroupIdentity     FieldGroup = "identity"
	GroupCredentials  FieldGroup = "credentials"
	GroupProfile      FieldGroup = "profile"
	GroupSecurity     FieldGroup = "security"
	GroupVerification FieldGroup = "verification"
	GroupMFA          FieldGroup = "mfa"
	GroupTenant       FieldGroup = "tenant"
)

// UserStructure declares which field groups a caller's users carry.
type UserStructure struct {
	Groups []FieldGroup
}

func (u UserStructure) Has(group FieldGroup) bool {
	return slices.Contains(u.Groups, group)
}

// DefaultUserStructure is a standalone (non-tenant) user.
func DefaultUserStructure() UserStructure {
	return UserStructure{Groups: []FieldGroup{
		GroupIdentity, GroupCredentials, GroupProfile, GroupSecurity, GroupVerification, GroupMFA,
	}}
}

// Options is the request context handed to every hook.
type Options struct {
	TenantID          uuid.UUID      `json:"tenantId"`
	IP                string         `json:"ip,omitempty"`
	UserAgent         string         `json:"userAgent,omitempty"`
	DeviceFingerprint string         `json:"deviceFingerprint,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	// Provisioned marks a registration made by an administrator: no session
	// is opened, and an existing account gains the membership without
	// proving its password.
	Provisioned bool `json:"provisioned,omitempty"`
}

// Hooks are invoked by the core at fixed points. Nil hooks are skipped.
// BeforeRegister, AfterRegister, BeforeLogin and AfterLogin are observers:
// a panic inside them is recovered and logged. EnrichUserData and
// ValidateUser may fail the operation by returning an error.
type Hooks struct {
	BeforeRegister func(ctx context.Context, input RegisterInput, tenantID uuid.UUID, opts Options)
	AfterRegister  func(ctx context.Context, user identity.PublicUser, tokens Tokens, session Session, opts Options)
	BeforeLogin    func(ctx context.Context, creds Credentials, tenantID uuid.UUID, opts Options)
	AfterLogin     func(ctx context.Context, user identity.PublicUser, tokens Tokens, session Session, opts Options)

	// EnrichUserData mutates the user document before it is written.
	EnrichUserData func(ctx context.Context, user *identity.User, opts Options) error
	// SanitizeUserData builds the external representation of a user.
	SanitizeUserData func(user identity.User, opts Options) identity.PublicUser
	// ValidateUser is the login authorization gate.
	ValidateUser func(ctx context.Context, user identity.User, opts Options) error
}

type Config struct {
	UserStructure UserStructure
	Hooks         Hooks
}

type RegisterInput struct {
	Email         string                `validate:"required,email,max=254"`
	Username      string                `validate:"omitempty,min=3,max=64"`
	Password      string                `validate:"required,strongpassword"`
	Profile       identity.Profile      `validate:"-"`
	Organizations []identity.Membership `validate:"-"`
	Metadata      map[string]any        `validate:"-"`
}

type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

type Session struct {
	ID                string    `json:"id"`
	UserID            uuid.UUID `json:"userId"`
	TenantID          uuid.UUID `json:"tenantId"`
	IP                string    `json:"ip,omitempty"`
	UserAgent         string    `json:"userAgent,omitempty"`
	DeviceFingerprint string    `json:"deviceFingerprint,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// MFAChallenge tells the caller a second factor is needed before tokens are issued.
type MFAChallenge struct {
	RequiresMFA bool                     `json:"requiresMfa"`
	ChallengeID string                   `json:"challengeId"`
	Methods     []identity.MFAMethodType `json:"methods"`
	ExpiresAt   time.Time                `json:"expiresAt"`
}

// PendingChallenge is the server-side state behind an MFAChallenge.
type PendingChallenge struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Options   Options   `json:"options"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type RegisterOutput struct {
	User                 identity.PublicUser
	Tokens               Tokens
	Session              Session
	VerificationRequired bool
}

// LoginOutcome holds either an authenticated user with tokens, or a Challenge.
type LoginOutcome struct {
	User             *identity.PublicUser
	Tokens           *Tokens
	Session          *Session
	Challenge        *MFAChallenge
	MFASetupRequired bool
}

func (o LoginOutcome) RequiresMFA() bool {
	return o.Challenge != nil
}

type MFAEnrollment struct {
	MethodID        string `json:"methodId"`
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
	QRCodePNG       []byte `json:"qrCodePng"`
}

// UserStore is the identity persistence the core needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *identity.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (identity.User, error)
	GetUserByEmail(ctx context.Context, email string) (identity.User, error)
	UpdateSecurity(ctx context.Context, userID uuid.UUID, security identity.Security) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string, history []string) error
	SaveMFA(ctx context.Context, userID uuid.UUID, mfa identity.MFA) error
	AddMembership(ctx context.Context, userID uuid.UUID, membership identity.Membership) error
	CreateUserToken(ctx context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error
	GetUserToken(ctx context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error)
	UseUserToken(ctx context.Context, tokenHash, tokenType string) error
}

// SessionStore keeps sessions and the refresh-token index.
type SessionStore interface {
	Save(ctx context.Context, session Session, refreshHash string) error
	Get(ctx context.Context, id string) (Session, error)
	SessionIDForRefresh(ctx context.Context, refreshHash string) (string, error)
	RotateRefresh(ctx context.Context, session Session, oldHash, newHash string) error
	Delete(ctx context.Context, id string) error
}

// AttemptTracker counts failures per key inside a rolling window.
type AttemptTracker interface {
	Failures(ctx context.Context, key string) (int, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

type ChallengeStore interface {
	Put(ctx context.Context, challenge PendingChallenge) error
	Get(ctx context.Context, id string) (PendingChallenge, error)
	Delete(ctx context.Context, id string) error
}

// Settings are the process-wide knobs, read once at construction.
type Settings struct {
	AccessSecret             string
	AccessTTL                time.Duration
	RefreshTTL               time.Duration
	VerifyTokenTTL           time.Duration
	ResetTokenTTL            time.Duration
	RequireEmailVerification bool
	RequireMFA               bool
	MaxLoginAttempts         int
	LockoutWindow            time.Duration
	SessionTimeout           time.Duration
	ChallengeTTL             time.Duration
	MFAIssuer                string
	PasswordHistorySize      int
}

func SettingsFrom(cfg config.AuthCoreConfig) Settings {
	return Settings{
		AccessSecret:             cfg.GetJWTAccessSecret(),
		AccessTTL:                cfg.GetAccessTokenTTL(),
		RefreshTTL:               cfg.GetRefreshTokenTTL(),
		VerifyTokenTTL:           cfg.GetVerifyTokenTTL(),
		ResetTokenTTL:            cfg.GetResetTokenTTL(),
		RequireEmailVerification: cfg.GetRequireEmailVerification(),
		RequireMFA:               cfg.GetRequireMFA(),
		MaxLoginAttempts:         cfg.GetMaxLoginAttempts(),
		LockoutWindow:            cfg.GetLoginLockoutWindow(),
		SessionTimeout:           cfg.GetSessionTimeout(),
		ChallengeTTL:             cfg.GetMFAChallengeTTL(),
		MFAIssuer:                cfg.GetMFAIssuer(),
		PasswordHistorySize:      5,
	}
}
