package identity

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// User is the full persisted identity document, credentials included.
// It never leaves the service boundary; see PublicUser.
type User struct {
	ID              uuid.UUID
	Email           string
	Username        string
	PasswordHash    string
	PasswordHistory []string
	Profile         Profile
	Security        Security
	Verification    Verification
	MFA             MFA
	Metadata        map[string]any
	Organizations   []Membership
	Status          UserStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarKey string `json:"avatarKey,omitempty"`
}

type Security struct {
	FailedLoginAttempts int        `json:"failedLoginAttempts"`
	LockedUntil         *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP         string     `json:"lastLoginIp,omitempty"`
	PasswordChangedAt   *time.Time `json:"passwordChangedAt,omitempty"`
}

type Verification struct {
	EmailVerified   bool       `json:"emailVerified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
}

type MFAMethodType string

const MFAMethodTOTP MFAMethodType = "totp"

type MFAMethod struct {
	ID        string        `json:"id"`
	Type      MFAMethodType `json:"type"`
	Secret    string        `json:"secret"`
	Verified  bool          `json:"verified"`
	CreatedAt time.Time     `json:"createdAt"`
}

type MFA struct {
	Enabled bool        `json:"enabled"`
	Methods []MFAMethod `json:"methods"`
}

// VerifiedMethods returns methods that completed enrollment.
func (m MFA) VerifiedMethods() []MFAMethod {
	out := make([]MFAMethod, 0, len(m.Methods))
	for _, method := range m.Methods {
		if method.Verified {
			out = append(out, method)
		}
	}
	return out
}

// MembershipFor returns the user's membership in organizationID, whatever
// its status.
func (u User) MembershipFor(organizationID uuid.UUID) (Membership, bool) {
	for _, m := range u.Organizations {
		if m.OrganizationID == organizationID {
			return m, true
		}
	}
	return Membership{}, false
}

// MetaPlatformAdmin is the metadata key operators set to grant the platform
// admin role. Registration never copies it from caller input.
const MetaPlatformAdmin = "platformAdmin"

// IsPlatformAdmin reports whether an operator granted the platform role.
func (u User) IsPlatformAdmin() bool {
	granted, _ := u.Metadata[MetaPlatformAdmin].(bool)
	return granted
}

// Clone returns a deep copy so stores and hooks cannot alias each other's state.
func (u User) Clone() User {
	out := u
	out.PasswordHistory = slices.Clone(u.PasswordHistory)
	out.Metadata = maps.Clone(u.Metadata)
	out.MFA.Methods = slices.Clone(u.MFA.Methods)
	out.Organizations = make([]Membership, len(u.Organizations))
	for i, m := range u.Organizations {
		out.Organizations[i] = m.clone()
	}
	return out
}

// PublicUser is the only shape in which a user is handed to callers. It has
// no fields for password hashes, history, security or verification
// internals, or MFA secrets.
type PublicUser struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	Username      string         `json:"username,omitempty"`
	Profile       Profile        `json:"profile"`
	EmailVerified bool           `json:"emailVerified"`
	MFA           PublicMFA      `json:"mfa"`
	Organizations []Membership   `json:"organizations"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Status        UserStatus     `json:"status"`
	LastLoginAt   *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type PublicMFA struct {
	Enabled bool              `json:"enabled"`
	Methods []PublicMFAMethod `json:"methods"`
}

type PublicMFAMethod struct {
	ID        string        `json:"id"`
	Type      MFAMethodType `json:"type"`
	Verified  bool          `json:"verified"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Public projects the user onto PublicUser.
func (u User) Public() PublicUser {
	methods := make([]PublicMFAMethod, 0, len(u.MFA.Methods))
	for _, m := range u.MFA.Methods {
		methods = append(methods, PublicMFAMethod{ID: m.ID, Type: m.Type, Verified: m.Verified, CreatedAt: m.CreatedAt})
	}
	orgs := make([]Membership, len(u.Organizations))
	for i, m := range u.Organizations {
		orgs[i] = m.clone()
	}
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Profile:       u.Profile,
		EmailVerified: u.Verification.EmailVerified,
		MFA:           PublicMFA{Enabled: u.MFA.Enabled, Methods: methods},
		Organizations: orgs,
		Metadata:      maps.Clone(u.Metadata),
		Status:        u.Status,
		LastLoginAt:   u.Security.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

// MembershipFor mirrors User.MembershipFor on the public projection.
func (u PublicUser) MembershipFor(organizationID uuid.UUID) (Membership, bool) {
	for _, m := range u.Organizations {
		if m.OrganizationID == organizationID {
			return m, true
		}
	}
	return Membership{}, false
}
