// Package domain holds the organization aggregate and its admission rules.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Acceptance codes handed back to callers verbatim.
const (
	CodeSuspended         = "ORGANIZATION_SUSPENDED"
	CodeDeleted           = "ORGANIZATION_DELETED"
	CodeUserLimitReached  = "USER_LIMIT_REACHED"
	CodeNotFound          = "ORGANIZATION_NOT_FOUND"
	CodeUnsupportedMetric = "UNSUPPORTED_USAGE_METRIC"
)

// MetricUsers is the only usage counter tracked per organization.
const MetricUsers = "users"

type Limits struct {
	MaxUsers int `json:"maxUsers"`
}

type Usage struct {
	Users int `json:"users"`
}

type Settings struct {
	RequireProfileCompletion bool `json:"requireProfileCompletion"`
	OnboardingEnabled        bool `json:"onboardingEnabled"`
}

type Organization struct {
	ID                uuid.UUID
	Name              string
	Slug              string
	Status            Status
	AllowedDomains    []string
	RequireInvitation bool
	SubscriptionTier  Tier
	Features          map[string]bool
	Limits            Limits
	Usage             Usage
	Settings          Settings
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Acceptance is the verdict on whether an organization admits a request.
// Reason and Code are meant to be surfaced unchanged.
type Acceptance struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
}

func allowed() Acceptance { return Acceptance{Allowed: true} }

// UsableForLogin reports whether members may currently sign in.
func (o Organization) UsableForLogin() Acceptance {
	switch o.Status {
	case StatusSuspended:
		return Acceptance{Reason: "Organization is suspended", Code: CodeSuspended}
	case StatusDeleted:
		return Acceptance{Reason: "Organization has been deleted", Code: CodeDeleted}
	}
	return allowed()
}

// CanAcceptNewUsers adds the seat limit on top of UsableForLogin.
func (o Organization) CanAcceptNewUsers() Acceptance {
	if a := o.UsableForLogin(); !a.Allowed {
		return a
	}
	if o.Limits.MaxUsers > 0 && o.Usage.Users >= o.Limits.MaxUsers {
		return Acceptance{Reason: "Organization has reached its user limit", Code: CodeUserLimitReached}
	}
	return allowed()
}

// DomainAllowed checks the email domain against the allow-list. An empty
// list admits every domain.
func (o Organization) DomainAllowed(email string) bool {
	if len(o.AllowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	return slices.ContainsFunc(o.AllowedDomains, func(d string) bool {
		return strings.EqualFold(strings.TrimSpace(d), domain)
	})
}

// PortalKey is the path segment identifying the organization in portal URLs.
func (o Organization) PortalKey() string {
	if o.Slug != "" {
		return o.Slug
	}
	return o.ID.String()
}
