// Package events holds the auth domain events. The bus itself lives in
// platform/events; the aliases below keep modules on a single import.
package events

import (
	"tenant_auth_backend/platform/events"
	"tenant_auth_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Auth Core Events
// =============================================================================

// EmailVerificationRequested is published when a user needs to verify their email.
type EmailVerificationRequested struct {
	BaseEvent
	UserID      uuid.UUID `json:"userId"`
	Email       string    `json:"email"`
	VerifyToken string    `json:"verifyToken"`
}

func (e EmailVerificationRequested) EventName() string { return "auth.email.verification_requested" }

// PasswordResetRequested is published when a user requests a password reset.
type PasswordResetRequested struct {
	BaseEvent
	UserID     uuid.UUID `json:"userId"`
	Email      string    `json:"email"`
	ResetToken string    `json:"resetToken"`
}

func (e PasswordResetRequested) EventName() string { return "auth.password.reset_requested" }

// =============================================================================
// Tenant Events
// =============================================================================

// TenantUserRegistered is published after a user joined an organization
// through tenant registration.
type TenantUserRegistered struct {
	BaseEvent
	UserID             uuid.UUID `json:"userId"`
	OrganizationID     uuid.UUID `json:"organizationId"`
	OrganizationName   string    `json:"organizationName"`
	Email              string    `json:"email"`
	FirstName          string    `json:"firstName"`
	PortalURL          string    `json:"portalUrl"`
	RegistrationSource string    `json:"registrationSource,omitempty"`
}

func (e TenantUserRegistered) EventName() string { return "tenant.user.registered" }

// MembershipStatusChanged is published when an administrator moves a
// membership to another state.
type MembershipStatusChanged struct {
	BaseEvent
	UserID         uuid.UUID `json:"userId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	PreviousStatus string    `json:"previousStatus"`
	Status         string    `json:"status"`
}

func (e MembershipStatusChanged) EventName() string { return "tenant.membership.status_changed" }
