package service

import (
	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/notification/inapp"
	onboardingrepo "tenant_auth_backend/internal/onboarding/repository"
	"tenant_auth_backend/internal/organization/domain"
	profileservice "tenant_auth_backend/internal/profile/service"

	"github.com/google/uuid"
)

const (
	defaultRole = identity.RoleMember

	registrationSourceDefault = "web"
	registrationSourceInvite  = "admin_invite"
	metadataSource            = "tenant_registration"

	pendingNotificationLimit = 10
)

// UserData is the registration payload.
type UserData struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	JobTitle  string
}

// RequestContext describes the caller of a registration or login.
type RequestContext struct {
	IP                string
	UserAgent         string
	DeviceFingerprint string
}

type RegisterOptions struct {
	RequestContext
	Roles              []string
	InvitationCode     string
	RegistrationSource string
	InvitedBy          *uuid.UUID
	RequireInvitation  bool
}

type LoginOptions struct {
	RequestContext
}

type NextStepType string

const (
	StepVerifyEmail     NextStepType = "verify_email"
	StepCompleteProfile NextStepType = "complete_profile"
	StepOnboardingTour  NextStepType = "onboarding_tour"
	StepSetupMFA        NextStepType = "setup_mfa"
)

type NextStep struct {
	Type     NextStepType `json:"type"`
	Title    string       `json:"title"`
	Required bool         `json:"required"`
}

// OrganizationSummary is the tenant block of a registration or login result.
type OrganizationSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Slug  string    `json:"slug,omitempty"`
	Roles []string  `json:"roles"`
}

type RegistrationResult struct {
	User         identity.PublicUser    `json:"user"`
	Tokens       authcore.Tokens        `json:"tokens"`
	Session      authcore.Session       `json:"session"`
	Organization OrganizationSummary    `json:"organization"`
	Membership   identity.Membership    `json:"membership"`
	Onboarding   *onboardingrepo.Record `json:"onboarding"`
	NextSteps    []NextStep             `json:"nextSteps"`
	PortalURL    string                 `json:"portalUrl"`
}

type LoginResult struct {
	User             identity.PublicUser             `json:"user"`
	Tokens           authcore.Tokens                 `json:"tokens"`
	Session          authcore.Session                `json:"session"`
	Organization     OrganizationSummary             `json:"organization"`
	ProfileStatus    profileservice.CompletionStatus `json:"profileStatus"`
	Preferences      profileservice.Preferences      `json:"preferences"`
	Notifications    []inapp.Notification            `json:"notifications"`
	Features         domain.FeatureSet               `json:"features"`
	PortalURL        string                          `json:"portalUrl"`
	MFASetupRequired bool                            `json:"mfaSetupRequired"`
}

// LoginResponse carries exactly one of Result or Challenge. A Challenge is
// the auth core's MFA challenge, returned as is.
type LoginResponse struct {
	Result    *LoginResult
	Challenge *authcore.MFAChallenge
}

func (r LoginResponse) RequiresMFA() bool {
	return r.Challenge != nil
}
