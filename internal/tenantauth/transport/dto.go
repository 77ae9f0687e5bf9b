package transport

import (
	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/identity"
)

// RegisterRequest is the public sign-up body. Roles are not accepted here;
// self-registered members always get the configured default role.
type RegisterRequest struct {
	Email              string `json:"email" validate:"required,email,max=254"`
	Username           string `json:"username" validate:"omitempty,min=3,max=64"`
	Password           string `json:"password" validate:"required,strongpassword"`
	FirstName          string `json:"firstName" validate:"omitempty,max=100"`
	LastName           string `json:"lastName" validate:"omitempty,max=100"`
	Phone              string `json:"phone" validate:"omitempty,max=32"`
	JobTitle           string `json:"jobTitle" validate:"omitempty,max=120"`
	InvitationCode     string `json:"invitationCode" validate:"omitempty,max=128"`
	RegistrationSource string `json:"registrationSource" validate:"omitempty,max=64"`
}

// AddMemberRequest is sent by an organization admin. Password is optional;
// without one the member sets it through the reset flow.
type AddMemberRequest struct {
	Email     string   `json:"email" validate:"required,email,max=254"`
	Username  string   `json:"username" validate:"omitempty,min=3,max=64"`
	Password  string   `json:"password" validate:"omitempty,strongpassword"`
	FirstName string   `json:"firstName" validate:"omitempty,max=100"`
	LastName  string   `json:"lastName" validate:"omitempty,max=100"`
	Phone     string   `json:"phone" validate:"omitempty,max=32"`
	JobTitle  string   `json:"jobTitle" validate:"omitempty,max=120"`
	Roles     []string `json:"roles" validate:"omitempty,max=8,dive,min=1,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CompleteMFARequest struct {
	ChallengeID string `json:"challengeId" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,strongpassword"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// RefreshRequest is optional; the refresh cookie wins when both are present.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ConfirmMFARequest struct {
	MethodID string `json:"methodId" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

type MemberStatusRequest struct {
	Status string `json:"status" validate:"required,max=32"`
}

type RefreshResponse struct {
	Tokens  authcore.Tokens  `json:"tokens"`
	Session authcore.Session `json:"session"`
}

type MemberStatusResponse struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	Status         string `json:"status"`
}

type MemberResponse struct {
	User       identity.PublicUser `json:"user"`
	Membership identity.Membership `json:"membership"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
