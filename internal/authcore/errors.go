package authcore

import "tenant_auth_backend/platform/apperr"

// Codes surfaced by the core.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountLocked       = "ACCOUNT_LOCKED"
	CodeAccountSuspended    = "ACCOUNT_SUSPENDED"
	CodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodePasswordReused      = "PASSWORD_REUSED"
	CodeMFAChallengeInvalid = "MFA_CHALLENGE_INVALID"
	CodeInvalidMFACode      = "INVALID_MFA_CODE"
	CodeMFANotEnrolled      = "MFA_NOT_ENROLLED"
	CodeSessionInvalid      = "SESSION_INVALID"
	CodeMembershipRequired  = "MEMBERSHIP_REQUIRED"
	CodeMembershipExists    = "MEMBERSHIP_EXISTS"
	CodeMFALoginRequired    = "MFA_LOGIN_REQUIRED"
)

func errEmailTaken(op string) error {
	return apperr.Conflict("email is already registered").WithCode(CodeEmailTaken).WithOp(op)
}

func errInvalidCredentials(op string) error {
	return apperr.Unauthorized("invalid email or password").WithCode(CodeInvalidCredentials).WithOp(op)
}

func errInvalidToken(op string) error {
	return apperr.BadRequest("invalid or already used token").WithCode(CodeInvalidToken).WithOp(op)
}

func errTokenExpired(op string) error {
	return apperr.BadRequest("token has expired").WithCode(CodeTokenExpired).WithOp(op)
}
