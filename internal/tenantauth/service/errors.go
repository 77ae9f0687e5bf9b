package service

import (
	"tenant_auth_backend/internal/organization/domain"
	"tenant_auth_backend/platform/apperr"
)

const (
	CodeDomainNotAllowed        = "DOMAIN_NOT_ALLOWED"
	CodeInvitationRequired      = "INVITATION_REQUIRED"
	CodeNotAMember              = "NOT_A_MEMBER"
	CodeMembershipInactive      = "MEMBERSHIP_INACTIVE"
	CodeTenantMismatch          = "TENANT_MISMATCH"
	CodeInvalidMembershipStatus = "INVALID_MEMBERSHIP_STATUS"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeInvalidRole             = "INVALID_ROLE"
	CodeAdminRequired           = "ORGANIZATION_ADMIN_REQUIRED"
)

const (
	opRegister     = "tenantauth.register"
	opLogin        = "tenantauth.login"
	opCompleteMFA  = "tenantauth.complete_mfa"
	opValidateUser = "tenantauth.validate_user"
	opChangeStatus = "tenantauth.change_member_status"
	opEnableMFA    = "tenantauth.enable_mfa"
	opAddMember    = "tenantauth.add_member"
)

// rejected re-wraps an organization refusal. Reason and code are passed
// through unchanged.
func rejected(a domain.Acceptance, op string) error {
	return apperr.Forbidden(a.Reason).WithCode(a.Code).WithOp(op)
}

func errNotAMember(op string) error {
	return apperr.Forbidden("user is not a member of this organization").WithCode(CodeNotAMember).WithOp(op)
}

func errMembershipInactive(status, op string) error {
	return apperr.Forbidden("organization membership is not active").
		WithCode(CodeMembershipInactive).
		WithDetail("status", status).
		WithOp(op)
}

// outcome labels a failed flow for metrics.
func outcome(err error) string {
	if code := apperr.GetCode(err); code != "" {
		return code
	}
	return "error"
}
