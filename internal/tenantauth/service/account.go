package service

import (
	"context"
	"errors"

	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

func (s *Service) LogoutTenantUser(ctx context.Context, sessionID string) error {
	return s.core.Logout(ctx, sessionID)
}

// RefreshTenantSession rotates the refresh token. The membership gate runs
// again, so a deactivated member loses the session here.
func (s *Service) RefreshTenantSession(ctx context.Context, refreshToken string) (authcore.Tokens, authcore.Session, error) {
	return s.core.Refresh(ctx, refreshToken, s.authConfig)
}

// RequestTenantPasswordReset is silent about unknown emails; only a missing
// organization is reported.
func (s *Service) RequestTenantPasswordReset(ctx context.Context, email string, organizationID uuid.UUID) error {
	if _, err := s.orgs.GetOrganization(ctx, organizationID); err != nil {
		return err
	}
	return s.core.RequestPasswordReset(ctx, email)
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.core.ResetPassword(ctx, token, newPassword)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.core.VerifyEmail(ctx, token)
}

// EnableTenantMFA starts TOTP enrollment for an active member.
func (s *Service) EnableTenantMFA(ctx context.Context, userID, organizationID uuid.UUID) (authcore.MFAEnrollment, error) {
	if err := s.requireActiveMember(ctx, userID, organizationID, opEnableMFA); err != nil {
		return authcore.MFAEnrollment{}, err
	}
	return s.core.EnableMFA(ctx, userID)
}

func (s *Service) ConfirmTenantMFA(ctx context.Context, userID, organizationID uuid.UUID, methodID, code string) error {
	if err := s.requireActiveMember(ctx, userID, organizationID, opEnableMFA); err != nil {
		return err
	}
	return s.core.ConfirmMFA(ctx, userID, methodID, code)
}

// ChangeMemberStatus moves a membership to another state on behalf of an
// active admin of the same organization. Memberships are never deleted;
// "removed" is a state like the others.
func (s *Service) ChangeMemberStatus(ctx context.Context, actorID, organizationID, userID uuid.UUID, rawStatus string) (identity.Membership, error) {
	if err := s.requireOrganizationAdmin(ctx, actorID, organizationID, opChangeStatus); err != nil {
		return identity.Membership{}, err
	}
	next, err := identity.ParseMembershipStatus(rawStatus)
	if err != nil {
		return identity.Membership{}, apperr.Validation("unknown membership status").
			WithCode(CodeInvalidMembershipStatus).
			WithDetail("status", rawStatus).
			WithOp(opChangeStatus)
	}

	user, err := s.members.GetUserByID(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.Membership{}, apperr.NotFound("user not found").WithOp(opChangeStatus)
	}
	if err != nil {
		return identity.Membership{}, err
	}
	current, ok := user.MembershipFor(organizationID)
	if !ok {
		return identity.Membership{}, apperr.NotFound("user is not a member of this organization").
			WithCode(CodeNotAMember).
			WithOp(opChangeStatus)
	}
	if current.Status == next {
		return current, nil
	}
	if !current.Status.CanTransitionTo(next) {
		return identity.Membership{}, apperr.Validation("membership cannot move to the requested status").
			WithCode(CodeInvalidStatusTransition).
			WithDetails(map[string]any{"from": string(current.Status), "to": string(next)}).
			WithOp(opChangeStatus)
	}

	previous, err := s.members.UpdateMembershipStatus(ctx, userID, organizationID, next)
	if err != nil {
		return identity.Membership{}, err
	}
	current.Status = next

	if s.events != nil {
		s.events.Publish(ctx, events.MembershipStatusChanged{
			BaseEvent:      events.NewBaseEvent(),
			UserID:         userID,
			OrganizationID: organizationID,
			PreviousStatus: string(previous),
			Status:         string(next),
		})
	}
	return current, nil
}

func (s *Service) requireActiveMember(ctx context.Context, userID, organizationID uuid.UUID, op string) error {
	user, err := s.members.GetUserByID(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return errNotAMember(op)
	}
	if err != nil {
		return err
	}
	return checkMembership(user, organizationID, op)
}

// requireOrganizationAdmin passes only for an active member of
// organizationID holding the admin role.
func (s *Service) requireOrganizationAdmin(ctx context.Context, userID, organizationID uuid.UUID, op string) error {
	user, err := s.members.GetUserByID(ctx, userID)
	if errors.Is(err, identity.ErrNotFound) {
		return errNotAMember(op)
	}
	if err != nil {
		return err
	}
	if err := checkMembership(user, organizationID, op); err != nil {
		return err
	}
	if m, _ := user.MembershipFor(organizationID); !m.HasRole(identity.RoleAdmin) {
		return apperr.Forbidden("organization admin role required").WithCode(CodeAdminRequired).WithOp(op)
	}
	return nil
}
