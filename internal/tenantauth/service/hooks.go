package service

import (
	"context"
	"strings"

	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/identity"

	"github.com/google/uuid"
)

const (
	metaTenantContext  = "tenantContext"
	metaOrganizationID = "organizationId"
	metaInvitationCode = "invitationCode"
)

func (s *Service) hooks() authcore.Hooks {
	return authcore.Hooks{
		BeforeRegister:   s.beforeRegister,
		AfterRegister:    s.afterRegister,
		BeforeLogin:      s.beforeLogin,
		AfterLogin:       s.afterLogin,
		EnrichUserData:   s.enrichUserData,
		SanitizeUserData: s.sanitizeUserData,
		ValidateUser:     s.validateUser,
	}
}

func (s *Service) beforeRegister(ctx context.Context, in authcore.RegisterInput, tenantID uuid.UUID, _ authcore.Options) {
	s.log.WithContext(ctx).Info("tenant registration started",
		"organization_id", tenantID.String(),
		"email_domain", emailDomain(in.Email),
	)
}

func (s *Service) afterRegister(ctx context.Context, user identity.PublicUser, _ authcore.Tokens, session authcore.Session, opts authcore.Options) {
	s.log.WithContext(ctx).Info("tenant user registered",
		"organization_id", opts.TenantID.String(),
		"user_id", user.ID.String(),
		"session_id", session.ID,
	)
}

func (s *Service) beforeLogin(ctx context.Context, creds authcore.Credentials, tenantID uuid.UUID, opts authcore.Options) {
	s.log.WithContext(ctx).Info("tenant login attempt",
		"organization_id", tenantID.String(),
		"email_domain", emailDomain(creds.Email),
		"ip", opts.IP,
	)
}

// afterLogin records the last login off the request path.
func (s *Service) afterLogin(ctx context.Context, user identity.PublicUser, _ authcore.Tokens, session authcore.Session, opts authcore.Options) {
	s.goSideEffect(ctx, "last_login", opts.TenantID, user.ID, func(ctx context.Context) error {
		return s.members.UpdateLastLogin(ctx, user.ID, session.CreatedAt, opts.IP)
	})
}

// enrichUserData stamps tenant context on the document before it is written.
func (s *Service) enrichUserData(_ context.Context, user *identity.User, opts authcore.Options) error {
	if user.Metadata == nil {
		user.Metadata = map[string]any{}
	}
	user.Metadata[metaTenantContext] = true
	user.Metadata[metaOrganizationID] = opts.TenantID.String()
	return nil
}

// sanitizeUserData is the only path by which users leave this package.
func (s *Service) sanitizeUserData(user identity.User, _ authcore.Options) identity.PublicUser {
	public := user.Public()
	delete(public.Metadata, metaInvitationCode)
	return public
}

// validateUser is the login gate: the user must hold an active membership in
// the requested organization.
func (s *Service) validateUser(_ context.Context, user identity.User, opts authcore.Options) error {
	return checkMembership(user, opts.TenantID, opValidateUser)
}

func checkMembership(user identity.User, orgID uuid.UUID, op string) error {
	m, ok := user.MembershipFor(orgID)
	if !ok {
		return errNotAMember(op)
	}
	if !m.IsActive() {
		return errMembershipInactive(string(m.Status), op)
	}
	return nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
