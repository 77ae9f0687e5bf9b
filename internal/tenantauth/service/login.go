package service

import (
	"context"

	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/notification/inapp"
	"tenant_auth_backend/internal/organization/domain"
	profileservice "tenant_auth_backend/internal/profile/service"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LoginTenantUser authenticates credentials against organizationID. An MFA
// challenge from the core is returned unmodified, without enrichment.
func (s *Service) LoginTenantUser(ctx context.Context, creds authcore.Credentials, organizationID uuid.UUID, opts LoginOptions) (LoginResponse, error) {
	acceptance, err := s.orgs.ValidateOrganization(ctx, organizationID)
	if err != nil {
		s.metrics.AuthOutcome("login", outcome(err))
		return LoginResponse{}, err
	}
	if !acceptance.Allowed {
		s.metrics.AuthOutcome("login", acceptance.Code)
		return LoginResponse{}, rejected(acceptance, opLogin)
	}

	out, err := s.core.Login(ctx, creds, organizationID, toCoreOptions(opts.RequestContext), s.authConfig)
	if err != nil {
		s.metrics.AuthOutcome("login", outcome(err))
		return LoginResponse{}, err
	}
	if out.RequiresMFA() {
		s.metrics.AuthOutcome("login", "mfa_challenge")
		return LoginResponse{Challenge: out.Challenge}, nil
	}

	result, err := s.loginResult(ctx, out, organizationID)
	if err != nil {
		return LoginResponse{}, err
	}
	s.metrics.AuthOutcome("login", "success")
	return LoginResponse{Result: result}, nil
}

// CompleteTenantMFA finishes a challenged login and enriches it like a
// normal one.
func (s *Service) CompleteTenantMFA(ctx context.Context, challengeID, code string, organizationID uuid.UUID) (LoginResult, error) {
	out, err := s.core.CompleteMFA(ctx, challengeID, code, s.authConfig)
	if err != nil {
		s.metrics.AuthOutcome("mfa", outcome(err))
		return LoginResult{}, err
	}
	if out.Session == nil || out.Session.TenantID != organizationID {
		if out.Session != nil {
			_ = s.core.Logout(ctx, out.Session.ID)
		}
		return LoginResult{}, apperr.Forbidden("mfa challenge was issued for another organization").
			WithCode(CodeTenantMismatch).
			WithOp(opCompleteMFA)
	}

	result, err := s.loginResult(ctx, out, organizationID)
	if err != nil {
		return LoginResult{}, err
	}
	s.metrics.AuthOutcome("mfa", "success")
	return *result, nil
}

func (s *Service) loginResult(ctx context.Context, out authcore.LoginOutcome, organizationID uuid.UUID) (*LoginResult, error) {
	if out.User == nil || out.Tokens == nil || out.Session == nil {
		return nil, apperr.Internal("auth core returned an incomplete login").WithOp(opLogin)
	}
	user := *out.User

	// ValidateUser already guaranteed an active membership.
	membership, ok := user.MembershipFor(organizationID)
	if !ok {
		return nil, errNotAMember(opLogin)
	}

	result := &LoginResult{
		User:    user,
		Tokens:  *out.Tokens,
		Session: *out.Session,
		Organization: OrganizationSummary{
			ID:    organizationID,
			Roles: membership.RoleNames(),
		},
		MFASetupRequired: out.MFASetupRequired,
	}
	s.enrich(ctx, result, user, organizationID)
	return result, nil
}

// enrich fills the tenant-scoped parts of a login result. Each lookup runs
// concurrently and degrades on its own.
func (s *Service) enrich(ctx context.Context, result *LoginResult, user identity.PublicUser, orgID uuid.UUID) {
	log := s.log.WithContext(ctx)

	var (
		status = profileservice.CompletionStatus{IsComplete: false, MissingFields: []string{}}
		prefs  = profileservice.DefaultPreferences()
		inbox  = []inapp.Notification{}
		org    domain.Organization
		orgOK  bool
	)

	var g errgroup.Group
	if s.profiles != nil {
		g.Go(func() error {
			got, err := s.profiles.CompletionStatus(ctx, user.ID, orgID)
			if err != nil {
				log.Warn("profile status unavailable", "error", err, "user_id", user.ID.String())
				return nil
			}
			status = got
			return nil
		})
		g.Go(func() error {
			got, err := s.profiles.Preferences(ctx, user.ID, orgID)
			if err != nil {
				log.Warn("preferences unavailable", "error", err, "user_id", user.ID.String())
				return nil
			}
			prefs = got
			return nil
		})
	}
	if s.inbox != nil {
		g.Go(func() error {
			got, err := s.inbox.Pending(ctx, user.ID, orgID, pendingNotificationLimit)
			if err != nil {
				log.Warn("notifications unavailable", "error", err, "user_id", user.ID.String())
				return nil
			}
			inbox = got
			return nil
		})
	}
	g.Go(func() error {
		got, err := s.orgs.GetOrganization(ctx, orgID)
		if err != nil {
			log.Warn("organization unavailable for enrichment", "error", err, "organization_id", orgID.String())
			return nil
		}
		org, orgOK = got, true
		return nil
	})
	_ = g.Wait()

	result.ProfileStatus = status
	result.Preferences = prefs
	result.Notifications = inbox
	if orgOK {
		result.Organization.Name = org.Name
		result.Organization.Slug = org.Slug
		result.Features = s.orgs.Features(org)
		result.PortalURL = s.portalURL(org)
	} else {
		result.PortalURL = s.portalURL(domain.Organization{ID: orgID})
	}
}
