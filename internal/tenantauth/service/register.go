package service

import (
	"context"
	"slices"
	"strings"

	"tenant_auth_backend/internal/analytics"
	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/notification"
	onboardingrepo "tenant_auth_backend/internal/onboarding/repository"
	"tenant_auth_backend/internal/organization/domain"
	profileservice "tenant_auth_backend/internal/profile/service"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

// RegisterTenantUser creates a user with one active, primary membership in
// organizationID. An existing account that presents its password gains an
// additional, non-primary membership instead.
func (s *Service) RegisterTenantUser(ctx context.Context, data UserData, organizationID uuid.UUID, opts RegisterOptions) (RegistrationResult, error) {
	return s.register(ctx, data, organizationID, opts, false)
}

// AddTenantMember lets an active organization admin add a member with
// chosen roles. No session is opened for the new member; a new account
// without a password sets one through the reset flow.
func (s *Service) AddTenantMember(ctx context.Context, inviterID, organizationID uuid.UUID, data UserData, roles []string, reqCtx RequestContext) (RegistrationResult, error) {
	if err := s.requireOrganizationAdmin(ctx, inviterID, organizationID, opAddMember); err != nil {
		s.metrics.AuthOutcome("add_member", outcome(err))
		return RegistrationResult{}, err
	}
	return s.register(ctx, data, organizationID, RegisterOptions{
		RequestContext:     reqCtx,
		Roles:              roles,
		RegistrationSource: registrationSourceInvite,
		InvitedBy:          &inviterID,
	}, true)
}

func (s *Service) register(ctx context.Context, data UserData, organizationID uuid.UUID, opts RegisterOptions, provisioned bool) (RegistrationResult, error) {
	org, err := s.orgs.GetOrganization(ctx, organizationID)
	if err != nil {
		s.metrics.AuthOutcome("register", outcome(err))
		return RegistrationResult{}, err
	}
	if err := s.admit(org, data.Email, opts); err != nil {
		s.metrics.AuthOutcome("register", outcome(err))
		return RegistrationResult{}, err
	}
	roles, err := s.rolesFor(opts)
	if err != nil {
		s.metrics.AuthOutcome("register", outcome(err))
		return RegistrationResult{}, err
	}

	now := s.now().UTC()
	membership := identity.NewMembership(organizationID, roles, true, opts.InvitedBy, now)
	membership.JobTitle = strings.TrimSpace(data.JobTitle)

	source := opts.RegistrationSource
	if source == "" {
		source = registrationSourceDefault
	}
	metadata := map[string]any{
		"source":             metadataSource,
		metaTenantContext:    true,
		"registrationSource": source,
	}
	if opts.InvitationCode != "" {
		metadata[metaInvitationCode] = opts.InvitationCode
	}

	coreOpts := toCoreOptions(opts.RequestContext)
	coreOpts.Provisioned = provisioned
	out, err := s.core.Register(ctx, authcore.RegisterInput{
		Email:    data.Email,
		Username: data.Username,
		Password: data.Password,
		Profile: identity.Profile{
			FirstName: strings.TrimSpace(data.FirstName),
			LastName:  strings.TrimSpace(data.LastName),
			Phone:     strings.TrimSpace(data.Phone),
		},
		Organizations: []identity.Membership{membership},
		Metadata:      metadata,
	}, organizationID, coreOpts, s.authConfig)
	if err != nil {
		s.metrics.AuthOutcome("register", outcome(err))
		return RegistrationResult{}, err
	}
	user := out.User
	s.metrics.AuthOutcome("register", "success")

	// Not compensated and not retried: a failure leaves the counter one short.
	if err := s.orgs.IncrementUsage(ctx, organizationID, domain.MetricUsers); err != nil {
		s.sideEffectFailed(ctx, "usage_increment", organizationID, user.ID, err)
	}

	portalURL := s.portalURL(org)
	s.runPostRegistration(ctx, org, user, data, source, portalURL)

	result := RegistrationResult{
		User:    user,
		Tokens:  out.Tokens,
		Session: out.Session,
		Organization: OrganizationSummary{
			ID:    org.ID,
			Name:  org.Name,
			Slug:  org.Slug,
			Roles: membership.RoleNames(),
		},
		Membership: membership,
		PortalURL:  portalURL,
	}
	if m, ok := user.MembershipFor(organizationID); ok {
		result.Membership = m
	}
	if s.settings.OnboardingEnabled && org.Settings.OnboardingEnabled {
		result.Onboarding = s.initializeOnboarding(ctx, user.ID, organizationID, membership.RoleNames())
	}
	verify := out.VerificationRequired || (s.settings.RequireEmailVerification && !user.EmailVerified)
	result.NextSteps = s.nextSteps(org, verify, result.Onboarding)
	return result, nil
}

// admit applies the registration preconditions in order: organization
// acceptance, domain allow-list, invitation.
func (s *Service) admit(org domain.Organization, email string, opts RegisterOptions) error {
	if a := org.CanAcceptNewUsers(); !a.Allowed {
		return rejected(a, opRegister)
	}
	if !org.DomainAllowed(email) {
		return apperr.Validation("email domain is not allowed for this organization").
			WithCode(CodeDomainNotAllowed).
			WithDetail("domain", emailDomain(email)).
			WithOp(opRegister)
	}
	invited := opts.InvitedBy != nil || strings.TrimSpace(opts.InvitationCode) != ""
	if (opts.RequireInvitation || org.RequireInvitation) && !invited {
		return apperr.Validation("an invitation code is required to join this organization").
			WithCode(CodeInvitationRequired).
			WithOp(opRegister)
	}
	return nil
}

// rolesFor falls back to the default role. Only organization roles can be
// granted here.
func (s *Service) rolesFor(opts RegisterOptions) ([]string, error) {
	roles := make([]string, 0, len(opts.Roles))
	for _, r := range opts.Roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || slices.Contains(roles, r) {
			continue
		}
		if !identity.IsAssignableRole(r) {
			return nil, apperr.Validation("role cannot be assigned in an organization").
				WithCode(CodeInvalidRole).
				WithDetail("role", r).
				WithOp(opRegister)
		}
		roles = append(roles, r)
	}
	if len(roles) == 0 {
		return []string{s.settings.DefaultRole}, nil
	}
	return roles, nil
}

// runPostRegistration fires the independent post-registration workflows.
func (s *Service) runPostRegistration(ctx context.Context, org domain.Organization, user identity.PublicUser, data UserData, source, portalURL string) {
	if s.profiles != nil {
		s.goSideEffect(ctx, "profile", org.ID, user.ID, func(ctx context.Context) error {
			_, err := s.profiles.CreateTenantProfile(ctx, user.ID, org.ID, profileservice.Seed{
				FirstName: data.FirstName,
				LastName:  data.LastName,
				Phone:     data.Phone,
				JobTitle:  data.JobTitle,
			})
			return err
		})
	}

	if s.settings.WelcomeEmailEnabled && s.notifier != nil {
		s.goSideEffect(ctx, "welcome_notification", org.ID, user.ID, func(ctx context.Context) error {
			return s.notifier.SendWelcome(ctx, notification.WelcomeRequest{
				UserID:           user.ID,
				OrganizationID:   org.ID,
				Email:            user.Email,
				FirstName:        user.Profile.FirstName,
				OrganizationName: org.Name,
				PortalURL:        portalURL,
			})
		})
	}

	if s.settings.AnalyticsEnabled && s.tracker != nil {
		s.goSideEffect(ctx, "analytics", org.ID, user.ID, func(ctx context.Context) error {
			return s.tracker.Track(ctx, analytics.Event{
				Name:           analytics.EventUserRegistered,
				UserID:         user.ID,
				OrganizationID: org.ID,
				Properties: map[string]any{
					"registrationSource": source,
					"tier":               string(org.SubscriptionTier),
				},
			})
		})
	}

	if s.events != nil {
		s.events.Publish(ctx, events.TenantUserRegistered{
			BaseEvent:          events.NewBaseEvent(),
			UserID:             user.ID,
			OrganizationID:     org.ID,
			OrganizationName:   org.Name,
			Email:              user.Email,
			FirstName:          user.Profile.FirstName,
			PortalURL:          portalURL,
			RegistrationSource: source,
		})
	}
}

// initializeOnboarding returns nil when the record cannot be created.
func (s *Service) initializeOnboarding(ctx context.Context, userID, orgID uuid.UUID, roles []string) (rec *onboardingrepo.Record) {
	if s.onboarding == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Recovered("tenantauth.onboarding", r)
			s.metrics.SideEffectFailed("onboarding")
			rec = nil
		}
	}()
	record, err := s.onboarding.Initialize(ctx, userID, orgID, roles)
	if err != nil {
		s.sideEffectFailed(ctx, "onboarding", orgID, userID, err)
		return nil
	}
	return &record
}

func (s *Service) nextSteps(org domain.Organization, verificationRequired bool, onboarding *onboardingrepo.Record) []NextStep {
	steps := make([]NextStep, 0, 4)
	if verificationRequired {
		steps = append(steps, NextStep{Type: StepVerifyEmail, Title: "Verify your email address", Required: true})
	}
	if org.Settings.RequireProfileCompletion {
		steps = append(steps, NextStep{Type: StepCompleteProfile, Title: "Complete your profile", Required: true})
	}
	if s.settings.RequireMFA {
		steps = append(steps, NextStep{Type: StepSetupMFA, Title: "Set up two-factor authentication", Required: true})
	}
	if onboarding != nil {
		steps = append(steps, NextStep{Type: StepOnboardingTour, Title: "Take the onboarding tour"})
	}
	return steps
}

func (s *Service) portalURL(org domain.Organization) string {
	return strings.TrimRight(s.settings.PortalBaseURL, "/") + "/portal/" + org.PortalKey()
}

func toCoreOptions(rc RequestContext) authcore.Options {
	return authcore.Options{
		IP:                rc.IP,
		UserAgent:         rc.UserAgent,
		DeviceFingerprint: rc.DeviceFingerprint,
	}
}
