// Package service orchestrates tenant-scoped registration and login on top of
// the generic auth core. Authorization failures are hard errors; side effects
// (usage counters, profiles, welcome email, analytics, onboarding, last-login)
// are soft and never change the caller's result.
package service

import (
	"context"
	"sync"
	"time"

	"tenant_auth_backend/internal/analytics"
	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/notification"
	"tenant_auth_backend/internal/notification/inapp"
	onboardingrepo "tenant_auth_backend/internal/onboarding/repository"
	"tenant_auth_backend/internal/organization/domain"
	profilerepo "tenant_auth_backend/internal/profile/repository"
	profileservice "tenant_auth_backend/internal/profile/service"
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/logger"
	"tenant_auth_backend/platform/metrics"

	"github.com/google/uuid"
)

// AuthCore is the generic auth core as seen by the orchestrator.
type AuthCore interface {
	Register(ctx context.Context, in authcore.RegisterInput, tenantID uuid.UUID, opts authcore.Options, cfg authcore.Config) (authcore.RegisterOutput, error)
	Login(ctx context.Context, creds authcore.Credentials, tenantID uuid.UUID, opts authcore.Options, cfg authcore.Config) (authcore.LoginOutcome, error)
	CompleteMFA(ctx context.Context, challengeID, code string, cfg authcore.Config) (authcore.LoginOutcome, error)
	Refresh(ctx context.Context, refreshToken string, cfg authcore.Config) (authcore.Tokens, authcore.Session, error)
	Logout(ctx context.Context, sessionID string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	VerifyEmail(ctx context.Context, rawToken string) error
	EnableMFA(ctx context.Context, userID uuid.UUID) (authcore.MFAEnrollment, error)
	ConfirmMFA(ctx context.Context, userID uuid.UUID, methodID, code string) error
}

// Organizations is the organization service.
type Organizations interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (domain.Organization, error)
	ValidateOrganization(ctx context.Context, id uuid.UUID) (domain.Acceptance, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, metric string) error
	Features(org domain.Organization) domain.FeatureSet
}

// Members reads users and mutates memberships.
type Members interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (identity.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time, ip string) error
	UpdateMembershipStatus(ctx context.Context, userID, organizationID uuid.UUID, status identity.MembershipStatus) (identity.MembershipStatus, error)
}

type Profiles interface {
	CreateTenantProfile(ctx context.Context, userID, organizationID uuid.UUID, seed profileservice.Seed) (profilerepo.Profile, error)
	CompletionStatus(ctx context.Context, userID, organizationID uuid.UUID) (profileservice.CompletionStatus, error)
	Preferences(ctx context.Context, userID, organizationID uuid.UUID) (profileservice.Preferences, error)
}

type Onboarding interface {
	Initialize(ctx context.Context, userID, organizationID uuid.UUID, roles []string) (onboardingrepo.Record, error)
}

type Notifier interface {
	SendWelcome(ctx context.Context, req notification.WelcomeRequest) error
}

type Inbox interface {
	Pending(ctx context.Context, userID, organizationID uuid.UUID, limit int) ([]inapp.Notification, error)
}

// Deps groups the collaborators of Service. Metrics, Events and Log may be nil.
type Deps struct {
	Core          AuthCore
	Organizations Organizations
	Members       Members
	Profiles      Profiles
	Onboarding    Onboarding
	Notifier      Notifier
	Inbox         Inbox
	Analytics     analytics.Tracker
	Events        events.Bus
	Metrics       *metrics.Metrics
	Log           *logger.Logger
}

// Settings are read once at construction.
type Settings struct {
	RequireEmailVerification bool
	RequireMFA               bool
	DefaultRole              string
	WelcomeEmailEnabled      bool
	OnboardingEnabled        bool
	AnalyticsEnabled         bool
	PortalBaseURL            string
}

func SettingsFrom(cfg config.TenantAuthConfig) Settings {
	return Settings{
		RequireEmailVerification: cfg.GetRequireEmailVerification(),
		RequireMFA:               cfg.GetRequireMFA(),
		DefaultRole:              cfg.GetDefaultRole(),
		WelcomeEmailEnabled:      cfg.IsWelcomeEmailEnabled(),
		OnboardingEnabled:        cfg.IsOnboardingEnabled(),
		AnalyticsEnabled:         cfg.IsAnalyticsEnabled(),
		PortalBaseURL:            cfg.GetPortalBaseURL(),
	}
}

type Service struct {
	core       AuthCore
	orgs       Organizations
	members    Members
	profiles   Profiles
	onboarding Onboarding
	notifier   Notifier
	inbox      Inbox
	tracker    analytics.Tracker
	events     events.Bus
	metrics    *metrics.Metrics
	log        *logger.Logger
	settings   Settings
	authConfig authcore.Config
	now        func() time.Time

	inflight sync.WaitGroup
}

func New(deps Deps, settings Settings) *Service {
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if !identity.IsAssignableRole(settings.DefaultRole) {
		if settings.DefaultRole != "" {
			deps.Log.Warn("default role is not an organization role, using member", "role", settings.DefaultRole)
		}
		settings.DefaultRole = defaultRole
	}
	s := &Service{
		core:       deps.Core,
		orgs:       deps.Organizations,
		members:    deps.Members,
		profiles:   deps.Profiles,
		onboarding: deps.Onboarding,
		notifier:   deps.Notifier,
		inbox:      deps.Inbox,
		tracker:    deps.Analytics,
		events:     deps.Events,
		metrics:    deps.Metrics,
		log:        deps.Log,
		settings:   settings,
		now:        time.Now,
	}
	s.authConfig = authcore.Config{
		UserStructure: TenantUserStructure(),
		Hooks:         s.hooks(),
	}
	return s
}

// TenantUserStructure is the default user structure plus the tenant group.
func TenantUserStructure() authcore.UserStructure {
	groups := append([]authcore.FieldGroup{}, authcore.DefaultUserStructure().Groups...)
	return authcore.UserStructure{Groups: append(groups, authcore.GroupTenant)}
}

// Wait blocks until all background side effects have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// goSideEffect runs fn on its own goroutine, detached from the request's
// cancellation. Errors and panics are logged and counted, never returned.
func (s *Service) goSideEffect(ctx context.Context, effect string, orgID, userID uuid.UUID, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Recovered("tenantauth."+effect, r)
				s.metrics.SideEffectFailed(effect)
			}
		}()
		if err := fn(detached); err != nil {
			s.sideEffectFailed(ctx, effect, orgID, userID, err)
		}
	}()
}

func (s *Service) sideEffectFailed(ctx context.Context, effect string, orgID, userID uuid.UUID, err error) {
	s.log.WithContext(ctx).SideEffectFailed(effect, orgID.String(), userID.String(), err)
	s.metrics.SideEffectFailed(effect)
}
