package authcore_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tenant_auth_backend/internal/authcore"
	"tenant_auth_backend/internal/authcore/password"
	"tenant_auth_backend/internal/authcore/store"
	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/internal/identity/memory"
	"tenant_auth_backend/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const strongPassword = "Str0ng!Pass"

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) last(name string) (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].EventName() == name {
			return b.events[i], true
		}
	}
	return nil, false
}

type fixture struct {
	svc   *authcore.Service
	users *memory.Store
	bus   *recordingBus
}

func newFixture(t *testing.T, mutate func(*authcore.Settings)) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	settings := authcore.Settings{
		AccessSecret:     "test-secret",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       24 * time.Hour,
		VerifyTokenTTL:   time.Hour,
		ResetTokenTTL:    time.Hour,
		MaxLoginAttempts: 3,
		LockoutWindow:    15 * time.Minute,
		SessionTimeout:   24 * time.Hour,
		ChallengeTTL:     5 * time.Minute,
		MFAIssuer:        "Tenant Auth",
	}
	if mutate != nil {
		mutate(&settings)
	}

	users := memory.NewStore()
	bus := &recordingBus{}
	svc := authcore.New(authcore.Deps{
		Users:      users,
		Sessions:   store.NewSessions(rdb),
		Attempts:   store.NewAttempts(rdb),
		Challenges: store.NewChallenges(rdb),
		Hasher:     password.NewHasher(bcrypt.MinCost),
		Events:     bus,
	}, settings)
	return fixture{svc: svc, users: users, bus: bus}
}

func tenantConfig() authcore.Config {
	return authcore.Config{UserStructure: authcore.UserStructure{Groups: append(authcore.DefaultUserStructure().Groups, authcore.GroupTenant)}}
}

func register(t *testing.T, f fixture, email string, tenantID uuid.UUID, roles ...string) authcore.RegisterOutput {
	t.Helper()
	out, err := f.svc.Register(context.Background(), authcore.RegisterInput{
		Email:         email,
		Password:      strongPassword,
		Profile:       identity.Profile{FirstName: "Ada"},
		Organizations: []identity.Membership{identity.NewMembership(tenantID, roles, true, nil, time.Now())},
	}, tenantID, authcore.Options{}, tenantConfig())
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return out
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Register(context.Background(), authcore.RegisterInput{
		Email:    "ada@acme.com",
		Password: "weak",
	}, uuid.Nil, authcore.Options{}, authcore.Config{UserStructure: authcore.DefaultUserStructure()})

	if apperr.GetCode(err) != authcore.CodeInvalidInput {
		t.Fatalf("expected %s, got %v", authcore.CodeInvalidInput, err)
	}
	appErr, _ := apperr.As(err)
	if _, ok := appErr.Details["password"]; !ok {
		t.Fatalf("expected password field detail, got %v", appErr.Details)
	}
	if f.users.UserCount() != 0 {
		t.Fatalf("expected no user to be created")
	}
}

func TestRegisterTenantStructureRequiresMembership(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Register(context.Background(), authcore.RegisterInput{
		Email:    "ada@acme.com",
		Password: strongPassword,
	}, uuid.New(), authcore.Options{}, tenantConfig())
	if apperr.GetCode(err) != authcore.CodeMembershipRequired {
		t.Fatalf("expected %s, got %v", authcore.CodeMembershipRequired, err)
	}
}

func joinInput(email, pass string, tenantID uuid.UUID) authcore.RegisterInput {
	return authcore.RegisterInput{
		Email:         email,
		Password:      pass,
		Organizations: []identity.Membership{identity.NewMembership(tenantID, []string{"member"}, true, nil, time.Now())},
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	register(t, f, "ada@acme.com", tenantID)

	_, err := f.svc.Register(context.Background(), joinInput("ADA@acme.com", strongPassword+"x", uuid.New()), tenantID, authcore.Options{}, tenantConfig())
	if !apperr.Is(err, apperr.KindConflict) || apperr.GetCode(err) != authcore.CodeEmailTaken {
		t.Fatalf("expected EMAIL_TAKEN conflict for a wrong password, got %v", err)
	}

	_, err = f.svc.Register(context.Background(), joinInput("ada@acme.com", strongPassword, uuid.New()), uuid.Nil, authcore.Options{}, authcore.Config{UserStructure: authcore.DefaultUserStructure()})
	if apperr.GetCode(err) != authcore.CodeEmailTaken {
		t.Fatalf("expected EMAIL_TAKEN without the tenant group, got %v", err)
	}
}

func TestRegisterExistingAccountJoinsSecondTenant(t *testing.T) {
	f := newFixture(t, nil)
	first, second := uuid.New(), uuid.New()
	register(t, f, "ada@acme.com", first)

	out, err := f.svc.Register(context.Background(), joinInput("ada@acme.com", strongPassword, second), second, authcore.Options{}, tenantConfig())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if out.Tokens.AccessToken == "" || out.Session.TenantID != second {
		t.Fatalf("expected a session for the joined tenant, got %+v", out.Session)
	}
	if f.users.UserCount() != 1 {
		t.Fatalf("expected the existing account to be reused, got %d users", f.users.UserCount())
	}

	user, _ := f.users.GetUserByEmail(context.Background(), "ada@acme.com")
	if len(user.Organizations) != 2 {
		t.Fatalf("expected two memberships, got %+v", user.Organizations)
	}
	joined, _ := user.MembershipFor(second)
	if joined.IsPrimary || !joined.IsActive() {
		t.Fatalf("expected an active secondary membership, got %+v", joined)
	}

	_, err = f.svc.Register(context.Background(), joinInput("ada@acme.com", strongPassword, second), second, authcore.Options{}, tenantConfig())
	if !apperr.Is(err, apperr.KindConflict) || apperr.GetCode(err) != authcore.CodeMembershipExists {
		t.Fatalf("expected MEMBERSHIP_EXISTS, got %v", err)
	}
}

func TestRegisterJoinCountsTowardsLockout(t *testing.T) {
	f := newFixture(t, nil)
	register(t, f, "ada@acme.com", uuid.New())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = f.svc.Register(ctx, joinInput("ada@acme.com", strongPassword+"x", uuid.New()), uuid.New(), authcore.Options{}, tenantConfig())
	}
	_, err := f.svc.Register(ctx, joinInput("ada@acme.com", strongPassword, uuid.New()), uuid.New(), authcore.Options{}, tenantConfig())
	if apperr.GetCode(err) != authcore.CodeAccountLocked {
		t.Fatalf("expected ACCOUNT_LOCKED after repeated wrong passwords, got %v", err)
	}
}

func TestProvisionedRegistrationOpensNoSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tenantID := uuid.New()

	out, err := f.svc.Register(ctx, joinInput("bob@acme.com", "", tenantID), tenantID, authcore.Options{Provisioned: true}, tenantConfig())
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if out.Tokens.AccessToken != "" || out.Session.ID != "" {
		t.Fatalf("expected no session for a provisioned account, got %+v", out.Session)
	}

	// Existing accounts are added without their password.
	other := uuid.New()
	if _, err := f.svc.Register(ctx, joinInput("bob@acme.com", "", other), other, authcore.Options{Provisioned: true}, tenantConfig()); err != nil {
		t.Fatalf("provisioned join: %v", err)
	}
	user, _ := f.users.GetUserByEmail(ctx, "bob@acme.com")
	if _, ok := user.MembershipFor(other); !ok {
		t.Fatalf("expected membership in %s", other)
	}
}

func TestRegisterRunsHooksInOrder(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	var calls []string

	cfg := tenantConfig()
	cfg.Hooks = authcore.Hooks{
		BeforeRegister: func(context.Context, authcore.RegisterInput, uuid.UUID, authcore.Options) {
			calls = append(calls, "before")
		},
		EnrichUserData: func(_ context.Context, u *identity.User, _ authcore.Options) error {
			calls = append(calls, "enrich")
			u.Metadata["source"] = "test"
			return nil
		},
		SanitizeUserData: func(u identity.User, _ authcore.Options) identity.PublicUser {
			calls = append(calls, "sanitize")
			return u.Public()
		},
		AfterRegister: func(_ context.Context, u identity.PublicUser, tokens authcore.Tokens, _ authcore.Session, _ authcore.Options) {
			calls = append(calls, "after")
			if tokens.AccessToken == "" {
				t.Errorf("after hook expected tokens")
			}
		},
	}

	out, err := f.svc.Register(context.Background(), authcore.RegisterInput{
		Email:         "ada@acme.com",
		Password:      strongPassword,
		Organizations: []identity.Membership{identity.NewMembership(tenantID, []string{"member"}, true, nil, time.Now())},
	}, tenantID, authcore.Options{}, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if got := strings.Join(calls, ","); got != "before,enrich,sanitize,after" {
		t.Fatalf("unexpected hook order %q", got)
	}
	if out.User.Metadata["source"] != "test" {
		t.Fatalf("expected enriched metadata to be persisted, got %v", out.User.Metadata)
	}
	if out.Session.TenantID != tenantID {
		t.Fatalf("expected session to carry tenant id")
	}
}

func TestEnrichErrorAbortsRegistration(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	cfg := tenantConfig()
	cfg.Hooks.EnrichUserData = func(context.Context, *identity.User, authcore.Options) error {
		return apperr.Forbidden("nope")
	}

	_, err := f.svc.Register(context.Background(), authcore.RegisterInput{
		Email:         "ada@acme.com",
		Password:      strongPassword,
		Organizations: []identity.Membership{identity.NewMembership(tenantID, nil, true, nil, time.Now())},
	}, tenantID, authcore.Options{}, cfg)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.users.UserCount() != 0 {
		t.Fatalf("expected no user after enrich failure")
	}
}

func TestObserverHookPanicIsContained(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	register(t, f, "ada@acme.com", tenantID)

	cfg := tenantConfig()
	cfg.Hooks.BeforeLogin = func(context.Context, authcore.Credentials, uuid.UUID, authcore.Options) { panic("observer") }
	cfg.Hooks.AfterLogin = func(context.Context, identity.PublicUser, authcore.Tokens, authcore.Session, authcore.Options) {
		panic("observer")
	}

	out, err := f.svc.Login(context.Background(), authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{}, cfg)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.Tokens == nil || out.User == nil {
		t.Fatalf("expected authenticated outcome")
	}
}

func TestLoginValidateUserGate(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	register(t, f, "ada@acme.com", tenantID)

	gate := apperr.Forbidden("blocked").WithCode("BLOCKED")
	cfg := tenantConfig()
	cfg.Hooks.ValidateUser = func(context.Context, identity.User, authcore.Options) error { return gate }

	_, err := f.svc.Login(context.Background(), authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{}, cfg)
	if !errors.Is(err, gate) {
		t.Fatalf("expected gate error to propagate unchanged, got %v", err)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	register(t, f, "ada@acme.com", tenantID)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, authcore.Credentials{Email: "ada@acme.com", Password: "Wr0ng!Pass"}, tenantID, authcore.Options{}, tenantConfig())
		if apperr.GetCode(err) != authcore.CodeInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}

	_, err := f.svc.Login(ctx, authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{}, tenantConfig())
	if apperr.GetCode(err) != authcore.CodeAccountLocked {
		t.Fatalf("expected lockout, got %v", err)
	}

	user, _ := f.users.GetUserByEmail(ctx, "ada@acme.com")
	if user.Security.LockedUntil == nil {
		t.Fatalf("expected lock to be stamped on the user")
	}
}

func TestLoginIssuesTenantRoles(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	register(t, f, "ada@acme.com", tenantID, "admin")

	out, err := f.svc.Login(context.Background(), authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{IP: "10.0.0.1"}, tenantConfig())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if out.RequiresMFA() {
		t.Fatalf("did not expect a challenge")
	}
	if out.Session.IP != "10.0.0.1" {
		t.Fatalf("expected session ip to be recorded")
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t, func(s *authcore.Settings) { s.RequireEmailVerification = true })
	tenantID := uuid.New()
	out := register(t, f, "ada@acme.com", tenantID)
	if !out.VerificationRequired {
		t.Fatalf("expected verification to be required")
	}
	ctx := context.Background()

	_, err := f.svc.Login(ctx, authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{}, tenantConfig())
	if apperr.GetCode(err) != authcore.CodeEmailNotVerified {
		t.Fatalf("expected EMAIL_NOT_VERIFIED, got %v", err)
	}

	evt, ok := f.bus.last("auth.email.verification_requested")
	if !ok {
		t.Fatalf("expected verification event")
	}
	verify := evt.(events.EmailVerificationRequested)
	if err := f.svc.VerifyEmail(ctx, verify.VerifyToken); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, verify.VerifyToken); apperr.GetCode(err) != authcore.CodeInvalidToken {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}

	if _, err := f.svc.Login(ctx, authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{}, tenantConfig()); err != nil {
		t.Fatalf("login after verification: %v", err)
	}
}

func TestMFAChallengeFlow(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	reg := register(t, f, "ada@acme.com", tenantID)
	ctx := context.Background()

	enrollment, err := f.svc.EnableMFA(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	if len(enrollment.QRCodePNG) == 0 || !strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected enrollment %+v", enrollment)
	}
	code, _ := totp.GenerateCode(enrollment.Secret, time.Now())
	if err := f.svc.ConfirmMFA(ctx, reg.User.ID, enrollment.MethodID, code); err != nil {
		t.Fatalf("confirm mfa: %v", err)
	}

	afterLogin := false
	cfg := tenantConfig()
	cfg.Hooks.AfterLogin = func(context.Context, identity.PublicUser, authcore.Tokens, authcore.Session, authcore.Options) {
		afterLogin = true
	}

	out, err := f.svc.Login(ctx, authcore.Credentials{Email: "ada@acme.com", Password: strongPassword}, tenantID, authcore.Options{}, cfg)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !out.RequiresMFA() || out.Tokens != nil || out.User != nil {
		t.Fatalf("expected challenge only, got %+v", out)
	}
	if afterLogin {
		t.Fatalf("after login must not run before the second factor")
	}

	if _, err := f.svc.CompleteMFA(ctx, out.Challenge.ChallengeID, "000000", cfg); apperr.GetCode(err) != authcore.CodeInvalidMFACode {
		t.Fatalf("expected invalid code, got %v", err)
	}

	code, _ = totp.GenerateCode(enrollment.Secret, time.Now())
	done, err := f.svc.CompleteMFA(ctx, out.Challenge.ChallengeID, code, cfg)
	if err != nil {
		t.Fatalf("complete mfa: %v", err)
	}
	if done.Tokens == nil || !afterLogin {
		t.Fatalf("expected tokens and after login hook")
	}
	if _, err := f.svc.CompleteMFA(ctx, out.Challenge.ChallengeID, code, cfg); apperr.GetCode(err) != authcore.CodeMFAChallengeInvalid {
		t.Fatalf("expected consumed challenge to be rejected, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t, nil)
	tenantID := uuid.New()
	reg := register(t, f, "ada@acme.com", tenantID)
	ctx := context.Background()

	tokens, session, err := f.svc.Refresh(ctx, reg.Tokens.RefreshToken, tenantConfig())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tokens.RefreshToken == reg.Tokens.RefreshToken || session.ID != reg.Session.ID {
		t.Fatalf("expected rotated refresh on the same session")
	}
	if _, _, err := f.svc.Refresh(ctx, reg.Tokens.RefreshToken, tenantConfig()); apperr.GetCode(err) != authcore.CodeSessionInvalid {
		t.Fatalf("expected old refresh token to be rejected, got %v", err)
	}

	if err := f.svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := f.svc.Refresh(ctx, tokens.RefreshToken, tenantConfig()); apperr.GetCode(err) != authcore.CodeSessionInvalid {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestPasswordResetRejectsReuse(t *testing.T) {
	f := newFixture(t, nil)
	register(t, f, "ada@acme.com", uuid.New())
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, "nobody@acme.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if err := f.svc.RequestPasswordReset(ctx, "ada@acme.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	evt, ok := f.bus.last("auth.password.reset_requested")
	if !ok {
		t.Fatalf("expected reset event")
	}
	reset := evt.(events.PasswordResetRequested)

	if err := f.svc.ResetPassword(ctx, reset.ResetToken, strongPassword); apperr.GetCode(err) != authcore.CodePasswordReused {
		t.Fatalf("expected reuse rejection, got %v", err)
	}

	_ = f.svc.RequestPasswordReset(ctx, "ada@acme.com")
	evt, _ = f.bus.last("auth.password.reset_requested")
	reset = evt.(events.PasswordResetRequested)
	if err := f.svc.ResetPassword(ctx, reset.ResetToken, "N3w!Password"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	user, _ := f.users.GetUserByEmail(ctx, "ada@acme.com")
	if len(user.PasswordHistory) != 1 {
		t.Fatalf("expected previous hash in history, got %d", len(user.PasswordHistory))
	}
}
