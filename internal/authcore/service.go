package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenant_auth_backend/internal/authcore/password"
	"tenant_auth_backend/internal/authcore/token"
	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/platform/apperr"
	"tenant_auth_backend/platform/logger"
	"tenant_auth_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	opRegister    = "authcore.register"
	opLogin       = "authcore.login"
	opCompleteMFA = "authcore.complete_mfa"
	opRefresh     = "authcore.refresh"
	opLogout      = "authcore.logout"

	refreshTokenBytes        = 48
	provisionedPasswordBytes = 24
)

// Deps groups the collaborators of Service.
type Deps struct {
	Users      UserStore
	Sessions   SessionStore
	Attempts   AttemptTracker
	Challenges ChallengeStore
	Hasher     *password.Hasher
	Validator  *validator.Validator
	Events     events.Bus
	Log        *logger.Logger
}

type Service struct {
	users      UserStore
	sessions   SessionStore
	attempts   AttemptTracker
	challenges ChallengeStore
	hasher     *password.Hasher
	signer     *token.Signer
	val        *validator.Validator
	events     events.Bus
	log        *logger.Logger
	settings   Settings
	now        func() time.Time
}

func New(deps Deps, settings Settings) *Service {
	if deps.Hasher == nil {
		deps.Hasher = password.NewHasher(0)
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if settings.PasswordHistorySize <= 0 {
		settings.PasswordHistorySize = 5
	}
	return &Service{
		users:      deps.Users,
		sessions:   deps.Sessions,
		attempts:   deps.Attempts,
		challenges: deps.Challenges,
		hasher:     deps.Hasher,
		signer:     token.NewSigner(settings.AccessSecret, settings.AccessTTL),
		val:        deps.Validator,
		events:     deps.Events,
		log:        deps.Log,
		settings:   settings,
		now:        time.Now,
	}
}

// Settings returns the process-wide settings the core was built with.
func (s *Service) Settings() Settings {
	return s.settings
}

// Register creates a user, opens a session and returns the sanitized user.
func (s *Service) Register(ctx context.Context, in RegisterInput, tenantID uuid.UUID, opts Options, cfg Config) (RegisterOutput, error) {
	opts.TenantID = tenantID
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	s.observe("before_register", func() {
		if cfg.Hooks.BeforeRegister != nil {
			cfg.Hooks.BeforeRegister(ctx, in, tenantID, opts)
		}
	})

	if opts.Provisioned && in.Password == "" {
		// The account holder sets a password through the reset flow.
		generated, err := token.GenerateRandomToken(provisionedPasswordBytes)
		if err != nil {
			return RegisterOutput{}, fmt.Errorf("%s: generate password: %w", opRegister, err)
		}
		in.Password = generated + "aA1!"
	}

	if err := s.val.Struct(in); err != nil {
		return RegisterOutput{}, apperr.Validation("invalid registration data").
			WithCode(CodeInvalidInput).
			WithDetails(validator.FieldErrors(err)).
			WithOp(opRegister)
	}
	if cfg.UserStructure.Has(GroupTenant) && len(in.Organizations) == 0 {
		return RegisterOutput{}, apperr.Validation("tenant users need at least one organization membership").
			WithCode(CodeMembershipRequired).
			WithOp(opRegister)
	}

	if existing, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return s.join(ctx, existing, in, opts, cfg)
	} else if !errors.Is(err, identity.ErrNotFound) {
		return RegisterOutput{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return RegisterOutput{}, fmt.Errorf("%s: hash password: %w", opRegister, err)
	}

	user := s.buildUser(in, hash, cfg.UserStructure)
	if cfg.Hooks.EnrichUserData != nil {
		if err := cfg.Hooks.EnrichUserData(ctx, &user, opts); err != nil {
			return RegisterOutput{}, err
		}
	}

	if err := s.users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return RegisterOutput{}, errEmailTaken(opRegister)
		}
		return RegisterOutput{}, err
	}

	verificationRequired := s.settings.RequireEmailVerification && !user.Verification.EmailVerified
	if verificationRequired {
		if err := s.issueVerification(ctx, user); err != nil {
			return RegisterOutput{}, err
		}
	}
	return s.finishRegister(ctx, user, verificationRequired, opts, cfg)
}

// join adds the requested memberships to an account that already exists.
// Self-service joins must present the account password and count towards
// the login lockout; accounts with a second factor join only when an
// administrator provisions them.
func (s *Service) join(ctx context.Context, user identity.User, in RegisterInput, opts Options, cfg Config) (RegisterOutput, error) {
	if !cfg.UserStructure.Has(GroupTenant) {
		return RegisterOutput{}, errEmailTaken(opRegister)
	}
	if !opts.Provisioned {
		failures, err := s.attempts.Failures(ctx, user.Email)
		if err != nil {
			return RegisterOutput{}, err
		}
		if failures >= s.settings.MaxLoginAttempts {
			return RegisterOutput{}, apperr.TooManyRequests("too many failed login attempts, try again later").
				WithCode(CodeAccountLocked).
				WithOp(opRegister)
		}
		if err := s.hasher.Compare(user.PasswordHash, in.Password); err != nil {
			s.recordFailure(ctx, user.Email, &user)
			return RegisterOutput{}, errEmailTaken(opRegister)
		}
		if err := s.attempts.Reset(ctx, user.Email); err != nil {
			s.log.WithContext(ctx).Warn("failed to reset login attempts", "error", err)
		}
		if user.MFA.Enabled && len(user.MFA.VerifiedMethods()) > 0 {
			return RegisterOutput{}, apperr.Forbidden("account uses a second factor; ask an administrator to add it to the organization").
				WithCode(CodeMFALoginRequired).
				WithOp(opRegister)
		}
	}
	if user.Status == identity.UserSuspended {
		return RegisterOutput{}, apperr.Forbidden("account is suspended").WithCode(CodeAccountSuspended).WithOp(opRegister)
	}

	for _, m := range in.Organizations {
		m.IsPrimary = false
		if err := s.users.AddMembership(ctx, user.ID, m); err != nil {
			if errors.Is(err, identity.ErrMembershipExists) {
				return RegisterOutput{}, apperr.Conflict("account is already a member of this organization").
					WithCode(CodeMembershipExists).
					WithOp(opRegister)
			}
			return RegisterOutput{}, fmt.Errorf("%s: add membership: %w", opRegister, err)
		}
	}

	joined, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return RegisterOutput{}, err
	}
	verificationRequired := s.settings.RequireEmailVerification && !joined.Verification.EmailVerified
	return s.finishRegister(ctx, joined, verificationRequired, opts, cfg)
}

func (s *Service) finishRegister(ctx context.Context, user identity.User, verificationRequired bool, opts Options, cfg Config) (RegisterOutput, error) {
	var (
		tokens  Tokens
		session Session
		err     error
	)
	if !opts.Provisioned {
		tokens, session, err = s.openSession(ctx, user, opts)
		if err != nil {
			return RegisterOutput{}, err
		}
	}

	public := s.sanitize(user, opts, cfg)
	s.observe("after_register", func() {
		if cfg.Hooks.AfterRegister != nil {
			cfg.Hooks.AfterRegister(ctx, public, tokens, session, opts)
		}
	})
	s.log.AuthEvent("register", user.Email, true, "")

	return RegisterOutput{
		User:                 public,
		Tokens:               tokens,
		Session:              session,
		VerificationRequired: verificationRequired,
	}, nil
}

// Login authenticates credentials. When the user has a verified second
// factor the outcome carries only a Challenge.
func (s *Service) Login(ctx context.Context, creds Credentials, tenantID uuid.UUID, opts Options, cfg Config) (LoginOutcome, error) {
	opts.TenantID = tenantID
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))

	s.observe("before_login", func() {
		if cfg.Hooks.BeforeLogin != nil {
			cfg.Hooks.BeforeLogin(ctx, creds, tenantID, opts)
		}
	})

	if err := s.val.Struct(creds); err != nil {
		return LoginOutcome{}, errInvalidCredentials(opLogin)
	}

	failures, err := s.attempts.Failures(ctx, creds.Email)
	if err != nil {
		return LoginOutcome{}, err
	}
	if failures >= s.settings.MaxLoginAttempts {
		s.log.AuthEvent("login", creds.Email, false, "locked")
		return LoginOutcome{}, apperr.TooManyRequests("too many failed login attempts, try again later").
			WithCode(CodeAccountLocked).
			WithOp(opLogin)
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, identity.ErrNotFound) {
		s.recordFailure(ctx, creds.Email, nil)
		return LoginOutcome{}, errInvalidCredentials(opLogin)
	}
	if err != nil {
		return LoginOutcome{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, creds.Password); err != nil {
		s.recordFailure(ctx, creds.Email, &user)
		return LoginOutcome{}, errInvalidCredentials(opLogin)
	}

	if user.Status == identity.UserSuspended {
		return LoginOutcome{}, apperr.Forbidden("account is suspended").WithCode(CodeAccountSuspended).WithOp(opLogin)
	}
	if s.settings.RequireEmailVerification && !user.Verification.EmailVerified {
		return LoginOutcome{}, apperr.Forbidden("email address is not verified").WithCode(CodeEmailNotVerified).WithOp(opLogin)
	}
	if cfg.Hooks.ValidateUser != nil {
		if err := cfg.Hooks.ValidateUser(ctx, user, opts); err != nil {
			return LoginOutcome{}, err
		}
	}

	if err := s.attempts.Reset(ctx, creds.Email); err != nil {
		s.log.WithContext(ctx).Warn("failed to reset login attempts", "error", err)
	}

	if methods := user.MFA.VerifiedMethods(); user.MFA.Enabled && len(methods) > 0 {
		challenge, err := s.createChallenge(ctx, user, methods, opts)
		if err != nil {
			return LoginOutcome{}, err
		}
		s.log.AuthEvent("login_mfa_challenge", user.Email, true, "")
		return LoginOutcome{Challenge: &challenge}, nil
	}

	outcome, err := s.completeLogin(ctx, user, opts, cfg)
	if err != nil {
		return LoginOutcome{}, err
	}
	outcome.MFASetupRequired = s.settings.RequireMFA
	return outcome, nil
}

// CompleteMFA finishes a login that returned a challenge.
func (s *Service) CompleteMFA(ctx context.Context, challengeID, code string, cfg Config) (LoginOutcome, error) {
	pending, err := s.challenges.Get(ctx, challengeID)
	if errors.Is(err, ErrChallengeNotFound) {
		return LoginOutcome{}, apperr.Unauthorized("mfa challenge is invalid or expired").WithCode(CodeMFAChallengeInvalid).WithOp(opCompleteMFA)
	}
	if err != nil {
		return LoginOutcome{}, err
	}

	user, err := s.users.GetUserByID(ctx, pending.UserID)
	if err != nil {
		return LoginOutcome{}, err
	}

	if !verifyTOTP(user.MFA.VerifiedMethods(), code) {
		attemptKey := "mfa:" + pending.ID
		n, _ := s.attempts.RecordFailure(ctx, attemptKey, time.Until(pending.ExpiresAt))
		if n >= s.settings.MaxLoginAttempts {
			_ = s.challenges.Delete(ctx, pending.ID)
		}
		s.log.AuthEvent("mfa", user.Email, false, "invalid code")
		return LoginOutcome{}, apperr.Unauthorized("invalid verification code").WithCode(CodeInvalidMFACode).WithOp(opCompleteMFA)
	}

	// Membership may have changed while the challenge was pending.
	if cfg.Hooks.ValidateUser != nil {
		if err := cfg.Hooks.ValidateUser(ctx, user, pending.Options); err != nil {
			return LoginOutcome{}, err
		}
	}
	if err := s.challenges.Delete(ctx, pending.ID); err != nil {
		return LoginOutcome{}, err
	}
	_ = s.attempts.Reset(ctx, "mfa:"+pending.ID)

	return s.completeLogin(ctx, user, pending.Options, cfg)
}

// Refresh rotates the refresh token of an existing session and mints a new
// access token. ValidateUser runs again so a revoked membership ends the session.
func (s *Service) Refresh(ctx context.Context, refreshToken string, cfg Config) (Tokens, Session, error) {
	oldHash := token.HashSHA256(refreshToken)
	sessionID, err := s.sessions.SessionIDForRefresh(ctx, oldHash)
	if errors.Is(err, ErrSessionNotFound) {
		return Tokens{}, Session{}, apperr.Unauthorized("session is invalid or expired").WithCode(CodeSessionInvalid).WithOp(opRefresh)
	}
	if err != nil {
		return Tokens{}, Session{}, err
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Tokens{}, Session{}, apperr.Unauthorized("session is invalid or expired").WithCode(CodeSessionInvalid).WithOp(opRefresh)
	}
	if err != nil {
		return Tokens{}, Session{}, err
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return Tokens{}, Session{}, err
	}
	opts := Options{TenantID: session.TenantID, IP: session.IP, UserAgent: session.UserAgent, DeviceFingerprint: session.DeviceFingerprint}
	if cfg.Hooks.ValidateUser != nil {
		if err := cfg.Hooks.ValidateUser(ctx, user, opts); err != nil {
			_ = s.sessions.Delete(ctx, session.ID)
			return Tokens{}, Session{}, err
		}
	}

	newRefresh, err := token.GenerateRandomToken(refreshTokenBytes)
	if err != nil {
		return Tokens{}, Session{}, err
	}
	if err := s.sessions.RotateRefresh(ctx, session, oldHash, token.HashSHA256(newRefresh)); err != nil {
		return Tokens{}, Session{}, err
	}
	access, err := s.signer.Sign(token.AccessClaims{
		UserID:    user.ID,
		TenantID:  session.TenantID,
		SessionID: session.ID,
		Roles:     rolesFor(user, session.TenantID),
	})
	if err != nil {
		return Tokens{}, Session{}, err
	}
	return s.tokens(access, newRefresh), session, nil
}

// Logout deletes the session and its refresh index. Unknown sessions are
// treated as already logged out.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("%s: %w", opLogout, err)
	}
	return nil
}

func (s *Service) completeLogin(ctx context.Context, user identity.User, opts Options, cfg Config) (LoginOutcome, error) {
	tokens, session, err := s.openSession(ctx, user, opts)
	if err != nil {
		return LoginOutcome{}, err
	}
	public := s.sanitize(user, opts, cfg)
	s.observe("after_login", func() {
		if cfg.Hooks.AfterLogin != nil {
			cfg.Hooks.AfterLogin(ctx, public, tokens, session, opts)
		}
	})
	s.log.AuthEvent("login", user.Email, true, "")
	return LoginOutcome{User: &public, Tokens: &tokens, Session: &session}, nil
}

func (s *Service) buildUser(in RegisterInput, hash string, structure UserStructure) identity.User {
	user := identity.User{
		ID:              uuid.New(),
		Email:           in.Email,
		Username:        strings.TrimSpace(in.Username),
		PasswordHash:    hash,
		PasswordHistory: []string{},
		Metadata:        map[string]any{},
		Status:          identity.UserActive,
		Verification:    identity.Verification{EmailVerified: !s.settings.RequireEmailVerification},
		MFA:             identity.MFA{Methods: []identity.MFAMethod{}},
	}
	for k, v := range in.Metadata {
		user.Metadata[k] = v
	}
	delete(user.Metadata, identity.MetaPlatformAdmin)
	if structure.Has(GroupProfile) {
		user.Profile = in.Profile
	}
	if structure.Has(GroupTenant) {
		user.Organizations = append([]identity.Membership(nil), in.Organizations...)
	}
	return user
}

func (s *Service) openSession(ctx context.Context, user identity.User, opts Options) (Tokens, Session, error) {
	now := s.now().UTC()
	session := Session{
		ID:                token.NewID(),
		UserID:            user.ID,
		TenantID:          opts.TenantID,
		IP:                opts.IP,
		UserAgent:         opts.UserAgent,
		DeviceFingerprint: opts.DeviceFingerprint,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.settings.SessionTimeout),
	}

	refresh, err := token.GenerateRandomToken(refreshTokenBytes)
	if err != nil {
		return Tokens{}, Session{}, err
	}
	if err := s.sessions.Save(ctx, session, token.HashSHA256(refresh)); err != nil {
		return Tokens{}, Session{}, fmt.Errorf("save session: %w", err)
	}

	access, err := s.signer.Sign(token.AccessClaims{
		UserID:    user.ID,
		TenantID:  opts.TenantID,
		SessionID: session.ID,
		Roles:     rolesFor(user, opts.TenantID),
	})
	if err != nil {
		return Tokens{}, Session{}, err
	}
	return s.tokens(access, refresh), session, nil
}

func (s *Service) tokens(access, refresh string) Tokens {
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.signer.TTL().Seconds()),
		TokenType:    "Bearer",
	}
}

func (s *Service) createChallenge(ctx context.Context, user identity.User, methods []identity.MFAMethod, opts Options) (MFAChallenge, error) {
	pending := PendingChallenge{
		ID:        token.NewID(),
		UserID:    user.ID,
		Options:   opts,
		ExpiresAt: s.now().UTC().Add(s.settings.ChallengeTTL),
	}
	if err := s.challenges.Put(ctx, pending); err != nil {
		return MFAChallenge{}, fmt.Errorf("store mfa challenge: %w", err)
	}

	types := make([]identity.MFAMethodType, 0, len(methods))
	seen := make(map[identity.MFAMethodType]bool, len(methods))
	for _, m := range methods {
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
	}
	return MFAChallenge{
		RequiresMFA: true,
		ChallengeID: pending.ID,
		Methods:     types,
		ExpiresAt:   pending.ExpiresAt,
	}, nil
}

// recordFailure bumps the rolling counter and, when the limit is hit,
// stamps the lock on the user's security block.
func (s *Service) recordFailure(ctx context.Context, email string, user *identity.User) {
	log := s.log.WithContext(ctx)
	n, err := s.attempts.RecordFailure(ctx, email, s.settings.LockoutWindow)
	if err != nil {
		log.Warn("failed to record login failure", "error", err)
	}
	s.log.AuthEvent("login", email, false, "invalid credentials")
	if user == nil {
		return
	}

	security := user.Security
	security.FailedLoginAttempts = n
	if n >= s.settings.MaxLoginAttempts {
		until := s.now().UTC().Add(s.settings.LockoutWindow)
		security.LockedUntil = &until
	}
	if err := s.users.UpdateSecurity(ctx, user.ID, security); err != nil {
		log.Warn("failed to persist login failure", "error", err)
	}
}

func (s *Service) sanitize(user identity.User, opts Options, cfg Config) identity.PublicUser {
	if cfg.Hooks.SanitizeUserData != nil {
		return cfg.Hooks.SanitizeUserData(user, opts)
	}
	return user.Public()
}

// observe runs an observer hook; panics are logged, never propagated.
func (s *Service) observe(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Recovered("authcore.hook."+hook, r)
		}
	}()
	fn()
}

// rolesFor returns the active membership's roles in tenantID, plus the
// platform role when an operator granted it.
func rolesFor(user identity.User, tenantID uuid.UUID) []string {
	roles := []string{}
	if m, ok := user.MembershipFor(tenantID); ok && tenantID != uuid.Nil && m.IsActive() {
		roles = m.RoleNames()
	}
	if user.IsPlatformAdmin() {
		roles = append(roles, identity.RolePlatformAdmin)
	}
	return roles
}
