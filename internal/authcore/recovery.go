package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tenant_auth_backend/internal/authcore/token"
	"tenant_auth_backend/internal/events"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/platform/apperr"
	"tenant_auth_backend/platform/validator"

	"github.com/google/uuid"
)

const recoveryTokenBytes = 32

// RequestPasswordReset issues a reset token for email. Unknown addresses
// succeed silently so the endpoint cannot be used to enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := token.GenerateRandomToken(recoveryTokenBytes)
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(s.settings.ResetTokenTTL)
	if err := s.users.CreateUserToken(ctx, user.ID, token.HashSHA256(raw), identity.TokenTypePasswordReset, expires); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.publish(ctx, events.PasswordResetRequested{
		BaseEvent:  events.NewBaseEvent(),
		UserID:     user.ID,
		Email:      user.Email,
		ResetToken: raw,
	})
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The current
// password and recent history may not be reused.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	const op = "authcore.reset_password"

	if err := s.val.Var(newPassword, "required,strongpassword"); err != nil {
		return apperr.Validation(validator.PasswordPolicy).WithCode(CodeInvalidInput).WithOp(op)
	}

	userID, err := s.consumeToken(ctx, rawToken, identity.TokenTypePasswordReset, op)
	if err != nil {
		return err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if s.hasher.Compare(user.PasswordHash, newPassword) == nil || s.hasher.MatchesAny(user.PasswordHistory, newPassword) {
		return apperr.Validation("password was used recently").WithCode(CodePasswordReused).WithOp(op)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: hash password: %w", op, err)
	}
	history := append([]string{user.PasswordHash}, user.PasswordHistory...)
	if len(history) > s.settings.PasswordHistorySize {
		history = history[:s.settings.PasswordHistorySize]
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, history); err != nil {
		return err
	}
	if err := s.attempts.Reset(ctx, user.Email); err != nil {
		s.log.WithContext(ctx).Warn("failed to reset login attempts", "error", err)
	}
	s.log.AuthEvent("password_reset", user.Email, true, "")
	return nil
}

// VerifyEmail consumes an email verification token.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	const op = "authcore.verify_email"

	userID, err := s.consumeToken(ctx, rawToken, identity.TokenTypeEmailVerify, op)
	if err != nil {
		return err
	}
	return s.users.MarkEmailVerified(ctx, userID, s.now().UTC())
}

func (s *Service) issueVerification(ctx context.Context, user identity.User) error {
	raw, err := token.GenerateRandomToken(recoveryTokenBytes)
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(s.settings.VerifyTokenTTL)
	if err := s.users.CreateUserToken(ctx, user.ID, token.HashSHA256(raw), identity.TokenTypeEmailVerify, expires); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	s.publish(ctx, events.EmailVerificationRequested{
		BaseEvent:   events.NewBaseEvent(),
		UserID:      user.ID,
		Email:       user.Email,
		VerifyToken: raw,
	})
	return nil
}

func (s *Service) consumeToken(ctx context.Context, rawToken, tokenType, op string) (uuid.UUID, error) {
	if strings.TrimSpace(rawToken) == "" {
		return uuid.UUID{}, errInvalidToken(op)
	}
	hash := token.HashSHA256(rawToken)
	userID, expiresAt, err := s.users.GetUserToken(ctx, hash, tokenType)
	if errors.Is(err, identity.ErrNotFound) || errors.Is(err, identity.ErrTokenUsed) {
		return uuid.UUID{}, errInvalidToken(op)
	}
	if err != nil {
		return uuid.UUID{}, err
	}
	if s.now().After(expiresAt) {
		return uuid.UUID{}, errTokenExpired(op)
	}
	if err := s.users.UseUserToken(ctx, hash, tokenType); err != nil {
		if errors.Is(err, identity.ErrTokenUsed) || errors.Is(err, identity.ErrNotFound) {
			return uuid.UUID{}, errInvalidToken(op)
		}
		return uuid.UUID{}, err
	}
	return userID, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}
