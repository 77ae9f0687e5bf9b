package authcore

import (
	"context"
	"fmt"

	"tenant_auth_backend/internal/authcore/token"
	"tenant_auth_backend/internal/identity"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const qrCodeSize = 256

// EnableMFA starts TOTP enrollment. Any earlier unverified method is
// replaced; verified methods are kept until the new one is confirmed.
func (s *Service) EnableMFA(ctx context.Context, userID uuid.UUID) (MFAEnrollment, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return MFAEnrollment{}, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.settings.MFAIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return MFAEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrCodeSize)
	if err != nil {
		return MFAEnrollment{}, fmt.Errorf("render totp qr code: %w", err)
	}

	method := identity.MFAMethod{
		ID:        token.NewID(),
		Type:      identity.MFAMethodTOTP,
		Secret:    key.Secret(),
		CreatedAt: s.now().UTC(),
	}
	mfa := user.MFA
	kept := make([]identity.MFAMethod, 0, len(mfa.Methods)+1)
	for _, m := range mfa.Methods {
		if m.Verified {
			kept = append(kept, m)
		}
	}
	mfa.Methods = append(kept, method)

	if err := s.users.SaveMFA(ctx, user.ID, mfa); err != nil {
		return MFAEnrollment{}, err
	}
	return MFAEnrollment{
		MethodID:        method.ID,
		Secret:          method.Secret,
		ProvisioningURI: key.URL(),
		QRCodePNG:       png,
	}, nil
}

// ConfirmMFA verifies the first code from a pending method and switches MFA on.
func (s *Service) ConfirmMFA(ctx context.Context, userID uuid.UUID, methodID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	mfa := user.MFA
	mfa.Methods = append([]identity.MFAMethod(nil), user.MFA.Methods...)
	for i, m := range mfa.Methods {
		if m.ID != methodID {
			continue
		}
		if !totp.Validate(code, m.Secret) {
			return apperr.Unauthorized("invalid verification code").WithCode(CodeInvalidMFACode).WithOp("authcore.confirm_mfa")
		}
		mfa.Methods[i].Verified = true
		mfa.Enabled = true
		return s.users.SaveMFA(ctx, user.ID, mfa)
	}
	return apperr.NotFound("mfa method not found").WithCode(CodeMFANotEnrolled).WithOp("authcore.confirm_mfa")
}

func verifyTOTP(methods []identity.MFAMethod, code string) bool {
	if code == "" {
		return false
	}
	for _, m := range methods {
		if m.Type == identity.MFAMethodTOTP && totp.Validate(code, m.Secret) {
			return true
		}
	}
	return false
}
