package services

import (
	"context"
	"time"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/internal/auth/totp"
)

// TOTPSetup is the enrollment material returned once at setup time.
type TOTPSetup struct {
	Secret      string   `json:"secret"`
	OtpauthURL  string   `json:"otpauth_url"`
	QRCode      string   `json:"qr_code"` // PNG data URL
	BackupCodes []string `json:"backup_codes"`
}

// TOTPService manages TOTP enrollment and verification. Enrollment is
// two-step: GenerateSecret stores the pending secret, and only a verified
// code in Enable flips the user's MFA on. A secret nobody has proven
// possession of never gates a login.
type TOTPService struct {
	users  domain.UserRepository
	issuer string
}

// NewTOTPService creates a TOTPService. The issuer is what authenticator
// apps display next to the account.
func NewTOTPService(users domain.UserRepository, issuer string) *TOTPService {
	return &TOTPService{users: users, issuer: issuer}
}

// GenerateSecret starts enrollment: a fresh secret and backup codes are
// stored on the user in pending state, MFA stays disabled.
func (s *TOTPService) GenerateSecret(ctx context.Context, userID string) (*TOTPSetup, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := totp.GenerateSecret(s.issuer, user.Email)
	if err != nil {
		return nil, err
	}
	qr, err := totp.QRCodeDataURL(key)
	if err != nil {
		return nil, err
	}
	codes, err := totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.MfaSecret = key.Secret()
	user.BackupCodes = normalizeAll(codes)
	user.MfaEnabled = false
	user.MfaPendingAt = &now
	if err := s.users.UpdateMfaState(ctx, user); err != nil {
		return nil, err
	}

	return &TOTPSetup{
		Secret:      key.Secret(),
		OtpauthURL:  key.URL(),
		QRCode:      qr,
		BackupCodes: codes,
	}, nil
}

// Enable completes enrollment by verifying a live code from the
// authenticator app, then turns MFA on.
func (s *TOTPService) Enable(ctx context.Context, userID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MfaSecret == "" {
		return serrors.ErrMfaNotSetup
	}
	if !totp.ValidateCode(user.MfaSecret, code) {
		return serrors.ErrMfaInvalid
	}
	now := time.Now()
	user.MfaEnabled = true
	user.MfaMethod = domain.MfaMethodTOTP
	user.MfaPendingAt = nil
	user.LastMfaUsedAt = &now
	return s.users.UpdateMfaState(ctx, user)
}

// VerifyCode checks a TOTP code for an enrolled user.
func (s *TOTPService) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.MfaEnabled || user.MfaSecret == "" {
		return false, serrors.ErrMfaNotSetup
	}
	return totp.ValidateCode(user.MfaSecret, code), nil
}

// VerifyBackupCode redeems a single-use backup code. The repository removes
// the code atomically, so a code redeemed twice concurrently succeeds once.
func (s *TOTPService) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	normalized := totp.NormalizeBackupCode(code)
	if normalized == "" {
		return false, nil
	}
	return s.users.ConsumeBackupCode(ctx, userID, normalized)
}

// RegenerateBackupCodes replaces the user's backup codes and returns the
// new set in display form.
func (s *TOTPService) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	codes, err := totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	user.BackupCodes = normalizeAll(codes)
	if err := s.users.UpdateMfaState(ctx, user); err != nil {
		return nil, err
	}
	return codes, nil
}

// CurrentCode computes the code for a secret right now. Debug aid, used by
// tests and the CLI, never exposed over HTTP.
func (s *TOTPService) CurrentCode(secret string) (string, error) {
	return totp.GenerateCode(secret, time.Now())
}

func normalizeAll(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = totp.NormalizeBackupCode(c)
	}
	return out
}
