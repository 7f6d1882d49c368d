package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/internal/auth"
	"github.com/skygenesisenterprise/aether-identity/internal/auth/totp"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
	"github.com/skygenesisenterprise/aether-identity/internal/notify"
)

// mfaCodeTTL is how long a delivered challenge code stays valid.
const mfaCodeTTL = 5 * time.Minute

// MFAVerifyResult reports the outcome of a verification attempt, including
// how many attempts remain when it failed.
type MFAVerifyResult struct {
	Verified          bool `json:"verified"`
	RemainingAttempts int  `json:"remaining_attempts"`
}

// MFAStatus is the user-facing view of their MFA configuration.
type MFAStatus struct {
	Enabled          bool             `json:"enabled"`
	Method           domain.MfaMethod `json:"method,omitempty"`
	BackupCodesLeft  int              `json:"backup_codes_left"`
	PendingEnrollment bool            `json:"pending_enrollment"`
}

// MFAService drives the second-factor challenge state machine: one pending
// session per user, three attempts per challenge, five-minute codes.
type MFAService struct {
	users    domain.UserRepository
	sessions domain.MfaSessionRepository
	totp     *TOTPService
	hasher   auth.PasswordHasher
	email    notify.EmailSender
	sms      notify.SMSSender
	audit    *AuditRecorder
}

// NewMFAService creates an MFAService.
func NewMFAService(
	users domain.UserRepository,
	sessions domain.MfaSessionRepository,
	totpService *TOTPService,
	hasher auth.PasswordHasher,
	email notify.EmailSender,
	sms notify.SMSSender,
	audit *AuditRecorder,
) *MFAService {
	return &MFAService{
		users:    users,
		sessions: sessions,
		totp:     totpService,
		hasher:   hasher,
		email:    email,
		sms:      sms,
		audit:    audit,
	}
}

// Setup begins enrollment for a method. TOTP returns the secret/QR payload;
// SMS and EMAIL record the method, regenerate backup codes and dispatch a
// verification code to the stored contact address.
func (s *MFAService) Setup(ctx context.Context, userID string, method domain.MfaMethod) (*TOTPSetup, error) {
	switch method {
	case domain.MfaMethodTOTP:
		return s.totp.GenerateSecret(ctx, userID)
	case domain.MfaMethodSMS, domain.MfaMethodEmail:
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if method == domain.MfaMethodSMS && user.PhoneNumber == "" {
			return nil, serrors.ErrMfaNotSetup
		}
		codes, err := totp.GenerateBackupCodes()
		if err != nil {
			return nil, err
		}
		now := time.Now()
		user.MfaMethod = method
		user.MfaEnabled = false
		user.MfaPendingAt = &now
		user.BackupCodes = normalizeAll(codes)
		if err := s.users.UpdateMfaState(ctx, user); err != nil {
			return nil, err
		}
		if err := s.SendCode(ctx, userID, method); err != nil {
			return nil, err
		}
		return &TOTPSetup{BackupCodes: codes}, nil
	default:
		return nil, fmt.Errorf("unsupported mfa method %q", method)
	}
}

// ConfirmSetup verifies the first challenge of a pending SMS/EMAIL
// enrollment and enables MFA. TOTP enrollment confirms via TOTPService.Enable.
func (s *MFAService) ConfirmSetup(ctx context.Context, userID, code string) error {
	result, err := s.Verify(ctx, userID, code, "")
	if err != nil {
		return err
	}
	if !result.Verified {
		return serrors.ErrMfaInvalid
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.MfaEnabled = true
	user.MfaPendingAt = nil
	return s.users.UpdateMfaState(ctx, user)
}

// SendCode issues a fresh 6-digit challenge, replacing any pending session
// and resetting the attempt counter. Delivery failure is logged, not
// returned: the code is in the session and the user can request another.
func (s *MFAService) SendCode(ctx context.Context, userID string, method domain.MfaMethod) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	code, err := generateNumericCode(6)
	if err != nil {
		return err
	}
	session := &domain.MfaSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		Method:        method,
		Code:          code,
		CodeExpiresAt: time.Now().Add(mfaCodeTTL),
		MaxAttempts:   domain.MfaSessionMaxAttempts,
		CreatedAt:     time.Now(),
	}
	if err := s.sessions.UpsertMfaSession(ctx, session); err != nil {
		return err
	}
	if metrics.MfaChallengesTotal != nil {
		metrics.MfaChallengesTotal.Inc()
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)
	switch method {
	case domain.MfaMethodSMS:
		if err := s.sms.SendSMS(ctx, user.PhoneNumber, body); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to deliver MFA code via SMS")
		}
	case domain.MfaMethodEmail:
		if err := s.email.SendEmail(ctx, user.Email, "Your verification code", body); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to deliver MFA code via email")
		}
	}
	return nil
}

// Verify checks a submitted code against the user's pending challenge.
// Every call burns an attempt; expired sessions and exhausted sessions are
// terminal for that challenge. method may be empty to use the user's
// configured method, or BACKUP_CODE to redeem a backup code.
func (s *MFAService) Verify(ctx context.Context, userID, code string, method domain.MfaMethod) (*MFAVerifyResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = user.MfaMethod
		if method == "" {
			method = domain.MfaMethodTOTP
		}
	}

	session, err := s.sessions.GetMfaSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, serrors.ErrSessionNotFound) {
			return nil, err
		}
		// TOTP and backup codes need no delivered challenge; create the
		// session lazily so the attempt counter still applies.
		session = &domain.MfaSession{
			ID:            uuid.NewString(),
			UserID:        userID,
			Method:        method,
			CodeExpiresAt: time.Now().Add(mfaCodeTTL),
			MaxAttempts:   domain.MfaSessionMaxAttempts,
			CreatedAt:     time.Now(),
		}
		if err := s.sessions.UpsertMfaSession(ctx, session); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if session.AttemptsExhausted() {
		s.recordMfa(ctx, user.ID, domain.AuditActionMfaFailed, "attempts exhausted")
		return nil, serrors.ErrMfaAttempts
	}
	if session.IsExpired(now) {
		s.recordMfa(ctx, user.ID, domain.AuditActionMfaFailed, "challenge expired")
		return nil, serrors.ErrMfaExpired
	}

	session.Attempts++

	var verified bool
	switch method {
	case domain.MfaMethodTOTP:
		if user.MfaSecret == "" {
			return nil, serrors.ErrMfaNotSetup
		}
		verified = totp.ValidateCode(user.MfaSecret, code)
	case domain.MfaMethodSMS, domain.MfaMethodEmail:
		verified = session.Code != "" && session.Code == code
	case domain.MfaMethodBackupCode:
		verified, err = s.totp.VerifyBackupCode(ctx, userID, code)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported mfa method %q", method)
	}

	if verified {
		session.IsVerified = true
		session.VerifiedAt = &now
	}
	if err := s.sessions.UpdateMfaSession(ctx, session); err != nil {
		return nil, err
	}

	if verified {
		user.LastMfaUsedAt = &now
		if err := s.users.UpdateMfaState(ctx, user); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to record MFA usage timestamp")
		}
		if metrics.MfaVerificationsTotal != nil {
			metrics.MfaVerificationsTotal.WithLabelValues("success").Inc()
		}
		s.recordMfa(ctx, user.ID, domain.AuditActionMfaVerified, string(method))
	} else {
		if metrics.MfaVerificationsTotal != nil {
			metrics.MfaVerificationsTotal.WithLabelValues("failure").Inc()
		}
		s.recordMfa(ctx, user.ID, domain.AuditActionMfaFailed, string(method))
	}

	return &MFAVerifyResult{
		Verified:          verified,
		RemainingAttempts: session.MaxAttempts - session.Attempts,
	}, nil
}

// Disable turns MFA off after re-proving the password, clears all MFA
// material and deletes pending challenges.
func (s *MFAService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return serrors.ErrInvalidCredentials
	}
	user.MfaEnabled = false
	user.MfaMethod = ""
	user.MfaSecret = ""
	user.BackupCodes = nil
	user.MfaPendingAt = nil
	if err := s.users.UpdateMfaState(ctx, user); err != nil {
		return err
	}
	if err := s.sessions.DeleteMfaSessions(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to delete MFA sessions on disable")
	}
	s.recordMfa(ctx, userID, domain.AuditActionMfaDisabled, "")
	return nil
}

// Status returns the user's MFA configuration summary.
func (s *MFAService) Status(ctx context.Context, userID string) (*MFAStatus, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MFAStatus{
		Enabled:           user.MfaEnabled,
		Method:            user.MfaMethod,
		BackupCodesLeft:   len(user.BackupCodes),
		PendingEnrollment: !user.MfaEnabled && user.MfaPendingAt != nil,
	}, nil
}

// Required reports whether a login for this user must pass a second factor.
func (s *MFAService) Required(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.MfaEnabled, nil
}

func (s *MFAService) recordMfa(ctx context.Context, userID, action, details string) {
	status := domain.AuditSuccess
	if action == domain.AuditActionMfaFailed {
		status = domain.AuditFailure
	}
	s.audit.Record(ctx, &domain.AuditEvent{
		UserID:  userID,
		Action:  action,
		Status:  status,
		Details: details,
	})
}

// generateNumericCode returns n uniformly random decimal digits.
func generateNumericCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate mfa code: %w", err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
