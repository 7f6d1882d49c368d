package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/internal/auth"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
)

// Lockout and session policy.
const (
	MaxFailedLoginAttempts = 5
	LockoutDuration        = 15 * time.Minute
	SsoSessionTTL          = 30 * 24 * time.Hour

	// loginMfaChallengeTTL is the window a login gets to complete its
	// second factor, longer than the delivered-code TTL.
	loginMfaChallengeTTL = 10 * time.Minute
)

// LoginRequest is one authentication attempt.
type LoginRequest struct {
	Email     string
	Password  string
	MfaCode   string
	ClientID  string
	IPAddress string
	UserAgent string
}

// LoginResult is the outcome of a successful (or MFA-gated) login.
type LoginResult struct {
	MfaRequired  bool             `json:"mfa_required"`
	MfaSessionID string           `json:"mfa_session_id,omitempty"`
	Tokens       *domain.TokenSet `json:"tokens,omitempty"`
	SessionToken string           `json:"session_token,omitempty"`
	User         *domain.User     `json:"-"`
}

// AuthService implements the login state machine: credential check,
// lockout, MFA gating, and token issuance with refresh rotation.
type AuthService struct {
	users       domain.UserRepository
	sessions    domain.SessionRepository
	mfaSessions domain.MfaSessionRepository
	refreshRepo domain.RefreshTokenRepository
	tokens      *TokenService
	mfa         *MFAService
	hasher      auth.PasswordHasher
	audit       *AuditRecorder
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	mfaSessions domain.MfaSessionRepository,
	refreshRepo domain.RefreshTokenRepository,
	tokens *TokenService,
	mfa *MFAService,
	hasher auth.PasswordHasher,
	audit *AuditRecorder,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		mfaSessions: mfaSessions,
		refreshRepo: refreshRepo,
		tokens:      tokens,
		mfa:         mfa,
		hasher:      hasher,
		audit:       audit,
	}
}

// Login runs the authentication state machine. Unknown email and wrong
// password return the same error. When the user has MFA enabled and no
// code was supplied, the result carries an MFA session ID instead of
// tokens and the caller must come back with a code.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, serrors.ErrUserNotFound) {
			s.recordLoginFailure(ctx, "", req, "unknown email")
			return nil, serrors.ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if user.Status != domain.UserStatusActive {
		s.recordLoginFailure(ctx, user.ID, req, "account not active")
		return nil, serrors.ErrAccountDisabled
	}
	if user.IsLocked(now) {
		s.recordLoginFailure(ctx, user.ID, req, "account locked")
		return nil, serrors.ErrAccountLocked
	}

	if err := s.hasher.Verify(user.PasswordHash, req.Password); err != nil {
		s.handleFailedPassword(ctx, user, req)
		return nil, serrors.ErrInvalidCredentials
	}

	if user.MfaEnabled {
		if req.MfaCode == "" {
			session := &domain.MfaSession{
				ID:            uuid.NewString(),
				UserID:        user.ID,
				Method:        user.MfaMethod,
				CodeExpiresAt: now.Add(loginMfaChallengeTTL),
				MaxAttempts:   domain.MfaSessionMaxAttempts,
				CreatedAt:     now,
			}
			if err := s.mfaSessions.UpsertMfaSession(ctx, session); err != nil {
				return nil, err
			}
			s.audit.Record(ctx, &domain.AuditEvent{
				UserID: user.ID, Action: domain.AuditActionMfaChallenge,
				Status: domain.AuditSuccess, IPAddress: req.IPAddress, UserAgent: req.UserAgent,
			})
			return &LoginResult{MfaRequired: true, MfaSessionID: session.ID}, nil
		}
		result, err := s.mfa.Verify(ctx, user.ID, req.MfaCode, "")
		if err != nil {
			return nil, err
		}
		if !result.Verified {
			return nil, serrors.ErrMfaInvalid
		}
	}

	if err := s.users.ResetLoginFailures(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to reset login failure counter")
	}

	session, err := s.CreateSsoSession(ctx, user.ID, req.IPAddress, req.UserAgent)
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokens.GenerateTokenSet(ctx, user, req.ClientID, "", "")
	if err != nil {
		return nil, err
	}

	if metrics.LoginSuccessTotal != nil {
		metrics.LoginSuccessTotal.Inc()
	}
	s.audit.Record(ctx, &domain.AuditEvent{
		UserID: user.ID, Action: domain.AuditActionLogin,
		Status: domain.AuditSuccess, IPAddress: req.IPAddress, UserAgent: req.UserAgent,
	})

	return &LoginResult{
		Tokens:       tokens,
		SessionToken: session.SessionToken,
		User:         user,
	}, nil
}

// RefreshToken rotates a refresh token: the presented token is verified,
// its record revoked, and a fresh pair issued. Revocation is conditional
// on the record not already being revoked, so two racing refreshes of the
// same token cannot both win.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	if jti == "" || sub == "" {
		return nil, serrors.ErrTokenInvalid
	}

	record, err := s.refreshRepo.GetRefreshTokenByTokenID(ctx, jti)
	if err != nil {
		return nil, serrors.ErrTokenInvalid
	}
	now := time.Now()
	if record.IsRevoked {
		return nil, serrors.ErrTokenRevoked
	}
	if record.IsExpired(now) {
		return nil, serrors.ErrTokenExpired
	}

	user, err := s.users.GetUserByID(ctx, sub)
	if err != nil {
		return nil, serrors.ErrTokenInvalid
	}
	if user.Status != domain.UserStatusActive {
		return nil, serrors.ErrAccountDisabled
	}

	revoked, err := s.refreshRepo.RevokeRefreshToken(ctx, jti, now)
	if err != nil {
		return nil, err
	}
	if !revoked {
		// Lost the race: someone else already rotated this token.
		return nil, serrors.ErrTokenRevoked
	}

	tokens, err := s.tokens.GenerateTokenSet(ctx, user, record.ClientID, record.Scope, "")
	if err != nil {
		return nil, err
	}
	if metrics.TokensRefreshedTotal != nil {
		metrics.TokensRefreshedTotal.Inc()
	}
	s.audit.Record(ctx, &domain.AuditEvent{
		UserID: user.ID, Action: domain.AuditActionTokenRefresh, Status: domain.AuditSuccess,
	})
	return tokens, nil
}

// GetUserPermissions returns the permission strings for a user.
func (s *AuthService) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.PermissionsForRole(user.Role), nil
}

// CreateSsoSession establishes a browser SSO session for the user.
func (s *AuthService) CreateSsoSession(ctx context.Context, userID, ip, userAgent string) (*domain.Session, error) {
	now := time.Now()
	session := &domain.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		SessionToken: uuid.NewString(),
		IPAddress:    ip,
		UserAgent:    userAgent,
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(SsoSessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if metrics.ActiveSessionsGauge != nil {
		metrics.ActiveSessionsGauge.Inc()
	}
	return session, nil
}

// ValidateSsoSession resolves a session token to its user, rejecting
// inactive and expired sessions.
func (s *AuthService) ValidateSsoSession(ctx context.Context, sessionToken string) (*domain.Session, error) {
	session, err := s.sessions.GetSessionByToken(ctx, sessionToken)
	if err != nil {
		return nil, serrors.ErrSessionNotFound
	}
	now := time.Now()
	if !session.IsActive || session.IsExpired(now) {
		return nil, serrors.ErrSessionNotFound
	}
	if err := s.sessions.TouchSession(ctx, session.ID, now); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to touch session")
	}
	return session, nil
}

// InvalidateSsoSession deactivates one session.
func (s *AuthService) InvalidateSsoSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeactivateSession(ctx, sessionID); err != nil {
		return err
	}
	if metrics.ActiveSessionsGauge != nil {
		metrics.ActiveSessionsGauge.Dec()
	}
	return nil
}

// InvalidateAllUserSessions deactivates every session of a user, used when
// credentials change or an account is compromised.
func (s *AuthService) InvalidateAllUserSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeactivateUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, &domain.AuditEvent{
		UserID: userID, Action: domain.AuditActionSessionRevoked,
		Status: domain.AuditSuccess,
	})
	return n, nil
}

func (s *AuthService) handleFailedPassword(ctx context.Context, user *domain.User, req LoginRequest) {
	var lockUntil *time.Time
	if user.FailedLoginAttempts+1 >= MaxFailedLoginAttempts {
		t := time.Now().Add(LockoutDuration)
		lockUntil = &t
	}
	if err := s.users.RecordFailedLogin(ctx, user.ID, lockUntil); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record login failure")
	}
	if lockUntil != nil {
		if metrics.AccountLockoutsTotal != nil {
			metrics.AccountLockoutsTotal.Inc()
		}
		s.audit.Record(ctx, &domain.AuditEvent{
			UserID: user.ID, Action: domain.AuditActionAccountLocked,
			Status: domain.AuditFailure, IPAddress: req.IPAddress, UserAgent: req.UserAgent,
		})
	}
	s.recordLoginFailure(ctx, user.ID, req, "wrong password")
}

func (s *AuthService) recordLoginFailure(ctx context.Context, userID string, req LoginRequest, details string) {
	if metrics.LoginFailureTotal != nil {
		metrics.LoginFailureTotal.Inc()
	}
	s.audit.Record(ctx, &domain.AuditEvent{
		UserID: userID, Action: domain.AuditActionLoginFailed,
		Status: domain.AuditFailure, Details: details,
		IPAddress: req.IPAddress, UserAgent: req.UserAgent,
	})
}
