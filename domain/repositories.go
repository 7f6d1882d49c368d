package domain

import (
	"context"
	"time"
)

// UserRepository defines access to the user store.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error

	// RecordFailedLogin increments the failure counter and applies the
	// lockout timestamp when lockUntil is non-nil.
	RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error
	// ResetLoginFailures clears the counter and lockout after a success.
	ResetLoginFailures(ctx context.Context, userID string, loginAt time.Time) error

	// UpdateMfaState persists the user's MFA fields in one write.
	UpdateMfaState(ctx context.Context, user *User) error
	// ConsumeBackupCode atomically removes code from the user's backup
	// codes. It returns false when the code was not present, which is how
	// concurrent redemption of the same code loses the race.
	ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error)
}

// ClientRepository defines access to registered OAuth2 clients.
type ClientRepository interface {
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
	CreateClient(ctx context.Context, client *Client) error
	UpdateClient(ctx context.Context, client *Client) error
}

// SessionRepository defines access to long-lived SSO sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string, seenAt time.Time) error
	DeactivateSession(ctx context.Context, id string) error
	DeactivateUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteDefunctSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuthSessionRepository defines access to authorization-code flow sessions.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session *AuthorizationSession) error
	GetAuthSessionBySessionID(ctx context.Context, sessionID string) (*AuthorizationSession, error)
	UpdateAuthSession(ctx context.Context, session *AuthorizationSession) error
	// CompleteAuthSession marks the session exchanged. It returns false when
	// the session was already completed, making code exchange one-shot.
	CompleteAuthSession(ctx context.Context, sessionID string, completedAt time.Time) (bool, error)
	DeleteDefunctAuthSessions(ctx context.Context, now time.Time, completedBefore time.Time) (int64, error)
}

// MfaSessionRepository defines access to second-factor challenge sessions.
type MfaSessionRepository interface {
	GetMfaSession(ctx context.Context, userID string) (*MfaSession, error)
	GetMfaSessionByID(ctx context.Context, id string) (*MfaSession, error)
	// UpsertMfaSession replaces any pending session for the user.
	UpsertMfaSession(ctx context.Context, session *MfaSession) error
	UpdateMfaSession(ctx context.Context, session *MfaSession) error
	DeleteMfaSessions(ctx context.Context, userID string) error
	DeleteDefunctMfaSessions(ctx context.Context, now time.Time, verifiedBefore time.Time) (int64, error)
}

// RefreshTokenRepository defines access to persisted refresh token records.
type RefreshTokenRepository interface {
	StoreRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshTokenByTokenID(ctx context.Context, tokenID string) (*RefreshToken, error)
	// RevokeRefreshToken marks the record revoked. It returns false when the
	// record was already revoked, so rotation-on-use detects replays.
	RevokeRefreshToken(ctx context.Context, tokenID string, revokedAt time.Time) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string, revokedAt time.Time) (int64, error)
	DeleteDefunctRefreshTokens(ctx context.Context, now time.Time, revokedBefore time.Time) (int64, error)
	CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// AuditRepository defines the audit trail sink.
type AuditRepository interface {
	StoreAuditEvent(ctx context.Context, event *AuditEvent) error
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
