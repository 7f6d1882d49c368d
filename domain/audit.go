package domain

import "time"

// AuditStatus is the outcome recorded with an audit event.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
)

// Audit event actions.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLoginFailed    = "LOGIN_FAILED"
	AuditActionAccountLocked  = "ACCOUNT_LOCKED"
	AuditActionMfaChallenge   = "MFA_CHALLENGE"
	AuditActionMfaVerified    = "MFA_VERIFIED"
	AuditActionMfaFailed      = "MFA_FAILED"
	AuditActionMfaDisabled    = "MFA_DISABLED"
	AuditActionTokenRefresh   = "TOKEN_REFRESH"
	AuditActionTokenExchange  = "TOKEN_EXCHANGE"
	AuditActionLogout         = "LOGOUT"
	AuditActionKeyRotation    = "KEY_ROTATION"
	AuditActionSessionRevoked = "SESSION_REVOKED"
)

// AuditEvent is one entry in the authentication audit trail.
type AuditEvent struct {
	ID        string      `bson:"_id,omitempty"`
	UserID    string      `bson:"user_id,omitempty"`
	Action    string      `bson:"action"`
	Status    AuditStatus `bson:"status"`
	Details   string      `bson:"details,omitempty"`
	IPAddress string      `bson:"ip_address,omitempty"`
	UserAgent string      `bson:"user_agent,omitempty"`
	CreatedAt time.Time   `bson:"created_at"`
}
