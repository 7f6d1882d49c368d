package domain

import "time"

// MfaMethod enumerates the supported second factors.
type MfaMethod string

const (
	MfaMethodTOTP       MfaMethod = "TOTP"
	MfaMethodSMS        MfaMethod = "SMS"
	MfaMethodEmail      MfaMethod = "EMAIL"
	MfaMethodBackupCode MfaMethod = "BACKUP_CODE"
)

// MfaSessionMaxAttempts is the number of verification attempts allowed per
// challenge before the session is dead and a new one must be issued.
const MfaSessionMaxAttempts = 3

// MfaSession is a short-lived second-factor challenge. One per user at a
// time: issuing a new code replaces the pending session and resets the
// attempt counter.
type MfaSession struct {
	ID            string     `bson:"_id,omitempty"`
	UserID        string     `bson:"user_id"`
	Method        MfaMethod  `bson:"method"`
	Code          string     `bson:"code,omitempty"`
	CodeExpiresAt time.Time  `bson:"code_expires_at"`
	Attempts      int        `bson:"attempts"`
	MaxAttempts   int        `bson:"max_attempts"`
	IsVerified    bool       `bson:"is_verified"`
	VerifiedAt    *time.Time `bson:"verified_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
}

// IsExpired reports whether the challenge code TTL has elapsed.
func (s *MfaSession) IsExpired(now time.Time) bool {
	return now.After(s.CodeExpiresAt)
}

// AttemptsExhausted reports whether the session has burned all attempts.
func (s *MfaSession) AttemptsExhausted() bool {
	return s.Attempts >= s.MaxAttempts
}
