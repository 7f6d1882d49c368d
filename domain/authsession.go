package domain

import "time"

// AuthorizationSession tracks one pass through the authorization-code flow,
// from the initial /authorize redirect until the code is exchanged. The
// AuthCode is single-use: IsCompleted flips on exchange and a completed
// session can never be exchanged again.
type AuthorizationSession struct {
	ID                  string     `bson:"_id,omitempty"`
	SessionID           string     `bson:"session_id"`
	UserID              string     `bson:"user_id,omitempty"`
	ClientID            string     `bson:"client_id"`
	RedirectURI         string     `bson:"redirect_uri"`
	Scope               string     `bson:"scope"`
	State               string     `bson:"state,omitempty"`
	Nonce               string     `bson:"nonce,omitempty"`
	CodeChallenge       string     `bson:"code_challenge,omitempty"`
	CodeChallengeMethod string     `bson:"code_challenge_method,omitempty"`
	AuthCode            string     `bson:"auth_code"`
	AuthCodeExpiresAt   time.Time  `bson:"auth_code_expires_at"`
	IsCompleted         bool       `bson:"is_completed"`
	CompletedAt         *time.Time `bson:"completed_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
}

// IsCodeExpired reports whether the authorization code TTL has elapsed.
func (s *AuthorizationSession) IsCodeExpired(now time.Time) bool {
	return now.After(s.AuthCodeExpiresAt)
}
