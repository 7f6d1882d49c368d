package domain

import "time"

// Session is a long-lived SSO session established after a successful login.
// It is what lets a returning browser skip re-authentication during the
// authorization-code flow.
type Session struct {
	ID           string     `bson:"_id,omitempty"`
	UserID       string     `bson:"user_id"`
	SessionToken string     `bson:"session_token"`
	UserAgent    string     `bson:"user_agent,omitempty"`
	IPAddress    string     `bson:"ip_address,omitempty"`
	IsActive     bool       `bson:"is_active"`
	CreatedAt    time.Time  `bson:"created_at"`
	ExpiresAt    time.Time  `bson:"expires_at"`
	LastSeenAt   *time.Time `bson:"last_seen_at,omitempty"`
}

// IsExpired reports whether the session lifetime has elapsed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
