package domain

import "time"

// RefreshToken is the persisted record backing a refresh JWT. The JWT
// itself is stateless; this row carries the revocation and rotation state
// keyed by the token's jti.
type RefreshToken struct {
	ID        string     `bson:"_id,omitempty"`
	TokenID   string     `bson:"token_id"` // jti claim
	UserID    string     `bson:"user_id"`
	TokenHash string     `bson:"token_hash"`
	ClientID  string     `bson:"client_id,omitempty"`
	Scope     string     `bson:"scope,omitempty"`
	IssuedAt  time.Time  `bson:"issued_at"`
	ExpiresAt time.Time  `bson:"expires_at"`
	IsRevoked bool       `bson:"is_revoked"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty"`
}

// IsExpired reports whether the refresh token lifetime has elapsed.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenPair is an access/refresh token pair as returned to callers.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenSet is the full OIDC triple issued at the end of an authorization
// flow.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}
