// Package cache provides the hot-path token cache used to answer token
// validation without a database round trip. Entries are keyed by the
// SHA-256 of the token string, never the token itself.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned when the cache has no entry for a token.
var ErrTokenNotFound = errors.New("token not found in cache")

// TokenEntry is a cached view of an issued token.
type TokenEntry struct {
	TokenID    string    `redis:"tokenId"`
	TokenType  string    `redis:"tokenType"` // "access_token" or "refresh_token"
	UserID     string    `redis:"userId"`
	ClientID   string    `redis:"clientId"`
	Scope      string    `redis:"scope"`
	ExpiresAt  time.Time `redis:"expiresAt"`
	IsRevoked  bool      `redis:"isRevoked"`
	CreatedAt  time.Time `redis:"createdAt"`
	LastUsedAt time.Time `redis:"lastUsedAt"`
}

// TokenStore is the cache interface. Implementations treat the store as
// disposable: a miss falls through to the repository.
type TokenStore interface {
	Set(ctx context.Context, token string, entry *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, error)
	Delete(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
	Close() error
}
