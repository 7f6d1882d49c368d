package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenStore implements TokenStore using ttlcache.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenStore creates an in-memory token store with automatic
// expiry cleanup.
func NewMemoryTokenStore(defaultTTL time.Duration) *MemoryTokenStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *TokenEntry](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)
	go c.Start()

	return &MemoryTokenStore{cache: c}
}

// Set stores the entry under the token's hash until the entry expires.
func (s *MemoryTokenStore) Set(_ context.Context, token string, entry *TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(HashToken(token), entry, ttl)
	return nil
}

// Get looks up a token by value.
func (s *MemoryTokenStore) Get(_ context.Context, token string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return nil, ErrTokenNotFound
	}
	entry := item.Value()
	entry.LastUsedAt = time.Now()
	return entry, nil
}

// Delete removes a token from the cache.
func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(HashToken(token))
	return nil
}

// Clear removes all tokens from the cache.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()
	return nil
}

// Count returns the number of live entries.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
