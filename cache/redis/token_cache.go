// Package redis provides a Redis-backed token cache for multi-instance
// deployments where the in-memory store cannot be shared.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skygenesisenterprise/aether-identity/cache"
)

// TokenStore implements cache.TokenStore on Redis. Entries expire via
// Redis key TTLs, so there is no sweep to run.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a new Redis token store. The prefix namespaces
// keys when the Redis instance is shared.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (r *TokenStore) redisKey(token string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(token))
}

// Set stores the entry as JSON with a TTL matching the entry expiry.
func (r *TokenStore) Set(ctx context.Context, token string, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}
	if err := r.client.Set(ctx, r.redisKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

// Get retrieves a token entry. A missing key maps to cache.ErrTokenNotFound.
func (r *TokenStore) Get(ctx context.Context, token string) (*cache.TokenEntry, error) {
	payload, err := r.client.Get(ctx, r.redisKey(token)).Bytes()
	if err == redis.Nil {
		return nil, cache.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}
	var entry cache.TokenEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}
	entry.LastUsedAt = time.Now()
	return &entry, nil
}

// Delete removes a token from Redis.
func (r *TokenStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.redisKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// Clear removes all tokens under this store's prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan token keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete token keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Count returns the number of cached tokens under this store's prefix.
func (r *TokenStore) Count(ctx context.Context) int {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var count int
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count
		}
	}
}

// Close is a no-op; the redis client is owned by the caller.
func (r *TokenStore) Close() error { return nil }

var _ cache.TokenStore = (*TokenStore)(nil)
