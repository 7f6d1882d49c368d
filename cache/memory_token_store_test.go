package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(ttl time.Duration) *TokenEntry {
	now := time.Now()
	return &TokenEntry{
		TokenID:   "jti-1",
		TokenType: "access_token",
		UserID:    "user-1",
		ClientID:  "client-1",
		Scope:     "openid profile",
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "token-a", testEntry(time.Minute)))

		got, err := store.Get(ctx, "token-a")
		require.NoError(t, err)
		assert.Equal(t, "jti-1", got.TokenID)
		assert.Equal(t, "user-1", got.UserID)
		assert.False(t, got.LastUsedAt.IsZero())
	})

	t.Run("miss", func(t *testing.T) {
		_, err := store.Get(ctx, "never-stored")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "token-b", testEntry(time.Minute)))
		require.NoError(t, store.Delete(ctx, "token-b"))

		_, err := store.Get(ctx, "token-b")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("already expired entry is not stored", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "token-c", testEntry(-time.Second)))

		_, err := store.Get(ctx, "token-c")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("clear and count", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Set(ctx, "token-d", testEntry(time.Minute)))
		require.NoError(t, store.Set(ctx, "token-e", testEntry(time.Minute)))
		assert.Equal(t, 2, store.Count(ctx))

		require.NoError(t, store.Clear(ctx))
		assert.Equal(t, 0, store.Count(ctx))
	})
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	b := HashToken("token-b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashToken("token-a"))
	assert.NotEqual(t, "token-a", a, "raw token value never appears as a key")
}
