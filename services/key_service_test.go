package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyService(t *testing.T) *KeyService {
	t.Helper()
	svc, err := NewKeyService(KeyServiceOptions{KeysDir: t.TempDir()})
	require.NoError(t, err)
	return svc
}

func TestNewKeyService_GeneratesInitialKey(t *testing.T) {
	svc := newTestKeyService(t)

	keyID, privateKey, err := svc.ActiveKey()
	require.NoError(t, err)
	assert.NotEmpty(t, keyID)
	require.NotNil(t, privateKey)
	assert.Contains(t, keyID, "key_")

	pub, err := svc.PublicKey(keyID)
	require.NoError(t, err)
	assert.Equal(t, privateKey.PublicKey.N, pub.N)
}

func TestNewKeyService_ReloadsPersistedKeys(t *testing.T) {
	dir := t.TempDir()

	first, err := NewKeyService(KeyServiceOptions{KeysDir: dir})
	require.NoError(t, err)
	firstID, _, err := first.ActiveKey()
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	second, err := NewKeyService(KeyServiceOptions{KeysDir: dir})
	require.NoError(t, err)
	secondID, _, err := second.ActiveKey()
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "reload must keep the same active key")
}

func TestKeyService_Rotate(t *testing.T) {
	svc := newTestKeyService(t)
	oldID, _, err := svc.ActiveKey()
	require.NoError(t, err)

	newID, err := svc.Rotate()
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	activeID, _, err := svc.ActiveKey()
	require.NoError(t, err)
	assert.Equal(t, newID, activeID)

	// The rotated-out key still verifies.
	_, err = svc.PublicKey(oldID)
	assert.NoError(t, err)
}

func TestKeyService_JWKS(t *testing.T) {
	svc := newTestKeyService(t)

	t.Run("contains active key", func(t *testing.T) {
		activeID, _, err := svc.ActiveKey()
		require.NoError(t, err)

		jwks := svc.JWKS()
		require.Len(t, jwks.Keys, 1)
		assert.Equal(t, activeID, jwks.Keys[0].Kid)
		assert.Equal(t, "RSA", jwks.Keys[0].Kty)
		assert.Equal(t, "RS256", jwks.Keys[0].Alg)
		assert.Equal(t, "sig", jwks.Keys[0].Use)
		assert.NotEmpty(t, jwks.Keys[0].N)
		assert.NotEmpty(t, jwks.Keys[0].E)
	})

	t.Run("fresh rotated-out key stays published", func(t *testing.T) {
		_, err := svc.Rotate()
		require.NoError(t, err)

		jwks := svc.JWKS()
		assert.Len(t, jwks.Keys, 2, "old key is younger than the rollover window")
	})

	t.Run("stale inactive key is dropped", func(t *testing.T) {
		svc.mu.Lock()
		for id, key := range svc.keys {
			if id != svc.activeID {
				key.meta.CreatedAt = time.Now().Add(-25 * time.Hour)
			}
		}
		svc.mu.Unlock()

		jwks := svc.JWKS()
		require.Len(t, jwks.Keys, 1)
		assert.Equal(t, svc.activeID, jwks.Keys[0].Kid)
	})
}

func TestKeyService_RotatePurgesExpiredKeys(t *testing.T) {
	svc := newTestKeyService(t)
	oldID, _, err := svc.ActiveKey()
	require.NoError(t, err)

	svc.mu.Lock()
	svc.keys[oldID].meta.CreatedAt = time.Now().Add(-91 * 24 * time.Hour)
	svc.mu.Unlock()

	_, err = svc.Rotate()
	require.NoError(t, err)

	_, err = svc.PublicKey(oldID)
	assert.Error(t, err, "keys past retention are purged on rotation")
}

func TestKeyService_Keys_OmitsPrivateMaterial(t *testing.T) {
	svc := newTestKeyService(t)

	for _, meta := range svc.Keys() {
		assert.Empty(t, meta.PrivateKey)
		assert.NotEmpty(t, meta.KeyID)
		assert.NotEmpty(t, meta.PublicKey)
	}
}
