package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/internal/crypto"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
)

const (
	// jwksRolloverWindow keeps freshly rotated-out keys in the JWKS long
	// enough for cached documents and in-flight tokens to verify.
	jwksRolloverWindow = 24 * time.Hour
	// keyRetention is how long inactive keys stay on disk before purge.
	keyRetention = 90 * 24 * time.Hour
)

type signingKey struct {
	meta       domain.SigningKey
	privateKey *rsa.PrivateKey
}

// KeyService owns the RSA signing key lifecycle: generation, persistence,
// rotation, and the JWKS document. Exactly one key is active at a time.
type KeyService struct {
	mu       sync.RWMutex
	keys     map[string]*signingKey
	activeID string

	keysDir          string
	rotationInterval time.Duration
	rotationEnabled  bool
}

// KeyServiceOptions configures a KeyService.
type KeyServiceOptions struct {
	// KeysDir is where key files live, one JSON document per key.
	KeysDir string
	// RotationInterval is the period of the background rotation loop.
	RotationInterval time.Duration
	// RotationEnabled gates the background loop; typically production only.
	RotationEnabled bool
}

// NewKeyService loads keys from disk, generating an initial key when the
// directory is empty. A failed load degrades to an in-memory key so the
// service can still sign tokens.
func NewKeyService(opts KeyServiceOptions) (*KeyService, error) {
	if opts.KeysDir == "" {
		opts.KeysDir = "./keys"
	}
	if opts.RotationInterval <= 0 {
		opts.RotationInterval = 20 * 24 * time.Hour
	}
	s := &KeyService{
		keys:             make(map[string]*signingKey),
		keysDir:          opts.KeysDir,
		rotationInterval: opts.RotationInterval,
		rotationEnabled:  opts.RotationEnabled,
	}

	if err := s.loadKeys(); err != nil {
		log.Warn().Err(err).Str("dir", s.keysDir).
			Msg("Failed to load signing keys from disk, continuing with in-memory keys")
	}
	if len(s.keys) == 0 {
		if _, err := s.generateKey(true); err != nil {
			return nil, fmt.Errorf("failed to generate initial signing key: %w", err)
		}
	}
	if s.activeID == "" {
		// No key is flagged active; promote the newest.
		s.activateNewestLocked()
	}
	return s, nil
}

// ActiveKey returns the current signing key and its ID.
func (s *KeyService) ActiveKey() (string, *rsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[s.activeID]
	if !ok {
		return "", nil, serrors.ErrKeyNotFound
	}
	return key.meta.KeyID, key.privateKey, nil
}

// PublicKey returns the public key for a key ID, active or not. Rotated-out
// keys keep verifying until they are purged.
func (s *KeyService) PublicKey(keyID string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID]
	if !ok {
		return nil, serrors.ErrKeyNotFound
	}
	return &key.privateKey.PublicKey, nil
}

// JWKS builds the published key set: the active key plus any key younger
// than the rollover window.
func (s *KeyService) JWKS() domain.JWKS {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-jwksRolloverWindow)
	var jwks domain.JWKS
	for _, key := range s.keys {
		if !key.meta.IsActive && key.meta.CreatedAt.Before(cutoff) {
			continue
		}
		pub := key.privateKey.PublicKey
		jwks.Keys = append(jwks.Keys, domain.JWK{
			Kty: "RSA",
			Kid: key.meta.KeyID,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	// Stable ordering keeps the document cacheable.
	sort.Slice(jwks.Keys, func(i, j int) bool { return jwks.Keys[i].Kid < jwks.Keys[j].Kid })
	return jwks
}

// Rotate generates a fresh active key, demotes every other key, and purges
// inactive keys past retention. The new key is written before the old one
// is demoted so there is no window without an active key.
func (s *KeyService) Rotate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newKey, err := s.generateKeyLocked(true)
	if err != nil {
		return "", fmt.Errorf("key rotation failed: %w", err)
	}
	for id, key := range s.keys {
		if id == newKey.meta.KeyID || !key.meta.IsActive {
			continue
		}
		key.meta.IsActive = false
		if err := s.storeKeyLocked(key); err != nil {
			log.Warn().Err(err).Str("key_id", id).Msg("Failed to persist demoted signing key")
		}
	}
	s.purgeExpiredLocked()

	if metrics.KeyRotationsTotal != nil {
		metrics.KeyRotationsTotal.Inc()
	}
	log.Info().Str("key_id", newKey.meta.KeyID).Msg("Signing key rotated")
	return newKey.meta.KeyID, nil
}

// StartRotation runs the periodic rotation loop until ctx is cancelled.
// It is a no-op when rotation is disabled.
func (s *KeyService) StartRotation(ctx context.Context) {
	if !s.rotationEnabled {
		log.Debug().Msg("Signing key rotation loop disabled")
		return
	}
	ticker := time.NewTicker(s.rotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Rotate(); err != nil {
				log.Error().Err(err).Msg("Scheduled key rotation failed")
			}
		}
	}
}

// Keys returns metadata for all loaded keys, newest first. Private key
// material is not included.
func (s *KeyService) Keys() []domain.SigningKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SigningKey, 0, len(s.keys))
	for _, key := range s.keys {
		meta := key.meta
		meta.PrivateKey = ""
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *KeyService) generateKey(active bool) (*signingKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateKeyLocked(active)
}

func (s *KeyService) generateKeyLocked(active bool) (*signingKey, error) {
	priv, err := crypto.GenerateRSAKey()
	if err != nil {
		return nil, fmt.Errorf("rsa key generation failed: %w", err)
	}
	pubPEM, err := crypto.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key encoding failed: %w", err)
	}
	key := &signingKey{
		meta: domain.SigningKey{
			KeyID:      newKeyID(),
			PublicKey:  pubPEM,
			PrivateKey: crypto.EncodePrivateKeyPEM(priv),
			CreatedAt:  time.Now(),
			IsActive:   active,
		},
		privateKey: priv,
	}
	s.keys[key.meta.KeyID] = key
	if active {
		s.activeID = key.meta.KeyID
	}
	if err := s.storeKeyLocked(key); err != nil {
		log.Warn().Err(err).Str("key_id", key.meta.KeyID).
			Msg("Failed to persist signing key, key is in-memory only")
	}
	return key, nil
}

func (s *KeyService) loadKeys() error {
	entries, err := os.ReadDir(s.keysDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(s.keysDir, 0o700)
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.keysDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Failed to read key file, skipping")
			continue
		}
		var meta domain.SigningKey
		if err := json.Unmarshal(data, &meta); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Failed to parse key file, skipping")
			continue
		}
		priv, err := crypto.ParsePrivateKeyPEM(meta.PrivateKey)
		if err != nil {
			log.Warn().Err(err).Str("key_id", meta.KeyID).Msg("Failed to parse private key, skipping")
			continue
		}
		s.keys[meta.KeyID] = &signingKey{meta: meta, privateKey: priv}
		if meta.IsActive {
			s.activeID = meta.KeyID
		}
	}
	return nil
}

func (s *KeyService) activateNewestLocked() {
	var newest *signingKey
	for _, key := range s.keys {
		if newest == nil || key.meta.CreatedAt.After(newest.meta.CreatedAt) {
			newest = key
		}
	}
	if newest == nil {
		return
	}
	newest.meta.IsActive = true
	s.activeID = newest.meta.KeyID
	if err := s.storeKeyLocked(newest); err != nil {
		log.Warn().Err(err).Str("key_id", newest.meta.KeyID).Msg("Failed to persist promoted signing key")
	}
}

func (s *KeyService) storeKeyLocked(key *signingKey) error {
	data, err := json.MarshalIndent(key.meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.keysDir, 0o700); err != nil {
		return err
	}
	path := filepath.Join(s.keysDir, key.meta.KeyID+".json")
	return os.WriteFile(path, data, 0o600)
}

func (s *KeyService) purgeExpiredLocked() {
	cutoff := time.Now().Add(-keyRetention)
	for id, key := range s.keys {
		if key.meta.IsActive || key.meta.CreatedAt.After(cutoff) {
			continue
		}
		delete(s.keys, id)
		path := filepath.Join(s.keysDir, id+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("key_id", id).Msg("Failed to remove purged key file")
		}
		log.Info().Str("key_id", id).Msg("Purged expired signing key")
	}
}

// newKeyID builds IDs like key_m3xk2p1a_9f3c01ab: a base36 timestamp plus
// random suffix, sortable-ish and unique enough for a handful of keys.
func newKeyID() string {
	var rnd [4]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		// Degrade to a hash of the timestamp; collisions are practically
		// impossible at rotation frequency.
		sum := sha256.Sum256([]byte(time.Now().String()))
		copy(rnd[:], sum[:4])
	}
	return "key_" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "_" + hex.EncodeToString(rnd[:])
}
