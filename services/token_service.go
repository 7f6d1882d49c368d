package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skygenesisenterprise/aether-identity/cache"
	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
)

// Token lifetimes.
const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 30 * 24 * time.Hour
	IDTokenTTL      = 15 * time.Minute
	AuthCodeTTL     = 10 * time.Minute
)

// TokenServiceOptions carries the issuer identity baked into every token.
type TokenServiceOptions struct {
	Issuer   string
	Audience string
}

// TokenService issues and verifies the JWT triple (access, refresh, ID)
// and the opaque authorization code. Signing always uses the key service's
// active key; verification accepts any retained key via the kid header.
type TokenService struct {
	keys        *KeyService
	refreshRepo domain.RefreshTokenRepository
	tokenCache  cache.TokenStore
	issuer      string
	audience    string
}

// NewTokenService creates a TokenService. tokenCache may be nil; caching is
// an optimization, not a correctness requirement.
func NewTokenService(keys *KeyService, refreshRepo domain.RefreshTokenRepository, tokenCache cache.TokenStore, opts TokenServiceOptions) *TokenService {
	return &TokenService{
		keys:        keys,
		refreshRepo: refreshRepo,
		tokenCache:  tokenCache,
		issuer:      opts.Issuer,
		audience:    opts.Audience,
	}
}

// GenerateTokenSet issues the full OIDC triple for a user and persists the
// refresh token record for later rotation and revocation checks.
func (s *TokenService) GenerateTokenSet(ctx context.Context, user *domain.User, clientID, scope, nonce string) (*domain.TokenSet, error) {
	if scope == "" {
		scope = strings.Join(domain.ScopesForUser(user), " ")
	}
	accessToken, err := s.GenerateAccessToken(user, scope)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.GenerateRefreshToken(ctx, user, clientID, scope)
	if err != nil {
		return nil, err
	}
	idToken, err := s.GenerateIDToken(user, clientID, nonce)
	if err != nil {
		return nil, err
	}

	if s.tokenCache != nil {
		entry := &cache.TokenEntry{
			TokenType: "access_token",
			UserID:    user.ID,
			ClientID:  clientID,
			Scope:     scope,
			ExpiresAt: time.Now().Add(AccessTokenTTL),
			CreatedAt: time.Now(),
		}
		if err := s.tokenCache.Set(ctx, accessToken, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to cache access token")
		}
	}
	if metrics.TokensIssuedTotal != nil {
		metrics.TokensIssuedTotal.Inc()
	}

	return &domain.TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
		Scope:        scope,
	}, nil
}

// GenerateAccessToken builds the RS256 access token. Scope defaults to the
// user's role-derived scopes when empty.
func (s *TokenService) GenerateAccessToken(user *domain.User, scope string) (string, error) {
	now := time.Now()
	if scope == "" {
		scope = strings.Join(domain.ScopesForUser(user), " ")
	}
	claims := jwt.MapClaims{
		"sub":         user.ID,
		"email":       user.Email,
		"role":        string(user.Role),
		"scope":       scope,
		"permissions": domain.PermissionsForRole(user.Role),
		"plan":        domain.PlanForUser(user),
		"iss":         s.issuer,
		"aud":         s.audience,
		"iat":         now.Unix(),
		"exp":         now.Add(AccessTokenTTL).Unix(),
	}
	if user.OrganizationID != "" {
		claims["organization_id"] = user.OrganizationID
	}
	if user.TenantID != "" {
		claims["tenant_id"] = user.TenantID
	}
	return s.sign(claims)
}

// GenerateRefreshToken builds the refresh JWT and stores its record.
func (s *TokenService) GenerateRefreshToken(ctx context.Context, user *domain.User, clientID, scope string) (string, error) {
	now := time.Now()
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"jti":  jti,
		"iss":  s.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(RefreshTokenTTL).Unix(),
	}
	token, err := s.sign(claims)
	if err != nil {
		return "", err
	}

	record := &domain.RefreshToken{
		TokenID:   jti,
		UserID:    user.ID,
		TokenHash: cache.HashToken(token),
		ClientID:  clientID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}
	if err := s.refreshRepo.StoreRefreshToken(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return token, nil
}

// GenerateIDToken builds the OIDC ID token with aud bound to the client.
func (s *TokenService) GenerateIDToken(user *domain.User, clientID, nonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":            user.ID,
		"email":          user.Email,
		"email_verified": user.EmailVerified,
		"name":           user.DisplayName(),
		"iss":            s.issuer,
		"aud":            clientID,
		"iat":            now.Unix(),
		"exp":            now.Add(IDTokenTTL).Unix(),
	}
	if user.Picture != "" {
		claims["picture"] = user.Picture
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	return s.sign(claims)
}

// VerifyAccessToken parses and validates an access token, returning its
// claims. Expired tokens map to ErrTokenExpired, everything else invalid
// to ErrTokenInvalid.
func (s *TokenService) VerifyAccessToken(tokenString string) (jwt.MapClaims, error) {
	return s.verify(tokenString)
}

// VerifyRefreshToken validates a refresh JWT and asserts the refresh type
// claim, so an access token can never be replayed as a refresh token.
func (s *TokenService) VerifyRefreshToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := s.verify(tokenString)
	if err != nil {
		return nil, err
	}
	if typ, _ := claims["type"].(string); typ != "refresh" {
		return nil, serrors.ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) sign(claims jwt.MapClaims) (string, error) {
	keyID, privateKey, err := s.keys.ActiveKey()
	if err != nil {
		return "", fmt.Errorf("no active signing key: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	signed, err := token.SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("token signing failed: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return s.keys.PublicKey(kid)
	}, jwt.WithIssuer(s.issuer), jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, serrors.ErrTokenExpired
		}
		return nil, serrors.ErrTokenInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, serrors.ErrTokenInvalid
	}
	return claims, nil
}

// authCodePayload is the JSON carried inside the opaque authorization code.
// The code is base64url-encoded but not signed; the session lookup plus the
// one-shot completion flag is what actually gates the exchange.
type authCodePayload struct {
	SessionID string           `json:"session_id"`
	Tokens    *domain.TokenSet `json:"tokens,omitempty"`
	Scope     string           `json:"scope,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Random    string           `json:"random"`
}

// EncodeAuthorizationCode packs a session reference into an opaque code.
func (s *TokenService) EncodeAuthorizationCode(sessionID, scope string, tokens *domain.TokenSet) (string, error) {
	var rnd [16]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		return "", fmt.Errorf("failed to read random bytes for auth code: %w", err)
	}
	payload := authCodePayload{
		SessionID: sessionID,
		Tokens:    tokens,
		Scope:     scope,
		Timestamp: time.Now().UnixMilli(),
		Random:    hex.EncodeToString(rnd[:]),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth code payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeAuthorizationCode unpacks a code and enforces its freshness
// window. Codes minted against an existing SSO session carry the token
// set; for everyone else tokens is nil and the exchange mints one.
func (s *TokenService) DecodeAuthorizationCode(code string) (sessionID, scope string, tokens *domain.TokenSet, err error) {
	data, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		// Tolerate padded codes from older clients.
		if data, err = base64.URLEncoding.DecodeString(code); err != nil {
			return "", "", nil, serrors.ErrTokenInvalid
		}
	}
	var payload authCodePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", "", nil, serrors.ErrTokenInvalid
	}
	if payload.SessionID == "" {
		return "", "", nil, serrors.ErrTokenInvalid
	}
	issued := time.UnixMilli(payload.Timestamp)
	if time.Since(issued) > AuthCodeTTL {
		return "", "", nil, serrors.ErrTokenExpired
	}
	return payload.SessionID, payload.Scope, payload.Tokens, nil
}
