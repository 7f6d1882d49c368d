package domain

import "time"

// SigningKey is a persisted RSA signing key. Exactly one key is active at
// any time; rotated-out keys stay available for verification until they
// age out of the JWKS rollover window and are eventually purged.
type SigningKey struct {
	KeyID      string    `json:"key_id"`
	PublicKey  string    `json:"public_key"`  // PEM, PKIX
	PrivateKey string    `json:"private_key"` // PEM, PKCS#1
	CreatedAt  time.Time `json:"created_at"`
	IsActive   bool      `json:"is_active"`
}

// JWK is a single RFC 7517 key entry as served from the JWKS endpoint.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the JSON Web Key Set document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}
