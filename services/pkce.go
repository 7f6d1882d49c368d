package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE challenge methods (RFC 7636).
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// ValidatePKCEChallenge checks a code verifier against the challenge that
// was registered at authorize time. The method defaults to S256 when the
// stored method is empty; plain is only honored when asked for explicitly.
func ValidatePKCEChallenge(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	if method == PKCEMethodPlain {
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	}
	sum := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
}
