package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token string. Cache keys carry the hash instead of
// the token so a dumped cache never leaks usable credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
