package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAccessToken returns SHA256 hex of the token. Only the hash is stored;
// a token read from a request is hashed before the store lookup.
func HashAccessToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
