package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// OpaqueTokenSize is the entropy, in bytes, of reset tokens and decoys.
const OpaqueTokenSize = 32

// NewOpaqueToken returns size random bytes encoded as unpadded base64url.
func NewOpaqueToken(size int) (string, error) {
	if size < 16 {
		return "", errors.New("opaque token too short")
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// TokenDigest is the storage key form of an opaque token. Stores index on the
// digest so a dump of the backend does not yield usable tokens.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
