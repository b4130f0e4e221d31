// Package sha256 names archived pages by the SHA-256 digest of their body.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Hasher implements crawler.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() Hasher {
	return Hasher{}
}

// Hash returns the lowercase hex digest of body. Empty bodies are rejected so
// blank responses never collide on the same archive key.
func (Hasher) Hash(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("hash empty body")
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
