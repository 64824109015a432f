package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// OpaqueTokenBytes is the entropy of a refresh secret (256 bits)
	OpaqueTokenBytes = 32
)

// GenerateOpaqueToken returns a high-entropy hex-encoded secret. The value
// is not self-describing; it is only meaningful via a store lookup.
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of a token. Raw tokens are never
// persisted; every store column holds this digest instead.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
