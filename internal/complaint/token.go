package complaint

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// tokenBytes is the resolve token entropy: 32 bytes = 256 bits.
const tokenBytes = 32

// NewResolveToken returns a URL-safe random token (43 characters, no
// padding). It carries no complaint data.
func NewResolveToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate resolve token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewID returns a fresh complaint id.
func NewID() string {
	return uuid.NewString()
}
