package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Size is the number of random bytes in a token. Encoded it is 43 characters.
const Size = 32

// Generator implements the domain.TokenGenerator interface
type Generator struct{}

// NewGenerator creates a new token generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a URL-safe token carrying 256 bits of entropy
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
