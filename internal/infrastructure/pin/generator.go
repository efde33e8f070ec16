package pin

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

const (
	minLength = 4
	maxLength = 12
)

var ten = big.NewInt(10)

// Generator implements the domain.PinGenerator interface
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a new pin generator
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate returns a uniformly random numeric pin of the given length
func (g *Generator) Generate(length int) (string, error) {
	if length < minLength || length > maxLength {
		return "", fmt.Errorf("pin length %d out of range [%d, %d]", length, minLength, maxLength)
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			g.logger.Error("failed to generate random digit", zap.Error(err))
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
