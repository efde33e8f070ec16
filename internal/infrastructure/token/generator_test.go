package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

func TestGenerator_Generate(t *testing.T) {
	generator := NewGenerator()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := generator.Generate()
		require.NoError(t, err)
		assert.Regexp(t, tokenPattern, token)
		seen[token] = struct{}{}
	}
	assert.Len(t, seen, 100)
}
