package passcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	for _, length := range []int{1, 4, 6, 10} {
		g, err := NewGenerator(length)
		require.NoError(t, err)
		assert.Equal(t, length, g.Length())

		for range 200 {
			code, err := g.Generate()
			require.NoError(t, err)
			require.Len(t, code, length)
			for _, r := range code {
				require.True(t, r >= '0' && r <= '9', "non digit in %q", code)
			}
		}
	}
}

func TestGenerator_CoversAllDigits(t *testing.T) {
	g, err := NewGenerator(8)
	require.NoError(t, err)

	seen := map[rune]bool{}
	for range 500 {
		code, err := g.Generate()
		require.NoError(t, err)
		for _, r := range code {
			seen[r] = true
		}
	}
	assert.Len(t, seen, 10)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerator_SourceFailure(t *testing.T) {
	g := &Generator{length: 6, source: failingReader{}}
	_, err := g.Generate()
	assert.Error(t, err)
}

func TestNewGenerator_InvalidLength(t *testing.T) {
	_, err := NewGenerator(0)
	assert.ErrorIs(t, err, ErrInvalidLength)
}
