package stacktrace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framesFrom(skip int) []string {
	return Internal(skip)
}

func TestInternal(t *testing.T) {
	t.Parallel()

	got := framesFrom(0)
	require.NotEmpty(t, got)
	assert.True(t, strings.HasPrefix(got[0], "internal/pkg/stacktrace/stacktrace_test.go:"), got[0])
	for _, f := range got {
		assert.True(t, strings.HasPrefix(f, "internal/"), f)
		assert.NotContains(t, f, "testing/")
	}
}

func TestInternal_Skip(t *testing.T) {
	t.Parallel()

	direct := Internal(0)
	skipped := framesFrom(1)
	require.NotEmpty(t, direct)
	require.Len(t, skipped, len(direct))
	assert.Equal(t, direct[0][:strings.LastIndex(direct[0], ":")], skipped[0][:strings.LastIndex(skipped[0], ":")])
}

func TestInternal_FromRecover(t *testing.T) {
	t.Parallel()

	var got []string
	func() {
		defer func() {
			if recover() != nil {
				got = Internal(0)
			}
		}()
		panic("boom")
	}()

	require.NotEmpty(t, got)
	assert.Contains(t, got[0], "stacktrace_test.go:")
}
