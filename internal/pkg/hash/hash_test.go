package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashers(t *testing.T) {
	hashers := map[string]Hash{
		"argon2id": NewArgon2id("pepper"),
		"bcrypt":   NewBcrypt(bcrypt.MinCost, "pepper"),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			first, err := h.Hash("493021")
			require.NoError(t, err)
			second, err := h.Hash("493021")
			require.NoError(t, err)

			assert.NotEqual(t, string(first), string(second), "salt must differ between hashes")
			assert.NotContains(t, string(first), "493021")

			assert.True(t, h.Verify(string(first), "493021"))
			assert.True(t, h.Verify(string(second), "493021"))
			assert.False(t, h.Verify(string(first), "493022"))
			assert.False(t, h.Verify(string(first), ""))
			assert.False(t, h.Verify("", "493021"))
		})
	}
}

func TestArgon2id_PepperMatters(t *testing.T) {
	hashed, err := NewArgon2id("a").Hash("123456")
	require.NoError(t, err)

	assert.False(t, NewArgon2id("b").Verify(string(hashed), "123456"))
}

func TestArgon2id_RejectsMalformed(t *testing.T) {
	h := NewArgon2id("")
	for _, encoded := range []string{
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=1$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
	} {
		assert.False(t, h.Verify(encoded, "123456"), encoded)
	}
}

func TestNew(t *testing.T) {
	h, err := New("", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &Argon2id{}, h)

	h, err = New(" BCRYPT ", "", bcrypt.MinCost)
	require.NoError(t, err)
	hashed, err := h.Hash("1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hashed), "$2a$04$"))

	_, err = New("md5", "", 0)
	assert.Error(t, err)
}
