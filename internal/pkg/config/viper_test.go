package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
otp:
  length: 6
  expiry_minutes: 10
  cooldown_seconds: 60
cors:
  origins: "http://a.test, http://b.test,"
`

func TestNewViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sample), WithDefault("otp.max_attempts", 5))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.GetInt("otp.length"))
	assert.Equal(t, 10*time.Minute, cfg.GetMinute("otp.expiry_minutes"))
	assert.Equal(t, 60*time.Second, cfg.GetSecond("otp.cooldown_seconds"))
	assert.Equal(t, 5, cfg.GetInt("otp.max_attempts"))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetArray("cors.origins"))
	assert.NoError(t, cfg.Close())
}

func TestNewViperFromBytes_EnvAlias(t *testing.T) {
	t.Setenv("OTP_LENGTH", "8")
	t.Setenv("OTP_COOLDOWN_SECONDS", "5")

	cfg, err := NewViperFromBytes("yaml", []byte(sample), WithEnvAlias("otp.length", "OTP_LENGTH"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.GetInt("otp.length"))
	// otp.cooldown_seconds resolves through the automatic env replacer.
	assert.Equal(t, 5*time.Second, cfg.GetSecond("otp.cooldown_seconds"))
}

func TestNewViperFromBytes_MissingType(t *testing.T) {
	_, err := NewViperFromBytes(" ", []byte(sample))
	assert.Error(t, err)
}
