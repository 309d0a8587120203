package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyInput struct {
	Channel   string `json:"channel" validate:"required,oneof=email phone"`
	Code      string `validate:"required,otpcode"`
	UserID    int64  `validate:"omitempty,gt=0"`
	IPAddress string `validate:"omitempty,ip"`
}

func TestV10Validator_Validate(t *testing.T) {
	v, err := NewV10Validator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(verifyInput{Channel: "phone", Code: "012345"}))
	assert.NoError(t, v.Validate(verifyInput{Channel: "phone", Code: "012"}))
	assert.NoError(t, v.Validate(verifyInput{Channel: "phone", Code: "0123456789012"}))

	err = v.Validate(verifyInput{Channel: "fax", Code: "12ab56", UserID: -1, IPAddress: "nope"})
	require.Error(t, err)

	var verr V10ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "code must contain only digits", verr.Values()["code"])
	assert.Len(t, verr.Values(), 4)
	assert.Contains(t, verr.Values(), "channel")
	assert.Contains(t, verr.Values(), "user_id")
	assert.Contains(t, verr.Values(), "ip_address")
}

func TestSnake(t *testing.T) {
	for in, want := range map[string]string{
		"Code":           "code",
		"UserID":         "user_id",
		"IPAddress":      "ip_address",
		"IdempotencyKey": "idempotency_key",
		"EventID":        "event_id",
	} {
		assert.Equal(t, want, snake(in), in)
	}
}
