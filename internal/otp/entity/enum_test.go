package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel_IsValid(t *testing.T) {
	assert.True(t, ChannelEmail.IsValid())
	assert.True(t, ChannelPhone.IsValid())
	assert.False(t, Channel("sms").IsValid())
	assert.False(t, Channel("").IsValid())
}

func TestPurpose_IsValid(t *testing.T) {
	for _, p := range []Purpose{PurposeRegister, PurposeLogin, PurposeVerify} {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, Purpose("reset").IsValid())
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		unknown  bool
	}{
		{StatusPending, false, false},
		{StatusVerified, true, false},
		{StatusExpired, true, false},
		{StatusFailed, true, false},
		{StatusCancelled, true, false},
		{Status("revoked"), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.unknown, tt.status.IsUnknown())
		})
	}
}
