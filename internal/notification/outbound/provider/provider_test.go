package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMail struct {
	id  string
	err error
	got mail.Message
}

func (s *stubMail) Send(_ context.Context, msg mail.Message) (string, error) {
	s.got = msg
	return s.id, s.err
}

func (*stubMail) Close() error { return nil }

type stubSMS struct {
	id  string
	err error
}

func (s *stubSMS) Send(context.Context, sms.Message) (string, error) { return s.id, s.err }

func (*stubSMS) Close() error { return nil }

func TestMail_Send(t *testing.T) {
	client := &stubMail{id: "ses-0001"}
	id, err := NewMail(client, instrument.NewNoop()).Send(context.Background(), mail.Message{To: []string{"a@b.test"}})
	require.NoError(t, err)
	assert.Equal(t, "ses-0001", id)
	assert.Equal(t, []string{"a@b.test"}, client.got.To)

	client.err = errors.New("throttled")
	id, err = NewMail(client, instrument.NewNoop()).Send(context.Background(), mail.Message{})
	assert.EqualError(t, err, "throttled")
	assert.Empty(t, id)
}

func TestSMS_Send(t *testing.T) {
	id, err := NewSMS(&stubSMS{id: "sns-7"}, instrument.NewNoop()).Send(context.Background(), sms.Message{To: "+14155552671"})
	require.NoError(t, err)
	assert.Equal(t, "sns-7", id)
}
