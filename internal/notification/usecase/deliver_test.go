package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type memDB struct {
	mu        sync.Mutex
	created   []entity.CreateDeliveryLog
	updates   map[int64]entity.UpdateDeliveryLog
	createErr error
}

func (m *memDB) CreateDeliveryLog(_ context.Context, dl entity.CreateDeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, dl)
	return nil
}

func (m *memDB) UpdateDeliveryLog(_ context.Context, u entity.UpdateDeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[u.ID] = u
	return nil
}

type fakeMail struct {
	failures int
	err      error
	calls    int
	last     mail.Message
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) (string, error) {
	f.calls++
	f.last = msg
	if f.calls <= f.failures {
		return "", f.err
	}
	return "mail-1", nil
}

type fakeSMS struct {
	failures int
	err      error
	calls    int
	last     sms.Message
}

func (f *fakeSMS) Send(_ context.Context, msg sms.Message) (string, error) {
	f.calls++
	f.last = msg
	if f.calls <= f.failures {
		return "", f.err
	}
	return "sms-1", nil
}

type seqID struct{ n int64 }

func (s *seqID) Generate() int64 {
	s.n++
	return s.n
}

type fixture struct {
	uc   *Usecase
	db   *memDB
	mail *fakeMail
	sms  *fakeSMS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	f := &fixture{
		db:   &memDB{updates: map[int64]entity.UpdateDeliveryLog{}},
		mail: &fakeMail{},
		sms:  &fakeSMS{},
	}
	f.uc = New(Dependency{
		RepoDB:     f.db,
		RepoMail:   f.mail,
		RepoSMS:    f.sms,
		UID:        &seqID{},
		Clock:      clock.NewFrozen(epoch),
		Validator:  v,
		Instrument: instrument.NewNoop(),
		Config: Config{
			AppName:      "Settle",
			SupportEmail: "help@settle.test",
			MaxRetries:   2,
			RetryBase:    time.Millisecond,
			RetryCap:     2 * time.Millisecond,
		},
	})

	return f
}

func deliverInput(ch, purpose string) DeliverOTPInput {
	identifier := "+14155552671"
	if ch == "email" {
		identifier = "jane@example.com"
	}
	return DeliverOTPInput{
		EventID:    42,
		Channel:    ch,
		Identifier: identifier,
		Purpose:    purpose,
		Code:       "493817",
		ExpiresAt:  epoch.Add(10 * time.Minute),
		JobID:      "job-1",
	}
}

func TestDeliverOTP_Email(t *testing.T) {
	f := newFixture(t)

	res, err := f.uc.DeliverOTP(context.Background(), deliverInput("email", "login"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "mail-1", res.MessageID)
	assert.Equal(t, "jane@example.com", res.Identifier)

	assert.Equal(t, []string{"jane@example.com"}, f.mail.last.To)
	assert.Equal(t, "Settle - Your Login OTP", f.mail.last.Subject)
	assert.Contains(t, f.mail.last.TextBody, "Use this code to log in: 493817")
	assert.Contains(t, f.mail.last.TextBody, "expires in 10 minutes")
	assert.Contains(t, f.mail.last.TextBody, "help@settle.test")
	assert.Contains(t, f.mail.last.HTMLBody, "493817")
	assert.Contains(t, f.mail.last.HTMLBody, "2026 Settle")
	assert.Zero(t, f.sms.calls)

	require.Len(t, f.db.created, 1)
	logged := f.db.created[0]
	assert.Equal(t, int64(42), logged.EventID)
	assert.Equal(t, entity.ChannelEmail, logged.Channel)
	assert.Equal(t, "job-1", logged.JobID)

	up := f.db.updates[logged.ID]
	assert.Equal(t, entity.DeliveryStatusSent, up.Status)
	assert.Equal(t, "mail-1", up.ProviderResponse.GetString("message_id"))
}

func TestDeliverOTP_SMSPerPurpose(t *testing.T) {
	tests := []struct {
		purpose string
		want    string
	}{
		{purpose: "register", want: "Settle - Your registration code is: 493817. It expires in 10 minutes."},
		{purpose: "login", want: "Settle - Your login code is: 493817. It expires in 10 minutes."},
		{purpose: "verify", want: "Settle - Your verification code is: 493817. It expires in 10 minutes."},
		{purpose: "other", want: "Your code is: 493817. It expires in 10 minutes."},
	}

	for _, tt := range tests {
		t.Run(tt.purpose, func(t *testing.T) {
			f := newFixture(t)

			res, err := f.uc.DeliverOTP(context.Background(), deliverInput("phone", tt.purpose))
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, "sms-1", res.MessageID)
			assert.Equal(t, "+14155552671", f.sms.last.To)
			assert.Equal(t, tt.want, f.sms.last.Body)
			assert.Equal(t, entity.ChannelSMS, f.db.created[0].Channel)
		})
	}
}

func TestDeliverOTP_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	f.sms.failures = 2
	f.sms.err = errors.New("throttled by carrier")

	res, err := f.uc.DeliverOTP(context.Background(), deliverInput("phone", "login"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, f.sms.calls)
}

func TestDeliverOTP_ProviderFailureIsAResult(t *testing.T) {
	f := newFixture(t)
	f.mail.failures = 10
	f.mail.err = errors.New("smtp: 421 service not available")

	res, err := f.uc.DeliverOTP(context.Background(), deliverInput("email", "verify"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "smtp: 421 service not available", res.Error)
	assert.Equal(t, "jane@example.com", res.Identifier)
	assert.Equal(t, 3, f.mail.calls)

	up := f.db.updates[f.db.created[0].ID]
	assert.Equal(t, entity.DeliveryStatusFailed, up.Status)
	assert.Equal(t, "smtp: 421 service not available", up.ProviderResponse.GetString("error"))
}

func TestDeliverOTP_PermanentFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.mail.failures = 10
	f.mail.err = mail.ErrNoSender

	res, err := f.uc.DeliverOTP(context.Background(), deliverInput("email", "login"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, f.mail.calls)
}

func TestDeliverOTP_ExpiredBeforeDelivery(t *testing.T) {
	f := newFixture(t)
	in := deliverInput("phone", "login")
	in.ExpiresAt = epoch.Add(-time.Second)

	res, err := f.uc.DeliverOTP(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, entity.ErrPasscodeExpired.Error(), res.Error)
	assert.Zero(t, f.sms.calls)
	assert.Equal(t, entity.DeliveryStatusFailed, f.db.updates[f.db.created[0].ID].Status)
}

func TestDeliverOTP_UnsupportedChannel(t *testing.T) {
	f := newFixture(t)

	res, err := f.uc.DeliverOTP(context.Background(), deliverInput("pigeon", "login"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, entity.ErrUnsupportedChannel.Error(), res.Error)
	assert.Empty(t, f.db.created)
}

func TestDeliverOTP_InvalidInput(t *testing.T) {
	f := newFixture(t)
	in := deliverInput("email", "login")
	in.Code = ""

	_, err := f.uc.DeliverOTP(context.Background(), in)
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.TypeValidation, gerr.Type())
	assert.Zero(t, f.mail.calls)
}

func TestDeliverOTP_LogFailureIsAnError(t *testing.T) {
	f := newFixture(t)
	f.db.createErr = errors.New("connection refused")

	_, err := f.uc.DeliverOTP(context.Background(), deliverInput("email", "login"))
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.TypeServer, gerr.Type())
	assert.Zero(t, f.mail.calls)
}

func TestDeliverOTP_MissingExpiryUsesDefault(t *testing.T) {
	f := newFixture(t)
	in := deliverInput("phone", "login")
	in.ExpiresAt = time.Time{}

	_, err := f.uc.DeliverOTP(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, f.sms.last.Body, "expires in 10 minutes")
}
