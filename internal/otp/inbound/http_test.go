package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type stubUsecase struct {
	requestIn  usecase.RequestInput
	verifyIn   usecase.VerifyInput
	issued     *entity.Issued
	success    *entity.Success
	requestErr error
	verifyErr  error
}

func (s *stubUsecase) RequestOTP(_ context.Context, in usecase.RequestInput) (*entity.Issued, error) {
	s.requestIn = in
	return s.issued, s.requestErr
}

func (s *stubUsecase) VerifyOTP(_ context.Context, in usecase.VerifyInput) (*entity.Success, error) {
	s.verifyIn = in
	return s.success, s.verifyErr
}

func newServer(t *testing.T, stub *stubUsecase) *router.Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app: {}"))
	require.NoError(t, err)

	r := router.NewRouter(router.Config{Config: cfg, UUID: fixedID("cid"), Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, stub)
	return r
}

func do(t *testing.T, r http.Handler, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestRequest_Accepted(t *testing.T) {
	stub := &stubUsecase{issued: &entity.Issued{
		EventID:         1912345678901234567,
		Channel:         entity.ChannelPhone,
		Identifier:      "+14155552671",
		ExpiresAt:       time.Date(2026, 3, 14, 9, 40, 0, 0, time.UTC),
		CooldownSeconds: 60,
	}}
	r := newServer(t, stub)

	rec, body := do(t, r, "/api/v1/otp/request",
		`{"channel":"phone","identifier":"+1 415 555 2671","purpose":"login","context":{"app":"ios"}}`,
		map[string]string{"Idempotency-Key": "abc", "User-Agent": "otp-client/1.0"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "OTP request accepted", body["message"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1912345678901234567", data["event_id"])
	assert.Equal(t, "+14155552671", data["identifier"])
	assert.Equal(t, "2026-03-14T09:40:00Z", data["expires_at"])
	assert.EqualValues(t, 60, data["cooldown_seconds"])

	assert.Equal(t, "phone", stub.requestIn.Channel)
	assert.Equal(t, "+1 415 555 2671", stub.requestIn.Identifier)
	assert.Equal(t, "abc", stub.requestIn.IdempotencyKey)
	assert.Equal(t, "otp-client/1.0", stub.requestIn.UserAgent)
	assert.Equal(t, "203.0.113.9", stub.requestIn.IPAddress)
	assert.Equal(t, "ios", stub.requestIn.Context["app"])
	assert.Nil(t, stub.requestIn.UserID)
}

func TestRequest_Throttled(t *testing.T) {
	te := &entity.ThrottledError{Reason: entity.ThrottleCooldown, RetryAfter: 41500 * time.Millisecond}
	stub := &stubUsecase{requestErr: goerror.WrapBusiness(te, "Too many requests, please retry later", goerror.CodeTooManyRequest,
		"reason", "cooldown")}
	r := newServer(t, stub)

	rec, body := do(t, r, "/api/v1/otp/request", `{"channel":"email","identifier":"a@x.io","purpose":"login"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, map[string]any{"reason": "cooldown", "retry_after_seconds": float64(42)}, body["error"])
}

func TestRequest_BadBody(t *testing.T) {
	r := newServer(t, &stubUsecase{})

	rec, _ := do(t, r, "/api/v1/otp/request", `{"channel":"email","unknown":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, r, "/api/v1/otp/request", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify(t *testing.T) {
	uid := int64(77)
	stub := &stubUsecase{success: &entity.Success{
		EventID:    5,
		Channel:    entity.ChannelEmail,
		Identifier: "a@x.io",
		Purpose:    entity.PurposeVerify,
		UserID:     &uid,
	}}
	r := newServer(t, stub)

	rec, body := do(t, r, "/api/v1/otp/verify",
		`{"channel":"email","identifier":"A@x.io","purpose":"verify","user_id":77,"code":"123456"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5", data["event_id"])
	assert.Equal(t, "verify", data["purpose"])
	assert.EqualValues(t, 77, data["user_id"])
	assert.NotContains(t, data, "currency")

	require.NotNil(t, stub.verifyIn.UserID)
	assert.Equal(t, uid, *stub.verifyIn.UserID)
	assert.Equal(t, "123456", stub.verifyIn.Code)
}

func TestVerify_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", goerror.WrapBusiness(entity.ErrOTPNotFound, "OTP not found or already used", goerror.CodeNotFound), http.StatusNotFound},
		{"expired", goerror.WrapBusiness(entity.ErrOTPExpired, "OTP has expired", goerror.CodeGone), http.StatusGone},
		{"too many attempts", goerror.WrapBusiness(entity.ErrTooManyAttempts, "Too many incorrect attempts", goerror.CodeTooManyRequest), http.StatusTooManyRequests},
		{"incorrect", goerror.WrapBusiness(entity.ErrIncorrectCode, "Incorrect OTP code", goerror.CodeUnauthorized), http.StatusUnauthorized},
		{"invalid format", goerror.WrapBusiness(entity.ErrInvalidFormat, "Invalid identifier format", goerror.CodeInvalidFormat), http.StatusBadRequest},
		{"server", goerror.NewServer(context.DeadlineExceeded), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newServer(t, &stubUsecase{verifyErr: tt.err})

			rec, _ := do(t, r, "/api/v1/otp/verify",
				`{"channel":"email","identifier":"a@x.io","purpose":"login","code":"123456"}`, nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, rec.Header().Get("Retry-After"))
		})
	}
}
