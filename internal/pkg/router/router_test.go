package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type throttled struct{ seconds int }

func (t throttled) Error() string          { return "throttled" }
func (t throttled) RetryAfterSeconds() int { return t.seconds }

type accepted struct {
	ID string `json:"id"`
}

func (accepted) StatusCode() int { return http.StatusAccepted }
func (accepted) Message() string { return "accepted" }

func newTestRouter(t *testing.T, yaml string) *Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	return NewRouter(Config{
		Config:     cfg,
		UUID:       fixedID("cid-1"),
		Instrument: instrument.NewNoop(),
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_Success(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, "app: {}")
	r.POST("/things", func(req *Request) (any, error) {
		var body struct {
			Name string `json:"name"`
		}
		if err := req.DecodeBody(&body); err != nil {
			return nil, err
		}
		return accepted{ID: body.Name}, nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{"name":"x"}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "cid-1", rec.Header().Get(HeaderCorrelationID))
	body := decode(t, rec)
	assert.Equal(t, "accepted", body["message"])
	assert.Equal(t, map[string]any{"id": "x"}, body["data"])
}

func TestRouter_Errors(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, "app: {}")
	r.POST("/throttled", func(*Request) (any, error) {
		return nil, goerror.WrapBusiness(throttled{seconds: 42}, "Too many requests", goerror.CodeTooManyRequest,
			"reason", "cooldown")
	})
	r.POST("/boom", func(*Request) (any, error) {
		return nil, errors.New("boom")
	})
	r.POST("/strict", func(req *Request) (any, error) {
		var body struct{}
		return nil, req.DecodeBody(&body)
	})

	t.Run("retry after header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/throttled", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "42", rec.Header().Get("Retry-After"))
		body := decode(t, rec)
		assert.Equal(t, map[string]any{"reason": "cooldown", "retry_after_seconds": float64(42)}, body["error"])
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/strict", strings.NewReader(`{"x":1}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_Maintenance(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, "app:\n  maintenance:\n    endpoints: /closed\n")
	r.GET("/closed", func(*Request) (any, error) { return accepted{}, nil })

	r.GET("/open", func(*Request) (any, error) { return accepted{}, nil })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/closed", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	all := newTestRouter(t, "app:\n  maintenance:\n    enabled: true\n")
	all.GET("/open", func(*Request) (any, error) { return accepted{}, nil })

	rec = httptest.NewRecorder()
	all.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RecoverAndClientIP(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, "app: {}")
	r.GET("/panic", func(*Request) (any, error) { panic("kaboom") })
	r.GET("/ip", func(req *Request) (any, error) {
		return map[string]string{"ip": req.ClientIP()}, nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ip": "203.0.113.7"}, decode(t, rec)["data"])
}

func TestForwardedIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{name: "true client ip wins", header: map[string]string{"True-Client-IP": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, want: "198.51.100.1"},
		{name: "first forwarded hop", header: map[string]string{"X-Forwarded-For": " 2001:db8::1 , 10.0.0.1"}, want: "2001:db8::1"},
		{name: "garbage skipped", header: map[string]string{"X-Real-IP": "not-an-ip", "X-Forwarded-For": "203.0.113.9"}, want: "203.0.113.9"},
		{name: "none", header: map[string]string{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			ip, ok := forwardedIP(h)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.want, ip.String())
		})
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, "app: {}")
	r.GET("/ping", func(*Request) (any, error) { return accepted{}, nil })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "  from-proxy  ")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "from-proxy", rec.Header().Get(HeaderCorrelationID))

	assert.Len(t, cleanCorrelationID(strings.Repeat("a", 200)), maxCorrelationIDLen)
	assert.Empty(t, cleanCorrelationID("a\r\nSet-Cookie: x"))
}
