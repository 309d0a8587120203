package router

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// maxBodyBytes caps request bodies accepted by DecodeBody.
const maxBodyBytes = 64 * 1024

type Request struct {
	*http.Request
}

func (r *Request) GetHeader(key string) string {
	return strings.TrimSpace(r.Header.Get(key))
}

// ClientIP is the host part of RemoteAddr as rewritten by the client IP
// middleware.
func (r *Request) ClientIP() string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// DecodeBody reads exactly one JSON value into dst. Unknown fields, trailing
// data and bodies over maxBodyBytes are rejected as malformed.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}
	return nil
}
