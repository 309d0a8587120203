// Package goerror carries the error classification shared by usecases,
// HTTP endpoints and queue handlers: a Type that decides retry versus ack,
// a Code that decides the HTTP status, and a client-safe message.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource conflict")
)

type Type int

const (
	// TypeServer errors are transient from the caller's point of view: queue
	// handlers nack them, endpoints answer 500.
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

var typeNames = map[Type]string{
	TypeServer:     "server",
	TypeBusiness:   "business",
	TypeValidation: "validation",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	CodeTooManyRequest
	CodeUnauthorized
	CodeGone
)

var codeStatus = map[Code]int{
	CodeInternal:       http.StatusInternalServerError,
	CodeInvalidFormat:  http.StatusBadRequest,
	CodeInvalidInput:   http.StatusBadRequest,
	CodeNotFound:       http.StatusNotFound,
	CodeConflict:       http.StatusConflict,
	CodeTooManyRequest: http.StatusTooManyRequests,
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeGone:           http.StatusGone,
}

// Error wraps an optional cause with what the client is allowed to see.
type Error struct {
	cause   error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil:
		return e.cause.Error()
	case e.msg != "":
		return e.msg
	default:
		return e.errType.String() + " error"
	}
}

// String is the verbose form used in logs.
func (e *Error) String() string {
	return fmt.Sprintf("%s error (code %d): %s: %v", e.errType, e.code, e.msg, e.cause)
}

func (e *Error) Msg() string               { return e.msg }
func (e *Error) Type() Type                { return e.errType }
func (e *Error) Code() Code                { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Unwrap() error             { return e.cause }

func (e *Error) StatusCode() int {
	if s, ok := codeStatus[e.code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// pairs turns k1, v1, k2, v2 into a map. A trailing key without value is
// dropped.
func pairs(kv []string) map[string]string {
	if len(kv) < 2 {
		return nil
	}
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func NewServer(err error) error {
	return &Error{cause: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, errType: TypeBusiness, code: code}
}

// WrapBusiness keeps cause reachable through errors.Is and errors.As and
// exposes kv as response fields.
func WrapBusiness(cause error, msg string, code Code, kv ...string) error {
	return &Error{cause: cause, msg: msg, errType: TypeBusiness, code: code, fields: pairs(kv)}
}

// NewInvalidInput wraps a validator error, or builds field messages from kv
// when err is nil. An odd kv is treated as a malformed body.
func NewInvalidInput(err error, kv ...string) error {
	if err == nil && len(kv)%2 != 0 {
		return NewInvalidFormat()
	}
	return &Error{cause: err, msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput, fields: pairs(kv)}
}

func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}
