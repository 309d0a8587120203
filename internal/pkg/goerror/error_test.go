package goerror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapBusiness(t *testing.T) {
	cause := errors.New("otp expired")
	err := WrapBusiness(cause, "Code has expired", CodeGone, "reason", "expired", "dangling")

	assert.ErrorIs(t, err, cause)

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	assert.Equal(t, TypeBusiness, gerr.Type())
	assert.Equal(t, "Code has expired", gerr.Msg())
	assert.Equal(t, http.StatusGone, gerr.StatusCode())
	assert.Equal(t, map[string]string{"reason": "expired"}, gerr.Fields())
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "server", err: NewServer(errors.New("boom")), want: http.StatusInternalServerError},
		{name: "business not found", err: NewBusiness("missing", CodeNotFound), want: http.StatusNotFound},
		{name: "business throttled", err: NewBusiness("slow down", CodeTooManyRequest), want: http.StatusTooManyRequests},
		{name: "invalid format", err: NewInvalidFormat(), want: http.StatusBadRequest},
		{name: "invalid input", err: NewInvalidInput(nil, "field", "bad"), want: http.StatusBadRequest},
		{name: "odd kv", err: NewInvalidInput(nil, "field"), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gerr *Error
			if !errors.As(tt.err, &gerr) {
				t.Fatalf("expected *Error, got %T", tt.err)
			}
			assert.Equal(t, tt.want, gerr.StatusCode())
		})
	}
}

func TestNewInvalidInput(t *testing.T) {
	var gerr *Error

	assert.True(t, errors.As(NewInvalidInput(nil, "identifier", "not a valid phone number"), &gerr))
	assert.Equal(t, TypeValidation, gerr.Type())
	assert.Equal(t, CodeInvalidInput, gerr.Code())
	assert.Equal(t, map[string]string{"identifier": "not a valid phone number"}, gerr.Fields())

	assert.True(t, errors.As(NewInvalidInput(nil, "identifier"), &gerr))
	assert.Equal(t, CodeInvalidFormat, gerr.Code())

	cause := errors.New("validator says no")
	err := NewInvalidInput(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "validator says no", err.Error())
}
