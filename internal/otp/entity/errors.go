package entity

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidFormat         = errors.New("otp: invalid identifier format")
	ErrThrottled             = errors.New("otp: throttled")
	ErrOTPNotFound           = errors.New("otp: not found")
	ErrOTPExpired            = errors.New("otp: expired")
	ErrTooManyAttempts       = errors.New("otp: too many attempts")
	ErrIncorrectCode         = errors.New("otp: incorrect code")
	ErrInternalInconsistency = errors.New("otp: cache and ledger disagree")
)

// ThrottledError carries the policy that refused issuance and how long the
// caller has to wait. It matches ErrThrottled under errors.Is.
type ThrottledError struct {
	Reason     ThrottleReason
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("otp: throttled by %s, retry after %ds", e.Reason, e.RetryAfterSeconds())
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func (e *ThrottledError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
