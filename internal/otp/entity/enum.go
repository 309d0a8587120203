package entity

import "errors"

// ErrStatusNotTerminal rejects a transition to pending or to an unknown status.
var ErrStatusNotTerminal = errors.New("otp: status is not a terminal ledger state")

// Channel is the transport a passcode is delivered over.
type Channel string

const (
	// ChannelEmail mean the identifier is a lower-cased email address.
	ChannelEmail Channel = "email"

	// ChannelPhone mean the identifier is an E.164 phone number.
	ChannelPhone Channel = "phone"
)

func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

func (c Channel) String() string {
	return string(c)
}

// Purpose scopes a passcode to the flow that requested it. A code issued for
// one purpose never verifies another.
type Purpose string

const (
	// PurposeRegister is for sign up, phone only.
	PurposeRegister Purpose = "register"

	// PurposeLogin is for passwordless sign in.
	PurposeLogin Purpose = "login"

	// PurposeVerify confirms a contact of an existing user, so it carries a user id.
	PurposeVerify Purpose = "verify"
)

func (p Purpose) IsValid() bool {
	switch p {
	case PurposeRegister, PurposeLogin, PurposeVerify:
		return true
	default:
		return false
	}
}

func (p Purpose) String() string {
	return string(p)
}

// Status is the ledger state of an issued passcode. Pending is the only
// state that ever transitions.
type Status string

const (
	// StatusPending mean the code is live and may still be verified.
	StatusPending Status = "pending"

	// StatusVerified mean the code was consumed by a successful verification.
	StatusVerified Status = "verified"

	// StatusExpired mean expires_at passed before a successful verification.
	StatusExpired Status = "expired"

	// StatusFailed mean the attempts ran out.
	StatusFailed Status = "failed"

	// StatusCancelled mean a newer code for the same identifier replaced it.
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// IsUnknown reports whether s is not one of the ledger states.
func (s Status) IsUnknown() bool {
	switch s {
	case StatusPending, StatusVerified, StatusExpired, StatusFailed, StatusCancelled:
		return false
	default:
		return true
	}
}

func (s Status) String() string {
	return string(s)
}

// ThrottleReason names the policy that rejected an issuance request.
type ThrottleReason string

const (
	// ThrottleCooldown mean the previous code is too recent.
	ThrottleCooldown ThrottleReason = "cooldown"

	// ThrottleRateLimit mean the hourly quota is used up.
	ThrottleRateLimit ThrottleReason = "rate_limit"
)

// ConsumeResult is the outcome of atomically spending one verification attempt.
type ConsumeResult int

const (
	// ConsumeOK means the attempt was recorded.
	ConsumeOK ConsumeResult = iota
	// ConsumeExhausted means no attempts were left; nothing was recorded.
	ConsumeExhausted
	// ConsumeMissing means the entry vanished or now belongs to another event.
	ConsumeMissing
)

// VerifyOutcome labels verification results for metrics.
type VerifyOutcome string

const (
	OutcomeSuccess         VerifyOutcome = "success"
	OutcomeNotFound        VerifyOutcome = "not_found"
	OutcomeExpired         VerifyOutcome = "expired"
	OutcomeTooManyAttempts VerifyOutcome = "too_many_attempts"
	OutcomeIncorrectCode   VerifyOutcome = "incorrect_code"
	OutcomeError           VerifyOutcome = "error"
)
