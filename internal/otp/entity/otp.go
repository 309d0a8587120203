package entity

import (
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

// Event is one issuance in the durable ledger.
type Event struct {
	ID           int64
	Channel      Channel
	Identifier   string
	Purpose      Purpose
	UserID       *int64
	OTPHash      string
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	Status       Status
	AttemptCount int
	IPAddress    string
	UserAgent    string
	Context      valueobject.JSONMap
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsExpired reports whether the passcode lifetime has passed at now.
func (e Event) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheEntry is the fast-path copy of a pending passcode, keyed by
// channel and identifier.
type CacheEntry struct {
	OTPHash     string    `json:"otp_hash"`
	EventID     int64     `json:"event_id,string"`
	ExpiresAt   time.Time `json:"expires_at"`
	MaxAttempts int       `json:"max_attempts"`
	Attempts    int       `json:"attempts"`
}

// Exhausted reports whether no verification attempts remain.
func (c CacheEntry) Exhausted() bool {
	return c.Attempts >= c.MaxAttempts
}

// Issued is returned to the caller after a successful issuance request.
type Issued struct {
	EventID         int64
	Channel         Channel
	Identifier      string
	ExpiresAt       time.Time
	CooldownSeconds int
}

// Success is the outcome of a correct verification.
type Success struct {
	EventID    int64
	Channel    Channel
	Identifier string
	Purpose    Purpose
	UserID     *int64
	// Currency is only resolved for phone registrations.
	Currency string
}
