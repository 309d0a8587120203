package entity

import (
	"errors"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

var (
	ErrUnsupportedChannel = errors.New("unsupported delivery channel")
	ErrPasscodeExpired    = errors.New("passcode expired before delivery")
)

type CreateDeliveryLog struct {
	ID        int64
	EventID   int64
	Channel   Channel
	Recipient string
	Purpose   string
	JobID     string
	Attempt   int
	CreatedAt time.Time
}

type UpdateDeliveryLog struct {
	ID               int64
	Status           DeliveryStatus
	ProviderResponse valueobject.JSONMap
	UpdatedAt        time.Time
}

type DeliveryLog struct {
	ID               int64
	EventID          int64
	Channel          Channel
	Recipient        string
	Purpose          string
	Status           DeliveryStatus
	JobID            string
	Attempt          int
	ProviderResponse valueobject.JSONMap
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DeliveryResult reports how a single delivery went. A failed send is a
// result, not an error.
type DeliveryResult struct {
	Success    bool
	Identifier string
	MessageID  string
	Error      string
}

// Rendered is a message ready for a provider.
type Rendered struct {
	Subject  string
	TextBody string
	HTMLBody string
}
