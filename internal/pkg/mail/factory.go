package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// DriverSMTP selects the SMTP backend.
	DriverSMTP = "smtp"
	// DriverSES selects the Amazon SES backend.
	DriverSES = "ses"
	// DriverLog selects the logging backend.
	DriverLog = "log"
)

// ErrUnknownDriver indicates an unsupported mail driver.
var ErrUnknownDriver = errors.New("mail: unknown driver")

// FactoryOptions groups configuration for mail drivers.
type FactoryOptions struct {
	// From is the default sender shared by every driver.
	From string
	SMTP SMTPConfig
	SES  SESConfig
}

// NewFromDriver constructs a Mail implementation by driver name.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Mail, error) {
	switch strings.ToLower(driver) {
	case DriverSMTP:
		cfg := opts.SMTP
		if cfg.From == "" {
			cfg.From = opts.From
		}
		return NewSMTP(cfg)
	case DriverSES:
		cfg := opts.SES
		if cfg.From == "" {
			cfg.From = opts.From
		}
		return NewSES(ctx, cfg)
	case DriverLog, "":
		return NewLog(opts.From), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
