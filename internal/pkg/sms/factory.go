package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// DriverSNS selects Amazon SNS.
	DriverSNS = "sns"
	// DriverLog selects the logging sender.
	DriverLog = "log"
)

// ErrUnknownDriver indicates an unsupported sms driver.
var ErrUnknownDriver = errors.New("sms: unknown driver")

// NewFromDriver constructs a Sender by driver name.
func NewFromDriver(ctx context.Context, driver string, snsCfg SNSConfig) (Sender, error) {
	switch strings.ToLower(driver) {
	case DriverSNS:
		return NewSNS(ctx, snsCfg)
	case DriverLog, "":
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
