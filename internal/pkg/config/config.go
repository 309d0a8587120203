// Package config reads settings by dotted key ("otp.max_attempts"). Missing
// or unconvertible values come back as the zero value; callers apply their
// own defaults.
package config

import (
	"io"
	"time"
)

type Config interface {
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetFloat64(key string) float64

	// Durations stored as plain integers in the named unit.
	GetMillisecond(key string) time.Duration
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration

	// GetBinary base64-decodes the value, nil on bad input.
	GetBinary(key string) []byte
	// GetArray accepts "a, b,c" or a native list and drops blanks.
	GetArray(key string) []string

	io.Closer
}
