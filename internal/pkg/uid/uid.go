// Package uid generates identifiers: snowflake numbers for database rows and
// time-ordered UUIDs for correlation ids and message ids.
package uid

// NumberID generates unique int64 identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
