package uid

import "github.com/google/uuid"

// UUID issues time-ordered v7 strings: correlation ids and queue job ids.
type UUID struct{}

func NewUUID() *UUID { return &UUID{} }

// Generate falls back to a random v4 if the v7 clock read fails.
func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
