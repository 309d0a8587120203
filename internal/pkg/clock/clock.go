// Package clock is the single source of "now" for expiry, cooldown and
// sweep decisions, so tests can move time by hand.
package clock

import (
	"sync"
	"time"
)

type Clocker interface {
	Now() time.Time
}

type TimeClocker struct{}

func New() *TimeClocker { return &TimeClocker{} }

func (*TimeClocker) Now() time.Time { return time.Now() }

// Frozen only moves when Advance is called. Safe for concurrent use.
type Frozen struct {
	mu  sync.Mutex
	now time.Time
}

func NewFrozen(t time.Time) *Frozen { return &Frozen{now: t} }

func (f *Frozen) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Frozen) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
