// Package idempotency lets a caller run an operation at most once per key and
// replay the recorded response to later duplicates.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrInvalidState      = errors.New("invalid state")
)

type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

func (s State) String() string {
	return string(s)
}

// Record is the value stored per key.
type Record struct {
	State    State           `json:"state"`
	Response json.RawMessage `json:"response,omitempty"`
}

type Idempotency interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (*Record, error)
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...Option) ([]byte, bool, error)
}

type StateTracker struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable) *StateTracker {
	return &StateTracker{
		client: client,
		prefix: "idempotency:",
	}
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour
)

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

func WithLockDuration(lockDuration time.Duration) Option {
	return func(o *execOptions) {
		o.lockDuration = lockDuration
	}
}

func WithStateTTL(stateTTL time.Duration) Option {
	return func(o *execOptions) {
		o.stateTTL = stateTTL
	}
}

// Acquire claims key for lockDuration. It returns nil when the claim
// succeeded, otherwise the record currently held under key.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (*Record, error) {
	fk := s.prefix + key

	claim, err := json.Marshal(Record{State: StateInProgress})
	if err != nil {
		return nil, err
	}

	for range 2 {
		acquired, err := s.client.SetNX(ctx, fk, claim, lockDuration).Result()
		if err != nil {
			return nil, err
		}
		if acquired {
			return nil, nil
		}

		raw, err := s.client.Get(ctx, fk).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET, claim again
			continue
		}
		if err != nil {
			return nil, err
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, ErrInvalidState
		}
		switch rec.State {
		case StateInProgress, StateCompleted:
			return &rec, nil
		default:
			return nil, ErrInvalidState
		}
	}

	return nil, ErrInvalidState
}

// Complete stores response (a JSON document) for key, replacing the
// in-progress claim.
func (s *StateTracker) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	raw, err := json.Marshal(Record{State: StateCompleted, Response: response})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, ttl).Err()
}

// Release drops the claim so the operation can be retried with the same key.
func (s *StateTracker) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Exec runs fn once per key. A duplicate of a completed call gets the stored
// response and replayed=true; a duplicate of a running call gets
// ErrAlreadyInProgress. When fn fails the key is released.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...Option) (response []byte, replayed bool, err error) {
	execOpt := &execOptions{
		lockDuration: defaultLockDuration,
		stateTTL:     defaultStateTTL,
	}
	for _, opt := range opts {
		opt(execOpt)
	}
	if execOpt.lockDuration <= 0 {
		execOpt.lockDuration = defaultLockDuration
	}
	if execOpt.stateTTL <= 0 {
		execOpt.stateTTL = defaultStateTTL
	}

	rec, err := s.Acquire(ctx, key, execOpt.lockDuration)
	if err != nil {
		return nil, false, err
	}
	if rec != nil {
		if rec.State == StateInProgress {
			return nil, false, ErrAlreadyInProgress
		}
		return rec.Response, true, nil
	}

	response, err = fn(ctx)
	if err != nil {
		if relErr := s.Release(ctx, key); relErr != nil {
			return nil, false, errors.Join(err, relErr)
		}
		return nil, false, err
	}

	if err := s.Complete(ctx, key, response, execOpt.stateTTL); err != nil {
		return nil, false, err
	}

	return response, false, nil
}
