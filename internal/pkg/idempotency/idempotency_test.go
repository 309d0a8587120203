package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTracker_Exec(t *testing.T) {
	client := testkit.Redis(t)
	tracker := New(client)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"event_id":"42"}`), nil
	}

	resp, replayed, err := tracker.Exec(ctx, "req-1", fn)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.JSONEq(t, `{"event_id":"42"}`, string(resp))

	resp, replayed, err = tracker.Exec(ctx, "req-1", fn)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.JSONEq(t, `{"event_id":"42"}`, string(resp))
	assert.Equal(t, 1, calls)

	ttl, err := client.TTL(ctx, "idempotency:req-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)
}

func TestStateTracker_ExecFailureReleasesKey(t *testing.T) {
	tracker := New(testkit.Redis(t))
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := tracker.Exec(ctx, "req-2", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	resp, replayed, err := tracker.Exec(ctx, "req-2", func(context.Context) ([]byte, error) { return []byte(`1`), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "1", string(resp))
}

func TestStateTracker_InProgress(t *testing.T) {
	tracker := New(testkit.Redis(t))
	ctx := context.Background()

	rec, err := tracker.Acquire(ctx, "req-3", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, _, err = tracker.Exec(ctx, "req-3", func(context.Context) ([]byte, error) { return []byte(`{}`), nil })
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
}

func TestStateTracker_CorruptRecord(t *testing.T) {
	client := testkit.Redis(t)
	tracker := New(client)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "idempotency:req-4", "not-json", time.Minute).Err())

	_, err := tracker.Acquire(ctx, "req-4", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidState)
}
