package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestRedis_SubmitAndWork(t *testing.T) {
	client := testkit.Redis(t)
	q, err := NewRedis(RedisConfig{Client: client, PollTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Job, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Work(ctx, "otp.deliver", func(_ context.Context, job Job) error {
			got <- job
			return nil
		})
	}()

	job, err := NewJob("otp.deliver", map[string]int{"n": 1}, nil)
	require.NoError(t, err)
	receipt, err := q.Submit(ctx, "otp.deliver", job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, receipt.JobID)

	select {
	case j := <-got:
		assert.Equal(t, job.ID, j.ID)
		assert.Equal(t, 0, j.Attempt)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRedis_RetryThenDeadLetter(t *testing.T) {
	client := testkit.Redis(t)
	q, err := NewRedis(RedisConfig{Client: client, PollTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := atomic.NewInt32(0)
	go func() {
		_ = q.Work(ctx, "flaky", func(context.Context, Job) error {
			calls.Inc()
			return errors.New("smtp down")
		}, WithMaxAttempts(3))
	}()

	job, err := NewJob("otp.deliver", map[string]string{"code": "482913"}, map[string]string{"cID": "c-1"})
	require.NoError(t, err)
	_, err = q.Submit(ctx, "flaky", job)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := client.LLen(ctx, "taskqueue:flaky:dead").Result()
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	raw, err := client.LIndex(ctx, "taskqueue:flaky:dead", 0).Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "482913")
	var dl deadLetter
	require.NoError(t, json.Unmarshal([]byte(raw), &dl))
	assert.Equal(t, job.ID, dl.JobID)
	assert.Equal(t, "exhausted", dl.Reason)
	assert.Equal(t, "smtp down", dl.Error)
	assert.Equal(t, "c-1", dl.Headers["cID"])

	ttl, err := client.TTL(ctx, "taskqueue:flaky:dead").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, q.Close())
	_, err = q.Submit(ctx, "flaky", job)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRedis_DeadLetterIsBounded(t *testing.T) {
	client := testkit.Redis(t)
	q, err := NewRedis(RedisConfig{Client: client, PollTimeout: 100 * time.Millisecond, DeadLetterMax: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for range 3 {
		require.NoError(t, client.LPush(ctx, "taskqueue:garbled", `{"code":"482913"`).Err())
	}
	go func() { _ = q.Work(ctx, "garbled", func(context.Context, Job) error { return nil }) }()

	assert.Eventually(t, func() bool {
		n, err := client.LLen(ctx, "taskqueue:garbled").Result()
		return err == nil && n == 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		items, err := client.LRange(ctx, "taskqueue:garbled:dead", 0, -1).Result()
		if err != nil || len(items) != 2 {
			return false
		}
		for _, it := range items {
			if strings.Contains(it, "482913") || !strings.Contains(it, `"reason":"undecodable"`) {
				return false
			}
		}
		return true
	}, 5*time.Second, 50*time.Millisecond)
}
