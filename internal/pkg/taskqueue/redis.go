package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
)

// ErrRedisClientRequired is returned when no redis client is configured.
var ErrRedisClientRequired = errors.New("taskqueue: redis client is required")

// RedisConfig configures the redis list backend.
type RedisConfig struct {
	Client redis.UniversalClient

	// Prefix namespaces list keys. Defaults to "taskqueue:".
	Prefix string

	// PollTimeout bounds a single BRPOP so workers notice shutdown.
	PollTimeout time.Duration

	// DeadLetterMax caps "<queue>:dead" to its newest entries. Defaults to 1000.
	DeadLetterMax int64

	// DeadLetterTTL expires the dead-letter list after its last write.
	// Defaults to 24h.
	DeadLetterTTL time.Duration
}

// Redis is a Queue backed by redis lists: LPUSH to submit, BRPOP to work.
// Jobs that exhaust their attempts leave a deadLetter record in
// "<queue>:dead". Payloads are never dead-lettered since they may carry
// secrets.
type Redis struct {
	client      redis.UniversalClient
	prefix      string
	pollTimeout time.Duration
	deadMax     int64
	deadTTL     time.Duration
	closed      *atomic.Bool
}

// deadLetter is the metadata kept for a job that could not be processed.
type deadLetter struct {
	JobID       string            `json:"job_id,omitempty"`
	Type        string            `json:"type,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attempt     int               `json:"attempt"`
	SubmittedAt time.Time         `json:"submitted_at,omitzero"`
	Reason      string            `json:"reason"`
	Error       string            `json:"error"`
	BuriedAt    time.Time         `json:"buried_at"`
}

// NewRedis constructs a redis-backed queue. The client is owned by the caller.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrRedisClientRequired
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "taskqueue:"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.DeadLetterMax <= 0 {
		cfg.DeadLetterMax = 1000
	}
	if cfg.DeadLetterTTL <= 0 {
		cfg.DeadLetterTTL = 24 * time.Hour
	}

	return &Redis{
		client:      cfg.Client,
		prefix:      cfg.Prefix,
		pollTimeout: cfg.PollTimeout,
		deadMax:     cfg.DeadLetterMax,
		deadTTL:     cfg.DeadLetterTTL,
		closed:      atomic.NewBool(false),
	}, nil
}

func (r *Redis) key(queue string) string     { return r.prefix + queue }
func (r *Redis) deadKey(queue string) string { return r.prefix + queue + ":dead" }

// Close stops accepting work. It does not close the shared redis client.
func (r *Redis) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *Redis) Submit(ctx context.Context, queue string, job Job) (Receipt, error) {
	if queue == "" {
		return Receipt{}, ErrQueueRequired
	}
	if r.closed.Load() {
		return Receipt{}, ErrClosed
	}

	body, err := encodeJob(job)
	if err != nil {
		return Receipt{}, err
	}

	if err := r.client.LPush(ctx, r.key(queue), body).Err(); err != nil {
		return Receipt{}, fmt.Errorf("taskqueue: redis submit: %w", err)
	}

	return receiptOf(queue, job), nil
}

func (r *Redis) Work(ctx context.Context, queue string, h Handler, opts ...WorkOption) error {
	if err := validateWork(ctx, queue, h); err != nil {
		return err
	}

	wo := newWorkOptions(opts...)

	var wg sync.WaitGroup
	for range wo.concurrency {
		wg.Go(func() { r.poll(ctx, queue, h, wo) })
	}
	wg.Wait()

	return ctx.Err()
}

func (r *Redis) poll(ctx context.Context, queue string, h Handler, wo workOptions) {
	for ctx.Err() == nil && !r.closed.Load() {
		res, err := r.client.BRPop(ctx, r.pollTimeout, r.key(queue)).Result()
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "taskqueue: redis poll failed", "queue", queue, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(r.pollTimeout):
			}
			continue
		}

		// res[0] is the key, res[1] the payload
		r.handle(ctx, queue, []byte(res[1]), h, wo)
	}
}

func (r *Redis) handle(ctx context.Context, queue string, body []byte, h Handler, wo workOptions) {
	job, err := decodeJob(body)
	if err != nil {
		slog.ErrorContext(ctx, "taskqueue: dropping undecodable job", "queue", queue, "error", err)
		r.bury(ctx, queue, deadLetter{Reason: "undecodable", Error: err.Error()})
		return
	}

	herr := run(ctx, "redis", h, job)
	if herr == nil {
		return
	}

	if !wo.canRetry(job) {
		slog.ErrorContext(ctx, "taskqueue: job exhausted attempts", "queue", queue, "job_id", job.ID, "attempt", job.Attempt, "error", herr)
		r.bury(ctx, queue, deadLetter{
			JobID:       job.ID,
			Type:        job.Type,
			Headers:     job.Headers,
			Attempt:     job.Attempt,
			SubmittedAt: job.SubmittedAt,
			Reason:      "exhausted",
			Error:       herr.Error(),
		})
		return
	}

	job.Attempt++
	if _, err := r.Submit(context.WithoutCancel(ctx), queue, job); err != nil {
		slog.ErrorContext(ctx, "taskqueue: failed to requeue job", "queue", queue, "job_id", job.ID, "error", err)
	}
}

func (r *Redis) bury(ctx context.Context, queue string, dl deadLetter) {
	dl.BuriedAt = time.Now().UTC()
	body, err := json.Marshal(dl)
	if err != nil {
		slog.ErrorContext(ctx, "taskqueue: failed to encode dead letter", "queue", queue, "error", err)
		return
	}

	key := r.deadKey(queue)
	bctx := context.WithoutCancel(ctx)
	_, err = r.client.TxPipelined(bctx, func(p redis.Pipeliner) error {
		p.LPush(bctx, key, body)
		p.LTrim(bctx, key, 0, r.deadMax-1)
		p.Expire(bctx, key, r.deadTTL)
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "taskqueue: failed to dead-letter job", "queue", queue, "error", err)
	}
}
