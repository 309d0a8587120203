package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/atomic"
	"google.golang.org/api/option"
)

// ErrPubSubProjectIDRequired is returned when no project id is configured.
var ErrPubSubProjectIDRequired = errors.New("taskqueue: pubsub project id is required")

// PubSubConfig configures the Google Pub/Sub backend.
type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
	ClientOptions   []option.ClientOption
}

// PubSub is a Queue backed by Google Pub/Sub. Submit publishes to the topic
// named queue; Work receives from the subscription given by WithGroup.
// Failing jobs are nacked and redelivered by Pub/Sub.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
	closed     *atomic.Bool
}

// NewPubSub constructs a Pub/Sub-backed queue.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	opts := append([]option.ClientOption{}, cfg.ClientOptions...)
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	c, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: pubsub new client: %w", err)
	}

	return &PubSub{
		client:     c,
		publishers: map[string]*pubsub.Publisher{},
		closed:     atomic.NewBool(false),
	}, nil
}

// Close stops publishers and closes the client.
func (p *PubSub) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	pubs := p.publishers
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

func (p *PubSub) publisher(topic string) *pubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pub, ok := p.publishers[topic]; ok {
		return pub
	}
	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub
}

func (p *PubSub) Submit(ctx context.Context, queue string, job Job) (Receipt, error) {
	if queue == "" {
		return Receipt{}, ErrQueueRequired
	}
	if p.closed.Load() {
		return Receipt{}, ErrClosed
	}

	body, err := encodeJob(job)
	if err != nil {
		return Receipt{}, err
	}

	res := p.publisher(queue).Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"job_type": job.Type},
	})
	if _, err := res.Get(ctx); err != nil {
		return Receipt{}, fmt.Errorf("taskqueue: pubsub submit: %w", err)
	}

	return receiptOf(queue, job), nil
}

func (p *PubSub) Work(ctx context.Context, queue string, h Handler, opts ...WorkOption) error {
	if err := validateWork(ctx, queue, h); err != nil {
		return err
	}

	wo := newWorkOptions(opts...)
	if wo.group == "" {
		return ErrGroupRequired
	}

	sub := p.client.Subscriber(wo.group)
	sub.ReceiveSettings.NumGoroutines = wo.concurrency
	if wo.maxInFlight > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = wo.maxInFlight
	}

	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		job, err := decodeJob(m.Data)
		if err != nil {
			slog.ErrorContext(ctx, "taskqueue: dropping undecodable job", "queue", queue, "error", err)
			m.Ack()
			return
		}
		if m.DeliveryAttempt != nil {
			job.Attempt = *m.DeliveryAttempt - 1
		}

		if herr := run(ctx, "pubsub", h, job); herr != nil {
			if wo.canRetry(job) {
				m.Nack()
				return
			}
			slog.ErrorContext(ctx, "taskqueue: job exhausted attempts", "queue", queue, "job_id", job.ID, "attempt", job.Attempt, "error", herr)
		}
		m.Ack()
	})
	if err != nil {
		return fmt.Errorf("taskqueue: pubsub receive: %w", err)
	}

	return ctx.Err()
}
