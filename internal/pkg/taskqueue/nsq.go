package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	nsq "github.com/nsqio/go-nsq"
	"go.uber.org/atomic"
)

var (
	// ErrNSQProducerAddrRequired is returned when Submit has no nsqd to publish to.
	ErrNSQProducerAddrRequired = errors.New("taskqueue: nsq producer address is required")
	// ErrNSQConsumerAddrsRequired is returned when no nsqd/lookupd consumer addresses are configured.
	ErrNSQConsumerAddrsRequired = errors.New("taskqueue: nsq consumer nsqd/lookupd addresses are required")
)

// NSQConfig configures the NSQ backend.
type NSQConfig struct {
	ProducerAddr         string
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string

	// RequeueDelay is the backoff applied to a failing job. Defaults to 5s.
	RequeueDelay time.Duration
}

// NSQ is a Queue backed by NSQ topics; the work group is the NSQ channel.
// Failing jobs are requeued by nsqd, which tracks attempts itself.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer

	mu        sync.Mutex
	consumers []*nsq.Consumer
	closed    *atomic.Bool
}

// NewNSQ constructs an NSQ-backed queue.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.RequeueDelay <= 0 {
		cfg.RequeueDelay = 5 * time.Second
	}

	q := &NSQ{cfg: cfg, closed: atomic.NewBool(false)}
	if cfg.ProducerAddr != "" {
		p, err := nsq.NewProducer(cfg.ProducerAddr, nsq.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("taskqueue: nsq new producer: %w", err)
		}
		p.SetLoggerLevel(nsq.LogLevelError)
		q.producer = p
	}

	return q, nil
}

// Close stops consumers and the producer.
func (n *NSQ) Close() error {
	if n.closed.Swap(true) {
		return nil
	}

	n.mu.Lock()
	consumers := n.consumers
	n.consumers = nil
	n.mu.Unlock()

	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

func (n *NSQ) Submit(ctx context.Context, queue string, job Job) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if queue == "" {
		return Receipt{}, ErrQueueRequired
	}
	if n.producer == nil {
		return Receipt{}, ErrNSQProducerAddrRequired
	}
	if n.closed.Load() {
		return Receipt{}, ErrClosed
	}

	body, err := encodeJob(job)
	if err != nil {
		return Receipt{}, err
	}

	if err := n.producer.Publish(queue, body); err != nil {
		return Receipt{}, fmt.Errorf("taskqueue: nsq submit: %w", err)
	}

	return receiptOf(queue, job), nil
}

func (n *NSQ) Work(ctx context.Context, queue string, h Handler, opts ...WorkOption) error {
	if err := validateWork(ctx, queue, h); err != nil {
		return err
	}
	if len(n.cfg.ConsumerNSQDAddrs) == 0 && len(n.cfg.ConsumerLookupdAddrs) == 0 {
		return ErrNSQConsumerAddrsRequired
	}

	wo := newWorkOptions(opts...)
	if wo.group == "" {
		return ErrGroupRequired
	}

	ccfg := nsq.NewConfig()
	ccfg.MaxInFlight = max(wo.maxInFlight, wo.concurrency)
	ccfg.MaxAttempts = uint16(wo.maxAttempts)

	consumer, err := nsq.NewConsumer(queue, wo.group, ccfg)
	if err != nil {
		return fmt.Errorf("taskqueue: nsq new consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(n.handler(ctx, queue, h, wo), wo.concurrency)

	n.mu.Lock()
	n.consumers = append(n.consumers, consumer)
	n.mu.Unlock()

	if len(n.cfg.ConsumerLookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.ConsumerLookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.ConsumerNSQDAddrs)
	}
	if err != nil {
		consumer.Stop()
		<-consumer.StopChan
		return fmt.Errorf("taskqueue: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func (n *NSQ) handler(ctx context.Context, queue string, h Handler, wo workOptions) nsq.HandlerFunc {
	return func(m *nsq.Message) error {
		m.DisableAutoResponse()

		job, err := decodeJob(m.Body)
		if err != nil {
			slog.ErrorContext(ctx, "taskqueue: dropping undecodable job", "queue", queue, "error", err)
			m.Finish()
			return nil
		}
		// nsqd counts deliveries starting at 1
		job.Attempt = int(m.Attempts) - 1

		if herr := run(ctx, "nsq", h, job); herr != nil {
			if wo.canRetry(job) {
				m.Requeue(n.cfg.RequeueDelay)
				return nil
			}
			slog.ErrorContext(ctx, "taskqueue: job exhausted attempts", "queue", queue, "job_id", job.ID, "attempt", job.Attempt, "error", herr)
		}

		m.Finish()
		return nil
	}
}
