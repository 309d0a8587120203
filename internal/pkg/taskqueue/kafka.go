package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/atomic"
)

// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
var ErrKafkaBrokersRequired = errors.New("taskqueue: kafka brokers are required")

// KafkaConfig configures the Kafka backend.
type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer
}

// Kafka is a Queue backed by kafka-go. Every queue is a topic; Work requires a
// consumer group. Kafka has no negative ack, so a failing job is retried by
// publishing it again with its attempt counter increased.
type Kafka struct {
	brokers []string
	dialer  *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  *atomic.Bool
}

// NewKafka constructs a Kafka-backed queue.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		brokers: append([]string{}, cfg.Brokers...),
		dialer:  cfg.Dialer,
		writers: map[string]*kafka.Writer{},
		closed:  atomic.NewBool(false),
	}, nil
}

// Close flushes and closes all writers.
func (k *Kafka) Close() error {
	if k.closed.Swap(true) {
		return nil
	}

	k.mu.Lock()
	writers := k.writers
	k.writers = nil
	k.mu.Unlock()

	var closeErr error
	for _, w := range writers {
		closeErr = errors.Join(closeErr, w.Close())
	}
	return closeErr
}

func (k *Kafka) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if w, ok := k.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if k.dialer != nil {
		w.Transport = &kafka.Transport{
			SASL: k.dialer.SASLMechanism,
			TLS:  k.dialer.TLS,
		}
	}
	k.writers[topic] = w
	return w
}

func (k *Kafka) Submit(ctx context.Context, queue string, job Job) (Receipt, error) {
	if queue == "" {
		return Receipt{}, ErrQueueRequired
	}
	if k.closed.Load() {
		return Receipt{}, ErrClosed
	}

	body, err := encodeJob(job)
	if err != nil {
		return Receipt{}, err
	}

	msg := kafka.Message{
		Key:   []byte(job.ID),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "job_type", Value: []byte(job.Type)},
		},
	}
	if err := k.writer(queue).WriteMessages(ctx, msg); err != nil {
		return Receipt{}, fmt.Errorf("taskqueue: kafka submit: %w", err)
	}

	return receiptOf(queue, job), nil
}

func (k *Kafka) Work(ctx context.Context, queue string, h Handler, opts ...WorkOption) error {
	if err := validateWork(ctx, queue, h); err != nil {
		return err
	}

	wo := newWorkOptions(opts...)
	if wo.group == "" {
		return ErrGroupRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  wo.group,
		Topic:    queue,
		MaxBytes: 10e6,
		Dialer:   k.dialer,
	})

	msgCh := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range wo.concurrency {
		wg.Go(func() {
			for m := range msgCh {
				k.handle(ctx, reader, queue, m, h, wo)
			}
		})
	}

	var fetchErr error
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				fetchErr = fmt.Errorf("taskqueue: kafka fetch: %w", err)
			}
			break
		}
		msgCh <- m
	}

	close(msgCh)
	wg.Wait()

	return errors.Join(fetchErr, ctx.Err(), reader.Close())
}

func (k *Kafka) handle(ctx context.Context, reader *kafka.Reader, queue string, m kafka.Message, h Handler, wo workOptions) {
	job, err := decodeJob(m.Value)
	if err != nil {
		slog.ErrorContext(ctx, "taskqueue: dropping undecodable job", "queue", queue, "offset", m.Offset, "error", err)
	} else if herr := run(ctx, "kafka", h, job); herr != nil {
		if wo.canRetry(job) {
			job.Attempt++
			if _, err := k.Submit(context.WithoutCancel(ctx), queue, job); err != nil {
				// leave uncommitted; the group redelivers after a rebalance
				slog.ErrorContext(ctx, "taskqueue: failed to requeue job", "queue", queue, "job_id", job.ID, "error", err)
				return
			}
		} else {
			slog.ErrorContext(ctx, "taskqueue: job exhausted attempts", "queue", queue, "job_id", job.ID, "attempt", job.Attempt, "error", herr)
		}
	}

	if err := reader.CommitMessages(context.WithoutCancel(ctx), m); err != nil {
		slog.ErrorContext(ctx, "taskqueue: kafka commit failed", "queue", queue, "offset", m.Offset, "error", err)
	}
}
