package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"
)

// ErrNATSURLRequired is returned when the NATS server URL is missing.
var ErrNATSURLRequired = errors.New("taskqueue: nats url is required")

// NATSConfig configures the NATS backend.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS is a Queue backed by core NATS queue subscriptions. Delivery is at most
// once; a failing job is retried by publishing it again.
type NATS struct {
	conn   *nats.Conn
	closed *atomic.Bool
}

// NewNATS connects to the NATS server.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: nats connect: %w", err)
	}

	return &NATS{conn: conn, closed: atomic.NewBool(false)}, nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	if n.closed.Swap(true) {
		return nil
	}
	err := n.conn.Drain()
	n.conn.Close()
	return err
}

func (n *NATS) Submit(ctx context.Context, queue string, job Job) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if queue == "" {
		return Receipt{}, ErrQueueRequired
	}
	if n.closed.Load() {
		return Receipt{}, ErrClosed
	}

	body, err := encodeJob(job)
	if err != nil {
		return Receipt{}, err
	}

	msg := nats.NewMsg(queue)
	msg.Data = body
	msg.Header.Set("Job-Type", job.Type)

	if err := n.conn.PublishMsg(msg); err != nil {
		return Receipt{}, fmt.Errorf("taskqueue: nats submit: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return Receipt{}, fmt.Errorf("taskqueue: nats flush: %w", err)
	}

	return receiptOf(queue, job), nil
}

func (n *NATS) Work(ctx context.Context, queue string, h Handler, opts ...WorkOption) error {
	if err := validateWork(ctx, queue, h); err != nil {
		return err
	}

	wo := newWorkOptions(opts...)
	msgCh := make(chan *nats.Msg, wo.concurrency)

	sub, err := n.conn.QueueSubscribe(queue, wo.group, func(m *nats.Msg) {
		select {
		case msgCh <- m:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("taskqueue: nats subscribe: %w", err)
	}

	// msgCh is never closed: the subscription callback may still fire while
	// the subscription unwinds. Workers exit on ctx instead.
	var wg sync.WaitGroup
	for range wo.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-msgCh:
					n.handle(ctx, queue, m.Data, h, wo)
				}
			}
		})
	}

	<-ctx.Done()

	uerr := sub.Unsubscribe()
	wg.Wait()

	if errors.Is(uerr, nats.ErrConnectionClosed) {
		uerr = nil
	}
	return errors.Join(ctx.Err(), uerr)
}

func (n *NATS) handle(ctx context.Context, queue string, body []byte, h Handler, wo workOptions) {
	job, err := decodeJob(body)
	if err != nil {
		slog.ErrorContext(ctx, "taskqueue: dropping undecodable job", "queue", queue, "error", err)
		return
	}

	herr := run(ctx, "nats", h, job)
	if herr == nil {
		return
	}

	if !wo.canRetry(job) {
		slog.ErrorContext(ctx, "taskqueue: job exhausted attempts", "queue", queue, "job_id", job.ID, "attempt", job.Attempt, "error", herr)
		return
	}

	job.Attempt++
	if _, err := n.Submit(context.WithoutCancel(ctx), queue, job); err != nil {
		slog.ErrorContext(ctx, "taskqueue: failed to requeue job", "queue", queue, "job_id", job.ID, "error", err)
	}
}
