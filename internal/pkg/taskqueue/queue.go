package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

var (
	// ErrQueueRequired is returned when the queue name is empty.
	ErrQueueRequired = errors.New("taskqueue: queue name is required")
	// ErrHandlerRequired is returned when Work is called with a nil handler.
	ErrHandlerRequired = errors.New("taskqueue: handler is required")
	// ErrGroupRequired is returned by drivers that need a consumer group.
	ErrGroupRequired = errors.New("taskqueue: consumer group is required")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("taskqueue: queue is closed")
)

// Queue submits jobs and runs workers.
type Queue interface {
	io.Closer

	// Submit hands job to the broker and returns as soon as it is accepted.
	Submit(ctx context.Context, queue string, job Job) (Receipt, error)

	// Work processes jobs from queue until ctx is done. A handler error
	// schedules a retry while attempts remain.
	Work(ctx context.Context, queue string, h Handler, opts ...WorkOption) error
}

// Handler processes a job.
type Handler func(ctx context.Context, job Job) error

// Job is the envelope carried by every driver.
type Job struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Headers     map[string]string `json:"headers,omitempty"`
	Payload     json.RawMessage   `json:"payload"`
	Attempt     int               `json:"attempt"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// NewJob encodes payload into a fresh job.
func NewJob(jobType string, payload any, headers map[string]string) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("taskqueue: encode payload: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Job{}, err
	}

	return Job{
		ID:          id.String(),
		Type:        jobType,
		Headers:     headers,
		Payload:     raw,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Header returns the header value for key, or "".
func (j Job) Header(key string) string {
	return j.Headers[key]
}

// Decode unmarshals the payload into dst.
func (j Job) Decode(dst any) error {
	return json.Unmarshal(j.Payload, dst)
}

// Receipt acknowledges that a broker accepted a job.
type Receipt struct {
	JobID      string
	Queue      string
	AcceptedAt time.Time
}

func encodeJob(job Job) ([]byte, error) {
	if job.ID == "" {
		return nil, errors.New("taskqueue: job id is required")
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	return json.Marshal(job)
}

func decodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("taskqueue: decode job: %w", err)
	}
	if job.ID == "" {
		return Job{}, errors.New("taskqueue: decode job: missing id")
	}
	return job, nil
}

func receiptOf(queue string, job Job) Receipt {
	return Receipt{JobID: job.ID, Queue: queue, AcceptedAt: time.Now().UTC()}
}

func validateWork(ctx context.Context, queue string, h Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if queue == "" {
		return ErrQueueRequired
	}
	if h == nil {
		return ErrHandlerRequired
	}
	return nil
}

// run calls h and turns a panic into an error.
func run(ctx context.Context, driver string, h Handler, job Job) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic in job handler",
				"driver", driver, "job_id", job.ID, "panic", rvr, "stack", stacktrace.Internal(0))
			err = fmt.Errorf("taskqueue: panic in %s handler: %v", driver, rvr)
		}
	}()

	return h(ctx, job)
}
