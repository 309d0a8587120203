package taskqueue

const defaultMaxAttempts = 5

type workOptions struct {
	// group is the Kafka consumer group, NSQ channel, NATS queue group or
	// Pub/Sub subscription depending on the driver.
	group string

	concurrency int

	// maxInFlight limits unacknowledged messages (NSQ, Pub/Sub).
	maxInFlight int

	// maxAttempts bounds deliveries of a failing job before it is dropped
	// (or dead-lettered where the driver supports it).
	maxAttempts int
}

// WorkOption configures a worker.
type WorkOption func(*workOptions)

func newWorkOptions(opts ...WorkOption) workOptions {
	wo := workOptions{concurrency: 1, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(&wo)
		}
	}
	if wo.concurrency <= 0 {
		wo.concurrency = 1
	}
	if wo.maxAttempts <= 0 {
		wo.maxAttempts = defaultMaxAttempts
	}
	return wo
}

// canRetry reports whether a failed job gets another delivery.
func (o workOptions) canRetry(job Job) bool {
	return job.Attempt+1 < o.maxAttempts
}

// WithGroup sets the consumer group / channel / subscription name.
func WithGroup(group string) WorkOption {
	return func(o *workOptions) { o.group = group }
}

// WithConcurrency sets how many handlers run in parallel.
func WithConcurrency(n int) WorkOption {
	return func(o *workOptions) { o.concurrency = n }
}

// WithMaxInFlight limits unacknowledged messages held by the worker.
func WithMaxInFlight(n int) WorkOption {
	return func(o *workOptions) { o.maxInFlight = n }
}

// WithMaxAttempts bounds how many times a failing job is delivered.
func WithMaxAttempts(n int) WorkOption {
	return func(o *workOptions) { o.maxAttempts = n }
}
