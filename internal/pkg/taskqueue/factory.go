package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverRedis        = "redis"
	DriverKafka        = "kafka"
	DriverNATS         = "nats"
	DriverNSQ          = "nsq"
	DriverGooglePubSub = "google-pubsub"
)

// ErrUnknownDriver indicates an unsupported queue driver.
var ErrUnknownDriver = errors.New("taskqueue: unknown driver")

// FactoryOptions groups config for every supported backend.
type FactoryOptions struct {
	Redis  RedisConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	NSQ    NSQConfig
	PubSub PubSubConfig
}

// NewFromDriver constructs a Queue by driver name.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverRedis:
		return NewRedis(opts.Redis)
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverNATS:
		return NewNATS(opts.NATS)
	case DriverNSQ:
		return NewNSQ(opts.NSQ)
	case DriverGooglePubSub:
		return NewPubSub(ctx, opts.PubSub)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
