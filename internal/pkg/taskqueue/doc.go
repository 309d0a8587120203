// Package taskqueue submits jobs to a broker and runs workers that process
// them.
//
// A job travels as a JSON envelope in the message body on every backend, so
// handlers see the same Job shape whether the driver is a redis list, Kafka,
// NATS, NSQ or Google Pub/Sub. Submit returns once the broker accepted the
// job; it never waits for a worker.
package taskqueue
