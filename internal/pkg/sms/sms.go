// Package sms sends short text messages to E.164 phone numbers.
package sms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNoRecipient is returned when Message.To is empty.
	ErrNoRecipient = errors.New("sms: no recipient provided")
	// ErrEmptyBody is returned when Message.Body is empty.
	ErrEmptyBody = errors.New("sms: empty body")
)

// Message is a single text message.
type Message struct {
	// To is the destination in E.164 form.
	To string
	// Body is the message text.
	Body string
}

// Sender abstracts an SMS provider.
type Sender interface {
	io.Closer
	// Send dispatches msg and returns the provider message id.
	Send(ctx context.Context, msg Message) (string, error)
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if m.Body == "" {
		return ErrEmptyBody
	}
	return nil
}

// Log only writes outgoing messages to the logger.
type Log struct{}

// NewLog constructs a logging sender for local development.
func NewLog() *Log { return &Log{} }

func (Log) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	slog.InfoContext(ctx, "sms: message not delivered, log driver active", "message_id", id, "to", msg.To)

	return id, nil
}

func (Log) Close() error { return nil }
