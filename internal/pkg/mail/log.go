package mail

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Log is a Mail implementation that only writes the message to the logger.
// It is meant for local development where no provider is reachable.
type Log struct {
	defaultFrom string
}

// NewLog constructs a logging mail sender.
func NewLog(from string) *Log {
	return &Log{defaultFrom: from}
}

func (l *Log) Send(ctx context.Context, msg Message) (string, error) {
	from, err := sender(msg, l.defaultFrom)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	slog.InfoContext(ctx, "mail: message not delivered, log driver active",
		"message_id", id,
		"from", from,
		"to", msg.To,
		"subject", msg.Subject,
	)

	return id, nil
}

func (l *Log) Close() error {
	return nil
}
