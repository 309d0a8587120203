// Package mail sends rendered passcode emails through SMTP, Amazon SES or a
// log-only sink chosen by driver name.
package mail

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNoRecipients = errors.New("mail: no recipients provided")
	// ErrNoSender means neither Message.From nor the driver default is set.
	ErrNoSender = errors.New("mail: no sender provided")
)

type Message struct {
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	// HTMLBody, when set, is sent as the alternative to TextBody.
	HTMLBody string
}

type Mail interface {
	// Send returns the provider's message id.
	Send(ctx context.Context, msg Message) (string, error)
	io.Closer
}

// sender checks msg has somewhere to go and picks its From address.
func sender(msg Message, fallback string) (string, error) {
	switch {
	case len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0:
		return "", ErrNoRecipients
	case msg.From != "":
		return msg.From, nil
	case fallback != "":
		return fallback, nil
	default:
		return "", ErrNoSender
	}
}
