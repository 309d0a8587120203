// Package provider traces the calls the notification usecase makes to the
// email and SMS drivers.
package provider

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "notification.outbound.provider"

type Mail struct {
	client mail.Mail
	tracer trace.Tracer
}

func NewMail(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, tracer: ins.Tracer(tracerName)}
}

func (m *Mail) Send(ctx context.Context, msg mail.Message) (string, error) {
	return traced(ctx, m.tracer, "Mail.Send", "mail.message_id", m.client.Send, msg)
}

type SMS struct {
	client sms.Sender
	tracer trace.Tracer
}

func NewSMS(client sms.Sender, ins instrument.Instrumentation) *SMS {
	return &SMS{client: client, tracer: ins.Tracer(tracerName)}
}

func (s *SMS) Send(ctx context.Context, msg sms.Message) (string, error) {
	return traced(ctx, s.tracer, "SMS.Send", "sms.message_id", s.client.Send, msg)
}

// traced runs send inside a client span and tags it with the returned id.
func traced[M any](
	ctx context.Context,
	tracer trace.Tracer,
	name, idKey string,
	send func(context.Context, M) (string, error),
	msg M,
) (string, error) {
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	id, err := send(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.String(idKey, id))
	return id, nil
}
