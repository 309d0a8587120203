package mq

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/taskqueue"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// Queue hands delivery jobs to the task queue; it never waits for delivery.
type Queue struct {
	client taskqueue.Queue
	ins    instrument.Instrumentation
}

func NewQueue(client taskqueue.Queue, ins instrument.Instrumentation) *Queue {
	return &Queue{client: client, ins: ins}
}

func (q *Queue) PublishDelivery(ctx context.Context, req usecase.DeliveryRequest) error {
	ctx, span := q.ins.Tracer("otp.outbound.mq").Start(ctx, "PublishDelivery")
	defer span.End()

	job, err := taskqueue.NewJob(event.OTPDeliveryJobType, event.OTPDeliveryMessage{
		EventID:    req.EventID,
		Channel:    req.Channel.String(),
		Identifier: req.Identifier,
		Purpose:    req.Purpose.String(),
		Code:       req.Code,
		ExpiresAt:  req.ExpiresAt,
	}, map[string]string{keyOfCorrelationID: instrument.GetCorrelationID(ctx)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	receipt, err := q.client.Submit(ctx, event.OTPDeliveryDestination, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.String("job.id", receipt.JobID))

	return nil
}
