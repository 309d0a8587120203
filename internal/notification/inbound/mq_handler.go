package inbound

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/taskqueue"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, job taskqueue.Job) context.Context {
	if id := job.Header(keyOfCorrelationID); id != "" {
		return instrument.SetCorrelationID(ctx, id)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// OTPDelivery acks every job it cannot or need not retry. Only a server error
// from the usecase is returned so the queue redelivers.
func (h *MQHandler) OTPDelivery(ctx context.Context, job taskqueue.Job) error {
	ctx = h.ensureCorrelationID(ctx, job)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPDelivery")
	defer span.End()

	span.SetAttributes(attribute.String("job.id", job.ID), attribute.Int("job.attempt", job.Attempt))
	slog.InfoContext(ctx, "consume: otp delivery", "job_id", job.ID, "job_type", job.Type, "attempt", job.Attempt)

	if job.Type != "" && job.Type != event.OTPDeliveryJobType {
		slog.WarnContext(ctx, "unexpected job type on otp delivery queue", "job_id", job.ID, "job_type", job.Type)
		return nil
	}

	var payload event.OTPDeliveryMessage
	if err := job.Decode(&payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse payload of otp delivery", "job_id", job.ID, "error", err)
		return nil
	}

	res, err := h.uc.DeliverOTP(ctx, usecase.DeliverOTPInput{
		EventID:    payload.EventID,
		Channel:    payload.Channel,
		Identifier: payload.Identifier,
		Purpose:    payload.Purpose,
		Code:       payload.Code,
		ExpiresAt:  payload.ExpiresAt,
		JobID:      job.ID,
		Attempt:    job.Attempt,
	})
	if err != nil {
		var gerr *goerror.Error
		if errors.As(err, &gerr) && gerr.Type() != goerror.TypeServer {
			slog.ErrorContext(ctx, "dropping otp delivery job", "job_id", job.ID, "error", err)
			return nil
		}
		slog.ErrorContext(ctx, "failed to deliver otp, will retry", "job_id", job.ID, "error", err)
		return err
	}

	span.SetAttributes(attribute.Bool("delivery.success", res.Success))

	return nil
}
