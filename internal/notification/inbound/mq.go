package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/taskqueue"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

type uc interface {
	DeliverOTP(ctx context.Context, in usecase.DeliverOTPInput) (*entity.DeliveryResult, error)
}

// RegisterMQConsumer starts a worker per enabled consumer. An empty
// modules.notification.consumer_names enables all of them.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	queue taskqueue.Queue,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.concurrency")
	if concurrency <= 0 {
		concurrency = 10
	}

	consumers := []struct {
		name    string
		queue   string
		handler taskqueue.Handler
	}{
		{
			name:    event.OTPDeliveryDestinationConsumerNotification,
			queue:   event.OTPDeliveryDestination,
			handler: mqHandler.OTPDelivery,
		},
	}

	for _, consumer := range consumers {
		if len(enabled) > 0 && !slices.Contains(enabled, consumer.name) {
			slog.InfoContext(ctx, "consumer disabled by config", "consumer", consumer.name)
			continue
		}

		routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
			return queue.Work(pCtx,
				consumer.queue,
				consumer.handler,
				taskqueue.WithGroup(consumer.name),
				taskqueue.WithConcurrency(concurrency),
				taskqueue.WithMaxInFlight(concurrency),
				taskqueue.WithMaxAttempts(cfg.GetInt("modules.notification.max_attempts")),
			)
		})
	}
}
