package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	delivery metric.Int64Counter
}

func newMetrics(ins instrument.Instrumentation) *metrics {
	m := &metrics{}

	var err error
	m.delivery, err = ins.Meter("notification.usecase").Int64Counter("otp.delivery",
		metric.WithDescription("Passcode deliveries by channel and final status"))
	if err != nil {
		slog.Error("failed to create otp.delivery counter", "error", err)
	}

	return m
}

func (m *metrics) recordDelivery(ctx context.Context, ch entity.Channel, status entity.DeliveryStatus) {
	if m.delivery != nil {
		m.delivery.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", ch.String()),
			attribute.String("status", status.String()),
		))
	}
}
