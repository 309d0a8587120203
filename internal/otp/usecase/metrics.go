package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	issued    metric.Int64Counter
	verify    metric.Int64Counter
	throttled metric.Int64Counter
	swept     metric.Int64Counter
}

func newMetrics(ins instrument.Instrumentation) *metrics {
	meter := ins.Meter("otp.usecase")
	m := &metrics{}

	var err error
	if m.issued, err = meter.Int64Counter("otp.issued", metric.WithDescription("Passcodes issued")); err != nil {
		slog.Error("failed to create otp.issued counter", "error", err)
	}
	if m.verify, err = meter.Int64Counter("otp.verify.outcome", metric.WithDescription("Verification outcomes")); err != nil {
		slog.Error("failed to create otp.verify.outcome counter", "error", err)
	}
	if m.throttled, err = meter.Int64Counter("otp.throttled", metric.WithDescription("Issuance requests refused by throttling")); err != nil {
		slog.Error("failed to create otp.throttled counter", "error", err)
	}
	if m.swept, err = meter.Int64Counter("otp.swept", metric.WithDescription("Stale pending events expired by the sweep")); err != nil {
		slog.Error("failed to create otp.swept counter", "error", err)
	}

	return m
}

func (m *metrics) recordIssued(ctx context.Context, ch entity.Channel, p entity.Purpose) {
	if m.issued != nil {
		m.issued.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", ch.String()),
			attribute.String("purpose", p.String()),
		))
	}
}

func (m *metrics) recordVerify(ctx context.Context, outcome entity.VerifyOutcome) {
	if m.verify != nil {
		m.verify.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

func (m *metrics) recordThrottled(ctx context.Context, reason entity.ThrottleReason) {
	if m.throttled != nil {
		m.throttled.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
	}
}

func (m *metrics) recordSwept(ctx context.Context, n int64) {
	if m.swept != nil && n > 0 {
		m.swept.Add(ctx, n)
	}
}
