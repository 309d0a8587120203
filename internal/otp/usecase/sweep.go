package usecase

import (
	"context"
	"log/slog"
)

// SweepExpired moves pending events whose lifetime passed to expired, in
// batches, until a short batch shows nothing is left.
func (s *Usecase) SweepExpired(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "SweepExpired")
	defer span.End()

	var total int64
	for ctx.Err() == nil {
		n, err := s.repoDB.ExpireStale(ctx, s.clock.Now(), s.cfg.SweepBatch)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo expire stale otp events", "expired_so_far", total, "error", err)
			return err
		}
		total += n
		if n < int64(s.cfg.SweepBatch) {
			break
		}
	}

	s.metrics.recordSwept(ctx, total)
	if total > 0 {
		slog.InfoContext(ctx, "otp sweep expired stale events", "count", total)
	}

	return ctx.Err()
}
