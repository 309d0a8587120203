package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

func throttled(reason entity.ThrottleReason, wait time.Duration) error {
	te := &entity.ThrottledError{Reason: reason, RetryAfter: wait}
	return goerror.WrapBusiness(te, "Too many requests, please retry later", goerror.CodeTooManyRequest,
		"reason", string(reason))
}

// claimIssuance runs the cooldown and quota policies in that order. On
// success the caller holds the cooldown marker and must release it if
// issuance does not commit.
func (s *Usecase) claimIssuance(ctx context.Context, ch entity.Channel, identifier string) error {
	if s.cfg.Cooldown > 0 {
		wait, claimed, err := s.repoThrottle.ClaimCooldown(ctx, ch, identifier, s.cfg.Cooldown)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo claim cooldown", "channel", ch, "identifier", identifier, "error", err)
			return goerror.NewServer(err)
		}
		if !claimed {
			s.metrics.recordThrottled(ctx, entity.ThrottleCooldown)
			slog.InfoContext(ctx, "otp request throttled by cooldown", "channel", ch, "identifier", identifier, "wait", wait)
			return throttled(entity.ThrottleCooldown, wait)
		}
	}

	if s.cfg.RatePerHour <= 0 {
		return nil
	}

	used, resetIn, err := s.repoThrottle.QuotaUsed(ctx, ch, identifier)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo read issuance quota", "channel", ch, "identifier", identifier, "error", err)
		s.releaseCooldown(ctx, ch, identifier)
		return goerror.NewServer(err)
	}
	if used >= s.cfg.RatePerHour {
		s.releaseCooldown(ctx, ch, identifier)
		s.metrics.recordThrottled(ctx, entity.ThrottleRateLimit)
		slog.InfoContext(ctx, "otp request throttled by quota", "channel", ch, "identifier", identifier, "used", used)
		return throttled(entity.ThrottleRateLimit, resetIn)
	}

	return nil
}

func (s *Usecase) releaseCooldown(ctx context.Context, ch entity.Channel, identifier string) {
	if s.cfg.Cooldown <= 0 {
		return
	}
	if err := s.repoThrottle.ReleaseCooldown(ctx, ch, identifier); err != nil {
		slog.WarnContext(ctx, "failed to repo release cooldown", "channel", ch, "identifier", identifier, "error", err)
	}
}

// countIssuance runs only after issuance committed. Failures are logged.
func (s *Usecase) countIssuance(ctx context.Context, ch entity.Channel, identifier string) {
	if s.cfg.RatePerHour <= 0 {
		return
	}
	if err := s.repoThrottle.IncrementQuota(ctx, ch, identifier, s.cfg.RateWindow); err != nil {
		slog.WarnContext(ctx, "failed to repo increment issuance quota", "channel", ch, "identifier", identifier, "error", err)
	}
}
