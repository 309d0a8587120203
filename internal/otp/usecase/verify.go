package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type VerifyInput struct {
	Channel    string `validate:"required,oneof=email phone"`
	Identifier string `validate:"required,max=320"`
	Purpose    string `validate:"required,oneof=register login verify"`
	UserID     *int64 `validate:"required_if=Purpose verify,omitempty,gt=0"`
	Code       string `validate:"required,otpcode"`
}

var (
	errNotFound        = goerror.WrapBusiness(entity.ErrOTPNotFound, "OTP not found or already used", goerror.CodeNotFound)
	errExpired         = goerror.WrapBusiness(entity.ErrOTPExpired, "OTP has expired", goerror.CodeGone)
	errTooManyAttempts = goerror.WrapBusiness(entity.ErrTooManyAttempts, "Too many incorrect attempts", goerror.CodeTooManyRequest)
	errIncorrectCode   = goerror.WrapBusiness(entity.ErrIncorrectCode, "Incorrect OTP code", goerror.CodeUnauthorized)
)

// VerifyOTP checks a submitted code against the live passcode for the
// identifier. A code succeeds at most once.
func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyInput) (*entity.Success, error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if n := s.code.Length(); len(in.Code) != n {
		return nil, goerror.NewInvalidInput(nil, "code", fmt.Sprintf("code must be %d digits", n))
	}

	ch := entity.Channel(in.Channel)
	purpose := entity.Purpose(in.Purpose)

	identifier, err := s.normalize(ch, in.Identifier)
	if err != nil {
		return nil, err
	}

	outcome := entity.OutcomeError
	defer func() { s.metrics.recordVerify(ctx, outcome) }()

	entry, err := s.repoCache.Get(ctx, ch, identifier)
	if errors.Is(err, goerror.ErrNotFound) {
		outcome = entity.OutcomeNotFound
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get otp cache entry", "channel", ch, "identifier", identifier, "error", err)
		return nil, goerror.NewServer(err)
	}

	ev, err := s.repoDB.GetEvent(ctx, entry.EventID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "otp cache entry points at a missing event", "event_id", entry.EventID, "error", entity.ErrInternalInconsistency)
		s.dropCache(ctx, ch, identifier)
		outcome = entity.OutcomeNotFound
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get otp event", "event_id", entry.EventID, "error", err)
		return nil, goerror.NewServer(err)
	}

	// A terminal event behind a live entry means an earlier run died between
	// the ledger commit and the cache delete.
	if ev.Status.IsTerminal() {
		slog.WarnContext(ctx, "stale otp cache entry for terminal event", "event_id", ev.ID, "status", ev.Status)
		s.dropCache(ctx, ch, identifier)
		outcome = entity.OutcomeNotFound
		return nil, errNotFound
	}

	if ev.Purpose != purpose || !sameUser(ev.UserID, in.UserID, purpose) {
		outcome = entity.OutcomeNotFound
		return nil, errNotFound
	}

	now := s.clock.Now()
	if ev.IsExpired(now) {
		if err := s.finish(ctx, ev.ID, entity.StatusExpired); err != nil {
			return nil, err
		}
		s.dropCache(ctx, ch, identifier)
		outcome = entity.OutcomeExpired
		return nil, errExpired
	}

	consumed, result, err := s.repoCache.ConsumeAttempt(ctx, ch, identifier, ev.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume otp attempt", "event_id", ev.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	switch result {
	case entity.ConsumeMissing:
		outcome = entity.OutcomeNotFound
		return nil, errNotFound
	case entity.ConsumeExhausted:
		if err := s.finish(ctx, ev.ID, entity.StatusFailed); err != nil {
			return nil, err
		}
		s.dropCache(ctx, ch, identifier)
		outcome = entity.OutcomeTooManyAttempts
		return nil, errTooManyAttempts
	}

	if err := s.repoDB.UpdateAttempts(ctx, ev.ID, consumed.Attempts); err != nil {
		slog.ErrorContext(ctx, "failed to repo mirror otp attempts", "event_id", ev.ID, "attempts", consumed.Attempts, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.hash.Verify(consumed.OTPHash, in.Code) {
		outcome = entity.OutcomeIncorrectCode
		slog.InfoContext(ctx, "otp incorrect code", "event_id", ev.ID, "attempts", consumed.Attempts, "max_attempts", consumed.MaxAttempts)
		return nil, errIncorrectCode
	}

	err = s.repoDB.MarkVerified(ctx, ev.ID, now)
	if errors.Is(err, goerror.ErrNotFound) {
		// Another request verified or closed the event first.
		outcome = entity.OutcomeNotFound
		return nil, errNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark otp verified", "event_id", ev.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.dropCache(ctx, ch, identifier)
	outcome = entity.OutcomeSuccess
	slog.InfoContext(ctx, "otp verified", "event_id", ev.ID, "channel", ch, "purpose", purpose)

	success := &entity.Success{
		EventID:    ev.ID,
		Channel:    ch,
		Identifier: identifier,
		Purpose:    purpose,
		UserID:     ev.UserID,
	}
	if purpose == entity.PurposeRegister && ch == entity.ChannelPhone {
		success.Currency = s.normalizer.CurrencyOf(identifier)
	}

	return success, nil
}

// sameUser only matters for the verify purpose, where the code is bound to
// an existing account.
func sameUser(stored, submitted *int64, p entity.Purpose) bool {
	if p != entity.PurposeVerify {
		return true
	}
	return stored != nil && submitted != nil && *stored == *submitted
}
