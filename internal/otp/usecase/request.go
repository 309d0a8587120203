package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

type RequestInput struct {
	Channel        string         `validate:"required,oneof=email phone"`
	Identifier     string         `validate:"required,max=320"`
	Purpose        string         `validate:"required,oneof=register login verify"`
	UserID         *int64         `validate:"required_if=Purpose verify,omitempty,gt=0"`
	Context        map[string]any `validate:"omitempty,max=32"`
	IPAddress      string         `validate:"omitempty,max=64"`
	UserAgent      string         `validate:"omitempty,max=512"`
	IdempotencyKey string         `validate:"omitempty,max=128"`
}

func (s *Usecase) RequestOTP(ctx context.Context, in RequestInput) (*entity.Issued, error) {
	ctx, span := s.startSpan(ctx, "RequestOTP")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	ch := entity.Channel(in.Channel)
	purpose := entity.Purpose(in.Purpose)
	if purpose == entity.PurposeRegister && ch != entity.ChannelPhone {
		return nil, goerror.NewInvalidInput(nil, "channel", "register is only available over phone")
	}

	identifier, err := s.normalize(ch, in.Identifier)
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey == "" {
		return s.issue(ctx, in, ch, purpose, identifier)
	}

	key := "otp:request:" + ch.String() + ":" + identifier + ":" + in.IdempotencyKey
	raw, replayed, err := s.idemp.Exec(ctx, key, func(ctx context.Context) ([]byte, error) {
		issued, err := s.issue(ctx, in, ch, purpose, identifier)
		if err != nil {
			return nil, err
		}
		return json.Marshal(issued)
	})
	if errors.Is(err, idempotency.ErrAlreadyInProgress) {
		return nil, goerror.NewBusiness("A request with the same Idempotency-Key is in progress", goerror.CodeConflict)
	}
	if err != nil {
		var gerr *goerror.Error
		if errors.As(err, &gerr) {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to run idempotent otp request", "idempotency_key", in.IdempotencyKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	var issued entity.Issued
	if err := json.Unmarshal(raw, &issued); err != nil {
		slog.ErrorContext(ctx, "failed to decode stored otp request response", "idempotency_key", in.IdempotencyKey, "error", err)
		return nil, goerror.NewServer(err)
	}
	if replayed {
		slog.InfoContext(ctx, "otp request replayed from idempotency key", "idempotency_key", in.IdempotencyKey, "event_id", issued.EventID)
	}

	return &issued, nil
}

func (s *Usecase) issue(ctx context.Context, in RequestInput, ch entity.Channel, purpose entity.Purpose, identifier string) (*entity.Issued, error) {
	if err := s.claimIssuance(ctx, ch, identifier); err != nil {
		return nil, err
	}

	issued, err := s.persist(ctx, in, ch, purpose, identifier)
	if err != nil {
		s.releaseCooldown(ctx, ch, identifier)
		return nil, err
	}

	s.countIssuance(ctx, ch, identifier)
	s.metrics.recordIssued(ctx, ch, purpose)

	return issued, nil
}

func (s *Usecase) persist(ctx context.Context, in RequestInput, ch entity.Channel, purpose entity.Purpose, identifier string) (*entity.Issued, error) {
	code, err := s.code.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	hashed, err := s.hash.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	// The entry about to be overwritten identifies the superseded event.
	var superseded int64
	if prev, err := s.repoCache.Get(ctx, ch, identifier); err == nil {
		superseded = prev.EventID
	} else if !errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "failed to repo read previous otp cache entry", "channel", ch, "identifier", identifier, "error", err)
	}

	now := s.clock.Now()
	ev := entity.Event{
		ID:         s.uid.Generate(),
		Channel:    ch,
		Identifier: identifier,
		Purpose:    purpose,
		UserID:     in.UserID,
		OTPHash:    string(hashed),
		ExpiresAt:  now.Add(s.cfg.Expiry),
		Status:     entity.StatusPending,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Context:    valueobject.JSONMap(in.Context),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repoDB.CreateEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "failed to repo create otp event", "channel", ch, "identifier", identifier, "error", err)
		return nil, goerror.NewServer(err)
	}

	entry := entity.CacheEntry{
		OTPHash:     ev.OTPHash,
		EventID:     ev.ID,
		ExpiresAt:   ev.ExpiresAt,
		MaxAttempts: s.cfg.MaxAttempts,
	}
	if err := s.repoCache.Set(ctx, ch, identifier, entry, s.cacheTTL(now, ev.ExpiresAt)); err != nil {
		slog.ErrorContext(ctx, "failed to repo set otp cache entry", "event_id", ev.ID, "error", err)
		// Without a cache entry the event can never verify.
		if _, cErr := s.repoDB.MarkStatus(ctx, ev.ID, entity.StatusCancelled); cErr != nil {
			slog.WarnContext(ctx, "failed to repo cancel orphaned otp event", "event_id", ev.ID, "error", cErr)
		}
		return nil, goerror.NewServer(err)
	}

	if superseded != 0 && superseded != ev.ID {
		if _, err := s.repoDB.MarkStatus(ctx, superseded, entity.StatusCancelled); err != nil {
			slog.WarnContext(ctx, "failed to repo cancel superseded otp event", "event_id", superseded, "error", err)
		}
	}

	if err := s.repoQueue.PublishDelivery(ctx, DeliveryRequest{
		EventID:    ev.ID,
		Channel:    ch,
		Identifier: identifier,
		Purpose:    purpose,
		Code:       code,
		ExpiresAt:  ev.ExpiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish otp delivery", "event_id", ev.ID, "error", err)
	}

	slog.InfoContext(ctx, "otp issued", "event_id", ev.ID, "channel", ch, "purpose", purpose)

	return &entity.Issued{
		EventID:         ev.ID,
		Channel:         ch,
		Identifier:      identifier,
		ExpiresAt:       ev.ExpiresAt,
		CooldownSeconds: int(s.cfg.Cooldown / time.Second),
	}, nil
}

// cacheTTL keeps the cache entry alive exactly as long as the passcode.
func (s *Usecase) cacheTTL(now, expiresAt time.Time) time.Duration {
	if ttl := expiresAt.Sub(now); ttl > 0 {
		return ttl
	}
	return s.cfg.Expiry
}
