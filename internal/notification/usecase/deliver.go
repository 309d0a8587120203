package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

type DeliverOTPInput struct {
	EventID    int64  `validate:"required,gt=0"`
	Channel    string `validate:"required"`
	Identifier string `validate:"required"`
	Purpose    string `validate:"required"`
	Code       string `validate:"required"`
	ExpiresAt  time.Time
	JobID      string
	Attempt    int
}

// DeliverOTP renders and sends one passcode. Provider failures end up in the
// returned result and the delivery log; only storage failures are errors.
func (s *Usecase) DeliverOTP(ctx context.Context, in DeliverOTPInput) (*entity.DeliveryResult, error) {
	ctx, span := s.startSpan(ctx, "DeliverOTP")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	ch := entity.ChannelFromString(in.Channel)
	if ch == entity.ChannelUnknown {
		slog.WarnContext(ctx, "otp delivery skipped", "event_id", in.EventID, "channel", in.Channel, "error", entity.ErrUnsupportedChannel)
		s.metrics.recordDelivery(ctx, ch, entity.DeliveryStatusFailed)
		return &entity.DeliveryResult{Identifier: in.Identifier, Error: entity.ErrUnsupportedChannel.Error()}, nil
	}

	now := s.clock.Now()
	logID := s.uid.Generate()
	if err := s.repoDB.CreateDeliveryLog(ctx, entity.CreateDeliveryLog{
		ID:        logID,
		EventID:   in.EventID,
		Channel:   ch,
		Recipient: in.Identifier,
		Purpose:   in.Purpose,
		JobID:     in.JobID,
		Attempt:   in.Attempt,
		CreatedAt: now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo create delivery log", "event_id", in.EventID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !in.ExpiresAt.IsZero() && !now.Before(in.ExpiresAt) {
		return s.finish(ctx, logID, ch, in, "", entity.ErrPasscodeExpired), nil
	}

	msgID, err := s.send(ctx, ch, in, now)

	return s.finish(ctx, logID, ch, in, msgID, err), nil
}

func (s *Usecase) send(ctx context.Context, ch entity.Channel, in DeliverOTPInput, now time.Time) (string, error) {
	data := s.templateData(in, now)

	switch ch {
	case entity.ChannelEmail:
		r, err := s.tpl.Email(in.Purpose, data)
		if err != nil {
			return "", err
		}
		msg := mail.Message{
			To:       []string{in.Identifier},
			Subject:  r.Subject,
			TextBody: r.TextBody,
			HTMLBody: r.HTMLBody,
		}
		return s.withRetry(ctx, func(ctx context.Context) (string, error) {
			return s.repoMail.Send(ctx, msg)
		})
	default:
		body, err := s.tpl.SMS(in.Purpose, data)
		if err != nil {
			return "", err
		}
		msg := sms.Message{To: in.Identifier, Body: body}
		return s.withRetry(ctx, func(ctx context.Context) (string, error) {
			return s.repoSMS.Send(ctx, msg)
		})
	}
}

func (s *Usecase) templateData(in DeliverOTPInput, now time.Time) map[string]any {
	left := s.cfg.DefaultExpiry
	if !in.ExpiresAt.IsZero() {
		left = in.ExpiresAt.Sub(now)
	}

	minutes := max(int(math.Ceil(left.Minutes())), 1)

	return map[string]any{
		"app_name":       s.cfg.AppName,
		"support_email":  s.cfg.SupportEmail,
		"year":           now.Format("2006"),
		"code":           in.Code,
		"expiry_minutes": minutes,
	}
}

// permanent errors are never retried against the provider.
func permanent(err error) bool {
	return errors.Is(err, mail.ErrNoRecipients) ||
		errors.Is(err, mail.ErrNoSender) ||
		errors.Is(err, sms.ErrNoRecipient) ||
		errors.Is(err, sms.ErrEmptyBody) ||
		errors.Is(err, context.Canceled)
}

func (s *Usecase) withRetry(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	b := retry.NewExponential(s.cfg.RetryBase)
	b = retry.WithCappedDuration(s.cfg.RetryCap, b)
	b = retry.WithMaxRetries(s.cfg.MaxRetries, b)

	var id string
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		if id, err = call(ctx); err == nil {
			return nil
		}
		if permanent(err) {
			return err
		}

		slog.WarnContext(ctx, "otp provider send failed", "error", err)
		return retry.RetryableError(err)
	})

	return id, err
}

func (s *Usecase) finish(ctx context.Context, logID int64, ch entity.Channel, in DeliverOTPInput, msgID string, sendErr error) *entity.DeliveryResult {
	res := &entity.DeliveryResult{Success: sendErr == nil, Identifier: in.Identifier, MessageID: msgID}
	up := entity.UpdateDeliveryLog{
		ID:               logID,
		Status:           entity.DeliveryStatusSent,
		ProviderResponse: valueobject.JSONMap{},
		UpdatedAt:        s.clock.Now(),
	}

	if sendErr != nil {
		res.Error = sendErr.Error()
		up.Status = entity.DeliveryStatusFailed
		up.ProviderResponse["error"] = sendErr.Error()
		slog.ErrorContext(ctx, "failed to deliver otp", "log_id", logID, "event_id", in.EventID, "channel", ch.String(), "error", sendErr)
	} else {
		up.ProviderResponse["message_id"] = msgID
		slog.InfoContext(ctx, "otp delivered", "log_id", logID, "event_id", in.EventID, "channel", ch.String())
	}

	if err := s.repoDB.UpdateDeliveryLog(ctx, up); err != nil {
		slog.ErrorContext(ctx, "failed to repo update delivery log status", "log_id", logID, "status", up.Status.String(), "error", err)
	}

	s.metrics.recordDelivery(ctx, ch, up.Status)

	return res
}
