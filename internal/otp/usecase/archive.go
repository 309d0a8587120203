package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

// ArchiveDay exports the events created on the UTC day containing day. It
// returns the object key, or "" when the day was already archived or empty.
func (s *Usecase) ArchiveDay(ctx context.Context, day time.Time) (string, error) {
	ctx, span := s.startSpan(ctx, "ArchiveDay")
	defer span.End()

	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	exists, err := s.repoArchive.Exists(ctx, start)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo check otp archive", "day", start.Format(time.DateOnly), "error", err)
		return "", err
	}
	if exists {
		slog.DebugContext(ctx, "otp archive already present", "day", start.Format(time.DateOnly))
		return "", nil
	}

	var (
		events  []entity.Event
		afterID int64
	)
	for {
		page, err := s.repoDB.ListEventsCreatedBetween(ctx, start, end, afterID, s.cfg.ArchivePage)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo list otp events", "day", start.Format(time.DateOnly), "after_id", afterID, "error", err)
			return "", err
		}
		events = append(events, page...)
		if len(page) < s.cfg.ArchivePage {
			break
		}
		afterID = page[len(page)-1].ID
	}

	if len(events) == 0 {
		return "", nil
	}

	key, err := s.repoArchive.Write(ctx, start, events)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo write otp archive", "day", start.Format(time.DateOnly), "error", err)
		return "", err
	}

	slog.InfoContext(ctx, "otp ledger archived", "day", start.Format(time.DateOnly), "key", key, "count", len(events))

	return key, nil
}

// ArchivePreviousDay archives yesterday (UTC). Safe to run repeatedly.
func (s *Usecase) ArchivePreviousDay(ctx context.Context) error {
	_, err := s.ArchiveDay(ctx, s.clock.Now().UTC().AddDate(0, 0, -1))
	return err
}
