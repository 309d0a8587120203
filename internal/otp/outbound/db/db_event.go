package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

const eventColumns = `id, channel, identifier, purpose, user_id, otp_hash, expires_at, consumed_at,
	status, attempt_count, ip_address, user_agent, context, created_at, updated_at`

func scanEvent(row pgx.Row) (*entity.Event, error) {
	var (
		ev      entity.Event
		channel string
		purpose string
		status  string
	)
	err := row.Scan(
		&ev.ID, &channel, &ev.Identifier, &purpose, &ev.UserID, &ev.OTPHash, &ev.ExpiresAt, &ev.ConsumedAt,
		&status, &ev.AttemptCount, &ev.IPAddress, &ev.UserAgent, &ev.Context, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Channel = entity.Channel(channel)
	ev.Purpose = entity.Purpose(purpose)
	ev.Status = entity.Status(status)
	if ev.Context == nil {
		ev.Context = valueobject.JSONMap{}
	}

	return &ev, nil
}

func (s *DB) CreateEvent(ctx context.Context, ev entity.Event) (err error) {
	ctx, span := s.startSpan(ctx, "CreateEvent")
	defer func() { s.endSpan(span, err) }()

	if ev.Context == nil {
		ev.Context = valueobject.JSONMap{}
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO otp_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		ev.ID, ev.Channel.String(), ev.Identifier, ev.Purpose.String(), ev.UserID, ev.OTPHash, ev.ExpiresAt, ev.ConsumedAt,
		ev.Status.String(), ev.AttemptCount, ev.IPAddress, ev.UserAgent, ev.Context, ev.CreatedAt, ev.UpdatedAt,
	)
	err = s.mapError(err)
	return err
}

func (s *DB) GetEvent(ctx context.Context, id int64) (_ *entity.Event, err error) {
	ctx, span := s.startSpan(ctx, "GetEvent")
	defer func() { s.endSpan(span, err) }()

	ev, err := scanEvent(s.conn.QueryRow(ctx, `SELECT `+eventColumns+` FROM otp_events WHERE id = $1`, id))
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return ev, nil
}

// UpdateAttempts uses GREATEST so a late writer never lowers the count.
func (s *DB) UpdateAttempts(ctx context.Context, id int64, n int) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateAttempts")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE otp_events
		SET attempt_count = GREATEST(attempt_count, $2), updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, n,
	)
	err = s.mapError(err)
	return err
}

func (s *DB) MarkVerified(ctx context.Context, id int64, consumedAt time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "MarkVerified")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_events
		SET status = 'verified', consumed_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, consumedAt,
	)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = goerror.ErrNotFound
		return err
	}

	return nil
}

func (s *DB) MarkStatus(ctx context.Context, id int64, status entity.Status) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkStatus")
	defer func() { s.endSpan(span, err) }()

	if !status.IsTerminal() || status.IsUnknown() {
		err = entity.ErrStatusNotTerminal
		return false, err
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_events
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, status.String(),
	)
	if err != nil {
		err = s.mapError(err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (s *DB) ExpireStale(ctx context.Context, now time.Time, limit int) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "ExpireStale")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_events
		SET status = 'expired', updated_at = now()
		WHERE id IN (
			SELECT id FROM otp_events
			WHERE status = 'pending' AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		) AND status = 'pending'`,
		now, limit,
	)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (s *DB) ListEventsCreatedBetween(ctx context.Context, from, to time.Time, afterID int64, limit int) (_ []entity.Event, err error) {
	ctx, span := s.startSpan(ctx, "ListEventsCreatedBetween")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT `+eventColumns+` FROM otp_events
		WHERE created_at >= $1 AND created_at < $2 AND id > $3
		ORDER BY id
		LIMIT $4`,
		from, to, afterID, limit,
	)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]entity.Event, 0, limit)
	for rows.Next() {
		ev, sErr := scanEvent(rows)
		if sErr != nil {
			err = sErr
			return nil, err
		}
		events = append(events, *ev)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
