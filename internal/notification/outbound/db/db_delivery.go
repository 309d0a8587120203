package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

func (s *DB) CreateDeliveryLog(ctx context.Context, dl entity.CreateDeliveryLog) (err error) {
	ctx, span := s.startSpan(ctx, "CreateDeliveryLog")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO otp_delivery_logs (id, event_id, channel, recipient, purpose, status, job_id, attempt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		dl.ID, dl.EventID, int16(dl.Channel), dl.Recipient, dl.Purpose,
		int16(entity.DeliveryStatusQueued), dl.JobID, dl.Attempt, dl.CreatedAt,
	)
	return s.mapError(err)
}

func (s *DB) UpdateDeliveryLog(ctx context.Context, u entity.UpdateDeliveryLog) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateDeliveryLog")
	defer func() { s.endSpan(span, err) }()

	if u.ProviderResponse == nil {
		u.ProviderResponse = valueobject.JSONMap{}
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_delivery_logs
		SET status = $2, provider_response = $3, updated_at = $4
		WHERE id = $1`,
		u.ID, int16(u.Status), u.ProviderResponse, u.UpdatedAt,
	)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func (s *DB) ListDeliveryLogs(ctx context.Context, eventID int64) (_ []entity.DeliveryLog, err error) {
	ctx, span := s.startSpan(ctx, "ListDeliveryLogs")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT id, event_id, channel, recipient, purpose, status, job_id, attempt, provider_response, created_at, updated_at
		FROM otp_delivery_logs
		WHERE event_id = $1
		ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var out []entity.DeliveryLog
	for rows.Next() {
		var (
			dl      entity.DeliveryLog
			channel int16
			status  int16
		)
		if err := rows.Scan(&dl.ID, &dl.EventID, &channel, &dl.Recipient, &dl.Purpose, &status,
			&dl.JobID, &dl.Attempt, &dl.ProviderResponse, &dl.CreatedAt, &dl.UpdatedAt); err != nil {
			return nil, err
		}
		dl.Channel = entity.Channel(channel)
		dl.Status = entity.DeliveryStatus(status)
		out = append(out, dl)
	}

	return out, s.mapError(rows.Err())
}
