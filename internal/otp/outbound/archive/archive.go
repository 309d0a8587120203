package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "otp-ledger/"

// record is the archived form of an event. The passcode hash stays behind.
type record struct {
	ID           int64               `json:"id,string"`
	Channel      string              `json:"channel"`
	Identifier   string              `json:"identifier"`
	Purpose      string              `json:"purpose"`
	UserID       *int64              `json:"user_id,omitempty,string"`
	ExpiresAt    time.Time           `json:"expires_at"`
	ConsumedAt   *time.Time          `json:"consumed_at,omitempty"`
	Status       string              `json:"status"`
	AttemptCount int                 `json:"attempt_count"`
	IPAddress    string              `json:"ip_address,omitempty"`
	UserAgent    string              `json:"user_agent,omitempty"`
	Context      valueobject.JSONMap `json:"context,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func toRecord(ev entity.Event) record {
	return record{
		ID:           ev.ID,
		Channel:      ev.Channel.String(),
		Identifier:   ev.Identifier,
		Purpose:      ev.Purpose.String(),
		UserID:       ev.UserID,
		ExpiresAt:    ev.ExpiresAt.UTC(),
		ConsumedAt:   ev.ConsumedAt,
		Status:       ev.Status.String(),
		AttemptCount: ev.AttemptCount,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
		Context:      ev.Context,
		CreatedAt:    ev.CreatedAt.UTC(),
		UpdatedAt:    ev.UpdatedAt.UTC(),
	}
}

// Key is the object key holding the events created on day (UTC).
func Key(day time.Time) string {
	return keyPrefix + day.UTC().Format("2006/01/02") + ".jsonl"
}

// Archive writes one JSON Lines object per UTC day.
type Archive struct {
	store storage.Storage
	ins   instrument.Instrumentation
}

func NewArchive(store storage.Storage, ins instrument.Instrumentation) *Archive {
	return &Archive{store: store, ins: ins}
}

func (a *Archive) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return a.ins.Tracer("otp.outbound.archive").Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (a *Archive) Exists(ctx context.Context, day time.Time) (_ bool, err error) {
	ctx, span := a.startSpan(ctx, "Exists")
	defer func() { endSpan(span, err) }()

	return a.store.Exists(ctx, Key(day))
}

func (a *Archive) Write(ctx context.Context, day time.Time, events []entity.Event) (_ string, err error) {
	ctx, span := a.startSpan(ctx, "Write")
	defer func() { endSpan(span, err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range lo.Map(events, func(ev entity.Event, _ int) record { return toRecord(ev) }) {
		if err = enc.Encode(rec); err != nil {
			return "", err
		}
	}

	meta := map[string]string{"events": strconv.Itoa(len(events))}
	for status, n := range lo.CountValuesBy(events, func(ev entity.Event) string { return ev.Status.String() }) {
		meta["status-"+status] = strconv.Itoa(n)
	}

	key := Key(day)
	span.SetAttributes(attribute.String("object.key", key), attribute.Int("events", len(events)))

	_, err = a.store.Put(ctx, key, buf.Bytes(), storage.PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    meta,
	})
	if err != nil {
		return "", err
	}

	return key, nil
}
