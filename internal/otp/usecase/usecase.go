package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/contact"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

// DeliveryRequest is handed to the task queue once issuance has committed.
type DeliveryRequest struct {
	EventID    int64
	Channel    entity.Channel
	Identifier string
	Purpose    entity.Purpose
	Code       string
	ExpiresAt  time.Time
}

type repoDB interface {
	CreateEvent(ctx context.Context, ev entity.Event) error
	GetEvent(ctx context.Context, id int64) (*entity.Event, error)
	// UpdateAttempts raises attempt_count to n on a pending event; it never lowers it.
	UpdateAttempts(ctx context.Context, id int64, n int) error
	// MarkVerified returns goerror.ErrNotFound when the event is no longer pending.
	MarkVerified(ctx context.Context, id int64, consumedAt time.Time) error
	// MarkStatus moves a pending event to a terminal status and reports whether it did.
	MarkStatus(ctx context.Context, id int64, status entity.Status) (bool, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error)
	ListEventsCreatedBetween(ctx context.Context, from, to time.Time, afterID int64, limit int) ([]entity.Event, error)
}

type repoCache interface {
	// Get returns goerror.ErrNotFound when the entry is absent or unreadable.
	Get(ctx context.Context, ch entity.Channel, identifier string) (*entity.CacheEntry, error)
	Set(ctx context.Context, ch entity.Channel, identifier string, entry entity.CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, ch entity.Channel, identifier string) error
	ConsumeAttempt(ctx context.Context, ch entity.Channel, identifier string, eventID int64) (*entity.CacheEntry, entity.ConsumeResult, error)
}

type repoThrottle interface {
	// ClaimCooldown sets the cooldown marker if absent. When it is already
	// held the remaining wait is returned with claimed=false.
	ClaimCooldown(ctx context.Context, ch entity.Channel, identifier string, ttl time.Duration) (wait time.Duration, claimed bool, err error)
	ReleaseCooldown(ctx context.Context, ch entity.Channel, identifier string) error
	QuotaUsed(ctx context.Context, ch entity.Channel, identifier string) (used int64, resetIn time.Duration, err error)
	IncrementQuota(ctx context.Context, ch entity.Channel, identifier string, window time.Duration) error
}

type repoQueue interface {
	PublishDelivery(ctx context.Context, req DeliveryRequest) error
}

type repoArchive interface {
	Exists(ctx context.Context, day time.Time) (bool, error)
	Write(ctx context.Context, day time.Time, events []entity.Event) (string, error)
}

type normalizer interface {
	Phone(raw string) (string, error)
	Email(raw string) (string, error)
	CurrencyOf(phone string) string
}

type codeGenerator interface {
	Generate() (string, error)
	Length() int
}

type idempotent interface {
	Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...idempotency.Option) ([]byte, bool, error)
}

// Config holds the passcode policy.
type Config struct {
	Expiry      time.Duration
	MaxAttempts int
	// Cooldown between two issuances for the same identifier; zero disables it.
	Cooldown time.Duration
	// RatePerHour caps issuances per identifier per window; zero disables it.
	RatePerHour int64
	RateWindow  time.Duration
	// SweepBatch bounds rows expired per sweep run.
	SweepBatch int
	// ArchivePage bounds rows read per ledger page while archiving.
	ArchivePage int
}

func (c Config) withDefaults() Config {
	if c.Expiry <= 0 {
		c.Expiry = 10 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Hour
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 500
	}
	if c.ArchivePage <= 0 {
		c.ArchivePage = 1000
	}
	return c
}

type Usecase struct {
	repoDB       repoDB
	repoCache    repoCache
	repoThrottle repoThrottle
	repoQueue    repoQueue
	repoArchive  repoArchive
	normalizer   normalizer
	code         codeGenerator
	hash         hash.Hash
	idemp        idempotent
	validator    validator.Validator
	uid          uid.NumberID
	clock        clock.Clocker
	ins          instrument.Instrumentation
	metrics      *metrics
	cfg          Config
}

type Dependency struct {
	RepoDB       repoDB
	RepoCache    repoCache
	RepoThrottle repoThrottle
	RepoQueue    repoQueue
	RepoArchive  repoArchive
	Normalizer   normalizer
	Code         codeGenerator
	Hash         hash.Hash
	Idempotency  idempotent
	Validator    validator.Validator
	UID          uid.NumberID
	Clock        clock.Clocker
	Instrument   instrument.Instrumentation
	Config       Config
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:       dep.RepoDB,
		repoCache:    dep.RepoCache,
		repoThrottle: dep.RepoThrottle,
		repoQueue:    dep.RepoQueue,
		repoArchive:  dep.RepoArchive,
		normalizer:   dep.Normalizer,
		code:         dep.Code,
		hash:         dep.Hash,
		idemp:        dep.Idempotency,
		validator:    dep.Validator,
		uid:          dep.UID,
		clock:        dep.Clock,
		ins:          dep.Instrument,
		metrics:      newMetrics(dep.Instrument),
		cfg:          dep.Config.withDefaults(),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

// normalize canonicalizes identifier for its channel. Nothing downstream
// ever sees the raw input.
func (s *Usecase) normalize(ch entity.Channel, identifier string) (string, error) {
	var (
		out string
		err error
	)

	switch ch {
	case entity.ChannelPhone:
		out, err = s.normalizer.Phone(identifier)
	case entity.ChannelEmail:
		out, err = s.normalizer.Email(identifier)
	default:
		err = contact.ErrInvalidFormat
	}

	if errors.Is(err, contact.ErrInvalidFormat) {
		return "", goerror.WrapBusiness(entity.ErrInvalidFormat, "Invalid identifier format", goerror.CodeInvalidFormat,
			"identifier", "invalid "+ch.String()+" format")
	}
	if err != nil {
		return "", goerror.NewServer(err)
	}

	return out, nil
}

// dropCache removes the cache entry; the ledger already holds the outcome so
// a failure here is only logged.
func (s *Usecase) dropCache(ctx context.Context, ch entity.Channel, identifier string) {
	if err := s.repoCache.Delete(ctx, ch, identifier); err != nil {
		slog.WarnContext(ctx, "failed to repo delete otp cache entry", "channel", ch, "identifier", identifier, "error", err)
	}
}

// finish moves a pending event to a terminal status. Losing the race to
// another transition is fine, the event is terminal either way.
func (s *Usecase) finish(ctx context.Context, id int64, status entity.Status) error {
	if _, err := s.repoDB.MarkStatus(ctx, id, status); err != nil {
		slog.ErrorContext(ctx, "failed to repo mark otp event status", "event_id", id, "status", status, "error", err)
		return goerror.NewServer(err)
	}
	return nil
}
