package otp

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otp/inbound"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/archive"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/contact"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/passcode"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/taskqueue"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	CacheConn   *redis.Client              `validate:"required"`
	Queue       taskqueue.Queue            `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	Hash        hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	// Storage is only needed when the ledger archive is enabled.
	Storage storage.Storage
}

// ConfigFrom reads the passcode policy. Env names such as OTP_LENGTH are
// bound onto these keys by the config loader.
func ConfigFrom(cfg config.Config) usecase.Config {
	return usecase.Config{
		Expiry:      cfg.GetMinute("otp.expiry_minutes"),
		MaxAttempts: cfg.GetInt("otp.max_attempts"),
		Cooldown:    cfg.GetSecond("otp.cooldown_seconds"),
		RatePerHour: cfg.GetInt64("rate_limit.identifier_per_hour"),
		RateWindow:  time.Hour,
		SweepBatch:  cfg.GetInt("otp.sweep.batch_size"),
		ArchivePage: cfg.GetInt("archive.page_size"),
	}
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	length := dep.Config.GetInt("otp.length")
	if length <= 0 {
		length = 6
	}
	gen, err := passcode.NewGenerator(length)
	if err != nil {
		return err
	}

	dbOTP := db.NewDB(dep.DBConn, dep.Instrument)
	cacheOTP := cache.NewCache(dep.CacheConn, dep.Instrument)
	queueOTP := mq.NewQueue(dep.Queue, dep.Instrument)

	ucDep := usecase.Dependency{
		RepoDB:       dbOTP,
		RepoCache:    cacheOTP,
		RepoThrottle: cacheOTP,
		RepoQueue:    queueOTP,
		Normalizer:   contact.NewNormalizer(dep.Config.GetString("otp.default_region")),
		Code:         gen,
		Hash:         dep.Hash,
		Idempotency:  dep.Idempotency,
		Validator:    dep.Validator,
		UID:          dep.UID,
		Clock:        dep.Clock,
		Instrument:   dep.Instrument,
		Config:       ConfigFrom(dep.Config),
	}

	archiveEnabled := dep.Config.GetBool("archive.enabled") && dep.Storage != nil
	if archiveEnabled {
		ucDep.RepoArchive = archive.NewArchive(dep.Storage, dep.Instrument)
	}

	uc := usecase.New(ucDep)
	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	sweepEvery := dep.Config.GetSecond("otp.sweep.interval_seconds")
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	dep.Goroutine.Every(dep.Ctx, "otp-sweep", sweepEvery, uc.SweepExpired)

	if archiveEnabled {
		archiveEvery := dep.Config.GetMinute("archive.interval_minutes")
		if archiveEvery <= 0 {
			archiveEvery = time.Hour
		}
		dep.Goroutine.Every(dep.Ctx, "otp-archive", archiveEvery, uc.ArchivePreviousDay)
	} else {
		slog.Info("otp ledger archive disabled")
	}

	return nil
}
