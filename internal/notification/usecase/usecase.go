package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	CreateDeliveryLog(ctx context.Context, dl entity.CreateDeliveryLog) error
	UpdateDeliveryLog(ctx context.Context, u entity.UpdateDeliveryLog) error
}

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) (string, error)
}

type repoSMS interface {
	Send(ctx context.Context, msg sms.Message) (string, error)
}

// Config controls rendering and provider retries.
type Config struct {
	AppName      string
	SupportEmail string
	// DefaultExpiry is shown in messages when a job carries no expiry.
	DefaultExpiry time.Duration
	// MaxRetries is the number of extra provider calls after the first one.
	MaxRetries uint64
	RetryBase  time.Duration
	RetryCap   time.Duration
}

func (c Config) withDefaults() Config {
	if c.AppName == "" {
		c.AppName = "otpgate"
	}
	if c.DefaultExpiry <= 0 {
		c.DefaultExpiry = 10 * time.Minute
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 200 * time.Millisecond
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 5 * time.Second
	}
	return c
}

type Usecase struct {
	repoDB    repoDB
	repoMail  repoMail
	repoSMS   repoSMS
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation
	metrics   *metrics
	tpl       *templates
	cfg       Config
}

type Dependency struct {
	RepoDB     repoDB
	RepoMail   repoMail
	RepoSMS    repoSMS
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
	Config     Config
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		repoMail:  dep.RepoMail,
		repoSMS:   dep.RepoSMS,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       dep.Instrument,
		metrics:   newMetrics(dep.Instrument),
		tpl:       newTemplates(),
		cfg:       dep.Config.withDefaults(),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}
