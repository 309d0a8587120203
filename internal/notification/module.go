package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/notification/inbound"
	"github.com/shandysiswandi/otpgate/internal/notification/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/notification/outbound/provider"
	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/taskqueue"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	DBConn     *pgxpool.Pool              `validate:"required"`
	Queue      taskqueue.Queue            `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`
	SMS        sms.Sender                 `validate:"required"`
}

func ConfigFrom(cfg config.Config) usecase.Config {
	retries := cfg.GetInt("modules.notification.retry.max")
	if retries <= 0 {
		retries = 3
	}

	return usecase.Config{
		AppName:       cfg.GetString("app.name"),
		SupportEmail:  cfg.GetString("modules.notification.support_email"),
		DefaultExpiry: cfg.GetMinute("otp.expiry_minutes"),
		MaxRetries:    uint64(retries),
		RetryBase:     cfg.GetMillisecond("modules.notification.retry.base_ms"),
		RetryCap:      cfg.GetSecond("modules.notification.retry.cap_seconds"),
	}
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:     db.NewDB(dep.DBConn, dep.Instrument),
		RepoMail:   provider.NewMail(dep.Mail, dep.Instrument),
		RepoSMS:    provider.NewSMS(dep.SMS, dep.Instrument),
		UID:        dep.UID,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
		Config:     ConfigFrom(dep.Config),
	})

	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Queue, dep.UUID, uc, dep.Instrument)

	return nil
}
