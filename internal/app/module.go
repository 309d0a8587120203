package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpgate/internal/notification"
	"github.com/shandysiswandi/otpgate/internal/otp"
)

func (a *App) initModules() {
	if err := otp.New(otp.Dependency{
		Ctx:         a.ctx,
		DBConn:      a.dbConn,
		CacheConn:   a.cacheConn,
		Queue:       a.queue,
		Goroutine:   a.goroutine,
		Router:      a.router,
		Idempotency: a.idemp,
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		Hash:        a.hash,
		Clock:       a.clock,
		Validator:   a.validator,
		Storage:     a.storage,
	}); err != nil {
		slog.Error("failed to init module otp", "error", err)
		os.Exit(1)
	}

	// The delivery worker can run in its own deployment by disabling it here.
	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:        a.ctx,
			DBConn:     a.dbConn,
			Queue:      a.queue,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Mail:       a.mail,
			SMS:        a.sms,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
