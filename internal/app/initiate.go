package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	notificationdb "github.com/shandysiswandi/otpgate/internal/notification/outbound/db"
	otpdb "github.com/shandysiswandi/otpgate/internal/otp/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/sms"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"github.com/shandysiswandi/otpgate/internal/pkg/taskqueue"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// envAliases maps the flat operator-facing variables onto config keys.
var envAliases = map[string]string{
	"otp.length":                     "OTP_LENGTH",
	"otp.expiry_minutes":             "OTP_EXPIRY_MINUTES",
	"otp.max_attempts":               "OTP_MAX_ATTEMPTS",
	"otp.cooldown_seconds":           "OTP_COOLDOWN_SECONDS",
	"rate_limit.identifier_per_hour": "RATE_LIMIT_IDENTIFIER_PER_HOUR",
}

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	opts := []config.Option{
		config.WithDefault("otp.length", 6),
		config.WithDefault("otp.expiry_minutes", 10),
		config.WithDefault("otp.max_attempts", 5),
		config.WithDefault("otp.cooldown_seconds", 60),
		config.WithDefault("rate_limit.identifier_per_hour", 5),
	}
	for key, env := range envAliases {
		opts = append(opts, config.WithEnvAlias(key, env))
	}

	cfg, err := config.NewViper(path, opts...)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	h, err := hash.New(
		a.config.GetString("hash.algorithm"),
		a.config.GetString("hash.pepper"),
		a.config.GetInt("hash.bcrypt.cost"),
	)
	if err != nil {
		slog.Error("failed to init hash", "error", err)
		os.Exit(1)
	}
	a.hash = h

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow
}

// ping retries fn on a capped fibonacci backoff so the service tolerates
// dependencies that come up a little later than it does.
func (a *App) ping(name string, fn func(ctx context.Context) error) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxDuration(30*time.Second, b)

	return retry.Do(a.ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := fn(pingCtx); err != nil {
			slog.Warn("dependency not ready", "name", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (a *App) initDatabase() {
	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	if err := a.ping("database", pool.Ping); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	if a.config.GetBool("database.migrate") {
		for name, schema := range map[string]string{"otp": otpdb.Schema, "notification": notificationdb.Schema} {
			if _, err := pool.Exec(a.ctx, schema); err != nil {
				slog.Error("failed to apply schema", "module", name, "error", err)
				os.Exit(1)
			}
			slog.Info("schema applied", "module", name)
		}
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	if err := a.ping("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn)
}

func (a *App) initQueue() {
	driver := a.config.GetString("queue.driver")
	q, err := taskqueue.NewFromDriver(a.ctx, driver, taskqueue.FactoryOptions{
		Redis: taskqueue.RedisConfig{
			Client:        a.cacheConn,
			Prefix:        a.config.GetString("queue.redis.prefix"),
			PollTimeout:   a.config.GetSecond("queue.redis.poll_timeout_seconds"),
			DeadLetterMax: a.config.GetInt64("queue.redis.dead_letter_max"),
			DeadLetterTTL: a.config.GetMinute("queue.redis.dead_letter_ttl_minutes"),
		},
		Kafka: taskqueue.KafkaConfig{
			Brokers: a.config.GetArray("queue.kafka.brokers"),
			Dialer: &kafka.Dialer{
				ClientID:  a.config.GetString("queue.kafka.client_id"),
				Timeout:   a.config.GetSecond("queue.kafka.dial_timeout_seconds"),
				DualStack: true,
			},
		},
		NATS: taskqueue.NATSConfig{
			URL: a.config.GetString("queue.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("queue.nats.name")),
				nats.MaxReconnects(a.config.GetInt("queue.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("queue.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("queue.nats.reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(a.config.GetBool("queue.nats.retry_on_failed_connect")),
			},
		},
		NSQ: taskqueue.NSQConfig{
			ProducerAddr:         a.config.GetString("queue.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("queue.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("queue.nsq.consumer_lookupd_addrs"),
			RequeueDelay:         a.config.GetSecond("queue.nsq.requeue_delay_seconds"),
		},
		PubSub: taskqueue.PubSubConfig{
			ProjectID:       a.config.GetString("queue.pubsub.project_id"),
			CredentialsFile: a.config.GetString("queue.pubsub.credentials_file"),
		},
	})
	if err != nil {
		slog.Error("failed to init task queue", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.queue = q
}

// initStorage only connects when the ledger archive needs it.
func (a *App) initStorage() {
	if !a.config.GetBool("archive.enabled") {
		return
	}

	driver := strings.TrimSpace(a.config.GetString("storage.driver"))
	stg, err := storage.NewFromDriver(a.ctx, driver, storage.FactoryOptions{
		Bucket: strings.TrimSpace(a.config.GetString("storage.bucket")),
		S3: storage.S3Options{
			Region:       strings.TrimSpace(a.config.GetString("storage.s3.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("storage.s3.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("storage.s3.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("storage.s3.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("storage.s3.session_token")),
			UsePathStyle: a.config.GetBool("storage.s3.use_path_style"),
		},
		GCS: storage.GCSOptions{
			CredentialsFile: strings.TrimSpace(a.config.GetString("storage.gcs.credentials_file")),
			CredentialsJSON: a.config.GetBinary("storage.gcs.credentials_json"),
			Endpoint:        strings.TrimSpace(a.config.GetString("storage.gcs.endpoint")),
			WithoutAuth:     a.config.GetBool("storage.gcs.without_auth"),
		},
		MinIO: storage.MinIOOptions{
			Region:       strings.TrimSpace(a.config.GetString("storage.minio.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("storage.minio.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("storage.minio.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("storage.minio.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("storage.minio.session_token")),
			UseSSL:       a.config.GetBool("storage.minio.use_ssl"),
		},
	})
	if err != nil {
		slog.Error("failed to init storage", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.storage = stg
}

func (a *App) initMail() {
	driver := a.config.GetString("mail.driver")
	m, err := mail.NewFromDriver(a.ctx, driver, mail.FactoryOptions{
		From: a.config.GetString("mail.from"),
		SMTP: mail.SMTPConfig{
			Host:     a.config.GetString("mail.smtp.host"),
			Port:     a.config.GetInt("mail.smtp.port"),
			Username: a.config.GetString("mail.smtp.username"),
			Password: a.config.GetString("mail.smtp.password"),
		},
		SES: mail.SESConfig{
			Region:    a.config.GetString("mail.ses.region"),
			Endpoint:  a.config.GetString("mail.ses.endpoint"),
			AccessKey: a.config.GetString("mail.ses.access_key"),
			SecretKey: a.config.GetString("mail.ses.secret_key"),
		},
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.mail = m
}

func (a *App) initSMS() {
	driver := a.config.GetString("sms.driver")
	s, err := sms.NewFromDriver(a.ctx, driver, sms.SNSConfig{
		Region:    a.config.GetString("sms.sns.region"),
		Endpoint:  a.config.GetString("sms.sns.endpoint"),
		AccessKey: a.config.GetString("sms.sns.access_key"),
		SecretKey: a.config.GetString("sms.sns.secret_key"),
		SenderID:  a.config.GetString("sms.sns.sender_id"),
	})
	if err != nil {
		slog.Error("failed to init sms", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.sms = s
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Retry-After", "X-Correlation-ID"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Queue",
			fn: func(context.Context) error {
				return a.queue.Close()
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				return a.mail.Close()
			},
		},
		{
			name: "SMS",
			fn: func(context.Context) error {
				return a.sms.Close()
			},
		},
		{
			name: "Storage",
			fn: func(context.Context) error {
				if a.storage == nil {
					return nil
				}
				return a.storage.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				a.dbConn.Close()

				return nil
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
