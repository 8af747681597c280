package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	analyticsapp "motorent/internal/app/handlers/analytics"
	bookingapp "motorent/internal/app/handlers/booking"
	paymentapp "motorent/internal/app/handlers/payments"
	"motorent/internal/app/middleware"
	appoutbox "motorent/internal/app/outbox"
	"motorent/internal/app/policies"
	"motorent/internal/app/queries"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/infra/broker/kafka"
	rediscache "motorent/internal/infra/cache/redis"
	"motorent/internal/infra/catalog"
	"motorent/internal/infra/config"
	"motorent/internal/infra/gateway/razorpay"
	ginserver "motorent/internal/infra/http/gin"
	"motorent/internal/infra/obs"
	infraoutbox "motorent/internal/infra/outbox"
	"motorent/internal/infra/schedule"
	"motorent/internal/infra/security"
	"motorent/internal/infra/storage/memory"
	s3store "motorent/internal/infra/storage/s3"
	"motorent/internal/infra/validation"
)

const conflictBackoff = 50 * time.Millisecond

type application struct {
	cfg      config.Config
	logger   *slog.Logger
	storage  storage
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	system   commands.Bus
	worker   *infraoutbox.Worker
	producer *kafka.Producer
	consumer *kafka.Consumer
	ticker   *schedule.Ticker
	wg       sync.WaitGroup
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &application{cfg: cfg, logger: logger, storage: store, ticker: &schedule.Ticker{Logger: logger}}
	checks := store.checks

	idempotency := store.idempotency
	var assetCatalog policies.CatalogPort
	if cfg.CatalogURL != "" {
		assetCatalog = &catalog.Client{HTTP: &http.Client{Timeout: cfg.CatalogTimeout}, Endpoint: cfg.CatalogURL, Logger: logger}
	} else {
		items, err := loadAssetFixtures(cfg.AssetFixtures, logger)
		if err != nil {
			return nil, err
		}
		assetCatalog = memory.NewCatalog(items...)
	}
	if cfg.RedisAddr != "" {
		rdb, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		assetCatalog = &rediscache.CatalogCache{Next: assetCatalog, Client: rdb, TTL: cfg.CatalogTTL, Logger: logger}
		idempotency = &rediscache.IdempotencyStore{Client: rdb, TTL: cfg.IdempotencyTTL}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	gateway, err := razorpay.New(razorpay.Client{
		HTTP:    razorpay.NewHTTPClient(cfg.GatewayTimeout),
		BaseURL: cfg.GatewayBaseURL,
		KeyID:   cfg.GatewayKeyID,
		Secret:  cfg.GatewaySecret,
		Sandbox: cfg.GatewayMode == "sandbox",
		Tracer:  otel.Tracer("motorent/gateway"),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	var reports policies.ReportStore = memory.NewReportStore()
	if cfg.S3Endpoint != "" {
		s3, err := s3store.NewReportStore(s3store.Options{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			UseSSL:         cfg.S3UseSSL,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
		}, logger)
		if err != nil {
			return nil, err
		}
		reports = s3
		checks["s3"] = s3.Ping
	}

	factory, box := store.factory, store.outbox
	encoder := appoutbox.JSONEventEncoder{}
	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.BookingStatus](cmdBus, &bookingapp.CreateBookingHandler{UoWFactory: factory, Catalog: assetCatalog, Outbox: box, Encoder: encoder, Logger: logger})
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.BookingTransition](cmdBus, &bookingapp.CancelBookingHandler{UoWFactory: factory, Outbox: box, Encoder: encoder, Logger: logger})
	commands.RegisterHandler[paymentapp.CreateOrderCommand, *dto.PaymentOrder](cmdBus, &paymentapp.CreateOrderHandler{UoWFactory: factory, Gateway: gateway, Outbox: box, Encoder: encoder, KeyID: cfg.GatewayKeyID, Logger: logger})
	commands.RegisterHandler[paymentapp.VerifyPaymentCommand, *dto.BookingTransition](cmdBus, &paymentapp.VerifyPaymentHandler{UoWFactory: factory, Gateway: gateway, Outbox: box, Encoder: encoder, Logger: logger})
	commands.RegisterHandler[analyticsapp.ExportAnalyticsCommand, *dto.Export](cmdBus, &analyticsapp.ExportHandler{UoWFactory: factory, Reports: reports, Logger: logger})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.ListBookingsQuery, dto.BookingCollection](queryBus, &bookingapp.ListBookingsHandler{UoWFactory: factory, Logger: logger})
	queries.RegisterHandler[bookingapp.GetBookingQuery, dto.Booking](queryBus, &bookingapp.GetBookingHandler{UoWFactory: factory})
	queries.RegisterHandler[bookingapp.QuoteQuery, dto.Quote](queryBus, &bookingapp.QuoteHandler{UoWFactory: factory, Catalog: assetCatalog})
	queries.RegisterHandler[bookingapp.AssetCalendarQuery, dto.AssetCalendar](queryBus, &bookingapp.AssetCalendarHandler{UoWFactory: factory})
	queries.RegisterHandler[analyticsapp.AnalyticsQuery, dto.Analytics](queryBus, &analyticsapp.SummaryHandler{UoWFactory: factory, Logger: logger})

	logger.Debug("handlers registered", "commands", cmdBus.Keys(), "queries", queryBus.Keys())

	tracer := otel.Tracer("motorent/app")
	validator := validation.New()
	cmds := middleware.ChainCommands(cmdBus,
		middleware.Tracing(tracer, logger),
		middleware.Idempotency(idempotency, nil),
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor()),
		middleware.OutboxFlush(box),
		middleware.RetryOnConflict(cfg.ConflictAttempts, conflictBackoff, func(err error) bool {
			return errors.Is(err, domainbooking.ErrConcurrentUpdate)
		}),
		middleware.Transaction(factory, middleware.ReadOnlyOptions),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryTracing(tracer, logger),
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor()),
	)

	// The sweep opens one unit per booking, so it bypasses the Transaction middleware.
	systemBus := commands.NewInMemoryBus()
	commands.RegisterHandler[paymentapp.ReconcilePendingCommand, *dto.ReconcileResult](systemBus, &paymentapp.ReconcilePendingHandler{UoWFactory: factory, Outbox: box, Encoder: encoder, Timeout: cfg.PendingTimeout, Logger: logger})
	app.system = middleware.ChainCommands(systemBus, middleware.Tracing(tracer, logger))

	if err := app.wireBroker(cmds); err != nil {
		return nil, err
	}

	app.health = obs.HealthHandlers{Checks: checks}
	app.handlers = ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: cmds, Queries: qs},
		Payment:        ginserver.PaymentHandler{Commands: cmds},
		Asset:          ginserver.AssetHandler{Queries: qs},
		Analytics:      ginserver.AnalyticsHandler{Commands: cmds, Queries: qs},
		AuthMiddleware: ginserver.AuthMiddleware{Verifier: security.TokenVerifier{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}, Logger: logger}.Handle,
	}
	return app, nil
}

// wireBroker sets up the outbox relay and the payment callback consumer. Without
// brokers events are logged instead of published.
func (a *application) wireBroker(cmds commands.Bus) error {
	var producer infraoutbox.Producer = kafka.LogProducer{Logger: a.logger}
	if len(a.cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(a.cfg.KafkaBrokers, sarama.NewConfig(), a.logger)
		if err != nil {
			return err
		}
		a.producer = p
		producer = p

		if a.cfg.KafkaCallbackTopic != "" {
			handler := &kafka.PaymentCallbackHandler{Bus: cmds, Inbox: a.storage.inbox, Logger: a.logger}
			c, err := kafka.NewConsumer(a.cfg.KafkaBrokers, a.cfg.KafkaConsumerGroup, sarama.NewConfig(), handler, a.logger)
			if err != nil {
				return err
			}
			a.consumer = c
		}
	}
	a.worker = &infraoutbox.Worker{
		Source:      a.storage.source,
		Producer:    producer,
		Interval:    a.cfg.OutboxPollInterval,
		TopicPrefix: a.cfg.KafkaTopicPrefix,
		SourceURI:   "motorent/bookings",
		Backoff:     a.cfg.RetryBackoff,
		Wake:        a.storage.wake,
		Logger:      a.logger,
	}
	return nil
}

func (a *application) start(ctx context.Context) {
	a.ticker.Every(ctx, "payments.reconcile", a.cfg.SweepInterval, func(ctx context.Context) error {
		_, err := commands.Dispatch[paymentapp.ReconcilePendingCommand, *dto.ReconcileResult](ctx, a.system, paymentapp.ReconcilePendingCommand{})
		return err
	})
	for name, job := range a.storage.jobs {
		a.ticker.Every(ctx, name, time.Hour, job)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("outbox worker stopped", "error", err)
		}
	}()
	if a.consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Run(ctx, []string{a.cfg.KafkaCallbackTopic}); err != nil {
				a.logger.Error("payment callback consumer stopped", "error", err)
			}
		}()
	}
}

func (a *application) stop(ctx context.Context) {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("consumer close failed", "error", err)
		}
	}
	a.ticker.Wait()
	a.wg.Wait()
	if err := a.worker.Drain(ctx); err != nil {
		a.logger.Warn("outbox drain incomplete", "error", err)
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("producer close failed", "error", err)
		}
	}
	if err := a.storage.close(ctx); err != nil {
		a.logger.Warn("storage close failed", "error", err)
	}
}
