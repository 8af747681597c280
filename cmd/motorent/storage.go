package main

import (
	"context"
	"fmt"
	"log/slog"

	"motorent/internal/app/middleware"
	appoutbox "motorent/internal/app/outbox"
	"motorent/internal/app/schedule"
	"motorent/internal/app/uow"
	"motorent/internal/infra/config"
	mongodb "motorent/internal/infra/db/mongo"
	"motorent/internal/infra/db/postgres"
	"motorent/internal/infra/inbox"
	"motorent/internal/infra/obs"
	infraoutbox "motorent/internal/infra/outbox"
	"motorent/internal/infra/storage/memory"
)

const callbackConsumer = "payment-callbacks"

// storage is everything a driver contributes: the unit of work, the transactional
// outbox and the dedup stores.
type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	source      infraoutbox.Source
	wake        <-chan struct{}
	idempotency middleware.IdempotencyStore
	inbox       inbox.Inbox
	checks      map[string]obs.Check
	jobs        map[string]schedule.Job
	close       func(context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		logger.Warn("memory storage in use; bookings are lost on restart")
		store := memory.NewStore()
		box := store.Outbox()
		idem := memory.NewIdempotencyStore()
		idem.TTL = cfg.IdempotencyTTL
		return storage{
			factory:     store,
			outbox:      box,
			source:      box,
			wake:        store.Wake(),
			idempotency: idem,
			inbox:       inbox.NewMemory(),
			checks:      map[string]obs.Check{},
			close:       func(context.Context) error { return nil },
		}, nil
	}
}

func openMongo(ctx context.Context, cfg config.Config) (storage, error) {
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo connect: %w", err)
	}
	bookings := mongodb.NewBookingRepository(client.DB)
	if err := bookings.EnsureIndexes(ctx); err != nil {
		return storage{}, fmt.Errorf("mongo indexes: %w", err)
	}
	box, err := mongodb.NewOutboxStore(ctx, client.DB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo outbox: %w", err)
	}
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return storage{}, fmt.Errorf("mongo idempotency: %w", err)
	}
	seen, err := inbox.NewStore(ctx, client.DB, callbackConsumer)
	if err != nil {
		return storage{}, fmt.Errorf("mongo inbox: %w", err)
	}
	return storage{
		factory:     mongodb.Factory{DB: client.DB, Bookings: bookings},
		outbox:      box,
		source:      box,
		wake:        box.Wake(),
		idempotency: idem,
		inbox:       seen,
		checks:      map[string]obs.Check{"mongo": client.Ping},
		close:       client.Close,
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (storage, error) {
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return storage{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return storage{}, err
	}
	box := postgres.NewOutboxStore(db)
	idem := postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL)
	return storage{
		factory:     postgres.Factory{DB: db},
		outbox:      box,
		source:      box,
		wake:        box.Wake(),
		idempotency: idem,
		inbox:       postgres.NewInboxStore(db, callbackConsumer),
		checks: map[string]obs.Check{"postgres": func(ctx context.Context) error {
			return postgres.Ping(ctx, db)
		}},
		jobs: map[string]schedule.Job{"idempotency.purge": idem.Purge},
		close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}
