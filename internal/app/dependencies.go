package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/health"
	"github.com/vladislavdragonenkov/yummybites/internal/storage/memory"
	"github.com/vladislavdragonenkov/yummybites/internal/storage/postgres"
)

// runtimeDeps — репозитории выбранного хранилища.
type runtimeDeps struct {
	orders         domain.OrderRepository
	outbox         domain.OutboxRepository
	timeline       domain.TimelineRepository
	reservations   domain.ReservationRepository
	menu           domain.MenuRepository
	ratings        domain.RatingRepository
	storageChecker health.Checker
	closeFn        func() error
}

func (d runtimeDeps) close(logger *log.Entry) {
	if d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// initRuntimeDependencies открывает хранилище по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDeps, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("using in-memory storage")
		return runtimeDeps{
			orders:       memory.NewOrderRepository(),
			outbox:       memory.NewOutboxRepository(),
			timeline:     memory.NewTimelineRepository(),
			reservations: memory.NewReservationRepository(),
			menu:         memory.NewMenuRepository(),
			ratings:      memory.NewRatingRepository(),
			storageChecker: health.StaticChecker{
				Name:   "storage",
				Status: health.StatusHealthy,
				// Данные теряются при рестарте, и инстансы их не разделяют.
				Message: "in-memory",
			},
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return runtimeDeps{}, fmt.Errorf("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return runtimeDeps{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDeps{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return runtimeDeps{
			orders:         postgres.NewOrderRepository(store),
			outbox:         postgres.NewOutboxRepository(store),
			timeline:       postgres.NewTimelineRepository(store),
			reservations:   postgres.NewReservationRepository(store),
			menu:           postgres.NewMenuRepository(store),
			ratings:        postgres.NewRatingRepository(store),
			storageChecker: health.NewPingChecker("storage", 0, store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return runtimeDeps{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
