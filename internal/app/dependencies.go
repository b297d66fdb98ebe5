package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/resale/internal/health"
	"github.com/vladislavdragonenkov/resale/internal/lock"
	"github.com/vladislavdragonenkov/resale/internal/storage/memory"
	"github.com/vladislavdragonenkov/resale/internal/storage/postgres"
)

// ErrUnsupportedStorage возвращается для неизвестного значения StorageDriver.
var ErrUnsupportedStorage = errors.New("unsupported storage driver")

// Dependencies содержит инфраструктуру, поверх которой собираются сервисы.
type Dependencies struct {
	Repos domain.Repositories
	// Checkers регистрируются в health handler под своими именами.
	Checkers map[string]healthcheck.Checker
	// Redis равен nil, если адрес не задан или сервер недоступен при старте.
	Redis *redis.Client

	closers []func() error
}

// NewDependencies открывает хранилище и опциональный Redis согласно cfg.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps := &Dependencies{Checkers: make(map[string]healthcheck.Checker)}

	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		return nil, err
	}
	deps.initRedis(ctx, cfg, logger)
	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageMemory:
		d.Repos = memory.NewStore().Repositories()
		logger.Info("using in-memory storage")
		return nil
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		d.Repos = store.Repositories()
		d.Checkers["postgres"] = healthcheck.NewPingChecker("postgres", store.Ping)
		d.closers = append(d.closers, store.Close)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedStorage, cfg.StorageDriver)
	}
}

// initRedis подключает Redis для лидер-лока свипера. Недоступный Redis не мешает старту:
// свипер работает без лока, а readiness показывает degraded.
func (d *Dependencies) initRedis(ctx context.Context, cfg Config, logger *log.Entry) {
	if cfg.RedisAddr == "" {
		return
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, sweeper runs without leader lock")
		return
	}
	d.Redis = client
	d.Checkers["redis"] = healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	d.closers = append(d.closers, client.Close)
	logger.WithField("addr", cfg.RedisAddr).Info("redis connected")
}

// Close освобождает ресурсы в обратном порядке открытия.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
