// Package scheduler собирает процесс, который публикует напоминания об окончании подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/clearride/internal/cache"
	"github.com/magabrotheeeer/clearride/internal/config"
	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/clearride/internal/services/scheduler"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	interval         time.Duration
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *storage.Storage
	cache            *cache.Cache
	logger           *slog.Logger
}

func waitForDB(ctx context.Context, db *storage.Storage) error {
	for range 10 {
		if err := db.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReminderQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	schedulerService := schedulerservice.NewSchedulerService(
		db,
		rabbitmq.NewChannelPublisher(ch),
		cacheRedis,
		clock.Real{},
		logger,
	)

	return &App{
		schedulerService: schedulerService,
		interval:         cfg.SchedulerInterval,
		conn:             conn,
		ch:               ch,
		db:               db,
		cache:            cacheRedis,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("scheduler started", slog.Duration("interval", a.interval))
	a.schedulerService.Run(ctx, a.interval)

	a.logger.Info("shutting down scheduler service")

	closeResources(a.ch, a.conn, a.logger)
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}

	return nil
}
