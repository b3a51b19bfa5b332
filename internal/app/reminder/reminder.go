// Package reminder содержит приложение периодической рассылки напоминаний.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-entitlements/internal/config"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/rabbitmq"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/notification"
	reminderservice "github.com/magabrotheeeer/vpn-entitlements/internal/services/reminder"
	"github.com/magabrotheeeer/vpn-entitlements/internal/storage/repository"
)

// App представляет приложение напоминаний.
type App struct {
	reminderService *reminderservice.ReminderService
	db              *repository.Storage
	conn            *amqp.Connection
	ch              *amqp.Channel
	cfg             config.Reminder
	logger          *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
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

// New создает новый экземпляр приложения напоминаний.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.DB.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	// Темп задает сервис доставки, здесь сообщения только ставятся в очередь.
	svc := reminderservice.NewReminderService(db, notification.NewPublisher(ch, logger), 0, time.Local, logger)

	return &App{
		reminderService: svc,
		db:              db,
		conn:            conn,
		ch:              ch,
		cfg:             cfg.Reminder,
		logger:          logger,
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

// Run запускает рассылку и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("reminder scheduled",
		slog.Duration("first_run_delay", a.cfg.FirstRunDelay),
		slog.Duration("interval", a.cfg.Interval))
	a.reminderService.Run(ctx, a.cfg.FirstRunDelay, a.cfg.Interval)

	a.logger.Info("shutting down reminder service")
	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
