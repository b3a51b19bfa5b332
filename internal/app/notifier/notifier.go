// Package notifier содержит приложение доставки уведомлений в Telegram.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/vpn-entitlements/internal/config"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/telegram"
	"github.com/magabrotheeeer/vpn-entitlements/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/vpn-entitlements/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	transport, err := telegram.New(cfg.BotToken, cfg.SendTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram transport: %w", err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	if len(cfg.OperatorIDs) == 0 {
		logger.Warn("no operator ids configured, escalations will be dropped")
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(transport, cfg.OperatorIDs, cfg.SendInterval, logger),
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range rabbitmq.GetNotificationQueues() {
		g.Go(func() error {
			if err := rabbitmq.ConsumerMessage(gctx, a.ch, q.QueueName, a.senderService.Handle, a.logger); err != nil {
				return fmt.Errorf("failed to start %s consumer: %w", q.QueueName, err)
			}
			a.logger.Info("consumer started", slog.String("queue", q.QueueName))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("notifier failed to start", sl.Err(err))
		a.close()
		return err
	}

	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
