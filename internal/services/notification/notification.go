// Package notification публикует уведомления пользователям и операторам в
// очередь, откуда их забирает сервис доставки.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
	"github.com/magabrotheeeer/vpn-entitlements/internal/rabbitmq"
)

// Publisher отправляет уведомления в обменник notifications.
type Publisher struct {
	ch  rabbitmq.Publisher
	log *slog.Logger
}

// NewPublisher создает новый экземпляр Publisher.
func NewPublisher(ch rabbitmq.Publisher, log *slog.Logger) *Publisher {
	return &Publisher{ch: ch, log: log}
}

// Notify ставит в очередь сообщение пользователю.
func (p *Publisher) Notify(ctx context.Context, userID int64, text string) error {
	const op = "notification.Notify"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := models.Notification{Kind: models.NotifyUser, ChatID: userID, Text: text}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, rabbitmq.RoutingUser, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Debug("user notification queued", slog.Int64("user_id", userID))
	return nil
}

// Escalate ставит в очередь сообщение всем операторам.
func (p *Publisher) Escalate(ctx context.Context, text string) error {
	const op = "notification.Escalate"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := models.Notification{Kind: models.NotifyOperator, Text: text}
	if err := rabbitmq.PublishMessage(p.ch, rabbitmq.Exchange, rabbitmq.RoutingOperator, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Info("operator escalation queued")
	return nil
}
