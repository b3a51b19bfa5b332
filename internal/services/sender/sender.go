// Package sender доставляет уведомления из очереди в Telegram.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// ErrNoOperators операторские сообщения некому доставить.
var ErrNoOperators = errors.New("no operators configured")

// Transport канал доставки сообщений.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SenderService разбирает сообщения очереди и отправляет их адресатам.
type SenderService struct {
	transport Transport
	operators []int64
	limiter   *rate.Limiter
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport Transport, operators []int64, sendInterval time.Duration, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		operators: operators,
		limiter:   rate.NewLimiter(rate.Every(sendInterval), 1),
		log:       log,
	}
}

// Handle обрабатывает одно сообщение. Нечитаемое сообщение пропускается без
// ошибки, повторная доставка его не исправит.
func (s *SenderService) Handle(ctx context.Context, body []byte) error {
	const op = "sender.Handle"

	var msg models.Notification
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return nil
	}
	if msg.Text == "" {
		s.log.Warn("empty notification skipped", slog.String("op", op))
		return nil
	}

	switch msg.Kind {
	case models.NotifyUser:
		return s.sendUser(ctx, msg)
	case models.NotifyOperator:
		return s.sendOperators(ctx, msg)
	default:
		s.log.Warn("unknown notification kind", slog.String("op", op), slog.String("kind", string(msg.Kind)))
		return nil
	}
}

func (s *SenderService) sendUser(ctx context.Context, msg models.Notification) error {
	const op = "sender.sendUser"
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.transport.Send(ctx, msg.ChatID, msg.Text); err != nil {
		s.log.Warn("failed to deliver user notification", slog.Int64("chat_id", msg.ChatID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("user notification delivered", slog.Int64("chat_id", msg.ChatID))
	return nil
}

// sendOperators рассылает сообщение всем операторам. Ошибка возвращается,
// только если не доставлено ни одному, иначе повтор продублирует сообщение.
func (s *SenderService) sendOperators(ctx context.Context, msg models.Notification) error {
	const op = "sender.sendOperators"
	if len(s.operators) == 0 {
		s.log.Error("operator notification dropped", slog.String("op", op), sl.Err(ErrNoOperators))
		return nil
	}

	var errs []error
	for _, id := range s.operators {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := s.transport.Send(ctx, id, msg.Text); err != nil {
			s.log.Warn("failed to deliver operator notification", slog.Int64("chat_id", id), sl.Err(err))
			errs = append(errs, err)
		}
	}
	if len(errs) == len(s.operators) {
		return fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return nil
}
