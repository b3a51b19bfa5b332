// Package telegram отправляет текстовые сообщения через Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Transport обертка над ботом.
type Transport struct {
	bot *telego.Bot
}

// Option дополнительная настройка бота.
type Option = telego.BotOption

// WithAPIServer адрес Bot API, по умолчанию официальный.
func WithAPIServer(url string) Option {
	return telego.WithAPIServer(url)
}

// New создает транспорт с таймаутом на каждый запрос.
func New(token string, timeout time.Duration, opts ...Option) (*Transport, error) {
	const op = "telegram.New"

	opts = append([]Option{
		telego.WithHTTPClient(&http.Client{Timeout: timeout}),
		telego.WithDiscardLogger(),
	}, opts...)
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Transport{bot: bot}, nil
}

// Send отправляет сообщение в чат.
func (t *Transport) Send(ctx context.Context, chatID int64, text string) error {
	const op = "telegram.Send"
	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
