// Package selector выбирает сервер для новой выдачи по кругу среди активных.
package selector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// ServerRepository источник активных серверов в стабильном порядке.
type ServerRepository interface {
	ListActiveServers(ctx context.Context) ([]models.Server, error)
}

// Cursor общий счетчик ротации, Advance атомарен.
type Cursor interface {
	Advance(ctx context.Context, n int) (int, error)
}

// Selector выбирает сервер round-robin.
type Selector struct {
	repo   ServerRepository
	cursor Cursor
	log    *slog.Logger
}

// New создает новый экземпляр Selector.
func New(repo ServerRepository, cursor Cursor, log *slog.Logger) *Selector {
	return &Selector{repo: repo, cursor: cursor, log: log}
}

// Select возвращает следующий активный сервер.
func (s *Selector) Select(ctx context.Context) (models.Server, error) {
	const op = "selector.Select"

	servers, err := s.repo.ListActiveServers(ctx)
	if err != nil {
		return models.Server{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.Pick(ctx, servers)
}

// Pick выбирает сервер из уже загруженного списка. Если счетчик недоступен,
// берется первый сервер: выдача важнее равномерности.
func (s *Selector) Pick(ctx context.Context, servers []models.Server) (models.Server, error) {
	const op = "selector.Pick"
	if len(servers) == 0 {
		return models.Server{}, fmt.Errorf("%s: %w", op, models.ErrNoActiveServer)
	}

	idx, err := s.cursor.Advance(ctx, len(servers))
	if err != nil || idx < 0 || idx >= len(servers) {
		s.log.Warn("round-robin cursor unavailable, using first server",
			slog.Int("index", idx), sl.Err(err))
		idx = 0
	}

	server := servers[idx]
	s.log.Info("server selected", slog.String("server", server.Name), slog.Int("index", idx))
	return server, nil
}
