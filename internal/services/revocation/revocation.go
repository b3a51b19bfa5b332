// Package revocation отзывает доступ пользователя на всех серверах и ведет
// очередь сверки клиентов, которые не удалось удалить с панелей.
package revocation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/metrics"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

const parallelDeletes = 4

// Repository профили и очередь сверки.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ListProfilesWithServers(ctx context.Context, userID int64) ([]models.ProfileWithServer, error)
	RevokeLocal(ctx context.Context, userID int64, profileIDs []int64, orphans []models.Orphan) ([]models.Orphan, error)
	ListOrphans(ctx context.Context) ([]models.Orphan, error)
	GetOrphan(ctx context.Context, id int64) (*models.Orphan, *models.Server, error)
	DeleteOrphan(ctx context.Context, id int64) error
}

// Panels удаляет клиентов с панелей.
type Panels interface {
	DeleteClient(ctx context.Context, server models.Server, inboundID int, clientID string) bool
}

// Escalator уведомляет операторов.
type Escalator interface {
	Escalate(ctx context.Context, text string) error
}

// Result итог отзыва. Revoked < Attempted означает частичный отзыв.
type Result struct {
	Attempted int             `json:"attempted"`
	Revoked   int             `json:"revoked"`
	Orphans   []models.Orphan `json:"orphans,omitempty"`
}

// Partial true, если часть клиентов осталась на панелях.
func (r Result) Partial() bool {
	return r.Revoked < r.Attempted
}

// RevocationService отзывает доступы.
type RevocationService struct {
	repo      Repository
	panels    Panels
	escalator Escalator
	log       *slog.Logger
}

// NewRevocationService создает новый экземпляр RevocationService.
func NewRevocationService(repo Repository, panels Panels, escalator Escalator, log *slog.Logger) *RevocationService {
	return &RevocationService{repo: repo, panels: panels, escalator: escalator, log: log}
}

// Revoke удаляет клиентов пользователя со всех панелей и очищает локальное
// состояние независимо от исхода удаленных удалений. Неудаленные клиенты
// попадают в очередь сверки той же транзакцией.
func (s *RevocationService) Revoke(ctx context.Context, userID int64) (Result, error) {
	const op = "revocation.Revoke"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	profiles, err := s.repo.ListProfilesWithServers(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	deleted := make([]bool, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelDeletes)
	for i, p := range profiles {
		g.Go(func() error {
			deleted[i] = s.panels.DeleteClient(gctx, p.Server, p.InboundID, p.ClientID)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Attempted: len(profiles)}
	profileIDs := make([]int64, 0, len(profiles))
	for i, p := range profiles {
		profileIDs = append(profileIDs, p.ID)
		if deleted[i] {
			res.Revoked++
			continue
		}
		res.Orphans = append(res.Orphans, models.Orphan{
			UserID:     userID,
			ServerID:   p.ServerID,
			ServerName: p.Server.Name,
			InboundID:  p.InboundID,
			ClientID:   p.ClientID,
		})
	}

	late, err := s.repo.RevokeLocal(context.WithoutCancel(ctx), userID, profileIDs, res.Orphans)
	if err != nil {
		log.Error("failed to clear local state", sl.Err(err))
		metrics.Revocations.WithLabelValues("revoked").Add(float64(res.Revoked))
		return res, fmt.Errorf("%s: %w", op, err)
	}
	if len(late) > 0 {
		// Профили, выданные во время отзыва, не удалялись с панелей.
		log.Warn("profiles issued during revocation queued for reconciliation", slog.Int("count", len(late)))
		res.Attempted += len(late)
		res.Orphans = append(res.Orphans, late...)
	}
	metrics.Revocations.WithLabelValues("revoked").Add(float64(res.Revoked))
	metrics.Revocations.WithLabelValues("orphaned").Add(float64(len(res.Orphans)))

	log.Info("user revoked", slog.Int("attempted", res.Attempted), slog.Int("revoked", res.Revoked))
	if res.Partial() {
		s.escalateOrphans(ctx, log, userID, res.Orphans)
	}
	return res, nil
}

func (s *RevocationService) escalateOrphans(ctx context.Context, log *slog.Logger, userID int64, orphans []models.Orphan) {
	var b strings.Builder
	fmt.Fprintf(&b, "Отзыв доступа пользователя %d выполнен частично. Не удалены с панелей:\n", userID)
	for _, o := range orphans {
		fmt.Fprintf(&b, "• сервер %s, inbound %d, клиент %s\n", o.ServerName, o.InboundID, o.ClientID)
	}
	if err := s.escalator.Escalate(context.WithoutCancel(ctx), b.String()); err != nil {
		log.Error("failed to escalate orphans", sl.Err(err))
	}
}

// ListOrphans возвращает очередь сверки.
func (s *RevocationService) ListOrphans(ctx context.Context) ([]models.Orphan, error) {
	return s.repo.ListOrphans(ctx)
}

// RetryOrphan повторяет удаление клиента и убирает запись при успехе.
func (s *RevocationService) RetryOrphan(ctx context.Context, id int64) (bool, error) {
	const op = "revocation.RetryOrphan"
	log := s.log.With(slog.String("op", op), slog.Int64("orphan_id", id))

	orphan, server, err := s.repo.GetOrphan(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !s.panels.DeleteClient(ctx, *server, orphan.InboundID, orphan.ClientID) {
		log.Warn("remote delete still failing", slog.String("server", server.Name))
		return false, nil
	}
	if err := s.repo.DeleteOrphan(ctx, id); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	metrics.Revocations.WithLabelValues("reconciled").Inc()
	log.Info("orphan reconciled", slog.String("server", server.Name), slog.String("client_id", orphan.ClientID))
	return true, nil
}
