// Package promo ведет промокоды и применяет скидки к цене тарифа.
package promo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// Repository хранилище промокодов.
type Repository interface {
	CreatePromoCode(ctx context.Context, p models.PromoCode) (*models.PromoCode, error)
	ListPromoCodes(ctx context.Context) ([]models.PromoCode, error)
	ClaimPromoCode(ctx context.Context, code string) (int, error)
	ReleasePromoCode(ctx context.Context, code string) error
}

// PromoService применяет и заводит промокоды.
type PromoService struct {
	repo Repository
	log  *slog.Logger
}

// NewPromoService создает новый экземпляр PromoService.
func NewPromoService(repo Repository, log *slog.Logger) *PromoService {
	return &PromoService{repo: repo, log: log}
}

// Normalize приводит код к виду, в котором он хранится.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply расходует одно применение кода и возвращает цену со скидкой.
// Пустой код оставляет цену без изменений и ничего не расходует.
func (s *PromoService) Apply(ctx context.Context, code string, price money.Amount) (money.Amount, error) {
	const op = "promo.Apply"

	code = Normalize(code)
	if code == "" {
		return price, nil
	}
	percent, err := s.repo.ClaimPromoCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	discounted := models.Discounted(price, percent)
	s.log.Info("promo code applied",
		slog.String("op", op),
		slog.String("code", code),
		slog.Int("discount_percent", percent),
		slog.String("price", discounted.String()))
	return discounted, nil
}

// Release возвращает применение кода, если покупка не состоялась.
func (s *PromoService) Release(ctx context.Context, code string) {
	const op = "promo.Release"

	code = Normalize(code)
	if code == "" {
		return
	}
	if err := s.repo.ReleasePromoCode(context.WithoutCancel(ctx), code); err != nil {
		s.log.Error("failed to release promo code", slog.String("op", op), slog.String("code", code), sl.Err(err))
	}
}

// Create заводит новый промокод.
func (s *PromoService) Create(ctx context.Context, code string, discountPercent, maxUses int) (*models.PromoCode, error) {
	const op = "promo.Create"

	code = Normalize(code)
	if code == "" || discountPercent < 1 || discountPercent > 100 || maxUses < 1 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidPromoCode)
	}
	p, err := s.repo.CreatePromoCode(ctx, models.PromoCode{Code: code, DiscountPercent: discountPercent, MaxUses: maxUses})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo code created", slog.String("code", code), slog.Int("discount_percent", discountPercent))
	return p, nil
}

// List возвращает все промокоды.
func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	const op = "promo.List"

	codes, err := s.repo.ListPromoCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if codes == nil {
		codes = []models.PromoCode{}
	}
	return codes, nil
}
