// Package invoicing выставляет счета во внешнем платежном процессоре и
// принимает заявки на ручное пополнение баланса.
package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/magabrotheeeer/vpn-entitlements/internal/cryptopay"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// Repository хранилище пользователей и счетов.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CreateInvoice(ctx context.Context, inv models.Invoice) error
}

// Processor внешний платежный процессор.
type Processor interface {
	Rate(ctx context.Context, source, target string) (float64, error)
	CreateInvoice(ctx context.Context, asset string, amount float64) (*cryptopay.Invoice, error)
}

// Tariffs каталог тарифов.
type Tariffs interface {
	Tariff(ctx context.Context, key string) (*models.Tariff, error)
}

// Discounts применяет промокоды к цене тарифа.
type Discounts interface {
	Apply(ctx context.Context, code string, price money.Amount) (money.Amount, error)
	Release(ctx context.Context, code string)
}

// Escalator уведомляет операторов.
type Escalator interface {
	Escalate(ctx context.Context, text string) error
}

// Config валюты и минимальные суммы пополнения.
type Config struct {
	Assets             []string
	SettlementCurrency string
	ReferenceCurrency  string
	MinCryptoDeposit   float64
	MinFiatDeposit     money.Amount
}

// MinimumError сумма пополнения ниже минимальной. Minimum указан в Currency.
type MinimumError struct {
	Minimum  string
	Currency string
}

func (e *MinimumError) Error() string {
	return fmt.Sprintf("%s: minimum is %s %s", models.ErrBelowMinimumDeposit, e.Minimum, e.Currency)
}

func (e *MinimumError) Unwrap() error {
	return models.ErrBelowMinimumDeposit
}

// InvoicingService выставляет счета.
type InvoicingService struct {
	repo      Repository
	processor Processor
	tariffs   Tariffs
	discounts Discounts
	escalator Escalator
	cfg       Config
	log       *slog.Logger
}

// NewInvoicingService создает новый экземпляр InvoicingService.
func NewInvoicingService(repo Repository, processor Processor, tariffs Tariffs, discounts Discounts,
	escalator Escalator, cfg Config, log *slog.Logger) *InvoicingService {
	return &InvoicingService{
		repo:      repo,
		processor: processor,
		tariffs:   tariffs,
		discounts: discounts,
		escalator: escalator,
		cfg:       cfg,
		log:       log,
	}
}

func (s *InvoicingService) asset(asset string) (string, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if !slices.Contains(s.cfg.Assets, asset) {
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedAsset, asset)
	}
	return asset, nil
}

// CreateSubscriptionInvoice выставляет счет на оплату тарифа в криптовалюте.
// В счете сохраняется цена тарифа в валюте расчетов с учетом промокода.
// Применение промокода возвращается, если счет выставить не удалось.
func (s *InvoicingService) CreateSubscriptionInvoice(ctx context.Context, userID int64, tariffKey, asset, promoCode string) (*models.Invoice, error) {
	const op = "invoicing.CreateSubscriptionInvoice"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	asset, err := s.asset(asset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tariff, err := s.tariffs.Tariff(ctx, tariffKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	price, err := s.discounts.Apply(ctx, promoCode, tariff.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inv, err := s.subscriptionInvoice(ctx, userID, tariff.Key, asset, price)
	if err != nil {
		s.discounts.Release(ctx, promoCode)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("subscription invoice created",
		slog.Int64("invoice_id", inv.ID),
		slog.String("tariff", tariff.Key),
		slog.String("price", price.String()),
		slog.String("asset", asset))
	return inv, nil
}

// subscriptionInvoice выставляет счет на price. Бесплатную покупку
// счетом оплатить нельзя, она проходит через баланс.
func (s *InvoicingService) subscriptionInvoice(ctx context.Context, userID int64, tariffKey, asset string, price money.Amount) (*models.Invoice, error) {
	if price <= 0 {
		return nil, models.ErrInvalidAmount
	}
	rate, err := s.processor.Rate(ctx, asset, s.cfg.SettlementCurrency)
	if err != nil {
		return nil, err
	}
	cryptoAmount := money.Round(price.Float()/rate, 8)

	ext, err := s.processor.CreateInvoice(ctx, asset, cryptoAmount)
	if err != nil {
		return nil, err
	}
	inv := models.Invoice{
		ID:        ext.ID,
		UserID:    userID,
		TariffKey: tariffKey,
		Amount:    price.Float(),
		Currency:  asset,
		Status:    models.InvoiceWaiting,
		Type:      models.PaymentSubscription,
		PayURL:    ext.URL(),
	}
	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateTopUpInvoice выставляет счет на пополнение баланса на amount единиц
// asset. Сумма в опорной валюте не может быть меньше минимальной.
func (s *InvoicingService) CreateTopUpInvoice(ctx context.Context, userID int64, asset string, amount float64) (*models.Invoice, error) {
	const op = "invoicing.CreateTopUpInvoice"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	asset, err := s.asset(asset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rate, err := s.processor.Rate(ctx, asset, s.cfg.ReferenceCurrency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if amount*rate < s.cfg.MinCryptoDeposit {
		minimum := math.Ceil(money.Round(s.cfg.MinCryptoDeposit/rate*1e8, 4)) / 1e8
		return nil, fmt.Errorf("%s: %w", op, &MinimumError{Minimum: money.FormatCrypto(minimum), Currency: asset})
	}

	amount = money.Round(amount, 8)
	ext, err := s.processor.CreateInvoice(ctx, asset, amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inv := models.Invoice{
		ID:       ext.ID,
		UserID:   userID,
		Amount:   amount,
		Currency: asset,
		Status:   models.InvoiceWaiting,
		Type:     models.PaymentTopUp,
		PayURL:   ext.URL(),
	}
	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("top-up invoice created", slog.Int64("invoice_id", inv.ID), slog.String("asset", asset))
	return &inv, nil
}

// RequestFiatTopUp передает операторам заявку на пополнение в валюте
// расчетов. Зачисление выполняет оператор.
func (s *InvoicingService) RequestFiatTopUp(ctx context.Context, userID int64, amount money.Amount) error {
	const op = "invoicing.RequestFiatTopUp"

	if amount < s.cfg.MinFiatDeposit {
		return fmt.Errorf("%s: %w", op, &MinimumError{Minimum: s.cfg.MinFiatDeposit.String(), Currency: s.cfg.SettlementCurrency})
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	who := fmt.Sprintf("%d", user.ID)
	if user.Username != "" {
		who += " (@" + user.Username + ")"
	}
	text := fmt.Sprintf("💳 Заявка на пополнение баланса\n\nПользователь: %s\nСумма: %s %s",
		who, amount, s.cfg.SettlementCurrency)
	if err := s.escalator.Escalate(ctx, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("fiat top-up requested", slog.Int64("user_id", userID), slog.String("amount", amount.String()))
	return nil
}

// AsMinimum достает минимальную сумму из ошибки.
func AsMinimum(err error) (*MinimumError, bool) {
	var me *MinimumError
	ok := errors.As(err, &me)
	return me, ok
}
