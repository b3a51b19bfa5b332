// Package settlement применяет оплаты ровно один раз: подтвержденные внешние
// счета и покупки с внутреннего баланса.
package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-entitlements/internal/cryptopay"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/metrics"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/provisioning"
)

// Status итог проверки счета.
type Status string

const (
	Settled        Status = "settled"
	AlreadySettled Status = "already_settled"
	InvoiceExpired Status = "expired"
	NotConfirmed   Status = "not_confirmed"
)

// Outcome результат SettleInvoice.
type Outcome struct {
	Status     Status             `json:"status"`
	InvoiceID  int64              `json:"invoice_id"`
	Type       models.PaymentType `json:"payment_type"`
	Descriptor string             `json:"descriptor,omitempty"`
	Credited   money.Amount       `json:"credited,omitempty"`
	Message    string             `json:"message"`
}

// Repository счета и балансы.
type Repository interface {
	GetInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID int64) (bool, error)
	SettleTopUp(ctx context.Context, invoiceID, userID int64, credit money.Amount) (bool, error)
	GetBalances(ctx context.Context, userID int64) (models.Balances, error)
	DebitBalances(ctx context.Context, userID int64, fromReferral, fromMain money.Amount) (bool, error)
	RefundBalances(ctx context.Context, userID int64, toReferral, toMain money.Amount) error
}

// Processor внешний платежный процессор.
type Processor interface {
	GetInvoice(ctx context.Context, invoiceID int64) (*cryptopay.Invoice, error)
	Rate(ctx context.Context, source, target string) (float64, error)
}

// Provisioner выдача доступа после оплаты.
type Provisioner interface {
	Provision(ctx context.Context, userID int64, tariffKey string, paymentAmount *money.Amount) (provisioning.Result, error)
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

// Notifier доставляет сообщения пользователям и операторам.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
	Escalate(ctx context.Context, text string) error
}

// SettlementService проводит оплаты.
type SettlementService struct {
	repo               Repository
	processor          Processor
	provisioner        Provisioner
	tariffs            Tariffs
	discounts          Discounts
	notifier           Notifier
	settlementCurrency string
	log                *slog.Logger
}

// NewSettlementService создает новый экземпляр SettlementService.
func NewSettlementService(repo Repository, processor Processor, provisioner Provisioner, tariffs Tariffs,
	discounts Discounts, notifier Notifier, settlementCurrency string, log *slog.Logger) *SettlementService {
	return &SettlementService{
		repo:               repo,
		processor:          processor,
		provisioner:        provisioner,
		tariffs:            tariffs,
		discounts:          discounts,
		notifier:           notifier,
		settlementCurrency: settlementCurrency,
		log:                log,
	}
}

// SettleInvoice проверяет внешний статус счета и применяет его. Переход
// waiting→paid делается сравнением-с-заменой в базе, поэтому из параллельных
// проверок одного счета эффект применит только одна.
func (s *SettlementService) SettleInvoice(ctx context.Context, invoiceID int64) (Outcome, error) {
	const op = "settlement.SettleInvoice"
	log := s.log.With(slog.String("op", op), slog.Int64("invoice_id", invoiceID))

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	out := Outcome{InvoiceID: inv.ID, Type: inv.Type}
	if inv.Status == models.InvoicePaid {
		return s.already(out), nil
	}

	ext, err := s.processor.GetInvoice(ctx, invoiceID)
	if err != nil {
		log.Error("failed to fetch invoice status", sl.Err(err))
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	switch ext.Status {
	case cryptopay.StatusPaid:
	case cryptopay.StatusExpired:
		s.observe(string(inv.Type), InvoiceExpired)
		out.Status = InvoiceExpired
		out.Message = "⚠️ Срок действия счета истек. Пожалуйста, создайте новый."
		return out, nil
	default:
		s.observe(string(inv.Type), NotConfirmed)
		out.Status = NotConfirmed
		out.Message = "⚠️ Платеж еще не подтвержден. Попробуйте снова через минуту."
		return out, nil
	}

	if inv.Type == models.PaymentTopUp {
		return s.settleTopUp(ctx, log, inv, out)
	}
	return s.settleSubscription(ctx, log, inv, out)
}

func (s *SettlementService) settleSubscription(ctx context.Context, log *slog.Logger, inv *models.Invoice, out Outcome) (Outcome, error) {
	const op = "settlement.settleSubscription"

	marked, err := s.repo.MarkInvoicePaid(ctx, inv.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	if !marked {
		return s.already(out), nil
	}

	amount := money.FromFloat(inv.Amount)
	res, err := s.provisioner.Provision(ctx, inv.UserID, inv.TariffKey, &amount)
	if err != nil {
		s.observe(string(inv.Type), "provision_failed")
		log.Error("invoice paid but provisioning failed", slog.Int64("user_id", inv.UserID), sl.Err(err))
		s.escalate(ctx, log, fmt.Sprintf("Счет %d пользователя %d оплачен, но выдать доступ по тарифу %s не удалось: %v",
			inv.ID, inv.UserID, inv.TariffKey, err))
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	s.observe(string(inv.Type), Settled)
	log.Info("subscription invoice settled", slog.Int64("user_id", inv.UserID))
	out.Status = Settled
	out.Descriptor = res.Descriptor
	out.Message = "✅ Оплата прошла успешно!"
	return out, nil
}

// settleTopUp зачисляет пополнение по курсу на момент проверки.
func (s *SettlementService) settleTopUp(ctx context.Context, log *slog.Logger, inv *models.Invoice, out Outcome) (Outcome, error) {
	const op = "settlement.settleTopUp"

	rate, err := s.processor.Rate(ctx, inv.Currency, s.settlementCurrency)
	if err != nil {
		log.Error("failed to fetch exchange rate", slog.String("asset", inv.Currency), sl.Err(err))
		s.escalate(ctx, log, fmt.Sprintf("Не удалось получить курс %s/%s для зачисления счета %d пользователя %d. Средства не зачислены.",
			inv.Currency, s.settlementCurrency, inv.ID, inv.UserID))
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	credit := money.FromFloat(money.Round(inv.Amount*rate, 2))

	settled, err := s.repo.SettleTopUp(ctx, inv.ID, inv.UserID, credit)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	if !settled {
		return s.already(out), nil
	}

	s.observe(string(inv.Type), Settled)
	log.Info("top-up invoice settled", slog.Int64("user_id", inv.UserID), slog.String("credited", credit.String()))
	out.Status = Settled
	out.Credited = credit
	out.Message = fmt.Sprintf("✅ Ваш баланс успешно пополнен на %s ₽.", credit)
	return out, nil
}

// PayFromBalance покупает тариф с баланса: сначала реферальный, затем
// основной. Промокод уменьшает цену и расходуется только при успешной
// покупке. Если выдать доступ не удалось, списание возвращается.
func (s *SettlementService) PayFromBalance(ctx context.Context, userID int64, tariffKey, promoCode string) (provisioning.Result, error) {
	const op = "settlement.PayFromBalance"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID), slog.String("tariff", tariffKey))

	tariff, err := s.tariffs.Tariff(ctx, tariffKey)
	if err != nil {
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	balances, err := s.repo.GetBalances(ctx, userID)
	if err != nil {
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	price, err := s.discounts.Apply(ctx, promoCode, tariff.Price)
	if err != nil {
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if balances.Total() < price {
		s.discounts.Release(ctx, promoCode)
		s.observe("balance", "insufficient")
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, models.ErrInsufficientBalance)
	}

	fromReferral := min(balances.Referral, price)
	fromMain := price - fromReferral

	debited, err := s.repo.DebitBalances(ctx, userID, fromReferral, fromMain)
	if err != nil {
		s.discounts.Release(ctx, promoCode)
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !debited {
		s.discounts.Release(ctx, promoCode)
		s.observe("balance", "insufficient")
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, models.ErrInsufficientBalance)
	}

	res, err := s.provisioner.Provision(ctx, userID, tariff.Key, nil)
	if err != nil {
		s.observe("balance", "refunded")
		s.refund(ctx, log, userID, fromReferral, fromMain)
		s.discounts.Release(ctx, promoCode)
		return provisioning.Result{}, fmt.Errorf("%s: %w", op, err)
	}

	s.observe("balance", Settled)
	log.Info("paid from balance",
		slog.String("from_referral", fromReferral.String()), slog.String("from_main", fromMain.String()))
	return res, nil
}

func (s *SettlementService) refund(ctx context.Context, log *slog.Logger, userID int64, toReferral, toMain money.Amount) {
	err := s.repo.RefundBalances(context.WithoutCancel(ctx), userID, toReferral, toMain)
	if err == nil {
		log.Info("balance debit reversed")
		return
	}
	log.Error("failed to reverse balance debit", sl.Err(err))
	s.escalate(ctx, log, fmt.Sprintf("Не удалось вернуть списание пользователю %d: реферальный %s ₽, основной %s ₽.",
		userID, toReferral, toMain))
}

func (s *SettlementService) already(out Outcome) Outcome {
	s.observe(string(out.Type), AlreadySettled)
	out.Status = AlreadySettled
	out.Message = "Этот платеж уже обработан."
	return out
}

func (s *SettlementService) escalate(ctx context.Context, log *slog.Logger, text string) {
	if err := s.notifier.Escalate(context.WithoutCancel(ctx), text); err != nil {
		log.Error("failed to escalate to operators", sl.Err(err))
	}
}

func (s *SettlementService) observe(path string, status Status) {
	metrics.Settlements.WithLabelValues(path, string(status)).Inc()
}
