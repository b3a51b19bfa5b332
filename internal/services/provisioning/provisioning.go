// Package provisioning выдает доступ: выбирает сервер, создает клиента на
// панели, сохраняет профиль, продлевает подписку и начисляет реферальный бонус.
//
// Порядок шагов: сначала удаленный клиент, потом локальная запись. Если
// панель отказала, локальное состояние не меняется.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/metrics"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
	"github.com/magabrotheeeer/vpn-entitlements/internal/panel"
)

// TrialTariffKey тип подписки, который получает пробный период
const TrialTariffKey = "trial"

// Repository хранилище пользователей и профилей.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SaveEntitlement(ctx context.Context, p models.Profile, tariffKey string, days int, now time.Time) (time.Time, error)
	CreditReferralBalance(ctx context.Context, userID int64, amount money.Amount) error
	ClaimTrial(ctx context.Context, userID int64) (bool, error)
	ReleaseTrial(ctx context.Context, userID int64) error
}

// Tariffs каталог тарифов.
type Tariffs interface {
	Tariff(ctx context.Context, key string) (*models.Tariff, error)
}

// Selector выбирает сервер для выдачи.
type Selector interface {
	Select(ctx context.Context) (models.Server, error)
}

// Panels создает клиентов на панелях серверов.
type Panels interface {
	CreateClient(ctx context.Context, server models.Server, req panel.CreateRequest) (panel.Created, error)
}

// Notifier доставляет сообщения пользователям и операторам.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
	Escalate(ctx context.Context, text string) error
}

// Config параметры выдачи.
type Config struct {
	LabelPrefix     string
	DefaultFlow     string
	ReferralPercent int64
	TrialDays       int
	TrialGB         int
}

// Result выданный доступ.
type Result struct {
	Descriptor string    `json:"descriptor"`
	ExpiresAt  time.Time `json:"expires_at"`
	Server     string    `json:"server"`
}

// ProvisioningService оркестрирует выдачу доступа.
type ProvisioningService struct {
	repo     Repository
	tariffs  Tariffs
	selector Selector
	panels   Panels
	notifier Notifier
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// NewProvisioningService создает новый экземпляр ProvisioningService.
func NewProvisioningService(repo Repository, tariffs Tariffs, selector Selector, panels Panels,
	notifier Notifier, cfg Config, log *slog.Logger) *ProvisioningService {
	return &ProvisioningService{
		repo:     repo,
		tariffs:  tariffs,
		selector: selector,
		panels:   panels,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Provision выдает доступ по тарифу. paymentAmount передается только для
// внешних оплат: с него начисляется бонус пригласившему.
// Повторный вызов создаст еще один профиль и еще раз продлит подписку.
func (s *ProvisioningService) Provision(ctx context.Context, userID int64, tariffKey string, paymentAmount *money.Amount) (Result, error) {
	const op = "provisioning.Provision"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID), slog.String("tariff", tariffKey))

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	tariff, err := s.tariffs.Tariff(ctx, tariffKey)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.issue(ctx, log, user.ID, tariff.Key, tariff.Days, tariff.GB)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if paymentAmount != nil && *paymentAmount > 0 && user.ReferrerID != nil {
		s.creditReferrer(ctx, log, *user.ReferrerID, *paymentAmount)
	}
	return res, nil
}

// Grant выдача оператором без оплаты и без бонуса пригласившему.
func (s *ProvisioningService) Grant(ctx context.Context, userID int64, tariffKey string) (Result, error) {
	return s.Provision(ctx, userID, tariffKey, nil)
}

// Trial выдает пробный период один раз на пользователя. Отметка ставится до
// обращения к панели и снимается, если выдать доступ не удалось.
func (s *ProvisioningService) Trial(ctx context.Context, userID int64) (Result, error) {
	const op = "provisioning.Trial"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	claimed, err := s.repo.ClaimTrial(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !claimed {
		return Result{}, fmt.Errorf("%s: %w", op, models.ErrTrialUsed)
	}

	res, err := s.issue(ctx, log, userID, TrialTariffKey, s.cfg.TrialDays, s.cfg.TrialGB)
	if err != nil {
		if relErr := s.repo.ReleaseTrial(context.WithoutCancel(ctx), userID); relErr != nil {
			log.Error("failed to release trial flag", sl.Err(relErr))
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// issue создает клиента на следующем сервере и фиксирует профиль локально.
func (s *ProvisioningService) issue(ctx context.Context, log *slog.Logger, userID int64, tariffKey string, days, quotaGB int) (Result, error) {
	server, err := s.selector.Select(ctx)
	if err != nil {
		metrics.Provisions.WithLabelValues("no_server").Inc()
		if errors.Is(err, models.ErrNoActiveServer) {
			log.Error("no active servers")
			s.escalate(ctx, log, fmt.Sprintf("‼️ ОШИБКА ВЫДАЧИ КЛЮЧА ‼️\n\nВ базе нет активных серверов! Пользователь %d, тариф %s.", userID, tariffKey))
		}
		return Result{}, err
	}
	log = log.With(slog.String("server", server.Name))

	flow := server.Flow
	if flow == "" {
		flow = s.cfg.DefaultFlow
	}

	created, err := s.panels.CreateClient(ctx, server, panel.CreateRequest{
		InboundID: server.InboundID,
		OwnerID:   userID,
		Days:      days,
		QuotaGB:   quotaGB,
		Flow:      flow,
	})
	if err != nil {
		metrics.Provisions.WithLabelValues("remote_failed").Inc()
		log.Error("failed to create panel client", sl.Err(err))
		s.escalate(ctx, log, fmt.Sprintf("Не удалось создать профиль на сервере %s для пользователя %d (тариф %s): %v",
			server.Name, userID, tariffKey, err))
		return Result{}, fmt.Errorf("%w: server %s: %v", models.ErrRemoteProvisioning, server.Name, err)
	}

	label := s.cfg.LabelPrefix + created.Label
	descriptor := panel.Descriptor(server, created.ClientID, flow, label)

	now := s.now()
	expiry, err := s.repo.SaveEntitlement(ctx, models.Profile{
		UserID:     userID,
		ServerID:   server.ID,
		ClientID:   created.ClientID,
		Label:      label,
		Descriptor: descriptor,
		InboundID:  server.InboundID,
	}, tariffKey, days, now)
	if err != nil {
		metrics.Provisions.WithLabelValues("local_failed").Inc()
		log.Error("panel client created but not saved", slog.String("client_id", created.ClientID), sl.Err(err))
		s.escalate(ctx, log, fmt.Sprintf("Клиент %s создан на сервере %s (inbound %d) для пользователя %d, но не сохранен в базе. Удалите его вручную.",
			created.ClientID, server.Name, server.InboundID, userID))
		return Result{}, err
	}

	metrics.Provisions.WithLabelValues("ok").Inc()
	log.Info("entitlement issued", slog.String("client_id", created.ClientID), slog.Time("expires_at", expiry))
	return Result{Descriptor: descriptor, ExpiresAt: expiry, Server: server.Name}, nil
}

func (s *ProvisioningService) creditReferrer(ctx context.Context, log *slog.Logger, referrerID int64, paid money.Amount) {
	bonus := paid.Percent(s.cfg.ReferralPercent)
	if bonus <= 0 {
		return
	}
	if err := s.repo.CreditReferralBalance(ctx, referrerID, bonus); err != nil {
		log.Error("failed to credit referral bonus", slog.Int64("referrer_id", referrerID), sl.Err(err))
		return
	}
	log.Info("referral bonus credited", slog.Int64("referrer_id", referrerID), slog.String("bonus", bonus.String()))

	if err := s.notifier.Notify(ctx, referrerID, fmt.Sprintf("🎉 Вам начислен реферальный бонус %s ₽!", bonus)); err != nil {
		log.Warn("failed to notify referrer", slog.Int64("referrer_id", referrerID), sl.Err(err))
	}
}

func (s *ProvisioningService) escalate(ctx context.Context, log *slog.Logger, text string) {
	if err := s.notifier.Escalate(context.WithoutCancel(ctx), text); err != nil {
		log.Error("failed to escalate to operators", sl.Err(err))
	}
}
