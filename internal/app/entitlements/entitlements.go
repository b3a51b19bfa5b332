// Package entitlements собирает HTTP API выдачи доступов и расчетов.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-entitlements/internal/cache"
	"github.com/magabrotheeeer/vpn-entitlements/internal/config"
	"github.com/magabrotheeeer/vpn-entitlements/internal/cryptopay"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/migrations"
	"github.com/magabrotheeeer/vpn-entitlements/internal/panel"
	"github.com/magabrotheeeer/vpn-entitlements/internal/rabbitmq"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/catalog"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/invoicing"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/ledger"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/notification"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/promo"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/provisioning"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/revocation"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/selector"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/settlement"
	"github.com/magabrotheeeer/vpn-entitlements/internal/storage/repository"
)

// App HTTP-сервер со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилище, кеш и брокер, применяет миграции и собирает
// сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	notifier := notification.NewPublisher(ch, logger)
	tariffs := catalog.NewCatalogService(db, cacheRedis, cfg.TariffCacheTTL, logger)
	promoService := promo.NewPromoService(db, logger)
	serverSelector := selector.New(db, cache.NewCursor(cacheRedis), logger)
	panels := panel.NewFactory(panel.Config{
		LoginTimeout:   cfg.LoginTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)
	processor := cryptopay.NewClient(cfg.CryptoPay.Token, cfg.CryptoPay.BaseURL, cfg.CryptoPay.Timeout, cfg.InvoiceTTL)

	provisioner := provisioning.NewProvisioningService(db, tariffs, serverSelector, panels, notifier, provisioning.Config{
		LabelPrefix:     cfg.LabelPrefix,
		DefaultFlow:     cfg.DefaultFlow,
		ReferralPercent: cfg.ReferralPercent,
		TrialDays:       cfg.TrialDays,
		TrialGB:         cfg.TrialGB,
	}, logger)
	settlementService := settlement.NewSettlementService(db, processor, provisioner, tariffs, promoService, notifier,
		cfg.SettlementCurrency, logger)
	invoicingService := invoicing.NewInvoicingService(db, processor, tariffs, promoService, notifier, invoicing.Config{
		Assets:             cfg.Assets,
		SettlementCurrency: cfg.SettlementCurrency,
		ReferenceCurrency:  cfg.ReferenceCurrency,
		MinCryptoDeposit:   cfg.MinCryptoDeposit,
		MinFiatDeposit:     money.FromFloat(cfg.MinFiatDeposit),
	}, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, Services{
		DB:           db.DB,
		Tokens:       jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Ledger:       ledger.NewLedgerService(db, notifier, logger),
		Provisioning: provisioner,
		Settlement:   settlementService,
		Invoicing:    invoicingService,
		Revocation:   revocation.NewRevocationService(db, panels, notifier, logger),
		Promo:        promoService,
		Catalog:      tariffs,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
