package entitlements

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/vpn-entitlements/internal/config"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/admin/credit"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/admin/grant"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/admin/promocodes"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/admin/reconciliation"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/admin/revoke"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/admin/tariffs"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/invoices/create"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/invoices/settle"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/balance"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/pay"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/profiles"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/register"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/topup"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/transactions"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/handlers/users/trial"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/middlewarectx"
)

// Services зависимости обработчиков.
type Services struct {
	DB           health.Pinger
	Tokens       middlewarectx.TokenParser
	Ledger       LedgerAPI
	Provisioning ProvisioningAPI
	Settlement   SettlementAPI
	Invoicing    InvoicingAPI
	Revocation   RevocationAPI
	Promo        promocodes.Service
	Catalog      tariffs.Service
}

// LedgerAPI операции с пользователями и балансами.
type LedgerAPI interface {
	register.Service
	balance.Service
	credit.Service
	profiles.Service
	transactions.Service
}

type ProvisioningAPI interface {
	trial.Service
	grant.Service
}

type SettlementAPI interface {
	pay.Service
	settle.Service
}

type InvoicingAPI interface {
	create.Service
	topup.Service
}

type RevocationAPI interface {
	revoke.Service
	reconciliation.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, s Services) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(s.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, logger))
		r.Use(middlewarectx.JWTMiddleware(s.Tokens, logger))

		r.Post("/users", register.New(logger, s.Ledger).ServeHTTP)
		r.Get("/users/{id}/balance", balance.New(logger, s.Ledger).ServeHTTP)
		r.Get("/users/{id}/profiles", profiles.New(logger, s.Ledger).ServeHTTP)
		r.Get("/users/{id}/transactions", transactions.New(logger, s.Ledger).ServeHTTP)
		r.Post("/users/{id}/trial", trial.New(logger, s.Provisioning).ServeHTTP)
		r.Post("/users/{id}/pay", pay.New(logger, s.Settlement).ServeHTTP)
		r.Post("/users/{id}/topup/fiat", topup.New(logger, s.Invoicing).ServeHTTP)
		r.Post("/invoices", create.New(logger, s.Invoicing).ServeHTTP)
		r.Post("/invoices/{id}/settle", settle.New(logger, s.Settlement).ServeHTTP)

		// Операции оператора
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireAdmin(logger))
			r.Post("/users/{id}/grant", grant.New(logger, s.Provisioning).ServeHTTP)
			r.Post("/users/{id}/credit", credit.New(logger, s.Ledger).ServeHTTP)
			r.Post("/users/{id}/revoke", revoke.New(logger, s.Revocation).ServeHTTP)
			r.Get("/reconciliation", reconciliation.NewList(logger, s.Revocation).ServeHTTP)
			r.Post("/reconciliation/{id}/retry", reconciliation.NewRetry(logger, s.Revocation).ServeHTTP)
			r.Get("/promocodes", promocodes.NewList(logger, s.Promo).ServeHTTP)
			r.Post("/promocodes", promocodes.NewCreate(logger, s.Promo).ServeHTTP)
			r.Post("/tariffs/{key}/refresh", tariffs.New(logger, s.Catalog).ServeHTTP)
		})
	})
}
