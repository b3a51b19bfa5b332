// Package create выставляет счет на оплату тарифа или пополнение баланса
// в криптовалюте.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-entitlements/internal/http/response"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

// Request тело запроса. Для подписки нужен TariffKey, для пополнения Amount
// в единицах Asset. PromoCode учитывается только для подписки.
type Request struct {
	UserID    int64              `json:"user_id" validate:"required,gt=0"`
	Type      models.PaymentType `json:"payment_type" validate:"required,oneof=subscription balance_topup"`
	Asset     string             `json:"asset" validate:"required,alphanum"`
	TariffKey string             `json:"tariff_key,omitempty"`
	Amount    float64            `json:"amount,omitempty" validate:"gte=0"`
	PromoCode string             `json:"promo_code,omitempty" validate:"max=64"`
}

// Service описывает интерфейс выставления счетов.
type Service interface {
	CreateSubscriptionInvoice(ctx context.Context, userID int64, tariffKey, asset, promoCode string) (*models.Invoice, error)
	CreateTopUpInvoice(ctx context.Context, userID int64, asset string, amount float64) (*models.Invoice, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoices.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	var (
		inv *models.Invoice
		err error
	)
	switch req.Type {
	case models.PaymentSubscription:
		if req.TariffKey == "" {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("field TariffKey is a required field"))
			return
		}
		inv, err = h.service.CreateSubscriptionInvoice(r.Context(), req.UserID, req.TariffKey, req.Asset, req.PromoCode)
	default:
		inv, err = h.service.CreateTopUpInvoice(r.Context(), req.UserID, req.Asset, req.Amount)
	}
	if err != nil {
		log.Error("failed to create invoice",
			slog.Int64("user_id", req.UserID), slog.String("type", string(req.Type)), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(inv))
}
