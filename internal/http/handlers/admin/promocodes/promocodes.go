// Package promocodes заводит промокоды и показывает их расход.
package promocodes

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

// Request тело запроса на новый промокод.
type Request struct {
	Code            string `json:"code" validate:"required,max=64"`
	DiscountPercent int    `json:"discount_percent" validate:"gte=1,lte=100"`
	MaxUses         int    `json:"max_uses" validate:"gt=0"`
}

type Service interface {
	Create(ctx context.Context, code string, discountPercent, maxUses int) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
}

// CreateHandler заводит промокод.
type CreateHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func NewCreate(log *slog.Logger, service Service) *CreateHandler {
	return &CreateHandler{log: log, service: service, validate: validator.New()}
}

func (h *CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.promocodes.create"
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

	p, err := h.service.Create(r.Context(), req.Code, req.DiscountPercent, req.MaxUses)
	if err != nil {
		log.Error("failed to create promo code", slog.String("code", req.Code), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(p))
}

// ListHandler отдает все промокоды.
type ListHandler struct {
	log     *slog.Logger
	service Service
}

func NewList(log *slog.Logger, service Service) *ListHandler {
	return &ListHandler{log: log, service: service}
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.promocodes.list"

	codes, err := h.service.List(r.Context())
	if err != nil {
		h.log.Error("failed to list promo codes",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(codes))
}
