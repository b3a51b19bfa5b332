// Package credit пополняет основной баланс пользователя вручную.
package credit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/response"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/money"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
)

type Request struct {
	Amount money.Amount `json:"amount" validate:"gt=0"`
}

type Service interface {
	CreditMain(ctx context.Context, userID int64, amount money.Amount) error
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
	const op = "handlers.admin.credit"
	caller, _ := r.Context().Value(middlewarectx.Caller).(string)
	log := h.log.With(
		slog.String("op", op),
		slog.String("caller", caller),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.CreditMain(r.Context(), userID, req.Amount); err != nil {
		log.Error("credit failed", slog.Int64("user_id", userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	log.Info("balance credited by operator", slog.Int64("user_id", userID), slog.String("amount", req.Amount.String()))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_id": userID,
		"amount":  req.Amount,
	}))
}
