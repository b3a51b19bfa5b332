// Package grant выдает доступ без оплаты по решению оператора.
package grant

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
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/provisioning"
)

type Request struct {
	TariffKey string `json:"tariff_key" validate:"required"`
}

type Service interface {
	Grant(ctx context.Context, userID int64, tariffKey string) (provisioning.Result, error)
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
	const op = "handlers.admin.grant"
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

	res, err := h.service.Grant(r.Context(), userID, req.TariffKey)
	if err != nil {
		log.Error("grant failed", slog.Int64("user_id", userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	log.Info("access granted", slog.Int64("user_id", userID), slog.String("tariff", req.TariffKey))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(res))
}
