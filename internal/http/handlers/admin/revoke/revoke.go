// Package revoke отзывает доступ пользователя на всех серверах.
package revoke

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-entitlements/internal/http/response"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/revocation"
)

type Service interface {
	Revoke(ctx context.Context, userID int64) (revocation.Result, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP при частичном отзыве отвечает 207, неудаленные клиенты
// перечислены в data.orphans.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.revoke"
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

	res, err := h.service.Revoke(r.Context(), userID)
	if err != nil {
		log.Error("revoke failed", slog.Int64("user_id", userID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if res.Partial() {
		render.Status(r, http.StatusMultiStatus)
	}
	render.JSON(w, r, response.OKWithData(res))
}
