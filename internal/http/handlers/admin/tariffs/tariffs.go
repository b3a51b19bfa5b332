// Package tariffs сбрасывает кеш тарифа после правки в базе.
package tariffs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-entitlements/internal/http/response"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

type Service interface {
	Refresh(ctx context.Context, key string) (*models.Tariff, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отдает тариф в том виде, в каком он теперь лежит в кеше.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.tariffs.refresh"
	key := chi.URLParam(r, "key")

	tariff, err := h.service.Refresh(r.Context(), key)
	if err != nil {
		h.log.Error("failed to refresh tariff",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("key", key),
			sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(tariff))
}
