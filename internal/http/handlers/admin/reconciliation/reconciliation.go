// Package reconciliation показывает очередь сверки и повторяет удаление
// клиентов с панелей.
package reconciliation

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-entitlements/internal/http/response"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
)

type Service interface {
	ListOrphans(ctx context.Context) ([]models.Orphan, error)
	RetryOrphan(ctx context.Context, id int64) (bool, error)
}

// ListHandler отдает очередь сверки.
type ListHandler struct {
	log     *slog.Logger
	service Service
}

func NewList(log *slog.Logger, service Service) *ListHandler {
	return &ListHandler{log: log, service: service}
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.reconciliation.list"

	orphans, err := h.service.ListOrphans(r.Context())
	if err != nil {
		h.log.Error("failed to list orphans",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if orphans == nil {
		orphans = []models.Orphan{}
	}
	render.JSON(w, r, response.OKWithData(orphans))
}

// RetryHandler повторяет удаление одного клиента.
type RetryHandler struct {
	log     *slog.Logger
	service Service
}

func NewRetry(log *slog.Logger, service Service) *RetryHandler {
	return &RetryHandler{log: log, service: service}
}

func (h *RetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.reconciliation.retry"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	ok, err := h.service.RetryOrphan(r.Context(), id)
	if err != nil {
		log.Error("retry failed", slog.Int64("orphan_id", id), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id":         id,
		"reconciled": ok,
	}))
}
