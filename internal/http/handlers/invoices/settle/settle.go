// Package settle проверяет оплату счета и выполняет расчет по нему.
package settle

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
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/settlement"
)

// Service описывает интерфейс расчета по счету.
type Service interface {
	SettleInvoice(ctx context.Context, invoiceID int64) (settlement.Outcome, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отвечает 200 и для информационных исходов (счет уже оплачен,
// истек, оплата не подтверждена), статус исхода в поле data.status.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoices.settle"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	out, err := h.service.SettleInvoice(r.Context(), invoiceID)
	if err != nil {
		log.Error("settlement failed", slog.Int64("invoice_id", invoiceID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	log.Info("settlement checked", slog.Int64("invoice_id", invoiceID), slog.String("status", string(out.Status)))
	render.JSON(w, r, response.OKWithData(out))
}
