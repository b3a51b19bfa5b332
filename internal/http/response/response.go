// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-entitlements/internal/cryptopay"
	"github.com/magabrotheeeer/vpn-entitlements/internal/models"
	"github.com/magabrotheeeer/vpn-entitlements/internal/services/invoicing"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status: статус запроса ("OK" или "Error").
// Поле Error: текст ошибки (при неуспехе).
// Поле Data: данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	// StatusOK: значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError: значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "gt", "gte", "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too small", err.Field()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// FromError переводит доменную ошибку в HTTP-статус и сообщение для клиента.
// Технические детали в сообщение не попадают.
func FromError(err error) (int, Response) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, Error("user not found")
	case errors.Is(err, models.ErrUnknownTariff):
		return http.StatusNotFound, Error("unknown tariff")
	case errors.Is(err, models.ErrInvoiceNotFound), errors.Is(err, cryptopay.ErrInvoiceNotFound):
		return http.StatusNotFound, Error("invoice not found")
	case errors.Is(err, models.ErrOrphanNotFound):
		return http.StatusNotFound, Error("reconciliation item not found")
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusPaymentRequired, Error("insufficient balance")
	case errors.Is(err, models.ErrTrialUsed):
		return http.StatusConflict, Error("trial already used")
	case errors.Is(err, models.ErrBelowMinimumDeposit):
		return http.StatusUnprocessableEntity, Error(belowMinimumMessage(err))
	case errors.Is(err, models.ErrUnsupportedAsset):
		return http.StatusUnprocessableEntity, Error("unsupported asset")
	case errors.Is(err, models.ErrInvalidPromoCode):
		return http.StatusUnprocessableEntity, Error("promo code is invalid or exhausted")
	case errors.Is(err, models.ErrPromoCodeExists):
		return http.StatusConflict, Error("promo code already exists")
	case errors.Is(err, models.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, Error("invalid amount")
	case errors.Is(err, models.ErrNoActiveServer):
		return http.StatusServiceUnavailable, Error("no servers available, operators have been notified")
	case errors.Is(err, models.ErrRemoteProvisioning):
		return http.StatusBadGateway, Error("could not issue access, operators have been notified")
	case errors.Is(err, cryptopay.ErrRateNotFound):
		return http.StatusBadGateway, Error("exchange rate unavailable")
	default:
		return http.StatusInternalServerError, Error("internal error")
	}
}

// belowMinimumMessage сообщение с минимальной суммой, если она известна.
func belowMinimumMessage(err error) string {
	if me, ok := invoicing.AsMinimum(err); ok {
		return fmt.Sprintf("amount below minimum deposit, minimum is %s %s", me.Minimum, me.Currency)
	}
	return "amount below minimum deposit"
}

// RenderError пишет ответ для доменной ошибки.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, resp)
}
