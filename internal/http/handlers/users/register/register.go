// Package register реализует HTTP-обработчик регистрации пользователя при
// первом обращении к боту.
package register

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
)

// Request тело запроса на регистрацию.
type Request struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Username   string `json:"username"`
	ReferrerID *int64 `json:"referrer_id,omitempty" validate:"omitempty,gt=0"`
}

// Service описывает интерфейс регистрации.
type Service interface {
	Register(ctx context.Context, userID int64, username string, referrerID *int64) (bool, error)
}

// Handler управляет HTTP-запросами на регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.register"
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
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	created, err := h.service.Register(r.Context(), req.UserID, req.Username, req.ReferrerID)
	if err != nil {
		log.Error("failed to register user", slog.Int64("user_id", req.UserID), sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	if created {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_id": req.UserID,
		"created": created,
	}))
}
