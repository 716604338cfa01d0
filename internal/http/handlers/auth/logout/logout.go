// Package logout реализует HTTP-обработчик отзыва токена.
package logout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/gabrielstm/cyoa-backend/internal/http/middlewarectx"
	"github.com/gabrielstm/cyoa-backend/internal/http/response"
	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
	"github.com/gabrielstm/cyoa-backend/internal/services/auth"
)

// Service отзывает токен, уже проверенный JWTMiddleware.
type Service interface {
	Revoke(ctx context.Context, token string) error
}

// Handler обрабатывает HTTP-запросы на выход.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выход
// @Description Отзывает текущий токен до окончания срока его действия.
// @Tags Auth
// @Security BearerAuth
// @Success 204 "Токен отозван"
// @Failure 401 {object} response.ErrorResponse "Токен отсутствует или недействителен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := middlewarectx.TokenFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		response.WriteError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}

	err := h.service.Revoke(r.Context(), token)
	if errors.Is(err, auth.ErrInvalidToken) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		response.WriteError(w, r, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}
	if err != nil {
		log.Error("failed to revoke token", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, response.InternalError)
		return
	}

	log.Info("token revoked")
	w.WriteHeader(http.StatusNoContent)
}
