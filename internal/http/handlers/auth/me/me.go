// Package me реализует HTTP-обработчик получения текущего пользователя.
package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gabrielstm/cyoa-backend/internal/http/middlewarectx"
	"github.com/gabrielstm/cyoa-backend/internal/http/response"
	"github.com/gabrielstm/cyoa-backend/internal/models"
)

// Service описывает получение публичного профиля пользователя,
// уже проверенного JWTMiddleware.
type Service interface {
	Profile(ctx context.Context, user *models.User) *models.PublicUser
}

// Handler возвращает профиль владельца токена.
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
// @Summary Текущий пользователь
// @Description Возвращает профиль пользователя, которому выдан токен.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PublicUser "Профиль пользователя"
// @Failure 401 {object} response.ErrorResponse "Токен отсутствует или недействителен"
// @Router /auth/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		w.Header().Set("WWW-Authenticate", "Bearer")
		response.WriteError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}

	render.JSON(w, r, h.service.Profile(r.Context(), user))
}
