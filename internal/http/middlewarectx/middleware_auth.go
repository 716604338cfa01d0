// Package middlewarectx содержит HTTP middleware для проверки JWT токенов
// и ограничения частоты запросов.
//
// JWTMiddleware проверяет заголовок Authorization, валидирует токен через
// сервис аутентификации и кладёт пользователя и сам токен в контекст запроса.
// При ошибке проверки возвращает 401 Unauthorized с заголовком WWW-Authenticate.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/gabrielstm/cyoa-backend/internal/http/response"
	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
	"github.com/gabrielstm/cyoa-backend/internal/models"
	"github.com/gabrielstm/cyoa-backend/internal/services/auth"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// User: ключ для *models.User владельца токена.
	User Key = "user"
	// Token: ключ для исходной строки токена.
	Token Key = "token"
)

const bearerPrefix = "Bearer "

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(svc Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr, ok := BearerToken(r)
			if !ok {
				log.Debug("missing or invalid authorization header")
				unauthorized(w, r, "not authenticated")
				return
			}

			user, err := svc.ValidateToken(r.Context(), tokenStr)
			if errors.Is(err, auth.ErrInvalidToken) {
				log.Debug("token rejected")
				unauthorized(w, r, auth.ErrInvalidToken.Error())
				return
			}
			if err != nil {
				log.Error("failed to validate token", sl.Err(err))
				response.WriteError(w, r, http.StatusInternalServerError, response.InternalError)
				return
			}

			ctx := context.WithValue(r.Context(), User, user)
			ctx = context.WithValue(ctx, Token, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken извлекает токен из заголовка Authorization. Схема сравнивается без учёта регистра.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// UserFromContext возвращает пользователя, положенного JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(User).(*models.User)
	return user, ok && user != nil
}

// TokenFromContext возвращает токен, положенный JWTMiddleware.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(Token).(string)
	return token, ok && token != ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	response.WriteError(w, r, http.StatusUnauthorized, msg)
}
