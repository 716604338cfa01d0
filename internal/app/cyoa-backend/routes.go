// Package cyoabackend собирает HTTP-маршруты и зависимости основного приложения.
package cyoabackend

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/gabrielstm/cyoa-backend/internal/docs"
	"github.com/gabrielstm/cyoa-backend/internal/http/handlers/auth/login"
	"github.com/gabrielstm/cyoa-backend/internal/http/handlers/auth/logout"
	"github.com/gabrielstm/cyoa-backend/internal/http/handlers/auth/me"
	"github.com/gabrielstm/cyoa-backend/internal/http/handlers/auth/register"
	"github.com/gabrielstm/cyoa-backend/internal/http/handlers/health"
	"github.com/gabrielstm/cyoa-backend/internal/http/middlewarectx"
	"github.com/gabrielstm/cyoa-backend/internal/metrics"
	"github.com/gabrielstm/cyoa-backend/internal/models"
	"github.com/gabrielstm/cyoa-backend/internal/services/auth"
)

// AuthService объединяет операции, которые нужны обработчикам.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
	Profile(ctx context.Context, user *models.User) *models.PublicUser
	Revoke(ctx context.Context, token string) error
}

// Deps: зависимости маршрутизатора.
type Deps struct {
	Logger         *slog.Logger
	Auth           AuthService
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Health         map[string]health.Pinger
	APIPrefix      string
	MaxUploadBytes int64
	RateLimit      float64
	RateBurst      int
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		d.Metrics.Middleware,
	)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"message": "hello world"})
	})

	r.Route(d.APIPrefix, func(r chi.Router) {
		r.Get("/health", health.New(d.Logger, d.Health).ServeHTTP)

		r.Route("/auth", func(r chi.Router) {
			// Открытые конечные точки
			r.Group(func(r chi.Router) {
				if d.RateLimit > 0 {
					r.Use(middlewarectx.RateLimitMiddleware(d.RateLimit, d.RateBurst, d.Logger))
				}
				r.Post("/register", register.New(d.Logger, d.Auth, d.MaxUploadBytes).ServeHTTP)
				r.Post("/login", login.New(d.Logger, d.Auth).ServeHTTP)
			})

			// Группа с JWT аутентификацией
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.JWTMiddleware(d.Auth, d.Logger))
				r.Get("/me", me.New(d.Logger, d.Auth).ServeHTTP)
				r.Post("/logout", logout.New(d.Logger, d.Auth).ServeHTTP)
			})
		})
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
