// Package health реализует проверку живости сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gabrielstm/cyoa-backend/internal/http/response"
	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
)

// Pinger: зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler отвечает 200, если все обязательные зависимости доступны, иначе 503.
type Handler struct {
	log      *slog.Logger
	required map[string]Pinger
	timeout  time.Duration
}

// New создает Handler. Ключ карты: имя зависимости в ответе.
func New(log *slog.Logger, required map[string]Pinger) *Handler {
	return &Handler{
		log:      log,
		required: required,
		timeout:  2 * time.Second,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.required))
	healthy := true
	for name, p := range h.required {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("dependency unavailable",
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("dependency", name),
				sl.Err(err),
			)
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Error: "dependency unavailable", Data: checks})
		return
	}
	render.JSON(w, r, response.StatusOKWithData(checks))
}
