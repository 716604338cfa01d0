package auth

import (
	"log/slog"
	"time"

	"github.com/gabrielstm/cyoa-backend/internal/metrics"
)

// Option настраивает необязательные возможности AuthService.
type Option func(*AuthService)

// WithFileStore включает сохранение аватаров при регистрации.
func WithFileStore(store FileStore) Option {
	return func(s *AuthService) {
		s.files = store
	}
}

// WithCache включает кэширование ссылки на аватар с заданным сроком хранения.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *AuthService) {
		s.cache = cache
		s.profileTTL = ttl
	}
}

// WithRevocation включает список отозванных токенов.
func WithRevocation(store Cache) Option {
	return func(s *AuthService) {
		s.revoked = store
	}
}

// WithEvents включает публикацию события о регистрации.
func WithEvents(publisher EventPublisher) Option {
	return func(s *AuthService) {
		s.events = publisher
	}
}

// WithMetrics включает счётчики prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер для ошибок необязательных зависимостей.
func WithLogger(log *slog.Logger) Option {
	return func(s *AuthService) {
		if log != nil {
			s.log = log
		}
	}
}
