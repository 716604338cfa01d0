package cyoabackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/gabrielstm/cyoa-backend/internal/cache"
	"github.com/gabrielstm/cyoa-backend/internal/config"
	"github.com/gabrielstm/cyoa-backend/internal/docs"
	"github.com/gabrielstm/cyoa-backend/internal/grpc/server"
	"github.com/gabrielstm/cyoa-backend/internal/http/handlers/health"
	"github.com/gabrielstm/cyoa-backend/internal/lib/jwt"
	"github.com/gabrielstm/cyoa-backend/internal/lib/password"
	"github.com/gabrielstm/cyoa-backend/internal/lib/rabbitmq"
	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
	"github.com/gabrielstm/cyoa-backend/internal/metrics"
	"github.com/gabrielstm/cyoa-backend/internal/migrations"
	"github.com/gabrielstm/cyoa-backend/internal/services/auth"
	"github.com/gabrielstm/cyoa-backend/internal/storage/files"
	"github.com/gabrielstm/cyoa-backend/internal/storage/repository"
)

const healthInterval = 15 * time.Second

// App держит HTTP- и gRPC-серверы и ресурсы, которые нужно закрыть при остановке.
type App struct {
	server     *http.Server
	grpcServer *server.Server
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	amqpConn   *amqp.Connection
	amqpCh     *amqp.Channel
}

// New подключается к хранилищам, применяет миграции и собирает маршруты.
// Redis и RabbitMQ необязательны: при недоступности сервис работает без них.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	maker, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.Algorithm, cfg.TokenTTL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	app := &App{logger: logger, db: db}
	opts := []auth.Option{auth.WithLogger(logger), auth.WithMetrics(m)}

	store, err := newFileStore(ctx, cfg.Uploads)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts = append(opts, auth.WithFileStore(store))

	healthDeps := map[string]health.Pinger{"postgres": db}
	grpcDeps := []server.Pinger{db}

	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis unavailable, cache and token revocation disabled", sl.Err(err))
		} else {
			app.cache = c
			opts = append(opts, auth.WithCache(c, cfg.ProfileTTL), auth.WithRevocation(c))
			healthDeps["redis"] = c
		}
	}

	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", sl.Err(err))
		} else if ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange); err != nil {
			logger.Warn("failed to set up rabbitmq channel, events disabled", sl.Err(err))
			_ = conn.Close()
		} else {
			app.amqpConn, app.amqpCh = conn, ch
			opts = append(opts, auth.WithEvents(rabbitmq.NewPublisher(ch, cfg.Exchange, cfg.RoutingKey, cfg.PublishTimeout)))
		}
	}

	authService := auth.New(db, maker, password.NewHasher(cfg.BcryptCost), auth.Policy{
		MinPasswordLength: cfg.MinPasswordLength,
		LoginTokenTTL:     cfg.LoginTokenTTL,
	}, opts...)

	docs.SwaggerInfo.BasePath = cfg.APIPrefix

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:         logger,
		Auth:           authService,
		Metrics:        m,
		Gatherer:       reg,
		Health:         healthDeps,
		APIPrefix:      cfg.APIPrefix,
		MaxUploadBytes: cfg.MaxBytes,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if cfg.GRPCAddress != "" {
		gs, err := server.New(cfg.GRPCAddress, logger)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.grpcServer = gs
		go gs.Watch(ctx, healthInterval, grpcDeps...)
	}

	return app, nil
}

func newFileStore(ctx context.Context, cfg config.Uploads) (auth.FileStore, error) {
	switch cfg.Backend {
	case config.UploadsS3:
		return files.NewS3Store(ctx, cfg)
	default:
		return files.NewLocalStore(cfg.Dir)
	}
}

// Run запускает серверы и ждёт отмены ctx, после чего корректно их останавливает.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	grpcCtx, stopGRPC := context.WithCancel(ctx)
	defer stopGRPC()
	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Run(grpcCtx); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	stopGRPC()
	a.close()
	return runErr
}

func (a *App) close() {
	if a.amqpCh != nil {
		_ = a.amqpCh.Close()
	}
	if a.amqpConn != nil {
		_ = a.amqpConn.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
