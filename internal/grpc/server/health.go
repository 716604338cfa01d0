// Package server поднимает gRPC-сервер со стандартным сервисом grpc.health.v1.Health.
//
// Статус обслуживания обновляется фоновой проверкой зависимостей,
// что позволяет оркестратору использовать gRPC-пробы.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
)

// ServiceName: имя сервиса, под которым публикуется статус.
const ServiceName = "cyoa.auth"

// Pinger: зависимость, доступность которой определяет статус.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server: gRPC-сервер проверки состояния.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	log        *slog.Logger
}

// New создает сервер, слушающий address.
func New(address string, log *slog.Logger) (*Server, error) {
	const op = "server.New"
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewWithListener(lis, log), nil
}

// NewWithListener создает сервер поверх готового listener.
func NewWithListener(lis net.Listener, log *slog.Logger) *Server {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		grpcServer: grpcServer,
		health:     hs,
		listener:   lis,
		log:        log,
	}
}

// SetServing обновляет статус сервиса и общий статус сервера.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

// Watch проверяет зависимости с интервалом interval до отмены ctx.
func (s *Server) Watch(ctx context.Context, interval time.Duration, deps ...Pinger) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		for _, d := range deps {
			if err := d.Ping(pingCtx); err != nil {
				s.log.Warn("health check failed", sl.Err(err))
				s.SetServing(false)
				return
			}
		}
		s.SetServing(true)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Run обслуживает запросы до отмены ctx, затем останавливается с ожиданием активных вызовов.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("gRPC health service listening on", slog.String("address", s.listener.Addr().String()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
