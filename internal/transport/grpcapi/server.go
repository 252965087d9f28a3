package grpcapi

import (
	"errors"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server — gRPC-сервер с метриками, health-сервисом и reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *log.Entry
}

// NewServer регистрирует сервис отслеживания. При nil registerer метрики идут в глобальный реестр.
func NewServer(svc OrderTrackingServer, registerer prometheus.Registerer, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "grpc-server")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registerer.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	RegisterOrderTrackingServer(srv, svc)
	grpcMetrics.InitializeMetrics(srv)

	reflection.Register(srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return &Server{grpc: srv, health: healthServer, logger: logger}
}

// Serve блокируется до остановки сервера. Штатная остановка не считается ошибкой.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Infof("gRPC сервер слушает %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop переводит health в NOT_SERVING и ждёт завершения вызовов не дольше timeout.
// Открытые потоки WatchOrder обрываются по таймауту.
func (s *Server) Stop(timeout time.Duration) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		s.logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		s.grpc.Stop()
	}
}
