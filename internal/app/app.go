// Package app собирает сервис из хранилища, хаба уведомлений, брокера и транспортов.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/yummybites/internal/auth"
	healthcheck "github.com/vladislavdragonenkov/yummybites/internal/health"
	"github.com/vladislavdragonenkov/yummybites/internal/messaging"
	"github.com/vladislavdragonenkov/yummybites/internal/metrics"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
	"github.com/vladislavdragonenkov/yummybites/internal/service/menu"
	"github.com/vladislavdragonenkov/yummybites/internal/service/orders"
	"github.com/vladislavdragonenkov/yummybites/internal/service/outbox"
	"github.com/vladislavdragonenkov/yummybites/internal/service/ratings"
	"github.com/vladislavdragonenkov/yummybites/internal/service/reservation"
	"github.com/vladislavdragonenkov/yummybites/internal/transport/grpcapi"
	"github.com/vladislavdragonenkov/yummybites/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/yummybites/internal/transport/ws"
	"github.com/vladislavdragonenkov/yummybites/internal/version"
)

// Run поднимает HTTP, WebSocket, gRPC и сервер метрик и блокируется до отмены ctx.
// Порядок остановки: HTTP перестаёт принимать запросы, хаб закрывает все каналы
// наблюдения, затем gRPC дожидается завершения потоков.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.InstanceID = cfg.instanceID()
	logger := log.WithFields(log.Fields{"component": "app", "instance": cfg.InstanceID})

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	registerer := prometheus.DefaultRegisterer
	hub := notify.NewHub(
		notify.WithMaxSubscribersPerOrder(cfg.MaxSubscribersPerOrder),
		notify.WithMetrics(metrics.NewHubMetrics(registerer)),
		notify.WithLogger(log.WithField("component", "notify-hub")),
	)

	relay := messaging.NewRelay(hub, cfg.InstanceID, log.WithField("component", "status-relay"))
	broker := initBroker(cfg, relay, logger)
	defer broker.close()

	orderMetrics := metrics.NewOrderMetrics(registerer)
	orderOpts := []orders.Option{
		orders.WithTimeline(deps.timeline),
		orders.WithReservations(deps.reservations),
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(log.WithField("component", "order-service")),
		orders.WithInstanceID(cfg.InstanceID),
	}
	if broker.publisher != nil {
		orderOpts = append(orderOpts, orders.WithOutbox(deps.outbox))
	}
	orderService := orders.NewService(deps.orders, hub, orderOpts...)
	reservationService := reservation.NewService(deps.reservations, orderMetrics, log.WithField("component", "reservation-service"))
	menuService := menu.NewService(deps.menu, log.WithField("component", "menu-service"))
	if err := seedMenu(ctx, menuService, cfg.MenuFile); err != nil {
		return err
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret is empty: every request is served as guest")
	}

	watch := ws.NewHandler(hub,
		ws.WithQueueSize(cfg.WSSendBuffer),
		ws.WithAllowedOrigins(cfg.CORSOrigins),
		ws.WithLogger(log.WithField("component", "ws")),
	)
	router := httpapi.NewRouter(httpapi.Config{
		Orders:       orderService,
		Reservations: reservationService,
		Menu:         menuService,
		Ratings:      ratings.NewService(deps.ratings, log.WithField("component", "rating-service")),
		Auth:         auth.New(cfg.JWTSecret, cfg.AdminEmail),
		Watch:        watch,
		Metrics:      metrics.NewHTTPMetrics(registerer),
		CORSOrigins:  cfg.CORSOrigins,
		Version:      version.GetVersion(),
		Logger:       log.WithField("component", "http"),
	})
	httpSrv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	grpcServer := grpcapi.NewServer(
		grpcapi.NewService(orderService, hub, cfg.WSSendBuffer, log.WithField("component", "grpc-tracking")),
		registerer,
		log.WithField("component", "grpc-server"),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion(), cfg.InstanceID)
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("broker", broker.checker)

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	startMetricsServer(gctx, cfg.MetricsAddr, logger, healthHandler)

	g.Go(func() error {
		logger.Infof("HTTP сервер слушает %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Serve(grpcLis)
	})

	if broker.publisher != nil {
		outboxMetrics := metrics.NewOutboxMetrics(registerer)
		worker := outbox.NewWorker(deps.outbox, broker.publisher,
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithMetrics(outboxMetrics),
			outbox.WithDLQPublisher(broker.dlq),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		cleaner := outbox.NewCleanupWorker(deps.outbox,
			outbox.WithCleanupLogger(log.WithField("component", "outbox-cleanup-worker")),
			outbox.WithCleanupMetrics(outboxMetrics),
			outbox.WithRetention(cfg.OutboxRetention),
		)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			cleaner.Run(gctx)
			return nil
		})
	}
	if broker.runRelay != nil {
		g.Go(func() error {
			if err := broker.runRelay(gctx); err != nil {
				logger.WithError(err).Error("status relay stopped, cross-instance updates are lost")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		shutdownHTTP(httpSrv, cfg.ShutdownTimeout, logger)
		hub.Shutdown()
		grpcServer.Stop(cfg.ShutdownTimeout)
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// seedMenu загружает меню из YAML-файла, если путь задан.
func seedMenu(ctx context.Context, svc *menu.Service, path string) error {
	if path == "" {
		return nil
	}
	items, err := menu.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load menu: %w", err)
	}
	return svc.Seed(ctx, items)
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
