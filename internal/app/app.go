package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/resale/internal/health"
	"github.com/vladislavdragonenkov/resale/internal/lock"
	"github.com/vladislavdragonenkov/resale/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/resale/internal/metrics"
	"github.com/vladislavdragonenkov/resale/internal/service/checkout"
	"github.com/vladislavdragonenkov/resale/internal/service/listing"
	"github.com/vladislavdragonenkov/resale/internal/service/outbox"
	"github.com/vladislavdragonenkov/resale/internal/service/risk"
	"github.com/vladislavdragonenkov/resale/internal/service/sweeper"
	"github.com/vladislavdragonenkov/resale/internal/version"
)

// Services: прикладной слой поверх Dependencies.
type Services struct {
	Checkout *checkout.Service
	Risk     *risk.Engine
	Listings *listing.Service
	Sweeper  *sweeper.Worker
}

// NewServices собирает сервисы заказов, риска и листингов и свипер таймаутов.
func NewServices(deps *Dependencies, cfg Config, logger *log.Entry) *Services {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	checkoutOptions := []checkout.Option{
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithMetrics(metrics.NewCheckoutMetrics()),
	}
	if cfg.CheckoutAttempts > 1 {
		retry := checkout.DefaultRetryConfig()
		retry.MaxAttempts = cfg.CheckoutAttempts
		checkoutOptions = append(checkoutOptions, checkout.WithRetry(retry))
	}
	checkoutSvc := checkout.NewService(deps.Repos, checkoutOptions...)

	riskMetrics := metrics.NewRiskMetrics()
	engine := risk.NewEngine(deps.Repos,
		risk.WithRules(cfg.riskRules()),
		risk.WithMetrics(riskMetrics),
		risk.WithLogger(logger.WithField("component", "risk")),
	)
	listingSvc := listing.NewService(deps.Repos, engine,
		listing.WithMetrics(riskMetrics),
		listing.WithLogger(logger.WithField("component", "listing")),
	)

	sweeperOptions := []sweeper.Option{
		sweeper.WithLogger(logger.WithField("component", "timeout-sweeper")),
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithDeadline(cfg.PaymentDeadline),
		sweeper.WithBatchSize(cfg.SweepBatchSize),
	}
	if cfg.ListingExpiry {
		sweeperOptions = append(sweeperOptions, sweeper.WithListingExpiry(listingSvc))
	}
	if deps.Redis != nil {
		sweeperOptions = append(sweeperOptions, sweeper.WithLocker(lock.NewRedisLocker(deps.Redis)))
	}

	return &Services{
		Checkout: checkoutSvc,
		Risk:     engine,
		Listings: listingSvc,
		Sweeper:  sweeper.NewWorker(deps.Repos.Orders, checkoutSvc, sweeperOptions...),
	}
}

// Run поднимает сервис и блокируется до отмены ctx или падения gRPC сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	services := NewServices(deps, cfg, logger)

	// Kafka опциональна: без неё outbox копится в хранилище, события платежей не читаются.
	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).WithField("brokers", cfg.KafkaBrokers).Warn("failed to create kafka producer, continuing without kafka")
	}
	defer closeKafka(kafkaProducer, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	startWorker(&workers, func() { services.Sweeper.Run(workerCtx) })

	if kafkaProducer != nil {
		outboxWorker := outbox.NewWorker(deps.Repos.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer, "", ""),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(kafkaProducer, "")),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		startWorker(&workers, func() { outboxWorker.Run(workerCtx) })
	}

	consumer, err := startPaymentConsumer(workerCtx, cfg, services.Checkout, kafkaProducer, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to start payment events consumer, continuing without it")
	}
	defer stopConsumer(consumer, logger)

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	healthHandler := healthcheck.NewHandler(version.Info().Version)
	for name, checker := range deps.Checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func startWorker(wg *sync.WaitGroup, run func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		run()
	}()
}

// newMetricsMux собирает HTTP-обработчики метрик и health checks.
func newMetricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer запускает HTTP-сервер метрик и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
