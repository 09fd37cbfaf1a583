package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appdataset "github.com/qsarlab/adscan/internal/application/dataset"
	appscan "github.com/qsarlab/adscan/internal/application/scan"
	"github.com/qsarlab/adscan/internal/infrastructure/database/postgres"
	"github.com/qsarlab/adscan/internal/infrastructure/database/postgres/repositories"
	"github.com/qsarlab/adscan/internal/infrastructure/messaging/kafka"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/prometheus"
	"github.com/qsarlab/adscan/internal/infrastructure/storage/minio"
	httpserver "github.com/qsarlab/adscan/internal/interfaces/http"
	"github.com/qsarlab/adscan/internal/interfaces/http/handlers"
)

func newWorkerCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a scan worker consuming queued jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), opts)
		},
	}
}

func runWorker(ctx context.Context, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Info("starting adscan worker",
		logging.String("version", Version),
		logging.String("group", cfg.Kafka.GroupID),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "adscan",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	minioClient, err := minio.NewClient(ctx, cfg.MinIO, logger)
	if err != nil {
		return err
	}
	store := minio.NewMatrixStore(minioClient, logger)

	datasetRepo := repositories.NewDatasetRepository(conn.Pool(), logger)
	runRepo := repositories.NewScanRunRepository(conn.Pool(), logger)
	datasetSvc := appdataset.NewService(datasetRepo, store, logger)

	// The worker only consumes; it never submits runs and never serves
	// profiles, so queue and cache stay nil.
	scanSvc := appscan.NewService(runRepo, datasetSvc, nil, nil, metrics, cfg.Scan, logger)

	handler := func(ctx context.Context, msg kafka.ScanJobMessage) error {
		start := time.Now()
		err := scanSvc.ProcessJob(ctx, msg.RunID)
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.JobsFinishedTotal.WithLabelValues(status).Inc()
		metrics.JobProcessDuration.WithLabelValues().Observe(time.Since(start).Seconds())
		return err
	}

	consumer := kafka.NewConsumer(cfg.Kafka, handler, logger)
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	// Probe and metrics endpoint for the worker fleet.
	health := handlers.NewHealthHandler(Version, metrics,
		handlers.CheckerFunc{ComponentName: "postgres", Fn: conn.HealthCheck},
		handlers.CheckerFunc{ComponentName: "minio", Fn: minioClient.HealthCheck},
	)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    health,
		Logger:           logger,
		MetricsCollector: collector,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stopErr := consumer.Stop()
		if err != nil {
			return err
		}
		return stopErr
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	}

	if err := consumer.Stop(); err != nil {
		logger.Error("consumer shutdown failed", logging.Err(err))
	}
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}
