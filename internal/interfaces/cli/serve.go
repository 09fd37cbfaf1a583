package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appdataset "github.com/qsarlab/adscan/internal/application/dataset"
	appscan "github.com/qsarlab/adscan/internal/application/scan"
	"github.com/qsarlab/adscan/internal/config"
	"github.com/qsarlab/adscan/internal/infrastructure/database/postgres"
	"github.com/qsarlab/adscan/internal/infrastructure/database/postgres/repositories"
	"github.com/qsarlab/adscan/internal/infrastructure/database/redis"
	"github.com/qsarlab/adscan/internal/infrastructure/messaging/kafka"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/prometheus"
	"github.com/qsarlab/adscan/internal/infrastructure/storage/minio"
	httpserver "github.com/qsarlab/adscan/internal/interfaces/http"
	"github.com/qsarlab/adscan/internal/interfaces/http/handlers"
)

func newServeCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ADScan API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Info("starting adscan api server",
		logging.String("version", Version),
		logging.Int("port", cfg.Server.Port),
	)

	// Hot-reload the log level when the config file is rewritten. Everything
	// else requires a restart.
	if opts.ConfigPath != "" {
		if setter, ok := logger.(logging.LevelSetter); ok {
			stop, err := config.Watch(opts.ConfigPath, func(next *config.Config) {
				setter.SetLevel(next.Log.Level)
				logger.Info("log level applied from config reload",
					logging.String("level", next.Log.Level))
			})
			if err != nil {
				logger.Warn("config watch unavailable", logging.Err(err))
			} else {
				defer stop()
			}
		}
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "adscan",
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

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, logger, cacheOptions(cfg.Redis)...)

	minioClient, err := minio.NewClient(ctx, cfg.MinIO, logger)
	if err != nil {
		return err
	}
	store := minio.NewMatrixStore(minioClient, logger)

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	datasetRepo := repositories.NewDatasetRepository(conn.Pool(), logger)
	runRepo := repositories.NewScanRunRepository(conn.Pool(), logger)

	datasetSvc := appdataset.NewService(datasetRepo, store, logger)
	scanSvc := appscan.NewService(runRepo, datasetSvc, producer, cache, metrics, cfg.Scan, logger)
	calc := appscan.NewCalculator(scanSvc.DefaultConfig(), metrics, logger)

	health := handlers.NewHealthHandler(Version, metrics,
		handlers.CheckerFunc{ComponentName: "postgres", Fn: conn.HealthCheck},
		handlers.CheckerFunc{ComponentName: "redis", Fn: redisClient.Ping},
		handlers.CheckerFunc{ComponentName: "minio", Fn: minioClient.HealthCheck},
	)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		DatasetHandler:   handlers.NewDatasetHandler(datasetSvc),
		ScanHandler:      handlers.NewScanHandler(scanSvc),
		DomainHandler:    handlers.NewDomainHandler(calc),
		HealthHandler:    health,
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		MaxBodySize:      cfg.Server.MaxBodySize,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	}

	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

func cacheOptions(cfg config.RedisConfig) []redis.CacheOption {
	var opts []redis.CacheOption
	if cfg.KeyPrefix != "" {
		opts = append(opts, redis.WithPrefix(cfg.KeyPrefix))
	}
	if cfg.DefaultTTL > 0 {
		opts = append(opts, redis.WithDefaultTTL(cfg.DefaultTTL))
	}
	return opts
}
