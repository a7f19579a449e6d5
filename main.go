package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/alert"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/azure"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/config"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/handler"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/metrics"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/middleware"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/pdf"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/repository"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.Duration("sweep_interval", cfg.Adherence.SweepInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, cfg.Database.URL, logger); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Initialize database connection pool with pgx
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to parse database URL", zap.Error(err))
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	// Alert delivery
	sinks := []alert.Sink{alert.NewLogSink(logger)}
	if cfg.Alerts.RedisAddr != "" {
		redisSink, err := alert.NewRedisSink(ctx, cfg.Alerts.RedisAddr, cfg.Alerts.Channel, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisSink.Close()
		sinks = append(sinks, redisSink)
	}
	dispatcher := alert.NewDispatcher(cfg.Alerts.BufferSize, cfg.Alerts.SendTimeout, logger, sinks...)

	reportStorage, err := newReportStorage(ctx, cfg.Azure.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize report storage", zap.Error(err))
	}

	m := metrics.New()
	profileRepo := repository.NewProfileRepository(pool, logger)
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize services
	adherenceService := service.NewAdherenceService(profileRepo, engine.SystemClock{}, dispatcher, m, logger, service.AdherenceOptions{
		SweepInterval: cfg.Adherence.SweepInterval,
		SaveTimeout:   cfg.Adherence.SaveTimeout,
	})
	reportService := service.NewReportService(adherenceService, reportStorage, pdf.NewPDFGenerator(logger), engine.SystemClock{}, m, logger)

	// Create a unified handler that implements the ServerInterface
	apiHandler := &handler.APIHandler{
		Profile:    handler.NewProfileHandler(adherenceService, auditLogger, logger),
		Medication: handler.NewMedicationHandler(adherenceService, auditLogger, logger),
		Health:     handler.NewHealthHandler(adherenceService, logger),
		Dashboard:  handler.NewDashboardHandler(adherenceService, auditLogger, logger),
		Report:     handler.NewReportHandler(reportService, auditLogger, logger),
		DB:         profileRepo,
		Logger:     logger,
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)

	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(cfg.Server.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))
	r.Use(middleware.MetricsMiddleware(m))

	r.GET("/metrics", gin.WrapH(m.Handler()))

	limited := r.Group("")
	limited.Use(limiter.Middleware())
	api.RegisterHandlers(limited, apiHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dispatcher.Run()
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if n := limiter.Cleanup(now); n > 0 {
					logger.Debug("evicted idle rate limiters", zap.Int("count", n))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		// Locking every open session flushes the profiles before alerts stop.
		if err := adherenceService.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}
	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Server.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Logging.Format == "console" || cfg.Logging.Format == "json" {
		zapCfg.Encoding = cfg.Logging.Format
	}
	return zapCfg.Build()
}

// newReportStorage prefers Azure Blob Storage and falls back to an in-memory
// store when no credentials are configured
func newReportStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (azure.ReportStorage, error) {
	if !cfg.Enabled() {
		logger.Warn("Azure storage not configured, reports are kept in memory")
		return azure.NewMockBlobStorageClient(logger), nil
	}

	var (
		client *azure.BlobStorageClient
		err    error
	)
	if cfg.ConnectionString != "" {
		client, err = azure.NewBlobStorageClientFromConnectionString(cfg.ConnectionString, cfg.ReportContainer, logger)
	} else {
		client, err = azure.NewBlobStorageClient(cfg.AccountName, cfg.AccountKey, cfg.ReportContainer, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := client.EnsureContainer(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
