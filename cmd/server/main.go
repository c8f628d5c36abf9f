package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/speechcare/analysis-service/config"
	"github.com/speechcare/analysis-service/internal/analyzer"
	"github.com/speechcare/analysis-service/internal/artifacts"
	"github.com/speechcare/analysis-service/internal/handlers"
	"github.com/speechcare/analysis-service/internal/jobs"
	"github.com/speechcare/analysis-service/internal/media"
	"github.com/speechcare/analysis-service/internal/middleware"
	"github.com/speechcare/analysis-service/internal/storage"
	"github.com/speechcare/analysis-service/internal/store"
	"github.com/speechcare/analysis-service/internal/telemetry"
	"github.com/speechcare/analysis-service/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting analysis service")

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.GetConfigFromEnv())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	taskStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to task store")
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("Task store connected")

	workspace, err := artifacts.NewWorkspace(cfg.Workspace.ScratchDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare scratch workspace")
	}

	archive, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open upload archive")
	}

	normalizer := media.NewNormalizer(cfg.Media.FFmpegPath, *logger)
	if !normalizer.Available() {
		logger.Warn().Str("path", cfg.Media.FFmpegPath).Msg("ffmpeg not found, video uploads will fail")
	}

	analyzerClient := analyzer.NewHTTPAnalyzer(analyzerConfig(cfg.Analyzer))

	pool := worker.NewPool(taskStore, workspace, analyzerClient, worker.Config{
		MaxConcurrent:   cfg.Worker.MaxConcurrent,
		AnalysisTimeout: cfg.Worker.AnalysisTimeout,
	}, *logger)

	sweeper := jobs.NewScratchSweeper(taskStore, workspace, logger, cfg.Worker.SweepInterval, cfg.Worker.SweepMinAge)
	go sweeper.Start(ctx)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RateLimit(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
	}))
	setupMiddleware(router, logger)

	taskHandlers := handlers.NewTaskHandlers(taskStore, workspace, archive, normalizer, pool, *logger)

	router.GET("/health", handlers.HealthCheck(taskStore))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tasks := router.Group("/tasks")
	{
		tasks.POST("/:taskId", taskHandlers.Submit)
		tasks.GET("", taskHandlers.List)
		tasks.GET("/:taskId/status", taskHandlers.Status)
		tasks.GET("/:taskId/result", taskHandlers.Result)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight analyses finish so their tasks reach a terminal state.
	pool.Wait()

	if err := taskStore.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to close task store")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down telemetry")
	}

	logger.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "mongo":
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.PostgresURL, cfg.MaxConnections, cfg.MinConnections)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openArchive(ctx context.Context, cfg config.ArchiveConfig) (storage.Archive, error) {
	switch storage.Type(cfg.Type) {
	case storage.TypeS3:
		return storage.NewS3Archive(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case storage.TypeLocal, "":
		return storage.NewLocalArchive(cfg.BasePath)
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

func analyzerConfig(cfg config.AnalyzerConfig) analyzer.HTTPConfig {
	out := analyzer.DefaultHTTPConfig(cfg.Endpoint)
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries > 0 {
		out.MaxRetries = cfg.MaxRetries
	}
	if cfg.RequestsPerSecond > 0 {
		out.RequestsPerSecond = cfg.RequestsPerSecond
	}
	return out
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "analysis-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
