package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabble/internal/api"
	"tabble/internal/client"
	"tabble/internal/config"
	"tabble/internal/database"
	"tabble/internal/logging"
	"tabble/internal/monitoring"
	"tabble/internal/ordering"
	"tabble/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	port       = flag.Int("port", 0, "API server port (overrides config)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	// Initialize database
	store, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	monitor := monitoring.NewMonitor(200)
	collector := monitoring.NewCollector()

	// Each session gets its own client so that it carries its own X-Session-ID
	start := func(ctx context.Context, identity ordering.Identity) (*session.Session, error) {
		restaurant := client.New(client.Options{
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
		}, logger, monitor, collector)
		return session.Start(ctx, restaurant, store, identity, session.Config{
			PollInterval:  cfg.Session.PollInterval,
			FeedbackDelay: cfg.Session.FeedbackDelay,
		}, logger, collector)
	}

	auth := api.NewAuthenticator(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	apiServer := api.NewServer(start, auth, monitor, logger)
	defer apiServer.Shutdown()

	probe := client.New(client.Options{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, logger, monitor, collector)
	if err := probe.CheckHealth(context.Background()); err != nil {
		logger.Warn("restaurant API is not reachable yet", zap.String("base_url", cfg.API.BaseURL), zap.Error(err))
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Router(),
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics, collector)
		go func() {
			logger.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port), zap.String("path", cfg.Metrics.Path))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down servers")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", zap.Error(err))
			}
		}
	}()

	logger.Info("starting API server", zap.Int("port", cfg.Server.Port), zap.String("restaurant_api", cfg.API.BaseURL))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("API server: %w", err)
	}
	<-shutdownDone
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, collector *monitoring.Collector) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.GET(cfg.Path, gin.WrapH(collector.Handler()))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: metricsRouter,
	}
}
