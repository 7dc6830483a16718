package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/veritel/golang_services/internal/platform/config"
	"github.com/veritel/golang_services/internal/platform/database"
	"github.com/veritel/golang_services/internal/platform/logger"
	"github.com/veritel/golang_services/internal/platform/messagebroker"
	"github.com/veritel/golang_services/internal/platform/storage"
	httpadapter "github.com/veritel/golang_services/internal/verification_service/adapters/http"
	"github.com/veritel/golang_services/internal/verification_service/app"
	"github.com/veritel/golang_services/internal/verification_service/provider"
	"github.com/veritel/golang_services/internal/verification_service/repository/postgres"
)

const (
	serviceName     = "verification-service"
	shutdownTimeout = 15 * time.Second
)

// httpLogger is a middleware that logs HTTP requests using slog.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := chiMiddleware.GetReqID(r.Context())

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", requestID),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)

	appLogger.Info("Verification service starting...",
		"port", cfg.VerificationServicePort,
		"metrics_port", cfg.VerificationServiceMetricsPort,
		"log_level", cfg.LogLevel,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	blobStore, err := storage.NewAzureBlobStore(cfg.AzureStorageConnectionString, cfg.AzureStorageContainer, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	if err := blobStore.EnsureContainer(mainCtx); err != nil {
		appLogger.Error("Failed to prepare storage container", "error", err)
		os.Exit(1)
	}

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	keys := splitKeys(cfg.NumverifyAPIKeys)
	if len(keys) == 0 {
		appLogger.Error("No lookup provider API keys configured (APP_NUMVERIFY_API_KEYS)")
		os.Exit(1)
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second}
	clients := make([]provider.LookupClient, 0, len(keys))
	for i, key := range keys {
		name := fmt.Sprintf("numverify-%d", i+1)
		clients = append(clients, provider.NewNumverifyClient(appLogger, cfg.NumverifyAPIURL, key, name, httpClient))
	}
	pool, err := provider.NewPool(clients, appLogger)
	if err != nil {
		appLogger.Error("Failed to build provider pool", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Provider pool initialized", "credentials", pool.Size())

	ledgerRepo := postgres.NewPgLedgerRepository(dbPool, appLogger)
	verificationApp := app.NewVerificationService(
		ledgerRepo, blobStore, pool, natsClient,
		cfg.VerificationUnitCost, cfg.DefaultCountryCode, appLogger,
	)
	appLogger.Info("VerificationAppService initialized")

	handler := httpadapter.NewVerificationHandler(verificationApp, appLogger)
	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(httpLogger(appLogger))
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.VerificationServicePort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.VerificationServiceMetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of servers...")

		shutdownCtx, cancelShutdownTimeout := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdownTimeout()

		var shutdownErrors error
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics http shutdown: %w", err))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		return shutdownErrors
	})

	appLogger.Info("Verification service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
	}

	appLogger.Info("Verification service shut down successfully.")
}

func splitKeys(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
