package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/8adimka/expert_consult/internal/chat"
	"github.com/8adimka/expert_consult/internal/chat/assistant"
	"github.com/8adimka/expert_consult/internal/chat/model"
	"github.com/8adimka/expert_consult/internal/circuitbreaker"
	"github.com/8adimka/expert_consult/internal/config"
	"github.com/8adimka/expert_consult/internal/errorsx"
	"github.com/8adimka/expert_consult/internal/health"
	"github.com/8adimka/expert_consult/internal/httpx"
	"github.com/8adimka/expert_consult/internal/llm"
	"github.com/8adimka/expert_consult/internal/logging"
	"github.com/8adimka/expert_consult/internal/metrics"
	"github.com/8adimka/expert_consult/internal/mongox"
	"github.com/8adimka/expert_consult/internal/otel"
	"github.com/8adimka/expert_consult/internal/redisx"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	serviceName    = "expert-consult"
	serviceVersion = "1.0.0"
)

func main() {
	ctx := context.Background()

	// Load configuration from .env file
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	logging.NewSecureLogger(logger).Info("Configuration loaded",
		"openai_api_key", cfg.OpenAIApiKey,
		"model", cfg.OpenAIModel,
		"base_url", cfg.OpenAIBaseURL,
		"temperature", cfg.OpenAITemperature,
		"port", cfg.Port,
		"redis_addr", cfg.RedisAddr,
		"redis_password", cfg.RedisPassword,
		"mongo_uri", cfg.MongoURI,
		"trusted_proxies", cfg.TrustedProxies,
		"admin_api_key", cfg.AdminAPIKey,
	)

	// A missing key is not fatal: the page shows the credential error instead
	if err := cfg.Validate(); err != nil {
		if errorsx.IsInvalidInput(err) {
			slog.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}
		if errorsx.IsMissingCredential(err) {
			slog.Warn("OPENAI_API_KEY is not set, answers will report the missing credential")
		}
	}

	proxies, err := httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		slog.Error("Invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	// Initialize OpenTelemetry
	shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
	})
	if err != nil {
		slog.Error("Failed to initialize OpenTelemetry", "error", err)
		os.Exit(1)
	}
	defer shutdown(ctx)

	appMetrics, err := metrics.NewMetrics(otel.GetMeter())
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	opts := []assistant.Option{assistant.WithMetrics(appMetrics)}
	deps := map[string]health.Pinger{}
	var serverOpts []chat.ServerOption

	// Optional answer cache
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, redisx.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			slog.Error("Redis unavailable, answer cache disabled", "error", err)
		} else {
			defer rdb.Close()
			cache := redisx.NewCache(rdb, cfg.CacheTTL())
			opts = append(opts, assistant.WithCache(cache))
			deps["redis"] = cache
		}
	}

	// Optional consultation history
	if cfg.MongoURI != "" {
		db, err := mongox.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			slog.Error("MongoDB unavailable, history disabled", "error", err)
		} else {
			defer func() { _ = db.Client().Disconnect(context.Background()) }()
			repo := model.New(db)
			opts = append(opts, assistant.WithHistory(repo))
			admin := httpx.NewAPIKeyAuth(cfg.AdminAPIKey)
			if !admin.Enabled() {
				slog.Warn("ADMIN_API_KEY is not set, consultation history is readable by anyone")
			}
			serverOpts = append(serverOpts,
				chat.WithHistoryLister(repo),
				chat.WithHistoryAuth(admin.Middleware()),
			)
			deps["mongodb"] = repo
		}
	}

	var completer assistant.Completer = llm.NewOpenAICompleter(cfg.LLM(), appMetrics)
	if cfg.BreakerFailures > 0 {
		completer = llm.NewGuardedCompleter(completer, circuitbreaker.Config{
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown(),
		})
	}

	assist := assistant.New(cfg.LLM(), completer, opts...)
	server := chat.NewServer(assist, serverOpts...)

	limiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, proxies)
	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go limiter.RunEviction(evictCtx, time.Minute, 10*time.Minute)

	// Configure handler
	handler := mux.NewRouter()
	handler.Use(
		httpx.OTelMiddleware(),
		httpx.RequestID(),
		httpx.Logger(),
		httpx.Recovery(),
		appMetrics.HTTPMetricsMiddleware(),
		limiter.Middleware(),
	)

	// Health checks
	healthChecker := health.NewHealthChecker(cfg.LLM().HasCredential(), deps)
	handler.HandleFunc("/health", healthChecker.HealthHandler).Methods(http.MethodGet)
	handler.HandleFunc("/ready", healthChecker.ReadyHandler).Methods(http.MethodGet)

	// Metrics endpoint
	handler.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server.Register(handler)

	// Start the server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting the server...", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
