package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/config"
	dbRedis "github.com/kailas-cloud/querydex/internal/db/redis"
	"github.com/kailas-cloud/querydex/internal/dispatch"
	"github.com/kailas-cloud/querydex/internal/domain"
	logpkg "github.com/kailas-cloud/querydex/internal/logger"
	"github.com/kailas-cloud/querydex/internal/metrics"
	"github.com/kailas-cloud/querydex/internal/repository/embcache"
	fragmentrepo "github.com/kailas-cloud/querydex/internal/repository/fragment"
	chiTransport "github.com/kailas-cloud/querydex/internal/transport/chi"
	openaiClient "github.com/kailas-cloud/querydex/internal/transport/openai"
	generateuc "github.com/kailas-cloud/querydex/internal/usecase/generate"
	searchuc "github.com/kailas-cloud/querydex/internal/usecase/search"
	"github.com/kailas-cloud/querydex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting querydex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the vector store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register client metrics explicitly (no init())
	metrics.RegisterClientMetrics()

	retryCfg := openaiClient.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Retry.BaseBackoffMs) * time.Millisecond,
	}

	// Build embedder chain — OpenAI -> Cached -> Retrying
	baseEmbedder := openaiClient.NewEmbedder(&openaiClient.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	var embedder domain.Embedder = baseEmbedder
	if cfg.Cache.Enabled {
		embedder = embcache.New(
			embedder, store,
			cfg.Search.KeyPrefix+"embcache:",
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
	}
	embedder = openaiClient.NewRetryingEmbedder(embedder, retryCfg, logger)

	generator := openaiClient.NewRetryingGenerator(
		openaiClient.NewGenerator(&openaiClient.GeneratorConfig{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Provider:    "openai",
			Logger:      logger,
		}),
		retryCfg, logger,
	)

	logger.Info("Clients created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("generation_model", cfg.Generation.Model),
		zap.Bool("embedding_cache", cfg.Cache.Enabled),
	)

	fragRepo := fragmentrepo.New(store, cfg.Search.IndexName, cfg.Search.KeyPrefix)

	// Create use case services
	searchSvc := searchuc.New(fragRepo, embedder, searchuc.Options{
		EnableFallback:     cfg.Search.FallbackEnabled,
		FallbackDimensions: cfg.Search.FallbackDimensions,
	}, logger)
	generateSvc := generateuc.New(fragRepo, embedder, generator, cfg.Generation.SystemPrompt, logger)

	// Registry: adding an action kind means adding an entry here,
	// never another branch in the dispatcher.
	dispatcher := dispatch.New(map[domain.Kind]dispatch.Handler{
		domain.KindSearch:   searchSvc,
		domain.KindGenerate: generateSvc,
	}, logger)

	server := chiTransport.NewServer(dispatcher, store, baseEmbedder, logger).
		WithTopKLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    domain.CodeInternal,
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
