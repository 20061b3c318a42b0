// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/convoplex/chatroom-platform/internal/admission"
	"github.com/convoplex/chatroom-platform/internal/cache"
	"github.com/convoplex/chatroom-platform/internal/config"
	"github.com/convoplex/chatroom-platform/internal/genai"
	"github.com/convoplex/chatroom-platform/internal/handler"
	"github.com/convoplex/chatroom-platform/internal/middleware"
	"github.com/convoplex/chatroom-platform/internal/queue"
	"github.com/convoplex/chatroom-platform/internal/service"
	"github.com/convoplex/chatroom-platform/internal/store"
	"github.com/convoplex/chatroom-platform/internal/worker"
	"github.com/convoplex/chatroom-platform/pkg/logger"
	"github.com/convoplex/chatroom-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatroom-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to Redis (the shared cache for quota counters and listings)
	redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", zap.Error(err))
		os.Exit(1)
	}
	defer redisCache.Close()

	// Open the chatroom store
	chatStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
	if err != nil {
		log.Error("failed to open chatroom store", zap.Error(err))
		os.Exit(1)
	}
	defer chatStore.Close()

	// Connect to NATS and ensure the jobs stream exists
	natsClient, err := queue.ConnectNATS(ctx, queue.NATSConfig{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	jobQueue := queue.NewJetStreamQueue(natsClient, cfg.JobAckWait, cfg.JobMaxDeliver)
	if err := jobQueue.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure jobs stream", zap.Error(err))
		os.Exit(1)
	}

	// Initialize the generation client
	provider := genai.Provider(cfg.DefaultProvider)
	apiKey := cfg.OpenAIAPIKey
	if provider == genai.ProviderAnthropic {
		apiKey = cfg.AnthropicAPIKey
	}
	genClient, err := genai.NewClient(provider, apiKey)
	if err != nil {
		log.Error("failed to create generation client", zap.Error(err))
		os.Exit(1)
	}

	// Initialize the admission controller
	admissionCtrl, err := admission.NewController(redisCache, admission.Config{
		FreeDailyLimit: cfg.FreeDailyLimit,
		ProDailyLimit:  cfg.ProDailyLimit,
		Timezone:       cfg.QuotaTimezone,
	}, log)
	if err != nil {
		log.Error("failed to create admission controller", zap.Error(err))
		os.Exit(1)
	}

	// Initialize services
	chatroomSvc := service.NewChatroomService(chatStore, redisCache, admissionCtrl, jobQueue, service.Config{
		ListingCacheTTL:   cfg.ListingCacheTTL,
		AdmissionFailOpen: cfg.AdmissionFailOpen,
	}, log)

	// Start the worker pool
	consumer, err := jobQueue.NewConsumer(ctx)
	if err != nil {
		log.Error("failed to create job consumer", zap.Error(err))
		os.Exit(1)
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool := worker.NewPool(consumer, chatStore, redisCache, genClient, worker.Config{
		Workers:           cfg.WorkerCount,
		GenerationTimeout: cfg.GenerationTimeout,
	}, log)

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := pool.Run(workerCtx); err != nil {
			log.Error("worker pool stopped", zap.Error(err))
		}
	}()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient.IsConnected, redisCache, chatStore)
	chatroomHandler := handler.NewChatroomHandler(chatroomSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/chatrooms", func(r chi.Router) {
			r.Post("/", chatroomHandler.Create)
			r.Get("/", chatroomHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", chatroomHandler.Get)
				r.Post("/messages", chatroomHandler.SendMessage)
				r.Get("/last-message", chatroomHandler.LastMessage)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop workers after the HTTP surface; in-flight jobs are redelivered
	// by the queue lease if a worker is interrupted mid-turn.
	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn("workers did not stop in time")
	}

	log.Info("server stopped")
}
