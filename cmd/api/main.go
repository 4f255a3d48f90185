// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/config"
	"github.com/tripcrew/trip-planner/internal/handler"
	"github.com/tripcrew/trip-planner/internal/llm"
	natsclient "github.com/tripcrew/trip-planner/internal/nats"
	"github.com/tripcrew/trip-planner/internal/pipeline"
	"github.com/tripcrew/trip-planner/internal/service"
	"github.com/tripcrew/trip-planner/internal/store"
	"github.com/tripcrew/trip-planner/internal/tools"
	"github.com/tripcrew/trip-planner/pkg/logger"
	"github.com/tripcrew/trip-planner/pkg/tracing"
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
		tp, err := tracing.InitTracer(ctx, "trip-planner", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the plan store
	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Plan events are optional
	var (
		events     service.EventStream
		eventsConn handler.ConnectionChecker
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events = streamManager
		eventsConn = natsClient
	} else {
		log.Info("NATS_URL not set, plan events disabled")
	}

	// Initialize LLM client
	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.LLMAPIKey(), cfg.OpenAIBaseURL)
	if err != nil {
		log.Fatal("failed to create LLM client", zap.Error(err))
	}

	// Planning pipeline
	toolbox := tools.NewToolbox(cfg.ToolsConfig(), &http.Client{})
	orchestrator := pipeline.New(llmClient, toolbox, cfg.PipelineConfig(), log)

	// Initialize services
	plannerSvc := service.NewPlannerService(orchestrator, log)
	planSvc := service.NewPlanService(db, events, log)
	authSvc := service.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpiration)

	r := handler.NewRouter(handler.RouterConfig{
		Planner:            plannerSvc,
		Plans:              planSvc,
		Auth:               authSvc,
		DB:                 db,
		Events:             eventsConn,
		JWTSecret:          cfg.JWTSecret,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             log,
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
		log.Info("server listening",
			zap.String("port", cfg.ServerPort),
			zap.String("database", db.Driver()),
			zap.String("llm_provider", llmClient.Name()),
			zap.Duration("pipeline_timeout", cfg.PipelineTimeout),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
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

	log.Info("server stopped")
}
