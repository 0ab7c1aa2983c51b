// Package main is the entry point for the stark-ai dispatch server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sol-I/stark-ai/internal/config"
	"github.com/Sol-I/stark-ai/internal/dispatch"
	"github.com/Sol-I/stark-ai/internal/domain"
	"github.com/Sol-I/stark-ai/internal/handler"
	"github.com/Sol-I/stark-ai/internal/metrics"
	"github.com/Sol-I/stark-ai/internal/probe"
	"github.com/Sol-I/stark-ai/internal/security"
	"github.com/Sol-I/stark-ai/internal/storage"
	"github.com/Sol-I/stark-ai/internal/ui"
)

func main() {
	// =========================================================================
	// 1. Setup structured logger with credential redaction
	// =========================================================================
	logger := setupLogger()

	logger.Info("starting stark-ai")

	// =========================================================================
	// 2. Load configuration (Singleton)
	// =========================================================================
	cfg, err := config.GetConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("policy", string(cfg.Dispatch.Policy)),
		slog.Int("enabled_providers", len(cfg.EnabledProviders())),
	)

	// Fail fast on provider templates that cannot render.
	if err := dispatch.ValidateProviders(cfg.Providers); err != nil {
		logger.Error("provider template validation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// =========================================================================
	// 3. Initialize health tracking and provider registry
	// =========================================================================
	health := domain.NewHealthTracker(cfg.Dispatch.FailureThreshold, cfg.Dispatch.Cooldown())
	registry := domain.NewRegistry(health)
	for _, p := range cfg.Providers {
		registry.Register(p)
	}

	logger.Info("provider registry initialized",
		slog.Int("total_providers", registry.Len()),
		slog.Duration("cooldown", cfg.Dispatch.Cooldown()),
	)

	// =========================================================================
	// 4. Initialize observers: Prometheus metrics and request log
	// =========================================================================
	m := metrics.New()
	for _, name := range registry.Names() {
		if p, ok := registry.Get(name); ok && p.Enabled {
			m.SetAvailability(name, true)
		}
	}

	var store *storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.Open(cfg.Storage.Path)
		if err != nil {
			logger.Error("failed to open request log database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("request log opened", slog.String("path", cfg.Storage.Path))

		if err := store.LogActivity(context.Background(), "info", "server started"); err != nil {
			logger.Warn("writing activity log failed", slog.String("error", err.Error()))
		}
	}

	// =========================================================================
	// 5. Create Dispatcher
	// =========================================================================
	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithTimeout(cfg.Dispatch.RequestTimeout()),
		dispatch.WithMaxHistory(cfg.Dispatch.MaxHistoryLength),
		dispatch.WithPolicy(cfg.Dispatch.Policy),
		dispatch.WithMinInterval(cfg.Dispatch.MinRequestInterval()),
		dispatch.WithObserver(m),
	}
	if store != nil {
		opts = append(opts, dispatch.WithObserver(store))
	}
	dispatcher := dispatch.NewDispatcher(registry, health, opts...)

	// =========================================================================
	// 6. Start background availability probe
	// =========================================================================
	probeCtx, stopProbe := context.WithCancel(context.Background())
	defer stopProbe()

	var checker *probe.Checker
	if cfg.Probe.Enabled {
		checker = probe.NewChecker(dispatcher, registry, health, m, cfg.Probe.Schedule, logger)
		if err := checker.Start(probeCtx); err != nil {
			logger.Error("failed to start availability probe", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// =========================================================================
	// 7. Setup Gin router with middleware
	// =========================================================================
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	sessions := handler.NewSessionStore(
		handler.WithSessionTTL(cfg.Server.SessionTTL()),
		handler.WithSessionMaxTurns(cfg.Dispatch.MaxHistoryLength),
		handler.WithSessionLogger(logger),
	)

	chatOpts := []handler.ChatHandlerOption{handler.WithHandlerLogger(logger)}
	if store != nil {
		chatOpts = append(chatOpts, handler.WithStore(store))
	}
	chatHandler := handler.NewChatHandler(dispatcher, sessions, registry, health, chatOpts...)

	router := gin.New()
	router.Use(handler.RecoveryMiddleware(logger))
	router.Use(handler.CORSMiddleware())
	router.Use(handler.LoggingMiddleware(logger))

	router.POST("/api/chat", chatHandler.HandleChat)
	router.POST("/api/clear", chatHandler.HandleClear)
	router.GET("/api/logs", chatHandler.HandleLogs)
	router.GET("/api/metrics", chatHandler.HandleMetrics)
	router.GET("/health", chatHandler.HandleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// =========================================================================
	// 8. Start HTTP server with graceful shutdown
	// =========================================================================
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("address", addr))

		ui.PrintBanner()
		ui.PrintStartupInfo(cfg.Server.Host, cfg.Server.Port, len(cfg.EnabledProviders()), string(cfg.Dispatch.Policy))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// =========================================================================
	// 9. Graceful shutdown on SIGTERM/SIGINT
	// =========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	ui.PrintShutdown()

	if checker != nil {
		checker.Stop()
	}
	stopProbe()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if store != nil {
		if err := store.LogActivity(ctx, "info", "server stopped"); err != nil {
			logger.Warn("writing activity log failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped gracefully")
	ui.PrintGoodbye()
}

// setupLogger creates a structured logger based on environment settings.
// All output passes through the redaction handler so credentials never
// reach the log stream.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if envLevel := os.Getenv("STARK_AI_LOGGING_LEVEL"); envLevel != "" {
		switch envLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if os.Getenv("STARK_AI_LOGGING_FORMAT") == "text" {
		base = slog.NewTextHandler(os.Stdout, opts)
	} else {
		base = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(security.NewRedactedHandler(base))
	slog.SetDefault(logger)

	return logger
}
