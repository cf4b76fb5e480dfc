// cmd/mediad/main.go
// Package main implements the entry point for the media gateway daemon.
// It wires configuration, storage, the object-store signer, the ingestion
// publisher, and the delegate clients, then serves HTTP until signalled.
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

	"github.com/nebula-foundry/media-gateway-go/internal/chat"
	"github.com/nebula-foundry/media-gateway-go/internal/config"
	"github.com/nebula-foundry/media-gateway-go/internal/event"
	"github.com/nebula-foundry/media-gateway-go/internal/media"
	"github.com/nebula-foundry/media-gateway-go/internal/search"
	"github.com/nebula-foundry/media-gateway-go/internal/server"
	"github.com/nebula-foundry/media-gateway-go/internal/storage"
	"github.com/nebula-foundry/media-gateway-go/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Env == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init("media-gateway", "1.0.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(ctx)
	}()

	// Document store: PostgreSQL when a DSN is configured, in-memory
	// otherwise.
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		store, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("failed to initialize postgres storage", "error", err)
			os.Exit(1)
		}
	} else {
		store = storage.NewMemory()
		logger.Warn("no database configured, using in-memory store")
	}

	signer, err := media.NewGCSSigner(context.Background(), cfg.GCSSignerAccessID)
	if err != nil {
		logger.Error("failed to initialize GCS signer", "error", err)
		os.Exit(1)
	}

	pub := event.NewPublisher(cfg.NATSURL, cfg.IngestionSubject)
	defer pub.Close()

	var searchClient *search.Client
	if cfg.SearchURL != "" {
		searchClient = search.New(cfg.SearchURL)
	}
	var chatClient *chat.Client
	if cfg.ChatURL != "" {
		chatClient = chat.New(cfg.ChatURL)
	}

	mux, err := server.NewMux(store, pub, signer, searchClient, chatClient, cfg)
	if err != nil {
		logger.Error("failed to build HTTP mux", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}

	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "bucket", cfg.GCSBucket)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	if postgresStore, ok := store.(interface{ Close() }); ok {
		postgresStore.Close()
	}

	logger.Info("server stopped")
}
