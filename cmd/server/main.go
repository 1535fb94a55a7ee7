// Package main is the entry point for the mfgerp API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mfgerp/internal/domain/auth"
	v1 "mfgerp/internal/infrastructure/http/v1"
	"mfgerp/internal/infrastructure/metrics"
	"mfgerp/pkg/config"
	"mfgerp/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     cfg.App.Name,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting mfgerp server", "env", cfg.App.Env, "storage", cfg.App.Storage)

	m := metrics.New(metrics.DefaultConfig(cfg.App.Name))

	var b *backend
	switch cfg.App.Storage {
	case config.StorageMemory:
		b = newMemoryBackend(m)
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		b, err = newPostgresBackend(ctx, cfg, m)
		if err != nil {
			log.Fatalw("failed to initialize postgres storage", "error", err)
		}
	}
	defer b.close()

	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:           log,
		JWTValidator:     jwtService,
		Metrics:          m,
		IdempotencyStore: b.idempotency,
		Audit:            b.audit,
		StockMoves:       b.stockMoves,
		Ledger:           b.ledger,
		SalesSync:        b.engine.SalesSynchronizer(),
		SalesRead:        b.salesOrders,
		DB:               b.db,
		Storage:          cfg.App.Storage,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
