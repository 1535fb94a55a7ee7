// Package main is the entry point for the mfgerp background worker. It
// relays the transactional outbox and expires idempotency keys.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mfgerp/internal/infrastructure/metrics"
	"mfgerp/internal/infrastructure/storage/postgres"
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
		Service:     cfg.App.Name + "-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if cfg.App.Storage != config.StoragePostgres {
		log.Fatalw("worker requires postgres storage", "storage", cfg.App.Storage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting mfgerp worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.DB.StatementTimeout)
	m := metrics.New(metrics.DefaultConfig(cfg.App.Name + "-worker"))

	worker := NewWorker(
		postgres.NewOutboxRelay(txm, cfg.Outbox.BatchSize, newLogHandler(log, m)),
		postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		cfg.Outbox.PollInterval,
		log,
	)

	// Metrics only; the worker serves no API.
	server := &http.Server{Addr: cfg.HTTP.Addr(), Handler: m.Handler(), ReadTimeout: cfg.HTTP.ReadTimeout}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	_ = server.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}

// BatchProcessor drains one batch of outbox messages.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// KeyCleaner deletes expired idempotency keys.
type KeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Worker polls the outbox and periodically cleans idempotency keys.
type Worker struct {
	relay        BatchProcessor
	keys         KeyCleaner
	pollInterval time.Duration
	cleanupEvery time.Duration
	log          *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(relay BatchProcessor, keys KeyCleaner, pollInterval time.Duration, log *logger.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		relay:        relay,
		keys:         keys,
		pollInterval: pollInterval,
		cleanupEvery: time.Hour,
		log:          log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(w.cleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-cleanup.C:
			w.cleanupKeys(ctx)
		}
	}
}

// drain processes full batches until the outbox has nothing due.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.log.Errorw("outbox batch failed", "error", err)
			}
			return
		}
		if n == 0 {
			return
		}
		w.log.Debugw("outbox batch delivered", "count", n)
	}
}

func (w *Worker) cleanupKeys(ctx context.Context) {
	n, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
