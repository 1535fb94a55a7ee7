package main

import (
	"context"
	"fmt"

	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/posting"
	"mfgerp/internal/infrastructure/http/v1/handlers"
	"mfgerp/internal/infrastructure/http/v1/middleware"
	"mfgerp/internal/infrastructure/metrics"
	"mfgerp/internal/infrastructure/numerator"
	"mfgerp/internal/infrastructure/storage/memory"
	"mfgerp/internal/infrastructure/storage/postgres"
	"mfgerp/internal/infrastructure/storage/postgres/inventory_repo"
	"mfgerp/internal/infrastructure/storage/postgres/order_repo"
	"mfgerp/pkg/config"
)

// backend is one fully wired storage driver.
type backend struct {
	engine      *posting.Engine
	stockMoves  *stockmove.Service
	ledger      *ledger.Service
	salesOrders handlers.SalesOrderReader
	audit       handlers.AuditHistoryReader
	idempotency middleware.IdempotencyStore
	db          handlers.Pinger
	close       func()
}

func newMemoryBackend(m *metrics.Metrics) *backend {
	s := memory.New()
	engine := posting.NewEngine(posting.Config{
		Purchasing: s.PurchaseOrders(),
		Production: s.ProductionOrders(),
		Sales:      s.SalesOrders(),
		Deliveries: s.StockMoves(),
		Publisher:  s,
		Metrics:    m,
		TxManager:  s,
	})

	moves := stockmove.NewService(s.StockMoves(), engine, s, s)
	moves.Hooks().OnAfterPost(publishPosted(s))

	return &backend{
		engine:      engine,
		stockMoves:  moves,
		ledger:      ledger.NewService(s.Ledger(), s.Catalog()),
		salesOrders: s.SalesOrders(),
		close:       func() {},
	}
}

func newPostgresBackend(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*backend, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.DB.StatementTimeout)
	moveRepo := inventory_repo.NewStockMoveRepo(txm)
	salesRepo := order_repo.NewSalesOrderRepo(txm)
	publisher := postgres.NewOutboxPublisher(txm)

	engine := posting.NewEngine(posting.Config{
		Purchasing: order_repo.NewPurchaseOrderRepo(txm),
		Production: order_repo.NewProductionOrderRepo(txm),
		Sales:      salesRepo,
		Deliveries: moveRepo,
		Publisher:  publisher,
		Metrics:    m,
		TxManager:  txm,
	})

	num := numerator.NewWithQuerier(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})

	audit, err := postgres.NewAuditLog(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	moves := stockmove.NewService(moveRepo, engine, num, txm)
	moves.Hooks().OnBeforeCreate(audit.LogStockMove(postgres.AuditActionCreate))
	moves.Hooks().OnAfterPost(audit.LogStockMove(postgres.AuditActionPost))
	moves.Hooks().OnAfterPost(publishPosted(publisher))

	return &backend{
		engine:      engine,
		stockMoves:  moves,
		ledger:      ledger.NewService(inventory_repo.NewLedgerRepo(txm), inventory_repo.NewCatalogLookup(txm)),
		salesOrders: salesRepo,
		audit:       audit,
		idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		db:          pool,
		close:       pool.Close,
	}, nil
}

// publishPosted emits StockMovePosted inside the post transaction.
func publishPosted(p events.Publisher) func(ctx context.Context, move *stockmove.StockMove) error {
	return func(ctx context.Context, move *stockmove.StockMove) error {
		return p.Publish(ctx, events.Event{
			AggregateType: events.AggregateStockMove,
			AggregateID:   move.ID,
			EventType:     events.StockMovePosted,
			Payload: map[string]any{
				"moveNo":      move.MoveNo,
				"moveType":    move.MoveType,
				"warehouseId": move.WarehouseID,
				"link":        move.Link,
				"lines":       len(move.Lines),
			},
		})
	}
}
