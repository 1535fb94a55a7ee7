// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/infrastructure/http/v1/handlers"
	"mfgerp/internal/infrastructure/http/v1/middleware"
	"mfgerp/internal/infrastructure/metrics"
	"mfgerp/pkg/logger"
)

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Metrics is optional; nil disables /metrics and request metrics.
	Metrics *metrics.Metrics

	// IdempotencyStore is optional; nil disables X-Idempotency-Key handling.
	IdempotencyStore middleware.IdempotencyStore

	// PostRoles, when set, restricts posting a move to these roles.
	PostRoles []string

	// Audit is optional; nil leaves the move history route unmounted.
	Audit handlers.AuditHistoryReader

	StockMoves *stockmove.Service
	Ledger     *ledger.Service
	SalesSync  handlers.SalesStatusSyncer
	SalesRead  handlers.SalesOrderReader

	// DB backs the readiness probe; nil for the in-memory store.
	DB      handlers.Pinger
	Storage string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Storage)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.IdempotencyStore != nil {
		v1.Use(middleware.Idempotency(cfg.IdempotencyStore))
	}

	base := handlers.NewBaseHandler()
	registerStockMoveRoutes(v1.Group("/stock-moves"), base, cfg)
	handlers.NewInventoryHandler(base, cfg.Ledger).RegisterRoutes(v1.Group("/inventory"))
	handlers.NewSalesHandler(base, cfg.SalesSync, cfg.SalesRead).RegisterRoutes(v1.Group("/sales-orders"))

	return router
}

func registerStockMoveRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewStockMoveHandler(base, cfg.StockMoves)

	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	if len(cfg.PostRoles) > 0 {
		rg.POST("/:id/post", middleware.RequireRole(cfg.PostRoles...), h.Post)
	} else {
		rg.POST("/:id/post", h.Post)
	}
	if cfg.Audit != nil {
		rg.GET("/:id/history", handlers.NewAuditHandler(base, cfg.Audit, cfg.StockMoves).StockMoveHistory)
	}
}
