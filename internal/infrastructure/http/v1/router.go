// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"batchledger/internal/domain/documents/adjustment"
	"batchledger/internal/domain/documents/inventorycount"
	"batchledger/internal/domain/documents/stockin"
	"batchledger/internal/domain/documents/stockout"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/infrastructure/http/v1/handlers"
	"batchledger/internal/infrastructure/http/v1/middleware"
	"batchledger/internal/infrastructure/storage/postgres"
	"batchledger/pkg/logger"
)

// RouterConfig holds the wired services the API serves.
type RouterConfig struct {
	// Pool is the database connection pool (health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// Ledger queries and dry-run allocation
	Ledger    *ledger.Service
	Allocator *ledger.Allocator

	// Document services
	StockIns        *stockin.Service
	StockOuts       *stockout.Service
	Adjustments     *adjustment.Service
	InventoryCounts *inventorycount.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserContext())
	{
		docs := v1.Group("/document")
		{
			handlers.NewStockInHandler(base, cfg.StockIns).
				RegisterRoutes(docs.Group("/stock-in"))
			handlers.NewStockOutHandler(base, cfg.StockOuts).
				RegisterRoutes(docs.Group("/stock-out"))
			handlers.NewAdjustmentHandler(base, cfg.Adjustments).
				RegisterRoutes(docs.Group("/adjustment"))
			handlers.NewInventoryCountHandler(base, cfg.InventoryCounts).
				RegisterRoutes(docs.Group("/inventory-count"))
		}

		handlers.NewLedgerHandler(base, cfg.Ledger, cfg.Allocator).
			RegisterRoutes(v1.Group("/ledger"))
	}

	return router
}
