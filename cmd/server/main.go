// Package main is the entry point for the batch ledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"batchledger/internal/core/security"
	"batchledger/internal/domain/documents/adjustment"
	"batchledger/internal/domain/documents/inventorycount"
	"batchledger/internal/domain/documents/stockin"
	"batchledger/internal/domain/documents/stockout"
	"batchledger/internal/domain/ledger"
	"batchledger/internal/domain/posting"
	v1 "batchledger/internal/infrastructure/http/v1"
	numeratorpg "batchledger/internal/infrastructure/numerator"
	"batchledger/internal/infrastructure/storage/postgres"
	"batchledger/internal/infrastructure/storage/postgres/document_repo"
	"batchledger/internal/infrastructure/storage/postgres/ledger_repo"
	"batchledger/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting batch ledger server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Ledger ---
	batchRepo := ledger_repo.NewBatchRepo(txManager)
	allocationRepo := ledger_repo.NewAllocationRepo(txManager)
	ledgerSvc := ledger.NewService(batchRepo)
	allocator := ledger.NewAllocator(batchRepo, allocationRepo)

	// --- Audit ---
	auditSvc, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Posting engine ---
	lockPolicy := lockPolicyFromEnv(log)
	engine := posting.NewEngine(ledgerSvc, allocator, txManager, lockPolicy, auditSvc)

	// --- Numbering ---
	gen := numeratorpg.New(pool)

	// --- Document services ---
	stockInRepo := document_repo.NewStockInRepo(txManager)
	stockOutRepo := document_repo.NewStockOutRepo(txManager)
	adjustmentRepo := document_repo.NewAdjustmentRepo(txManager)
	countRepo := document_repo.NewInventoryCountRepo(txManager)

	stockIns := stockin.NewService(stockInRepo, engine, gen, txManager)
	stockOuts := stockout.NewService(stockOutRepo, engine, allocator, stockIns, gen, txManager)
	adjustments := adjustment.NewService(adjustmentRepo, engine, gen, txManager)

	countPolicy := countPolicyFromEnv(log)
	counts := inventorycount.NewService(countRepo, ledgerSvc, adjustments, countPolicy, gen, txManager)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:            pool,
		Logger:          log,
		Ledger:          ledgerSvc,
		Allocator:       allocator,
		StockIns:        stockIns,
		StockOuts:       stockOuts,
		Adjustments:     adjustments,
		InventoryCounts: counts,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// lockPolicyFromEnv builds the period-close policy. PERIOD_CLOSED_UNTIL
// (YYYY-MM-DD) enables StrictPolicy; unset means all periods are open.
func lockPolicyFromEnv(log *logger.Logger) security.LockPolicy {
	raw := os.Getenv("PERIOD_CLOSED_UNTIL")
	if raw == "" {
		return security.OpenPolicy{}
	}
	closedUntil, err := time.Parse("2006-01-02", raw)
	if err != nil {
		log.Fatalw("invalid PERIOD_CLOSED_UNTIL", "value", raw, "error", err)
	}
	log.Infow("period close enabled", "closed_until", closedUntil.Format("2006-01-02"))
	return security.NewStrictPolicy(closedUntil)
}

// countPolicyFromEnv builds the inventory count completion gate from a CEL
// expression. Variables: counted, live, coverage.
func countPolicyFromEnv(log *logger.Logger) security.CountCompletionPolicy {
	expr := os.Getenv("COUNT_COMPLETION_POLICY")
	if expr == "" {
		return security.AllowPartialCounts
	}
	policy, err := security.NewCELCountPolicy(expr)
	if err != nil {
		log.Fatalw("invalid COUNT_COMPLETION_POLICY", "expr", expr, "error", err)
	}
	log.Infow("count completion policy configured", "expr", expr)
	return policy
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
