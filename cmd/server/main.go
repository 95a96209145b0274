// Package main is the entry point for the stradapos API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stradapos/internal/core/security"
	"stradapos/internal/domain/audit"
	"stradapos/internal/domain/auth"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/catalogs/warehouse"
	"stradapos/internal/domain/reconcile"
	"stradapos/internal/domain/reports"
	"stradapos/internal/domain/sales"
	"stradapos/internal/domain/stock"
	syncdom "stradapos/internal/domain/sync"
	v1 "stradapos/internal/infrastructure/http/v1"
	"stradapos/internal/infrastructure/storage/postgres"
	"stradapos/pkg/logger"
	"stradapos/pkg/numerator"
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
	log.Info("starting stradapos server")

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

	// --- Audit ---
	auditStore, err := postgres.NewAuditStore(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit store", "error", err)
	}
	var auditor audit.Recorder = auditStore

	// --- Repositories ---
	productRepo := postgres.NewProductRepo(txManager)
	warehouseRepo := postgres.NewWarehouseRepo(txManager)
	stockRepo := postgres.NewStockRepo(txManager)
	saleRepo := postgres.NewSaleRepo(txManager)
	syncLogRepo := postgres.NewSyncLogRepo(txManager)
	reportRepo := postgres.NewReportRepo(txManager)
	userRepo := postgres.NewUserRepo(txManager)
	tokenRepo := postgres.NewTokenRepo(txManager)

	// --- Services ---
	numeratorService := numerator.New(pool)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(mustEnv("JWT_SECRET")))
	authService := auth.NewService(userRepo, tokenRepo, jwtService, auth.DefaultServiceConfig())

	productService := product.NewService(productRepo)
	warehouseService := warehouse.NewService(warehouseRepo, txManager)
	stockService := stock.NewService(stockRepo, txManager, auditor)
	salesService := sales.NewService(saleRepo, stockService, productRepo, warehouseRepo, numeratorService, txManager)
	syncService := syncdom.NewService(syncLogRepo, salesService, numeratorService)
	reconcileService := reconcile.NewService(saleRepo, stockService, txManager, auditor, auditStore)
	reportsService := reports.NewService(reportRepo, stockService)

	// --- Access policies ---
	policies, err := security.NewPolicyEngine()
	if err != nil {
		log.Fatalw("failed to create policy engine", "error", err)
	}
	if err := policies.RegisterDefaults(); err != nil {
		log.Fatalw("failed to register access policies", "error", err)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:             pool,
		Logger:           log,
		JWTValidator:     jwtService,
		Policies:         policies,
		AuthService:      authService,
		ProductService:   productService,
		WarehouseService: warehouseService,
		StockService:     stockService,
		SalesService:     salesService,
		SalesRepo:        saleRepo,
		SyncService:      syncService,
		ReconcileService: reconcileService,
		ReportsService:   reportsService,
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
