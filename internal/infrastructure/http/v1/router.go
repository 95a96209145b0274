// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/core/security"
	"stradapos/internal/domain/auth"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/catalogs/warehouse"
	"stradapos/internal/domain/reconcile"
	"stradapos/internal/domain/reports"
	"stradapos/internal/domain/sales"
	"stradapos/internal/domain/stock"
	syncdom "stradapos/internal/domain/sync"
	"stradapos/internal/infrastructure/http/v1/handlers"
	"stradapos/internal/infrastructure/http/v1/middleware"
	"stradapos/internal/infrastructure/storage/postgres"
	"stradapos/pkg/logger"
)

// RouterConfig holds the wired services the router exposes.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	JWTValidator middleware.JWTValidator
	Policies     *security.PolicyEngine

	AuthService      *auth.Service
	ProductService   *product.Service
	WarehouseService *warehouse.Service
	StockService     *stock.Service
	SalesService     *sales.Service
	SalesRepo        sales.Repository
	SyncService      *syncdom.Service
	ReconcileService *reconcile.Service
	ReportsService   *reports.Service
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

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	{
		// Auth endpoints: login and refresh are public, the rest require JWT.
		authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
		publicAuth := api.Group("/auth")
		protectedAuth := api.Group("/auth")
		protectedAuth.Use(middleware.Auth(cfg.JWTValidator))
		authHandler.RegisterRoutes(publicAuth, protectedAuth)

		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		registerCatalogRoutes(protected, cfg, baseHandler)
		registerStockRoutes(protected, cfg, baseHandler)
		registerSalesRoutes(protected, cfg, baseHandler)
		registerSyncRoutes(protected, cfg, baseHandler)
		registerReconcileRoutes(protected, cfg, baseHandler)
		registerReportRoutes(protected, cfg, baseHandler)
	}

	return router
}

func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig, base *handlers.BaseHandler) {
	catalogs := rg.Group("/catalog")

	read := middleware.RequirePermission(cfg.Policies, security.PermCatalogRead)
	write := middleware.RequirePermission(cfg.Policies, security.PermCatalogWrite)

	{
		handler := handlers.NewProductHandler(base, cfg.ProductService)
		products := catalogs.Group("/products")
		products.GET("", read, handler.List)
		products.GET("/:id", read, handler.Get)
		products.POST("", write, handler.Create)
		products.PUT("/:id", write, handler.Update)
		products.DELETE("/:id", write, handler.Delete)
	}

	{
		handler := handlers.NewWarehouseHandler(base, cfg.WarehouseService)
		warehouses := catalogs.Group("/warehouses")
		warehouses.GET("", read, handler.List)
		warehouses.GET("/:id", read, handler.Get)
		warehouses.POST("", write, handler.Create)
		warehouses.PUT("/:id", write, handler.Update)
		warehouses.DELETE("/:id", write, handler.Delete)
	}
}

func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig, base *handlers.BaseHandler) {
	handler := handlers.NewStockHandler(base, cfg.StockService, cfg.Policies)
	group := rg.Group("/stock")

	read := middleware.RequireWarehousePermission(cfg.Policies, security.PermStockRead)
	write := middleware.RequireWarehousePermission(cfg.Policies, security.PermStockWrite)

	group.GET("/levels", read, handler.GetLevel)
	group.GET("/movements", read, handler.ListMovements)
	group.GET("/low", read, handler.LowStock)
	group.GET("/out-of-stock", read, handler.OutOfStock)
	group.POST("/adjust", write, handler.Adjust)
	group.POST("/set", write, handler.Set)
	group.POST("/transfer", write, handler.Transfer)
}

func registerSalesRoutes(rg *gin.RouterGroup, cfg RouterConfig, base *handlers.BaseHandler) {
	handler := handlers.NewSalesHandler(base, cfg.SalesService, cfg.SalesRepo)
	group := rg.Group("/sales")

	group.POST("/pos", middleware.RequirePermission(cfg.Policies, security.PermSalesCreate), handler.Create)
	group.GET("", middleware.RequirePermission(cfg.Policies, security.PermSalesCreate), handler.List)
	group.GET("/:id", middleware.RequirePermission(cfg.Policies, security.PermSalesCreate), handler.Get)
	group.POST("/:id/refund", middleware.RequirePermission(cfg.Policies, security.PermSalesRefund), handler.Refund)
}

func registerSyncRoutes(rg *gin.RouterGroup, cfg RouterConfig, base *handlers.BaseHandler) {
	handler := handlers.NewSyncHandler(base, cfg.SyncService)
	group := rg.Group("/local")

	process := middleware.RequirePermission(cfg.Policies, security.PermSyncProcess)
	resolve := middleware.RequirePermission(cfg.Policies, security.PermReconcileResolve)

	group.POST("/sync", process, handler.Batch)
	group.GET("/sync/status", process, handler.Status)
	group.GET("/sync/logs", process, handler.ListLogs)
	group.GET("/sync/logs/:id", process, handler.GetLog)
	group.GET("/conflicts", process, handler.ListConflicts)
	group.POST("/conflicts/:id/resolve", resolve, handler.ResolveLog)
}

func registerReconcileRoutes(rg *gin.RouterGroup, cfg RouterConfig, base *handlers.BaseHandler) {
	handler := handlers.NewReconcileHandler(base, cfg.ReconcileService)
	group := rg.Group("/reconciliation")

	resolve := middleware.RequirePermission(cfg.Policies, security.PermReconcileResolve)

	group.GET("/conflicts", resolve, handler.ListConflicts)
	group.GET("/conflicts/:id", resolve, handler.Get)
	group.GET("/conflicts/:id/history", resolve, handler.History)
	group.POST("/conflicts/:id/accept", resolve, handler.Accept)
	group.POST("/conflicts/:id/adjust", resolve, handler.Adjust)
	group.POST("/conflicts/:id/void", resolve, handler.Void)
}

func registerReportRoutes(rg *gin.RouterGroup, cfg RouterConfig, base *handlers.BaseHandler) {
	handler := handlers.NewReportsHandler(base, cfg.ReportsService)
	group := rg.Group("/reports")

	read := middleware.RequirePermission(cfg.Policies, security.PermReportsRead)

	group.GET("/sales-summary", read, handler.SalesSummary)
	group.GET("/conflict-summary", read, handler.ConflictSummary)
}
