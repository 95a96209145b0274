// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/security"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/audit"
	"stradapos/internal/domain/auth"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/catalogs/warehouse"
	"stradapos/internal/domain/stock"
	"stradapos/internal/infrastructure/storage/postgres"
	"stradapos/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("seed-only"))
	authService := auth.NewService(
		postgres.NewUserRepo(txManager),
		postgres.NewTokenRepo(txManager),
		jwtService,
		auth.DefaultServiceConfig(),
	)
	warehouseService := warehouse.NewService(postgres.NewWarehouseRepo(txManager), txManager)
	productService := product.NewService(postgres.NewProductRepo(txManager))
	stockService := stock.NewService(postgres.NewStockRepo(txManager), txManager, audit.Nop())

	adminID, err := seedAdminUser(ctx, authService, log)
	if err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	warehouseID, err := seedDefaultWarehouse(ctx, warehouseService, log)
	if err != nil {
		log.Fatalw("failed to seed default warehouse", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoProducts(ctx, productService, stockService, warehouseID, adminID, log); err != nil {
			log.Fatalw("failed to seed demo products", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, authService *auth.Service, log *logger.Logger) (id.ID, error) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@stradapos.local"
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	user, err := authService.Register(ctx, auth.RegisterInput{
		Email:    adminEmail,
		Password: adminPassword,
		FullName: "Administrator",
		Roles:    []string{security.RoleAdmin},
	})
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeConflict {
			log.Infow("admin user already exists", "email", adminEmail)
			return id.Nil(), nil
		}
		return id.Nil(), err
	}

	log.Infow("admin user created", "email", adminEmail, "user_id", user.ID)
	return user.ID, nil
}

func seedDefaultWarehouse(ctx context.Context, svc *warehouse.Service, log *logger.Logger) (id.ID, error) {
	if existing, err := svc.GetDefault(ctx); err == nil {
		log.Infow("default warehouse already exists", "warehouse_id", existing.ID)
		return existing.ID, nil
	}

	w := warehouse.New("MAIN", "Main Store")
	w.IsDefault = true
	if err := svc.Create(ctx, w); err != nil {
		return id.Nil(), err
	}

	log.Infow("default warehouse created", "warehouse_id", w.ID)
	return w.ID, nil
}

func seedDemoProducts(
	ctx context.Context,
	products *product.Service,
	stockSvc *stock.Service,
	warehouseID, adminID id.ID,
	log *logger.Logger,
) error {
	demo := []struct {
		sku      string
		name     string
		price    string
		quantity int64
	}{
		{"COF-001", "Ground Coffee 500g", "12.50", 40},
		{"TEA-001", "Green Tea 100g", "6.90", 60},
		{"SNK-001", "Chocolate Bar 90g", "2.30", 120},
		{"WTR-001", "Mineral Water 1L", "1.10", 200},
	}

	var actor *id.ID
	if !id.IsNil(adminID) {
		actor = &adminID
	}

	for _, d := range demo {
		p := product.New(d.sku, d.name, types.MustMoney(d.price))
		p.MinStockLevel = 10
		if err := products.Create(ctx, p); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeDuplicate {
				log.Infow("product already exists", "sku", d.sku)
				continue
			}
			return err
		}

		if _, err := stockSvc.Adjust(ctx, p.ID, warehouseID, d.quantity, "initial stock", actor); err != nil {
			return err
		}

		log.Infow("product seeded", "sku", d.sku, "quantity", d.quantity)
	}

	return nil
}
