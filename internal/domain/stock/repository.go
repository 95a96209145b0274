package stock

import (
	"context"
	"time"

	"stradapos/internal/core/id"
)

// Repository defines storage operations for the stock ledger.
type Repository interface {
	// GetLevel returns the current level, or a zero-quantity value if no row
	// exists. Reads never create rows.
	GetLevel(ctx context.Context, productID, warehouseID id.ID) (Level, error)

	// GetLevelForUpdate returns the level with a row lock (SELECT ... FOR UPDATE).
	// Must be called inside a transaction.
	GetLevelForUpdate(ctx context.Context, productID, warehouseID id.ID) (Level, error)

	// UpsertLevel writes the level row, creating it on first mutation.
	UpsertLevel(ctx context.Context, level Level) error

	// AppendMovement inserts one immutable ledger row.
	AppendMovement(ctx context.Context, movement *Movement) error

	// ListMovements returns movement history, newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)

	// LowStock returns levels with 0 < quantity <= product.min_stock_level.
	LowStock(ctx context.Context, warehouseID *id.ID) ([]LevelWithProduct, error)

	// OutOfStock returns levels with quantity <= 0.
	OutOfStock(ctx context.Context, warehouseID *id.ID) ([]LevelWithProduct, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	Type        *MovementType
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}
