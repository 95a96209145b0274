package warehouse

import (
	"context"

	"stradapos/internal/core/id"
)

// Repository defines storage operations for warehouses.
// All queries exclude soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error
	Update(ctx context.Context, w *Warehouse) error
	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	// GetDefault returns the warehouse flagged is_default, NotFound if none.
	GetDefault(ctx context.Context) (*Warehouse, error)
	List(ctx context.Context) ([]*Warehouse, error)
	// ClearDefault unsets is_default on all warehouses except keep.
	ClearDefault(ctx context.Context, keep id.ID) error
	SoftDelete(ctx context.Context, warehouseID id.ID) error
}
