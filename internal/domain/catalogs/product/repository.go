package product

import (
	"context"

	"stradapos/internal/core/id"
)

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string // matches sku, name or barcode
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository defines storage operations for products.
// All queries exclude soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]*Product, error)
	SoftDelete(ctx context.Context, productID id.ID) error
}
