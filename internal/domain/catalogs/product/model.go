// Package product provides the product catalog.
package product

import (
	"context"
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
)

// Product is a sellable item. Deleted products are tombstoned via DeletedAt;
// every query must filter it.
type Product struct {
	ID            id.ID       `db:"id" json:"id"`
	SKU           string      `db:"sku" json:"sku"`
	Name          string      `db:"name" json:"name"`
	Barcode       *string     `db:"barcode" json:"barcode,omitempty"`
	Price         types.Money `db:"price" json:"price"`
	Cost          types.Money `db:"cost" json:"cost"`
	MinStockLevel int64       `db:"min_stock_level" json:"minStockLevel"`
	IsActive      bool        `db:"is_active" json:"isActive"`
	Version       int         `db:"version" json:"version"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
	DeletedAt     *time.Time  `db:"deleted_at" json:"deletedAt,omitempty"`
}

// New creates a product with generated ID.
func New(sku, name string, price types.Money) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:        id.New(),
		SKU:       sku,
		Name:      name,
		Price:     price,
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks product invariants.
func (p *Product) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price must not be negative").WithDetail("field", "price")
	}
	if p.MinStockLevel < 0 {
		return apperror.NewValidation("min stock level must not be negative").WithDetail("field", "minStockLevel")
	}
	return nil
}

// IsDeleted reports whether the product is tombstoned.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}
