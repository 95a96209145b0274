package dto

import (
	"stradapos/internal/core/types"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/catalogs/warehouse"
)

// --- Product ---

// CreateProductRequest for product creation.
type CreateProductRequest struct {
	SKU           string      `json:"sku" binding:"required"`
	Name          string      `json:"name" binding:"required"`
	Barcode       *string     `json:"barcode,omitempty"`
	Price         types.Money `json:"price" binding:"required"`
	Cost          types.Money `json:"cost"`
	MinStockLevel int64       `json:"minStockLevel" binding:"min=0"`
}

// ToProduct converts to a domain product.
func (r *CreateProductRequest) ToProduct() *product.Product {
	p := product.New(r.SKU, r.Name, r.Price)
	p.Barcode = r.Barcode
	p.Cost = r.Cost
	p.MinStockLevel = r.MinStockLevel
	return p
}

// UpdateProductRequest for product updates. Version drives the optimistic
// concurrency check.
type UpdateProductRequest struct {
	Name          string      `json:"name" binding:"required"`
	Barcode       *string     `json:"barcode,omitempty"`
	Price         types.Money `json:"price" binding:"required"`
	Cost          types.Money `json:"cost"`
	MinStockLevel int64       `json:"minStockLevel" binding:"min=0"`
	IsActive      bool        `json:"isActive"`
	Version       int         `json:"version" binding:"required,min=1"`
}

// Apply copies the request onto an existing product.
func (r *UpdateProductRequest) Apply(p *product.Product) {
	p.Name = r.Name
	p.Barcode = r.Barcode
	p.Price = r.Price
	p.Cost = r.Cost
	p.MinStockLevel = r.MinStockLevel
	p.IsActive = r.IsActive
	p.Version = r.Version
}

// ProductFilterRequest for product listing.
type ProductFilterRequest struct {
	Search     string `form:"search"`
	ActiveOnly bool   `form:"activeOnly"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// ToFilter converts to a domain filter with defaults applied.
func (r *ProductFilterRequest) ToFilter() product.ListFilter {
	limit := r.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return product.ListFilter{
		Search:     r.Search,
		ActiveOnly: r.ActiveOnly,
		Limit:      limit,
		Offset:     r.Offset,
	}
}

// --- Warehouse ---

// CreateWarehouseRequest for warehouse creation.
type CreateWarehouseRequest struct {
	Code      string  `json:"code" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Address   *string `json:"address,omitempty"`
	IsDefault bool    `json:"isDefault"`
}

// ToWarehouse converts to a domain warehouse.
func (r *CreateWarehouseRequest) ToWarehouse() *warehouse.Warehouse {
	w := warehouse.New(r.Code, r.Name)
	w.Address = r.Address
	w.IsDefault = r.IsDefault
	return w
}

// UpdateWarehouseRequest for warehouse updates.
type UpdateWarehouseRequest struct {
	Name      string  `json:"name" binding:"required"`
	Address   *string `json:"address,omitempty"`
	IsDefault bool    `json:"isDefault"`
	IsActive  bool    `json:"isActive"`
	Version   int     `json:"version" binding:"required,min=1"`
}

// Apply copies the request onto an existing warehouse.
func (r *UpdateWarehouseRequest) Apply(w *warehouse.Warehouse) {
	w.Name = r.Name
	w.Address = r.Address
	w.IsDefault = r.IsDefault
	w.IsActive = r.IsActive
	w.Version = r.Version
}
