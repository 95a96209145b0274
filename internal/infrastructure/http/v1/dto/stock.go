package dto

import (
	"stradapos/internal/domain/stock"
)

// AdjustStockRequest applies a relative quantity change.
type AdjustStockRequest struct {
	ProductID   string `json:"productId" binding:"required,uuid"`
	WarehouseID string `json:"warehouseId" binding:"required,uuid"`
	Change      int64  `json:"change" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

// SetStockRequest sets an absolute quantity; the service derives the delta.
type SetStockRequest struct {
	ProductID   string `json:"productId" binding:"required,uuid"`
	WarehouseID string `json:"warehouseId" binding:"required,uuid"`
	Quantity    int64  `json:"quantity" binding:"min=0"`
	Reason      string `json:"reason" binding:"required"`
}

// TransferStockRequest moves quantity between warehouses.
type TransferStockRequest struct {
	ProductID       string `json:"productId" binding:"required,uuid"`
	FromWarehouseID string `json:"fromWarehouseId" binding:"required,uuid"`
	ToWarehouseID   string `json:"toWarehouseId" binding:"required,uuid"`
	Quantity        int64  `json:"quantity" binding:"required,min=1"`
	Reason          string `json:"reason" binding:"required"`
}

// StockLevelResponse is the current quantity for one pair.
type StockLevelResponse struct {
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int64  `json:"quantity"`
}

// MovementResponse wraps a ledger movement.
type MovementResponse struct {
	Movement *stock.Movement `json:"movement"`
}

// TransferResponse returns both sides of a transfer.
type TransferResponse struct {
	Out *stock.Movement `json:"out"`
	In  *stock.Movement `json:"in"`
}
