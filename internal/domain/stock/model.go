// Package stock provides the stock ledger: per-(product, warehouse) levels and
// the append-only movement log.
package stock

import (
	"time"

	"stradapos/internal/core/id"
)

// MovementType classifies a quantity change.
type MovementType string

const (
	MovementAdjustment     MovementType = "adjustment"
	MovementCorrection     MovementType = "correction"
	MovementTransferOut    MovementType = "transfer_out"
	MovementTransferIn     MovementType = "transfer_in"
	MovementSale           MovementType = "sale"
	MovementPurchase       MovementType = "purchase"
	MovementReturn         MovementType = "return"
	MovementDamage         MovementType = "damage"
	MovementSupplierReturn MovementType = "supplier_return"
)

// RefKind identifies what kind of record originated a movement.
type RefKind string

const (
	RefSale           RefKind = "sale"
	RefPurchaseOrder  RefKind = "purchase_order"
	RefSupplierReturn RefKind = "supplier_return"
	RefAdjustment     RefKind = "adjustment"
)

// Reference links a movement to its originating record.
// Adjustment references carry no ID.
type Reference struct {
	Kind RefKind
	ID   id.ID
}

// SaleRef builds a reference to a sale.
func SaleRef(saleID id.ID) Reference {
	return Reference{Kind: RefSale, ID: saleID}
}

// PurchaseOrderRef builds a reference to a purchase order.
func PurchaseOrderRef(poID id.ID) Reference {
	return Reference{Kind: RefPurchaseOrder, ID: poID}
}

// SupplierReturnRef builds a reference to a supplier return.
func SupplierReturnRef(srID id.ID) Reference {
	return Reference{Kind: RefSupplierReturn, ID: srID}
}

// AdjustmentRef builds a standalone adjustment reference.
func AdjustmentRef() Reference {
	return Reference{Kind: RefAdjustment}
}

// Level is the current quantity for one (product, warehouse) pair.
// Created lazily on first mutation; never deleted, only zeroed.
type Level struct {
	ProductID        id.ID     `db:"product_id" json:"productId"`
	WarehouseID      id.ID     `db:"warehouse_id" json:"warehouseId"`
	Quantity         int64     `db:"quantity" json:"quantity"`
	ReservedQuantity int64     `db:"reserved_quantity" json:"reservedQuantity"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// Available returns quantity not held by reservations.
func (l Level) Available() int64 {
	return l.Quantity - l.ReservedQuantity
}

// Movement is one immutable ledger row. quantity_after is always
// quantity_before + quantity_change, and equals the level quantity at the
// moment of writing because both are written in the same transaction.
type Movement struct {
	ID             id.ID        `db:"id" json:"id"`
	ProductID      id.ID        `db:"product_id" json:"productId"`
	WarehouseID    id.ID        `db:"warehouse_id" json:"warehouseId"`
	QuantityChange int64        `db:"quantity_change" json:"quantityChange"`
	QuantityBefore int64        `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  int64        `db:"quantity_after" json:"quantityAfter"`
	Type           MovementType `db:"type" json:"type"`
	ReferenceKind  RefKind      `db:"reference_kind" json:"referenceKind"`
	ReferenceID    *id.ID       `db:"reference_id" json:"referenceId,omitempty"`
	Reason         string       `db:"reason" json:"reason,omitempty"`
	UserID         *id.ID       `db:"user_id" json:"userId,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
}

// Reference reconstructs the tagged reference from the stored pair.
func (m *Movement) Reference() Reference {
	ref := Reference{Kind: m.ReferenceKind}
	if m.ReferenceID != nil {
		ref.ID = *m.ReferenceID
	}
	return ref
}

// LevelWithProduct is a level joined with product threshold data for
// low/out-of-stock reporting.
type LevelWithProduct struct {
	ProductID     id.ID  `db:"product_id" json:"productId"`
	WarehouseID   id.ID  `db:"warehouse_id" json:"warehouseId"`
	ProductSKU    string `db:"sku" json:"sku"`
	ProductName   string `db:"name" json:"name"`
	Quantity      int64  `db:"quantity" json:"quantity"`
	MinStockLevel int64  `db:"min_stock_level" json:"minStockLevel"`
}
