// Package sales provides POS sale creation, refunds and the idempotency
// contract offline clients rely on.
package sales

import (
	"time"

	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
)

// Status of a sale.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// DiscountType distinguishes percentage from flat discounts.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// Sale is one completed POS transaction. IdempotencyKey is globally unique;
// a second creation attempt with the same key returns the existing sale
// unchanged.
type Sale struct {
	ID               id.ID        `db:"id" json:"id"`
	InvoiceNumber    string       `db:"invoice_number" json:"invoiceNumber"`
	IdempotencyKey   string       `db:"idempotency_key" json:"idempotencyKey"`
	ClientUUID       *string      `db:"client_uuid" json:"clientUuid,omitempty"`
	UserID           id.ID        `db:"user_id" json:"userId"`
	WarehouseID      id.ID        `db:"warehouse_id" json:"warehouseId"`
	Status           Status       `db:"status" json:"status"`
	Subtotal         types.Money  `db:"subtotal" json:"subtotal"`
	DiscountAmount   types.Money  `db:"discount_amount" json:"discountAmount"`
	DiscountType     DiscountType `db:"discount_type" json:"discountType"`
	Total            types.Money  `db:"total" json:"total"`
	HasStockConflict bool         `db:"has_stock_conflict" json:"hasStockConflict"`
	IsSynced         bool         `db:"is_synced" json:"isSynced"`
	Notes            string       `db:"notes" json:"notes,omitempty"`
	CompletedAt      time.Time    `db:"completed_at" json:"completedAt"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
	DeletedAt        *time.Time   `db:"deleted_at" json:"deletedAt,omitempty"`

	Items    []SaleItem `db:"-" json:"items"`
	Payments []Payment  `db:"-" json:"payments"`
}

// CanRefund reports whether a full refund is allowed.
func (s *Sale) CanRefund() bool {
	return s.Status == StatusCompleted
}

// RecomputeTotals rebuilds subtotal and total from the current line items,
// reapplying the sale-level discount.
func (s *Sale) RecomputeTotals() {
	subtotal := types.ZeroMoney()
	for _, item := range s.Items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	s.Subtotal = subtotal
	s.Total = applyDiscount(subtotal, s.DiscountType, s.DiscountAmount)
}

// SaleItem is one line of a sale. Product name and SKU are snapshotted at sale
// time. Quantity is mutable only during reconciliation adjust.
type SaleItem struct {
	ID             id.ID       `db:"id" json:"id"`
	SaleID         id.ID       `db:"sale_id" json:"saleId"`
	ProductID      id.ID       `db:"product_id" json:"productId"`
	ProductName    string      `db:"product_name" json:"productName"`
	ProductSKU     string      `db:"product_sku" json:"productSku"`
	Quantity       int64       `db:"quantity" json:"quantity"`
	UnitPrice      types.Money `db:"unit_price" json:"unitPrice"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	LineTotal      types.Money `db:"line_total" json:"lineTotal"`
}

// ComputeLineTotal returns unit_price * quantity - discount, floored at zero.
func (i *SaleItem) ComputeLineTotal() types.Money {
	total := i.UnitPrice.Mul(types.MoneyFromInt(i.Quantity)).Sub(i.DiscountAmount)
	if total.IsNegative() {
		return types.ZeroMoney()
	}
	return total
}

// PaymentStatus of a payment.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records money received for a sale. Refunding flips status only;
// stock reversal is the sale/reconciliation services' job.
type Payment struct {
	ID        id.ID         `db:"id" json:"id"`
	SaleID    id.ID         `db:"sale_id" json:"saleId"`
	Method    string        `db:"method" json:"method"`
	Amount    types.Money   `db:"amount" json:"amount"`
	Tendered  types.Money   `db:"tendered" json:"tendered"`
	Change    types.Money   `db:"change" json:"change"`
	Status    PaymentStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// DefaultPaymentMethod is used when the payload names none.
const DefaultPaymentMethod = "cash"

// StockConflict describes one line item sold without sufficient stock.
type StockConflict struct {
	ProductID  id.ID  `json:"productId"`
	ProductSKU string `json:"productSku"`
	Requested  int64  `json:"requested"`
	Available  int64  `json:"available"`
	Deficit    int64  `json:"deficit"`
}
