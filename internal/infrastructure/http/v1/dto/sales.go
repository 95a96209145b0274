package dto

import (
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/sales"
)

// Sale modes. Offline mode allows negative stock and flags conflicts instead
// of rejecting the sale.
const (
	SaleModeOnline  = "online"
	SaleModeOffline = "offline"
)

// SaleItemRequest is one requested sale line.
type SaleItemRequest struct {
	ProductID      string       `json:"productId" binding:"required,uuid"`
	Quantity       int64        `json:"quantity" binding:"required,min=1"`
	UnitPrice      *types.Money `json:"unitPrice,omitempty"`
	DiscountAmount *types.Money `json:"discountAmount,omitempty"`
}

// SalePaymentRequest is one requested payment.
type SalePaymentRequest struct {
	Method   string       `json:"method"`
	Amount   *types.Money `json:"amount,omitempty"`
	Tendered *types.Money `json:"tendered,omitempty"`
}

// CreateSaleRequest is the POS sale payload.
type CreateSaleRequest struct {
	IdempotencyKey string               `json:"idempotencyKey" binding:"required"`
	Mode           string               `json:"mode" binding:"omitempty,oneof=online offline"`
	ClientUUID     *string              `json:"clientUuid,omitempty"`
	WarehouseID    *string              `json:"warehouseId,omitempty"`
	Items          []SaleItemRequest    `json:"items" binding:"required,min=1,dive"`
	Payments       []SalePaymentRequest `json:"payments,omitempty"`
	DiscountAmount types.Money          `json:"discountAmount"`
	DiscountType   string               `json:"discountType" binding:"omitempty,oneof=percentage flat"`
	Notes          string               `json:"notes,omitempty"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
}

// AllowNegativeStock reports whether the request runs in offline mode.
func (r *CreateSaleRequest) AllowNegativeStock() bool {
	return r.Mode == SaleModeOffline
}

// ToCreateInput converts the request to a domain input.
func (r *CreateSaleRequest) ToCreateInput(actor id.ID) (sales.CreateInput, error) {
	input := sales.CreateInput{
		IdempotencyKey: r.IdempotencyKey,
		ClientUUID:     r.ClientUUID,
		Actor:          actor,
		DiscountAmount: r.DiscountAmount,
		DiscountType:   sales.DiscountType(r.DiscountType),
		Notes:          r.Notes,
		CompletedAt:    r.CompletedAt,
	}

	if r.WarehouseID != nil && *r.WarehouseID != "" {
		parsed, err := id.Parse(*r.WarehouseID)
		if err != nil {
			return sales.CreateInput{}, apperror.NewValidation("invalid warehouseId format")
		}
		input.WarehouseID = &parsed
	}

	input.Items = make([]sales.ItemInput, len(r.Items))
	for i, item := range r.Items {
		productID, err := id.Parse(item.ProductID)
		if err != nil {
			return sales.CreateInput{}, apperror.NewValidation("invalid productId format").
				WithDetail("productId", item.ProductID)
		}
		input.Items[i] = sales.ItemInput{
			ProductID:      productID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
		}
	}

	input.Payments = make([]sales.PaymentInput, len(r.Payments))
	for i, p := range r.Payments {
		input.Payments[i] = sales.PaymentInput{
			Method:   p.Method,
			Amount:   p.Amount,
			Tendered: p.Tendered,
		}
	}

	return input, nil
}

// CreateSaleResponse is the outcome of a sale creation.
type CreateSaleResponse struct {
	Sale      *sales.Sale           `json:"sale"`
	Conflicts []sales.StockConflict `json:"conflicts,omitempty"`
	Duplicate bool                  `json:"duplicate"`
}

// RefundRequest for a full refund.
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SaleFilterRequest for sale listing.
type SaleFilterRequest struct {
	ConflictedOnly bool    `form:"conflictedOnly"`
	ClientUUID     *string `form:"clientUuid"`
	WarehouseID    string  `form:"warehouseId"`
	Limit          int     `form:"limit"`
	Offset         int     `form:"offset"`
}
