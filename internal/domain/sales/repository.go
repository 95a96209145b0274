package sales

import (
	"context"

	"stradapos/internal/core/id"
)

// ListFilter narrows sale listings.
type ListFilter struct {
	ConflictedOnly bool
	ClientUUID     *string
	WarehouseID    *id.ID
	Limit          int
	Offset         int
}

// Repository defines storage operations for sales.
//
// The idempotency_key column carries a unique constraint; Create must surface
// a violation as an apperror with CodeDuplicate so the service can fall back
// to returning the original sale.
type Repository interface {
	// Create inserts the sale header, all items and all payments.
	Create(ctx context.Context, sale *Sale) error

	// Update writes the sale header fields (status, totals, conflict flag, notes).
	Update(ctx context.Context, sale *Sale) error

	// UpdateItem writes a single item's quantity and line total.
	UpdateItem(ctx context.Context, item *SaleItem) error

	// GetByID loads the sale with items and payments.
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)

	// GetByIdempotencyKey loads the sale with items and payments, NotFound if absent.
	GetByIdempotencyKey(ctx context.Context, key string) (*Sale, error)

	// List returns sales matching the filter, newest first, items/payments loaded.
	List(ctx context.Context, filter ListFilter) ([]*Sale, error)

	// MarkPaymentsRefunded flips every payment of the sale to refunded.
	MarkPaymentsRefunded(ctx context.Context, saleID id.ID) error
}
