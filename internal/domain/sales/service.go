package sales

import (
	"context"
	"fmt"
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/tx"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/catalogs/warehouse"
	"stradapos/internal/domain/stock"
	"stradapos/pkg/logger"
	"stradapos/pkg/numerator"
)

// ItemInput is one requested sale line.
type ItemInput struct {
	ProductID      id.ID
	Quantity       int64
	UnitPrice      *types.Money // nil = product catalog price
	DiscountAmount *types.Money
}

// PaymentInput is one requested payment.
type PaymentInput struct {
	Method   string
	Amount   *types.Money // nil = remaining sale total
	Tendered *types.Money
}

// CreateInput is the full POS sale payload.
type CreateInput struct {
	IdempotencyKey string
	ClientUUID     *string
	WarehouseID    *id.ID
	Actor          id.ID
	Items          []ItemInput
	Payments       []PaymentInput
	DiscountAmount types.Money
	DiscountType   DiscountType
	Notes          string
	CompletedAt    *time.Time // offline client's local completion time
}

// CreateResult is the outcome of CreatePOSSale.
type CreateResult struct {
	Sale      *Sale
	Conflicts []StockConflict
	// Duplicate is true when the idempotency key matched an existing sale and
	// no side effects occurred.
	Duplicate bool
}

// Service orchestrates sale creation and refunds.
type Service struct {
	repo       Repository
	stock      *stock.Service
	products   product.Repository
	warehouses warehouse.Repository
	numerator  *numerator.Service
	txManager  tx.Manager
}

// NewService creates a new sale service.
func NewService(
	repo Repository,
	stockSvc *stock.Service,
	products product.Repository,
	warehouses warehouse.Repository,
	num *numerator.Service,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:       repo,
		stock:      stockSvc,
		products:   products,
		warehouses: warehouses,
		numerator:  num,
		txManager:  txManager,
	}
}

// CreatePOSSale creates a completed sale with items, stock deductions and
// payments in one transaction.
//
// The idempotency check runs first, before any side effect: an existing sale
// with the same key is returned unchanged, which makes the whole operation
// safe to retry at the transport layer. A unique constraint on the key closes
// the remaining check-then-insert race: a concurrent duplicate insert fails,
// and the loser re-reads and returns the winner's sale.
//
// With allowNegativeStock=false (online POS) any insufficient line fails the
// whole transaction. With allowNegativeStock=true (offline sync) insufficient
// lines are force-deducted, recorded as conflicts and flagged on the sale.
func (s *Service) CreatePOSSale(ctx context.Context, input CreateInput, allowNegativeStock bool) (*CreateResult, error) {
	if input.IdempotencyKey == "" {
		return nil, apperror.NewValidation("idempotency key is required")
	}
	if len(input.Items) == 0 {
		return nil, apperror.NewValidation("sale must have at least one item")
	}

	// Idempotency first: no side effects on replay.
	if existing, err := s.repo.GetByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		return &CreateResult{Sale: existing, Duplicate: true}, nil
	} else if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	wh, err := s.resolveWarehouse(ctx, input.WarehouseID)
	if err != nil {
		return nil, err
	}

	invoiceNumber, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("INV"), nil, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	now := time.Now().UTC()
	completedAt := now
	if input.CompletedAt != nil {
		completedAt = input.CompletedAt.UTC()
	}

	sale := &Sale{
		ID:             id.New(),
		InvoiceNumber:  invoiceNumber,
		IdempotencyKey: input.IdempotencyKey,
		ClientUUID:     input.ClientUUID,
		UserID:         input.Actor,
		WarehouseID:    wh.ID,
		Status:         StatusCompleted,
		DiscountAmount: input.DiscountAmount,
		DiscountType:   input.DiscountType,
		IsSynced:       input.ClientUUID == nil,
		Notes:          input.Notes,
		CompletedAt:    completedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var conflicts []StockConflict

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		subtotal := types.ZeroMoney()

		for _, in := range input.Items {
			item, conflict, err := s.buildAndDeductItem(ctx, sale, in, allowNegativeStock)
			if err != nil {
				return err
			}
			if conflict != nil {
				conflicts = append(conflicts, *conflict)
			}
			sale.Items = append(sale.Items, *item)
			subtotal = subtotal.Add(item.LineTotal)
		}

		sale.Subtotal = subtotal
		sale.Total = applyDiscount(subtotal, input.DiscountType, input.DiscountAmount)
		sale.HasStockConflict = len(conflicts) > 0
		sale.Payments = buildPayments(sale.ID, sale.Total, input.Payments, now)

		return s.repo.Create(ctx, sale)
	})
	if err != nil {
		// Lost the insert race to a concurrent retry with the same key:
		// the winner's sale is the result.
		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeDuplicate {
			existing, lookupErr := s.repo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("duplicate key re-read: %w", lookupErr)
			}
			return &CreateResult{Sale: existing, Duplicate: true}, nil
		}
		return nil, err
	}

	logger.Info(ctx, "pos sale created",
		"sale_id", sale.ID,
		"invoice_number", sale.InvoiceNumber,
		"warehouse_id", sale.WarehouseID,
		"items", len(sale.Items),
		"total", sale.Total,
		"stock_conflict", sale.HasStockConflict,
	)

	return &CreateResult{Sale: sale, Conflicts: conflicts}, nil
}

// buildAndDeductItem validates the line, snapshots the product and deducts
// stock. Runs inside the sale transaction.
func (s *Service) buildAndDeductItem(ctx context.Context, sale *Sale, in ItemInput, allowNegativeStock bool) (*SaleItem, *StockConflict, error) {
	if in.Quantity <= 0 {
		return nil, nil, apperror.NewValidation("item quantity must be positive").
			WithDetail("product_id", in.ProductID)
	}

	prod, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, nil, err
	}

	unitPrice := prod.Price
	if in.UnitPrice != nil {
		unitPrice = *in.UnitPrice
	}
	discount := types.ZeroMoney()
	if in.DiscountAmount != nil {
		discount = *in.DiscountAmount
	}

	item := &SaleItem{
		ID:             id.New(),
		SaleID:         sale.ID,
		ProductID:      prod.ID,
		ProductName:    prod.Name,
		ProductSKU:     prod.SKU,
		Quantity:       in.Quantity,
		UnitPrice:      unitPrice,
		DiscountAmount: discount,
	}
	item.LineTotal = item.ComputeLineTotal()

	actor := actorPtr(sale.UserID)
	available, err := s.stock.GetStockLevel(ctx, prod.ID, sale.WarehouseID)
	if err != nil {
		return nil, nil, err
	}

	var conflict *StockConflict
	ref := stock.SaleRef(sale.ID)

	if available < in.Quantity {
		if !allowNegativeStock {
			return nil, nil, apperror.NewInsufficientStock(prod.ID.String(), in.Quantity, available).
				WithDetail("sku", prod.SKU)
		}
		conflict = &StockConflict{
			ProductID:  prod.ID,
			ProductSKU: prod.SKU,
			Requested:  in.Quantity,
			Available:  available,
			Deficit:    in.Quantity - available,
		}
		if _, err := s.stock.ForceDeductStock(ctx, prod.ID, sale.WarehouseID, in.Quantity, ref, actor); err != nil {
			return nil, nil, err
		}
		return item, conflict, nil
	}

	_, err = s.stock.RecordSale(ctx, prod.ID, sale.WarehouseID, in.Quantity, ref, actor)
	if err != nil && allowNegativeStock && apperror.IsInsufficientStock(err) {
		// A concurrent sale consumed the stock between the unlocked read and
		// the locked deduction. Offline sales must still complete; the
		// force-deduct shares this transaction, so the sale stays atomic.
		current, lvlErr := s.stock.GetStockLevel(ctx, prod.ID, sale.WarehouseID)
		if lvlErr != nil {
			return nil, nil, lvlErr
		}
		conflict = &StockConflict{
			ProductID:  prod.ID,
			ProductSKU: prod.SKU,
			Requested:  in.Quantity,
			Available:  current,
			Deficit:    in.Quantity - current,
		}
		_, err = s.stock.ForceDeductStock(ctx, prod.ID, sale.WarehouseID, in.Quantity, ref, actor)
	}
	if err != nil {
		return nil, nil, err
	}

	return item, conflict, nil
}

// ProcessFullRefund restores stock for every item, marks all payments refunded
// and flips the sale status, in one transaction.
func (s *Service) ProcessFullRefund(ctx context.Context, saleID id.ID, reason string, actor id.ID) (*Sale, error) {
	sale, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.CanRefund() {
		return nil, apperror.NewBusinessRule(apperror.CodeAlreadyRefunded, "sale is already refunded").
			WithDetail("sale_id", saleID)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, item := range sale.Items {
			if _, err := s.stock.RecordReturn(ctx, item.ProductID, sale.WarehouseID, item.Quantity, stock.SaleRef(sale.ID), actorPtr(actor)); err != nil {
				return err
			}
		}

		if err := s.repo.MarkPaymentsRefunded(ctx, sale.ID); err != nil {
			return err
		}

		sale.Status = StatusRefunded
		sale.HasStockConflict = false
		if reason != "" {
			sale.Notes = appendNote(sale.Notes, "refund: "+reason)
		}
		sale.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	for i := range sale.Payments {
		sale.Payments[i].Status = PaymentRefunded
	}

	logger.Info(ctx, "sale refunded", "sale_id", sale.ID, "invoice_number", sale.InvoiceNumber)
	return sale, nil
}

// GetByID loads a sale with items and payments.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.GetByID(ctx, saleID)
}

func (s *Service) resolveWarehouse(ctx context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error) {
	if warehouseID != nil {
		return s.warehouses.GetByID(ctx, *warehouseID)
	}
	wh, err := s.warehouses.GetDefault(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation("no warehouse specified and no default warehouse configured")
		}
		return nil, err
	}
	return wh, nil
}

// applyDiscount computes the sale total from subtotal and discount settings.
func applyDiscount(subtotal types.Money, discountType DiscountType, amount types.Money) types.Money {
	if amount.IsZero() || amount.IsNegative() {
		return subtotal
	}

	var total types.Money
	switch discountType {
	case DiscountPercentage:
		total = subtotal.Sub(types.Percent(subtotal, amount))
	default:
		total = subtotal.Sub(amount)
	}
	if total.IsNegative() {
		return types.ZeroMoney()
	}
	return total
}

// buildPayments materializes payment rows, defaulting to a single cash payment
// covering the full total.
func buildPayments(saleID id.ID, total types.Money, inputs []PaymentInput, now time.Time) []Payment {
	if len(inputs) == 0 {
		inputs = []PaymentInput{{Method: DefaultPaymentMethod}}
	}

	payments := make([]Payment, 0, len(inputs))
	remaining := total
	for _, in := range inputs {
		method := in.Method
		if method == "" {
			method = DefaultPaymentMethod
		}

		amount := remaining
		if in.Amount != nil {
			amount = *in.Amount
		}

		tendered := amount
		if in.Tendered != nil {
			tendered = *in.Tendered
		}
		change := tendered.Sub(amount)
		if change.IsNegative() {
			change = types.ZeroMoney()
		}

		payments = append(payments, Payment{
			ID:        id.New(),
			SaleID:    saleID,
			Method:    method,
			Amount:    amount,
			Tendered:  tendered,
			Change:    change,
			Status:    PaymentCompleted,
			CreatedAt: now,
		})

		remaining = remaining.Sub(amount)
		if remaining.IsNegative() {
			remaining = types.ZeroMoney()
		}
	}
	return payments
}

func actorPtr(actor id.ID) *id.ID {
	if id.IsNil(actor) {
		return nil
	}
	a := actor
	return &a
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
