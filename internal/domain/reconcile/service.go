// Package reconcile resolves sales that were accepted despite insufficient
// stock. Every resolution is one transaction against both the sale and the
// stock ledger.
package reconcile

import (
	"context"
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/tx"
	"stradapos/internal/domain/audit"
	"stradapos/internal/domain/sales"
	"stradapos/internal/domain/stock"
	"stradapos/pkg/logger"
)

// ItemAdjustment reduces one line item to the quantity actually sold.
type ItemAdjustment struct {
	ItemID      id.ID `json:"itemId"`
	NewQuantity int64 `json:"newQuantity"`
}

// Service resolves conflicted sales.
type Service struct {
	sales     sales.Repository
	stock     *stock.Service
	txManager tx.Manager
	auditor   audit.Recorder
	history   audit.HistoryReader
}

// NewService creates a new reconciliation service.
func NewService(salesRepo sales.Repository, stockSvc *stock.Service, txManager tx.Manager, auditor audit.Recorder, history audit.HistoryReader) *Service {
	if auditor == nil {
		auditor = audit.Nop()
	}
	if history == nil {
		history = audit.NopHistory()
	}
	return &Service{sales: salesRepo, stock: stockSvc, txManager: txManager, auditor: auditor, history: history}
}

// ListConflicts returns sales with unresolved stock conflicts.
func (s *Service) ListConflicts(ctx context.Context, warehouseID *id.ID, limit, offset int) ([]*sales.Sale, error) {
	return s.sales.List(ctx, sales.ListFilter{
		ConflictedOnly: true,
		WarehouseID:    warehouseID,
		Limit:          limit,
		Offset:         offset,
	})
}

// Get loads one conflicted sale with items and payments.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return s.sales.GetByID(ctx, saleID)
}

// Accept keeps the sale as recorded: the physical count was right and the
// ledger shortfall came from elsewhere. Stock and totals stay untouched, only
// the conflict flag clears.
func (s *Service) Accept(ctx context.Context, saleID id.ID, note string, actor id.ID) (*sales.Sale, error) {
	sale, err := s.requireConflicted(ctx, saleID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale.HasStockConflict = false
		if note != "" {
			sale.Notes = appendNote(sale.Notes, "reconciled (accept): "+note)
		}
		sale.UpdatedAt = time.Now().UTC()
		return s.sales.Update(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionReconcileAccept, sale, actor, map[string]any{"note": note})
	logger.Info(ctx, "conflict accepted", "sale_id", sale.ID, "invoice_number", sale.InvoiceNumber)
	return sale, nil
}

// Adjust reduces line items to what was actually sold and restores the
// quantity delta to stock. Items absent from the payload keep their quantity.
func (s *Service) Adjust(ctx context.Context, saleID id.ID, adjustments []ItemAdjustment, note string, actor id.ID) (*sales.Sale, error) {
	if len(adjustments) == 0 {
		return nil, apperror.NewValidation("at least one item adjustment is required")
	}

	sale, err := s.requireConflicted(ctx, saleID)
	if err != nil {
		return nil, err
	}

	byItem := make(map[id.ID]int64, len(adjustments))
	for _, adj := range adjustments {
		if adj.NewQuantity < 0 {
			return nil, apperror.NewValidation("adjusted quantity cannot be negative").
				WithDetail("item_id", adj.ItemID)
		}
		byItem[adj.ItemID] = adj.NewQuantity
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for i := range sale.Items {
			item := &sale.Items[i]
			newQty, ok := byItem[item.ID]
			if !ok {
				continue
			}
			delete(byItem, item.ID)

			delta := item.Quantity - newQty
			if delta < 0 {
				return apperror.NewValidation("adjustment cannot increase quantity").
					WithDetail("item_id", item.ID).
					WithDetail("quantity", item.Quantity).
					WithDetail("new_quantity", newQty)
			}
			if delta == 0 {
				continue
			}

			if _, err := s.stock.RecordReturn(ctx, item.ProductID, sale.WarehouseID, delta, stock.SaleRef(sale.ID), actorPtr(actor)); err != nil {
				return err
			}

			item.Quantity = newQty
			item.LineTotal = item.ComputeLineTotal()
			if err := s.sales.UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		for itemID := range byItem {
			return apperror.NewNotFound("sale item", itemID)
		}

		sale.RecomputeTotals()
		sale.HasStockConflict = false
		if note != "" {
			sale.Notes = appendNote(sale.Notes, "reconciled (adjust): "+note)
		}
		sale.UpdatedAt = time.Now().UTC()
		return s.sales.Update(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionReconcileAdjust, sale, actor, map[string]any{
		"note":        note,
		"adjustments": adjustments,
	})
	logger.Info(ctx, "conflict adjusted",
		"sale_id", sale.ID,
		"invoice_number", sale.InvoiceNumber,
		"total", sale.Total,
	)
	return sale, nil
}

// Void cancels the sale entirely: every item's full quantity returns to
// stock, payments flip to refunded and the sale status becomes refunded.
func (s *Service) Void(ctx context.Context, saleID id.ID, note string, actor id.ID) (*sales.Sale, error) {
	sale, err := s.requireConflicted(ctx, saleID)
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
		if err := s.sales.MarkPaymentsRefunded(ctx, sale.ID); err != nil {
			return err
		}

		sale.Status = sales.StatusRefunded
		sale.HasStockConflict = false
		if note != "" {
			sale.Notes = appendNote(sale.Notes, "reconciled (void): "+note)
		}
		sale.UpdatedAt = time.Now().UTC()
		return s.sales.Update(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	for i := range sale.Payments {
		sale.Payments[i].Status = sales.PaymentRefunded
	}

	s.record(ctx, audit.ActionReconcileVoid, sale, actor, map[string]any{"note": note})
	logger.Info(ctx, "conflict voided", "sale_id", sale.ID, "invoice_number", sale.InvoiceNumber)
	return sale, nil
}

// History returns the recorded resolution trail for one sale, newest first.
func (s *Service) History(ctx context.Context, saleID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.sales.GetByID(ctx, saleID); err != nil {
		return nil, err
	}
	return s.history.EntityHistory(ctx, "sale", saleID, limit)
}

func (s *Service) requireConflicted(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.HasStockConflict {
		return nil, apperror.NewNoStockConflict(saleID.String())
	}
	return sale, nil
}

func (s *Service) record(ctx context.Context, action audit.Action, sale *sales.Sale, actor id.ID, changes map[string]any) {
	entry := audit.Entry{
		Action:     action,
		EntityType: "sale",
		EntityID:   sale.ID,
	}
	if !id.IsNil(actor) {
		entry.UserID = actor.String()
	}
	entry.SetChanges(changes)
	if err := s.auditor.Record(ctx, entry); err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "sale_id", sale.ID, "error", err)
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

func actorPtr(actor id.ID) *id.ID {
	if id.IsNil(actor) {
		return nil
	}
	a := actor
	return &a
}
