package stock

import (
	"context"
	"fmt"
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/tx"
	"stradapos/internal/domain/audit"
	"stradapos/pkg/logger"
)

// Service provides transactional operations on the stock ledger.
// Every mutation updates the level row and appends a movement in one
// transaction; a failure rolls back both.
type Service struct {
	repo      Repository
	txManager tx.Manager
	auditor   audit.Recorder

	// onChange callbacks fire after a committed mutation, one per affected
	// (product, warehouse) pair. Used for cache invalidation.
	onChange []ChangeListener
}

// ChangeListener is notified after a stock level changes.
type ChangeListener func(ctx context.Context, productID, warehouseID id.ID)

// NewService creates a new stock service.
func NewService(repo Repository, txManager tx.Manager, auditor audit.Recorder) *Service {
	if auditor == nil {
		auditor = audit.Nop()
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		auditor:   auditor,
	}
}

// OnChange registers a listener invoked after every successful mutation.
func (s *Service) OnChange(fn ChangeListener) {
	s.onChange = append(s.onChange, fn)
}

func (s *Service) notifyChange(ctx context.Context, productID, warehouseID id.ID) {
	for _, fn := range s.onChange {
		fn(ctx, productID, warehouseID)
	}
}

// apply is the single debit/credit primitive. It locks the level row, checks
// the non-negative policy, writes the new level and appends the movement.
// Runs in the caller's transaction if one is active, otherwise opens its own.
func (s *Service) apply(
	ctx context.Context,
	productID, warehouseID id.ID,
	change int64,
	movementType MovementType,
	ref Reference,
	reason string,
	actor *id.ID,
	allowNegative bool,
) (*Movement, error) {
	var movement *Movement

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.GetLevelForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}

		before := level.Quantity
		after := before + change
		if after < 0 && !allowNegative {
			return apperror.NewInsufficientStock(productID.String(), -change, before)
		}

		level.ProductID = productID
		level.WarehouseID = warehouseID
		level.Quantity = after
		level.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpsertLevel(ctx, level); err != nil {
			return fmt.Errorf("update stock level: %w", err)
		}

		movement = &Movement{
			ID:             id.New(),
			ProductID:      productID,
			WarehouseID:    warehouseID,
			QuantityChange: change,
			QuantityBefore: before,
			QuantityAfter:  after,
			Type:           movementType,
			ReferenceKind:  ref.Kind,
			Reason:         reason,
			UserID:         actor,
			CreatedAt:      time.Now().UTC(),
		}
		if !id.IsNil(ref.ID) {
			refID := ref.ID
			movement.ReferenceID = &refID
		}
		if err := s.repo.AppendMovement(ctx, movement); err != nil {
			return fmt.Errorf("append movement: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// A caller's transaction may still be open here; listeners must never
	// observe state that can roll back.
	s.txManager.AfterCommit(ctx, func(ctx context.Context) {
		s.notifyChange(ctx, productID, warehouseID)
	})
	return movement, nil
}

// Adjust applies a signed quantity change. Fails with InsufficientStock if the
// result would be negative.
func (s *Service) Adjust(ctx context.Context, productID, warehouseID id.ID, change int64, reason string, actor *id.ID) (*Movement, error) {
	if change == 0 {
		return nil, apperror.NewValidation("quantity change must be non-zero")
	}

	movement, err := s.apply(ctx, productID, warehouseID, change, MovementAdjustment, AdjustmentRef(), reason, actor, false)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, audit.ActionStockAdjust, movement)
	return movement, nil
}

// SetStock sets the absolute quantity, logging a correction movement with the
// computed delta.
func (s *Service) SetStock(ctx context.Context, productID, warehouseID id.ID, newQuantity int64, reason string, actor *id.ID) (*Movement, error) {
	if newQuantity < 0 {
		return nil, apperror.NewValidation("quantity must not be negative")
	}

	var movement *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.GetLevelForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}

		before := level.Quantity
		level.ProductID = productID
		level.WarehouseID = warehouseID
		level.Quantity = newQuantity
		level.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpsertLevel(ctx, level); err != nil {
			return fmt.Errorf("update stock level: %w", err)
		}

		movement = &Movement{
			ID:             id.New(),
			ProductID:      productID,
			WarehouseID:    warehouseID,
			QuantityChange: newQuantity - before,
			QuantityBefore: before,
			QuantityAfter:  newQuantity,
			Type:           MovementCorrection,
			ReferenceKind:  RefAdjustment,
			Reason:         reason,
			UserID:         actor,
			CreatedAt:      time.Now().UTC(),
		}
		return s.repo.AppendMovement(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.notifyChange(ctx, productID, warehouseID)
	s.audit(ctx, audit.ActionStockSet, movement)
	return movement, nil
}

// Transfer moves quantity between warehouses. Both movements commit or both
// roll back.
func (s *Service) Transfer(ctx context.Context, productID, fromWarehouseID, toWarehouseID id.ID, quantity int64, reason string, actor *id.ID) (*Movement, *Movement, error) {
	if quantity <= 0 {
		return nil, nil, apperror.NewValidation("transfer quantity must be positive")
	}
	if fromWarehouseID == toWarehouseID {
		return nil, nil, apperror.NewValidation("source and destination warehouse must differ")
	}

	var out, in *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.apply(ctx, productID, fromWarehouseID, -quantity, MovementTransferOut, AdjustmentRef(), reason, actor, false)
		if err != nil {
			return err
		}
		in, err = s.apply(ctx, productID, toWarehouseID, quantity, MovementTransferIn, AdjustmentRef(), reason, actor, false)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "stock transferred",
		"product_id", productID,
		"from_warehouse_id", fromWarehouseID,
		"to_warehouse_id", toWarehouseID,
		"quantity", quantity,
	)
	s.audit(ctx, audit.ActionStockTransfer, out)
	return out, in, nil
}

// RecordSale deducts quantity for a sale. Hard stop on insufficient stock.
func (s *Service) RecordSale(ctx context.Context, productID, warehouseID id.ID, quantity int64, ref Reference, actor *id.ID) (*Movement, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("sale quantity must be positive")
	}
	return s.apply(ctx, productID, warehouseID, -quantity, MovementSale, ref, "", actor, false)
}

// RecordPurchase adds quantity received from a purchase order.
func (s *Service) RecordPurchase(ctx context.Context, productID, warehouseID id.ID, quantity int64, ref Reference, actor *id.ID) (*Movement, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("purchase quantity must be positive")
	}
	return s.apply(ctx, productID, warehouseID, quantity, MovementPurchase, ref, "", actor, false)
}

// RecordReturn restores quantity returned by a customer.
func (s *Service) RecordReturn(ctx context.Context, productID, warehouseID id.ID, quantity int64, ref Reference, actor *id.ID) (*Movement, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("return quantity must be positive")
	}
	return s.apply(ctx, productID, warehouseID, quantity, MovementReturn, ref, "", actor, false)
}

// RecordDamage deducts damaged quantity.
func (s *Service) RecordDamage(ctx context.Context, productID, warehouseID id.ID, quantity int64, reason string, actor *id.ID) (*Movement, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("damage quantity must be positive")
	}
	return s.apply(ctx, productID, warehouseID, -quantity, MovementDamage, AdjustmentRef(), reason, actor, false)
}

// RecordSupplierReturn deducts quantity sent back to a supplier.
func (s *Service) RecordSupplierReturn(ctx context.Context, productID, warehouseID id.ID, quantity int64, ref Reference, actor *id.ID) (*Movement, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("supplier return quantity must be positive")
	}
	return s.apply(ctx, productID, warehouseID, -quantity, MovementSupplierReturn, ref, "", actor, false)
}

// RecordAdjustment applies a signed correction tied to an external reference.
func (s *Service) RecordAdjustment(ctx context.Context, productID, warehouseID id.ID, change int64, ref Reference, reason string, actor *id.ID) (*Movement, error) {
	if change == 0 {
		return nil, apperror.NewValidation("quantity change must be non-zero")
	}
	return s.apply(ctx, productID, warehouseID, change, MovementAdjustment, ref, reason, actor, false)
}

// ForceDeductStock bypasses the non-negative check. This is the only path that
// lets quantity go negative; the resulting balance feeds reconciliation.
// Used exclusively by offline sync.
func (s *Service) ForceDeductStock(ctx context.Context, productID, warehouseID id.ID, quantity int64, ref Reference, actor *id.ID) (*Movement, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("deduct quantity must be positive")
	}

	movement, err := s.apply(ctx, productID, warehouseID, -quantity, MovementSale, ref, "offline force deduct", actor, true)
	if err != nil {
		return nil, err
	}

	if movement.QuantityAfter < 0 {
		logger.Warn(ctx, "stock forced negative",
			"product_id", productID,
			"warehouse_id", warehouseID,
			"quantity_after", movement.QuantityAfter,
		)
	}
	s.audit(ctx, audit.ActionForceDeduct, movement)
	return movement, nil
}

// GetStockLevel returns the current quantity, 0 if no row exists.
// Never creates a row as a side effect of a read.
func (s *Service) GetStockLevel(ctx context.Context, productID, warehouseID id.ID) (int64, error) {
	level, err := s.repo.GetLevel(ctx, productID, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("get stock level: %w", err)
	}
	return level.Quantity, nil
}

// ListMovements returns movement history.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// GetLowStockProducts returns products with 0 < quantity <= min_stock_level.
func (s *Service) GetLowStockProducts(ctx context.Context, warehouseID *id.ID) ([]LevelWithProduct, error) {
	return s.repo.LowStock(ctx, warehouseID)
}

// GetOutOfStockProducts returns products with quantity <= 0.
func (s *Service) GetOutOfStockProducts(ctx context.Context, warehouseID *id.ID) ([]LevelWithProduct, error) {
	return s.repo.OutOfStock(ctx, warehouseID)
}

func (s *Service) audit(ctx context.Context, action audit.Action, movement *Movement) {
	if movement == nil {
		return
	}
	entry := audit.Entry{
		EntityType: "stock_movement",
		EntityID:   movement.ID,
		Action:     action,
	}
	if movement.UserID != nil {
		entry.UserID = movement.UserID.String()
	}
	entry.SetChanges(movement)
	if err := s.auditor.Record(ctx, entry); err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "error", err)
	}
}
