package warehouse

import (
	"context"
	"time"

	"stradapos/internal/core/id"
	"stradapos/internal/core/tx"
	"stradapos/pkg/logger"
)

// Service provides business logic for the warehouse catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new warehouse service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Create validates and persists a new warehouse. Setting a new default clears
// the flag on all others in the same transaction.
func (s *Service) Create(ctx context.Context, w *Warehouse) error {
	if err := w.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, w); err != nil {
			return err
		}
		if w.IsDefault {
			return s.repo.ClearDefault(ctx, w.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "warehouse created", "id", w.ID, "code", w.Code)
	return nil
}

// Update validates and persists warehouse changes.
func (s *Service) Update(ctx context.Context, w *Warehouse) error {
	if err := w.Validate(ctx); err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}
		if w.IsDefault {
			return s.repo.ClearDefault(ctx, w.ID)
		}
		return nil
	})
}

// GetByID retrieves a warehouse.
func (s *Service) GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, warehouseID)
}

// GetDefault returns the default warehouse.
func (s *Service) GetDefault(ctx context.Context) (*Warehouse, error) {
	return s.repo.GetDefault(ctx)
}

// List retrieves all warehouses.
func (s *Service) List(ctx context.Context) ([]*Warehouse, error) {
	return s.repo.List(ctx)
}

// Delete tombstones a warehouse.
func (s *Service) Delete(ctx context.Context, warehouseID id.ID) error {
	return s.repo.SoftDelete(ctx, warehouseID)
}
