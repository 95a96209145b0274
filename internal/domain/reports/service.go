package reports

import (
	"context"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/domain/stock"
)

// Repository runs the aggregate queries behind the reports.
type Repository interface {
	SalesSummary(ctx context.Context, period Period, warehouseID *id.ID) (*SalesSummary, error)
	ConflictSummary(ctx context.Context, period Period) (*ConflictSummary, error)
}

// Service serves read-only reports. Stock views delegate to the stock
// service so low-stock thresholds stay in one place.
type Service struct {
	repo  Repository
	stock *stock.Service
}

// NewService creates a new report service.
func NewService(repo Repository, stockSvc *stock.Service) *Service {
	return &Service{repo: repo, stock: stockSvc}
}

// SalesSummary aggregates sales over the period, optionally per warehouse.
func (s *Service) SalesSummary(ctx context.Context, period Period, warehouseID *id.ID) (*SalesSummary, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	return s.repo.SalesSummary(ctx, period, warehouseID)
}

// ConflictSummary aggregates offline-sale conflict state over the period.
func (s *Service) ConflictSummary(ctx context.Context, period Period) (*ConflictSummary, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	return s.repo.ConflictSummary(ctx, period)
}

// MovementHistory lists stock movements matching the filter.
func (s *Service) MovementHistory(ctx context.Context, filter stock.MovementFilter) ([]stock.Movement, error) {
	return s.stock.ListMovements(ctx, filter)
}

// LowStock lists active products at or below their minimum stock level.
func (s *Service) LowStock(ctx context.Context, warehouseID *id.ID) ([]stock.LevelWithProduct, error) {
	return s.stock.GetLowStockProducts(ctx, warehouseID)
}

// OutOfStock lists active products with zero or negative quantity.
func (s *Service) OutOfStock(ctx context.Context, warehouseID *id.ID) ([]stock.LevelWithProduct, error) {
	return s.stock.GetOutOfStockProducts(ctx, warehouseID)
}

func validatePeriod(p Period) error {
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return apperror.NewValidation("period end must not precede period start")
	}
	return nil
}
