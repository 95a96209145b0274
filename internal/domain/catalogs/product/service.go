package product

import (
	"context"
	"time"

	"stradapos/internal/core/id"
	"stradapos/pkg/logger"
)

// Service provides business logic for the product catalog.
type Service struct {
	repo Repository

	// onChange callbacks fire after every write, used for cache invalidation.
	onChange []func(ctx context.Context, productID id.ID)
}

// NewService creates a new product service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// OnChange registers a listener invoked after every successful write.
func (s *Service) OnChange(fn func(ctx context.Context, productID id.ID)) {
	s.onChange = append(s.onChange, fn)
}

func (s *Service) notifyChange(ctx context.Context, productID id.ID) {
	for _, fn := range s.onChange {
		fn(ctx, productID)
	}
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	logger.Info(ctx, "product created", "id", p.ID, "sku", p.SKU)
	s.notifyChange(ctx, p.ID)
	return nil
}

// Update validates and persists product changes.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	s.notifyChange(ctx, p.ID)
	return nil
}

// GetByID retrieves a product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// List retrieves products with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Product, error) {
	return s.repo.List(ctx, filter)
}

// Delete tombstones a product.
func (s *Service) Delete(ctx context.Context, productID id.ID) error {
	if err := s.repo.SoftDelete(ctx, productID); err != nil {
		return err
	}
	s.notifyChange(ctx, productID)
	return nil
}
