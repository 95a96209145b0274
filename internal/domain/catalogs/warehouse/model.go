// Package warehouse provides the warehouse catalog.
package warehouse

import (
	"context"
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
)

// Warehouse is a stock location. The default warehouse absorbs POS sales that
// do not name one explicitly.
type Warehouse struct {
	ID        id.ID      `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Name      string     `db:"name" json:"name"`
	Address   *string    `db:"address" json:"address,omitempty"`
	IsDefault bool       `db:"is_default" json:"isDefault"`
	IsActive  bool       `db:"is_active" json:"isActive"`
	Version   int        `db:"version" json:"version"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// New creates a warehouse with generated ID.
func New(code, name string) *Warehouse {
	now := time.Now().UTC()
	return &Warehouse{
		ID:        id.New(),
		Code:      code,
		Name:      name,
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks warehouse invariants.
func (w *Warehouse) Validate(ctx context.Context) error {
	if w.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if w.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	return nil
}
