package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/domain/catalogs/warehouse"
)

const warehousesTable = "warehouses"

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	columns   []string
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txManager *TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns:   ExtractDBColumns[warehouse.Warehouse](),
	}
}

// Create inserts a warehouse. Duplicate code surfaces as CodeDuplicate.
func (r *WarehouseRepo) Create(ctx context.Context, w *warehouse.Warehouse) error {
	q := r.builder.Insert(warehousesTable).SetMap(StructToMap(w))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("warehouse", "code", w.Code).WithCause(err)
		}
		return fmt.Errorf("insert warehouse: %w", err)
	}
	return nil
}

// Update writes warehouse fields with optimistic version check.
func (r *WarehouseRepo) Update(ctx context.Context, w *warehouse.Warehouse) error {
	m := StructToMap(w)
	delete(m, "id")
	delete(m, "created_at")
	m["version"] = w.Version + 1

	q := r.builder.Update(warehousesTable).
		SetMap(m).
		Where(squirrel.Eq{"id": w.ID, "version": w.Version}).
		Where("deleted_at IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("warehouse", "code", w.Code).WithCause(err)
		}
		return fmt.Errorf("update warehouse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("warehouse was modified concurrently").
			WithDetail("id", w.ID).
			WithDetail("version", w.Version)
	}

	w.Version++
	return nil
}

// GetByID loads a warehouse, excluding soft-deleted rows.
func (r *WarehouseRepo) GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	return r.getOne(ctx, squirrel.Eq{"id": warehouseID}, warehouseID)
}

// GetDefault returns the warehouse flagged is_default, NotFound if none.
func (r *WarehouseRepo) GetDefault(ctx context.Context) (*warehouse.Warehouse, error) {
	return r.getOne(ctx, squirrel.Eq{"is_default": true}, "default")
}

func (r *WarehouseRepo) getOne(ctx context.Context, where squirrel.Eq, entityID any) (*warehouse.Warehouse, error) {
	q := r.builder.Select(r.columns...).
		From(warehousesTable).
		Where(where).
		Where("deleted_at IS NULL").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var w warehouse.Warehouse
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &w, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("warehouse", entityID)
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return &w, nil
}

// List returns all warehouses ordered by code.
func (r *WarehouseRepo) List(ctx context.Context) ([]*warehouse.Warehouse, error) {
	q := r.builder.Select(r.columns...).
		From(warehousesTable).
		Where("deleted_at IS NULL").
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var warehouses []*warehouse.Warehouse
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &warehouses, sql, args...); err != nil {
		return nil, fmt.Errorf("select warehouses: %w", err)
	}
	return warehouses, nil
}

// ClearDefault unsets is_default on all warehouses except keep.
func (r *WarehouseRepo) ClearDefault(ctx context.Context, keep id.ID) error {
	q := r.builder.Update(warehousesTable).
		Set("is_default", false).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"is_default": true}).
		Where(squirrel.NotEq{"id": keep})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("clear default warehouse: %w", err)
	}
	return nil
}

// SoftDelete tombstones a warehouse.
func (r *WarehouseRepo) SoftDelete(ctx context.Context, warehouseID id.ID) error {
	q := r.builder.Update(warehousesTable).
		Set("deleted_at", time.Now().UTC()).
		Set("is_active", false).
		Where(squirrel.Eq{"id": warehouseID}).
		Where("deleted_at IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NewConflict("warehouse is referenced by stock or sales").
				WithDetail("id", warehouseID).
				WithCause(err)
		}
		return fmt.Errorf("soft delete warehouse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("warehouse", warehouseID)
	}
	return nil
}
