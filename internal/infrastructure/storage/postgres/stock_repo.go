package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stradapos/internal/core/id"
	"stradapos/internal/domain/stock"
)

const (
	stockLevelsTable    = "stock_levels"
	stockMovementsTable = "stock_movements"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetLevel returns the current level, zero-quantity value if no row exists.
func (r *StockRepo) GetLevel(ctx context.Context, productID, warehouseID id.ID) (stock.Level, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id", "quantity", "reserved_quantity", "updated_at",
	).From(stockLevelsTable).
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return stock.Level{}, fmt.Errorf("build query: %w", err)
	}

	var level stock.Level
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.Level{ProductID: productID, WarehouseID: warehouseID}, nil
		}
		return stock.Level{}, fmt.Errorf("get level: %w", err)
	}

	return level, nil
}

// GetLevelForUpdate returns the level with a pessimistic row lock.
// FOR UPDATE on an absent row locks nothing, so the row is materialized at
// zero quantity first; two first-ever mutations of the same pair then
// serialize on the unique index instead of both reading zero.
func (r *StockRepo) GetLevelForUpdate(ctx context.Context, productID, warehouseID id.ID) (stock.Level, error) {
	if r.txManager.GetTx(ctx) == nil {
		return stock.Level{}, fmt.Errorf("GetLevelForUpdate requires transaction context")
	}

	querier := r.txManager.GetQuerier(ctx)

	seedSQL := `
		INSERT INTO stock_levels (product_id, warehouse_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, 0, 0, now())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING
	`
	if _, err := querier.Exec(ctx, seedSQL, productID, warehouseID); err != nil {
		return stock.Level{}, fmt.Errorf("seed level row: %w", err)
	}

	sql := `
		SELECT product_id, warehouse_id, quantity, reserved_quantity, updated_at
		FROM stock_levels
		WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE
	`

	var level stock.Level
	if err := pgxscan.Get(ctx, querier, &level, sql, productID, warehouseID); err != nil {
		return stock.Level{}, fmt.Errorf("get level for update: %w", err)
	}

	return level, nil
}

// UpsertLevel writes the level row, creating it on first mutation.
func (r *StockRepo) UpsertLevel(ctx context.Context, level stock.Level) error {
	sql := `
		INSERT INTO stock_levels (product_id, warehouse_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, warehouse_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			updated_at = EXCLUDED.updated_at
	`

	querier := r.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		level.ProductID, level.WarehouseID, level.Quantity, level.ReservedQuantity, level.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert level: %w", err)
	}
	return nil
}

// AppendMovement inserts one immutable ledger row.
func (r *StockRepo) AppendMovement(ctx context.Context, movement *stock.Movement) error {
	q := r.builder.Insert(stockMovementsTable).
		SetMap(StructToMap(movement))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListMovements returns movement history, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]stock.Movement, error) {
	q := r.builder.Select(ExtractDBColumns[stock.Movement]()...).
		From(stockMovementsTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []stock.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// LowStock returns levels with 0 < quantity <= product.min_stock_level.
func (r *StockRepo) LowStock(ctx context.Context, warehouseID *id.ID) ([]stock.LevelWithProduct, error) {
	q := r.builder.Select(
		"l.product_id", "l.warehouse_id", "p.sku", "p.name", "l.quantity", "p.min_stock_level",
	).From(stockLevelsTable + " l").
		Join("products p ON p.id = l.product_id").
		Where("p.deleted_at IS NULL").
		Where(squirrel.Eq{"p.is_active": true}).
		Where("l.quantity > 0").
		Where("l.quantity <= p.min_stock_level")

	if warehouseID != nil {
		q = q.Where(squirrel.Eq{"l.warehouse_id": *warehouseID})
	}

	q = q.OrderBy("l.quantity ASC", "p.sku ASC")

	return r.selectLevelsWithProduct(ctx, q)
}

// OutOfStock returns levels with quantity <= 0.
func (r *StockRepo) OutOfStock(ctx context.Context, warehouseID *id.ID) ([]stock.LevelWithProduct, error) {
	q := r.builder.Select(
		"l.product_id", "l.warehouse_id", "p.sku", "p.name", "l.quantity", "p.min_stock_level",
	).From(stockLevelsTable + " l").
		Join("products p ON p.id = l.product_id").
		Where("p.deleted_at IS NULL").
		Where(squirrel.Eq{"p.is_active": true}).
		Where("l.quantity <= 0")

	if warehouseID != nil {
		q = q.Where(squirrel.Eq{"l.warehouse_id": *warehouseID})
	}

	q = q.OrderBy("l.quantity ASC", "p.sku ASC")

	return r.selectLevelsWithProduct(ctx, q)
}

func (r *StockRepo) selectLevelsWithProduct(ctx context.Context, q squirrel.SelectBuilder) ([]stock.LevelWithProduct, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []stock.LevelWithProduct
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}
	return levels, nil
}
