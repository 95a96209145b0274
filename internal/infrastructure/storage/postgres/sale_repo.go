package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/domain/sales"
)

const (
	salesTable        = "sales"
	saleItemsTable    = "sale_items"
	salePaymentsTable = "sale_payments"
)

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	txManager *TxManager
	inserter  *BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ sales.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		inserter:  NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the sale header, all items and all payments. Items and
// payments go through COPY when a transaction is active.
func (r *SaleRepo) Create(ctx context.Context, sale *sales.Sale) error {
	q := r.builder.Insert(salesTable).SetMap(StructToMap(sale))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("sale", "idempotency_key", sale.IdempotencyKey).WithCause(err)
		}
		return fmt.Errorf("insert sale: %w", err)
	}

	if err := r.insertItems(ctx, sale.Items); err != nil {
		return err
	}
	return r.insertPayments(ctx, sale.Payments)
}

func (r *SaleRepo) insertItems(ctx context.Context, items []sales.SaleItem) error {
	if len(items) == 0 {
		return nil
	}

	columns := ExtractDBColumns[sales.SaleItem]()

	if r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(items))
		for i := range items {
			m := StructToMap(&items[i])
			row := make([]any, len(columns))
			for j, col := range columns {
				row[j] = m[col]
			}
			rows = append(rows, row)
		}
		if _, err := r.inserter.CopyFromSlice(ctx, saleItemsTable, columns, rows); err != nil {
			return fmt.Errorf("copy sale items: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(saleItemsTable).Columns(columns...)
	for i := range items {
		m := StructToMap(&items[i])
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = m[col]
		}
		q = q.Values(row...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}
	return nil
}

func (r *SaleRepo) insertPayments(ctx context.Context, payments []sales.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	columns := ExtractDBColumns[sales.Payment]()

	if r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(payments))
		for i := range payments {
			m := StructToMap(&payments[i])
			row := make([]any, len(columns))
			for j, col := range columns {
				row[j] = m[col]
			}
			rows = append(rows, row)
		}
		if _, err := r.inserter.CopyFromSlice(ctx, salePaymentsTable, columns, rows); err != nil {
			return fmt.Errorf("copy payments: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(salePaymentsTable).Columns(columns...)
	for i := range payments {
		m := StructToMap(&payments[i])
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = m[col]
		}
		q = q.Values(row...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payments: %w", err)
	}
	return nil
}

// Update writes the sale header fields.
func (r *SaleRepo) Update(ctx context.Context, sale *sales.Sale) error {
	m := StructToMap(sale)
	delete(m, "id")
	delete(m, "created_at")

	q := r.builder.Update(salesTable).
		SetMap(m).
		Where(squirrel.Eq{"id": sale.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", sale.ID)
	}
	return nil
}

// UpdateItem writes a single item's quantity and line total.
func (r *SaleRepo) UpdateItem(ctx context.Context, item *sales.SaleItem) error {
	q := r.builder.Update(saleItemsTable).
		Set("quantity", item.Quantity).
		Set("line_total", item.LineTotal).
		Where(squirrel.Eq{"id": item.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sale item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale item", item.ID)
	}
	return nil
}

// GetByID loads the sale with items and payments.
func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.getOne(ctx, squirrel.Eq{"id": saleID}, "sale", saleID)
}

// GetByIdempotencyKey loads the sale with items and payments.
func (r *SaleRepo) GetByIdempotencyKey(ctx context.Context, key string) (*sales.Sale, error) {
	return r.getOne(ctx, squirrel.Eq{"idempotency_key": key}, "sale", key)
}

func (r *SaleRepo) getOne(ctx context.Context, where squirrel.Eq, entity string, entityID any) (*sales.Sale, error) {
	q := r.builder.Select(ExtractDBColumns[sales.Sale]()...).
		From(salesTable).
		Where(where).
		Where("deleted_at IS NULL").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sale sales.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &sale, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entity, entityID)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	if err := r.loadRelations(ctx, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// List returns sales matching the filter, newest first.
func (r *SaleRepo) List(ctx context.Context, filter sales.ListFilter) ([]*sales.Sale, error) {
	q := r.builder.Select(ExtractDBColumns[sales.Sale]()...).
		From(salesTable).
		Where("deleted_at IS NULL")

	if filter.ConflictedOnly {
		q = q.Where(squirrel.Eq{"has_stock_conflict": true})
	}
	if filter.ClientUUID != nil {
		q = q.Where(squirrel.Eq{"client_uuid": *filter.ClientUUID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}

	q = q.OrderBy("completed_at DESC", "id DESC")

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

	var list []*sales.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &list, sql, args...); err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}

	for _, sale := range list {
		if err := r.loadRelations(ctx, sale); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// MarkPaymentsRefunded flips every payment of the sale to refunded.
func (r *SaleRepo) MarkPaymentsRefunded(ctx context.Context, saleID id.ID) error {
	q := r.builder.Update(salePaymentsTable).
		Set("status", sales.PaymentRefunded).
		Where(squirrel.Eq{"sale_id": saleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("mark payments refunded: %w", err)
	}
	return nil
}

func (r *SaleRepo) loadRelations(ctx context.Context, sale *sales.Sale) error {
	querier := r.txManager.GetQuerier(ctx)

	itemsQ := r.builder.Select(ExtractDBColumns[sales.SaleItem]()...).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": sale.ID}).
		OrderBy("product_sku")

	sql, args, err := itemsQ.ToSql()
	if err != nil {
		return fmt.Errorf("build items query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &sale.Items, sql, args...); err != nil {
		return fmt.Errorf("select sale items: %w", err)
	}

	paymentsQ := r.builder.Select(ExtractDBColumns[sales.Payment]()...).
		From(salePaymentsTable).
		Where(squirrel.Eq{"sale_id": sale.ID}).
		OrderBy("created_at")

	sql, args, err = paymentsQ.ToSql()
	if err != nil {
		return fmt.Errorf("build payments query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &sale.Payments, sql, args...); err != nil {
		return fmt.Errorf("select payments: %w", err)
	}

	return nil
}
