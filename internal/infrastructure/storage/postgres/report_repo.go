package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/reports"
)

// ReportRepo implements reports.Repository with aggregate SQL over the sales
// tables. All report queries run against committed data; no locks taken.
type ReportRepo struct {
	txManager *TxManager
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *TxManager) *ReportRepo {
	return &ReportRepo{txManager: txManager}
}

func periodBounds(period reports.Period) (time.Time, time.Time) {
	from := period.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := period.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return from, to
}

// SalesSummary aggregates completed and refunded sales over the period.
func (r *ReportRepo) SalesSummary(ctx context.Context, period reports.Period, warehouseID *id.ID) (*reports.SalesSummary, error) {
	from, to := periodBounds(period)
	querier := r.txManager.GetQuerier(ctx)

	summary := &reports.SalesSummary{Period: period}

	whFilter := ""
	args := []any{from, to}
	if warehouseID != nil {
		whFilter = " AND s.warehouse_id = $3"
		args = append(args, *warehouseID)
	}

	// total is subtotal minus the resolved discount, so the difference
	// captures percentage and flat discounts alike.
	headSQL := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE s.status = 'completed')                      AS sale_count,
			COUNT(*) FILTER (WHERE s.status = 'refunded')                       AS refund_count,
			COALESCE(SUM(s.subtotal) FILTER (WHERE s.status = 'completed'), 0)  AS gross_total,
			COALESCE(SUM(s.subtotal - s.total) FILTER (WHERE s.status = 'completed'), 0) AS discount_total,
			COALESCE(SUM(s.total) FILTER (WHERE s.status = 'completed'), 0)     AS net_total,
			COALESCE(SUM(s.total) FILTER (WHERE s.status = 'refunded'), 0)      AS refunded_total
		FROM sales s
		WHERE s.deleted_at IS NULL
		  AND s.completed_at >= $1 AND s.completed_at < $2%s
	`, whFilter)

	var head struct {
		SaleCount     int64       `db:"sale_count"`
		RefundCount   int64       `db:"refund_count"`
		GrossTotal    types.Money `db:"gross_total"`
		DiscountTotal types.Money `db:"discount_total"`
		NetTotal      types.Money `db:"net_total"`
		RefundedTotal types.Money `db:"refunded_total"`
	}
	if err := pgxscan.Get(ctx, querier, &head, headSQL, args...); err != nil {
		return nil, fmt.Errorf("sales summary head: %w", err)
	}
	summary.SaleCount = head.SaleCount
	summary.RefundCount = head.RefundCount
	summary.GrossTotal = head.GrossTotal
	summary.DiscountTotal = head.DiscountTotal
	summary.NetTotal = head.NetTotal
	summary.RefundedTotal = head.RefundedTotal

	methodSQL := fmt.Sprintf(`
		SELECT p.method, COUNT(*) AS count, COALESCE(SUM(p.amount), 0) AS amount
		FROM sale_payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE s.deleted_at IS NULL
		  AND p.status = 'completed'
		  AND s.completed_at >= $1 AND s.completed_at < $2%s
		GROUP BY p.method
		ORDER BY amount DESC
	`, whFilter)
	if err := pgxscan.Select(ctx, querier, &summary.ByPaymentMethod, methodSQL, args...); err != nil {
		return nil, fmt.Errorf("sales summary by method: %w", err)
	}

	topSQL := fmt.Sprintf(`
		SELECT
			i.product_id,
			i.product_name,
			i.product_sku,
			SUM(i.quantity)   AS quantity,
			COALESCE(SUM(i.line_total), 0) AS revenue
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		WHERE s.deleted_at IS NULL
		  AND s.status = 'completed'
		  AND s.completed_at >= $1 AND s.completed_at < $2%s
		GROUP BY i.product_id, i.product_name, i.product_sku
		ORDER BY revenue DESC
		LIMIT 10
	`, whFilter)
	if err := pgxscan.Select(ctx, querier, &summary.TopProducts, topSQL, args...); err != nil {
		return nil, fmt.Errorf("sales summary top products: %w", err)
	}

	return summary, nil
}

// ConflictSummary aggregates offline-sale conflict state over the period.
func (r *ReportRepo) ConflictSummary(ctx context.Context, period reports.Period) (*reports.ConflictSummary, error) {
	from, to := periodBounds(period)
	querier := r.txManager.GetQuerier(ctx)

	sql := `
		SELECT
			(SELECT COUNT(*) FROM sales
			 WHERE deleted_at IS NULL AND has_stock_conflict) AS open_conflicts,
			(SELECT COUNT(*) FROM sync_logs
			 WHERE conflicts IS NOT NULL AND resolution_note IS NOT NULL
			   AND updated_at >= $1 AND updated_at < $2) AS resolved_in_range,
			(SELECT COUNT(*) FROM sales
			 WHERE deleted_at IS NULL AND client_uuid IS NOT NULL
			   AND completed_at >= $1 AND completed_at < $2) AS offline_sales,
			(SELECT COUNT(*) FROM sales
			 WHERE deleted_at IS NULL AND is_synced
			   AND completed_at >= $1 AND completed_at < $2) AS synced_sales
	`

	summary := &reports.ConflictSummary{Period: period}
	var row struct {
		OpenConflicts   int64 `db:"open_conflicts"`
		ResolvedInRange int64 `db:"resolved_in_range"`
		OfflineSales    int64 `db:"offline_sales"`
		SyncedSales     int64 `db:"synced_sales"`
	}
	if err := pgxscan.Get(ctx, querier, &row, sql, from, to); err != nil {
		return nil, fmt.Errorf("conflict summary: %w", err)
	}
	summary.OpenConflicts = row.OpenConflicts
	summary.ResolvedInRange = row.ResolvedInRange
	summary.OfflineSales = row.OfflineSales
	summary.SyncedSales = row.SyncedSales

	return summary, nil
}
