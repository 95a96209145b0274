package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/id"
	"stradapos/internal/domain/stock"
)

// fakeLevelTx records the statements GetLevelForUpdate issues and serves the
// stock_levels row back through the pgx.Rows interface.
type fakeLevelTx struct {
	pgx.Tx

	level stock.Level
	ops   []string
}

func (f *fakeLevelTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.ops = append(f.ops, "exec:"+sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeLevelTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.ops = append(f.ops, "query:"+sql)
	return &fakeLevelRows{level: f.level}, nil
}

type fakeLevelRows struct {
	level stock.Level
	done  bool
}

func (r *fakeLevelRows) Close()                        {}
func (r *fakeLevelRows) Err() error                    { return nil }
func (r *fakeLevelRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeLevelRows) Values() ([]any, error)        { return nil, nil }
func (r *fakeLevelRows) RawValues() [][]byte           { return nil }
func (r *fakeLevelRows) Conn() *pgx.Conn               { return nil }

func (r *fakeLevelRows) FieldDescriptions() []pgconn.FieldDescription {
	return []pgconn.FieldDescription{
		{Name: "product_id"},
		{Name: "warehouse_id"},
		{Name: "quantity"},
		{Name: "reserved_quantity"},
		{Name: "updated_at"},
	}
}

func (r *fakeLevelRows) Next() bool {
	if r.done {
		return false
	}
	r.done = true
	return true
}

func (r *fakeLevelRows) Scan(dest ...any) error {
	*(dest[0].(*id.ID)) = r.level.ProductID
	*(dest[1].(*id.ID)) = r.level.WarehouseID
	*(dest[2].(*int64)) = r.level.Quantity
	*(dest[3].(*int64)) = r.level.ReservedQuantity
	*(dest[4].(*time.Time)) = r.level.UpdatedAt
	return nil
}

func TestGetLevelForUpdate_SeedsMissingRowBeforeLocking(t *testing.T) {
	productID := id.New()
	warehouseID := id.New()

	fake := &fakeLevelTx{
		level: stock.Level{
			ProductID:   productID,
			WarehouseID: warehouseID,
			UpdatedAt:   time.Now().UTC(),
		},
	}
	ctx := context.WithValue(context.Background(), txKey{}, &Tx{Tx: fake})

	repo := NewStockRepo(NewTxManagerFromRawPool(nil))

	level, err := repo.GetLevelForUpdate(ctx, productID, warehouseID)
	require.NoError(t, err)

	require.Len(t, fake.ops, 2)
	assert.Contains(t, fake.ops[0], "exec:")
	assert.Contains(t, fake.ops[0], "ON CONFLICT (product_id, warehouse_id) DO NOTHING")
	assert.Contains(t, fake.ops[1], "query:")
	assert.Contains(t, fake.ops[1], "FOR UPDATE")

	assert.Equal(t, productID, level.ProductID)
	assert.Equal(t, warehouseID, level.WarehouseID)
	assert.Equal(t, int64(0), level.Quantity)
}

func TestGetLevelForUpdate_RequiresTransaction(t *testing.T) {
	repo := NewStockRepo(NewTxManagerFromRawPool(nil))

	_, err := repo.GetLevelForUpdate(context.Background(), id.New(), id.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires transaction")
}
