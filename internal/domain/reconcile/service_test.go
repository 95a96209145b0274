package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/tx"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/audit"
	"stradapos/internal/domain/sales"
	"stradapos/internal/domain/stock"
)

// fakeAuditTrail records entries in memory and serves them back as history.
type fakeAuditTrail struct {
	entries []audit.Entry
}

func (a *fakeAuditTrail) Record(_ context.Context, entry audit.Entry) error {
	entry.CreatedAt = time.Now().UTC()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAuditTrail) EntityHistory(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- fakes ---

type fakeSaleRepo struct {
	byID map[id.ID]*sales.Sale
}

func (r *fakeSaleRepo) Create(_ context.Context, sale *sales.Sale) error {
	clone := *sale
	r.byID[sale.ID] = &clone
	return nil
}

func (r *fakeSaleRepo) Update(_ context.Context, sale *sales.Sale) error {
	stored, ok := r.byID[sale.ID]
	if !ok {
		return apperror.NewNotFound("sale", sale.ID)
	}
	items, payments := stored.Items, stored.Payments
	*stored = *sale
	stored.Items, stored.Payments = items, payments
	return nil
}

func (r *fakeSaleRepo) UpdateItem(_ context.Context, item *sales.SaleItem) error {
	sale, ok := r.byID[item.SaleID]
	if !ok {
		return apperror.NewNotFound("sale", item.SaleID)
	}
	for i := range sale.Items {
		if sale.Items[i].ID == item.ID {
			sale.Items[i] = *item
			return nil
		}
	}
	return apperror.NewNotFound("sale item", item.ID)
}

func (r *fakeSaleRepo) GetByID(_ context.Context, saleID id.ID) (*sales.Sale, error) {
	if sale, ok := r.byID[saleID]; ok {
		clone := *sale
		clone.Items = append([]sales.SaleItem(nil), sale.Items...)
		clone.Payments = append([]sales.Payment(nil), sale.Payments...)
		return &clone, nil
	}
	return nil, apperror.NewNotFound("sale", saleID)
}

func (r *fakeSaleRepo) GetByIdempotencyKey(_ context.Context, key string) (*sales.Sale, error) {
	return nil, apperror.NewNotFound("sale", key)
}

func (r *fakeSaleRepo) List(_ context.Context, filter sales.ListFilter) ([]*sales.Sale, error) {
	var out []*sales.Sale
	for _, sale := range r.byID {
		if filter.ConflictedOnly && !sale.HasStockConflict {
			continue
		}
		if filter.WarehouseID != nil && sale.WarehouseID != *filter.WarehouseID {
			continue
		}
		clone := *sale
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeSaleRepo) MarkPaymentsRefunded(_ context.Context, saleID id.ID) error {
	sale, ok := r.byID[saleID]
	if !ok {
		return apperror.NewNotFound("sale", saleID)
	}
	for i := range sale.Payments {
		sale.Payments[i].Status = sales.PaymentRefunded
	}
	return nil
}

type stockKey struct {
	productID   id.ID
	warehouseID id.ID
}

type fakeStockRepo struct {
	levels    map[stockKey]stock.Level
	movements []stock.Movement
}

func (r *fakeStockRepo) GetLevel(_ context.Context, productID, warehouseID id.ID) (stock.Level, error) {
	if level, ok := r.levels[stockKey{productID, warehouseID}]; ok {
		return level, nil
	}
	return stock.Level{ProductID: productID, WarehouseID: warehouseID}, nil
}

func (r *fakeStockRepo) GetLevelForUpdate(ctx context.Context, productID, warehouseID id.ID) (stock.Level, error) {
	return r.GetLevel(ctx, productID, warehouseID)
}

func (r *fakeStockRepo) UpsertLevel(_ context.Context, level stock.Level) error {
	r.levels[stockKey{level.ProductID, level.WarehouseID}] = level
	return nil
}

func (r *fakeStockRepo) AppendMovement(_ context.Context, movement *stock.Movement) error {
	r.movements = append(r.movements, *movement)
	return nil
}

func (r *fakeStockRepo) ListMovements(context.Context, stock.MovementFilter) ([]stock.Movement, error) {
	return r.movements, nil
}

func (r *fakeStockRepo) LowStock(context.Context, *id.ID) ([]stock.LevelWithProduct, error) {
	return nil, nil
}

func (r *fakeStockRepo) OutOfStock(context.Context, *id.ID) ([]stock.LevelWithProduct, error) {
	return nil, nil
}

// fakeTxManager restores sale and stock state when the outermost transaction
// fails.
type fakeTxManager struct {
	sales *fakeSaleRepo
	stock *fakeStockRepo
	depth int
	hooks []tx.Hook
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.depth++
	var savedLevels map[stockKey]stock.Level
	var savedMovements []stock.Movement
	var savedSales map[id.ID]*sales.Sale
	if m.depth == 1 {
		savedLevels = make(map[stockKey]stock.Level, len(m.stock.levels))
		for k, v := range m.stock.levels {
			savedLevels[k] = v
		}
		savedMovements = append(savedMovements, m.stock.movements...)
		savedSales = make(map[id.ID]*sales.Sale, len(m.sales.byID))
		for k, v := range m.sales.byID {
			clone := *v
			clone.Items = append([]sales.SaleItem(nil), v.Items...)
			clone.Payments = append([]sales.Payment(nil), v.Payments...)
			savedSales[k] = &clone
		}
	}

	err := fn(ctx)
	if err != nil && m.depth == 1 {
		m.stock.levels = savedLevels
		m.stock.movements = savedMovements
		m.sales.byID = savedSales
	}
	m.depth--
	if m.depth == 0 {
		hooks := m.hooks
		m.hooks = nil
		if err == nil {
			for _, hook := range hooks {
				hook(ctx)
			}
		}
	}
	return err
}

func (m *fakeTxManager) AfterCommit(ctx context.Context, fn tx.Hook) {
	if m.depth > 0 {
		m.hooks = append(m.hooks, fn)
		return
	}
	fn(ctx)
}

// --- fixture ---

type fixture struct {
	service     *Service
	saleRepo    *fakeSaleRepo
	stockSvc    *stock.Service
	trail       *fakeAuditTrail
	warehouseID id.ID
	actor       id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	saleRepo := &fakeSaleRepo{byID: make(map[id.ID]*sales.Sale)}
	stockRepo := &fakeStockRepo{levels: make(map[stockKey]stock.Level)}
	txManager := &fakeTxManager{sales: saleRepo, stock: stockRepo}
	stockSvc := stock.NewService(stockRepo, txManager, nil)
	trail := &fakeAuditTrail{}

	return &fixture{
		service:     NewService(saleRepo, stockSvc, txManager, trail, trail),
		saleRepo:    saleRepo,
		stockSvc:    stockSvc,
		trail:       trail,
		warehouseID: id.New(),
		actor:       id.New(),
	}
}

// conflictedSale seeds a sale that oversold: 12 units were rung up with only
// 10 on hand, so the level sits at -2 and the conflict flag is set.
func (f *fixture) conflictedSale(t *testing.T) (*sales.Sale, id.ID) {
	t.Helper()
	ctx := context.Background()

	productID := id.New()
	_, err := f.stockSvc.Adjust(ctx, productID, f.warehouseID, 10, "initial stock", nil)
	require.NoError(t, err)
	_, err = f.stockSvc.ForceDeductStock(ctx, productID, f.warehouseID, 12, stock.SaleRef(id.New()), nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	sale := &sales.Sale{
		ID:               id.New(),
		InvoiceNumber:    "INV-2508-00001",
		IdempotencyKey:   "offline-1",
		WarehouseID:      f.warehouseID,
		Status:           sales.StatusCompleted,
		HasStockConflict: true,
		CompletedAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	sale.Items = []sales.SaleItem{{
		ID:         id.New(),
		SaleID:     sale.ID,
		ProductID:  productID,
		ProductSKU: "COF-001",
		Quantity:   12,
		UnitPrice:  types.MustMoney("12.50"),
	}}
	sale.Items[0].LineTotal = sale.Items[0].ComputeLineTotal()
	sale.RecomputeTotals()
	sale.Payments = []sales.Payment{{
		ID:     id.New(),
		SaleID: sale.ID,
		Method: "cash",
		Amount: sale.Total,
		Status: sales.PaymentCompleted,
	}}
	require.NoError(t, f.saleRepo.Create(ctx, sale))
	return sale, productID
}

func (f *fixture) level(t *testing.T, productID id.ID) int64 {
	t.Helper()
	quantity, err := f.stockSvc.GetStockLevel(context.Background(), productID, f.warehouseID)
	require.NoError(t, err)
	return quantity
}

// --- tests ---

func TestAccept_ClearsFlagWithoutTouchingStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, productID := f.conflictedSale(t)
	require.Equal(t, int64(-2), f.level(t, productID))

	resolved, err := f.service.Accept(ctx, sale.ID, "count verified at the shelf", f.actor)
	require.NoError(t, err)

	assert.False(t, resolved.HasStockConflict)
	assert.Equal(t, sales.StatusCompleted, resolved.Status)
	assert.Contains(t, resolved.Notes, "reconciled (accept)")
	assert.True(t, resolved.Total.Equal(types.MustMoney("150")))
	assert.Equal(t, int64(-2), f.level(t, productID))
}

func TestAdjust_RestoresDeltaAndRecomputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, productID := f.conflictedSale(t)

	// Only 5 of the 12 were really sold; 7 units return to stock.
	resolved, err := f.service.Adjust(ctx, sale.ID, []ItemAdjustment{
		{ItemID: sale.Items[0].ID, NewQuantity: 5},
	}, "recount", f.actor)
	require.NoError(t, err)

	assert.False(t, resolved.HasStockConflict)
	assert.Equal(t, int64(5), resolved.Items[0].Quantity)
	assert.True(t, resolved.Items[0].LineTotal.Equal(types.MustMoney("62.50")))
	assert.True(t, resolved.Total.Equal(types.MustMoney("62.50")))
	assert.Equal(t, int64(5), f.level(t, productID))
}

func TestAdjust_RejectsIncreaseAndNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, productID := f.conflictedSale(t)

	_, err := f.service.Adjust(ctx, sale.ID, []ItemAdjustment{
		{ItemID: sale.Items[0].ID, NewQuantity: 15},
	}, "", f.actor)
	require.Error(t, err, "quantity cannot grow during reconciliation")

	_, err = f.service.Adjust(ctx, sale.ID, []ItemAdjustment{
		{ItemID: sale.Items[0].ID, NewQuantity: -1},
	}, "", f.actor)
	require.Error(t, err)

	_, err = f.service.Adjust(ctx, sale.ID, nil, "", f.actor)
	require.Error(t, err, "empty adjustment list")

	// Nothing changed.
	assert.Equal(t, int64(-2), f.level(t, productID))
	stored, err := f.saleRepo.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasStockConflict)
}

func TestAdjust_UnknownItemRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, productID := f.conflictedSale(t)

	_, err := f.service.Adjust(ctx, sale.ID, []ItemAdjustment{
		{ItemID: sale.Items[0].ID, NewQuantity: 5},
		{ItemID: id.New(), NewQuantity: 1},
	}, "", f.actor)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	// The valid adjustment's stock return was rolled back with the rest.
	assert.Equal(t, int64(-2), f.level(t, productID))
	stored, err := f.saleRepo.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stored.Items[0].Quantity)
	assert.True(t, stored.HasStockConflict)
}

func TestVoid_RestoresAllStockAndRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, productID := f.conflictedSale(t)

	resolved, err := f.service.Void(ctx, sale.ID, "sale never happened", f.actor)
	require.NoError(t, err)

	assert.Equal(t, sales.StatusRefunded, resolved.Status)
	assert.False(t, resolved.HasStockConflict)
	for _, p := range resolved.Payments {
		assert.Equal(t, sales.PaymentRefunded, p.Status)
	}
	// All 12 units return: -2 + 12 = 10.
	assert.Equal(t, int64(10), f.level(t, productID))
}

func TestResolve_RequiresConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, _ := f.conflictedSale(t)

	_, err := f.service.Accept(ctx, sale.ID, "", f.actor)
	require.NoError(t, err)

	// A second resolution of any kind is rejected.
	for _, attempt := range []func() error{
		func() error { _, err := f.service.Accept(ctx, sale.ID, "", f.actor); return err },
		func() error {
			_, err := f.service.Adjust(ctx, sale.ID, []ItemAdjustment{{ItemID: sale.Items[0].ID, NewQuantity: 5}}, "", f.actor)
			return err
		},
		func() error { _, err := f.service.Void(ctx, sale.ID, "", f.actor); return err },
	} {
		err := attempt()
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeNoStockConflict, appErr.Code)
	}
}

func TestListConflicts_FiltersResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, _ := f.conflictedSale(t)
	second, _ := f.conflictedSale(t)
	second.IdempotencyKey = "offline-2"

	conflicts, err := f.service.ListConflicts(ctx, nil, 50, 0)
	require.NoError(t, err)
	assert.Len(t, conflicts, 2)

	_, err = f.service.Accept(ctx, first.ID, "", f.actor)
	require.NoError(t, err)

	conflicts, err = f.service.ListConflicts(ctx, nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, second.ID, conflicts[0].ID)
}

func TestHistory_ReturnsResolutionTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sale, _ := f.conflictedSale(t)

	_, err := f.service.Accept(ctx, sale.ID, "counted and confirmed", f.actor)
	require.NoError(t, err)

	entries, err := f.service.History(ctx, sale.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionReconcileAccept, entries[0].Action)
	assert.Equal(t, sale.ID, entries[0].EntityID)

	_, err = f.service.History(ctx, id.New(), 10)
	require.Error(t, err, "unknown sale has no trail")
}
