package sales

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/tx"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/catalogs/warehouse"
	"stradapos/internal/domain/stock"
	"stradapos/pkg/numerator"
)

// --- fakes ---

type fakeSaleRepo struct {
	byID  map[id.ID]*Sale
	byKey map[string]*Sale
}

func newFakeSaleRepo() *fakeSaleRepo {
	return &fakeSaleRepo{byID: make(map[id.ID]*Sale), byKey: make(map[string]*Sale)}
}

func (r *fakeSaleRepo) Create(_ context.Context, sale *Sale) error {
	if _, ok := r.byKey[sale.IdempotencyKey]; ok {
		return apperror.NewDuplicate("sale", "idempotency_key", sale.IdempotencyKey)
	}
	clone := *sale
	r.byID[sale.ID] = &clone
	r.byKey[sale.IdempotencyKey] = &clone
	return nil
}

func (r *fakeSaleRepo) Update(_ context.Context, sale *Sale) error {
	stored, ok := r.byID[sale.ID]
	if !ok {
		return apperror.NewNotFound("sale", sale.ID)
	}
	*stored = *sale
	return nil
}

func (r *fakeSaleRepo) UpdateItem(_ context.Context, item *SaleItem) error {
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

func (r *fakeSaleRepo) GetByID(_ context.Context, saleID id.ID) (*Sale, error) {
	if sale, ok := r.byID[saleID]; ok {
		clone := *sale
		return &clone, nil
	}
	return nil, apperror.NewNotFound("sale", saleID)
}

func (r *fakeSaleRepo) GetByIdempotencyKey(_ context.Context, key string) (*Sale, error) {
	if sale, ok := r.byKey[key]; ok {
		clone := *sale
		return &clone, nil
	}
	return nil, apperror.NewNotFound("sale", key)
}

func (r *fakeSaleRepo) List(_ context.Context, filter ListFilter) ([]*Sale, error) {
	var out []*Sale
	for _, sale := range r.byID {
		if filter.ConflictedOnly && !sale.HasStockConflict {
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
		sale.Payments[i].Status = PaymentRefunded
	}
	return nil
}

type fakeProductRepo struct {
	products map[id.ID]*product.Product
}

func (r *fakeProductRepo) Create(_ context.Context, p *product.Product) error {
	r.products[p.ID] = p
	return nil
}
func (r *fakeProductRepo) Update(context.Context, *product.Product) error { return nil }
func (r *fakeProductRepo) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	if p, ok := r.products[productID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", productID)
}
func (r *fakeProductRepo) GetBySKU(context.Context, string) (*product.Product, error) {
	return nil, apperror.NewNotFound("product", "sku")
}
func (r *fakeProductRepo) List(context.Context, product.ListFilter) ([]*product.Product, error) {
	return nil, nil
}
func (r *fakeProductRepo) SoftDelete(context.Context, id.ID) error { return nil }

type fakeWarehouseRepo struct {
	def *warehouse.Warehouse
}

func (r *fakeWarehouseRepo) Create(context.Context, *warehouse.Warehouse) error { return nil }
func (r *fakeWarehouseRepo) Update(context.Context, *warehouse.Warehouse) error { return nil }
func (r *fakeWarehouseRepo) GetByID(_ context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	if r.def != nil && r.def.ID == warehouseID {
		return r.def, nil
	}
	return nil, apperror.NewNotFound("warehouse", warehouseID)
}
func (r *fakeWarehouseRepo) GetDefault(context.Context) (*warehouse.Warehouse, error) {
	if r.def == nil {
		return nil, apperror.NewNotFound("warehouse", "default")
	}
	return r.def, nil
}
func (r *fakeWarehouseRepo) List(context.Context) ([]*warehouse.Warehouse, error) { return nil, nil }
func (r *fakeWarehouseRepo) ClearDefault(context.Context, id.ID) error            { return nil }
func (r *fakeWarehouseRepo) SoftDelete(context.Context, id.ID) error              { return nil }

type stockKey struct {
	productID   id.ID
	warehouseID id.ID
}

type fakeStockRepo struct {
	levels    map[stockKey]stock.Level
	movements []stock.Movement
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{levels: make(map[stockKey]stock.Level)}
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

// fakeTxManager snapshots sale and stock state at the outermost transaction
// and restores both when fn fails.
type fakeTxManager struct {
	sales *fakeSaleRepo
	stock *fakeStockRepo
	depth int
	hooks []tx.Hook
}

func (m *fakeTxManager) AfterCommit(ctx context.Context, fn tx.Hook) {
	if m.depth > 0 {
		m.hooks = append(m.hooks, fn)
		return
	}
	fn(ctx)
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.depth++
	var savedLevels map[stockKey]stock.Level
	var savedMovements []stock.Movement
	var savedByID map[id.ID]*Sale
	var savedByKey map[string]*Sale
	if m.depth == 1 {
		savedLevels = make(map[stockKey]stock.Level, len(m.stock.levels))
		for k, v := range m.stock.levels {
			savedLevels[k] = v
		}
		savedMovements = append(savedMovements, m.stock.movements...)
		savedByID = make(map[id.ID]*Sale, len(m.sales.byID))
		for k, v := range m.sales.byID {
			clone := *v
			savedByID[k] = &clone
		}
		savedByKey = make(map[string]*Sale, len(m.sales.byKey))
		for k, v := range m.sales.byKey {
			clone := *v
			savedByKey[k] = &clone
		}
	}

	err := fn(ctx)
	if err != nil && m.depth == 1 {
		m.stock.levels = savedLevels
		m.stock.movements = savedMovements
		m.sales.byID = savedByID
		m.sales.byKey = savedByKey
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

type fakeRow struct{ val int64 }

func (r *fakeRow) Scan(dest ...any) error {
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = r.val
		}
	}
	return nil
}

type fakeNumQuerier struct{ seq int64 }

func (q *fakeNumQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	q.seq++
	return &fakeRow{val: q.seq}
}

// --- test fixture ---

type fixture struct {
	service   *Service
	saleRepo  *fakeSaleRepo
	stockRepo *fakeStockRepo
	stockSvc  *stock.Service
	warehouse *warehouse.Warehouse
	actor     id.ID
}

func newFixture(t *testing.T, skus map[string]string) (*fixture, map[string]id.ID) {
	t.Helper()

	saleRepo := newFakeSaleRepo()
	stockRepo := newFakeStockRepo()
	txManager := &fakeTxManager{sales: saleRepo, stock: stockRepo}
	stockSvc := stock.NewService(stockRepo, txManager, nil)

	wh := warehouse.New("MAIN", "Main Store")
	wh.IsDefault = true

	productRepo := &fakeProductRepo{products: make(map[id.ID]*product.Product)}
	productIDs := make(map[string]id.ID, len(skus))
	for sku, price := range skus {
		p := product.New(sku, "Product "+sku, types.MustMoney(price))
		require.NoError(t, productRepo.Create(context.Background(), p))
		productIDs[sku] = p.ID
	}

	service := NewService(
		saleRepo,
		stockSvc,
		productRepo,
		&fakeWarehouseRepo{def: wh},
		numerator.New(&fakeNumQuerier{}),
		txManager,
	)

	return &fixture{
		service:   service,
		saleRepo:  saleRepo,
		stockRepo: stockRepo,
		stockSvc:  stockSvc,
		warehouse: wh,
		actor:     id.New(),
	}, productIDs
}

func (f *fixture) setStock(t *testing.T, productID id.ID, quantity int64) {
	t.Helper()
	_, err := f.stockSvc.Adjust(context.Background(), productID, f.warehouse.ID, quantity, "initial stock", nil)
	require.NoError(t, err)
}

func (f *fixture) level(t *testing.T, productID id.ID) int64 {
	t.Helper()
	quantity, err := f.stockSvc.GetStockLevel(context.Background(), productID, f.warehouse.ID)
	require.NoError(t, err)
	return quantity
}

// --- tests ---

func TestCreatePOSSale_Online(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "12.50"})
	ctx := context.Background()
	coffee := ids["COF-001"]
	f.setStock(t, coffee, 10)

	result, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "sale-1",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 4}},
	}, false)
	require.NoError(t, err)

	sale := result.Sale
	assert.False(t, result.Duplicate)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, StatusCompleted, sale.Status)
	assert.False(t, sale.HasStockConflict)
	assert.True(t, sale.IsSynced)
	assert.NotEmpty(t, sale.InvoiceNumber)
	assert.Equal(t, f.warehouse.ID, sale.WarehouseID)

	require.Len(t, sale.Items, 1)
	assert.Equal(t, "COF-001", sale.Items[0].ProductSKU)
	assert.True(t, sale.Subtotal.Equal(types.MustMoney("50")))
	assert.True(t, sale.Total.Equal(types.MustMoney("50")))

	// Defaulted cash payment covers the total.
	require.Len(t, sale.Payments, 1)
	assert.Equal(t, DefaultPaymentMethod, sale.Payments[0].Method)
	assert.True(t, sale.Payments[0].Amount.Equal(sale.Total))

	assert.Equal(t, int64(6), f.level(t, coffee))
}

func TestCreatePOSSale_Online_InsufficientStockFailsWholeSale(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "12.50"})
	ctx := context.Background()
	coffee := ids["COF-001"]
	f.setStock(t, coffee, 10)

	_, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "sale-1",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 12}},
	}, false)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, int64(10), f.level(t, coffee))
	assert.Empty(t, f.saleRepo.byID)
}

func TestCreatePOSSale_Online_SecondItemRollsBackFirst(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "12.50", "TEA-001": "6.90"})
	ctx := context.Background()
	coffee, tea := ids["COF-001"], ids["TEA-001"]
	f.setStock(t, coffee, 10)
	f.setStock(t, tea, 1)

	_, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "sale-1",
		Actor:          f.actor,
		Items: []ItemInput{
			{ProductID: coffee, Quantity: 2},
			{ProductID: tea, Quantity: 5},
		},
	}, false)
	require.Error(t, err)

	assert.Equal(t, int64(10), f.level(t, coffee))
	assert.Equal(t, int64(1), f.level(t, tea))
	assert.Empty(t, f.saleRepo.byID)
}

func TestCreatePOSSale_Offline_ForceDeductsAndFlagsConflict(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "12.50"})
	ctx := context.Background()
	coffee := ids["COF-001"]
	f.setStock(t, coffee, 10)

	clientUUID := "device-1"
	result, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "offline-1",
		ClientUUID:     &clientUUID,
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 12}},
	}, true)
	require.NoError(t, err)

	assert.True(t, result.Sale.HasStockConflict)
	assert.False(t, result.Sale.IsSynced)
	require.Len(t, result.Conflicts, 1)

	conflict := result.Conflicts[0]
	assert.Equal(t, coffee, conflict.ProductID)
	assert.Equal(t, int64(12), conflict.Requested)
	assert.Equal(t, int64(10), conflict.Available)
	assert.Equal(t, int64(2), conflict.Deficit)

	assert.Equal(t, int64(-2), f.level(t, coffee))
}

func TestCreatePOSSale_IdempotentReplay(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "12.50"})
	ctx := context.Background()
	coffee := ids["COF-001"]
	f.setStock(t, coffee, 10)

	input := CreateInput{
		IdempotencyKey: "sale-1",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 4}},
	}

	first, err := f.service.CreatePOSSale(ctx, input, false)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	replay, err := f.service.CreatePOSSale(ctx, input, false)
	require.NoError(t, err)

	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Sale.ID, replay.Sale.ID)

	// Replay causes no side effects: one sale, stock deducted once.
	assert.Len(t, f.saleRepo.byID, 1)
	assert.Equal(t, int64(6), f.level(t, coffee))
}

func TestCreatePOSSale_Discounts(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "10.00"})
	ctx := context.Background()
	coffee := ids["COF-001"]
	f.setStock(t, coffee, 100)

	percent, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "pct",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 10}},
		DiscountAmount: types.MustMoney("10"),
		DiscountType:   DiscountPercentage,
	}, false)
	require.NoError(t, err)
	assert.True(t, percent.Sale.Total.Equal(types.MustMoney("90")), "10%% off 100, got %s", percent.Sale.Total)

	flat, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "flat",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 10}},
		DiscountAmount: types.MustMoney("15"),
		DiscountType:   DiscountFlat,
	}, false)
	require.NoError(t, err)
	assert.True(t, flat.Sale.Total.Equal(types.MustMoney("85")))
}

func TestCreatePOSSale_Validation(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "10.00"})
	ctx := context.Background()
	coffee := ids["COF-001"]

	_, err := f.service.CreatePOSSale(ctx, CreateInput{
		Actor: f.actor,
		Items: []ItemInput{{ProductID: coffee, Quantity: 1}},
	}, false)
	require.Error(t, err, "missing idempotency key")

	_, err = f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "no-items",
		Actor:          f.actor,
	}, false)
	require.Error(t, err, "empty items")

	_, err = f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "bad-qty",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 0}},
	}, false)
	require.Error(t, err, "zero quantity")
}

func TestProcessFullRefund(t *testing.T) {
	f, ids := newFixture(t, map[string]string{"COF-001": "12.50"})
	ctx := context.Background()
	coffee := ids["COF-001"]
	f.setStock(t, coffee, 10)

	created, err := f.service.CreatePOSSale(ctx, CreateInput{
		IdempotencyKey: "sale-1",
		Actor:          f.actor,
		Items:          []ItemInput{{ProductID: coffee, Quantity: 4}},
	}, false)
	require.NoError(t, err)
	require.Equal(t, int64(6), f.level(t, coffee))

	refunded, err := f.service.ProcessFullRefund(ctx, created.Sale.ID, "customer changed mind", f.actor)
	require.NoError(t, err)

	assert.Equal(t, StatusRefunded, refunded.Status)
	for _, p := range refunded.Payments {
		assert.Equal(t, PaymentRefunded, p.Status)
	}
	assert.Equal(t, int64(10), f.level(t, coffee))

	// Second refund is rejected.
	_, err = f.service.ProcessFullRefund(ctx, created.Sale.ID, "again", f.actor)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAlreadyRefunded, appErr.Code)
}

func TestComputeLineTotal_FlooredAtZero(t *testing.T) {
	item := SaleItem{
		Quantity:       2,
		UnitPrice:      types.MustMoney("3.00"),
		DiscountAmount: types.MustMoney("10.00"),
	}
	assert.True(t, item.ComputeLineTotal().Equal(types.ZeroMoney()))
}

// Reports derive the resolved discount as subtotal minus total, so the
// derivation must hold for both discount types.
func TestApplyDiscount_ResolvedAmountIsSubtotalMinusTotal(t *testing.T) {
	subtotal := types.MustMoney("200")

	pctTotal := applyDiscount(subtotal, DiscountPercentage, types.MustMoney("10"))
	assert.True(t, subtotal.Sub(pctTotal).Equal(types.MustMoney("20")))

	flatTotal := applyDiscount(subtotal, DiscountFlat, types.MustMoney("15"))
	assert.True(t, subtotal.Sub(flatTotal).Equal(types.MustMoney("15")))

	// A discount larger than the subtotal floors the total at zero, so the
	// resolved discount never exceeds the subtotal.
	floored := applyDiscount(subtotal, DiscountFlat, types.MustMoney("500"))
	assert.True(t, subtotal.Sub(floored).Equal(subtotal))
}
