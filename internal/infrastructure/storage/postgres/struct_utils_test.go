package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stradapos/internal/core/id"
	"stradapos/internal/domain/catalogs/product"
	"stradapos/internal/domain/stock"
)

type timestamps struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type taggedRow struct {
	timestamps
	Code   string `db:"code"`
	Name   string `db:"name"`
	Loaded string `db:"-"`
	NoTag  string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[taggedRow]()

	expected := []string{"created_at", "updated_at", "code", "name"}
	for _, col := range expected {
		assert.Contains(t, cols, col)
	}
	assert.NotContains(t, cols, "-")
	assert.Len(t, cols, len(expected))
}

func TestExtractDBColumns_DomainTypes(t *testing.T) {
	cols := ExtractDBColumns[product.Product]()
	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "sku")
	assert.Contains(t, cols, "min_stock_level")

	cols = ExtractDBColumns[stock.Movement]()
	assert.Contains(t, cols, "quantity_change")
	assert.Contains(t, cols, "quantity_before")
	assert.Contains(t, cols, "quantity_after")
	assert.Contains(t, cols, "reference_kind")
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	row := taggedRow{
		timestamps: timestamps{CreatedAt: now, UpdatedAt: now},
		Code:       "WH-01",
		Name:       "Main warehouse",
		Loaded:     "skipped",
		NoTag:      "skipped",
	}

	m := StructToMap(row)

	assert.Equal(t, "WH-01", m["code"])
	assert.Equal(t, "Main warehouse", m["name"])
	assert.Equal(t, now, m["created_at"])
	assert.Len(t, m, 4)
}

func TestStructToMap_Movement(t *testing.T) {
	saleID := id.New()
	m := StructToMap(&stock.Movement{
		ID:             id.New(),
		ProductID:      id.New(),
		WarehouseID:    id.New(),
		QuantityChange: -3,
		QuantityBefore: 10,
		QuantityAfter:  7,
		Type:           stock.MovementSale,
		ReferenceKind:  stock.RefSale,
		ReferenceID:    &saleID,
	})

	assert.Equal(t, int64(-3), m["quantity_change"])
	assert.Equal(t, int64(10), m["quantity_before"])
	assert.Equal(t, int64(7), m["quantity_after"])
	assert.Equal(t, stock.MovementSale, m["type"])
	assert.Equal(t, &saleID, m["reference_id"])
}
