// Package reports exposes read-only aggregates over sales and stock.
package reports

import (
	"time"

	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
)

// Period bounds a report query. Zero times mean unbounded.
type Period struct {
	From time.Time
	To   time.Time
}

// SalesSummary aggregates completed sales over a period.
type SalesSummary struct {
	Period          Period         `json:"period"`
	SaleCount       int64          `json:"saleCount"`
	RefundCount     int64          `json:"refundCount"`
	GrossTotal      types.Money    `json:"grossTotal"`
	DiscountTotal   types.Money    `json:"discountTotal"`
	NetTotal        types.Money    `json:"netTotal"`
	RefundedTotal   types.Money    `json:"refundedTotal"`
	ByPaymentMethod []MethodTotal  `json:"byPaymentMethod"`
	TopProducts     []ProductSales `json:"topProducts"`
}

// MethodTotal is revenue received through one payment method.
type MethodTotal struct {
	Method string      `db:"method" json:"method"`
	Count  int64       `db:"count" json:"count"`
	Amount types.Money `db:"amount" json:"amount"`
}

// ProductSales is units and revenue of one product over the period.
type ProductSales struct {
	ProductID   id.ID       `db:"product_id" json:"productId"`
	ProductName string      `db:"product_name" json:"productName"`
	ProductSKU  string      `db:"product_sku" json:"productSku"`
	Quantity    int64       `db:"quantity" json:"quantity"`
	Revenue     types.Money `db:"revenue" json:"revenue"`
}

// ConflictSummary counts offline sales accepted despite insufficient stock.
type ConflictSummary struct {
	Period          Period `json:"period"`
	OpenConflicts   int64  `json:"openConflicts"`
	ResolvedInRange int64  `json:"resolvedInRange"`
	OfflineSales    int64  `json:"offlineSales"`
	SyncedSales     int64  `json:"syncedSales"`
}
