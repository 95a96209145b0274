// Package sync provides batch ingestion of sales from disconnected POS clients.
package sync

import (
	"time"

	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/sales"
)

// LogStatus is the lifecycle state of one sync log row.
type LogStatus string

const (
	LogPending   LogStatus = "pending"
	LogSynced    LogStatus = "synced"
	LogDuplicate LogStatus = "duplicate"
	LogFailed    LogStatus = "failed"
)

// Log is the audit trail for one incoming offline sale payload, keyed by
// idempotency key. Rows are never deleted.
type Log struct {
	ID             id.ID                 `db:"id" json:"id"`
	IdempotencyKey string                `db:"idempotency_key" json:"idempotencyKey"`
	ClientUUID     string                `db:"client_uuid" json:"clientUuid"`
	EntityType     string                `db:"entity_type" json:"entityType"`
	EntityID       *id.ID                `db:"entity_id" json:"entityId,omitempty"`
	Status         LogStatus             `db:"status" json:"status"`
	RequestPayload []byte                `db:"request_payload" json:"-"`
	ErrorMessage   *string               `db:"error_message" json:"errorMessage,omitempty"`
	Conflicts      []sales.StockConflict `db:"conflicts" json:"conflicts,omitempty"`
	ResolutionNote *string               `db:"resolution_note" json:"resolutionNote,omitempty"`
	SyncedAt       *time.Time            `db:"synced_at" json:"syncedAt,omitempty"`
	CreatedAt      time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updatedAt"`
}

// HasConflicts reports whether the log carries unresolved stock conflicts.
func (l *Log) HasConflicts() bool {
	return len(l.Conflicts) > 0 && l.ResolutionNote == nil
}

// SyncedItem reports one successfully ingested sale.
type SyncedItem struct {
	IdempotencyKey string      `json:"idempotencyKey"`
	SaleID         id.ID       `json:"saleId"`
	InvoiceNumber  string      `json:"invoiceNumber"`
	Total          types.Money `json:"total"`
}

// DuplicateItem reports an already-ingested payload; no side effects occurred.
type DuplicateItem struct {
	IdempotencyKey string `json:"idempotencyKey"`
	SaleID         id.ID  `json:"saleId"`
	InvoiceNumber  string `json:"invoiceNumber"`
}

// FailedItem reports a payload that could not be ingested.
type FailedItem struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Error          string `json:"error"`
}

// ConflictItem reports a sale accepted despite insufficient stock.
type ConflictItem struct {
	IdempotencyKey string                `json:"idempotencyKey"`
	SaleID         id.ID                 `json:"saleId"`
	InvoiceNumber  string                `json:"invoiceNumber"`
	Conflicts      []sales.StockConflict `json:"conflicts"`
}

// BatchResult classifies every item of a batch. A retried batch is a no-op
// for already-synced items.
type BatchResult struct {
	BatchRef   string          `json:"batchRef"`
	Synced     []SyncedItem    `json:"synced"`
	Duplicates []DuplicateItem `json:"duplicates"`
	Failed     []FailedItem    `json:"failed"`
	Conflicts  []ConflictItem  `json:"conflicts"`
}

// Summary returns the per-bucket counts the API layer reports.
func (r *BatchResult) Summary() map[string]int {
	return map[string]int{
		"synced_count":    len(r.Synced),
		"duplicate_count": len(r.Duplicates),
		"failed_count":    len(r.Failed),
		"conflict_count":  len(r.Conflicts),
	}
}
