// Package audit defines the audit trail contract used by domain services.
// The PostgreSQL implementation lives in infrastructure/storage/postgres.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"stradapos/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRefund Action = "refund"

	ActionStockAdjust   Action = "stock_adjust"
	ActionStockSet      Action = "stock_set"
	ActionStockTransfer Action = "stock_transfer"
	ActionForceDeduct   Action = "force_deduct"

	ActionReconcileAccept Action = "reconcile_accept"
	ActionReconcileAdjust Action = "reconcile_adjust"
	ActionReconcileVoid   Action = "reconcile_void"
)

// Entry represents a single audit log entry.
type Entry struct {
	ID         id.ID           `db:"id"`
	EntityType string          `db:"entity_type"`
	EntityID   id.ID           `db:"entity_id"`
	Action     Action          `db:"action"`
	UserID     string          `db:"user_id"`
	Changes    json.RawMessage `db:"changes"`
	CreatedAt  time.Time       `db:"created_at"`
}

// SetChanges marshals v into the Changes payload. Marshal failures leave
// Changes empty rather than failing the audited operation.
func (e *Entry) SetChanges(v any) {
	if b, err := json.Marshal(v); err == nil {
		e.Changes = b
	}
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// HistoryReader loads the recorded trail for one entity, newest first.
type HistoryReader interface {
	EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Entry) error { return nil }

func (nopRecorder) EntityHistory(context.Context, string, id.ID, int) ([]Entry, error) {
	return nil, nil
}

// Nop returns a recorder that drops all entries. Used in tests and when
// auditing is disabled.
func Nop() Recorder {
	return nopRecorder{}
}

// NopHistory returns a reader with no recorded trail.
func NopHistory() HistoryReader {
	return nopRecorder{}
}
