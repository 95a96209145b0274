package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/types"
	"stradapos/internal/domain/sales"
	"stradapos/pkg/logger"
	"stradapos/pkg/numerator"
)

// ItemPayment is one payment line of an offline sale payload.
type ItemPayment struct {
	Method   string       `json:"method"`
	Amount   *types.Money `json:"amount,omitempty"`
	Tendered *types.Money `json:"tendered,omitempty"`
}

// ItemLine is one product line of an offline sale payload.
type ItemLine struct {
	ProductID      id.ID        `json:"productId"`
	Quantity       int64        `json:"quantity"`
	UnitPrice      *types.Money `json:"unitPrice,omitempty"`
	DiscountAmount types.Money  `json:"discountAmount"`
}

// BatchItem is one offline sale as submitted by the client.
type BatchItem struct {
	IdempotencyKey string             `json:"idempotencyKey"`
	WarehouseID    *id.ID             `json:"warehouseId,omitempty"`
	Items          []ItemLine         `json:"items"`
	Payments       []ItemPayment      `json:"payments,omitempty"`
	DiscountAmount types.Money        `json:"discountAmount"`
	DiscountType   sales.DiscountType `json:"discountType,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty"`
}

// BatchInput is a batch of offline sales from one client device.
type BatchInput struct {
	ClientUUID string      `json:"clientUuid"`
	Actor      id.ID       `json:"-"`
	Items      []BatchItem `json:"items"`
}

// Status summarizes the sync state of one client device.
type Status struct {
	ClientUUID    string     `json:"clientUuid"`
	TotalLogs     int        `json:"totalLogs"`
	PendingCount  int        `json:"pendingCount"`
	SyncedCount   int        `json:"syncedCount"`
	FailedCount   int        `json:"failedCount"`
	ConflictCount int        `json:"conflictCount"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
}

// Service ingests offline sale batches. Each item is processed in its own
// transaction so one bad payload never blocks the rest of the batch.
type Service struct {
	logs    Repository
	sales   *sales.Service
	numbers *numerator.Service
}

// NewService creates a new sync service.
func NewService(logs Repository, saleSvc *sales.Service, numbers *numerator.Service) *Service {
	return &Service{logs: logs, sales: saleSvc, numbers: numbers}
}

// batchRefOptions allocates sync batch references in cached ranges. Gaps
// after a restart are acceptable for internal references.
var batchRefOptions = &numerator.Options{
	Strategy:  numerator.StrategyCached,
	RangeSize: 50,
}

// ProcessBatchSync ingests a batch of offline sales. Items are independent:
// a failed item is logged and reported, never propagated as a batch error.
// Replaying a batch re-reports already-synced items as duplicates without
// side effects.
func (s *Service) ProcessBatchSync(ctx context.Context, input BatchInput) (*BatchResult, error) {
	if input.ClientUUID == "" {
		return nil, apperror.NewValidation("client uuid is required")
	}
	if len(input.Items) == 0 {
		return nil, apperror.NewValidation("batch must have at least one item")
	}

	result := &BatchResult{
		Synced:     []SyncedItem{},
		Duplicates: []DuplicateItem{},
		Failed:     []FailedItem{},
		Conflicts:  []ConflictItem{},
	}

	batchRef, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("SYNC"), batchRefOptions, time.Now())
	if err != nil {
		return nil, fmt.Errorf("allocate batch reference: %w", err)
	}
	result.BatchRef = batchRef

	for _, item := range input.Items {
		s.processItem(ctx, input, item, result)
	}

	logger.Info(ctx, "batch sync processed",
		"batch_ref", result.BatchRef,
		"client_uuid", input.ClientUUID,
		"synced", len(result.Synced),
		"duplicates", len(result.Duplicates),
		"failed", len(result.Failed),
		"conflicts", len(result.Conflicts),
	)
	return result, nil
}

func (s *Service) processItem(ctx context.Context, batch BatchInput, item BatchItem, result *BatchResult) {
	if item.IdempotencyKey == "" {
		result.Failed = append(result.Failed, FailedItem{Error: "idempotency key is required"})
		return
	}

	// Fast path: a synced or duplicate log means this item already landed.
	if log, err := s.logs.GetByIdempotencyKey(ctx, item.IdempotencyKey); err == nil {
		if log.Status == LogSynced || log.Status == LogDuplicate {
			dup := DuplicateItem{IdempotencyKey: item.IdempotencyKey}
			if log.EntityID != nil {
				if sale, err := s.sales.GetByID(ctx, *log.EntityID); err == nil {
					dup.SaleID = sale.ID
					dup.InvoiceNumber = sale.InvoiceNumber
				}
			}
			result.Duplicates = append(result.Duplicates, dup)
			return
		}
		// pending or failed: fall through and retry the ingest against the
		// existing log row.
		s.ingest(ctx, batch, item, log, result)
		return
	} else if !apperror.IsNotFound(err) {
		result.Failed = append(result.Failed, FailedItem{
			IdempotencyKey: item.IdempotencyKey,
			Error:          fmt.Sprintf("sync log lookup: %v", err),
		})
		return
	}

	payload, err := json.Marshal(item)
	if err != nil {
		result.Failed = append(result.Failed, FailedItem{
			IdempotencyKey: item.IdempotencyKey,
			Error:          fmt.Sprintf("encode payload: %v", err),
		})
		return
	}

	now := time.Now().UTC()
	log := &Log{
		ID:             id.New(),
		IdempotencyKey: item.IdempotencyKey,
		ClientUUID:     batch.ClientUUID,
		EntityType:     "sale",
		Status:         LogPending,
		RequestPayload: payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.logs.Create(ctx, log); err != nil {
		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeDuplicate {
			// Concurrent sync of the same key; let the client retry.
			result.Duplicates = append(result.Duplicates, DuplicateItem{IdempotencyKey: item.IdempotencyKey})
			return
		}
		result.Failed = append(result.Failed, FailedItem{
			IdempotencyKey: item.IdempotencyKey,
			Error:          fmt.Sprintf("create sync log: %v", err),
		})
		return
	}

	s.ingest(ctx, batch, item, log, result)
}

// ingest runs the sale creation for one logged item and records the outcome
// on the log row. Offline sales always allow negative stock.
func (s *Service) ingest(ctx context.Context, batch BatchInput, item BatchItem, log *Log, result *BatchResult) {
	clientUUID := batch.ClientUUID
	input := sales.CreateInput{
		IdempotencyKey: item.IdempotencyKey,
		ClientUUID:     &clientUUID,
		WarehouseID:    item.WarehouseID,
		Actor:          batch.Actor,
		DiscountAmount: item.DiscountAmount,
		DiscountType:   item.DiscountType,
		Notes:          item.Notes,
		CompletedAt:    item.CompletedAt,
	}
	for _, line := range item.Items {
		input.Items = append(input.Items, sales.ItemInput{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			DiscountAmount: &line.DiscountAmount,
		})
	}
	for _, p := range item.Payments {
		input.Payments = append(input.Payments, sales.PaymentInput{
			Method:   p.Method,
			Amount:   p.Amount,
			Tendered: p.Tendered,
		})
	}

	created, err := s.sales.CreatePOSSale(ctx, input, true)
	now := time.Now().UTC()
	log.UpdatedAt = now

	if err != nil {
		msg := err.Error()
		log.Status = LogFailed
		log.ErrorMessage = &msg
		if uerr := s.logs.Update(ctx, log); uerr != nil {
			logger.Error(ctx, "mark sync log failed", "error", uerr, "idempotency_key", item.IdempotencyKey)
		}
		result.Failed = append(result.Failed, FailedItem{
			IdempotencyKey: item.IdempotencyKey,
			Error:          msg,
		})
		return
	}

	log.EntityID = &created.Sale.ID
	log.ErrorMessage = nil
	log.SyncedAt = &now
	if created.Duplicate {
		log.Status = LogDuplicate
	} else {
		log.Status = LogSynced
	}
	log.Conflicts = created.Conflicts
	if err := s.logs.Update(ctx, log); err != nil {
		logger.Error(ctx, "mark sync log synced", "error", err, "idempotency_key", item.IdempotencyKey)
	}

	if created.Duplicate {
		result.Duplicates = append(result.Duplicates, DuplicateItem{
			IdempotencyKey: item.IdempotencyKey,
			SaleID:         created.Sale.ID,
			InvoiceNumber:  created.Sale.InvoiceNumber,
		})
		return
	}

	result.Synced = append(result.Synced, SyncedItem{
		IdempotencyKey: item.IdempotencyKey,
		SaleID:         created.Sale.ID,
		InvoiceNumber:  created.Sale.InvoiceNumber,
		Total:          created.Sale.Total,
	})
	if len(created.Conflicts) > 0 {
		result.Conflicts = append(result.Conflicts, ConflictItem{
			IdempotencyKey: item.IdempotencyKey,
			SaleID:         created.Sale.ID,
			InvoiceNumber:  created.Sale.InvoiceNumber,
			Conflicts:      created.Conflicts,
		})
	}
}

// SyncStatus summarizes the sync history of one client device.
func (s *Service) SyncStatus(ctx context.Context, clientUUID string) (*Status, error) {
	if clientUUID == "" {
		return nil, apperror.NewValidation("client uuid is required")
	}
	logs, err := s.logs.List(ctx, ListFilter{ClientUUID: clientUUID})
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}

	st := &Status{ClientUUID: clientUUID, TotalLogs: len(logs)}
	for _, l := range logs {
		switch l.Status {
		case LogPending:
			st.PendingCount++
		case LogSynced, LogDuplicate:
			st.SyncedCount++
		case LogFailed:
			st.FailedCount++
		}
		if l.HasConflicts() {
			st.ConflictCount++
		}
		if l.SyncedAt != nil && (st.LastSyncedAt == nil || l.SyncedAt.After(*st.LastSyncedAt)) {
			st.LastSyncedAt = l.SyncedAt
		}
	}
	return st, nil
}

// ListLogs returns sync logs matching the filter.
func (s *Service) ListLogs(ctx context.Context, filter ListFilter) ([]*Log, error) {
	return s.logs.List(ctx, filter)
}

// GetLog returns one sync log by id.
func (s *Service) GetLog(ctx context.Context, logID id.ID) (*Log, error) {
	return s.logs.GetByID(ctx, logID)
}

// ResolveLogConflict annotates a conflicted log once its sale has been
// reconciled. The sale itself is resolved by the reconcile service.
func (s *Service) ResolveLogConflict(ctx context.Context, logID id.ID, note string) (*Log, error) {
	log, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if !log.HasConflicts() {
		return nil, apperror.NewNoStockConflict(log.ID.String())
	}
	log.ResolutionNote = &note
	log.UpdatedAt = time.Now().UTC()
	if err := s.logs.Update(ctx, log); err != nil {
		return nil, fmt.Errorf("update sync log: %w", err)
	}
	return log, nil
}
