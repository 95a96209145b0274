package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/domain/sales"
	syncdom "stradapos/internal/domain/sync"
)

const syncLogsTable = "sync_logs"

// storedSyncLog is the persisted shape of a sync log. Conflicts are stored
// as a jsonb array.
type storedSyncLog struct {
	ID             id.ID           `db:"id"`
	IdempotencyKey string          `db:"idempotency_key"`
	ClientUUID     string          `db:"client_uuid"`
	EntityType     string          `db:"entity_type"`
	EntityID       *id.ID          `db:"entity_id"`
	Status         syncdom.LogStatus `db:"status"`
	RequestPayload []byte          `db:"request_payload"`
	ErrorMessage   *string         `db:"error_message"`
	Conflicts      []byte          `db:"conflicts"`
	ResolutionNote *string         `db:"resolution_note"`
	SyncedAt       *time.Time      `db:"synced_at"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func toStoredSyncLog(log *syncdom.Log) (*storedSyncLog, error) {
	stored := &storedSyncLog{
		ID:             log.ID,
		IdempotencyKey: log.IdempotencyKey,
		ClientUUID:     log.ClientUUID,
		EntityType:     log.EntityType,
		EntityID:       log.EntityID,
		Status:         log.Status,
		RequestPayload: log.RequestPayload,
		ErrorMessage:   log.ErrorMessage,
		ResolutionNote: log.ResolutionNote,
		SyncedAt:       log.SyncedAt,
		CreatedAt:      log.CreatedAt,
		UpdatedAt:      log.UpdatedAt,
	}
	if len(log.Conflicts) > 0 {
		b, err := json.Marshal(log.Conflicts)
		if err != nil {
			return nil, fmt.Errorf("marshal conflicts: %w", err)
		}
		stored.Conflicts = b
	}
	return stored, nil
}

func (s *storedSyncLog) toDomain() (*syncdom.Log, error) {
	log := &syncdom.Log{
		ID:             s.ID,
		IdempotencyKey: s.IdempotencyKey,
		ClientUUID:     s.ClientUUID,
		EntityType:     s.EntityType,
		EntityID:       s.EntityID,
		Status:         s.Status,
		RequestPayload: s.RequestPayload,
		ErrorMessage:   s.ErrorMessage,
		ResolutionNote: s.ResolutionNote,
		SyncedAt:       s.SyncedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if len(s.Conflicts) > 0 {
		var conflicts []sales.StockConflict
		if err := json.Unmarshal(s.Conflicts, &conflicts); err != nil {
			return nil, fmt.Errorf("unmarshal conflicts: %w", err)
		}
		log.Conflicts = conflicts
	}
	return log, nil
}

// SyncLogRepo implements sync.Repository.
type SyncLogRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ syncdom.Repository = (*SyncLogRepo)(nil)

// NewSyncLogRepo creates a new sync log repository.
func NewSyncLogRepo(txManager *TxManager) *SyncLogRepo {
	return &SyncLogRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new log row. A duplicate idempotency key surfaces as
// CodeDuplicate.
func (r *SyncLogRepo) Create(ctx context.Context, log *syncdom.Log) error {
	stored, err := toStoredSyncLog(log)
	if err != nil {
		return err
	}

	q := r.builder.Insert(syncLogsTable).SetMap(StructToMap(stored))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("sync log", "idempotency_key", log.IdempotencyKey).WithCause(err)
		}
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// Update writes mutable log fields.
func (r *SyncLogRepo) Update(ctx context.Context, log *syncdom.Log) error {
	stored, err := toStoredSyncLog(log)
	if err != nil {
		return err
	}

	m := StructToMap(stored)
	delete(m, "id")
	delete(m, "idempotency_key")
	delete(m, "created_at")

	q := r.builder.Update(syncLogsTable).
		SetMap(m).
		Where(squirrel.Eq{"id": log.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sync log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sync log", log.ID)
	}
	return nil
}

// GetByID loads one log.
func (r *SyncLogRepo) GetByID(ctx context.Context, logID id.ID) (*syncdom.Log, error) {
	return r.getOne(ctx, squirrel.Eq{"id": logID}, logID)
}

// GetByIdempotencyKey loads one log by key.
func (r *SyncLogRepo) GetByIdempotencyKey(ctx context.Context, key string) (*syncdom.Log, error) {
	return r.getOne(ctx, squirrel.Eq{"idempotency_key": key}, key)
}

func (r *SyncLogRepo) getOne(ctx context.Context, where squirrel.Eq, entityID any) (*syncdom.Log, error) {
	q := r.builder.Select(ExtractDBColumns[storedSyncLog]()...).
		From(syncLogsTable).
		Where(where).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var stored storedSyncLog
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &stored, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sync log", entityID)
		}
		return nil, fmt.Errorf("get sync log: %w", err)
	}

	return stored.toDomain()
}

// List returns logs matching the filter, newest first.
func (r *SyncLogRepo) List(ctx context.Context, filter syncdom.ListFilter) ([]*syncdom.Log, error) {
	q := r.builder.Select(ExtractDBColumns[storedSyncLog]()...).
		From(syncLogsTable)

	if filter.ClientUUID != "" {
		q = q.Where(squirrel.Eq{"client_uuid": filter.ClientUUID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Conflicted {
		q = q.Where("conflicts IS NOT NULL").
			Where("resolution_note IS NULL")
	}

	q = q.OrderBy("created_at DESC", "id DESC")

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

	var rows []*storedSyncLog
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select sync logs: %w", err)
	}

	logs := make([]*syncdom.Log, 0, len(rows))
	for _, row := range rows {
		log, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, nil
}
