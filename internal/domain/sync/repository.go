package sync

import (
	"context"

	"stradapos/internal/core/id"
)

// ListFilter narrows sync log queries.
type ListFilter struct {
	ClientUUID string
	Status     LogStatus
	Conflicted bool
	Limit      int
	Offset     int
}

// Repository is the persistence port for sync logs.
type Repository interface {
	Create(ctx context.Context, log *Log) error
	Update(ctx context.Context, log *Log) error
	GetByID(ctx context.Context, logID id.ID) (*Log, error)
	// GetByIdempotencyKey returns apperror.CodeNotFound when no log exists.
	GetByIdempotencyKey(ctx context.Context, key string) (*Log, error)
	List(ctx context.Context, filter ListFilter) ([]*Log, error)
}
