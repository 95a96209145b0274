package dto

import (
	"stradapos/internal/core/id"
	syncdom "stradapos/internal/domain/sync"
)

// BatchSyncRequest is a batch of offline sales from one client device.
// Item payloads bind directly to the domain types; per-item validation is the
// sync service's job so one bad item never rejects the whole batch.
type BatchSyncRequest struct {
	ClientUUID string              `json:"clientUuid" binding:"required"`
	Items      []syncdom.BatchItem `json:"items" binding:"required,min=1"`
}

// ToBatchInput converts the request to a domain input.
func (r *BatchSyncRequest) ToBatchInput(actor id.ID) syncdom.BatchInput {
	return syncdom.BatchInput{
		ClientUUID: r.ClientUUID,
		Actor:      actor,
		Items:      r.Items,
	}
}

// ResolveConflictRequest annotates a conflicted sync log as resolved.
type ResolveConflictRequest struct {
	Note string `json:"note" binding:"required"`
}

// SyncLogFilterRequest for sync log listing.
type SyncLogFilterRequest struct {
	ClientUUID string `form:"clientUuid"`
	Status     string `form:"status" binding:"omitempty,oneof=pending synced duplicate failed"`
	Conflicted bool   `form:"conflicted"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// ToFilter converts to a domain filter with defaults applied.
func (r *SyncLogFilterRequest) ToFilter() syncdom.ListFilter {
	limit := r.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return syncdom.ListFilter{
		ClientUUID: r.ClientUUID,
		Status:     syncdom.LogStatus(r.Status),
		Conflicted: r.Conflicted,
		Limit:      limit,
		Offset:     r.Offset,
	}
}
