package handlers

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/core/apperror"
	syncdom "stradapos/internal/domain/sync"
	"stradapos/internal/infrastructure/http/v1/dto"
)

// SyncHandler handles offline batch sync endpoints.
type SyncHandler struct {
	*BaseHandler
	service *syncdom.Service
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(base *BaseHandler, service *syncdom.Service) *SyncHandler {
	return &SyncHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Batch handles POST /local/sync
//
// The batch result is always 200: per-item failures are reported in the
// response body, never as an HTTP error.
func (h *SyncHandler) Batch(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.BatchSyncRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	result, err := h.service.ProcessBatchSync(ctx, req.ToBatchInput(actor))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Status handles GET /local/sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	clientUUID := c.Query("clientUuid")
	if clientUUID == "" {
		h.Error(c, apperror.NewValidation("clientUuid is required"))
		return
	}

	status, err := h.service.SyncStatus(ctx, clientUUID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, status)
}

// ListLogs handles GET /local/sync/logs
func (h *SyncHandler) ListLogs(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SyncLogFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}

	logs, err := h.service.ListLogs(ctx, req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      logs,
		TotalCount: len(logs),
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

// GetLog handles GET /local/sync/logs/:id
func (h *SyncHandler) GetLog(c *gin.Context) {
	ctx := c.Request.Context()

	logID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	log, err := h.service.GetLog(ctx, logID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, log)
}

// ListConflicts handles GET /local/conflicts
//
// Sync-log-level conflicts, distinct from sale-level reconciliation.
func (h *SyncHandler) ListConflicts(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SyncLogFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter := req.ToFilter()
	filter.Conflicted = true

	logs, err := h.service.ListLogs(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      logs,
		TotalCount: len(logs),
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

// ResolveLog handles POST /local/conflicts/:id/resolve
func (h *SyncHandler) ResolveLog(c *gin.Context) {
	ctx := c.Request.Context()

	logID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ResolveConflictRequest
	if !h.BindJSON(c, &req) {
		return
	}

	log, err := h.service.ResolveLogConflict(ctx, logID, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, log)
}
