package handlers

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/domain/reconcile"
	"stradapos/internal/infrastructure/http/v1/dto"
)

// ReconcileHandler handles stock conflict resolution endpoints.
type ReconcileHandler struct {
	*BaseHandler
	service *reconcile.Service
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(base *BaseHandler, service *reconcile.Service) *ReconcileHandler {
	return &ReconcileHandler{
		BaseHandler: base,
		service:     service,
	}
}

// ListConflicts handles GET /reconciliation/conflicts
func (h *ReconcileHandler) ListConflicts(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	offset := h.ParseIntQuery(c, "offset", 0)

	conflicts, err := h.service.ListConflicts(ctx, warehouseID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      conflicts,
		TotalCount: len(conflicts),
		Limit:      limit,
		Offset:     offset,
	})
}

// Get handles GET /reconciliation/conflicts/:id
func (h *ReconcileHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	sale, err := h.service.Get(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}

// History handles GET /reconciliation/conflicts/:id/history
func (h *ReconcileHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.History(ctx, saleID, h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      entries,
		TotalCount: len(entries),
	})
}

// Accept handles POST /reconciliation/conflicts/:id/accept
func (h *ReconcileHandler) Accept(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReconcileAcceptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sale, err := h.service.Accept(ctx, saleID, req.Note, actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}

// Adjust handles POST /reconciliation/conflicts/:id/adjust
func (h *ReconcileHandler) Adjust(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReconcileAdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	adjustments, err := req.ToAdjustments()
	if err != nil {
		h.Error(c, err)
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sale, err := h.service.Adjust(ctx, saleID, adjustments, req.Note, actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}

// Void handles POST /reconciliation/conflicts/:id/void
func (h *ReconcileHandler) Void(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReconcileVoidRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sale, err := h.service.Void(ctx, saleID, req.Note, actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}
