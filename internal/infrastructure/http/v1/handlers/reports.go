package handlers

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/domain/reports"
	"stradapos/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles reporting endpoints.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// SalesSummary handles GET /reports/sales-summary
func (h *ReportsHandler) SalesSummary(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PeriodRequest
	if !h.BindQuery(c, &req) {
		return
	}

	period, err := req.ToPeriod()
	if err != nil {
		h.Error(c, err)
		return
	}

	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}

	summary, err := h.service.SalesSummary(ctx, period, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, summary)
}

// ConflictSummary handles GET /reports/conflict-summary
func (h *ReportsHandler) ConflictSummary(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PeriodRequest
	if !h.BindQuery(c, &req) {
		return
	}

	period, err := req.ToPeriod()
	if err != nil {
		h.Error(c, err)
		return
	}

	summary, err := h.service.ConflictSummary(ctx, period)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, summary)
}
