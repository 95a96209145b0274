package handlers

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/domain/sales"
	"stradapos/internal/infrastructure/http/v1/dto"
)

// SalesHandler handles POS sale endpoints.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
	repo    sales.Repository
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, service *sales.Service, repo sales.Repository) *SalesHandler {
	return &SalesHandler{
		BaseHandler: base,
		service:     service,
		repo:        repo,
	}
}

// Create handles POST /sales/pos
//
// Online mode rejects the sale when stock is insufficient. Offline mode
// force-deducts and reports conflicts instead.
func (h *SalesHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	input, err := req.ToCreateInput(actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.CreatePOSSale(ctx, input, req.AllowNegativeStock())
	if err != nil {
		h.Error(c, err)
		return
	}

	status := 201
	if result.Duplicate {
		status = 200
	}
	c.JSON(status, dto.CreateSaleResponse{
		Sale:      result.Sale,
		Conflicts: result.Conflicts,
		Duplicate: result.Duplicate,
	})
}

// Get handles GET /sales/:id
func (h *SalesHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	sale, err := h.service.GetByID(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}

// List handles GET /sales
func (h *SalesHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SaleFilterRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter := sales.ListFilter{
		ConflictedOnly: req.ConflictedOnly,
		ClientUUID:     req.ClientUUID,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}

	if req.WarehouseID != "" {
		warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
		if !ok {
			return
		}
		filter.WarehouseID = warehouseID
	}

	result, err := h.repo.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      result,
		TotalCount: len(result),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Refund handles POST /sales/:id/refund
func (h *SalesHandler) Refund(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.RefundRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sale, err := h.service.ProcessFullRefund(ctx, saleID, req.Reason, actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, sale)
}
