package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/core/security"
	"stradapos/internal/domain/stock"
	"stradapos/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock ledger endpoints.
type StockHandler struct {
	*BaseHandler
	service  *stock.Service
	policies *security.PolicyEngine
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, policies *security.PolicyEngine) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		policies:    policies,
	}
}

// allowWarehouses enforces the warehouse-scope policy for warehouses that
// arrive in the request body, where the route middleware cannot see them.
func (h *StockHandler) allowWarehouses(c *gin.Context, permission string, warehouseIDs ...string) bool {
	for _, warehouseID := range warehouseIDs {
		if err := h.policies.Allow(c.Request.Context(), security.PolicyWarehouseScope, permission, warehouseID); err != nil {
			h.Error(c, err)
			return false
		}
	}
	return true
}

// Adjust handles POST /stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	if !h.allowWarehouses(c, security.PermStockWrite, req.WarehouseID) {
		return
	}

	productID := id.MustParse(req.ProductID)
	warehouseID := id.MustParse(req.WarehouseID)

	movement, err := h.service.Adjust(ctx, productID, warehouseID, req.Change, req.Reason, &actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MovementResponse{Movement: movement})
}

// Set handles POST /stock/set
func (h *StockHandler) Set(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SetStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	if !h.allowWarehouses(c, security.PermStockWrite, req.WarehouseID) {
		return
	}

	productID := id.MustParse(req.ProductID)
	warehouseID := id.MustParse(req.WarehouseID)

	movement, err := h.service.SetStock(ctx, productID, warehouseID, req.Quantity, req.Reason, &actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.MovementResponse{Movement: movement})
}

// Transfer handles POST /stock/transfer
func (h *StockHandler) Transfer(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	if !h.allowWarehouses(c, security.PermStockWrite, req.FromWarehouseID, req.ToWarehouseID) {
		return
	}

	productID := id.MustParse(req.ProductID)
	fromID := id.MustParse(req.FromWarehouseID)
	toID := id.MustParse(req.ToWarehouseID)

	out, in, err := h.service.Transfer(ctx, productID, fromID, toID, req.Quantity, req.Reason, &actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.TransferResponse{Out: out, In: in})
}

// GetLevel handles GET /stock/levels
func (h *StockHandler) GetLevel(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.ParseIDQuery(c, "productId")
	if !ok {
		return
	}
	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}
	if productID == nil || warehouseID == nil {
		h.Error(c, apperror.NewValidation("productId and warehouseId are required"))
		return
	}

	quantity, err := h.service.GetStockLevel(ctx, *productID, *warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.StockLevelResponse{
		ProductID:   productID.String(),
		WarehouseID: warehouseID.String(),
		Quantity:    quantity,
	})
}

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	ctx := c.Request.Context()

	filter := stock.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.ProductID, ok = h.ParseIDQuery(c, "productId"); !ok {
		return
	}
	if filter.WarehouseID, ok = h.ParseIDQuery(c, "warehouseId"); !ok {
		return
	}

	if typeStr := c.Query("type"); typeStr != "" {
		movementType := stock.MovementType(typeStr)
		filter.Type = &movementType
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.FromDate = &parsed
		}
	}
	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.ToDate = &parsed
		}
	}

	movements, err := h.service.ListMovements(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      movements,
		TotalCount: len(movements),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// LowStock handles GET /stock/low
func (h *StockHandler) LowStock(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}

	levels, err := h.service.GetLowStockProducts(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: levels, TotalCount: len(levels)})
}

// OutOfStock handles GET /stock/out-of-stock
func (h *StockHandler) OutOfStock(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDQuery(c, "warehouseId")
	if !ok {
		return
	}

	levels, err := h.service.GetOutOfStockProducts(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: levels, TotalCount: len(levels)})
}
