package handlers

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/domain/catalogs/warehouse"
	"stradapos/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles warehouse catalog endpoints.
type WarehouseHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /catalog/warehouses
func (h *WarehouseHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	w := req.ToWarehouse()
	if err := h.service.Create(ctx, w); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, w.ID.String())
}

// Update handles PUT /catalog/warehouses/:id
func (h *WarehouseHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	w, err := h.service.GetByID(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.Apply(w)
	if err := h.service.Update(ctx, w); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, w)
}

// Get handles GET /catalog/warehouses/:id
func (h *WarehouseHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	w, err := h.service.GetByID(ctx, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, w)
}

// List handles GET /catalog/warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	warehouses, err := h.service.List(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      warehouses,
		TotalCount: len(warehouses),
	})
}

// Delete handles DELETE /catalog/warehouses/:id
func (h *WarehouseHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	warehouseID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, warehouseID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
