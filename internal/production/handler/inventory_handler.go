package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/service"
	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// List GET /inventory/materials
func (h *InventoryHandler) List(c *gin.Context) {
	materials, err := h.svc.ListMaterials(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, materials)
}

// RawMaterials GET /inventory/materials/raw-materials
func (h *InventoryHandler) RawMaterials(c *gin.Context) {
	materials, err := h.svc.RawMaterials(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, materials)
}

// FinishedGoods GET /inventory/materials/finished-goods
func (h *InventoryHandler) FinishedGoods(c *gin.Context) {
	materials, err := h.svc.FinishedGoods(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, materials)
}

func (h *InventoryHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	m, err := h.svc.GetMaterial(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, m)
}

// Create POST /inventory/materials
func (h *InventoryHandler) Create(c *gin.Context) {
	var req model.Material
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	id, err := h.svc.CreateMaterial(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, id)
}
