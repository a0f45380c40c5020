package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/service"
	"github.com/gin-gonic/gin"
)

type ProductionHandler struct {
	svc    *service.ProductionService
	report *service.ReportService
}

func NewProductionHandler(svc *service.ProductionService, report *service.ReportService) *ProductionHandler {
	return &ProductionHandler{svc: svc, report: report}
}

// CreateBOM POST /production/bom
func (h *ProductionHandler) CreateBOM(c *gin.Context) {
	var req model.CreateBOMCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	n, err := h.svc.CreateBOM(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, n)
}

// Create POST /production/orders
func (h *ProductionHandler) Create(c *gin.Context) {
	var req model.CreateOrderCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	id, err := h.svc.CreateOrder(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, id)
}

// List GET /production/orders?status=
func (h *ProductionHandler) List(c *gin.Context) {
	orders, err := h.svc.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, orders)
}

// Export GET /production/reports/orders?status=
func (h *ProductionHandler) Export(c *gin.Context) {
	export, err := h.report.ExportOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if export.Object != "" {
		c.Header("X-Export-Object", export.Object)
	}
	c.Data(http.StatusOK, service.XLSXContentType, export.Data)
}

func (h *ProductionHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, order)
}

// UpdateItems PUT /production/orders/:id/items
func (h *ProductionHandler) UpdateItems(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req []model.OrderItemUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if err := h.svc.UpdateItems(c.Request.Context(), id, req); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"updated": len(req)})
}

// Start POST /production/orders/:id/start
func (h *ProductionHandler) Start(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Start(c.Request.Context(), id, GetUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"id": id, "status": model.StatusStarted})
}

// Complete POST /production/orders/:id/complete
func (h *ProductionHandler) Complete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Complete(c.Request.Context(), id, GetUserID(c)); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"id": id, "status": model.StatusCompleted})
}

type ledgerEntry struct {
	MaterialID      int64  `json:"materialId"`
	MaterialName    string `json:"materialName"`
	TransactionType string `json:"transactionType"`
	Quantity        string `json:"quantity"`
	BalanceAfter    string `json:"balanceAfter"`
	CreatedAt       string `json:"createdAt"`
}

// Ledger GET /production/orders/:id/transactions
func (h *ProductionHandler) Ledger(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	txs, err := h.svc.Ledger(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	out := make([]ledgerEntry, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ledgerEntry{
			MaterialID:      tx.MaterialID,
			MaterialName:    tx.MaterialName,
			TransactionType: tx.TransactionType,
			Quantity:        tx.Quantity.String(),
			BalanceAfter:    tx.BalanceAfter.String(),
			CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
		})
	}
	Success(c, out)
}
