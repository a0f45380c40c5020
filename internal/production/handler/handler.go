package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Inventory  *InventoryHandler
	Production *ProductionHandler
	Events     *EventsHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Inventory:  NewInventoryHandler(svc.Inventory),
		Production: NewProductionHandler(svc.Production, svc.Report),
		Events:     NewEventsHandler(svc.Events),
	}
}

// Register 注册业务路由
func (h *Handlers) Register(api *gin.RouterGroup) {
	materials := api.Group("/inventory/materials")
	{
		materials.GET("", h.Inventory.List)
		materials.POST("", h.Inventory.Create)
		materials.GET("/raw-materials", h.Inventory.RawMaterials)
		materials.GET("/finished-goods", h.Inventory.FinishedGoods)
		materials.GET("/:id", h.Inventory.Get)
	}

	production := api.Group("/production")
	{
		production.POST("/bom", h.Production.CreateBOM)
		production.GET("/events", h.Events.Stream)
		production.GET("/reports/orders", h.Production.Export)

		orders := production.Group("/orders")
		orders.GET("", h.Production.List)
		orders.POST("", h.Production.Create)
		orders.GET("/:id", h.Production.Get)
		orders.GET("/:id/transactions", h.Production.Ledger)
		orders.PUT("/:id/items", h.Production.UpdateItems)
		orders.POST("/:id/start", h.Production.Start)
		orders.POST("/:id/complete", h.Production.Complete)
	}
}

// Response 错误响应结构，成功时直接返回数据本身
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error 错误响应，HTTP状态码为 code/100
func Error(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, model.CodeValidation, message, nil)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, model.CodeNotFound, message, nil)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, model.CodeInternal, message, nil)
}

// HandleError maps a service error to its coded response.
func HandleError(c *gin.Context, err error) {
	var stockErr *model.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		Error(c, model.CodeInsufficientStock, stockErr.Error(), stockErr)
	case errors.Is(err, model.ErrBomNotDefined):
		Error(c, model.CodeBomNotDefined, err.Error(), nil)
	case errors.Is(err, model.ErrInvalidTransition):
		Error(c, model.CodeInvalidTransition, err.Error(), nil)
	case errors.Is(err, model.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, model.ErrValidation):
		BadRequest(c, strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": "))
	default:
		_ = c.Error(err)
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "Invalid id: "+c.Param("id"))
		return 0, false
	}
	return id, true
}
