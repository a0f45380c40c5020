package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func setupClientTest(t *testing.T, register func(r *gin.RouterGroup)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(config.ClientConfig{BaseURL: srv.URL + "/api/v1/", Token: "test-token"}, nil)
}

func TestListMaterialsNormalisesTypes(t *testing.T) {
	c := setupClientTest(t, func(r *gin.RouterGroup) {
		r.GET("/inventory/materials", func(ctx *gin.Context) {
			if ctx.GetHeader("Authorization") != "Bearer test-token" {
				ctx.JSON(http.StatusUnauthorized, gin.H{"code": 40100, "message": "Authorization is required"})
				return
			}
			ctx.Data(http.StatusOK, "application/json", []byte(`[
				{"id":1,"materialName":"Steel","materialType":0,"currentStockLevel":8},
				{"id":10,"materialName":"Chair","materialType":"FinishedGood","currentStockLevel":"0"}
			]`))
		})
	})

	materials, err := c.ListMaterials(context.Background())
	if err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}
	if len(materials) != 2 {
		t.Fatalf("Expected 2 materials, got %d", len(materials))
	}
	if materials[0].Type != model.MaterialTypeRaw || materials[1].Type != model.MaterialTypeFinished {
		t.Errorf("unexpected types: %v, %v", materials[0].Type, materials[1].Type)
	}
	if !materials[0].CurrentStockLevel.Equal(decimal.NewFromInt(8)) {
		t.Errorf("Expected stock 8, got %s", materials[0].CurrentStockLevel)
	}
}

func TestCreateOrderSendsCommand(t *testing.T) {
	var got model.CreateOrderCommand
	c := setupClientTest(t, func(r *gin.RouterGroup) {
		r.POST("/production/orders", func(ctx *gin.Context) {
			if err := ctx.ShouldBindJSON(&got); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"code": 40000, "message": err.Error()})
				return
			}
			if len(got.Items) == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"code": 40000, "message": "Raw materials list is empty"})
				return
			}
			ctx.JSON(http.StatusOK, 42)
		})
	})

	id, err := c.CreateOrder(context.Background(), model.CreateOrderCommand{
		ProductID: 10,
		Quantity:  decimal.NewFromInt(5),
		Priority:  model.PriorityHigh,
		Items:     []model.OrderItemInput{{MaterialID: 1, Quantity: decimal.NewFromInt(10)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if id != 42 {
		t.Errorf("Expected id 42, got %d", id)
	}
	if got.ProductID != 10 || !got.Items[0].Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected command received: %+v", got)
	}

	_, err = c.CreateOrder(context.Background(), model.CreateOrderCommand{ProductID: 10, Quantity: decimal.NewFromInt(1)})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T %v", err, err)
	}
	if apiErr.Message != "Raw materials list is empty" || !errors.Is(err, model.ErrValidation) {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestStartOrderErrors(t *testing.T) {
	c := setupClientTest(t, func(r *gin.RouterGroup) {
		r.POST("/production/orders/:id/start", func(ctx *gin.Context) {
			switch ctx.Param("id") {
			case "1":
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{
					"code":    model.CodeInsufficientStock,
					"message": "insufficient stock",
					"data": gin.H{
						"materialId": 1, "materialName": "Steel",
						"required": "10", "available": "5",
					},
				})
			case "2":
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"code": model.CodeBomNotDefined, "message": "no components"})
			case "3":
				ctx.String(http.StatusBadGateway, "upstream unavailable")
			default:
				ctx.Status(http.StatusOK)
			}
		})
	})

	err := c.StartOrder(context.Background(), 1)
	var stockErr *model.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %T %v", err, err)
	}
	if stockErr.MaterialID != 1 || !stockErr.Required.Equal(decimal.NewFromInt(10)) || !stockErr.Available.Equal(decimal.NewFromInt(5)) {
		t.Errorf("unexpected detail %+v", stockErr)
	}

	if err := c.StartOrder(context.Background(), 2); !errors.Is(err, model.ErrBomNotDefined) {
		t.Errorf("Expected ErrBomNotDefined, got %v", err)
	}

	err = c.StartOrder(context.Background(), 3)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream unavailable" {
		t.Errorf("Expected plain-text 502 as APIError, got %T %v", err, err)
	}

	if err := c.StartOrder(context.Background(), 4); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
}

func TestTransportFailure(t *testing.T) {
	c := New(config.ClientConfig{BaseURL: "http://127.0.0.1:1/api/v1"}, nil)
	if _, err := c.ListOrders(context.Background()); err == nil {
		t.Fatal("Expected transport error")
	}
}

func TestGetOrderWithItems(t *testing.T) {
	c := setupClientTest(t, func(r *gin.RouterGroup) {
		r.GET("/production/orders/:id", func(ctx *gin.Context) {
			ctx.Data(http.StatusOK, "application/json", []byte(`{
				"id":7,"orderNumber":"PRD-20261016-0007","productId":10,"productName":"Chair",
				"quantity":"5","status":"Planned","startDate":"2026-10-16T00:00:00Z",
				"createdDate":"2026-10-15T08:00:00Z",
				"items":[{"id":70,"materialId":1,"materialName":"Steel","quantity":"10"}]
			}`))
		})
		r.PUT("/production/orders/:id/items", func(ctx *gin.Context) {
			var updates []model.OrderItemUpdate
			if err := ctx.ShouldBindJSON(&updates); err != nil || len(updates) != 1 || updates[0].ID != 70 {
				ctx.JSON(http.StatusBadRequest, gin.H{"code": 40000, "message": "bad items"})
				return
			}
			ctx.Status(http.StatusOK)
		})
	})

	order, err := c.GetOrder(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != model.StatusPlanned || len(order.Items) != 1 || order.Items[0].ID != 70 {
		t.Errorf("unexpected order: %+v", order)
	}
	err = c.UpdateOrderItems(context.Background(), 7, []model.OrderItemUpdate{{ID: 70, Quantity: decimal.NewFromInt(12)}})
	if err != nil {
		t.Errorf("UpdateOrderItems: %v", err)
	}
}

func TestWatchParsesEvents(t *testing.T) {
	c := setupClientTest(t, func(r *gin.RouterGroup) {
		r.GET("/production/events", func(ctx *gin.Context) {
			if ctx.GetHeader("Authorization") != "Bearer test-token" {
				ctx.JSON(http.StatusUnauthorized, gin.H{"code": 40100, "message": "Authorization is required"})
				return
			}
			ctx.Header("Content-Type", "text/event-stream")
			ctx.String(http.StatusOK, "event: connected\ndata: {\"clientId\":\"x\"}\n\n"+
				": keepalive\n\n"+
				"event: order_update\ndata: {\"orderId\":7,\"status\":\"Started\"}\n\n")
		})
	})

	var got []Event
	err := c.Watch(context.Background(), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %+v", got)
	}
	if got[1].Type != "order_update" || got[1].Data != `{"orderId":7,"status":"Started"}` {
		t.Errorf("unexpected event %+v", got[1])
	}

	stop := errors.New("stop")
	calls := 0
	err = c.Watch(context.Background(), func(Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Expected callback error after 1 call, got %v after %d", err, calls)
	}
}

func TestWatchUnauthorized(t *testing.T) {
	c := setupClientTest(t, func(r *gin.RouterGroup) {
		r.GET("/production/events", func(ctx *gin.Context) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"code": 40100, "message": "Authorization is required"})
		})
	})
	err := c.Watch(context.Background(), func(Event) error { return nil })
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Authorization is required" {
		t.Errorf("Expected 401 APIError, got %T %v", err, err)
	}
}
