package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductionOrder is the client-side projection of a backend order.
type ProductionOrder struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	Status      OrderStatus     `json:"status"`
	StartDate   time.Time       `json:"startDate"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	Priority    Priority        `json:"priority,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedDate time.Time       `json:"createdDate"`
	Progress    *int            `json:"progress,omitempty"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// OrderItem carries its own row id so quantities can be edited later.
type OrderItem struct {
	ID           int64           `json:"id"`
	MaterialID   int64           `json:"materialId"`
	MaterialName string          `json:"materialName,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// OrderItemInput quantity is the order total, already multiplied by the order quantity.
type OrderItemInput struct {
	MaterialID int64           `json:"materialId"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type CreateOrderCommand struct {
	ProductID int64            `json:"productId"`
	Quantity  decimal.Decimal  `json:"quantity"`
	StartDate time.Time        `json:"startDate"`
	Priority  Priority         `json:"priority,omitempty"`
	Notes     string           `json:"notes"`
	Items     []OrderItemInput `json:"items"`
}

type OrderItemUpdate struct {
	ID       int64           `json:"id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BomComponentInput is one line of the legacy recipe command.
type BomComponentInput struct {
	ComponentID int64           `json:"componentId"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type CreateBOMCommand struct {
	ProductID  int64               `json:"productId"`
	Components []BomComponentInput `json:"components"`
}
