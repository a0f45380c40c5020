package entity

import (
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
)

// BomComponent is one row of a product recipe. Only the legacy recipe path
// writes these; orders carry their own items.
type BomComponent struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	ProductID   int64           `gorm:"not null;uniqueIndex:idx_bom_product_component"`
	ComponentID int64           `gorm:"not null;uniqueIndex:idx_bom_product_component"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	CreatedBy   string          `gorm:"size:64"`
	CreatedAt   time.Time
}

func (BomComponent) TableName() string {
	return "mes_bom_components"
}

// ProductionOrder 生产订单
type ProductionOrder struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"`
	OrderNumber string            `gorm:"size:50;not null;uniqueIndex"`
	ProductID   int64             `gorm:"not null;index"`
	ProductName string            `gorm:"size:128"`
	Quantity    decimal.Decimal   `gorm:"type:decimal(12,4);not null"`
	Status      model.OrderStatus `gorm:"size:20;not null;default:Planned;index"`
	Priority    model.Priority    `gorm:"size:10;not null;default:Medium"`
	StartDate   time.Time         `gorm:"not null"`
	ActualStart *time.Time
	EndDate     *time.Time
	Notes       string `gorm:"type:text"`
	CreatedBy   string `gorm:"size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []ProductionOrderItem `gorm:"foreignKey:OrderID"`
}

func (ProductionOrder) TableName() string {
	return "mes_production_orders"
}

// ToModel omits items unless they were preloaded.
func (o ProductionOrder) ToModel() model.ProductionOrder {
	out := model.ProductionOrder{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		Status:      o.Status,
		StartDate:   o.StartDate,
		EndDate:     o.EndDate,
		Priority:    o.Priority,
		Notes:       o.Notes,
		CreatedDate: o.CreatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, model.OrderItem{
			ID:           it.ID,
			MaterialID:   it.MaterialID,
			MaterialName: it.MaterialName,
			Quantity:     it.Quantity,
		})
	}
	return out
}

// ProductionOrderItem 订单物料，数量是整单总量而非单件用量
type ProductionOrderItem struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	OrderID      int64           `gorm:"not null;index"`
	MaterialID   int64           `gorm:"not null"`
	MaterialName string          `gorm:"size:128"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProductionOrderItem) TableName() string {
	return "mes_production_order_items"
}
