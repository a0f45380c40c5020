package entity

import (
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
)

// TransactionType 库存交易类型
const (
	TxTypeProductionIn  = "PRODUCTION_IN"  // 生产入库
	TxTypeProductionOut = "PRODUCTION_OUT" // 生产领料
	TxTypeAdjust        = "ADJUST"         // 库存调整
)

// ReferenceTypeOrder marks ledger entries caused by a production order.
const ReferenceTypeOrder = "PRD"

// Material 物料，库存数量直接存在本行
type Material struct {
	ID                int64              `gorm:"primaryKey;autoIncrement"`
	Code              string             `gorm:"size:64;index"`
	Name              string             `gorm:"size:128;not null"`
	Type              model.MaterialType `gorm:"type:varchar(20);not null;index"`
	UnitOfMeasure     string             `gorm:"size:20;not null;default:pcs"`
	UnitPrice         decimal.Decimal    `gorm:"type:decimal(12,4);not null;default:0"`
	CurrentStockLevel decimal.Decimal    `gorm:"type:decimal(12,4);not null;default:0"`
	MinimumStockLevel decimal.Decimal    `gorm:"type:decimal(12,4);not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Material) TableName() string {
	return "mes_materials"
}

func (m Material) ToModel() model.Material {
	return model.Material{
		ID:                m.ID,
		Code:              m.Code,
		Name:              m.Name,
		Type:              m.Type,
		UnitOfMeasure:     m.UnitOfMeasure,
		UnitPrice:         m.UnitPrice,
		CurrentStockLevel: m.CurrentStockLevel,
		MinimumStockLevel: m.MinimumStockLevel,
	}
}

// InventoryTransaction 库存交易记录
type InventoryTransaction struct {
	ID              string          `gorm:"primaryKey;size:36"`
	MaterialID      int64           `gorm:"not null;index"`
	MaterialName    string          `gorm:"size:128"`
	TransactionType string          `gorm:"size:20;not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(12,4);not null"` // 正=入，负=出
	BalanceAfter    decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	ReferenceType   string          `gorm:"size:20;not null"`
	ReferenceID     int64           `gorm:"not null;index"`
	ReferenceCode   string          `gorm:"size:50"`
	CreatedBy       string          `gorm:"size:64"`
	CreatedAt       time.Time
}

func (InventoryTransaction) TableName() string {
	return "mes_inventory_transactions"
}
