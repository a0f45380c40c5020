package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有生产表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 物料
		&Material{},
		&InventoryTransaction{},

		// 生产
		&BomComponent{},
		&ProductionOrder{},
		&ProductionOrderItem{},
	)
}
