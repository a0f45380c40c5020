package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"gorm.io/gorm"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// Replace 覆盖产品配方
func (r *BOMRepository) Replace(ctx context.Context, productID int64, components []entity.BomComponent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&entity.BomComponent{}).Error; err != nil {
			return err
		}
		if len(components) == 0 {
			return nil
		}
		return tx.Create(&components).Error
	})
}

func (r *BOMRepository) ListByProduct(ctx context.Context, productID int64) ([]entity.BomComponent, error) {
	var components []entity.BomComponent
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&components).Error
	return components, err
}
