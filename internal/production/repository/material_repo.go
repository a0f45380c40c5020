package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) Create(ctx context.Context, m *entity.Material) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MaterialRepository) FindByID(ctx context.Context, id int64) (*entity.Material, error) {
	var m entity.Material
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// List 获取物料列表，t 为 MaterialTypeUnknown 时返回全部类型
func (r *MaterialRepository) List(ctx context.Context, t model.MaterialType) ([]entity.Material, error) {
	query := r.db.WithContext(ctx).Model(&entity.Material{})
	if t != model.MaterialTypeUnknown {
		query = query.Where("type = ?", t)
	}
	var materials []entity.Material
	err := query.Order("id ASC").Find(&materials).Error
	return materials, err
}

func (r *MaterialRepository) FindByIDs(ctx context.Context, ids []int64) ([]entity.Material, error) {
	var materials []entity.Material
	if len(ids) == 0 {
		return materials, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&materials).Error
	return materials, err
}

// LockByIDs 按ID顺序锁定库存行，避免并发事务死锁
func (r *MaterialRepository) LockByIDs(ctx context.Context, ids []int64) ([]entity.Material, error) {
	var materials []entity.Material
	if len(ids) == 0 {
		return materials, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&materials).Error
	return materials, err
}

func (r *MaterialRepository) UpdateStock(ctx context.Context, id int64, level decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&entity.Material{}).
		Where("id = ?", id).
		Update("current_stock_level", level).Error
}
