package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order together with its items.
func (r *OrderRepository) Create(ctx context.Context, order *entity.ProductionOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*entity.ProductionOrder, error) {
	var order entity.ProductionOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// LockByID 锁定订单行，必须在事务内调用
func (r *OrderRepository) LockByID(ctx context.Context, id int64) (*entity.ProductionOrder, error) {
	var order entity.ProductionOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List 获取订单列表，按创建时间倒序，不加载订单物料
func (r *OrderRepository) List(ctx context.Context, status model.OrderStatus) ([]entity.ProductionOrder, error) {
	query := r.db.WithContext(ctx).Model(&entity.ProductionOrder{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var orders []entity.ProductionOrder
	err := query.Order("created_at DESC, id DESC").Find(&orders).Error
	return orders, err
}

// UpdateStatus writes the status and its timestamps only.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order *entity.ProductionOrder) error {
	return r.db.WithContext(ctx).
		Model(&entity.ProductionOrder{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":       order.Status,
			"actual_start": order.ActualStart,
			"end_date":     order.EndDate,
			"updated_at":   time.Now(),
		}).Error
}

func (r *OrderRepository) UpdateItemQuantity(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&entity.ProductionOrderItem{}).
		Where("id = ?", itemID).
		Update("quantity", qty).Error
}

// GenerateNumber 生成订单编号 PRD-{yyyymmdd}-{4位}
func (r *OrderRepository) GenerateNumber(ctx context.Context, now time.Time) (string, error) {
	day := now.Format("20060102")
	prefix := fmt.Sprintf("PRD-%s-", day)

	var maxNumber string
	err := r.db.WithContext(ctx).
		Model(&entity.ProductionOrder{}).
		Select("COALESCE(MAX(order_number), '')").
		Where("order_number LIKE ?", prefix+"%").
		Scan(&maxNumber).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxNumber != "" {
		fmt.Sscanf(maxNumber, "PRD-"+day+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("PRD-%s-%04d", day, seq), nil
}
