package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/bom"
	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/repository"
	"github.com/bitfantasy/nimo-mes/internal/production/sse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductionService is the system of record for orders and the only writer
// of stock levels.
type ProductionService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	inventory *InventoryService
	events    *sse.Hub
	logger    *zap.Logger
	now       func() time.Time
}

func NewProductionService(db *gorm.DB, repos *repository.Repositories, inventory *InventoryService, logger *zap.Logger) *ProductionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductionService{db: db, repos: repos, inventory: inventory, logger: logger, now: time.Now}
}

// CreateBOM replaces the product's recipe and returns the number of components stored.
func (s *ProductionService) CreateBOM(ctx context.Context, cmd model.CreateBOMCommand, userID string) (int, error) {
	if _, err := s.finishedGood(ctx, cmd.ProductID); err != nil {
		return 0, err
	}

	b := bom.NewBuilder(cmd.ProductID)
	for i, c := range cmd.Components {
		b.AddLine()
		warn, err := b.SelectComponent(i, c.ComponentID)
		if err != nil {
			return 0, err
		}
		if warn != nil {
			return 0, invalid("%s", warn.String())
		}
		if err := b.SetQuantity(i, c.Quantity); err != nil {
			return 0, err
		}
	}
	if err := b.Validate(); err != nil {
		return 0, invalid("%s", err.Error())
	}

	lines := b.Lines()
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ComponentID)
	}
	if _, err := s.rawMaterials(ctx, ids); err != nil {
		return 0, err
	}

	components := make([]entity.BomComponent, 0, len(lines))
	for _, l := range lines {
		components = append(components, entity.BomComponent{
			ProductID:   cmd.ProductID,
			ComponentID: l.ComponentID,
			Quantity:    l.QuantityPerUnit,
			CreatedBy:   userID,
		})
	}
	if err := s.repos.BOM.Replace(ctx, cmd.ProductID, components); err != nil {
		return 0, fmt.Errorf("保存配方失败: %w", err)
	}
	s.logger.Info("BOM saved", zap.Int64("product_id", cmd.ProductID), zap.Int("components", len(components)))
	return len(components), nil
}

// CreateOrder creates a Planned order. Without items the stored recipe is scaled
// by the order quantity.
func (s *ProductionService) CreateOrder(ctx context.Context, cmd model.CreateOrderCommand, userID string) (int64, error) {
	product, err := s.finishedGood(ctx, cmd.ProductID)
	if err != nil {
		return 0, err
	}
	if !cmd.Quantity.IsPositive() {
		return 0, invalid("Quantity must be greater than zero")
	}
	priority, err := model.ParsePriority(string(cmd.Priority))
	if err != nil {
		return 0, invalid("%s", err.Error())
	}

	inputs := cmd.Items
	if len(inputs) == 0 {
		inputs, err = s.recipeItems(ctx, cmd.ProductID, cmd.Quantity)
		if err != nil {
			return 0, err
		}
	}

	seen := make(map[int64]bool, len(inputs))
	ids := make([]int64, 0, len(inputs))
	for _, it := range inputs {
		if it.MaterialID == cmd.ProductID {
			return 0, invalid("Product cannot be a component of itself")
		}
		if seen[it.MaterialID] {
			return 0, invalid("Material %d is listed more than once", it.MaterialID)
		}
		if !it.Quantity.IsPositive() {
			return 0, invalid("Quantity of material %d must be greater than zero", it.MaterialID)
		}
		seen[it.MaterialID] = true
		ids = append(ids, it.MaterialID)
	}
	materials, err := s.rawMaterials(ctx, ids)
	if err != nil {
		return 0, err
	}

	start := cmd.StartDate
	if start.IsZero() {
		start = s.now()
	}
	order := &entity.ProductionOrder{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    cmd.Quantity,
		Status:      model.StatusPlanned,
		Priority:    priority,
		StartDate:   start,
		Notes:       cmd.Notes,
		CreatedBy:   userID,
	}
	for _, it := range inputs {
		order.Items = append(order.Items, entity.ProductionOrderItem{
			MaterialID:   it.MaterialID,
			MaterialName: materials[it.MaterialID].Name,
			Quantity:     it.Quantity,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		number, err := repos.Order.GenerateNumber(ctx, s.now())
		if err != nil {
			return fmt.Errorf("生成订单编号失败: %w", err)
		}
		order.OrderNumber = number
		return repos.Order.Create(ctx, order)
	})
	if err != nil {
		return 0, fmt.Errorf("创建生产订单失败: %w", err)
	}

	s.logger.Info("Production order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
	)
	s.publishOrder(order.ID, order.OrderNumber, model.StatusPlanned, "create")
	return order.ID, nil
}

// ListOrders 订单列表，可按状态过滤
func (s *ProductionService) ListOrders(ctx context.Context, status string) ([]model.ProductionOrder, error) {
	st := model.OrderStatus(status)
	if status != "" && !st.Valid() {
		return nil, invalid("Unknown status %q", status)
	}
	rows, err := s.repos.Order.List(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list production orders: %w", err)
	}
	orders := make([]model.ProductionOrder, 0, len(rows))
	for _, o := range rows {
		orders = append(orders, o.ToModel())
	}
	return orders, nil
}

func (s *ProductionService) GetOrder(ctx context.Context, id int64) (*model.ProductionOrder, error) {
	row, err := s.repos.Order.FindByID(ctx, id)
	if err != nil {
		return nil, orderLookupError(id, err)
	}
	out := row.ToModel()
	return &out, nil
}

// UpdateItems edits item quantities of a Planned order. Quantities must be greater than zero.
func (s *ProductionService) UpdateItems(ctx context.Context, id int64, updates []model.OrderItemUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		order, err := repos.Order.LockByID(ctx, id)
		if err != nil {
			return orderLookupError(id, err)
		}
		if order.Status != model.StatusPlanned {
			return fmt.Errorf("%w: items of a %s order cannot be edited", model.ErrInvalidTransition, order.Status)
		}
		owned := make(map[int64]bool, len(order.Items))
		for _, it := range order.Items {
			owned[it.ID] = true
		}
		for _, u := range updates {
			if !owned[u.ID] {
				return invalid("Item %d does not belong to order %s", u.ID, order.OrderNumber)
			}
			if !u.Quantity.IsPositive() {
				return invalid("Quantity of item %d must be greater than zero", u.ID)
			}
			if err := repos.Order.UpdateItemQuantity(ctx, u.ID, u.Quantity); err != nil {
				return fmt.Errorf("更新订单物料失败: %w", err)
			}
		}
		return nil
	})
}

// Start deducts every item from stock or nothing at all.
func (s *ProductionService) Start(ctx context.Context, id int64, userID string) error {
	var (
		number   string
		consumed []int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		order, err := repos.Order.LockByID(ctx, id)
		if err != nil {
			return orderLookupError(id, err)
		}
		to, err := model.Transition(order.Status, model.ActionStart)
		if err != nil {
			return err
		}

		required, names, ids := aggregate(order.Items)
		if len(ids) == 0 {
			return fmt.Errorf("%w: order %s has no components", model.ErrBomNotDefined, order.OrderNumber)
		}
		locked, err := repos.Material.LockByIDs(ctx, sortedCopy(ids))
		if err != nil {
			return fmt.Errorf("锁定库存失败: %w", err)
		}
		stock := make(map[int64]entity.Material, len(locked))
		for _, m := range locked {
			stock[m.ID] = m
		}

		for _, mid := range ids {
			m, ok := stock[mid]
			available := decimal.Zero
			name := names[mid]
			if ok {
				available = m.CurrentStockLevel
				name = m.Name
			}
			if available.LessThan(required[mid]) {
				return &model.InsufficientStockError{
					MaterialID:   mid,
					MaterialName: name,
					Required:     required[mid],
					Available:    available,
				}
			}
		}

		for _, mid := range ids {
			m := stock[mid]
			balance := m.CurrentStockLevel.Sub(required[mid])
			if err := repos.Material.UpdateStock(ctx, mid, balance); err != nil {
				return fmt.Errorf("扣减库存失败: %w", err)
			}
			if err := repos.Transaction.Create(ctx, &entity.InventoryTransaction{
				ID:              uuid.New().String(),
				MaterialID:      mid,
				MaterialName:    m.Name,
				TransactionType: entity.TxTypeProductionOut,
				Quantity:        required[mid].Neg(),
				BalanceAfter:    balance,
				ReferenceType:   entity.ReferenceTypeOrder,
				ReferenceID:     order.ID,
				ReferenceCode:   order.OrderNumber,
				CreatedBy:       userID,
			}); err != nil {
				return fmt.Errorf("记录库存交易失败: %w", err)
			}
		}

		now := s.now()
		order.Status = to
		order.ActualStart = &now
		number, consumed = order.OrderNumber, ids
		return repos.Order.UpdateStatus(ctx, order)
	})
	if err != nil {
		return err
	}
	s.inventory.Invalidate(ctx)
	s.logger.Info("Production started", zap.Int64("order_id", id))
	s.publishOrder(id, number, model.StatusStarted, string(model.ActionStart))
	s.publishStock(id, consumed)
	return nil
}

// Complete adds the order quantity to the product's stock.
func (s *ProductionService) Complete(ctx context.Context, id int64, userID string) error {
	var (
		number    string
		productID int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		order, err := repos.Order.LockByID(ctx, id)
		if err != nil {
			return orderLookupError(id, err)
		}
		to, err := model.Transition(order.Status, model.ActionComplete)
		if err != nil {
			return err
		}

		locked, err := repos.Material.LockByIDs(ctx, []int64{order.ProductID})
		if err != nil {
			return fmt.Errorf("锁定库存失败: %w", err)
		}
		if len(locked) == 0 {
			return fmt.Errorf("product %d of order %s no longer exists", order.ProductID, order.OrderNumber)
		}
		product := locked[0]
		balance := product.CurrentStockLevel.Add(order.Quantity)
		if err := repos.Material.UpdateStock(ctx, product.ID, balance); err != nil {
			return fmt.Errorf("成品入库失败: %w", err)
		}
		if err := repos.Transaction.Create(ctx, &entity.InventoryTransaction{
			ID:              uuid.New().String(),
			MaterialID:      product.ID,
			MaterialName:    product.Name,
			TransactionType: entity.TxTypeProductionIn,
			Quantity:        order.Quantity,
			BalanceAfter:    balance,
			ReferenceType:   entity.ReferenceTypeOrder,
			ReferenceID:     order.ID,
			ReferenceCode:   order.OrderNumber,
			CreatedBy:       userID,
		}); err != nil {
			return fmt.Errorf("记录库存交易失败: %w", err)
		}

		now := s.now()
		order.Status = to
		order.EndDate = &now
		number, productID = order.OrderNumber, order.ProductID
		return repos.Order.UpdateStatus(ctx, order)
	})
	if err != nil {
		return err
	}
	s.inventory.Invalidate(ctx)
	s.logger.Info("Production completed", zap.Int64("order_id", id))
	s.publishOrder(id, number, model.StatusCompleted, string(model.ActionComplete))
	s.publishStock(id, []int64{productID})
	return nil
}

// publishOrder runs after commit only. A nil hub publishes nothing.
func (s *ProductionService) publishOrder(id int64, number string, status model.OrderStatus, action string) {
	if s.events == nil {
		return
	}
	s.events.PublishOrderUpdate(sse.OrderUpdate{OrderID: id, OrderNumber: number, Status: string(status), Action: action})
}

func (s *ProductionService) publishStock(orderID int64, materialIDs []int64) {
	if s.events == nil || len(materialIDs) == 0 {
		return
	}
	s.events.PublishStockUpdate(sse.StockUpdate{MaterialIDs: materialIDs, OrderID: orderID})
}

// Ledger 订单库存流水
func (s *ProductionService) Ledger(ctx context.Context, id int64) ([]entity.InventoryTransaction, error) {
	return s.repos.Transaction.ListByReference(ctx, entity.ReferenceTypeOrder, id)
}

func (s *ProductionService) finishedGood(ctx context.Context, id int64) (*entity.Material, error) {
	if id <= 0 {
		return nil, invalid("Product is required")
	}
	m, err := s.repos.Material.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid("Product %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	if m.Type != model.MaterialTypeFinished {
		return nil, invalid("%s is not a finished good", m.Name)
	}
	return m, nil
}

func (s *ProductionService) rawMaterials(ctx context.Context, ids []int64) (map[int64]entity.Material, error) {
	rows, err := s.repos.Material.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	byID := make(map[int64]entity.Material, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, invalid("Material %d not found", id)
		}
		if m.Type != model.MaterialTypeRaw {
			return nil, invalid("%s is not a raw material", m.Name)
		}
	}
	return byID, nil
}

func (s *ProductionService) recipeItems(ctx context.Context, productID int64, qty decimal.Decimal) ([]model.OrderItemInput, error) {
	recipe, err := s.repos.BOM.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load recipe: %w", err)
	}
	if len(recipe) == 0 {
		return nil, invalid("Raw materials list is empty")
	}
	items := make([]model.OrderItemInput, 0, len(recipe))
	for _, c := range recipe {
		items = append(items, model.OrderItemInput{MaterialID: c.ComponentID, Quantity: c.Quantity.Mul(qty)})
	}
	return items, nil
}

func orderLookupError(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: production order %d", model.ErrNotFound, id)
	}
	return fmt.Errorf("get production order %d: %w", id, err)
}

// aggregate sums positive item quantities per material, keeping first-seen order.
func aggregate(items []entity.ProductionOrderItem) (map[int64]decimal.Decimal, map[int64]string, []int64) {
	required := make(map[int64]decimal.Decimal)
	names := make(map[int64]string)
	var ids []int64
	for _, it := range items {
		if !it.Quantity.IsPositive() {
			continue
		}
		if _, ok := required[it.MaterialID]; !ok {
			ids = append(ids, it.MaterialID)
			required[it.MaterialID] = decimal.Zero
			names[it.MaterialID] = it.MaterialName
		}
		required[it.MaterialID] = required[it.MaterialID].Add(it.Quantity)
	}
	return required, names, ids
}

func sortedCopy(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
