// Package lifecycle drives production orders through Planned, Started and Completed.
//
// The backend owns every order and every stock level. The controller keeps
// the last fetched list and refuses a transition only when the freshly
// fetched order says it is illegal. It allows one in-flight action per order
// and reloads the list after every transition, whether it succeeded or
// failed. It never edits a status locally.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"go.uber.org/zap"
)

var (
	ErrActionInFlight = errors.New("another request for this order is still in progress")
	ErrInvalidCommand = errors.New("invalid production order command")
)

// Backend is the system of record. client.Client implements it.
type Backend interface {
	CreateOrder(ctx context.Context, cmd model.CreateOrderCommand) (int64, error)
	ListOrders(ctx context.Context) ([]model.ProductionOrder, error)
	GetOrder(ctx context.Context, id int64) (*model.ProductionOrder, error)
	StartOrder(ctx context.Context, id int64) error
	CompleteOrder(ctx context.Context, id int64) error
	UpdateOrderItems(ctx context.Context, id int64, updates []model.OrderItemUpdate) error
}

type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCommitted ActionStatus = "committed"
	ActionFailed    ActionStatus = "failed"
)

// ActionState is the outcome of the latest mutating request for one order.
type ActionState struct {
	Action    string
	Status    ActionStatus
	Err       error
	UpdatedAt time.Time
}

const (
	actionCreate      = "create"
	actionUpdateItems = "update-items"

	// creation has no order id yet
	createKey int64 = 0
)

type Controller struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	orders  []model.ProductionOrder
	actions map[int64]ActionState
}

func NewController(backend Backend, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		actions: make(map[int64]ActionState),
	}
}

// Orders returns the last fetched list.
func (c *Controller) Orders() []model.ProductionOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ProductionOrder, len(c.orders))
	copy(out, c.orders)
	return out
}

// ActionState reports the latest mutating request issued for id.
func (c *Controller) ActionState(id int64) (ActionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.actions[id]
	return st, ok
}

// NextAction is the only transition a view should offer for o.
func NextAction(o model.ProductionOrder) (model.Action, bool) {
	return model.NextAction(o.Status)
}

// ListOrders fetches the authoritative list and replaces the snapshot.
func (c *Controller) ListOrders(ctx context.Context) ([]model.ProductionOrder, error) {
	orders, err := c.backend.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.orders = orders
	c.mu.Unlock()
	return c.Orders(), nil
}

// Get fetches one order with its items and refreshes it in the snapshot.
func (c *Controller) Get(ctx context.Context, id int64) (*model.ProductionOrder, error) {
	order, err := c.backend.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for i := range c.orders {
		if c.orders[i].ID == id {
			c.orders[i] = *order
		}
	}
	c.mu.Unlock()
	return order, nil
}

// Create submits a new Planned order. Item quantities are order totals and
// are passed through unchanged.
func (c *Controller) Create(ctx context.Context, cmd model.CreateOrderCommand) (int64, error) {
	if err := validateCommand(cmd); err != nil {
		return 0, err
	}
	if err := c.begin(createKey, actionCreate); err != nil {
		return 0, err
	}

	id, err := c.backend.CreateOrder(ctx, cmd)
	if err != nil {
		err = creationError(err)
	}
	c.finish(createKey, actionCreate, err)
	if err != nil {
		c.logger.Warn("Production order rejected", zap.Int64("product_id", cmd.ProductID), zap.Error(err))
		return 0, err
	}

	c.logger.Info("Production order created", zap.Int64("order_id", id), zap.Int64("product_id", cmd.ProductID))
	c.reload(ctx)
	return id, nil
}

// Start deducts raw materials. Only a Planned order can be started.
func (c *Controller) Start(ctx context.Context, id int64) error {
	return c.transition(ctx, id, model.ActionStart, c.backend.StartOrder)
}

// Complete adds finished goods. Only a Started order can be completed.
func (c *Controller) Complete(ctx context.Context, id int64) error {
	return c.transition(ctx, id, model.ActionComplete, c.backend.CompleteOrder)
}

func (c *Controller) transition(ctx context.Context, id int64, a model.Action, call func(context.Context, int64) error) error {
	order, cached, err := c.lookup(ctx, id)
	if err != nil {
		return err
	}
	if _, err := model.Transition(order.Status, a); err != nil {
		if !cached {
			return err
		}
		// the snapshot may be behind the backend
		fresh, getErr := c.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		if _, err := model.Transition(fresh.Status, a); err != nil {
			return err
		}
	}
	if err := c.begin(id, string(a)); err != nil {
		return err
	}

	err = call(ctx, id)
	if err != nil {
		err = transitionError(a, err)
	}
	c.finish(id, string(a), err)
	c.reload(ctx)

	if err != nil {
		c.logger.Warn("Order transition failed", zap.Int64("order_id", id), zap.String("action", string(a)), zap.Error(err))
		return err
	}
	c.logger.Info("Order transition committed", zap.Int64("order_id", id), zap.String("action", string(a)))
	return nil
}

// UpdateItems edits item quantities of a Planned order by item row id.
// Every quantity must be greater than zero.
func (c *Controller) UpdateItems(ctx context.Context, id int64, updates []model.OrderItemUpdate) error {
	order, cached, err := c.lookup(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != model.StatusPlanned && cached {
		fresh, getErr := c.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		order = *fresh
	}
	if order.Status != model.StatusPlanned {
		return fmt.Errorf("%w: items of a %s order cannot be edited", model.ErrInvalidTransition, order.Status)
	}
	for _, u := range updates {
		if u.ID <= 0 || !u.Quantity.IsPositive() {
			return fmt.Errorf("%w: item %d quantity %s", ErrInvalidCommand, u.ID, u.Quantity)
		}
	}
	if err := c.begin(id, actionUpdateItems); err != nil {
		return err
	}

	err = c.backend.UpdateOrderItems(ctx, id, updates)
	c.finish(id, actionUpdateItems, err)
	if _, getErr := c.Get(ctx, id); getErr != nil {
		c.logger.Warn("Failed to refresh order", zap.Int64("order_id", id), zap.Error(getErr))
	}
	return err
}

// lookup reports whether the order came from the snapshot rather than the backend.
func (c *Controller) lookup(ctx context.Context, id int64) (model.ProductionOrder, bool, error) {
	c.mu.Lock()
	for _, o := range c.orders {
		if o.ID == id {
			c.mu.Unlock()
			return o, true, nil
		}
	}
	c.mu.Unlock()

	order, err := c.backend.GetOrder(ctx, id)
	if err != nil {
		return model.ProductionOrder{}, false, err
	}
	return *order, false, nil
}

func (c *Controller) begin(id int64, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.actions[id]; ok && st.Status == ActionPending {
		return fmt.Errorf("%w: %s", ErrActionInFlight, st.Action)
	}
	c.actions[id] = ActionState{Action: action, Status: ActionPending, UpdatedAt: c.now()}
	return nil
}

func (c *Controller) finish(id int64, action string, err error) {
	st := ActionState{Action: action, Status: ActionCommitted, UpdatedAt: c.now()}
	if err != nil {
		st.Status = ActionFailed
		st.Err = err
	}
	c.mu.Lock()
	c.actions[id] = st
	c.mu.Unlock()
}

func (c *Controller) reload(ctx context.Context) {
	if _, err := c.ListOrders(ctx); err != nil {
		c.logger.Warn("Failed to reload production orders", zap.Error(err))
	}
}

func validateCommand(cmd model.CreateOrderCommand) error {
	if cmd.ProductID <= 0 {
		return fmt.Errorf("%w: product is required", ErrInvalidCommand)
	}
	if !cmd.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidCommand)
	}
	for _, it := range cmd.Items {
		if it.MaterialID <= 0 || !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: invalid item for material %d", ErrInvalidCommand, it.MaterialID)
		}
	}
	return nil
}

// creationError turns a backend validation failure into a rejection carrying its message.
func creationError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError {
		return &model.OrderCreationRejectedError{Message: apiErr.Message}
	}
	return err
}

func transitionError(a model.Action, err error) error {
	if errors.Is(err, model.ErrInsufficientStock) || errors.Is(err, model.ErrBomNotDefined) || errors.Is(err, model.ErrInvalidTransition) {
		return err
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return &model.TransitionFailedError{Action: a, Message: apiErr.Message}
	}
	return fmt.Errorf("%s production: %w", a, err)
}
