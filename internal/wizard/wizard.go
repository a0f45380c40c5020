// Package wizard walks an operator from product selection through an
// order-scoped bill of materials to a submitted production order.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/bom"
	"github.com/bitfantasy/nimo-mes/internal/catalog"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/stock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrIllegalTransition    = errors.New("illegal wizard transition")
	ErrShortageNotConfirmed = errors.New("stock shortage must be confirmed before submitting")
	ErrInvalidQuantity      = errors.New("order quantity must be greater than zero")
	ErrSubmitInFlight       = errors.New("order submission already in progress")
	ErrUnknownProduct       = errors.New("product is not a finished good in the catalog")
)

type Step int

const (
	StepSelectProduct Step = iota
	StepDefineBom
	StepReviewAndSubmit
	StepDone
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepSelectProduct:
		return "SelectProduct"
	case StepDefineBom:
		return "DefineBom"
	case StepReviewAndSubmit:
		return "ReviewAndSubmit"
	case StepDone:
		return "Done"
	case StepCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

type Action string

const (
	ActionNext   Action = "next"
	ActionBack   Action = "back"
	ActionSubmit Action = "submit"
	ActionCancel Action = "cancel"
)

// steps is every legal move. Done and Cancelled are terminal.
var steps = map[Step]map[Action]Step{
	StepSelectProduct: {
		ActionNext:   StepDefineBom,
		ActionCancel: StepCancelled,
	},
	StepDefineBom: {
		ActionNext:   StepReviewAndSubmit,
		ActionBack:   StepSelectProduct,
		ActionCancel: StepCancelled,
	},
	StepReviewAndSubmit: {
		ActionBack:   StepDefineBom,
		ActionSubmit: StepDone,
		ActionCancel: StepCancelled,
	},
}

// initialLines is how many empty lines a fresh definition starts with.
const initialLines = 2

// Creator submits the order. lifecycle.Controller implements it.
type Creator interface {
	Create(ctx context.Context, cmd model.CreateOrderCommand) (int64, error)
}

type Wizard struct {
	creator Creator
	logger  *zap.Logger
	now     func() time.Time

	mu           sync.Mutex
	step         Step
	materials    map[int64]model.Material
	partitioned  catalog.Partitioned
	productID    int64
	builder      *bom.Builder
	frozen       []bom.Line
	quantity     decimal.Decimal
	startDate    time.Time
	priority     model.Priority
	notes        string
	requirements []stock.Line
	submitting   bool
	lastErr      error
	orderID      int64
}

// New starts a wizard over a stock snapshot. The snapshot is not refreshed
// while the wizard runs.
func New(creator Creator, materials []model.Material, logger *zap.Logger) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{
		creator:     creator,
		logger:      logger,
		now:         time.Now,
		step:        StepSelectProduct,
		materials:   catalog.IndexByID(materials),
		partitioned: catalog.Partition(materials),
		builder:     bom.NewBuilder(0),
		quantity:    decimal.NewFromInt(1),
		priority:    model.PriorityMedium,
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// FinishedGoods are the products that can be selected.
func (w *Wizard) FinishedGoods() []model.Material {
	return append([]model.Material(nil), w.partitioned.FinishedGoods...)
}

// RawMaterials are the components that can be used.
func (w *Wizard) RawMaterials() []model.Material {
	return append([]model.Material(nil), w.partitioned.RawMaterials...)
}

// Product is the selected finished good.
func (w *Wizard) Product() (model.Material, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.materials[w.productID]
	return m, ok && w.productID != 0
}

func (w *Wizard) Lines() []bom.Line {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.builder.Lines()
}

func (w *Wizard) Quantity() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quantity
}

func (w *Wizard) Requirements() []stock.Line {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]stock.Line(nil), w.requirements...)
}

func (w *Wizard) HasShortage() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return stock.HasShortage(w.requirements)
}

// LastError is the failure of the latest submit, cleared by the next one.
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// OrderID is set once the wizard reaches Done.
func (w *Wizard) OrderID() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.orderID
}

// SelectProduct picks the target product and starts a fresh definition with
// two empty lines.
func (w *Wizard) SelectProduct(productID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSelectProduct {
		return w.illegal(ActionNext)
	}
	m, ok := w.materials[productID]
	if !ok || m.Type != model.MaterialTypeFinished {
		return fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
	}
	w.productID = productID
	w.builder.Reset(productID, initialLines)
	w.frozen = nil
	w.requirements = nil
	w.step = StepDefineBom
	return nil
}

func (w *Wizard) AddLine() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepDefineBom {
		return w.illegalEdit()
	}
	w.builder.AddLine()
	return nil
}

func (w *Wizard) RemoveLine(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepDefineBom {
		return w.illegalEdit()
	}
	return w.builder.RemoveLine(index)
}

// SelectComponent accepts raw materials only. A rejected selection leaves the
// line empty and is reported as a warning, not an error.
func (w *Wizard) SelectComponent(index int, componentID int64) (*bom.Warning, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepDefineBom {
		return nil, w.illegalEdit()
	}
	if componentID != 0 && componentID != w.productID {
		if m, ok := w.materials[componentID]; !ok || m.Type != model.MaterialTypeRaw {
			if err := w.builder.ClearComponent(index); err != nil {
				return nil, err
			}
			return &bom.Warning{Kind: bom.WarnNotRawMaterial, Line: index, ComponentID: componentID}, nil
		}
	}
	return w.builder.SelectComponent(index, componentID)
}

func (w *Wizard) SetLineQuantity(index int, qty decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepDefineBom {
		return w.illegalEdit()
	}
	return w.builder.SetQuantity(index, qty)
}

// Next moves forward one step. Leaving DefineBom requires a valid definition,
// which is then frozen and costed at the current quantity.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	to, err := w.move(ActionNext)
	if err != nil {
		return err
	}
	switch w.step {
	case StepSelectProduct:
		if w.productID == 0 {
			return fmt.Errorf("%w: select a product first", ErrUnknownProduct)
		}
	case StepDefineBom:
		if err := w.builder.Validate(); err != nil {
			return err
		}
		w.frozen = w.builder.Lines()
		w.recompute()
	}
	w.step = to
	return nil
}

// Back keeps the definition so it can be edited again.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	to, err := w.move(ActionBack)
	if err != nil {
		return err
	}
	w.lastErr = nil
	w.step = to
	return nil
}

// SetQuantity recosts the frozen definition. Zero is accepted here and
// refused at submit.
func (w *Wizard) SetQuantity(qty decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return ErrSubmitInFlight
	}
	if w.step != StepReviewAndSubmit {
		return fmt.Errorf("%w: quantity can only be changed on review", ErrIllegalTransition)
	}
	if qty.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
	}
	w.quantity = qty
	w.recompute()
	return nil
}

// SetSchedule fills in the remaining order fields. An empty priority is Medium.
func (w *Wizard) SetSchedule(start time.Time, priority model.Priority, notes string) error {
	p, err := model.ParsePriority(string(priority))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return ErrSubmitInFlight
	}
	if w.step != StepReviewAndSubmit {
		return fmt.Errorf("%w: schedule can only be changed on review", ErrIllegalTransition)
	}
	w.startDate = start
	w.priority = p
	w.notes = notes
	return nil
}

// Submit creates the order from the required quantities. A shortage needs
// confirmShortage. On failure the wizard stays on review with LastError set.
func (w *Wizard) Submit(ctx context.Context, confirmShortage bool) (int64, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return 0, ErrSubmitInFlight
	}
	if _, err := w.move(ActionSubmit); err != nil {
		w.mu.Unlock()
		return 0, err
	}
	if !w.quantity.IsPositive() {
		w.mu.Unlock()
		return 0, ErrInvalidQuantity
	}
	if stock.HasShortage(w.requirements) && !confirmShortage {
		w.mu.Unlock()
		return 0, ErrShortageNotConfirmed
	}

	start := w.startDate
	if start.IsZero() {
		start = w.now()
	}
	cmd := model.CreateOrderCommand{
		ProductID: w.productID,
		Quantity:  w.quantity,
		StartDate: start,
		Priority:  w.priority,
		Notes:     w.notes,
		Items:     stock.OrderItems(w.requirements),
	}
	w.submitting = true
	w.lastErr = nil
	w.mu.Unlock()

	id, err := w.creator.Create(ctx, cmd)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.lastErr = err
		w.logger.Warn("Production order submission failed", zap.Int64("product_id", cmd.ProductID), zap.Error(err))
		return 0, err
	}
	w.orderID = id
	w.step = StepDone
	w.logger.Info("Production order submitted", zap.Int64("order_id", id), zap.Int64("product_id", cmd.ProductID))
	return id, nil
}

// Cancel abandons the wizard. Nothing has been persisted before Done.
func (w *Wizard) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	to, err := w.move(ActionCancel)
	if err != nil {
		return err
	}
	w.step = to
	return nil
}

// move checks the table. Nothing moves while a submit is in flight.
func (w *Wizard) move(a Action) (Step, error) {
	if w.submitting {
		return w.step, ErrSubmitInFlight
	}
	to, ok := steps[w.step][a]
	if !ok {
		return w.step, w.illegal(a)
	}
	return to, nil
}

func (w *Wizard) illegal(a Action) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, a, w.step)
}

func (w *Wizard) illegalEdit() error {
	return fmt.Errorf("%w: the bill of materials can only be edited on %s, wizard is on %s",
		ErrIllegalTransition, StepDefineBom, w.step)
}

func (w *Wizard) recompute() {
	w.requirements = stock.Compute(w.frozen, w.quantity, w.materials)
}
