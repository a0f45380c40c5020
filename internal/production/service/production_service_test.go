package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/repository"
	"github.com/bitfantasy/nimo-mes/internal/production/sse"
	"github.com/bitfantasy/nimo-mes/internal/testutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Services
	steel  *entity.Material
	screw  *entity.Material
	chair  *entity.Material
	userID string
}

func setupServiceTest(t *testing.T, steelStock, screwStock string) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewServices(db, repository.NewRepositories(db), Options{}, nil)
	return &fixture{
		db:     db,
		svc:    svc,
		steel:  testutil.SeedMaterial(t, db, "Steel", model.MaterialTypeRaw, steelStock),
		screw:  testutil.SeedMaterial(t, db, "Screw", model.MaterialTypeRaw, screwStock),
		chair:  testutil.SeedMaterial(t, db, "Chair", model.MaterialTypeFinished, "0"),
		userID: "test-user-001",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) stock(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	m, err := f.svc.Inventory.GetMaterial(context.Background(), id)
	if err != nil {
		t.Fatalf("GetMaterial: %v", err)
	}
	return m.CurrentStockLevel
}

func (f *fixture) createOrder(t *testing.T, qty string, items ...model.OrderItemInput) int64 {
	t.Helper()
	id, err := f.svc.Production.CreateOrder(context.Background(), model.CreateOrderCommand{
		ProductID: f.chair.ID,
		Quantity:  dec(qty),
		Items:     items,
	}, f.userID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return id
}

func TestStartInsufficientStockLeavesOrderPlanned(t *testing.T) {
	f := setupServiceTest(t, "5", "100")
	ctx := context.Background()
	id := f.createOrder(t, "1",
		model.OrderItemInput{MaterialID: f.screw.ID, Quantity: dec("4")},
		model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("10")},
	)

	err := f.svc.Production.Start(ctx, id, f.userID)
	var stockErr *model.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.MaterialID != f.steel.ID || !stockErr.Required.Equal(dec("10")) || !stockErr.Available.Equal(dec("5")) {
		t.Errorf("unexpected detail %+v", stockErr)
	}

	order, err := f.svc.Production.GetOrder(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != model.StatusPlanned {
		t.Errorf("Expected Planned, got %s", order.Status)
	}
	if !f.stock(t, f.screw.ID).Equal(dec("100")) {
		t.Errorf("screw must not be deducted when steel is short, got %s", f.stock(t, f.screw.ID))
	}
	if txs, _ := f.svc.Production.Ledger(ctx, id); len(txs) != 0 {
		t.Errorf("Expected no ledger entries, got %d", len(txs))
	}
}

func TestStartAndComplete(t *testing.T) {
	f := setupServiceTest(t, "100", "100")
	ctx := context.Background()
	id := f.createOrder(t, "5",
		model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("10")},
		model.OrderItemInput{MaterialID: f.screw.ID, Quantity: dec("15")},
	)

	if err := f.svc.Production.Complete(ctx, id, f.userID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("Complete on Planned = %v", err)
	}
	if err := f.svc.Production.Start(ctx, id, f.userID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.stock(t, f.steel.ID).Equal(dec("90")) || !f.stock(t, f.screw.ID).Equal(dec("85")) {
		t.Errorf("unexpected stock after start: steel %s, screw %s", f.stock(t, f.steel.ID), f.stock(t, f.screw.ID))
	}
	if err := f.svc.Production.Start(ctx, id, f.userID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("second Start = %v", err)
	}
	if !f.stock(t, f.steel.ID).Equal(dec("90")) {
		t.Error("rejected start must not deduct again")
	}

	if err := f.svc.Production.Complete(ctx, id, f.userID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	order, _ := f.svc.Production.GetOrder(ctx, id)
	if order.Status != model.StatusCompleted || order.EndDate == nil {
		t.Errorf("Expected Completed with end date, got %s %v", order.Status, order.EndDate)
	}
	if !f.stock(t, f.chair.ID).Equal(dec("5")) {
		t.Errorf("Expected 5 chairs, got %s", f.stock(t, f.chair.ID))
	}
	if err := f.svc.Production.Start(ctx, id, f.userID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("Start on Completed = %v", err)
	}

	txs, err := f.svc.Production.Ledger(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 3 {
		t.Fatalf("Expected 3 ledger entries, got %d", len(txs))
	}
	var out, in int
	for _, tx := range txs {
		switch tx.TransactionType {
		case entity.TxTypeProductionOut:
			out++
			if !tx.Quantity.IsNegative() {
				t.Errorf("outgoing quantity must be negative, got %s", tx.Quantity)
			}
		case entity.TxTypeProductionIn:
			in++
			if !tx.BalanceAfter.Equal(dec("5")) {
				t.Errorf("Expected balance 5, got %s", tx.BalanceAfter)
			}
		}
	}
	if out != 2 || in != 1 {
		t.Errorf("Expected 2 out and 1 in, got %d and %d", out, in)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := setupServiceTest(t, "10", "10")
	ctx := context.Background()
	item := model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("1")}

	tests := []struct {
		name string
		cmd  model.CreateOrderCommand
		want string
	}{
		{"raw product", model.CreateOrderCommand{ProductID: f.steel.ID, Quantity: dec("1"), Items: []model.OrderItemInput{item}}, "not a finished good"},
		{"zero quantity", model.CreateOrderCommand{ProductID: f.chair.ID, Quantity: dec("0"), Items: []model.OrderItemInput{item}}, "greater than zero"},
		{"self component", model.CreateOrderCommand{ProductID: f.chair.ID, Quantity: dec("1"), Items: []model.OrderItemInput{{MaterialID: f.chair.ID, Quantity: dec("1")}}}, "component of itself"},
		{"duplicate", model.CreateOrderCommand{ProductID: f.chair.ID, Quantity: dec("1"), Items: []model.OrderItemInput{item, item}}, "more than once"},
		{"unknown material", model.CreateOrderCommand{ProductID: f.chair.ID, Quantity: dec("1"), Items: []model.OrderItemInput{{MaterialID: 9999, Quantity: dec("1")}}}, "not found"},
		{"no items no recipe", model.CreateOrderCommand{ProductID: f.chair.ID, Quantity: dec("1")}, "Raw materials list is empty"},
		{"bad priority", model.CreateOrderCommand{ProductID: f.chair.ID, Quantity: dec("1"), Priority: "Urgent", Items: []model.OrderItemInput{item}}, "unknown priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Production.CreateOrder(ctx, tt.cmd, f.userID)
			if !errors.Is(err, model.ErrValidation) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want validation error containing %q", err, tt.want)
			}
		})
	}
}

func TestRecipeScaledWhenItemsOmitted(t *testing.T) {
	f := setupServiceTest(t, "100", "100")
	ctx := context.Background()

	n, err := f.svc.Production.CreateBOM(ctx, model.CreateBOMCommand{
		ProductID: f.chair.ID,
		Components: []model.BomComponentInput{
			{ComponentID: f.steel.ID, Quantity: dec("2")},
			{ComponentID: f.screw.ID, Quantity: dec("3")},
		},
	}, f.userID)
	if err != nil || n != 2 {
		t.Fatalf("CreateBOM = %d, %v", n, err)
	}

	id := f.createOrder(t, "5")
	order, err := f.svc.Production.GetOrder(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(order.Items) != 2 || !order.Items[0].Quantity.Equal(dec("10")) || !order.Items[1].Quantity.Equal(dec("15")) {
		t.Errorf("Expected items 10 and 15, got %+v", order.Items)
	}
	if order.Priority != model.PriorityMedium {
		t.Errorf("Expected default priority Medium, got %s", order.Priority)
	}
}

func TestCreateBOMRejectsSelfReference(t *testing.T) {
	f := setupServiceTest(t, "1", "1")
	_, err := f.svc.Production.CreateBOM(context.Background(), model.CreateBOMCommand{
		ProductID:  f.chair.ID,
		Components: []model.BomComponentInput{{ComponentID: f.chair.ID, Quantity: dec("1")}},
	}, f.userID)
	if !errors.Is(err, model.ErrValidation) || !strings.Contains(err.Error(), "component of itself") {
		t.Errorf("got %v", err)
	}
}

func TestZeroedItemsMeanNoBom(t *testing.T) {
	f := setupServiceTest(t, "100", "100")
	ctx := context.Background()
	id := f.createOrder(t, "1", model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("3")})
	order, _ := f.svc.Production.GetOrder(ctx, id)

	for _, qty := range []decimal.Decimal{decimal.Zero, dec("-2")} {
		err := f.svc.Production.UpdateItems(ctx, id, []model.OrderItemUpdate{{ID: order.Items[0].ID, Quantity: qty}})
		if !errors.Is(err, model.ErrValidation) {
			t.Errorf("quantity %s: expected ErrValidation, got %v", qty, err)
		}
	}

	// rows zeroed before quantities had to be positive are skipped at start
	if err := f.db.Model(&entity.ProductionOrderItem{}).Where("id = ?", order.Items[0].ID).Update("quantity", decimal.Zero).Error; err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Production.Start(ctx, id, f.userID); !errors.Is(err, model.ErrBomNotDefined) {
		t.Errorf("Expected ErrBomNotDefined, got %v", err)
	}
	if err := f.svc.Production.UpdateItems(ctx, id, []model.OrderItemUpdate{{ID: 424242, Quantity: dec("1")}}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("foreign item id = %v", err)
	}
}

func TestOrderNumbersAndFilter(t *testing.T) {
	f := setupServiceTest(t, "100", "100")
	ctx := context.Background()
	first := f.createOrder(t, "1", model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("1")})
	f.createOrder(t, "1", model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("1")})

	if err := f.svc.Production.Start(ctx, first, f.userID); err != nil {
		t.Fatal(err)
	}

	all, err := f.svc.Production.ListOrders(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListOrders = %d, %v", len(all), err)
	}
	pattern := regexp.MustCompile(`^PRD-\d{8}-000[12]$`)
	for _, o := range all {
		if !pattern.MatchString(o.OrderNumber) {
			t.Errorf("unexpected order number %q", o.OrderNumber)
		}
	}
	if all[0].OrderNumber == all[1].OrderNumber {
		t.Error("order numbers must be unique")
	}

	started, _ := f.svc.Production.ListOrders(ctx, "Started")
	if len(started) != 1 || started[0].ID != first {
		t.Errorf("unexpected filtered list %+v", started)
	}
	if _, err := f.svc.Production.ListOrders(ctx, "Cancelled"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("unknown status = %v", err)
	}
	if _, err := f.svc.Production.GetOrder(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing order = %v", err)
	}
}

func TestTransitionsPublishEvents(t *testing.T) {
	f := setupServiceTest(t, "100", "100")
	ctx := context.Background()
	client := &sse.Client{ID: "dash", Events: make(chan sse.Event, 8)}
	f.svc.Events.Register(client)
	defer f.svc.Events.Unregister("dash")

	id := f.createOrder(t, "1", model.OrderItemInput{MaterialID: f.steel.ID, Quantity: dec("2")})
	if err := f.svc.Production.Start(ctx, id, f.userID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// a rejected transition publishes nothing
	if err := f.svc.Production.Start(ctx, id, f.userID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	want := []string{sse.EventOrderUpdate, sse.EventOrderUpdate, sse.EventStockUpdate}
	for i, w := range want {
		select {
		case ev := <-client.Events:
			if ev.EventType != w {
				t.Errorf("event %d: expected %s, got %s", i, w, ev.EventType)
			}
			if i == 1 && !strings.Contains(ev.Data, `"status":"Started"`) {
				t.Errorf("unexpected start payload %s", ev.Data)
			}
		default:
			t.Fatalf("event %d: expected %s, got nothing", i, w)
		}
	}
	select {
	case ev := <-client.Events:
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
}
