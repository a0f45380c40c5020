package main

import (
	"context"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/wizard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
)

type fakeCreator struct {
	got []model.CreateOrderCommand
}

func (f *fakeCreator) Create(_ context.Context, cmd model.CreateOrderCommand) (int64, error) {
	f.got = append(f.got, cmd)
	return 77, nil
}

func testMaterials() []model.Material {
	return []model.Material{
		{ID: 1, Name: "Steel", Type: model.MaterialTypeRaw, CurrentStockLevel: decimal.NewFromInt(8)},
		{ID: 2, Name: "Screw", Type: model.MaterialTypeRaw, CurrentStockLevel: decimal.NewFromInt(100)},
		{ID: 10, Name: "Chair", Type: model.MaterialTypeFinished},
	}
}

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds keys in order and returns the model with the last command.
func press(t *testing.T, m tea.Model, keys ...string) (tea.Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(key(k))
	}
	return m, cmd
}

func TestWizardModelCreatesOrder(t *testing.T) {
	creator := &fakeCreator{}
	wiz := wizard.New(creator, testMaterials(), nil)
	var m tea.Model = newWizardModel(context.Background(), wiz)

	m, _ = press(t, m, "enter")
	if wiz.Step() != wizard.StepDefineBom {
		t.Fatalf("Expected DefineBom after choosing product, got %s", wiz.Step())
	}

	// line 1: Steel x 2, line 2: Screw x 3
	m, _ = press(t, m, "right", "e", "backspace", "2", "enter")
	m, _ = press(t, m, "down", "right", "e", "backspace", "3", "enter")
	lines := wiz.Lines()
	if lines[0].ComponentID != 1 || !lines[0].QuantityPerUnit.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected line 1: %+v", lines[0])
	}
	if lines[1].ComponentID != 2 || !lines[1].QuantityPerUnit.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected line 2: %+v", lines[1])
	}

	m, _ = press(t, m, "n")
	if wiz.Step() != wizard.StepReviewAndSubmit {
		t.Fatalf("Expected review, got %s (%s)", wiz.Step(), m.View())
	}
	m, _ = press(t, m, "e", "backspace", "5", "enter")
	if !wiz.HasShortage() {
		t.Fatal("Expected shortage for 10 Steel against 8 in stock")
	}

	m, cmd := press(t, m, "s")
	if cmd != nil || !strings.Contains(m.View(), "Press y") {
		t.Fatalf("Expected shortage confirmation prompt, got %q", m.View())
	}
	m, cmd = press(t, m, "y")
	if cmd == nil {
		t.Fatal("Expected submit command after confirmation")
	}
	m, cmd = m.Update(cmd())
	if cmd == nil {
		t.Error("Expected quit after successful submit")
	}

	if wiz.Step() != wizard.StepDone || wiz.OrderID() != 77 {
		t.Fatalf("Expected Done with order 77, got %s %d", wiz.Step(), wiz.OrderID())
	}
	if len(creator.got) != 1 {
		t.Fatalf("Expected 1 create call, got %d", len(creator.got))
	}
	items := creator.got[0].Items
	if len(items) != 2 || !items[0].Quantity.Equal(decimal.NewFromInt(10)) || !items[1].Quantity.Equal(decimal.NewFromInt(15)) {
		t.Errorf("unexpected items: %+v", items)
	}
	if !strings.Contains(m.View(), "#77") {
		t.Errorf("Expected done view to show order id, got %q", m.View())
	}
}

func TestWizardModelIncompleteBomStays(t *testing.T) {
	wiz := wizard.New(&fakeCreator{}, testMaterials(), nil)
	var m tea.Model = newWizardModel(context.Background(), wiz)

	m, _ = press(t, m, "enter", "n")
	if wiz.Step() != wizard.StepDefineBom {
		t.Fatalf("Expected to stay on DefineBom, got %s", wiz.Step())
	}
	if !strings.Contains(m.View(), "no component") {
		t.Errorf("Expected validation notice, got %q", m.View())
	}
}

func TestWizardModelSkipsUsedComponents(t *testing.T) {
	wiz := wizard.New(&fakeCreator{}, testMaterials(), nil)
	var m tea.Model = newWizardModel(context.Background(), wiz)

	m, _ = press(t, m, "enter", "right", "down", "right")
	lines := wiz.Lines()
	if lines[0].ComponentID != 1 || lines[1].ComponentID != 2 {
		t.Errorf("Expected Steel then Screw, got %+v", lines)
	}
	// cycling past the end wraps to none
	press(t, m, "right")
	if got := wiz.Lines()[1].ComponentID; got != 0 {
		t.Errorf("Expected line cleared after wrap, got %d", got)
	}
}

func TestWizardModelEscCancels(t *testing.T) {
	wiz := wizard.New(&fakeCreator{}, testMaterials(), nil)
	var m tea.Model = newWizardModel(context.Background(), wiz)

	m, cmd := press(t, m, "esc")
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if wiz.Step() != wizard.StepCancelled {
		t.Errorf("Expected Cancelled, got %s", wiz.Step())
	}
	if m.View() != "" {
		t.Errorf("Expected empty view after cancel, got %q", m.View())
	}
}
