package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/bom"
	"github.com/bitfantasy/nimo-mes/internal/lifecycle"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/wizard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newWizardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Create a production order step by step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			materials, err := a.catalog.ListMaterials(ctx)
			if err != nil {
				return errors.New(lifecycle.UserMessage(err))
			}
			wiz := wizard.New(a.controller, materials, a.logger)
			if len(wiz.FinishedGoods()) == 0 {
				return errors.New("no finished goods in inventory, create one first")
			}

			if _, err := tea.NewProgram(newWizardModel(ctx, wiz)).Run(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wiz.Step() != wizard.StepDone {
				fmt.Fprintln(out, "wizard cancelled, nothing was created")
				return nil
			}
			order, err := a.controller.Get(ctx, wiz.OrderID())
			if err != nil {
				fmt.Fprintf(out, "created order #%d\n", wiz.OrderID())
				return nil
			}
			fmt.Fprintf(out, "created %s for %s %s\n", order.OrderNumber, order.Quantity, order.ProductName)
			return nil
		},
	}
}

type editTarget int

const (
	editNone editTarget = iota
	editLineQuantity
	editOrderQuantity
)

type submitResultMsg struct {
	id  int64
	err error
}

var priorities = []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh}

// wizardModel renders a wizard.Wizard. Every rule lives in the wizard, the
// model only maps keys to calls and shows the outcome.
type wizardModel struct {
	ctx      context.Context
	wiz      *wizard.Wizard
	cursor   int
	input    textinput.Model
	editing  editTarget
	priority int
	notice   string
	confirm  bool
	quitting bool
}

func newWizardModel(ctx context.Context, wiz *wizard.Wizard) wizardModel {
	ti := textinput.New()
	ti.CharLimit = 32
	return wizardModel{ctx: ctx, wiz: wiz, input: ti, priority: 1}
}

func (m wizardModel) Init() tea.Cmd {
	return nil
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case submitResultMsg:
		if msg.err != nil {
			m.notice = errorNotice(msg.err)
			return m, nil
		}
		m.notice = ""
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			_ = m.wiz.Cancel()
			m.quitting = true
			return m, tea.Quit
		}
		if m.editing != editNone {
			return m.updateInput(msg)
		}
		if m.wiz.Submitting() {
			return m, nil
		}
		switch m.wiz.Step() {
		case wizard.StepSelectProduct:
			return m.updateSelectProduct(msg)
		case wizard.StepDefineBom:
			return m.updateDefineBom(msg)
		case wizard.StepReviewAndSubmit:
			return m.updateReview(msg)
		default:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m wizardModel) updateSelectProduct(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	products := m.wiz.FinishedGoods()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(products)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(products) {
			if err := m.wiz.SelectProduct(products[m.cursor].ID); err != nil {
				m.notice = err.Error()
				return m, nil
			}
			m.cursor = 0
			m.notice = ""
		}
	case "esc":
		return m.cancel()
	}
	return m, nil
}

func (m wizardModel) updateDefineBom(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lines := m.wiz.Lines()
	m.notice = ""
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(lines)-1 {
			m.cursor++
		}
	case "left", "h":
		m.cycleComponent(-1)
	case "right", "l":
		m.cycleComponent(1)
	case "a":
		if err := m.wiz.AddLine(); err != nil {
			m.notice = err.Error()
			break
		}
		m.cursor = len(lines)
	case "d":
		if err := m.wiz.RemoveLine(m.cursor); err != nil {
			m.notice = err.Error()
			break
		}
		if m.cursor > 0 && m.cursor >= len(lines)-1 {
			m.cursor--
		}
	case "e", "enter":
		if m.cursor < len(lines) {
			return m.startEdit(editLineQuantity, lines[m.cursor].QuantityPerUnit)
		}
	case "n", "tab":
		if err := m.wiz.Next(); err != nil {
			m.notice = err.Error()
		}
		m.confirm = false
	case "b":
		if err := m.wiz.Back(); err != nil {
			m.notice = err.Error()
		}
		m.cursor = 0
	case "esc":
		return m.cancel()
	}
	return m, nil
}

func (m wizardModel) updateReview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "e":
		return m.startEdit(editOrderQuantity, m.wiz.Quantity())
	case "p":
		m.priority = (m.priority + 1) % len(priorities)
		if err := m.wiz.SetSchedule(time.Time{}, priorities[m.priority], ""); err != nil {
			m.notice = err.Error()
		}
	case "s", "enter":
		if m.wiz.HasShortage() && !m.confirm {
			m.confirm = true
			m.notice = "Stock is short for this order. Press y to create it anyway."
			return m, nil
		}
		return m, m.submit(m.confirm)
	case "y":
		if m.confirm {
			return m, m.submit(true)
		}
	case "b":
		m.confirm = false
		m.notice = ""
		if err := m.wiz.Back(); err != nil {
			m.notice = err.Error()
		}
		m.cursor = 0
	case "esc":
		return m.cancel()
	}
	return m, nil
}

func (m wizardModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = editNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		qty, err := decimal.NewFromString(strings.TrimSpace(m.input.Value()))
		if err != nil {
			m.notice = fmt.Sprintf("%q is not a number", m.input.Value())
			return m, nil
		}
		if m.editing == editLineQuantity {
			err = m.wiz.SetLineQuantity(m.cursor, qty)
		} else {
			err = m.wiz.SetQuantity(qty)
			m.confirm = false
		}
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = ""
		m.editing = editNone
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m wizardModel) startEdit(target editTarget, current decimal.Decimal) (tea.Model, tea.Cmd) {
	m.editing = target
	m.input.SetValue(current.String())
	m.input.CursorEnd()
	m.input.Focus()
	return m, textinput.Blink
}

func (m wizardModel) cancel() (tea.Model, tea.Cmd) {
	if err := m.wiz.Cancel(); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.quitting = true
	return m, tea.Quit
}

// submit runs off the update loop. The wizard holds the in-flight flag.
func (m wizardModel) submit(confirm bool) tea.Cmd {
	ctx, wiz := m.ctx, m.wiz
	return func() tea.Msg {
		id, err := wiz.Submit(ctx, confirm)
		return submitResultMsg{id: id, err: err}
	}
}

// cycleComponent steps the current line through the raw materials not used
// by another line, with "none" between the ends.
func (m *wizardModel) cycleComponent(delta int) {
	lines := m.wiz.Lines()
	if m.cursor >= len(lines) {
		return
	}
	used := make(map[int64]bool, len(lines))
	for i, l := range lines {
		if i != m.cursor && l.ComponentID != 0 {
			used[l.ComponentID] = true
		}
	}
	options := []int64{0}
	for _, r := range m.wiz.RawMaterials() {
		if !used[r.ID] {
			options = append(options, r.ID)
		}
	}
	cur := 0
	for i, id := range options {
		if id == lines[m.cursor].ComponentID {
			cur = i
		}
	}
	next := (cur + delta + len(options)) % len(options)
	warn, err := m.wiz.SelectComponent(m.cursor, options[next])
	switch {
	case err != nil:
		m.notice = err.Error()
	case warn != nil:
		m.notice = warn.String()
	}
}

func (m wizardModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	switch m.wiz.Step() {
	case wizard.StepSelectProduct:
		m.viewSelectProduct(&b)
	case wizard.StepDefineBom:
		m.viewDefineBom(&b)
	case wizard.StepReviewAndSubmit:
		m.viewReview(&b)
	case wizard.StepDone:
		fmt.Fprintf(&b, "Production order #%d created.\n", m.wiz.OrderID())
	}
	if m.editing != editNone {
		fmt.Fprintf(&b, "\nQuantity: %s\n", m.input.View())
	}
	if m.notice != "" {
		fmt.Fprintf(&b, "\n%s\n", m.notice)
	}
	return b.String()
}

func (m wizardModel) viewSelectProduct(b *strings.Builder) {
	b.WriteString("Step 1/3  Select the product to manufacture\n\n")
	for i, p := range m.wiz.FinishedGoods() {
		fmt.Fprintf(b, "%s %s (stock %s)\n", marker(i == m.cursor), p.Name, p.CurrentStockLevel)
	}
	b.WriteString("\n↑/↓ move  enter select  esc cancel\n")
}

func (m wizardModel) viewDefineBom(b *strings.Builder) {
	product, _ := m.wiz.Product()
	fmt.Fprintf(b, "Step 2/3  Components of %s, per unit\n\n", product.Name)
	names := make(map[int64]string)
	for _, r := range m.wiz.RawMaterials() {
		names[r.ID] = r.Name
	}
	for i, l := range m.wiz.Lines() {
		fmt.Fprintf(b, "%s %-24s x %s\n", marker(i == m.cursor), componentName(l, names), l.QuantityPerUnit)
	}
	b.WriteString("\n←/→ component  e quantity  a add  d remove  n next  b back  esc cancel\n")
}

func (m wizardModel) viewReview(b *strings.Builder) {
	product, _ := m.wiz.Product()
	fmt.Fprintf(b, "Step 3/3  Review %s x %s (priority %s)\n\n", product.Name, m.wiz.Quantity(), priorities[m.priority])
	for _, r := range m.wiz.Requirements() {
		state := "ok"
		if !r.IsSufficient {
			state = fmt.Sprintf("short by %s", r.Shortfall())
		}
		fmt.Fprintf(b, "  %-24s required %-8s available %-8s %s\n", r.MaterialName, r.RequiredQuantity, r.AvailableQuantity, state)
	}
	if m.wiz.Submitting() {
		b.WriteString("\nSubmitting...\n")
		return
	}
	b.WriteString("\ne quantity  p priority  s submit  b back  esc cancel\n")
}

func componentName(l bom.Line, names map[int64]string) string {
	if l.ComponentID == 0 {
		return "(choose)"
	}
	if n, ok := names[l.ComponentID]; ok {
		return n
	}
	return fmt.Sprintf("#%d", l.ComponentID)
}

func marker(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}

// errorNotice keeps the wizard's own refusals verbatim and words backend
// failures for the operator.
func errorNotice(err error) string {
	switch {
	case errors.Is(err, wizard.ErrInvalidQuantity),
		errors.Is(err, wizard.ErrShortageNotConfirmed),
		errors.Is(err, wizard.ErrIllegalTransition),
		errors.Is(err, wizard.ErrSubmitInFlight):
		return err.Error()
	}
	return lifecycle.UserMessage(err)
}
