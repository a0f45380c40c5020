package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/lifecycle"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/stock"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printMaterials(w io.Writer, materials []model.Material) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tTYPE\tSTOCK\tMIN\tUNIT")
	for _, m := range materials {
		stock := m.CurrentStockLevel.String()
		if m.BelowMinimum() {
			stock += " !"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Code, m.Name, m.Type, stock, m.MinimumStockLevel, m.UnitOfMeasure)
	}
	return tw.Flush()
}

func printOrders(w io.Writer, orders []model.ProductionOrder) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tORDER\tPRODUCT\tQTY\tSTATUS\tPROGRESS\tSTART\tNEXT")
	for _, o := range orders {
		next := "-"
		if a, ok := lifecycle.NextAction(o); ok {
			next = string(a)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			o.ID, o.OrderNumber, o.ProductName, o.Quantity, o.Status,
			lifecycle.Progress(o), formatDate(o.StartDate), next)
	}
	return tw.Flush()
}

// printOrder shows the order and its items. With reqs each item is set
// against current stock.
func printOrder(w io.Writer, o model.ProductionOrder, reqs []stock.Line) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Order:\t%s (#%d)\n", o.OrderNumber, o.ID)
	fmt.Fprintf(tw, "Product:\t%s (#%d)\n", o.ProductName, o.ProductID)
	fmt.Fprintf(tw, "Quantity:\t%s\n", o.Quantity)
	fmt.Fprintf(tw, "Status:\t%s\n", o.Status)
	if o.Priority != "" {
		fmt.Fprintf(tw, "Priority:\t%s\n", o.Priority)
	}
	fmt.Fprintf(tw, "Start:\t%s\n", formatDate(o.StartDate))
	if o.EndDate != nil {
		fmt.Fprintf(tw, "End:\t%s\n", formatDate(*o.EndDate))
	}
	if o.Notes != "" {
		fmt.Fprintf(tw, "Notes:\t%s\n", o.Notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = newTable(w)
	if reqs == nil {
		fmt.Fprintln(tw, "ITEM\tMATERIAL\tQTY")
	} else {
		fmt.Fprintln(tw, "ITEM\tMATERIAL\tQTY\tAVAILABLE\tSTOCK")
	}
	byMaterial := requirementsByMaterial(reqs)
	for _, it := range o.Items {
		name := it.MaterialName
		if name == "" {
			name = fmt.Sprintf("#%d", it.MaterialID)
		}
		if reqs == nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", it.ID, name, it.Quantity)
			continue
		}
		available, state := "-", "skipped"
		if r, ok := byMaterial[it.MaterialID]; ok {
			available, state = r.AvailableQuantity.String(), stockState(r)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, name, it.Quantity, available, state)
	}
	return tw.Flush()
}

func requirementsByMaterial(reqs []stock.Line) map[int64]stock.Line {
	out := make(map[int64]stock.Line, len(reqs))
	for _, r := range reqs {
		out[r.MaterialID] = r
	}
	return out
}

func stockState(r stock.Line) string {
	if r.IsSufficient {
		return "ok"
	}
	return "short by " + r.Shortfall().String()
}

// shortageError lists every item the current stock cannot cover.
func shortageError(o model.ProductionOrder, reqs []stock.Line) error {
	var short []string
	for _, r := range reqs {
		if !r.IsSufficient {
			short = append(short, fmt.Sprintf("%s needs %s, %s available", r.MaterialName, r.RequiredQuantity, r.AvailableQuantity))
		}
	}
	return fmt.Errorf("shortage in stock for %s: %s. Use --force to start anyway", o.OrderNumber, strings.Join(short, "; "))
}

func printMetrics(w io.Writer, m lifecycle.Metrics) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Total orders:\t%d\n", m.Total)
	fmt.Fprintf(tw, "Active:\t%d\n", m.Active)
	fmt.Fprintf(tw, "In progress:\t%d\n", m.InProgress)
	fmt.Fprintf(tw, "Completed today:\t%d\n", m.CompletedToday)
	fmt.Fprintf(tw, "Efficiency:\t%d%%\n", m.Efficiency)
	return tw.Flush()
}

type orderItemYAML struct {
	ID         int64  `yaml:"id"`
	MaterialID int64  `yaml:"materialId"`
	Material   string `yaml:"material,omitempty"`
	Quantity   string `yaml:"quantity"`
	Available  string `yaml:"available,omitempty"`
	Stock      string `yaml:"stock,omitempty"`
}

type orderYAML struct {
	ID          int64           `yaml:"id"`
	OrderNumber string          `yaml:"orderNumber"`
	ProductID   int64           `yaml:"productId"`
	ProductName string          `yaml:"productName"`
	Quantity    string          `yaml:"quantity"`
	Status      string          `yaml:"status"`
	Priority    string          `yaml:"priority,omitempty"`
	Progress    int             `yaml:"progress"`
	StartDate   string          `yaml:"startDate"`
	EndDate     string          `yaml:"endDate,omitempty"`
	Notes       string          `yaml:"notes,omitempty"`
	Items       []orderItemYAML `yaml:"items,omitempty"`
}

func orderView(o model.ProductionOrder, reqs []stock.Line) orderYAML {
	v := orderYAML{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity.String(),
		Status:      string(o.Status),
		Priority:    string(o.Priority),
		Progress:    lifecycle.Progress(o),
		StartDate:   formatDate(o.StartDate),
		Notes:       o.Notes,
	}
	if o.EndDate != nil {
		v.EndDate = formatDate(*o.EndDate)
	}
	byMaterial := requirementsByMaterial(reqs)
	for _, it := range o.Items {
		item := orderItemYAML{
			ID:         it.ID,
			MaterialID: it.MaterialID,
			Material:   it.MaterialName,
			Quantity:   it.Quantity.String(),
		}
		if r, ok := byMaterial[it.MaterialID]; ok {
			item.Available = r.AvailableQuantity.String()
			item.Stock = stockState(r)
		}
		v.Items = append(v.Items, item)
	}
	return v
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
