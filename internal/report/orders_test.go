package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sampleOrders(now time.Time) []model.ProductionOrder {
	end := now.Add(-time.Hour)
	return []model.ProductionOrder{
		{
			ID: 2, OrderNumber: "PRD-20261016-0002", ProductName: "Chair",
			Quantity: decimal.NewFromInt(5), Status: model.StatusPlanned, Priority: model.PriorityHigh,
			StartDate: now,
			Items: []model.OrderItem{
				{ID: 20, MaterialID: 1, MaterialName: "Steel", Quantity: decimal.NewFromInt(10)},
				{ID: 21, MaterialID: 2, MaterialName: "Screw", Quantity: decimal.NewFromInt(15)},
			},
		},
		{
			ID: 1, OrderNumber: "PRD-20261016-0001", ProductName: "Chair",
			Quantity: decimal.NewFromInt(1), Status: model.StatusCompleted,
			StartDate: now.Add(-2 * time.Hour), EndDate: &end,
		},
	}
}

func TestOrdersWorkbook(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	f, err := OrdersWorkbook(sampleOrders(now), now)
	if err != nil {
		t.Fatalf("exportOrders: %v", err)
	}

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	x, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer x.Close()

	tests := []struct {
		sheet, cell, want string
	}{
		{OrdersSheet, "A1", "订单号"},
		{OrdersSheet, "A2", "PRD-20261016-0002"},
		{OrdersSheet, "D2", "Planned"},
		{OrdersSheet, "E2", "High"},
		{OrdersSheet, "F2", "0"},
		{OrdersSheet, "G2", "2026-10-16"},
		{OrdersSheet, "F3", "100"},
		{OrdersSheet, "H3", "2026-10-16"},
		{OrdersSheet, "A4", "汇总"},
		{OrdersSheet, "F4", "50%"},
		{ItemsSheet, "A2", "PRD-20261016-0002"},
		{ItemsSheet, "C2", "Steel"},
		{ItemsSheet, "C3", "Screw"},
		{ItemsSheet, "D3", "15"},
		{ItemsSheet, "A4", ""},
	}
	for _, tt := range tests {
		got, err := x.GetCellValue(tt.sheet, tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s!%s): %v", tt.sheet, tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
		}
	}
}

func TestOrdersWorkbookEmpty(t *testing.T) {
	f, err := OrdersWorkbook(nil, time.Now())
	if err != nil {
		t.Fatalf("exportOrders: %v", err)
	}
	defer f.Close()

	got, _ := f.GetCellValue(OrdersSheet, "B2")
	if got != "订单数: 0" {
		t.Errorf("Expected empty summary row, got %q", got)
	}
	got, _ = f.GetCellValue(OrdersSheet, "F2")
	if got != "0%" {
		t.Errorf("Expected 0%% efficiency, got %q", got)
	}
}
