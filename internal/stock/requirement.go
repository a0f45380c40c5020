// Package stock projects BOM requirements against the last fetched stock levels.
package stock

import (
	"github.com/bitfantasy/nimo-mes/internal/bom"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
)

const unknownMaterial = "Unknown"

// Line is one component's requirement for a prospective order. Never persisted.
type Line struct {
	MaterialID        int64
	MaterialName      string
	RequiredQuantity  decimal.Decimal
	AvailableQuantity decimal.Decimal
	IsSufficient      bool
}

// Shortfall is how much is missing, zero when sufficient.
func (l Line) Shortfall() decimal.Decimal {
	if l.IsSufficient {
		return decimal.Zero
	}
	return l.RequiredQuantity.Sub(l.AvailableQuantity)
}

// Compute returns one line per BOM line. A component missing from
// materialsByID counts as zero available.
func Compute(lines []bom.Line, orderQty decimal.Decimal, materialsByID map[int64]model.Material) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, project(l.ComponentID, "", l.QuantityPerUnit.Mul(orderQty), materialsByID))
	}
	return out
}

// ForItems checks the item totals of a saved order against current stock.
// Items without a positive quantity are left out, the backend skips them at start.
func ForItems(items []model.OrderItem, materialsByID map[int64]model.Material) []Line {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		if !it.Quantity.IsPositive() {
			continue
		}
		out = append(out, project(it.MaterialID, it.MaterialName, it.Quantity, materialsByID))
	}
	return out
}

func project(id int64, name string, required decimal.Decimal, materialsByID map[int64]model.Material) Line {
	available := decimal.Zero
	m, ok := materialsByID[id]
	if ok {
		available = m.CurrentStockLevel
	}
	if name == "" {
		name = unknownMaterial
		if ok {
			name = m.Name
		}
	}
	return Line{
		MaterialID:        id,
		MaterialName:      name,
		RequiredQuantity:  required,
		AvailableQuantity: available,
		IsSufficient:      available.GreaterThanOrEqual(required),
	}
}

// HasShortage is false for an empty list.
func HasShortage(lines []Line) bool {
	for _, l := range lines {
		if !l.IsSufficient {
			return true
		}
	}
	return false
}

// OrderItems turns requirements into order items carrying the total required quantity.
func OrderItems(lines []Line) []model.OrderItemInput {
	items := make([]model.OrderItemInput, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.OrderItemInput{MaterialID: l.MaterialID, Quantity: l.RequiredQuantity})
	}
	return items
}
