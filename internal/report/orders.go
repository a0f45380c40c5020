// Package report builds the production workbooks and reads recipe files.
package report

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/lifecycle"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/xuri/excelize/v2"
)

const (
	OrdersSheet = "Orders"
	ItemsSheet  = "Items"

	dateLayout = "2006-01-02"
)

var orderExportHeaders = []string{"订单号", "产品", "数量", "状态", "优先级", "进度", "开始日期", "完成日期", "备注"}

var itemExportHeaders = []string{"订单号", "物料ID", "物料", "数量"}

// OrdersFilename 导出文件名
func OrdersFilename(now time.Time) string {
	return fmt.Sprintf("production_orders_%s.xlsx", now.Format("20060102_150405"))
}

// OrdersWorkbook writes one row per order and, on a second sheet, one row per
// order item for the orders that were fetched with items.
func OrdersWorkbook(orders []model.ProductionOrder, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}

	// 表头样式: 加粗
	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	writeHeaders(f, OrdersSheet, orderExportHeaders, boldStyle)
	writeHeaders(f, ItemsSheet, itemExportHeaders, boldStyle)

	itemRow := 2
	for i, o := range orders {
		row := i + 2
		f.SetCellValue(OrdersSheet, fmt.Sprintf("A%d", row), o.OrderNumber)
		f.SetCellValue(OrdersSheet, fmt.Sprintf("B%d", row), o.ProductName)
		f.SetCellValue(OrdersSheet, fmt.Sprintf("C%d", row), o.Quantity.InexactFloat64())
		f.SetCellValue(OrdersSheet, fmt.Sprintf("D%d", row), string(o.Status))
		f.SetCellValue(OrdersSheet, fmt.Sprintf("E%d", row), string(o.Priority))
		f.SetCellValue(OrdersSheet, fmt.Sprintf("F%d", row), lifecycle.Progress(o))
		f.SetCellValue(OrdersSheet, fmt.Sprintf("G%d", row), formatDate(o.StartDate))
		if o.EndDate != nil {
			f.SetCellValue(OrdersSheet, fmt.Sprintf("H%d", row), formatDate(*o.EndDate))
		}
		f.SetCellValue(OrdersSheet, fmt.Sprintf("I%d", row), o.Notes)

		for _, it := range o.Items {
			f.SetCellValue(ItemsSheet, fmt.Sprintf("A%d", itemRow), o.OrderNumber)
			f.SetCellValue(ItemsSheet, fmt.Sprintf("B%d", itemRow), it.MaterialID)
			f.SetCellValue(ItemsSheet, fmt.Sprintf("C%d", itemRow), it.MaterialName)
			f.SetCellValue(ItemsSheet, fmt.Sprintf("D%d", itemRow), it.Quantity.InexactFloat64())
			itemRow++
		}
	}

	// 底部汇总行
	m := lifecycle.Summarize(orders, now)
	summaryRow := len(orders) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(OrdersSheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(OrdersSheet, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("订单数: %d", m.Total))
	f.SetCellValue(OrdersSheet, fmt.Sprintf("F%d", summaryRow), fmt.Sprintf("%d%%", m.Efficiency))
	f.SetCellStyle(OrdersSheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("I%d", summaryRow), summaryStyle)

	// 列宽
	colWidths := []float64{20, 20, 8, 10, 8, 8, 12, 12, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(OrdersSheet, col, col, w)
	}
	return f, nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
