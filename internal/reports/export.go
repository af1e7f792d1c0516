package reports

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Content types for exported files.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

const sheetName = "Report"

// PDFRenderer converts an HTML document into PDF bytes.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Exportable is implemented by every report that can be written as a table.
type Exportable interface {
	Table() Table
}

// Field is a labelled summary value.
type Field struct {
	Label string
	Value any
}

// Table is the flat form of a report shared by the XLSX and PDF writers.
// Cell values are strings, ints, float64s, decimals or times.
type Table struct {
	Title    string
	Subtitle string
	Summary  []Field
	Columns  []string
	Rows     [][]any
}

var printer = message.NewPrinter(language.English)

// FormatValue renders a cell for human display.
func FormatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int:
		return printer.Sprintf("%d", value)
	case int64:
		return printer.Sprintf("%d", value)
	case float64:
		return printer.Sprintf("%.1f", value)
	case *float64:
		if value == nil {
			return "-"
		}
		return printer.Sprintf("%.1f", *value)
	case decimal.Decimal:
		return printer.Sprintf("%.2f", value.InexactFloat64())
	case time.Time:
		if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 {
			return value.Format(time.DateOnly)
		}
		return value.Format("2006-01-02 15:04")
	default:
		return fmt.Sprint(value)
	}
}

func cellValue(v any) any {
	switch value := v.(type) {
	case decimal.Decimal:
		return value.Round(2).InexactFloat64()
	case *float64:
		if value == nil {
			return ""
		}
		return *value
	case time.Time:
		return FormatValue(value)
	default:
		return v
	}
}

// WriteXLSX writes the table as a single-sheet workbook.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	if err := setRow(f, row, []any{t.Title}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", bold); err != nil {
		return err
	}
	row++
	if t.Subtitle != "" {
		if err := setRow(f, row, []any{t.Subtitle}); err != nil {
			return err
		}
		row++
	}
	for _, field := range t.Summary {
		if err := setRow(f, row, []any{field.Label, cellValue(field.Value)}); err != nil {
			return err
		}
		row++
	}
	row++

	if err := setRow(f, row, toAny(t.Columns)); err != nil {
		return err
	}
	if len(t.Columns) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), row)
		if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
			return err
		}
	}
	row++
	for _, values := range t.Rows {
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = cellValue(v)
		}
		if err := setRow(f, row, cells); err != nil {
			return err
		}
		row++
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// RenderHTML builds a printable HTML document for the table.
func RenderHTML(t Table) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}th,td{border:1px solid #ddd;padding:6px;text-align:left;}th{background:#f5f5f5;}td.num{text-align:right;}")
	b.WriteString("</style></head><body>")
	b.WriteString("<h1>" + templateEscape(t.Title) + "</h1>")
	if t.Subtitle != "" {
		b.WriteString("<p>" + templateEscape(t.Subtitle) + "</p>")
	}
	if len(t.Summary) > 0 {
		b.WriteString("<section><table><tbody>")
		for _, field := range t.Summary {
			b.WriteString("<tr><td>")
			b.WriteString(templateEscape(field.Label))
			b.WriteString("</td><td class=\"num\">")
			b.WriteString(templateEscape(FormatValue(field.Value)))
			b.WriteString("</td></tr>")
		}
		b.WriteString("</tbody></table></section>")
	}
	b.WriteString("<section><table><thead><tr>")
	for _, col := range t.Columns {
		b.WriteString("<th>" + templateEscape(col) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, values := range t.Rows {
		b.WriteString("<tr>")
		for _, v := range values {
			if isNumeric(v) {
				b.WriteString("<td class=\"num\">")
			} else {
				b.WriteString("<td>")
			}
			b.WriteString(templateEscape(FormatValue(v)))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></section></body></html>")
	return b.String()
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64, *float64, decimal.Decimal:
		return true
	}
	return false
}

func templateEscape(v string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(v)
}

// Table flattens the inventory report.
func (r InventoryReport) Table() Table {
	t := Table{
		Title: "Inventory Status Report",
		Summary: []Field{
			{Label: "Total Products", Value: r.Summary.TotalProducts},
			{Label: "Out of Stock", Value: r.Summary.OutOfStock},
			{Label: "Low Stock", Value: r.Summary.LowStock},
			{Label: "Total Items", Value: r.Summary.TotalItems},
			{Label: "Inventory Value", Value: r.Summary.InventoryValue},
		},
		Columns: []string{"SKU", "Product", "Supplier", "On Hand", "Reorder Level", "Unit Price", "Status"},
	}
	for _, item := range r.Items {
		t.Rows = append(t.Rows, []any{item.SKU, item.Name, item.SupplierName, item.OnHand, item.ReorderLevel, item.UnitPrice, item.Status})
	}
	return t
}

// Table flattens the movement report.
func (r MovementReport) Table() Table {
	t := Table{
		Title:    "Stock Movement Report",
		Subtitle: r.Range.Label(),
		Summary: []Field{
			{Label: "Total Movements", Value: r.Summary.TotalMovements},
			{Label: "Purchases", Value: r.Summary.Purchases},
			{Label: "Sales", Value: r.Summary.Sales},
			{Label: "Items In", Value: r.Summary.ItemsIn},
			{Label: "Items Out", Value: r.Summary.ItemsOut},
		},
		Columns: []string{"Date", "SKU", "Product", "Type", "Quantity", "Reference", "Moved By"},
	}
	for _, m := range r.Rows {
		t.Rows = append(t.Rows, []any{m.MovedAt, m.SKU, m.ProductName, m.Type, m.Qty, m.Reference, m.MovedBy})
	}
	return t
}

// Table flattens the purchase order report.
func (r PurchaseOrderReport) Table() Table {
	t := Table{
		Title:    "Purchase Order Report",
		Subtitle: r.Range.Label(),
		Summary: []Field{
			{Label: "Total Orders", Value: r.Summary.TotalOrders},
			{Label: "Suppliers", Value: r.Summary.SupplierCount},
			{Label: "Open", Value: r.Summary.OpenOrders},
			{Label: "Received", Value: r.Summary.ReceivedOrders},
			{Label: "Total Spend", Value: r.Summary.TotalSpend},
		},
		Columns: []string{"Number", "Order Date", "Supplier", "Status", "Total", "Ordered By"},
	}
	for _, po := range r.Rows {
		t.Rows = append(t.Rows, []any{po.Number, po.OrderDate, po.SupplierName, po.Status, po.TotalAmount, po.OrderedBy})
	}
	return t
}

// Table flattens the supplier report.
func (r SupplierReport) Table() Table {
	t := Table{
		Title:    "Supplier Performance Report",
		Subtitle: r.Range.Label(),
		Summary: []Field{
			{Label: "Suppliers", Value: r.Summary.TotalSuppliers},
			{Label: "Orders", Value: r.Summary.TotalOrders},
			{Label: "Total Spend", Value: r.Summary.TotalSpend},
			{Label: "Avg Delivery Days", Value: r.Summary.AvgDeliveryDays},
		},
		Columns: []string{"Supplier", "Contact", "Email", "Orders", "Total Spend", "Avg Delivery Days"},
	}
	for _, s := range r.Rows {
		t.Rows = append(t.Rows, []any{s.Name, s.ContactName, s.Email, s.OrderCount, s.TotalSpend, s.AvgDeliveryDays})
	}
	return t
}
