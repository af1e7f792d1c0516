package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Kind names a report.
type Kind string

const (
	KindInventory      Kind = "inventory"
	KindMovements      Kind = "movements"
	KindPurchaseOrders Kind = "orders"
	KindSuppliers      Kind = "suppliers"
)

var (
	ErrUnknownReport = shared.Kind(shared.ErrNotFound, "Unknown report type")
	ErrUnknownRange  = shared.Kind(shared.ErrValidation, "Unknown date range")
	ErrInvertedRange = shared.Kind(shared.ErrValidation, "End date must not be before start date")
	ErrUnknownFormat = shared.Kind(shared.ErrValidation, "Unknown export format")
	ErrPDFDisabled   = shared.Kind(shared.ErrValidation, "PDF export is not configured")
)

// ParseKind accepts the report names used in URLs.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindInventory, KindMovements, KindPurchaseOrders, KindSuppliers:
		return Kind(raw), nil
	case "purchase-orders":
		return KindPurchaseOrders, nil
	}
	return "", ErrUnknownReport
}

// Stock status labels used by the inventory report.
const (
	LabelOutOfStock = "Out of Stock"
	LabelLowStock   = "Low Stock"
	LabelInStock    = "In Stock"
)

// StockLabel classifies a product for reporting.
func StockLabel(onHand, reorderLevel int) string {
	switch {
	case onHand <= 0:
		return LabelOutOfStock
	case onHand <= reorderLevel:
		return LabelLowStock
	default:
		return LabelInStock
	}
}

func stockRank(label string) int {
	switch label {
	case LabelOutOfStock:
		return 1
	case LabelLowStock:
		return 2
	}
	return 3
}

// InventoryRow is one product in the inventory report.
type InventoryRow struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	SupplierName string          `json:"supplier_name"`
	ReorderLevel int             `json:"reorder_level"`
	OnHand       int             `json:"on_hand"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Status       string          `json:"stock_status"`
}

// LabelCount is a chart bucket.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// InventorySummary aggregates the inventory report.
type InventorySummary struct {
	TotalProducts  int             `json:"total_products"`
	OutOfStock     int             `json:"out_of_stock"`
	LowStock       int             `json:"low_stock"`
	TotalItems     int             `json:"total_items"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

// InventoryReport lists stock status per product, most urgent first.
type InventoryReport struct {
	Summary InventorySummary `json:"summary"`
	Items   []InventoryRow   `json:"items"`
	Chart   []LabelCount     `json:"chart"`
}

// MovementRow is one ledger entry in the movement report.
type MovementRow struct {
	ID          int64     `json:"id"`
	MovedAt     time.Time `json:"moved_at"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"product_name"`
	Type        string    `json:"movement_type"`
	Qty         int       `json:"qty"`
	Reference   string    `json:"reference"`
	MovedBy     string    `json:"moved_by"`
}

// DailyCount counts movements of one type on one day.
type DailyCount struct {
	Date  string `json:"date"`
	Type  string `json:"movement_type"`
	Count int    `json:"count"`
}

// MovementSummary aggregates the movement report.
type MovementSummary struct {
	TotalMovements int `json:"total_movements"`
	Purchases      int `json:"purchases"`
	Sales          int `json:"sales"`
	ItemsIn        int `json:"items_in"`
	ItemsOut       int `json:"items_out"`
}

// MovementReport lists movements in a range with per-day counts.
type MovementReport struct {
	Range   Range           `json:"range"`
	Summary MovementSummary `json:"summary"`
	Rows    []MovementRow   `json:"rows"`
	Daily   []DailyCount    `json:"daily"`
}

// PurchaseOrderRow is one purchase order in the report.
type PurchaseOrderRow struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	OrderDate    time.Time       `json:"order_date"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	OrderedBy    string          `json:"ordered_by"`
}

// StatusTotal aggregates purchase orders of one status.
type StatusTotal struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// PurchaseOrderSummary aggregates the purchase order report.
type PurchaseOrderSummary struct {
	TotalOrders    int             `json:"total_orders"`
	SupplierCount  int             `json:"supplier_count"`
	OpenOrders     int             `json:"open_orders"`
	ReceivedOrders int             `json:"received_orders"`
	TotalSpend     decimal.Decimal `json:"total_spend"`
}

// PurchaseOrderReport lists purchase orders in a range.
type PurchaseOrderReport struct {
	Range    Range                `json:"range"`
	Summary  PurchaseOrderSummary `json:"summary"`
	Rows     []PurchaseOrderRow   `json:"rows"`
	ByStatus []StatusTotal        `json:"by_status"`
}

// SupplierRow is one supplier's performance in a range.
type SupplierRow struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	ContactName     string          `json:"contact_name"`
	Email           string          `json:"email"`
	OrderCount      int             `json:"order_count"`
	TotalSpend      decimal.Decimal `json:"total_spend"`
	DeliveredOrders int             `json:"delivered_orders"`
	AvgDeliveryDays *float64        `json:"avg_delivery_days"`
}

// SupplierSummary aggregates the supplier report.
type SupplierSummary struct {
	TotalSuppliers  int             `json:"total_suppliers"`
	TotalOrders     int             `json:"total_orders"`
	TotalSpend      decimal.Decimal `json:"total_spend"`
	AvgDeliveryDays *float64        `json:"avg_delivery_days"`
}

// SupplierReport ranks suppliers by spend.
type SupplierReport struct {
	Range   Range           `json:"range"`
	Summary SupplierSummary `json:"summary"`
	Rows    []SupplierRow   `json:"rows"`
}

// Dashboard is the staff landing overview.
type Dashboard struct {
	ProductCount    int                `json:"product_count"`
	LowStockCount   int                `json:"low_stock_count"`
	OutOfStockCount int                `json:"out_of_stock_count"`
	InventoryValue  decimal.Decimal    `json:"inventory_value"`
	RecentPOs       []PurchaseOrderRow `json:"recent_purchase_orders"`
	RecentMovements []MovementRow      `json:"recent_movements"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
