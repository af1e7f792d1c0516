package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Status enumerates purchase order states.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

var (
	// ErrNoItems rejects purchase orders without lines.
	ErrNoItems = shared.Kind(shared.ErrValidation, "Please add at least one item to the purchase order")
	// ErrInvalidLine rejects non-positive quantities and negative costs.
	ErrInvalidLine = shared.Kind(shared.ErrValidation, "Each item needs a positive quantity and a non-negative unit cost")
	// ErrUnknownSupplier is returned when the supplier does not exist.
	ErrUnknownSupplier = shared.Kind(shared.ErrNotFound, "Supplier not found")
	// ErrUnknownProduct is returned for products missing or not sold by the supplier.
	ErrUnknownProduct = shared.Kind(shared.ErrNotFound, "Product not found for this supplier")
	// ErrNotFound indicates the purchase order is missing.
	ErrNotFound = shared.Kind(shared.ErrNotFound, "Purchase order not found")
	// ErrInvalidState occurs when the action violates the status workflow.
	ErrInvalidState = shared.Kind(shared.ErrStateConflict, "Only open purchase orders can be changed")
)

// PurchaseOrder is the header row.
type PurchaseOrder struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	SupplierID    int64           `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	OrderDate     time.Time       `json:"order_date"`
	Status        Status          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OrderedBy     int64           `json:"ordered_by"`
	OrderedByName string          `json:"ordered_by_name"`
	ReceivedAt    *time.Time      `json:"received_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ItemCount     int             `json:"item_count"`
}

// Line is one ordered product.
type Line struct {
	ID         int64           `json:"id"`
	POID       int64           `json:"po_id"`
	ProductID  int64           `json:"product_id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	QtyOrdered int             `json:"qty_ordered"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// Total returns qty times unit cost.
func (l Line) Total() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.QtyOrdered)))
}

// Detail is a purchase order with its lines.
type Detail struct {
	PurchaseOrder
	Lines []Line `json:"lines"`
}

// CreatePOInput describes a new purchase order.
type CreatePOInput struct {
	SupplierID int64
	OrderDate  time.Time
	Items      []LineInput
}

// LineInput describes a requested line.
type LineInput struct {
	ProductID int64
	Qty       int
	UnitCost  decimal.Decimal
}
