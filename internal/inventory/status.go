package inventory

// StockStatus is the badge shown next to a product's on-hand quantity.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
	StatusLowStock   StockStatus = "LOW_STOCK"
	StatusWarning    StockStatus = "WARNING"
	StatusInStock    StockStatus = "IN_STOCK"
)

// Status classifies onHand against the product's reorder level. WARNING covers
// the band up to one and a half times the reorder level.
func Status(onHand, reorderLevel int) StockStatus {
	switch {
	case onHand <= 0:
		return StatusOutOfStock
	case onHand <= reorderLevel:
		return StatusLowStock
	case onHand*2 <= reorderLevel*3:
		return StatusWarning
	default:
		return StatusInStock
	}
}

// Label returns the human readable status.
func (s StockStatus) Label() string {
	switch s {
	case StatusOutOfStock:
		return "Out of Stock"
	case StatusLowStock:
		return "Low Stock"
	case StatusWarning:
		return "Warning"
	default:
		return "In Stock"
	}
}
