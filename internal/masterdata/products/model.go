package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/blob"
)

// Product represents a catalog entry. Stock is never stored here; it is
// derived from the ledger.
type Product struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ImageRef     string          `json:"-"`
	ThumbnailRef string          `json:"-"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ReorderLevel int             `json:"reorder_level"`
	SupplierID   int64           `json:"supplier_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductView is a product joined with supplier name and current stock.
type ProductView struct {
	Product
	SupplierName string                `json:"supplier_name,omitempty"`
	OnHand       int                   `json:"on_hand"`
	Status       inventory.StockStatus `json:"stock_status"`
	StatusLabel  string                `json:"stock_status_label"`
	ImageURL     string                `json:"image_url,omitempty"`
	ThumbnailURL string                `json:"thumbnail_url,omitempty"`
}

// ProductInput carries the editable fields of a product. InitialStock only
// applies on create.
type ProductInput struct {
	SKU          string
	Name         string
	Description  string
	UnitPrice    decimal.Decimal
	ReorderLevel int
	SupplierID   int64
	InitialStock int
}

func (p Product) images() blob.ImageRefs {
	return blob.ImageRefs{Image: p.ImageRef, Thumbnail: p.ThumbnailRef}
}
