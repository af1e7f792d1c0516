package products

import "github.com/shopspring/decimal"

// ProductForm is the request body for create and update. Image may carry a
// base64 encoded picture when the request is JSON rather than multipart.
type ProductForm struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=255"`
	Description  string          `json:"description" validate:"max=4000"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ReorderLevel int             `json:"reorder_level" validate:"gte=0"`
	SupplierID   int64           `json:"supplier_id" validate:"gte=0"`
	InitialStock int             `json:"initial_stock" validate:"gte=0"`
	ImageBase64  string          `json:"image,omitempty"`
}

func (f ProductForm) input() ProductInput {
	return ProductInput{
		SKU:          f.SKU,
		Name:         f.Name,
		Description:  f.Description,
		UnitPrice:    f.UnitPrice,
		ReorderLevel: f.ReorderLevel,
		SupplierID:   f.SupplierID,
		InitialStock: f.InitialStock,
	}
}
