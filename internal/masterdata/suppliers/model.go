package suppliers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier represents a vendor products are bought from.
type Supplier struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is a supplier with the size and value of its catalog.
type Summary struct {
	Supplier
	ProductCount   int             `json:"product_count"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

// SupplierProduct is a catalog entry offered by a supplier.
type SupplierProduct struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	OnHand    int             `json:"on_hand"`
}

// ProductCheck answers whether a supplier has products to order.
type ProductCheck struct {
	HasProducts bool `json:"hasProducts"`
	Count       int  `json:"count"`
}

// SupplierForm is the request body for create and update.
type SupplierForm struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContactName string `json:"contact_name" validate:"max=255"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	Address     string `json:"address" validate:"max=1000"`
}
