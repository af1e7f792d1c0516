package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var (
	ErrInvalidRequest    = shared.Kind(shared.ErrValidation, "Invalid product or quantity")
	ErrInvalidAdjustment = shared.Kind(shared.ErrValidation, "Invalid cart item or adjustment")
	ErrProductNotFound   = shared.Kind(shared.ErrNotFound, "Product not found")
	ErrInsufficientStock = shared.Kind(shared.ErrValidation, "Not enough stock available")
	ErrCartItemNotFound  = shared.Kind(shared.ErrNotFound, "Cart item not found")
	ErrCartBusy          = shared.Kind(shared.ErrStateConflict, "Your cart is being updated, please try again")
)

// Line is a stored cart row.
type Line struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// Item is a cart row joined with the current product snapshot.
type Item struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	OnHand    int             `json:"on_hand"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	AddedAt   time.Time       `json:"added_at"`
}

// Cart is a user's cart with totals.
type Cart struct {
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Count    int             `json:"count"`
}

// NewCart totals items.
func NewCart(items []Item) Cart {
	c := Cart{Items: items, Subtotal: decimal.Zero, Count: len(items)}
	if c.Items == nil {
		c.Items = []Item{}
	}
	for i := range c.Items {
		it := &c.Items[i]
		it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		c.Subtotal = c.Subtotal.Add(it.Subtotal)
	}
	return c
}
