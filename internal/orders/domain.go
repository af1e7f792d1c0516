package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Status enumerates order lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanAdvance reports whether staff may move an order from s to next.
// Cancellation goes through CancelOrder instead.
func (s Status) CanAdvance(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusShipped
	case StatusShipped:
		return next == StatusCompleted
	}
	return false
}

// Payment methods accepted at checkout.
const (
	PaymentCreditCard = "CREDIT_CARD"
	PaymentPayPal     = "PAYPAL"
	PaymentCOD        = "COD"
)

var (
	ErrMissingFields     = shared.Kind(shared.ErrValidation, "Please fill out all required fields")
	ErrInvalidEmail      = shared.Kind(shared.ErrValidation, "Please enter a valid email address")
	ErrInvalidPayment    = shared.Kind(shared.ErrValidation, "Unsupported payment method")
	ErrEmptyCart         = shared.Kind(shared.ErrValidation, "Your cart is empty")
	ErrInsufficientStock = shared.Kind(shared.ErrValidation, "Not enough stock available")
	ErrCartChanged       = shared.Kind(shared.ErrStateConflict, "Your cart changed during checkout, please review it")
	ErrOrderNotFound     = shared.Kind(shared.ErrNotFound, "Order not found")
	ErrNotCancellable    = shared.Kind(shared.ErrStateConflict, "Only pending orders can be cancelled")
	ErrInvalidTransition = shared.Kind(shared.ErrStateConflict, "Invalid order status transition")
)

// ShippingInfo is the delivery contact captured at checkout.
type ShippingInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zipcode  string `json:"zipcode"`
}

// CheckoutInput is what a customer submits to place an order.
type CheckoutInput struct {
	ShippingInfo
	PaymentMethod string `json:"payment_method"`
}

// Order is the order header.
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	UserID        int64           `json:"user_id"`
	OrderDate     time.Time       `json:"order_date"`
	Shipping      ShippingInfo    `json:"shipping"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	ItemCount     int             `json:"item_count"`
}

// Item is an order line with the price paid.
type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal returns price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// HistoryEntry is one row of the order's status trail.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes"`
	ChangedBy int64     `json:"changed_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Detail is an order with its lines and history.
type Detail struct {
	Order
	Items   []Item         `json:"items"`
	History []HistoryEntry `json:"history"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	UserID int64
	Status Status
	Limit  int
	Offset int
}
