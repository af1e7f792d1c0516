package inventory

import (
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// MovementType classifies a ledger entry. The stored quantity carries the sign.
type MovementType string

const (
	// MovementPurchase records received goods; always positive.
	MovementPurchase MovementType = "PURCHASE"
	// MovementSale records goods leaving on an order; always negative.
	MovementSale MovementType = "SALE"
	// MovementAdjust records manual corrections and order returns.
	MovementAdjust MovementType = "ADJUST"
	// MovementTransfer records stock moved in or out of the warehouse.
	MovementTransfer MovementType = "TRANSFER"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementSale, MovementAdjust, MovementTransfer:
		return true
	}
	return false
}

// Movement is one append-only ledger row.
type Movement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name,omitempty"`
	Type        MovementType `json:"movement_type"`
	Qty         int          `json:"qty"`
	Reference   string       `json:"reference"`
	MovedBy     int64        `json:"moved_by,omitempty"`
	MovedByName string       `json:"moved_by_name,omitempty"`
	MovedAt     time.Time    `json:"moved_at"`
}

// MovementInput describes a movement to append. Qty is signed.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Qty       int
	Reference string
	ActorID   int64
}

// MovementFilter narrows ListMovements. Zero values mean no restriction.
type MovementFilter struct {
	ProductID int64
	Type      MovementType
	From      time.Time
	To        time.Time
	Limit     int
}

// Direction tells AdjustStock which way an ADJUST or TRANSFER moves stock.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// AdjustInput is the staff-facing stock adjustment: a positive magnitude plus
// a type, with Direction deciding the sign of ADJUST and TRANSFER.
type AdjustInput struct {
	ProductID int64        `json:"product_id"`
	Type      MovementType `json:"movement_type"`
	Quantity  int          `json:"quantity"`
	Direction Direction    `json:"direction"`
	Reference string       `json:"reference"`
}

var (
	// ErrInvalidQuantity indicates a zero quantity or a sign that contradicts the type.
	ErrInvalidQuantity = shared.Kind(shared.ErrValidation, "quantity must be non-zero and match the movement type")
	// ErrUnknownType indicates a movement type outside the fixed set.
	ErrUnknownType = shared.Kind(shared.ErrValidation, "unknown movement type")
	// ErrInvalidDirection indicates a direction other than in/out.
	ErrInvalidDirection = shared.Kind(shared.ErrValidation, "direction must be in or out")
	// ErrUnknownProduct indicates the referenced product does not exist.
	ErrUnknownProduct = shared.Kind(shared.ErrNotFound, "product not found")
	// ErrInsufficientStock indicates the movement would take reported stock below zero.
	ErrInsufficientStock = shared.Kind(shared.ErrValidation, "insufficient stock")
)
