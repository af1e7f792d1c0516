package inventory

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// MovementWriter appends ledger rows inside a caller-owned transaction.
// Implementations report a missing product as ErrUnknownProduct.
type MovementWriter interface {
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	MovementWriter
	// LockProducts takes row locks in ascending id order and returns the ids that exist.
	LockProducts(ctx context.Context, ids []int64) ([]int64, error)
	OnHand(ctx context.Context, productID int64) (int, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	OnHand(ctx context.Context, productID int64) (int, error)
	StreamMovements(ctx context.Context, filter MovementFilter, yield func(Movement) bool) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator shared.Invalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// WithInvalidator bumps inv after every committed movement.
func (s *Service) WithInvalidator(inv shared.Invalidator) {
	s.invalidator = inv
}

// Record validates input and appends it through w. Workflows call it with
// their own transaction so the movement commits or rolls back with them.
func Record(ctx context.Context, w MovementWriter, input MovementInput) (Movement, error) {
	if err := validateMovement(input); err != nil {
		return Movement{}, err
	}
	return w.InsertMovement(ctx, Movement{
		ProductID: input.ProductID,
		Type:      input.Type,
		Qty:       input.Qty,
		Reference: strings.TrimSpace(input.Reference),
		MovedBy:   input.ActorID,
	})
}

func validateMovement(input MovementInput) error {
	if !input.Type.Valid() {
		return ErrUnknownType
	}
	if input.ProductID <= 0 {
		return ErrUnknownProduct
	}
	switch {
	case input.Qty == 0:
		return ErrInvalidQuantity
	case input.Type == MovementPurchase && input.Qty < 0:
		return ErrInvalidQuantity
	case input.Type == MovementSale && input.Qty > 0:
		return ErrInvalidQuantity
	}
	return nil
}

// RecordMovement appends a single movement on behalf of actor.
func (s *Service) RecordMovement(ctx context.Context, actor shared.Actor, input MovementInput) (Movement, error) {
	if err := shared.Authorize(actor, shared.CapManageInventory); err != nil {
		return Movement{}, err
	}
	if err := validateMovement(input); err != nil {
		return Movement{}, err
	}
	input.ActorID = actor.ID
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = Record(ctx, tx, input)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "inventory:movement", movement)
	return movement, nil
}

// AdjustStock derives the sign from the type and direction, and refuses to
// take the product's reported stock below zero.
func (s *Service) AdjustStock(ctx context.Context, actor shared.Actor, input AdjustInput) (Movement, error) {
	if err := shared.Authorize(actor, shared.CapManageInventory); err != nil {
		return Movement{}, err
	}
	qty, err := signedQuantity(input)
	if err != nil {
		return Movement{}, err
	}
	var movement Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.LockProducts(ctx, []int64{input.ProductID})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return ErrUnknownProduct
		}
		onHand, err := tx.OnHand(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if onHand+qty < 0 {
			return fmt.Errorf("%w: only %d on hand", ErrInsufficientStock, onHand)
		}
		movement, err = Record(ctx, tx, MovementInput{
			ProductID: input.ProductID,
			Type:      input.Type,
			Qty:       qty,
			Reference: input.Reference,
			ActorID:   actor.ID,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "inventory:adjust", movement)
	return movement, nil
}

func signedQuantity(input AdjustInput) (int, error) {
	if !input.Type.Valid() {
		return 0, ErrUnknownType
	}
	if input.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	switch input.Type {
	case MovementPurchase:
		return input.Quantity, nil
	case MovementSale:
		return -input.Quantity, nil
	}
	switch input.Direction {
	case DirectionIn:
		return input.Quantity, nil
	case DirectionOut:
		return -input.Quantity, nil
	default:
		return 0, ErrInvalidDirection
	}
}

// OnHand returns the product's reported stock, never below zero.
func (s *Service) OnHand(ctx context.Context, productID int64) (int, error) {
	onHand, err := s.repo.OnHand(ctx, productID)
	if err != nil {
		return 0, err
	}
	return max(onHand, 0), nil
}

// ListMovements yields matching movements newest first. The sequence can be
// ranged more than once; each pass re-reads the ledger.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) iter.Seq2[Movement, error] {
	return func(yield func(Movement, error) bool) {
		if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
			yield(Movement{}, shared.Kind(shared.ErrValidation, "end date is before start date"))
			return
		}
		stopped := false
		err := s.repo.StreamMovements(ctx, filter, func(m Movement) bool {
			if !yield(m, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(Movement{}, err)
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, m Movement) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", m.ID),
		Meta: map[string]any{
			"product_id": m.ProductID,
			"type":       m.Type,
			"qty":        m.Qty,
			"reference":  m.Reference,
		},
	})
}
