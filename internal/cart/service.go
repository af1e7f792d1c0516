package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// TxRepository exposes the transactional cart operations.
type TxRepository interface {
	// LockProduct takes the product row lock and reports whether it exists.
	LockProduct(ctx context.Context, productID int64) (bool, error)
	OnHand(ctx context.Context, productID int64) (int, error)
	// LineByProduct locks the user's row for productID.
	LineByProduct(ctx context.Context, userID, productID int64) (Line, bool, error)
	// Line reads the user's row by id; lock requests FOR UPDATE.
	Line(ctx context.Context, userID, lineID int64, lock bool) (Line, bool, error)
	InsertLine(ctx context.Context, userID, productID int64, qty int) error
	SetQuantity(ctx context.Context, lineID int64, qty int) error
	DeleteLine(ctx context.Context, lineID int64) error
	Count(ctx context.Context, userID int64) (int, error)
}

// Repository abstracts cart persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Items(ctx context.Context, userID int64) ([]Item, error)
	Count(ctx context.Context, userID int64) (int, error)
	Remove(ctx context.Context, userID, lineID int64) error
	Clear(ctx context.Context, userID int64) error
}

// Locker serialises one user's cart mutations across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Service implements the cart manager.
type Service struct {
	repo   Repository
	locker Locker
}

// NewService builds Service. locker may be nil.
func NewService(repo Repository, locker Locker) *Service {
	return &Service{repo: repo, locker: locker}
}

// AddItem merges qty of productID into the actor's cart and returns the
// number of cart rows.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, productID int64, qty int) (int, error) {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return 0, err
	}
	if productID <= 0 || qty <= 0 {
		return 0, ErrInvalidRequest
	}
	var count int
	err := s.mutate(ctx, actor.ID, func(ctx context.Context, tx TxRepository) error {
		onHand, err := lockStock(ctx, tx, productID)
		if err != nil {
			return err
		}
		line, exists, err := tx.LineByProduct(ctx, actor.ID, productID)
		if err != nil {
			return err
		}
		want := qty
		if exists {
			want += line.Quantity
		}
		if want > onHand {
			if exists {
				return fmt.Errorf("%w: %d in cart, %d on hand", ErrInsufficientStock, line.Quantity, onHand)
			}
			return fmt.Errorf("%w: %d on hand", ErrInsufficientStock, onHand)
		}
		if exists {
			err = tx.SetQuantity(ctx, line.ID, want)
		} else {
			err = tx.InsertLine(ctx, actor.ID, productID, qty)
		}
		if err != nil {
			return err
		}
		count, err = tx.Count(ctx, actor.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AdjustQuantity changes a cart row by delta and returns the resulting
// quantity. A result of zero or less removes the row and returns 0.
func (s *Service) AdjustQuantity(ctx context.Context, actor shared.Actor, lineID int64, delta int) (int, error) {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return 0, err
	}
	if lineID <= 0 || delta == 0 {
		return 0, ErrInvalidAdjustment
	}
	var quantity int
	err := s.mutate(ctx, actor.ID, func(ctx context.Context, tx TxRepository) error {
		line, ok, err := tx.Line(ctx, actor.ID, lineID, false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartItemNotFound
		}
		// product before cart row, the same order checkout uses
		onHand, err := lockStock(ctx, tx, line.ProductID)
		if err != nil {
			return err
		}
		line, ok, err = tx.Line(ctx, actor.ID, lineID, true)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartItemNotFound
		}
		next := line.Quantity + delta
		if next <= 0 {
			quantity = 0
			return tx.DeleteLine(ctx, line.ID)
		}
		if next > onHand {
			return fmt.Errorf("%w: %d on hand", ErrInsufficientStock, onHand)
		}
		quantity = next
		return tx.SetQuantity(ctx, line.ID, next)
	})
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

// RemoveItem deletes one of the actor's cart rows. Missing rows are ignored.
func (s *Service) RemoveItem(ctx context.Context, actor shared.Actor, lineID int64) error {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return err
	}
	if lineID <= 0 {
		return ErrCartItemNotFound
	}
	return s.withLock(ctx, actor.ID, func(ctx context.Context) error {
		return s.repo.Remove(ctx, actor.ID, lineID)
	})
}

// ClearCart empties the actor's cart.
func (s *Service) ClearCart(ctx context.Context, actor shared.Actor) error {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return err
	}
	return s.withLock(ctx, actor.ID, func(ctx context.Context) error {
		return s.repo.Clear(ctx, actor.ID)
	})
}

// List returns the actor's cart with current prices and stock.
func (s *Service) List(ctx context.Context, actor shared.Actor) (Cart, error) {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return Cart{}, err
	}
	items, err := s.repo.Items(ctx, actor.ID)
	if err != nil {
		return Cart{}, err
	}
	return NewCart(items), nil
}

// Count returns the number of rows in the actor's cart.
func (s *Service) Count(ctx context.Context, actor shared.Actor) (int, error) {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, actor.ID)
}

func (s *Service) mutate(ctx context.Context, userID int64, fn func(context.Context, TxRepository) error) error {
	return s.withLock(ctx, userID, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, fn)
	})
}

func (s *Service) withLock(ctx context.Context, userID int64, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, shared.CartLockKey(userID), fn)
	if errors.Is(err, cache.ErrLockNotObtained) {
		return ErrCartBusy
	}
	return err
}

func lockStock(ctx context.Context, tx TxRepository, productID int64) (int, error) {
	ok, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrProductNotFound
	}
	onHand, err := tx.OnHand(ctx, productID)
	if err != nil {
		return 0, err
	}
	return max(onHand, 0), nil
}
