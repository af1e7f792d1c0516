package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// TxRepository exposes transactional purchase order operations.
type TxRepository interface {
	inventory.MovementWriter
	SupplierExists(ctx context.Context, supplierID int64) (bool, error)
	// ProductSuppliers maps each existing product id to its supplier id (0 for none).
	ProductSuppliers(ctx context.Context, productIDs []int64) (map[int64]int64, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertLine(ctx context.Context, line Line) (Line, error)
	// LockPO reads the header FOR UPDATE.
	LockPO(ctx context.Context, id int64) (PurchaseOrder, bool, error)
	Lines(ctx context.Context, poID int64) ([]Line, error)
	MarkReceived(ctx context.Context, id int64, at time.Time) error
	SetStatus(ctx context.Context, id int64, status Status) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, bool, error)
	Lines(ctx context.Context, poID int64) ([]Line, error)
	ListRecent(ctx context.Context, limit int) ([]PurchaseOrder, error)
}

// IdempotencyPort guards one-shot operations such as receipt.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchase order flows.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	invalidator shared.Invalidator
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// WithInvalidator bumps inv after purchase order writes commit.
func (s *Service) WithInvalidator(inv shared.Invalidator) {
	s.invalidator = inv
}

// CreatePurchaseOrder validates the lines against the supplier's catalog and
// stores an OPEN order with its lines in one transaction.
func (s *Service) CreatePurchaseOrder(ctx context.Context, actor shared.Actor, input CreatePOInput) (Detail, error) {
	if err := shared.Authorize(actor, shared.CapManageSuppliers); err != nil {
		return Detail{}, err
	}
	if len(input.Items) == 0 {
		return Detail{}, ErrNoItems
	}
	if input.SupplierID <= 0 {
		return Detail{}, ErrUnknownSupplier
	}
	total := decimal.Zero
	ids := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID <= 0 {
			return Detail{}, ErrUnknownProduct
		}
		if item.Qty <= 0 || item.UnitCost.IsNegative() {
			return Detail{}, ErrInvalidLine
		}
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Qty))))
		ids = append(ids, item.ProductID)
	}
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	var detail Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.SupplierExists(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownSupplier
		}
		owners, err := tx.ProductSuppliers(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if owner, found := owners[id]; !found || owner != input.SupplierID {
				return fmt.Errorf("%w: product %d", ErrUnknownProduct, id)
			}
		}
		po, err := tx.InsertPO(ctx, PurchaseOrder{
			Number:      shared.DocumentNumber("PO"),
			SupplierID:  input.SupplierID,
			OrderDate:   calendarDay(orderDate),
			Status:      StatusOpen,
			TotalAmount: total.Round(2),
			OrderedBy:   actor.ID,
			ItemCount:   len(input.Items),
		})
		if err != nil {
			return err
		}
		detail.PurchaseOrder = po
		for _, item := range input.Items {
			line, err := tx.InsertLine(ctx, Line{POID: po.ID, ProductID: item.ProductID, QtyOrdered: item.Qty, UnitCost: item.UnitCost})
			if err != nil {
				return err
			}
			detail.Lines = append(detail.Lines, line)
		}
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "po:create", detail.ID, map[string]any{
		"number": detail.Number,
		"total":  detail.TotalAmount.StringFixed(2),
	})
	return detail, nil
}

// ReceivePurchaseOrder marks an OPEN order RECEIVED and books one PURCHASE
// movement per line, all in one transaction.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, actor shared.Actor, poID int64) (Detail, error) {
	if err := shared.Authorize(actor, shared.CapManageSuppliers, shared.CapManageInventory); err != nil {
		return Detail{}, err
	}
	if poID <= 0 {
		return Detail{}, ErrNotFound
	}
	key := fmt.Sprintf("PO:%d:receive", poID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "procurement.po"); err != nil {
			return Detail{}, err
		}
		inserted = true
	}

	var detail Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, ok, err := tx.LockPO(ctx, poID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if po.Status != StatusOpen {
			return ErrInvalidState
		}
		lines, err := tx.Lines(ctx, poID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := tx.MarkReceived(ctx, poID, now); err != nil {
			return err
		}
		reference := fmt.Sprintf("PO#%d", poID)
		for _, line := range lines {
			if _, err := inventory.Record(ctx, tx, inventory.MovementInput{
				ProductID: line.ProductID,
				Type:      inventory.MovementPurchase,
				Qty:       line.QtyOrdered,
				Reference: reference,
				ActorID:   actor.ID,
			}); err != nil {
				return err
			}
		}
		po.Status = StatusReceived
		po.ReceivedAt = &now
		detail = Detail{PurchaseOrder: po, Lines: lines}
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(context.WithoutCancel(ctx), key)
		}
		return Detail{}, err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "po:receive", poID, map[string]any{"number": detail.Number, "lines": len(detail.Lines)})
	return detail, nil
}

// CancelPurchaseOrder moves an OPEN order to CANCELLED without ledger effect.
func (s *Service) CancelPurchaseOrder(ctx context.Context, actor shared.Actor, poID int64) error {
	if err := shared.Authorize(actor, shared.CapManageSuppliers); err != nil {
		return err
	}
	if poID <= 0 {
		return ErrNotFound
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, ok, err := tx.LockPO(ctx, poID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if po.Status != StatusOpen {
			return ErrInvalidState
		}
		return tx.SetStatus(ctx, poID, StatusCancelled)
	})
	if err != nil {
		return err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "po:cancel", poID, nil)
	return nil
}

// Get returns a purchase order with lines.
func (s *Service) Get(ctx context.Context, poID int64) (Detail, error) {
	po, ok, err := s.repo.Get(ctx, poID)
	if err != nil {
		return Detail{}, err
	}
	if !ok {
		return Detail{}, ErrNotFound
	}
	lines, err := s.repo.Lines(ctx, poID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{PurchaseOrder: po, Lines: lines}, nil
}

// ListRecent returns the newest purchase orders.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

// calendarDay drops the clock part of t in its own location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
