package suppliers

import (
	"context"
	"fmt"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Summary, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, mdshared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor shared.Actor, form SupplierForm) (Supplier, error) {
	if err := shared.Authorize(actor, shared.CapManageSuppliers); err != nil {
		return Supplier{}, err
	}
	sup, err := s.validate(form)
	if err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.Create(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, actor.ID, "supplier:create", created.ID, created.Name)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, form SupplierForm) (Supplier, error) {
	if err := shared.Authorize(actor, shared.CapManageSuppliers); err != nil {
		return Supplier{}, err
	}
	if id <= 0 {
		return Supplier{}, mdshared.ErrInvalidID
	}
	sup, err := s.validate(form)
	if err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	updated, err := s.repo.Update(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, actor.ID, "supplier:update", id, updated.Name)
	return updated, nil
}

// Delete refuses while any product references the supplier.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.Authorize(actor, shared.CapManageSuppliers); err != nil {
		return err
	}
	sup, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrSupplierHasProducts
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "supplier:delete", id, sup.Name)
	return nil
}

// Products lists the supplier's catalog for building a purchase order.
func (s *Service) Products(ctx context.Context, id int64) ([]SupplierProduct, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repo.Products(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoProducts
	}
	for i := range items {
		items[i].OnHand = max(items[i].OnHand, 0)
	}
	return items, nil
}

// CheckProducts reports whether the supplier has any products.
func (s *Service) CheckProducts(ctx context.Context, id int64) (ProductCheck, error) {
	if id <= 0 {
		return ProductCheck{}, mdshared.ErrInvalidID
	}
	count, err := s.repo.CountProducts(ctx, id)
	if err != nil {
		return ProductCheck{}, err
	}
	return ProductCheck{HasProducts: count > 0, Count: count}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, name string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "supplier",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"name": name},
	})
}
