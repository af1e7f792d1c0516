package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// InitialStockReference labels the movement written for opening stock.
const InitialStockReference = "Initial stock"

// ImageStore saves and releases product pictures.
type ImageStore interface {
	Save(ctx context.Context, data []byte) (blob.ImageRefs, error)
	Delete(ctx context.Context, refs blob.ImageRefs) ([]string, error)
	Release(ctx context.Context, refs blob.ImageRefs)
	URL(ref string) string
}

// CleanupQueue retries image deletions in the background.
type CleanupQueue interface {
	EnqueueImageCleanup(ctx context.Context, refs []string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo    Repository
	images  ImageStore
	cleanup CleanupQueue
	audit   AuditPort
	logger  *slog.Logger

	invalidator shared.Invalidator
}

// WithInvalidator bumps inv after product writes commit.
func (s *Service) WithInvalidator(inv shared.Invalidator) {
	s.invalidator = inv
}

func NewService(repo Repository, images ImageStore, cleanup CleanupQueue, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, images: images, cleanup: cleanup, audit: audit, logger: logger}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]ProductView, int, error) {
	views, total, err := s.repo.List(ctx, filters.Normalize())
	if err != nil {
		return nil, 0, err
	}
	for i := range views {
		s.decorate(&views[i])
	}
	return views, total, nil
}

func (s *Service) Get(ctx context.Context, id int64) (ProductView, error) {
	if id <= 0 {
		return ProductView{}, mdshared.ErrInvalidID
	}
	view, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductView{}, err
	}
	s.decorate(&view)
	return view, nil
}

// Create stores the product, its image and, when requested, an opening
// PURCHASE movement in one transaction.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input ProductInput, image []byte) (ProductView, error) {
	if err := shared.Authorize(actor, shared.CapManageInventory); err != nil {
		return ProductView{}, err
	}
	input, err := s.validate(input)
	if err != nil {
		return ProductView{}, err
	}
	refs, err := s.saveImage(ctx, image)
	if err != nil {
		return ProductView{}, err
	}

	var created Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkSupplier(ctx, tx, input.SupplierID); err != nil {
			return err
		}
		var err error
		created, err = tx.Insert(ctx, Product{
			SKU:          input.SKU,
			Name:         input.Name,
			Description:  input.Description,
			UnitPrice:    input.UnitPrice,
			ReorderLevel: input.ReorderLevel,
			SupplierID:   input.SupplierID,
			ImageRef:     refs.Image,
			ThumbnailRef: refs.Thumbnail,
		})
		if err != nil {
			return err
		}
		if input.InitialStock > 0 {
			_, err = inventory.Record(ctx, tx, inventory.MovementInput{
				ProductID: created.ID,
				Type:      inventory.MovementPurchase,
				Qty:       input.InitialStock,
				Reference: InitialStockReference,
				ActorID:   actor.ID,
			})
		}
		return err
	})
	if err != nil {
		s.discard(ctx, refs)
		return ProductView{}, err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "product:create", created.ID, map[string]any{"sku": created.SKU, "initial_stock": input.InitialStock})
	return s.Get(ctx, created.ID)
}

// Update edits the product. A new image replaces the old one, which is
// released after commit; without one the current image is kept.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, input ProductInput, image []byte) (ProductView, error) {
	if err := shared.Authorize(actor, shared.CapManageInventory); err != nil {
		return ProductView{}, err
	}
	if id <= 0 {
		return ProductView{}, mdshared.ErrInvalidID
	}
	input, err := s.validate(input)
	if err != nil {
		return ProductView{}, err
	}
	refs, err := s.saveImage(ctx, image)
	if err != nil {
		return ProductView{}, err
	}

	var previous blob.ImageRefs
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkSupplier(ctx, tx, input.SupplierID); err != nil {
			return err
		}
		current.SKU = input.SKU
		current.Name = input.Name
		current.Description = input.Description
		current.UnitPrice = input.UnitPrice
		current.ReorderLevel = input.ReorderLevel
		current.SupplierID = input.SupplierID
		if refs.Image != "" {
			previous = current.images()
			current.ImageRef = refs.Image
			current.ThumbnailRef = refs.Thumbnail
		}
		_, err = tx.Update(ctx, current)
		return err
	})
	if err != nil {
		s.discard(ctx, refs)
		return ProductView{}, err
	}
	s.releaseImages(ctx, id, previous)
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "product:update", id, map[string]any{"sku": input.SKU, "image_replaced": refs.Image != ""})
	return s.Get(ctx, id)
}

// Delete removes a product with no ledger, order or purchase order history. Image
// release failures are logged and retried in the background; they never fail
// the delete.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.Authorize(actor, shared.CapManageInventory); err != nil {
		return err
	}
	if id <= 0 {
		return mdshared.ErrInvalidID
	}
	var removed Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		removed, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		inUse, err := tx.HasHistory(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return ErrProductInUse
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.releaseImages(ctx, id, removed.images())
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "product:delete", id, map[string]any{"sku": removed.SKU})
	return nil
}

func (s *Service) saveImage(ctx context.Context, image []byte) (blob.ImageRefs, error) {
	if len(image) == 0 || s.images == nil {
		return blob.ImageRefs{}, nil
	}
	refs, err := s.images.Save(ctx, image)
	if err != nil {
		return blob.ImageRefs{}, imageError(err)
	}
	return refs, nil
}

func imageError(err error) error {
	switch {
	case errors.Is(err, blob.ErrUnsupportedImage):
		return shared.Kind(shared.ErrValidation, blob.ErrUnsupportedImage.Error())
	case errors.Is(err, blob.ErrImageTooLarge):
		return shared.Kind(shared.ErrValidation, blob.ErrImageTooLarge.Error())
	default:
		return shared.Persistence("products: store image", err)
	}
}

// discard drops images stored for a write that did not commit.
func (s *Service) discard(ctx context.Context, refs blob.ImageRefs) {
	if s.images != nil && len(refs.Refs()) > 0 {
		s.images.Release(ctx, refs)
	}
}

func (s *Service) releaseImages(ctx context.Context, productID int64, refs blob.ImageRefs) {
	if s.images == nil || len(refs.Refs()) == 0 {
		return
	}
	failed, err := s.images.Delete(ctx, refs)
	if err == nil {
		return
	}
	s.logger.Warn("product image release failed",
		slog.Int64("product_id", productID),
		slog.Any("refs", failed),
		slog.Any("error", err))
	if s.cleanup == nil {
		return
	}
	if err := s.cleanup.EnqueueImageCleanup(ctx, failed); err != nil {
		s.logger.Error("enqueue image cleanup", slog.Int64("product_id", productID), slog.Any("error", err))
	}
}

func (s *Service) checkSupplier(ctx context.Context, tx TxRepository, supplierID int64) error {
	if supplierID == 0 {
		return nil
	}
	ok, err := tx.SupplierExists(ctx, supplierID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownSupplier
	}
	return nil
}

func (s *Service) decorate(view *ProductView) {
	view.OnHand = max(view.OnHand, 0)
	view.Status = inventory.Status(view.OnHand, view.ReorderLevel)
	view.StatusLabel = view.Status.Label()
	if s.images != nil {
		view.ImageURL = s.images.URL(view.ImageRef)
		view.ThumbnailURL = s.images.URL(view.ThumbnailRef)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
}
