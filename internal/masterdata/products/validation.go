package products

import (
	"fmt"
	"strings"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var (
	ErrInvalidPrice    = shared.Kind(shared.ErrValidation, "unit price must be zero or greater")
	ErrInvalidReorder  = shared.Kind(shared.ErrValidation, "reorder level must be zero or greater")
	ErrInvalidInitial  = shared.Kind(shared.ErrValidation, "initial stock must be zero or greater")
	ErrDuplicateSKU    = shared.Kind(shared.ErrValidation, "a product with this SKU already exists")
	ErrUnknownSupplier = shared.Kind(shared.ErrValidation, "supplier not found")
	ErrNotFound        = shared.Kind(shared.ErrNotFound, "Product not found")
	ErrProductInUse    = shared.Kind(shared.ErrStateConflict, "product has stock, order or purchase order history and cannot be deleted")
)

func (s *Service) validate(p ProductInput) (ProductInput, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	if p.SKU == "" {
		return p, fmt.Errorf("%w: sku", mdshared.ErrRequiredField)
	}
	if p.Name == "" {
		return p, fmt.Errorf("%w: name", mdshared.ErrRequiredField)
	}
	if p.UnitPrice.IsNegative() {
		return p, ErrInvalidPrice
	}
	if p.ReorderLevel < 0 {
		return p, ErrInvalidReorder
	}
	if p.InitialStock < 0 {
		return p, ErrInvalidInitial
	}
	if p.SupplierID < 0 {
		return p, ErrUnknownSupplier
	}
	p.UnitPrice = p.UnitPrice.Round(2)
	return p, nil
}
