package suppliers

import (
	"fmt"
	"net/mail"
	"strings"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var (
	ErrNotFound            = shared.Kind(shared.ErrNotFound, "Supplier not found")
	ErrInvalidEmail        = shared.Kind(shared.ErrValidation, "supplier email is invalid")
	ErrSupplierHasProducts = shared.Kind(shared.ErrStateConflict, "Cannot delete supplier with associated products")
	ErrSupplierHasOrders   = shared.Kind(shared.ErrStateConflict, "Cannot delete supplier with purchase orders")
	ErrNoProducts          = shared.Kind(shared.ErrValidation, "No products found for this supplier. Please add products first.")
)

func (s *Service) validate(form SupplierForm) (Supplier, error) {
	sup := Supplier{
		Name:        strings.TrimSpace(form.Name),
		ContactName: strings.TrimSpace(form.ContactName),
		Phone:       strings.TrimSpace(form.Phone),
		Email:       strings.TrimSpace(form.Email),
		Address:     strings.TrimSpace(form.Address),
	}
	if sup.Name == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name", mdshared.ErrRequiredField)
	}
	if sup.Email != "" {
		if _, err := mail.ParseAddress(sup.Email); err != nil {
			return Supplier{}, ErrInvalidEmail
		}
	}
	return sup, nil
}
