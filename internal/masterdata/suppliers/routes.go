package suppliers

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(shared.CapManageSuppliers))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/products", h.Products)
	r.Get("/{id}/products/count", h.CheckProducts)
}
