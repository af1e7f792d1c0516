package suppliers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := mdshared.ListFilters{
		Page:    httpx.QueryInt(r, "page", mdshared.DefaultPage),
		Limit:   httpx.QueryInt(r, "limit", mdshared.DefaultLimit),
		Search:  strings.TrimSpace(r.URL.Query().Get("search")),
		SortDir: r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	filters = filters.Normalize()
	httpx.Success(w, http.StatusOK, "", httpx.M{
		"suppliers":  items,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	sup, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"supplier": sup})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	sup, err := h.service.Create(r.Context(), actor, form)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Supplier added successfully!", httpx.M{"supplier": sup})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	sup, err := h.service.Update(r.Context(), actor, id, form)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Supplier updated successfully", httpx.M{"supplier": sup})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Supplier deleted successfully", nil)
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	items, err := h.service.Products(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"products": items, "count": len(items)})
}

func (h *Handler) CheckProducts(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	check, err := h.service.CheckProducts(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"hasProducts": check.HasProducts, "count": check.Count})
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (shared.Actor, SupplierForm, bool) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return shared.Actor{}, SupplierForm{}, false
	}
	var form SupplierForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return shared.Actor{}, SupplierForm{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, r, h.logger, httpx.ValidationError(err))
		return shared.Actor{}, SupplierForm{}, false
	}
	return actor, form, true
}
