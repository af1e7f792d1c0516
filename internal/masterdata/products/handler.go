package products

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var errInvalidImage = shared.Kind(shared.ErrValidation, "image could not be read")

type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
	maxUpload int64
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbac,
		validator: validator.New(),
		maxUpload: maxUpload,
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapManageInventory, shared.CapViewProducts))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapManageInventory))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := mdshared.ListFilters{
		Page:        httpx.QueryInt(r, "page", mdshared.DefaultPage),
		Limit:       httpx.QueryInt(r, "limit", mdshared.DefaultLimit),
		Search:      strings.TrimSpace(q.Get("search")),
		SortBy:      q.Get("sort"),
		SortDir:     q.Get("dir"),
		InStockOnly: q.Get("in_stock") == "true",
	}
	supplierID, err := httpx.QueryID(r, "supplier_id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if supplierID > 0 {
		filters.SupplierID = &supplierID
	}

	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	filters = filters.Normalize()
	httpx.Success(w, http.StatusOK, "", httpx.M{
		"products":   items,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"product": product})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	form, image, err := h.parseForm(w, r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	product, err := h.service.Create(r.Context(), actor, form.input(), image)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Product added successfully", httpx.M{"product": product})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	form, image, err := h.parseForm(w, r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	product, err := h.service.Update(r.Context(), actor, id, form.input(), image)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Product updated successfully", httpx.M{"product": product})
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
	httpx.Success(w, http.StatusOK, "Product deleted successfully", nil)
}

// parseForm accepts multipart forms with an optional "image" file, or JSON
// with an optional base64 image.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (ProductForm, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*2)
	var (
		form  ProductForm
		image []byte
		err   error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, image, err = h.parseMultipart(r)
	} else {
		if err = httpx.DecodeJSON(r, &form); err == nil && form.ImageBase64 != "" {
			image, err = base64.StdEncoding.DecodeString(form.ImageBase64)
			if err != nil {
				err = errInvalidImage
			}
		}
	}
	if err != nil {
		return ProductForm{}, nil, err
	}
	if err := h.validator.Struct(form); err != nil {
		return ProductForm{}, nil, httpx.ValidationError(err)
	}
	return form, image, nil
}

func (h *Handler) parseMultipart(r *http.Request) (ProductForm, []byte, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return ProductForm{}, nil, errors.Join(httpx.ErrMalformedBody, err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("unit_price")))
	if err != nil {
		return ProductForm{}, nil, shared.Kind(shared.ErrValidation, "unit price must be a number")
	}
	form := ProductForm{
		SKU:          r.FormValue("sku"),
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		UnitPrice:    price,
		ReorderLevel: atoi(r.FormValue("reorder_level")),
		SupplierID:   int64(atoi(r.FormValue("supplier_id"))),
		InitialStock: atoi(r.FormValue("initial_stock")),
	}
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return ProductForm{}, nil, errInvalidImage
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		return ProductForm{}, nil, errInvalidImage
	}
	return form, image, nil
}

func atoi(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}
