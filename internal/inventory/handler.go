package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapManageInventory))
		r.Get("/movements", h.listMovements)
		r.Post("/movements", h.recordMovement)
		r.Post("/stock/{productID}/adjust", h.adjustStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapManageInventory, shared.CapViewProducts))
		r.Get("/stock/{productID}", h.onHand)
	})
}

type movementRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Type      string `json:"movement_type" validate:"required,oneof=PURCHASE SALE ADJUST TRANSFER"`
	Qty       int    `json:"qty" validate:"required"`
	Reference string `json:"reference" validate:"max=255"`
}

type adjustRequest struct {
	Type      string `json:"movement_type" validate:"required,oneof=PURCHASE SALE ADJUST TRANSFER"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Direction string `json:"direction" validate:"omitempty,oneof=in out"`
	Reference string `json:"reference" validate:"max=255"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, h.logger, httpx.ValidationError(err))
		return
	}
	movement, err := h.service.RecordMovement(r.Context(), actor, MovementInput{
		ProductID: req.ProductID,
		Type:      MovementType(req.Type),
		Qty:       req.Qty,
		Reference: req.Reference,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Movement recorded", httpx.M{"movement": movement})
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, h.logger, httpx.ValidationError(err))
		return
	}
	movement, err := h.service.AdjustStock(r.Context(), actor, AdjustInput{
		ProductID: productID,
		Type:      MovementType(req.Type),
		Quantity:  req.Quantity,
		Direction: Direction(req.Direction),
		Reference: req.Reference,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	onHand, err := h.service.OnHand(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Stock adjusted successfully", httpx.M{"movement": movement, "on_hand": onHand})
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	onHand, err := h.service.OnHand(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"product_id": productID, "on_hand": onHand})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{
		Type:  MovementType(r.URL.Query().Get("type")),
		Limit: min(max(httpx.QueryInt(r, "limit", 200), 1), 1000),
	}
	var err error
	if filter.ProductID, err = httpx.QueryID(r, "product_id"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		httpx.RespondError(w, r, h.logger, ErrUnknownType)
		return
	}

	movements := []Movement{}
	for m, err := range h.service.ListMovements(r.Context(), filter) {
		if err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		movements = append(movements, m)
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"movements": movements})
}
