package reports

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Handler serves report pages and exports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	pdf     PDFRenderer
}

// NewHandler constructs the report handler. pdf may be nil to disable PDF exports.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, pdf: pdf}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(shared.CapViewReports))
	r.Get("/dashboard", h.dashboard)
	r.Post("/refresh", h.refresh)
	r.Get("/{type}", h.show)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	dash, err := h.service.Dashboard(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", httpx.M{"dashboard": dash})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Refresh(r.Context(), actor); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Reports refreshed", nil)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	kind, err := ParseKind(chi.URLParam(r, "type"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	rng, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatXLSX && format != FormatPDF {
		httpx.RespondError(w, r, h.logger, ErrUnknownFormat)
		return
	}
	if format == FormatPDF && h.pdf == nil {
		httpx.RespondError(w, r, h.logger, ErrPDFDisabled)
		return
	}

	report, err := h.service.Build(r.Context(), actor, kind, rng)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}

	filename := fmt.Sprintf("%s-report-%s", kind, h.service.Now().Format("20060102"))
	switch format {
	case FormatXLSX:
		var buf bytes.Buffer
		if err := WriteXLSX(&buf, report.Table()); err != nil {
			httpx.RespondError(w, r, h.logger, fmt.Errorf("reports: write xlsx: %w", err))
			return
		}
		writeAttachment(w, ContentTypeXLSX, filename+".xlsx", buf.Bytes())
	case FormatPDF:
		pdf, err := h.pdf.RenderHTML(r.Context(), RenderHTML(report.Table()))
		if err != nil {
			httpx.RespondError(w, r, h.logger, fmt.Errorf("reports: render pdf: %w", err))
			return
		}
		writeAttachment(w, ContentTypePDF, filename+".pdf", pdf)
	default:
		httpx.Success(w, http.StatusOK, "", httpx.M{"type": kind, "report": report})
	}
}

func (h *Handler) parseRange(r *http.Request) (Range, error) {
	var start, end *time.Time
	from, err := httpx.QueryDate(r, "start_date")
	if err != nil {
		return Range{}, err
	}
	if !from.IsZero() {
		start = &from
	}
	to, err := httpx.QueryDate(r, "end_date")
	if err != nil {
		return Range{}, err
	}
	if !to.IsZero() {
		end = &to
	}
	return ResolveRange(r.URL.Query().Get("range"), start, end, h.service.Now())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
