package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type stubPDF struct {
	html string
}

func (s *stubPDF) RenderHTML(_ context.Context, html string) ([]byte, error) {
	s.html = html
	return []byte("%PDF-1.7"), nil
}

func newTestRouter(actor shared.Actor, pdf PDFRenderer) http.Handler {
	h := NewHandler(nil, newTestService(fixtureRepo(), nil), rbac.Middleware{}, pdf)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/reports", h.MountRoutes)
	return r
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerServesJSONReport(t *testing.T) {
	rec := get(t, newTestRouter(staff, nil), "/reports/orders?range=quarter")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Type    string `json:"type"`
		Report  struct {
			Range   Range `json:"range"`
			Summary struct {
				TotalOrders int `json:"total_orders"`
			} `json:"summary"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "orders", body.Type)
	require.Equal(t, RangeQuarter, body.Report.Range.Name)
	require.Equal(t, 3, body.Report.Summary.TotalOrders)
}

func TestHandlerExportsXLSX(t *testing.T) {
	rec := get(t, newTestRouter(staff, nil), "/reports/inventory?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ContentTypeXLSX, rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "inventory-report-20260331.xlsx")
	require.NotEmpty(t, rec.Body.Bytes())
}

func TestHandlerExportsPDF(t *testing.T) {
	pdf := &stubPDF{}
	rec := get(t, newTestRouter(staff, pdf), "/reports/suppliers?format=pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ContentTypePDF, rec.Header().Get("Content-Type"))
	require.Equal(t, "%PDF-1.7", rec.Body.String())
	require.Contains(t, pdf.html, "Supplier Performance Report")
	require.Contains(t, pdf.html, "Bolts &amp; Co")
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	router := newTestRouter(staff, nil)

	require.Equal(t, http.StatusNotFound, get(t, router, "/reports/payroll").Code)
	require.Equal(t, http.StatusBadRequest, get(t, router, "/reports/inventory?format=pdf").Code)
	require.Equal(t, http.StatusBadRequest, get(t, router, "/reports/inventory?format=csv").Code)
	require.Equal(t, http.StatusBadRequest, get(t, router, "/reports/movements?range=custom&start_date=2026-02-01&end_date=2026-01-01").Code)
	require.Equal(t, http.StatusBadRequest, get(t, router, "/reports/movements?range=custom&start_date=01/02/2026").Code)

	require.Equal(t, http.StatusForbidden, get(t, newTestRouter(customer, nil), "/reports/dashboard").Code)
}
