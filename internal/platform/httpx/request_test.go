package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

func TestIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders/12", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "12")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, err := IDParam(req, "id")
	require.NoError(t, err)
	require.Equal(t, int64(12), id)

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("id", "-1")
	_, err = IDParam(req, "id")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?product_id=4&limit=x&from=2024-02-01&to=bad", nil)

	id, err := QueryID(req, "product_id")
	require.NoError(t, err)
	require.Equal(t, int64(4), id)

	id, err = QueryID(req, "missing")
	require.NoError(t, err)
	require.Zero(t, id)

	require.Equal(t, 50, QueryInt(req, "limit", 50))

	from, err := QueryDate(req, "from")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)

	_, err = QueryDate(req, "to")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := Actor(req)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	want := shared.Actor{ID: 3, Role: shared.RoleStaff}
	req = req.WithContext(shared.ContextWithActor(req.Context(), want))
	got, err := Actor(req)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
