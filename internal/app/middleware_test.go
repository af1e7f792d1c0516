package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

func newMiddlewareRouter(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "wms_session", time.Hour, false)
	csrf := shared.NewCSRFManager("secret")

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{SessionManager: sessions, CSRFManager: csrf}) {
		r.Use(mw)
	}
	r.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		token, err := csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
		require.NoError(t, err)
		httpx.JSON(w, http.StatusOK, map[string]string{"token": token})
	})
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r, mr
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wms_session" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func TestSessionMiddlewarePersistsSession(t *testing.T) {
	router, mr := newMiddlewareRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(t, rec)
	require.True(t, cookie.HttpOnly)
	require.True(t, mr.Exists("wms:session:"+cookie.Value))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestCSRFMiddlewareGuardsMutations(t *testing.T) {
	router, _ := newMiddlewareRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	cookie := sessionCookie(t, rec)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, jsonDecode(rec, &body))
	require.NotEmpty(t, body.Token)

	missing := httptest.NewRequest(http.MethodPost, "/echo", nil)
	missing.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, missing)
	require.Equal(t, http.StatusForbidden, rec.Code)

	wrong := httptest.NewRequest(http.MethodPost, "/echo", nil)
	wrong.AddCookie(cookie)
	wrong.Header.Set(shared.CSRFHeader, "forged")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, wrong)
	require.Equal(t, http.StatusForbidden, rec.Code)

	ok := httptest.NewRequest(http.MethodPost, "/echo", nil)
	ok.AddCookie(cookie)
	ok.Header.Set(shared.CSRFHeader, body.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, ok)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthHandlerReportsFailingDependency(t *testing.T) {
	handler := healthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Success bool              `json:"success"`
		Checks  map[string]string `json:"checks"`
	}
	require.NoError(t, jsonDecode(rec, &body))
	require.False(t, body.Success)
	require.Equal(t, "ok", body.Checks["postgres"])
	require.Equal(t, "connection refused", body.Checks["redis"])
}

func jsonDecode(rec *httptest.ResponseRecorder, dest any) error {
	return json.NewDecoder(rec.Body).Decode(dest)
}
