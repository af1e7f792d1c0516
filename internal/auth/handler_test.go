package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-wms/internal/auth"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
	_ "github.com/odyssey-erp/odyssey-wms/testing"
)

type stubRepo struct {
	users    map[string]auth.User
	sessions map[string]int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[string]auth.User{}, sessions: map[string]int64{}}
}

func (s *stubRepo) FindByUsername(_ context.Context, username string) (auth.User, bool, error) {
	u, ok := s.users[username]
	return u, ok, nil
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (auth.User, bool, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return auth.User{}, false, nil
}

func (s *stubRepo) CreateUser(_ context.Context, account auth.NewAccount) (auth.User, error) {
	for _, u := range s.users {
		if u.Username == account.Username || u.Email == account.Email {
			return auth.User{}, auth.ErrDuplicateAccount
		}
	}
	u := auth.User{
		ID:           int64(len(s.users) + 1),
		Username:     account.Username,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Role:         account.Role,
		CreatedAt:    time.Now(),
	}
	s.users[u.Username] = u
	return u, nil
}

func (s *stubRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	cookie   string
}

func newHarness(t *testing.T, repo auth.Repository) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessions, shared.NewCSRFManager("csrfsecret"))
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return &harness{router: r, sessions: sessions}
}

// do runs one request with the stored session cookie and persists the session afterwards.
func (h *harness) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if h.cookie != "" {
		req.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: h.cookie})
	}
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req.WithContext(ctx))
	require.NoError(t, h.sessions.Commit(ctx, httptest.NewRecorder(), req, sess))
	h.cookie = sess.ID
	return rec, sess
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedUser(t *testing.T, repo *stubRepo, username, password string, role shared.Role) auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := repo.CreateUser(context.Background(), auth.NewAccount{
		Username:     username,
		Email:        username + "@test.local",
		PasswordHash: string(hashed),
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

func TestRegisterCreatesCustomerAccount(t *testing.T) {
	repo := newStubRepo()
	h := newHarness(t, repo)

	rec, _ := h.do(t, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@test.local","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, shared.RoleUser, repo.users["alice"].Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["alice"].PasswordHash), []byte("secret123")))

	rec, _ = h.do(t, http.MethodPost, "/auth/register", `{"username":"alice","email":"other@test.local","password":"secret123"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Username or email already exists", decode(t, rec)["message"])

	rec, _ = h.do(t, http.MethodPost, "/auth/register", `{"username":"bob","email":"not-an-email","password":"secret123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubRepo()
	seedUser(t, repo, "alice", "correctpass", shared.RoleUser)
	h := newHarness(t, repo)

	rec, sess := h.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"wrongpass"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid username or password", decode(t, rec)["message"])
	_, ok := sess.UserID()
	require.False(t, ok)

	rec, _ = h.do(t, http.MethodPost, "/auth/login", `{"username":"nobody","password":"whatever"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRenewsSessionAndServesProfile(t *testing.T) {
	repo := newStubRepo()
	user := seedUser(t, repo, "stella", "correctpass", shared.RoleStaff)
	h := newHarness(t, repo)

	_, anon := h.do(t, http.MethodGet, "/auth/csrf", "")
	anonID := anon.ID

	rec, sess := h.do(t, http.MethodPost, "/auth/login", `{"username":"stella","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, anonID, sess.ID)
	id, ok := sess.UserID()
	require.True(t, ok)
	require.Equal(t, user.ID, id)
	require.Equal(t, user.ID, repo.sessions[sess.ID])
	require.NotEmpty(t, decode(t, rec)["csrf_token"])

	rec, _ = h.do(t, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode(t, rec)["user"].(map[string]any)
	require.Equal(t, "stella", profile["username"])
	require.Equal(t, "staff", profile["role"])
	require.Contains(t, profile["capabilities"], shared.CapManageInventory)

	rec, _ = h.do(t, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, repo.sessions)

	rec, _ = h.do(t, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
