package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate resolves the session user into an actor stored on the request
// context. Anonymous requests pass through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		userID, ok := sess.UserID()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.Service.ResolveActor(r.Context(), userID)
		if err != nil {
			httpx.RespondError(w, r, m.Logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireAny ensures the current user has at least one of the required capabilities.
func (m Middleware) RequireAny(caps ...string) func(http.Handler) http.Handler {
	return m.require(normalizeCapabilities(caps), hasAnyCapability)
}

// RequireAll ensures the current user has all required capabilities.
func (m Middleware) RequireAll(caps ...string) func(http.Handler) http.Handler {
	return m.require(normalizeCapabilities(caps), hasAllCapabilities)
}

// RequireUser only requires a signed-in user.
func (m Middleware) RequireUser() func(http.Handler) http.Handler {
	return m.require(nil, hasAllCapabilities)
}

func (m Middleware) require(required []string, check func(shared.Role, []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := httpx.Actor(r)
			if err != nil {
				httpx.RespondError(w, r, m.Logger, err)
				return
			}
			if !check(actor.Role, required) {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied",
						slog.Int64("user_id", actor.ID),
						slog.String("role", string(actor.Role)),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, r, m.Logger, shared.Authorize(shared.Actor{}, required...))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizeCapabilities(caps []string) []string {
	unique := make(map[string]struct{}, len(caps))
	normalized := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(strings.ToLower(c))
		if c == "" {
			continue
		}
		if _, seen := unique[c]; seen {
			continue
		}
		unique[c] = struct{}{}
		normalized = append(normalized, c)
	}
	return normalized
}

func hasAnyCapability(role shared.Role, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, c := range required {
		if role.Can(c) {
			return true
		}
	}
	return false
}

func hasAllCapabilities(role shared.Role, required []string) bool {
	for _, c := range required {
		if !role.Can(c) {
			return false
		}
	}
	return true
}
