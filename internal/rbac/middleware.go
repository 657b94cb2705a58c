package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Middleware wires authentication and capability checks into HTTP handlers.
type Middleware struct {
	Gate     *Gate
	Resolver *TokenResolver
	Logger   *slog.Logger
}

// Authenticate resolves the bearer token, if any, into a Principal stored on
// the request context. Requests without a valid token continue anonymously and
// are rejected later by Require.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" || m.Resolver == nil {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Resolver.Resolve(r.Context(), raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("rbac resolve token", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Require rejects requests whose principal lacks capability. When resourceParam
// is given, the named chi URL parameter is recorded as the accessed resource.
func (m Middleware) Require(capability Capability, resourceParam ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var resourceID *string
			if len(resourceParam) > 0 {
				if v := strings.TrimSpace(chi.URLParam(r, resourceParam[0])); v != "" {
					resourceID = &v
				}
			}
			principal := PrincipalFromContext(r.Context())
			if err := m.Gate.Authorize(r.Context(), principal, capability, resourceID); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
