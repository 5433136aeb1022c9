package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/svc/auth"
)

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// principalFrom returns the authenticated principal placed in the context by
// the authenticate middleware.
func principalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok
}

// authenticate resolves the bearer access token into a principal and stores
// it in the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.respondError(w, r, auth.ErrInvalidAccessToken)
			return
		}

		principal, err := h.auth.VerifyAccess(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route group on the principal's role. It assumes
// authenticate ran earlier in the chain.
func requireRole(role store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok || p.Role != role {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"handler.forbidden"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
