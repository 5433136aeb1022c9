package handler

import (
	"fmt"
	"net/http"

	"github.com/planmeter/planmeter/store"
)

// metered charges one call against the principal's quota before letting the
// request through. The quota check and the counter increment are one atomic
// operation in the usage service, so the demo payload is only ever served for
// a successfully accounted call.
func (h *Handler) metered(endpoint store.Endpoint) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := principalFrom(r.Context())
			if !ok {
				h.respondError(w, r, errForbidden)
				return
			}

			perm, err := h.catalog.PermissionByEndpoint(r.Context(), endpoint)
			if err != nil {
				h.respondError(w, r, err)
				return
			}
			if err := h.usage.Record(r.Context(), principal.UserID, perm.ID); err != nil {
				h.respondError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// demoPayload serves the placeholder body behind a metered endpoint.
func demoPayload(endpoint store.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"endpoint":%q,"message":"you have accessed %s"}`+"\n", endpoint, endpoint)
	}
}
