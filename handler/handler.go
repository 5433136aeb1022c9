// Package handler exposes the backend as a JSON HTTP API.
//
// Routing is a chi router with three surfaces: authentication (login and
// refresh), the admin-gated catalog and user provisioning endpoints, and the
// user-gated subscription and metered demo endpoints. Handlers translate
// between HTTP and the domain services; they hold no business rules.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/svc/auth"
	"github.com/planmeter/planmeter/svc/catalog"
	"github.com/planmeter/planmeter/svc/subscription"
	"github.com/planmeter/planmeter/svc/usage"
)

// Handler wires the domain services into HTTP routes.
type Handler struct {
	auth          *auth.Service
	catalog       *catalog.Service
	subscriptions *subscription.Service
	usage         *usage.Service
	validate      *validator.Validate
	log           *slog.Logger
}

// New returns a handler over the given services. A nil logger disables
// logging.
func New(a *auth.Service, c *catalog.Service, s *subscription.Service, u *usage.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		auth:          a,
		catalog:       c,
		subscriptions: s,
		usage:         u,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		log:           log,
	}
}

// Routes builds the full route tree.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/token", h.login)
	r.Post("/refresh", h.refresh)

	// Catalog management and user provisioning are admin territory.
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate, requireRole(store.RoleAdmin))

		r.Route("/permissions", func(r chi.Router) {
			r.Post("/", h.createPermission)
			r.Get("/", h.listPermissions)
			r.Get("/{id}", h.getPermission)
			r.Put("/{id}", h.updatePermission)
			r.Delete("/{id}", h.deletePermission)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.createPlan)
			r.Get("/", h.listPlans)
			r.Get("/{id}", h.getPlan)
			r.Put("/{id}", h.updatePlan)
			r.Delete("/{id}", h.deletePlan)
		})

		r.Post("/users", h.createUser)
		r.Put("/users/{id}/plan", h.changeUserPlan)
	})

	// Subscription self-service and metered endpoints require the user role.
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate, requireRole(store.RoleUser))

		r.Post("/subscriptions/{planID}", h.subscribe)
		r.Get("/me/plan", h.myPlan)
		r.Get("/me/usage", h.myUsage)

		for _, endpoint := range store.Endpoints() {
			r.With(h.metered(endpoint)).Get("/"+string(endpoint), demoPayload(endpoint))
		}
	})

	return r
}
