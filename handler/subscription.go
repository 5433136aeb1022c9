package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, errForbidden)
		return
	}

	user, err := h.subscriptions.Subscribe(r.Context(), principal.UserID, chi.URLParam(r, "planID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

type changeUserPlanRequest struct {
	PlanID        string           `json:"plan_id" validate:"required"`
	ProposedUsage map[string]int64 `json:"proposed_usage"`
}

// changeUserPlan is the administrative plan switch. Targeting the user's
// current plan with a proposed_usage table replaces the counters in place;
// targeting a different plan resets them to zero.
func (h *Handler) changeUserPlan(w http.ResponseWriter, r *http.Request) {
	var req changeUserPlanRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.subscriptions.ChangePlan(r.Context(), chi.URLParam(r, "id"), req.PlanID, req.ProposedUsage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *Handler) myPlan(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, errForbidden)
		return
	}

	details, err := h.subscriptions.PlanDetails(r.Context(), principal.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, details)
}

func (h *Handler) myUsage(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, errForbidden)
		return
	}

	stats, err := h.subscriptions.UsageStats(r.Context(), principal.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}
