package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/svc/catalog"
)

type createPermissionRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Endpoint    string `json:"endpoint" validate:"required"`
	Description string `json:"description" validate:"max=512"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	perm, err := h.catalog.CreatePermission(r.Context(), req.Name, store.Endpoint(req.Endpoint), req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, perm)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.Permissions(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, perms)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := h.catalog.Permission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, perm)
}

type updatePermissionRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=128"`
	Endpoint    *string `json:"endpoint"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	upd := catalog.PermissionUpdate{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Endpoint != nil {
		endpoint := store.Endpoint(*req.Endpoint)
		upd.Endpoint = &endpoint
	}

	perm, err := h.catalog.UpdatePermission(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeletePermission(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil)
}

type createPlanRequest struct {
	Name     string           `json:"name" validate:"required,max=128"`
	APILimit map[string]int64 `json:"apilimit" validate:"required,min=1"`
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	plan, err := h.catalog.CreatePlan(r.Context(), req.Name, req.APILimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, plan)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.Plans(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, plans)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.catalog.Plan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, plan)
}

type updatePlanRequest struct {
	Name     *string          `json:"name" validate:"omitempty,max=128"`
	APILimit map[string]int64 `json:"apilimit" validate:"omitempty,min=1"`
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	var req updatePlanRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	plan, err := h.catalog.UpdatePlan(r.Context(), chi.URLParam(r, "id"), catalog.PlanUpdate{
		Name:     req.Name,
		APILimit: req.APILimit,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, plan)
}

func (h *Handler) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeletePlan(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil)
}
