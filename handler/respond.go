package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/svc/auth"
	"github.com/planmeter/planmeter/svc/catalog"
	"github.com/planmeter/planmeter/svc/subscription"
	"github.com/planmeter/planmeter/svc/usage"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			h.log.Error("failed to encode response", "error", err)
		}
	}
}

// respondError maps domain sentinels onto HTTP statuses and renders the
// top-level sentinel message; joined detail stays in the server log.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.log.DebugContext(r.Context(), "request rejected",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.respondJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidAccessToken),
		errors.Is(err, auth.ErrInvalidRefreshToken):
		return http.StatusUnauthorized

	case errors.Is(err, subscription.ErrRoleNotEligible),
		errors.Is(err, usage.ErrRoleNotEligible),
		errors.Is(err, usage.ErrPermissionNotInPlan),
		errors.Is(err, errForbidden):
		return http.StatusForbidden

	case errors.Is(err, store.ErrPermissionNotFound),
		errors.Is(err, store.ErrPlanNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, catalog.ErrDuplicateEndpoint),
		errors.Is(err, catalog.ErrPermissionInUse),
		errors.Is(err, catalog.ErrPlanInUse),
		errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, usage.ErrQuotaExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, store.ErrInvalidID),
		errors.Is(err, catalog.ErrInvalidEndpoint),
		errors.Is(err, catalog.ErrEmptyLimitTable),
		errors.Is(err, catalog.ErrInvalidLimit),
		errors.Is(err, catalog.ErrUnknownPermission),
		errors.Is(err, subscription.ErrUsageKeySetMismatch),
		errors.Is(err, subscription.ErrInvalidUsageValue),
		errors.Is(err, subscription.ErrNotSubscribed),
		errors.Is(err, usage.ErrNotSubscribed),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, errBadRequest),
		errors.As(err, &verrs):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// decode unmarshals and validates a JSON request body.
func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	if err := h.validate.Struct(v); err != nil {
		return err
	}
	return nil
}

var (
	errBadRequest = errors.New("handler.bad_request")
	errForbidden  = errors.New("handler.forbidden")
)
