package usage

import "errors"

// Domain errors for usage accounting.
var (
	// ErrRoleNotEligible is returned when the target user's role cannot
	// accrue metered usage. Only "user"-role principals hold counters.
	ErrRoleNotEligible = errors.New("usage.role_not_eligible")

	// ErrPermissionNotInPlan is returned when the permission is not a key
	// of the user's tracked counter table.
	ErrPermissionNotInPlan = errors.New("usage.permission_not_in_plan")

	// ErrQuotaExceeded is returned when the counter already sits at the
	// plan's call ceiling. The increment is refused rather than applied
	// past the limit.
	ErrQuotaExceeded = errors.New("usage.quota_exceeded")

	// ErrNotSubscribed is returned when the user holds no subscription.
	ErrNotSubscribed = errors.New("usage.not_subscribed")
)
