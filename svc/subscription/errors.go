package subscription

import "errors"

// Domain errors for subscription operations.
var (
	// ErrRoleNotEligible is returned when the target user's role is not
	// allowed to hold a subscription. Only "user"-role principals may
	// subscribe.
	ErrRoleNotEligible = errors.New("subscription.role_not_eligible")

	// ErrUsageKeySetMismatch is returned when a same-plan usage correction
	// supplies a counter table whose key set differs from the currently
	// tracked counters.
	ErrUsageKeySetMismatch = errors.New("subscription.usage_key_set_mismatch")

	// ErrInvalidUsageValue is returned when a usage correction carries a
	// negative counter.
	ErrInvalidUsageValue = errors.New("subscription.invalid_usage_value")

	// ErrNotSubscribed is returned by the view operations when the user
	// holds no subscription.
	ErrNotSubscribed = errors.New("subscription.not_subscribed")
)
