package catalog

import "errors"

// Domain errors for catalog operations.
var (
	// ErrInvalidEndpoint is returned when an endpoint value is not a member
	// of the closed endpoint enumeration.
	ErrInvalidEndpoint = errors.New("catalog.invalid_endpoint")

	// ErrDuplicateEndpoint is returned when an endpoint is already claimed
	// by another permission.
	ErrDuplicateEndpoint = errors.New("catalog.duplicate_endpoint")

	// ErrPermissionInUse is returned when a permission is referenced by a
	// plan's limit table and the requested mutation would break the
	// reference (delete, or endpoint change).
	ErrPermissionInUse = errors.New("catalog.permission_in_use")

	// ErrPlanInUse is returned when a plan has at least one subscribed user.
	ErrPlanInUse = errors.New("catalog.plan_in_use")

	// ErrEmptyLimitTable is returned when a plan's limit table has no
	// entries.
	ErrEmptyLimitTable = errors.New("catalog.empty_limit_table")

	// ErrInvalidLimit is returned when a limit-table entry carries a
	// non-positive call ceiling.
	ErrInvalidLimit = errors.New("catalog.invalid_limit")

	// ErrUnknownPermission is returned when a limit-table key does not
	// reference an existing permission.
	ErrUnknownPermission = errors.New("catalog.unknown_permission")
)
