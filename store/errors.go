package store

import "errors"

// Store-level errors shared by all implementations.
var (
	// ErrInvalidID is returned when a caller-supplied identifier is not a
	// well-formed ObjectID hex string.
	ErrInvalidID = errors.New("store.invalid_identifier")

	// ErrPermissionNotFound is returned when no permission matches the query.
	ErrPermissionNotFound = errors.New("store.permission_not_found")

	// ErrPlanNotFound is returned when no plan matches the query.
	ErrPlanNotFound = errors.New("store.plan_not_found")

	// ErrUserNotFound is returned when no user matches the query.
	ErrUserNotFound = errors.New("store.user_not_found")

	// ErrConflict is returned when a conditional update finds the document
	// but its expected prior state has changed. Callers retry or surface it.
	ErrConflict = errors.New("store.concurrent_modification")

	// ErrDuplicateKey is returned when an insert or update violates a unique
	// index (endpoint or username).
	ErrDuplicateKey = errors.New("store.duplicate_key")

	// ErrUnavailable is returned when the backing store cannot be reached
	// within the operation deadline. It is the only possibly-transient kind.
	ErrUnavailable = errors.New("store.unavailable")
)
