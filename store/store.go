package store

import "context"

// PermissionStore persists the permission collection.
type PermissionStore interface {
	// CreatePermission inserts p with a fresh store-assigned ID and returns
	// the stored permission. Returns ErrDuplicateKey if the endpoint is
	// already taken (unique-index backstop; the service layer checks first).
	CreatePermission(ctx context.Context, p *Permission) (*Permission, error)

	// Permission returns the permission with the given ID, or
	// ErrPermissionNotFound.
	Permission(ctx context.Context, id string) (*Permission, error)

	// PermissionByEndpoint returns the permission holding the endpoint, or
	// ErrPermissionNotFound when the endpoint is unclaimed.
	PermissionByEndpoint(ctx context.Context, e Endpoint) (*Permission, error)

	// Permissions returns every permission in the catalog.
	Permissions(ctx context.Context) ([]Permission, error)

	// UpdatePermission overwrites the mutable fields of the permission with
	// p.ID, conditioned on the document still holding expectedEndpoint. The
	// ID field is never overwritten. Returns ErrPermissionNotFound when no
	// document has p.ID, ErrConflict when the endpoint changed underneath
	// the caller, and ErrDuplicateKey when the new endpoint is taken.
	UpdatePermission(ctx context.Context, p *Permission, expectedEndpoint Endpoint) error

	// DeletePermission removes the permission, or returns
	// ErrPermissionNotFound.
	DeletePermission(ctx context.Context, id string) error
}

// PlanStore persists the plan collection.
type PlanStore interface {
	// CreatePlan inserts p with a fresh store-assigned ID and returns the
	// stored plan.
	CreatePlan(ctx context.Context, p *Plan) (*Plan, error)

	// Plan returns the plan with the given ID, or ErrPlanNotFound.
	Plan(ctx context.Context, id string) (*Plan, error)

	// Plans returns every plan in the catalog.
	Plans(ctx context.Context) ([]Plan, error)

	// UpdatePlan overwrites the mutable fields of the plan with p.ID, or
	// returns ErrPlanNotFound.
	UpdatePlan(ctx context.Context, p *Plan) error

	// DeletePlan removes the plan, or returns ErrPlanNotFound.
	DeletePlan(ctx context.Context, id string) error

	// PlanReferencingPermission returns some plan whose limit table contains
	// permissionID as a key, or ErrPlanNotFound when no plan references it.
	// The referential-integrity guard uses it to block permission mutation.
	PlanReferencingPermission(ctx context.Context, permissionID string) (*Plan, error)
}

// UserStore persists the user collection. User creation happens through
// CreateUser (administrative provisioning); subscription and usage fields are
// mutated exclusively through the conditional methods below.
type UserStore interface {
	// CreateUser inserts u with a fresh store-assigned ID and returns the
	// stored user. Returns ErrDuplicateKey when the username is taken.
	CreateUser(ctx context.Context, u *User) (*User, error)

	// User returns the user with the given ID, or ErrUserNotFound.
	User(ctx context.Context, id string) (*User, error)

	// UserByUsername returns the user holding the username, or
	// ErrUserNotFound.
	UserByUsername(ctx context.Context, username string) (*User, error)

	// UserSubscribedToPlan returns some user whose subscribed plan is
	// planID, or ErrUserNotFound when the plan has no subscribers. The
	// referential-integrity guard uses it to block plan mutation.
	UserSubscribedToPlan(ctx context.Context, planID string) (*User, error)

	// ReplaceSubscription atomically sets the user's subscribed plan and
	// replaces the whole usage counter table, conditioned on the document
	// still holding expectedPlanID (empty string means "no subscription").
	// Returns ErrUserNotFound when no document has userID and ErrConflict
	// when the subscription changed underneath the caller.
	ReplaceSubscription(ctx context.Context, userID, planID string, usage map[string]int64, expectedPlanID string) error

	// IncrementUsage atomically increments the user's counter for
	// permissionID by one, conditioned on the counter existing and being
	// strictly below limit. Returns ErrUserNotFound when no document has
	// userID and ErrConflict when the condition does not hold (missing
	// counter or counter at the ceiling); the caller re-reads to classify.
	IncrementUsage(ctx context.Context, userID, permissionID string, limit int64) error
}

// Store aggregates the three collection contracts. The MongoDB and in-memory
// implementations both satisfy it.
type Store interface {
	PermissionStore
	PlanStore
	UserStore
}
