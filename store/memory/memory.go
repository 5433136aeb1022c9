// Package memory provides an in-memory store.Store implementation for tests
// and local development. All operations take effect atomically under a single
// mutex, so the conditional-update semantics match the MongoDB
// implementation, including under concurrent callers.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/planmeter/planmeter/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu          sync.Mutex
	permissions map[string]store.Permission
	plans       map[string]store.Plan
	users       map[string]store.User
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		permissions: make(map[string]store.Permission),
		plans:       make(map[string]store.Plan),
		users:       make(map[string]store.User),
	}
}

// CreatePermission inserts p with a fresh ID.
func (s *Store) CreatePermission(_ context.Context, p *store.Permission) (*store.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.permissions {
		if existing.Endpoint == p.Endpoint {
			return nil, store.ErrDuplicateKey
		}
	}

	stored := *p
	stored.ID = store.NewID()
	s.permissions[stored.ID] = stored
	return &stored, nil
}

// Permission returns the permission with the given ID.
func (s *Store) Permission(_ context.Context, id string) (*store.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.permissions[id]
	if !ok {
		return nil, store.ErrPermissionNotFound
	}
	return &p, nil
}

// PermissionByEndpoint returns the permission holding the endpoint.
func (s *Store) PermissionByEndpoint(_ context.Context, e store.Endpoint) (*store.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.permissions {
		if p.Endpoint == e {
			return &p, nil
		}
	}
	return nil, store.ErrPermissionNotFound
}

// Permissions returns every permission.
func (s *Store) Permissions(_ context.Context) ([]store.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	return out, nil
}

// UpdatePermission overwrites mutable fields conditioned on the prior endpoint.
func (s *Store) UpdatePermission(_ context.Context, p *store.Permission, expectedEndpoint store.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.permissions[p.ID]
	if !ok {
		return store.ErrPermissionNotFound
	}
	if existing.Endpoint != expectedEndpoint {
		return store.ErrConflict
	}
	if p.Endpoint != existing.Endpoint {
		for id, other := range s.permissions {
			if id != p.ID && other.Endpoint == p.Endpoint {
				return store.ErrDuplicateKey
			}
		}
	}

	stored := *p
	stored.ID = existing.ID
	s.permissions[stored.ID] = stored
	return nil
}

// DeletePermission removes the permission.
func (s *Store) DeletePermission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[id]; !ok {
		return store.ErrPermissionNotFound
	}
	delete(s.permissions, id)
	return nil
}

// CreatePlan inserts p with a fresh ID.
func (s *Store) CreatePlan(_ context.Context, p *store.Plan) (*store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	stored.ID = store.NewID()
	stored.APILimit = maps.Clone(p.APILimit)
	s.plans[stored.ID] = stored
	return stored.Clone(), nil
}

// Plan returns the plan with the given ID.
func (s *Store) Plan(_ context.Context, id string) (*store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	return p.Clone(), nil
}

// Plans returns every plan.
func (s *Store) Plans(_ context.Context) ([]store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, *p.Clone())
	}
	return out, nil
}

// UpdatePlan overwrites the plan's mutable fields.
func (s *Store) UpdatePlan(_ context.Context, p *store.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.plans[p.ID]
	if !ok {
		return store.ErrPlanNotFound
	}

	stored := *p
	stored.ID = existing.ID
	stored.APILimit = maps.Clone(p.APILimit)
	s.plans[stored.ID] = stored
	return nil
}

// DeletePlan removes the plan.
func (s *Store) DeletePlan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[id]; !ok {
		return store.ErrPlanNotFound
	}
	delete(s.plans, id)
	return nil
}

// PlanReferencingPermission returns some plan whose limit table references
// the permission.
func (s *Store) PlanReferencingPermission(_ context.Context, permissionID string) (*store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.plans {
		if _, ok := p.APILimit[permissionID]; ok {
			return p.Clone(), nil
		}
	}
	return nil, store.ErrPlanNotFound
}

// CreateUser inserts u with a fresh ID.
func (s *Store) CreateUser(_ context.Context, u *store.User) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return nil, store.ErrDuplicateKey
		}
	}

	stored := *u
	stored.ID = store.NewID()
	stored.CurrentAPIUsage = maps.Clone(u.CurrentAPIUsage)
	s.users[stored.ID] = stored
	return stored.Clone(), nil
}

// User returns the user with the given ID.
func (s *Store) User(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u.Clone(), nil
}

// UserByUsername returns the user holding the username.
func (s *Store) UserByUsername(_ context.Context, username string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, store.ErrUserNotFound
}

// UserSubscribedToPlan returns some user subscribed to the plan.
func (s *Store) UserSubscribedToPlan(_ context.Context, planID string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.SubscribedPlanID == planID {
			return u.Clone(), nil
		}
	}
	return nil, store.ErrUserNotFound
}

// ReplaceSubscription atomically swaps the subscription and counter table,
// conditioned on the prior subscribed plan.
func (s *Store) ReplaceSubscription(_ context.Context, userID, planID string, usage map[string]int64, expectedPlanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	if u.SubscribedPlanID != expectedPlanID {
		return store.ErrConflict
	}

	u.SubscribedPlanID = planID
	u.CurrentAPIUsage = maps.Clone(usage)
	s.users[userID] = u
	return nil
}

// IncrementUsage atomically bumps a counter while it is below limit.
func (s *Store) IncrementUsage(_ context.Context, userID, permissionID string, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	current, ok := u.CurrentAPIUsage[permissionID]
	if !ok || current >= limit {
		return store.ErrConflict
	}

	usage := maps.Clone(u.CurrentAPIUsage)
	usage[permissionID] = current + 1
	u.CurrentAPIUsage = usage
	s.users[userID] = u
	return nil
}
