package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/planmeter/planmeter/store"
)

// Store is the subset of persistence operations the catalog depends on.
type Store interface {
	store.PermissionStore
	store.PlanStore

	// UserSubscribedToPlan reports a subscriber blocking plan mutation.
	UserSubscribedToPlan(ctx context.Context, planID string) (*store.User, error)
}

// PermissionUpdate carries a partial permission update. Nil fields are left
// untouched; the identity field is never overwritten.
type PermissionUpdate struct {
	Name        *string
	Endpoint    *store.Endpoint
	Description *string
}

// PlanUpdate carries a partial plan update. A nil APILimit leaves the limit
// table untouched.
type PlanUpdate struct {
	Name     *string
	APILimit map[string]int64
}

// Service orchestrates create/update/delete of permissions and plans,
// running the referential-integrity guard before every mutation. All
// mutation entry points are idempotent on failure: a failed precondition
// performs zero writes.
type Service struct {
	store Store
	guard *Guard
	log   *slog.Logger
}

// NewService returns a catalog service over the given store. A nil logger
// disables logging.
func NewService(s Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store: s,
		guard: NewGuard(s),
		log:   log,
	}
}

// CreatePermission validates the endpoint against the closed enumeration,
// runs the guard, and inserts the permission. The returned permission
// carries its store-assigned ID.
func (s *Service) CreatePermission(ctx context.Context, name string, endpoint store.Endpoint, description string) (*store.Permission, error) {
	if !endpoint.Valid() {
		return nil, errors.Join(ErrInvalidEndpoint, fmt.Errorf("endpoint %q", endpoint))
	}
	if err := s.guard.CanCreatePermission(ctx, endpoint); err != nil {
		return nil, err
	}

	created, err := s.store.CreatePermission(ctx, &store.Permission{
		Name:        name,
		Endpoint:    endpoint,
		Description: description,
	})
	if err != nil {
		// The unique index closes the window between the guard read and the
		// insert; a duplicate-key violation here is a concurrent create.
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, errors.Join(ErrDuplicateEndpoint, fmt.Errorf("endpoint %q", endpoint))
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "permission created",
		slog.String("permission_id", created.ID),
		slog.String("endpoint", string(created.Endpoint)))
	return created, nil
}

// Permission resolves the identifier and returns the permission.
func (s *Service) Permission(ctx context.Context, id string) (*store.Permission, error) {
	id, err := store.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.store.Permission(ctx, id)
}

// PermissionByEndpoint returns the permission holding the endpoint.
func (s *Service) PermissionByEndpoint(ctx context.Context, endpoint store.Endpoint) (*store.Permission, error) {
	if !endpoint.Valid() {
		return nil, errors.Join(ErrInvalidEndpoint, fmt.Errorf("endpoint %q", endpoint))
	}
	return s.store.PermissionByEndpoint(ctx, endpoint)
}

// Permissions returns the whole permission catalog.
func (s *Service) Permissions(ctx context.Context) ([]store.Permission, error) {
	return s.store.Permissions(ctx)
}

// UpdatePermission applies a partial update. Only explicitly supplied fields
// are merged onto the stored permission. Endpoint changes are gated by the
// guard; the store write is conditioned on the endpoint the guard observed.
func (s *Service) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (*store.Permission, error) {
	id, err := store.ParseID(id)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Permission(ctx, id)
	if err != nil {
		return nil, err
	}

	var endpointChange *store.Endpoint
	if upd.Endpoint != nil && *upd.Endpoint != existing.Endpoint {
		if !upd.Endpoint.Valid() {
			return nil, errors.Join(ErrInvalidEndpoint, fmt.Errorf("endpoint %q", *upd.Endpoint))
		}
		endpointChange = upd.Endpoint
	}

	if err := s.guard.CanMutatePermission(ctx, id, endpointChange, false); err != nil {
		return nil, err
	}

	merged := *existing
	if upd.Name != nil {
		merged.Name = *upd.Name
	}
	if endpointChange != nil {
		merged.Endpoint = *endpointChange
	}
	if upd.Description != nil {
		merged.Description = *upd.Description
	}

	if err := s.store.UpdatePermission(ctx, &merged, existing.Endpoint); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, errors.Join(ErrDuplicateEndpoint, fmt.Errorf("endpoint %q", merged.Endpoint))
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "permission updated", slog.String("permission_id", id))
	return &merged, nil
}

// DeletePermission removes a permission once the guard confirms no plan
// references it.
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	id, err := store.ParseID(id)
	if err != nil {
		return err
	}

	if err := s.guard.CanMutatePermission(ctx, id, nil, true); err != nil {
		return err
	}
	if err := s.store.DeletePermission(ctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "permission deleted", slog.String("permission_id", id))
	return nil
}

// CreatePlan validates the limit table and inserts the plan. Every key must
// resolve to an existing permission and every ceiling must be positive;
// validation runs before any write.
func (s *Service) CreatePlan(ctx context.Context, name string, apilimit map[string]int64) (*store.Plan, error) {
	normalized, err := s.validateLimitTable(ctx, apilimit)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreatePlan(ctx, &store.Plan{
		Name:     name,
		APILimit: normalized,
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "plan created",
		slog.String("plan_id", created.ID),
		slog.Int("permissions", len(created.APILimit)))
	return created, nil
}

// Plan resolves the identifier and returns the plan.
func (s *Service) Plan(ctx context.Context, id string) (*store.Plan, error) {
	id, err := store.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.store.Plan(ctx, id)
}

// Plans returns the whole plan catalog.
func (s *Service) Plans(ctx context.Context) ([]store.Plan, error) {
	return s.store.Plans(ctx)
}

// UpdatePlan applies a partial update, gated on the plan having no
// subscribers. A supplied limit table is re-validated key by key.
func (s *Service) UpdatePlan(ctx context.Context, id string, upd PlanUpdate) (*store.Plan, error) {
	id, err := store.ParseID(id)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Plan(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanMutatePlan(ctx, id); err != nil {
		return nil, err
	}

	merged := *existing.Clone()
	if upd.Name != nil {
		merged.Name = *upd.Name
	}
	if upd.APILimit != nil {
		normalized, err := s.validateLimitTable(ctx, upd.APILimit)
		if err != nil {
			return nil, err
		}
		merged.APILimit = normalized
	}

	if err := s.store.UpdatePlan(ctx, &merged); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "plan updated", slog.String("plan_id", id))
	return &merged, nil
}

// DeletePlan removes a plan once the guard confirms no user subscribes to it.
func (s *Service) DeletePlan(ctx context.Context, id string) error {
	id, err := store.ParseID(id)
	if err != nil {
		return err
	}

	if err := s.guard.CanMutatePlan(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeletePlan(ctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "plan deleted", slog.String("plan_id", id))
	return nil
}

// validateLimitTable normalizes the permission-ID keys and verifies the
// table is non-empty, every ceiling is positive, and every key references an
// existing permission.
func (s *Service) validateLimitTable(ctx context.Context, apilimit map[string]int64) (map[string]int64, error) {
	if len(apilimit) == 0 {
		return nil, ErrEmptyLimitTable
	}

	normalized := make(map[string]int64, len(apilimit))
	for rawID, limit := range apilimit {
		if limit <= 0 {
			return nil, errors.Join(ErrInvalidLimit,
				fmt.Errorf("permission %s: ceiling %d must be positive", rawID, limit))
		}
		id, err := store.ParseID(rawID)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.Permission(ctx, id); err != nil {
			if errors.Is(err, store.ErrPermissionNotFound) {
				return nil, errors.Join(ErrUnknownPermission, fmt.Errorf("permission %s", id))
			}
			return nil, err
		}
		normalized[id] = limit
	}
	return normalized, nil
}
