package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/planmeter/planmeter/store"
)

// Guard enforces referential integrity at the boundary of catalog mutations.
// The backing store is schemaless, so the guard is the single source of
// truth for "is this entity referenced". Each check is a pure
// read-then-decide operation with no side effects; the store writes that
// follow are themselves conditional where a single document is involved.
type Guard struct {
	store Store
}

// NewGuard returns a guard over the given store.
func NewGuard(s Store) *Guard {
	return &Guard{store: s}
}

// CanCreatePermission fails with ErrDuplicateEndpoint when any existing
// permission already claims the endpoint.
func (g *Guard) CanCreatePermission(ctx context.Context, endpoint store.Endpoint) error {
	existing, err := g.store.PermissionByEndpoint(ctx, endpoint)
	switch {
	case err == nil:
		return errors.Join(ErrDuplicateEndpoint,
			fmt.Errorf("endpoint %q already claimed by permission %s", endpoint, existing.ID))
	case errors.Is(err, store.ErrPermissionNotFound):
		return nil
	default:
		return err
	}
}

// CanMutatePermission gates updates and deletes of a permission.
//
// A delete is blocked with ErrPermissionInUse while any plan's limit table
// references the permission. An update is blocked only when it changes the
// endpoint: a referenced permission may not change its identity-relevant
// endpoint field (ErrPermissionInUse), and the new endpoint must not collide
// with a different permission (ErrDuplicateEndpoint). Updates that leave the
// endpoint untouched are never blocked by plan usage.
func (g *Guard) CanMutatePermission(ctx context.Context, id string, newEndpoint *store.Endpoint, isDelete bool) error {
	if isDelete || newEndpoint != nil {
		plan, err := g.store.PlanReferencingPermission(ctx, id)
		switch {
		case err == nil:
			return errors.Join(ErrPermissionInUse,
				fmt.Errorf("permission %s is referenced by plan %s", id, plan.ID))
		case errors.Is(err, store.ErrPlanNotFound):
			// unreferenced, continue
		default:
			return err
		}
	}

	if newEndpoint != nil {
		holder, err := g.store.PermissionByEndpoint(ctx, *newEndpoint)
		switch {
		case err == nil:
			if holder.ID != id {
				return errors.Join(ErrDuplicateEndpoint,
					fmt.Errorf("endpoint %q already claimed by permission %s", *newEndpoint, holder.ID))
			}
		case errors.Is(err, store.ErrPermissionNotFound):
			// endpoint free, continue
		default:
			return err
		}
	}

	return nil
}

// CanMutatePlan fails with ErrPlanInUse when any user is subscribed to the
// plan. It applies to both update and delete.
func (g *Guard) CanMutatePlan(ctx context.Context, id string) error {
	subscriber, err := g.store.UserSubscribedToPlan(ctx, id)
	switch {
	case err == nil:
		return errors.Join(ErrPlanInUse,
			fmt.Errorf("plan %s is subscribed to by user %s", id, subscriber.ID))
	case errors.Is(err, store.ErrUserNotFound):
		return nil
	default:
		return err
	}
}
