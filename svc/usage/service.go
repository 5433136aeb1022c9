// Package usage implements the quota-check-and-increment primitive invoked
// once per metered API call.
//
// The admission decision and the increment are folded into one atomic store
// operation: the counter is bumped only while it sits strictly below the
// plan's ceiling, and a counter at the ceiling surfaces as ErrQuotaExceeded
// instead of incrementing past it. Splitting the comparison from the
// increment would allow quota overrun under concurrent load.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/planmeter/planmeter/store"
)

// maxRecordAttempts bounds the retry loop around the conditional increment.
// A conflict is re-classified against fresh state on the next iteration, so
// the loop only spins while concurrent subscription writes keep landing.
const maxRecordAttempts = 3

// Store is the subset of persistence operations usage accounting depends on.
type Store interface {
	User(ctx context.Context, id string) (*store.User, error)
	Permission(ctx context.Context, id string) (*store.Permission, error)
	Plan(ctx context.Context, id string) (*store.Plan, error)
	IncrementUsage(ctx context.Context, userID, permissionID string, limit int64) error
}

// Service is the usage accountant. It is the sole place counters change
// upward.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService returns a usage accountant over the given store. A nil logger
// disables logging.
func NewService(s Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: s, log: log}
}

// Record accounts one call against the user's counter for the permission.
//
// The increment is applied as a single conditional read-modify-write on the
// user document: concurrent Record calls for the same user and permission
// lose no increments, and no interleaving pushes a counter past the plan's
// ceiling. Errors: ErrRoleNotEligible, ErrNotSubscribed,
// ErrPermissionNotInPlan, ErrQuotaExceeded, plus store identifier and
// not-found failures.
func (s *Service) Record(ctx context.Context, userID, permissionID string) error {
	userID, err := store.ParseID(userID)
	if err != nil {
		return err
	}
	permissionID, err = store.ParseID(permissionID)
	if err != nil {
		return err
	}

	// The permission must exist independently of the user's counter table.
	if _, err := s.store.Permission(ctx, permissionID); err != nil {
		return err
	}

	for attempt := 0; attempt < maxRecordAttempts; attempt++ {
		current, limit, err := s.counterState(ctx, userID, permissionID)
		if err != nil {
			return err
		}
		if current >= limit {
			return errors.Join(ErrQuotaExceeded,
				fmt.Errorf("user %s, permission %s: %d of %d calls used", userID, permissionID, current, limit))
		}

		err = s.store.IncrementUsage(ctx, userID, permissionID, limit)
		switch {
		case err == nil:
			s.log.DebugContext(ctx, "usage recorded",
				slog.String("user_id", userID),
				slog.String("permission_id", permissionID))
			return nil
		case errors.Is(err, store.ErrConflict):
			// Either the quota filled up or a concurrent subscription write
			// replaced the counter table; the next iteration re-reads and
			// classifies.
			continue
		default:
			return err
		}
	}

	return errors.Join(store.ErrUnavailable,
		fmt.Errorf("user %s, permission %s: usage increment contended %d times", userID, permissionID, maxRecordAttempts))
}

// Remaining reports the user's current counter and ceiling for a permission,
// for admission display.
func (s *Service) Remaining(ctx context.Context, userID, permissionID string) (used, limit int64, err error) {
	userID, err = store.ParseID(userID)
	if err != nil {
		return 0, 0, err
	}
	permissionID, err = store.ParseID(permissionID)
	if err != nil {
		return 0, 0, err
	}
	return s.counterState(ctx, userID, permissionID)
}

// counterState loads the user's counter and the subscribed plan's ceiling
// for the permission, enforcing role and tracking restrictions.
func (s *Service) counterState(ctx context.Context, userID, permissionID string) (used, limit int64, err error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if user.Role != store.RoleUser {
		return 0, 0, errors.Join(ErrRoleNotEligible,
			fmt.Errorf("user %s has role %q", userID, user.Role))
	}
	if user.SubscribedPlanID == "" {
		return 0, 0, errors.Join(ErrNotSubscribed, fmt.Errorf("user %s", userID))
	}

	current, tracked := user.CurrentAPIUsage[permissionID]
	if !tracked {
		return 0, 0, errors.Join(ErrPermissionNotInPlan,
			fmt.Errorf("permission %s is not tracked for user %s", permissionID, userID))
	}

	plan, err := s.store.Plan(ctx, user.SubscribedPlanID)
	if err != nil {
		return 0, 0, err
	}
	ceiling, ok := plan.APILimit[permissionID]
	if !ok {
		return 0, 0, errors.Join(ErrPermissionNotInPlan,
			fmt.Errorf("permission %s is not in plan %s", permissionID, plan.ID))
	}

	return current, ceiling, nil
}
