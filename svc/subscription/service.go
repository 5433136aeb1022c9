package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/planmeter/planmeter/store"
)

// maxReplaceAttempts bounds the optimistic-concurrency retry loop around
// counter reinitialization before the failure surfaces as unavailable.
const maxReplaceAttempts = 3

// Store is the subset of persistence operations subscriptions depend on.
type Store interface {
	User(ctx context.Context, id string) (*store.User, error)
	Plan(ctx context.Context, id string) (*store.Plan, error)
	Permission(ctx context.Context, id string) (*store.Permission, error)
	ReplaceSubscription(ctx context.Context, userID, planID string, usage map[string]int64, expectedPlanID string) error
}

// Service transitions users into plans and materializes their per-permission
// usage counters from the plan's limit table.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService returns a subscription service over the given store. A nil
// logger disables logging.
func NewService(s Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: s, log: log}
}

// Subscribe binds the user to the plan and reinitializes the usage counter
// table to zero for every key in the plan's limit table, discarding any
// prior counters. The counter replacement is a single atomic store update
// keyed on the previously observed subscription, retried a bounded number of
// times when a concurrent writer invalidates the snapshot.
func (s *Service) Subscribe(ctx context.Context, userID, planID string) (*store.User, error) {
	userID, err := store.ParseID(userID)
	if err != nil {
		return nil, err
	}
	planID, err = store.ParseID(planID)
	if err != nil {
		return nil, err
	}

	plan, err := s.store.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}

	updated, err := s.replaceCounters(ctx, userID, plan, nil, false)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user subscribed",
		slog.String("user_id", userID),
		slog.String("plan_id", planID))
	return updated, nil
}

// ChangePlan switches the user's plan or corrects their usage counters.
//
// When planID equals the user's current plan, this is a usage-table
// replacement: proposedUsage must carry exactly the same key set as the
// current counters and replaces them wholesale. When planID differs, the
// call behaves as Subscribe (full reinitialization to zero) and
// proposedUsage is ignored: limits differ by plan, so a plan change always
// resets usage.
func (s *Service) ChangePlan(ctx context.Context, userID, planID string, proposedUsage map[string]int64) (*store.User, error) {
	userID, err := store.ParseID(userID)
	if err != nil {
		return nil, err
	}
	planID, err = store.ParseID(planID)
	if err != nil {
		return nil, err
	}

	plan, err := s.store.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}

	updated, err := s.replaceCounters(ctx, userID, plan, proposedUsage, true)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user plan updated",
		slog.String("user_id", userID),
		slog.String("plan_id", planID))
	return updated, nil
}

// replaceCounters loads the user, decides between reset and correction, and
// applies the counter table through a conditional replace keyed on the
// subscription observed in the same iteration. In correction mode a user
// already on the target plan gets the proposed table (validated against the
// tracked key set); every other combination resets counters to zero. Each
// retry re-reads the user so the decision is made against the state the
// write is conditioned on.
func (s *Service) replaceCounters(ctx context.Context, userID string, plan *store.Plan, proposedUsage map[string]int64, correction bool) (*store.User, error) {
	for attempt := 0; attempt < maxReplaceAttempts; attempt++ {
		user, err := s.store.User(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user.Role != store.RoleUser {
			return nil, errors.Join(ErrRoleNotEligible,
				fmt.Errorf("user %s has role %q", userID, user.Role))
		}

		var usage map[string]int64
		if correction && user.SubscribedPlanID == plan.ID {
			usage, err = correctionTable(user.CurrentAPIUsage, proposedUsage)
			if err != nil {
				return nil, err
			}
		} else {
			usage = zeroTable(plan.APILimit)
		}

		err = s.store.ReplaceSubscription(ctx, userID, plan.ID, usage, user.SubscribedPlanID)
		switch {
		case err == nil:
			updated := user.Clone()
			updated.SubscribedPlanID = plan.ID
			updated.CurrentAPIUsage = usage
			return updated, nil
		case errors.Is(err, store.ErrConflict):
			// A concurrent subscription write invalidated the snapshot;
			// re-read and retry rather than applying a stale table.
			continue
		default:
			return nil, err
		}
	}

	return nil, errors.Join(store.ErrUnavailable,
		fmt.Errorf("user %s: subscription replace contended %d times", userID, maxReplaceAttempts))
}

// zeroTable builds a fresh counter table with a zero for every limit key.
func zeroTable(apilimit map[string]int64) map[string]int64 {
	usage := make(map[string]int64, len(apilimit))
	for permissionID := range apilimit {
		usage[permissionID] = 0
	}
	return usage
}

// correctionTable validates a same-plan usage replacement: the proposed
// table must cover exactly the tracked key set and carry no negative
// counters. No per-key bounds are re-validated against the plan beyond
// key-set equality.
func correctionTable(current, proposed map[string]int64) (map[string]int64, error) {
	if len(proposed) != len(current) {
		return nil, errors.Join(ErrUsageKeySetMismatch,
			fmt.Errorf("proposed table has %d entries, tracking %d", len(proposed), len(current)))
	}

	usage := make(map[string]int64, len(proposed))
	for permissionID, count := range proposed {
		if _, tracked := current[permissionID]; !tracked {
			return nil, errors.Join(ErrUsageKeySetMismatch,
				fmt.Errorf("permission %s is not tracked", permissionID))
		}
		if count < 0 {
			return nil, errors.Join(ErrInvalidUsageValue,
				fmt.Errorf("permission %s: counter %d", permissionID, count))
		}
		usage[permissionID] = count
	}
	return usage, nil
}
