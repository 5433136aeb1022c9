package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/planmeter/planmeter/store"
)

// PlanEntry pairs a permission with its call ceiling in the subscribed plan.
type PlanEntry struct {
	Permission store.Permission `json:"permission"`
	Limit      int64            `json:"limit"`
}

// PlanDetails describes a user's subscription for display.
type PlanDetails struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	PlanID   string      `json:"plan_id"`
	PlanName string      `json:"plan_name"`
	Entries  []PlanEntry `json:"entries"`
}

// UsageEntry pairs a permission with its live counter and ceiling.
type UsageEntry struct {
	Permission store.Permission `json:"permission"`
	Used       int64            `json:"used"`
	Limit      int64            `json:"limit"`
}

// UsageStats describes a user's live usage for display.
type UsageStats struct {
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	PlanID   string       `json:"plan_id"`
	PlanName string       `json:"plan_name"`
	Entries  []UsageEntry `json:"entries"`
}

// PlanDetails returns the user's subscribed plan joined with permission
// metadata. Fails with ErrNotSubscribed when the user holds no plan.
func (s *Service) PlanDetails(ctx context.Context, userID string) (*PlanDetails, error) {
	user, plan, err := s.subscribedPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	details := &PlanDetails{
		UserID:   user.ID,
		Username: user.Username,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Entries:  make([]PlanEntry, 0, len(plan.APILimit)),
	}
	for permissionID, limit := range plan.APILimit {
		perm, err := s.store.Permission(ctx, permissionID)
		if err != nil {
			return nil, fmt.Errorf("plan %s references permission %s: %w", plan.ID, permissionID, err)
		}
		details.Entries = append(details.Entries, PlanEntry{Permission: *perm, Limit: limit})
	}
	return details, nil
}

// UsageStats returns the user's live counters joined with permission
// metadata and plan ceilings. Fails with ErrNotSubscribed when the user
// holds no plan.
func (s *Service) UsageStats(ctx context.Context, userID string) (*UsageStats, error) {
	user, plan, err := s.subscribedPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{
		UserID:   user.ID,
		Username: user.Username,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Entries:  make([]UsageEntry, 0, len(user.CurrentAPIUsage)),
	}
	for permissionID, used := range user.CurrentAPIUsage {
		perm, err := s.store.Permission(ctx, permissionID)
		if err != nil {
			return nil, fmt.Errorf("user %s tracks permission %s: %w", user.ID, permissionID, err)
		}
		stats.Entries = append(stats.Entries, UsageEntry{
			Permission: *perm,
			Used:       used,
			Limit:      plan.APILimit[permissionID],
		})
	}
	return stats, nil
}

// subscribedPlan resolves the user and their subscribed plan, enforcing the
// "user"-role restriction the subscription model carries.
func (s *Service) subscribedPlan(ctx context.Context, userID string) (*store.User, *store.Plan, error) {
	userID, err := store.ParseID(userID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.store.User(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user.Role != store.RoleUser {
		return nil, nil, errors.Join(ErrRoleNotEligible,
			fmt.Errorf("user %s has role %q", userID, user.Role))
	}
	if user.SubscribedPlanID == "" {
		return nil, nil, errors.Join(ErrNotSubscribed, fmt.Errorf("user %s", userID))
	}

	plan, err := s.store.Plan(ctx, user.SubscribedPlanID)
	if err != nil {
		return nil, nil, err
	}
	return user, plan, nil
}
