package subscription_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/store/memory"
	"github.com/planmeter/planmeter/svc/subscription"
)

type fixture struct {
	store *memory.Store
	svc   *subscription.Service
	user  *store.User
	perms []*store.Permission
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	p1, err := st.CreatePermission(ctx, &store.Permission{Name: "one", Endpoint: store.EndpointRandom1})
	require.NoError(t, err)
	p2, err := st.CreatePermission(ctx, &store.Permission{Name: "two", Endpoint: store.EndpointRandom2})
	require.NoError(t, err)

	user, err := st.CreateUser(ctx, &store.User{Username: "alice", Role: store.RoleUser})
	require.NoError(t, err)

	return &fixture{
		store: st,
		svc:   subscription.NewService(st, nil),
		user:  user,
		perms: []*store.Permission{p1, p2},
	}
}

func (f *fixture) createPlan(t *testing.T, name string, apilimit map[string]int64) *store.Plan {
	t.Helper()
	plan, err := f.store.CreatePlan(context.Background(), &store.Plan{Name: name, APILimit: apilimit})
	require.NoError(t, err)
	return plan
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	t.Run("initializes a zero counter per limit key", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10, f.perms[1].ID: 5})

		user, err := f.svc.Subscribe(context.Background(), f.user.ID, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.ID, user.SubscribedPlanID)
		assert.Equal(t, map[string]int64{f.perms[0].ID: 0, f.perms[1].ID: 0}, user.CurrentAPIUsage)
	})

	t.Run("resubscribing discards accrued usage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		basic := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})
		pro := f.createPlan(t, "pro", map[string]int64{f.perms[0].ID: 100, f.perms[1].ID: 50})

		_, err := f.svc.Subscribe(ctx, f.user.ID, basic.ID)
		require.NoError(t, err)
		require.NoError(t, f.store.IncrementUsage(ctx, f.user.ID, f.perms[0].ID, 10))

		user, err := f.svc.Subscribe(ctx, f.user.ID, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{f.perms[0].ID: 0, f.perms[1].ID: 0}, user.CurrentAPIUsage)
	})

	t.Run("same-plan resubscribe resets counters", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})

		_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)
		require.NoError(t, f.store.IncrementUsage(ctx, f.user.ID, f.perms[0].ID, 10))

		user, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), user.CurrentAPIUsage[f.perms[0].ID])
	})

	t.Run("admins cannot subscribe", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		admin, err := f.store.CreateUser(ctx, &store.User{Username: "root", Role: store.RoleAdmin})
		require.NoError(t, err)
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})

		_, err = f.svc.Subscribe(ctx, admin.ID, plan.ID)
		require.ErrorIs(t, err, subscription.ErrRoleNotEligible)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.Subscribe(context.Background(), f.user.ID, store.NewID())
		require.ErrorIs(t, err, store.ErrPlanNotFound)
	})

	t.Run("malformed user id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})

		_, err := f.svc.Subscribe(context.Background(), "oops", plan.ID)
		require.ErrorIs(t, err, store.ErrInvalidID)
	})
}

func TestChangePlan(t *testing.T) {
	t.Parallel()

	t.Run("different plan resets counters and ignores the proposed table", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		basic := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})
		pro := f.createPlan(t, "pro", map[string]int64{f.perms[0].ID: 100, f.perms[1].ID: 50})

		_, err := f.svc.Subscribe(ctx, f.user.ID, basic.ID)
		require.NoError(t, err)

		user, err := f.svc.ChangePlan(ctx, f.user.ID, pro.ID, map[string]int64{f.perms[0].ID: 7})
		require.NoError(t, err)
		assert.Equal(t, pro.ID, user.SubscribedPlanID)
		assert.Equal(t, map[string]int64{f.perms[0].ID: 0, f.perms[1].ID: 0}, user.CurrentAPIUsage)
	})

	t.Run("same plan replaces counters wholesale", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10, f.perms[1].ID: 5})

		_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)

		user, err := f.svc.ChangePlan(ctx, f.user.ID, plan.ID, map[string]int64{
			f.perms[0].ID: 3,
			f.perms[1].ID: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), user.CurrentAPIUsage[f.perms[0].ID])
		assert.Equal(t, int64(1), user.CurrentAPIUsage[f.perms[1].ID])
	})

	t.Run("same plan rejects a key-set mismatch", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10, f.perms[1].ID: 5})

		_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)

		_, err = f.svc.ChangePlan(ctx, f.user.ID, plan.ID, map[string]int64{f.perms[0].ID: 3})
		require.ErrorIs(t, err, subscription.ErrUsageKeySetMismatch)

		_, err = f.svc.ChangePlan(ctx, f.user.ID, plan.ID, map[string]int64{
			f.perms[0].ID: 3,
			store.NewID(): 1,
		})
		require.ErrorIs(t, err, subscription.ErrUsageKeySetMismatch)
	})

	t.Run("same plan rejects a missing proposed table", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})

		_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)

		_, err = f.svc.ChangePlan(ctx, f.user.ID, plan.ID, nil)
		require.ErrorIs(t, err, subscription.ErrUsageKeySetMismatch)
	})

	t.Run("same plan rejects negative counters", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})

		_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)

		_, err = f.svc.ChangePlan(ctx, f.user.ID, plan.ID, map[string]int64{f.perms[0].ID: -1})
		require.ErrorIs(t, err, subscription.ErrInvalidUsageValue)
	})
}

func TestPlanDetails(t *testing.T) {
	t.Parallel()

	t.Run("joins permission metadata with ceilings", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10, f.perms[1].ID: 5})

		_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
		require.NoError(t, err)

		details, err := f.svc.PlanDetails(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.ID, details.PlanID)
		assert.Equal(t, "alice", details.Username)
		require.Len(t, details.Entries, 2)

		limits := make(map[string]int64)
		for _, e := range details.Entries {
			limits[e.Permission.ID] = e.Limit
		}
		assert.Equal(t, int64(10), limits[f.perms[0].ID])
		assert.Equal(t, int64(5), limits[f.perms[1].ID])
	})

	t.Run("unsubscribed user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.PlanDetails(context.Background(), f.user.ID)
		require.ErrorIs(t, err, subscription.ErrNotSubscribed)
	})
}

func TestUsageStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	plan := f.createPlan(t, "basic", map[string]int64{f.perms[0].ID: 10})

	_, err := f.svc.Subscribe(ctx, f.user.ID, plan.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.IncrementUsage(ctx, f.user.ID, f.perms[0].ID, 10))
	require.NoError(t, f.store.IncrementUsage(ctx, f.user.ID, f.perms[0].ID, 10))

	stats, err := f.svc.UsageStats(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, stats.Entries, 1)
	assert.Equal(t, int64(2), stats.Entries[0].Used)
	assert.Equal(t, int64(10), stats.Entries[0].Limit)
}
