package usage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/store/memory"
	"github.com/planmeter/planmeter/svc/usage"
)

type fixture struct {
	store *memory.Store
	svc   *usage.Service
	user  *store.User
	perm  *store.Permission
	plan  *store.Plan
}

// newFixture provisions a user subscribed to a single-permission plan with
// the given ceiling.
func newFixture(t *testing.T, limit int64) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	perm, err := st.CreatePermission(ctx, &store.Permission{Name: "one", Endpoint: store.EndpointRandom1})
	require.NoError(t, err)
	plan, err := st.CreatePlan(ctx, &store.Plan{Name: "basic", APILimit: map[string]int64{perm.ID: limit}})
	require.NoError(t, err)
	user, err := st.CreateUser(ctx, &store.User{Username: "alice", Role: store.RoleUser})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceSubscription(ctx, user.ID, plan.ID, map[string]int64{perm.ID: 0}, ""))

	return &fixture{
		store: st,
		svc:   usage.NewService(st, nil),
		user:  user,
		perm:  perm,
		plan:  plan,
	}
}

func (f *fixture) counter(t *testing.T) int64 {
	t.Helper()
	user, err := f.store.User(context.Background(), f.user.ID)
	require.NoError(t, err)
	return user.CurrentAPIUsage[f.perm.ID]
}

func TestRecord(t *testing.T) {
	t.Parallel()

	t.Run("increments below the ceiling", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 3)
		ctx := context.Background()

		require.NoError(t, f.svc.Record(ctx, f.user.ID, f.perm.ID))
		require.NoError(t, f.svc.Record(ctx, f.user.ID, f.perm.ID))
		assert.Equal(t, int64(2), f.counter(t))
	})

	t.Run("rejects the call that would pass the ceiling", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)
		ctx := context.Background()

		require.NoError(t, f.svc.Record(ctx, f.user.ID, f.perm.ID))
		require.NoError(t, f.svc.Record(ctx, f.user.ID, f.perm.ID))

		err := f.svc.Record(ctx, f.user.ID, f.perm.ID)
		require.ErrorIs(t, err, usage.ErrQuotaExceeded)
		assert.Equal(t, int64(2), f.counter(t))
	})

	t.Run("admins accrue no usage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)
		ctx := context.Background()
		admin, err := f.store.CreateUser(ctx, &store.User{Username: "root", Role: store.RoleAdmin})
		require.NoError(t, err)

		err = f.svc.Record(ctx, admin.ID, f.perm.ID)
		require.ErrorIs(t, err, usage.ErrRoleNotEligible)
	})

	t.Run("unsubscribed user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)
		ctx := context.Background()
		other, err := f.store.CreateUser(ctx, &store.User{Username: "bob", Role: store.RoleUser})
		require.NoError(t, err)

		err = f.svc.Record(ctx, other.ID, f.perm.ID)
		require.ErrorIs(t, err, usage.ErrNotSubscribed)
	})

	t.Run("permission outside the plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)
		ctx := context.Background()
		stray, err := f.store.CreatePermission(ctx, &store.Permission{Name: "two", Endpoint: store.EndpointRandom2})
		require.NoError(t, err)

		err = f.svc.Record(ctx, f.user.ID, stray.ID)
		require.ErrorIs(t, err, usage.ErrPermissionNotInPlan)
	})

	t.Run("unknown permission", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)

		err := f.svc.Record(context.Background(), f.user.ID, store.NewID())
		require.ErrorIs(t, err, store.ErrPermissionNotFound)
	})

	t.Run("malformed ids", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)

		require.ErrorIs(t, f.svc.Record(context.Background(), "oops", f.perm.ID), store.ErrInvalidID)
		require.ErrorIs(t, f.svc.Record(context.Background(), f.user.ID, "oops"), store.ErrInvalidID)
	})
}

// TestRecordConcurrent hammers a single counter from many goroutines and
// checks that exactly limit increments land: no lost updates, no overrun.
func TestRecordConcurrent(t *testing.T) {
	t.Parallel()

	const (
		limit   = 50
		callers = 100
	)
	f := newFixture(t, limit)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.Record(ctx, f.user.ID, f.perm.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, usage.ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
	assert.Equal(t, callers-limit, rejected)
	assert.Equal(t, int64(limit), f.counter(t))
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)
	ctx := context.Background()

	require.NoError(t, f.svc.Record(ctx, f.user.ID, f.perm.ID))
	require.NoError(t, f.svc.Record(ctx, f.user.ID, f.perm.ID))

	used, limit, err := f.svc.Remaining(ctx, f.user.ID, f.perm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
	assert.Equal(t, int64(5), limit)
}
