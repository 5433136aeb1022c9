package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/store/memory"
)

func TestReplaceSubscriptionCondition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	user, err := st.CreateUser(ctx, &store.User{Username: "alice", Role: store.RoleUser})
	require.NoError(t, err)
	planA, planB := store.NewID(), store.NewID()

	// First write conditions on "no subscription".
	require.NoError(t, st.ReplaceSubscription(ctx, user.ID, planA, map[string]int64{}, ""))

	// A stale expectation is a conflict, not a silent overwrite.
	err = st.ReplaceSubscription(ctx, user.ID, planB, map[string]int64{}, "")
	require.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, st.ReplaceSubscription(ctx, user.ID, planB, map[string]int64{}, planA))

	got, err := st.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, planB, got.SubscribedPlanID)

	err = st.ReplaceSubscription(ctx, store.NewID(), planA, map[string]int64{}, "")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestIncrementUsageCondition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	permID := store.NewID()
	user, err := st.CreateUser(ctx, &store.User{Username: "alice", Role: store.RoleUser})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceSubscription(ctx, user.ID, store.NewID(), map[string]int64{permID: 0}, ""))

	require.NoError(t, st.IncrementUsage(ctx, user.ID, permID, 2))
	require.NoError(t, st.IncrementUsage(ctx, user.ID, permID, 2))

	// At the ceiling the filter misses and nothing is written.
	err = st.IncrementUsage(ctx, user.ID, permID, 2)
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := st.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CurrentAPIUsage[permID])

	// Untracked counters never initialize implicitly.
	err = st.IncrementUsage(ctx, user.ID, store.NewID(), 2)
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	permID := store.NewID()
	user, err := st.CreateUser(ctx, &store.User{Username: "alice", Role: store.RoleUser})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceSubscription(ctx, user.ID, store.NewID(), map[string]int64{permID: 0}, ""))

	snapshot, err := st.User(ctx, user.ID)
	require.NoError(t, err)
	snapshot.CurrentAPIUsage[permID] = 99

	fresh, err := st.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.CurrentAPIUsage[permID])
}
