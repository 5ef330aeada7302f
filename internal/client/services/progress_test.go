package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skyrun-game/skyrun/internal/client/gateway"
	"github.com/skyrun-game/skyrun/internal/client/repositories/prefs"
	"github.com/skyrun-game/skyrun/internal/common"
)

const user = "alice@x.com"

func newReconciler(t *testing.T, fg *fakeGateway, store prefs.Repository) *ProgressReconciler {
	t.Helper()
	return NewProgressReconciler(fg, testProbe(fg), store, testLogger())
}

func cachedScore(t *testing.T, store prefs.Repository, level string) int {
	t.Helper()
	n, err := store.GetInt(context.Background(), prefs.BestScoreKey(user, level), 0)
	require.NoError(t, err)
	return n
}

func TestMergeRemoteAhead(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 5))

	fg := &fakeGateway{ProgressRet: map[string]int{"Level1": 8}}
	r := newReconciler(t, fg, store)

	r.OnLogin(ctx, user)

	require.Equal(t, 8, cachedScore(t, store, "Level1"), "local raised to remote")
	require.Equal(t, 0, fg.UpdateCalls, "nothing to push when remote is ahead")
}

func TestMergeLocalAheadSchedulesPush(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 8))

	fg := &fakeGateway{ProgressRet: map[string]int{"Level1": 5}}
	r := newReconciler(t, fg, store)

	r.OnLogin(ctx, user)

	require.Equal(t, 8, cachedScore(t, store, "Level1"), "local never regresses")
	require.Equal(t, 1, fg.UpdateCalls)
	require.Equal(t, map[string]int{"Level1": 8}, fg.LastUpdate)
}

func TestMergeLevelMissingRemotelyIsPushed(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level2"), 3))

	fg := &fakeGateway{ProgressRet: map[string]int{"Level1": 5}}
	r := newReconciler(t, fg, store)

	r.OnLogin(ctx, user)

	require.Equal(t, 5, cachedScore(t, store, "Level1"))
	require.Equal(t, map[string]int{"Level2": 3}, fg.LastUpdate)
}

func TestMergeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 5))

	fg := &fakeGateway{ProgressRet: map[string]int{"Level1": 8, "Level2": 2}}
	r := newReconciler(t, fg, store)

	r.OnLogin(ctx, user)
	level1, level2 := cachedScore(t, store, "Level1"), cachedScore(t, store, "Level2")
	updates := fg.UpdateCalls

	// Same remote snapshot again: no local change, no new push.
	r.OnLogin(ctx, user)
	require.Equal(t, level1, cachedScore(t, store, "Level1"))
	require.Equal(t, level2, cachedScore(t, store, "Level2"))
	require.Equal(t, updates, fg.UpdateCalls)
}

func TestMergeOrderIndependent(t *testing.T) {
	ctx := context.Background()
	first := map[string]int{"LevelA": 5, "LevelB": 2}
	second := map[string]int{"LevelA": 3, "LevelB": 9}

	run := func(snapshots ...map[string]int) (int, int) {
		store := setupPrefs(t)
		fg := &fakeGateway{}
		r := newReconciler(t, fg, store)
		for _, snap := range snapshots {
			fg.ProgressRet = snap
			r.OnLogin(ctx, user)
		}
		a, err := store.GetInt(ctx, prefs.BestScoreKey(user, "LevelA"), 0)
		require.NoError(t, err)
		b, err := store.GetInt(ctx, prefs.BestScoreKey(user, "LevelB"), 0)
		require.NoError(t, err)
		return a, b
	}

	a1, b1 := run(first, second)
	a2, b2 := run(second, first)

	require.Equal(t, 5, a1)
	require.Equal(t, 9, b1)
	require.Equal(t, a1, a2)
	require.Equal(t, b1, b2)
}

func TestReconcileUnreachableUsesEmptyRemote(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 7))

	fg := &fakeGateway{PingErr: common.ErrTransport}
	r := newReconciler(t, fg, store)

	r.OnLogin(ctx, user)

	require.Equal(t, 7, cachedScore(t, store, "Level1"))
	require.Equal(t, 0, fg.ProgressCalls)
	require.Equal(t, 0, fg.UpdateCalls, "no push while unreachable")
}

func TestFailedPushRecomputedNextTime(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 9))

	fg := &fakeGateway{UpdateErr: &common.DomainError{Message: "server error"}}
	r := newReconciler(t, fg, store)

	r.OnLogin(ctx, user)
	require.Equal(t, 1, fg.UpdateCalls)
	require.Equal(t, 9, cachedScore(t, store, "Level1"), "local state untouched by push failure")

	// Next reconciliation recomputes the same batch from the cache.
	fg.UpdateErr = nil
	r.OnLogin(ctx, user)
	require.Equal(t, 2, fg.UpdateCalls)
	require.Equal(t, map[string]int{"Level1": 9}, fg.LastUpdate)
}

func TestOnScoreObserved(t *testing.T) {
	ctx := context.Background()

	t.Run("new best is cached and pushed", func(t *testing.T) {
		store := setupPrefs(t)
		fg := &fakeGateway{}
		r := newReconciler(t, fg, store)

		require.NoError(t, r.OnScoreObserved(ctx, user, "Level1", 12))
		require.Equal(t, 12, cachedScore(t, store, "Level1"))
		require.Equal(t, map[string]int{"Level1": 12}, fg.LastUpdate)
	})

	t.Run("lower score leaves the best alone", func(t *testing.T) {
		store := setupPrefs(t)
		require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 20))

		r := newReconciler(t, &fakeGateway{}, store)
		require.NoError(t, r.OnScoreObserved(ctx, user, "Level1", 12))
		require.Equal(t, 20, cachedScore(t, store, "Level1"))
	})

	t.Run("negative score rejected", func(t *testing.T) {
		store := setupPrefs(t)
		r := newReconciler(t, &fakeGateway{}, store)

		err := r.OnScoreObserved(ctx, user, "Level1", -1)
		require.ErrorIs(t, err, common.ErrValidation)
		require.Equal(t, 0, cachedScore(t, store, "Level1"))
	})

	t.Run("missing identifiers rejected", func(t *testing.T) {
		r := newReconciler(t, &fakeGateway{}, setupPrefs(t))
		require.ErrorIs(t, r.OnScoreObserved(ctx, "", "Level1", 1), common.ErrValidation)
		require.ErrorIs(t, r.OnScoreObserved(ctx, user, "", 1), common.ErrValidation)
	})
}

func TestBestScoreReadsCacheOnly(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level2"), 4))

	fg := &fakeGateway{ProgressRet: map[string]int{"Level2": 100}}
	r := newReconciler(t, fg, store)

	n, err := r.BestScore(ctx, user, "Level2")
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, 0, fg.ProgressCalls)
}

func TestSubscription(t *testing.T) {
	ctx := context.Background()
	store := setupPrefs(t)
	require.NoError(t, store.SetInt(ctx, prefs.BestScoreKey(user, "Level1"), 5))

	fg := &fakeGateway{ProgressRet: map[string]int{"Level1": 8}}
	r := newReconciler(t, fg, store)

	var mu sync.Mutex
	var got []int
	sub := r.Subscribe(func(levelID string, score int) {
		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, "Level1", levelID)
		got = append(got, score)
	})

	r.OnLogin(ctx, user)
	mu.Lock()
	require.Equal(t, []int{8}, got)
	mu.Unlock()

	// After Cancel the handler must not fire again.
	sub.Cancel()
	sub.Cancel() // idempotent

	fg.ProgressRet = map[string]int{"Level1": 11}
	r.OnLogin(ctx, user)
	mu.Lock()
	require.Equal(t, []int{8}, got)
	mu.Unlock()
}

var _ gateway.Gateway = (*fakeGateway)(nil)
