package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/skyrun-game/skyrun/internal/client/connectivity"
	"github.com/skyrun-game/skyrun/internal/client/gateway"
	"github.com/skyrun-game/skyrun/internal/client/repositories/prefs"
	"github.com/skyrun-game/skyrun/internal/common"
	"github.com/skyrun-game/skyrun/internal/logging"
)

// BestScoreHandler is notified when a merge raises a locally cached score.
type BestScoreHandler func(levelID string, score int)

// Subscription is a cancellable handle to a BestScoreHandler registration.
// Cancel is idempotent; after it returns the handler will not fire again.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// ProgressReconciler keeps the per-level best-score record convergent
// between the local cache and the remote store. The merge is a pointwise
// maximum, so replaying it is idempotent and never regresses a score.
//
// Sync failures are logged and swallowed: synchronization is best-effort
// and never fails a login or a gameplay action. Reconciliations are
// mutually exclusive per user id.
type ProgressReconciler struct {
	gw     gateway.Gateway
	probe  *connectivity.Probe
	prefs  prefs.Repository
	logger logging.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]BestScoreHandler
	nextSub int
}

func NewProgressReconciler(gw gateway.Gateway, probe *connectivity.Probe, store prefs.Repository, logger logging.Logger) *ProgressReconciler {
	return &ProgressReconciler{
		gw:     gw,
		probe:  probe,
		prefs:  store,
		logger: logger,
		locks:  map[string]*sync.Mutex{},
		subs:   map[int]BestScoreHandler{},
	}
}

// Subscribe registers fn for best-score updates. The returned handle must
// be cancelled when the subscriber goes away.
func (r *ProgressReconciler) Subscribe(fn BestScoreHandler) *Subscription {
	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subsMu.Unlock()

	return &Subscription{cancel: func() {
		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}}
}

func (r *ProgressReconciler) notify(levelID string, score int) {
	r.subsMu.Lock()
	handlers := make([]BestScoreHandler, 0, len(r.subs))
	for _, fn := range r.subs {
		handlers = append(handlers, fn)
	}
	r.subsMu.Unlock()

	for _, fn := range handlers {
		fn(levelID, score)
	}
}

func (r *ProgressReconciler) userLock(userID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	mu, ok := r.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[userID] = mu
	}
	return mu
}

// OnLogin runs a full reconciliation for userID. Never returns sync
// failures; they are logged.
func (r *ProgressReconciler) OnLogin(ctx context.Context, userID string) {
	r.reconcile(ctx, userID)
}

// OnScoreObserved records a freshly finished level: the local cache is
// raised when score beats it, then a reconciliation runs. Negative scores
// are rejected before the cache is touched.
func (r *ProgressReconciler) OnScoreObserved(ctx context.Context, userID, levelID string, score int) error {
	if score < 0 {
		return fmt.Errorf("%w: score must be non-negative", common.ErrValidation)
	}
	if userID == "" || levelID == "" {
		return fmt.Errorf("%w: user and level are required", common.ErrValidation)
	}

	mu := r.userLock(userID)
	mu.Lock()
	key := prefs.BestScoreKey(userID, levelID)
	current, err := r.prefs.GetInt(ctx, key, 0)
	if err != nil {
		mu.Unlock()
		return err
	}
	if score > current {
		if err := r.prefs.SetInt(ctx, key, score); err != nil {
			mu.Unlock()
			return err
		}
	}
	mu.Unlock()

	r.reconcile(ctx, userID)
	return nil
}

// BestScore reads the locally cached best for one level. Never hits the
// network.
func (r *ProgressReconciler) BestScore(ctx context.Context, userID, levelID string) (int, error) {
	return r.prefs.GetInt(ctx, prefs.BestScoreKey(userID, levelID), 0)
}

// localScores loads the user's cached {level -> best} map.
func (r *ProgressReconciler) localScores(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.prefs.ListByPrefix(ctx, prefs.BestScorePrefix(userID))
	if err != nil {
		return nil, err
	}

	scores := map[string]int{}
	for key, value := range rows {
		level, ok := parseBestScoreKey(key, userID)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			r.logger.Warn(ctx, "skipping malformed cached score", "key", key)
			continue
		}
		scores[level] = n
	}
	return scores, nil
}

func parseBestScoreKey(key, userID string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefs.BestScorePrefix(userID))
	if !ok {
		return "", false
	}
	level, ok := strings.CutSuffix(rest, "_BestScore")
	if !ok || level == "" {
		return "", false
	}
	return level, true
}

// reconcile merges local and remote best scores with a pointwise maximum
// and pushes anything the remote is missing. Unreachable remote is treated
// as an empty map: local state still settles and the push simply waits for
// the next reconciliation.
func (r *ProgressReconciler) reconcile(ctx context.Context, userID string) {
	mu := r.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	local, err := r.localScores(ctx, userID)
	if err != nil {
		r.logger.Error(ctx, "sync: reading local scores", "user", userID, "error", err)
		return
	}

	remote := map[string]int{}
	online := r.probe.Check(ctx)
	if online {
		m, err := r.gw.GetProgress(ctx, userID)
		if err != nil {
			r.logger.Warn(ctx, "sync: fetching remote scores", "user", userID, "error", err)
			if errors.Is(err, common.ErrTransport) {
				r.probe.Invalidate()
			}
			online = false
		} else {
			remote = m
		}
	}

	levels := map[string]struct{}{}
	for l := range local {
		levels[l] = struct{}{}
	}
	for l := range remote {
		levels[l] = struct{}{}
	}

	push := map[string]int{}
	for level := range levels {
		merged := max(local[level], remote[level])
		if merged > local[level] {
			if err := r.prefs.SetInt(ctx, prefs.BestScoreKey(userID, level), merged); err != nil {
				r.logger.Error(ctx, "sync: raising local score", "user", userID, "level", level, "error", err)
				continue
			}
			r.notify(level, merged)
		}
		if rv, ok := remote[level]; !ok || merged > rv {
			push[level] = merged
		}
	}

	if len(push) == 0 || !online {
		return
	}

	// One update call for the whole batch, with a short retry budget for
	// transport blips. A batch lost here is recomputed by the next
	// reconciliation, so it is dropped rather than queued.
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.gw.UpdateProgress(ctx, userID, push); err != nil {
			if errors.Is(err, common.ErrTransport) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		r.logger.Warn(ctx, "sync: push failed, will retry on next reconciliation",
			"user", userID, "levels", len(push), "error", err)
		if errors.Is(err, common.ErrTransport) {
			r.probe.Invalidate()
		}
		return
	}

	r.logger.Info(ctx, "sync: pushed best scores", "user", userID, "levels", len(push))
}
