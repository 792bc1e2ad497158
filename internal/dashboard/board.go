// Package dashboard owns the per-user working set and the views derived
// from it. Each store snapshot replaces the working set and every view is
// recomputed from scratch; nothing is patched in place.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// RecentLimit is the number of transactions shown in the recent list.
const RecentLimit = 5

var ErrClosed = errors.New("dashboard closed")

type (
	// View is everything the dashboard page shows for one snapshot.
	View struct {
		Version      uint64
		Totals       analytics.Totals
		Summary      analytics.Summary
		Recent       []core.Transaction
		YTD          analytics.YTD
		TopCategory  *analytics.CategoryTotal
		Breakdown    []analytics.CategoryTotal
		Averages     analytics.Averages
		ClientSorted bool
		UpdatedAt    time.Time
	}

	// FilteredView is the transaction list under a predicate together with
	// the summary of exactly that subset.
	FilteredView struct {
		Version      uint64
		Predicate    analytics.Predicate
		Transactions []core.Transaction
		Summary      analytics.Summary
	}
)

// Seeder fills an empty collection on first access.
type Seeder interface {
	Seed(ctx context.Context, userID string) (int, error)
}

type Board struct {
	adapter *store.Adapter
	seeder  Seeder
	now     func() time.Time
	logger  *slog.Logger

	// ctx bounds every subscription the board opens.
	ctx    context.Context
	cancel context.CancelFunc

	views        *cache.LRUCache[FilteredView]
	cacheManager *cache.Manager

	mu     sync.Mutex
	users  map[string]*userState
	closed bool
}

type userState struct {
	sub        *store.Subscription
	ready      chan struct{}
	readyOnce  sync.Once
	snap       store.Snapshot
	view       View
	err        error
	lastAccess time.Time
}

type Option func(*Board)

// WithSeeder seeds a user's collection when it is empty on first access.
func WithSeeder(s Seeder) Option {
	return func(b *Board) { b.seeder = s }
}

func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.logger = l }
}

// WithViewCache sizes the filtered view cache.
func WithViewCache(size int, ttl time.Duration) Option {
	return func(b *Board) { b.views = cache.NewLRUCache[FilteredView](size, ttl) }
}

func New(adapter *store.Adapter, opts ...Option) *Board {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		adapter: adapter,
		now:     time.Now,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		users:   make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.views == nil {
		b.views = cache.NewLRUCache[FilteredView](256, 5*time.Minute)
	}
	b.logger = b.logger.With("component", "dashboard")
	b.cacheManager = cache.NewManager()
	b.cacheManager.Register(b.views)
	return b
}

// StartCleanup periodically drops expired filtered views.
func (b *Board) StartCleanup(interval time.Duration) {
	b.cacheManager.StartCleanup(interval)
}

// Dashboard returns the view for the user's latest snapshot, subscribing
// on first access.
func (b *Board) Dashboard(ctx context.Context, userID string) (View, error) {
	st, err := b.state(ctx, userID)
	if err != nil {
		return View{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if st.err != nil {
		return View{}, st.err
	}
	return st.view, nil
}

// Snapshot returns the latest snapshot held for the user.
func (b *Board) Snapshot(ctx context.Context, userID string) (store.Snapshot, error) {
	st, err := b.state(ctx, userID)
	if err != nil {
		return store.Snapshot{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if st.err != nil {
		return store.Snapshot{}, st.err
	}
	return st.snap, nil
}

// Transactions applies p to the latest snapshot. Results are cached per
// snapshot version and predicate.
func (b *Board) Transactions(ctx context.Context, userID string, p analytics.Predicate) (FilteredView, error) {
	snap, err := b.Snapshot(ctx, userID)
	if err != nil {
		return FilteredView{}, err
	}

	key := viewKey(userID, snap.Version, p)
	if v, ok := b.views.Get(key); ok {
		return v, nil
	}

	subset := analytics.Filter(snap.Transactions, p)
	v := FilteredView{
		Version:      snap.Version,
		Predicate:    p,
		Transactions: subset,
		Summary:      analytics.Summarize(subset),
	}
	b.views.Set(key, v)
	return v, nil
}

// Analytics holds the figures of the analytics page for one year.
type Analytics struct {
	Version     uint64
	YTD         analytics.YTD
	TopCategory *analytics.CategoryTotal
	Breakdown   []analytics.CategoryTotal
	Averages    analytics.Averages
}

// Analytics computes year-to-date figures for year over the latest
// snapshot. Top category, breakdown and averages cover the whole
// collection.
func (b *Board) Analytics(ctx context.Context, userID string, year int) (Analytics, error) {
	snap, err := b.Snapshot(ctx, userID)
	if err != nil {
		return Analytics{}, err
	}
	a := Analytics{
		Version:   snap.Version,
		YTD:       analytics.YearToDate(snap.Transactions, year),
		Breakdown: analytics.CategoryBreakdown(snap.Transactions),
		Averages:  analytics.MonthlyAverages(snap.Transactions),
	}
	if top, ok := analytics.TopCategory(snap.Transactions); ok {
		a.TopCategory = &top
	}
	return a, nil
}

// Forget drops the user's working set and cancels its subscription.
func (b *Board) Forget(userID string) {
	b.mu.Lock()
	st, ok := b.users[userID]
	delete(b.users, userID)
	b.mu.Unlock()

	if ok && st.sub != nil {
		st.sub.Cancel()
	}
	b.views.DeletePrefix(userPrefix(userID))
}

// EvictIdle forgets users not accessed within maxIdle and returns how many
// were dropped.
func (b *Board) EvictIdle(maxIdle time.Duration) int {
	cutoff := b.now().Add(-maxIdle)

	b.mu.Lock()
	var idle []string
	for id, st := range b.users {
		if st.lastAccess.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	b.mu.Unlock()

	for _, id := range idle {
		b.Forget(id)
	}
	return len(idle)
}

// Users returns the number of users with a live working set.
func (b *Board) Users() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users)
}

// Close cancels every subscription and stops cache cleanup.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	users := b.users
	b.users = make(map[string]*userState)
	b.mu.Unlock()

	for _, st := range users {
		if st.sub != nil {
			st.sub.Cancel()
		}
	}
	b.cancel()
	b.cacheManager.Stop()
}

// state returns the user's state once its first snapshot has arrived.
func (b *Board) state(ctx context.Context, userID string) (*userState, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	st, ok := b.users[userID]
	if ok {
		st.lastAccess = b.now()
		b.mu.Unlock()
		return b.await(ctx, st)
	}
	st = &userState{ready: make(chan struct{}), lastAccess: b.now()}
	b.users[userID] = st
	b.mu.Unlock()

	if err := b.open(ctx, userID, st); err != nil {
		b.mu.Lock()
		if b.users[userID] == st {
			delete(b.users, userID)
		}
		st.err = err
		b.mu.Unlock()
		st.readyOnce.Do(func() { close(st.ready) })
		return nil, err
	}
	return b.await(ctx, st)
}

func (b *Board) await(ctx context.Context, st *userState) (*userState, error) {
	select {
	case <-st.ready:
		return st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Board) open(ctx context.Context, userID string, st *userState) error {
	if b.seeder != nil {
		if err := b.seedIfEmpty(ctx, userID); err != nil {
			b.logger.WarnContext(ctx, "Demo seeding failed", "user_id", userID, "error", err)
		}
	}

	sub, err := b.adapter.Subscribe(b.ctx, userID, func(snap store.Snapshot, err error) {
		b.apply(userID, st, snap, err)
	})
	if err != nil {
		return fmt.Errorf("subscribe to transactions: %w", err)
	}

	b.mu.Lock()
	st.sub = sub
	stale := b.closed || b.users[userID] != st
	b.mu.Unlock()

	// Forgotten or closed while subscribing.
	if stale {
		sub.Cancel()
	}
	return nil
}

func (b *Board) seedIfEmpty(ctx context.Context, userID string) error {
	snap, err := b.adapter.List(ctx, userID)
	if err != nil {
		return err
	}
	if len(snap.Transactions) > 0 {
		return nil
	}
	_, err = b.seeder.Seed(ctx, userID)
	return err
}

// apply installs a snapshot. A failed snapshot keeps the previous working
// set out of reach until the next successful one.
func (b *Board) apply(userID string, st *userState, snap store.Snapshot, err error) {
	b.mu.Lock()
	if err != nil {
		st.err = err
	} else if snap.Version >= st.snap.Version {
		st.err = nil
		st.snap = snap
		st.view = Compute(snap, b.now())
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("Snapshot failed", "user_id", userID, "error", err)
	} else {
		b.views.DeletePrefix(userPrefix(userID))
		b.logger.Debug("Snapshot applied", "user_id", userID, "version", snap.Version, "transactions", len(snap.Transactions))
	}
	st.readyOnce.Do(func() { close(st.ready) })
}

// Compute derives the dashboard view of a snapshot. now selects the year
// of the year-to-date figures.
func Compute(snap store.Snapshot, now time.Time) View {
	ts := snap.Transactions
	summary := analytics.Summarize(ts)
	v := View{
		Version:      snap.Version,
		Totals:       summary.Totals,
		Summary:      summary,
		Recent:       ts[:min(RecentLimit, len(ts))],
		YTD:          analytics.CurrentYearToDate(ts, now),
		Breakdown:    analytics.CategoryBreakdown(ts),
		Averages:     analytics.MonthlyAverages(ts),
		ClientSorted: snap.ClientSorted,
		UpdatedAt:    snap.TakenAt,
	}
	if top, ok := analytics.TopCategory(ts); ok {
		v.TopCategory = &top
	}
	return v
}

func userPrefix(userID string) string { return userID + "\x00" }

func viewKey(userID string, version uint64, p analytics.Predicate) string {
	return fmt.Sprintf("%s%d\x00%s", userPrefix(userID), version, p.Key())
}
