package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
)

// Snapshot is a complete replacement of a user's collection. Consumers
// must treat Transactions as read-only.
type Snapshot struct {
	UserID       string
	Version      uint64
	Transactions []core.Transaction
	// ClientSorted is set when the backend could not order the listing and
	// the adapter sorted it instead.
	ClientSorted bool
	TakenAt      time.Time
}

// Listener receives every snapshot of a subscription, or the error that
// prevented one from being taken.
type Listener func(snap Snapshot, err error)

// Adapter is the single entry point for reads and writes of transaction
// collections. Every successful write triggers a fresh snapshot for the
// subscribers of that user.
type Adapter struct {
	repo    Repository
	logger  *slog.Logger
	version atomic.Uint64

	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
	// userLocks keep one user's snapshot versions and delivery order
	// aligned without blocking other users.
	userLocks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewAdapter(repo Repository, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		repo:   repo,
		logger: logger.With("component", "store"),
		subs:      make(map[string]map[uint64]*Subscription),
		userLocks: make(map[string]*userLock),
	}
}

// Repository exposes the underlying backend.
func (a *Adapter) Repository() Repository { return a.repo }

// List takes a one-shot snapshot ordered by date descending. When the
// backend reports ErrOrderingUnsupported the listing is fetched unordered
// and sorted here; the resulting order is identical.
func (a *Adapter) List(ctx context.Context, userID string) (Snapshot, error) {
	ts, err := a.repo.ListOrdered(ctx, userID)
	clientSorted := false
	if errors.Is(err, ErrOrderingUnsupported) {
		a.logger.WarnContext(ctx, "Ordered listing unavailable, sorting client-side", "user_id", userID)
		ts, err = a.repo.ListUnordered(ctx, userID)
		if err == nil {
			SortByDateDesc(ts)
			clientSorted = true
		}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("list transactions: %w", err)
	}
	return Snapshot{
		UserID:       userID,
		Version:      a.version.Add(1),
		Transactions: ts,
		ClientSorted: clientSorted,
		TakenAt:      time.Now(),
	}, nil
}

func (a *Adapter) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return a.repo.Get(ctx, userID, id)
}

func (a *Adapter) Create(ctx context.Context, userID string, d core.Draft) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	id, err := a.repo.Create(ctx, userID, d)
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	a.Refresh(ctx, userID)
	return id, nil
}

// Update replaces every editable field of the transaction.
func (a *Adapter) Update(ctx context.Context, userID, id string, d core.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := a.repo.Update(ctx, userID, id, d); err != nil {
		return fmt.Errorf("update transaction %s: %w", id, err)
	}
	a.Refresh(ctx, userID)
	return nil
}

func (a *Adapter) Delete(ctx context.Context, userID, id string) error {
	if err := a.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	a.Refresh(ctx, userID)
	return nil
}

// Refresh takes a new snapshot and hands it to every subscriber of userID.
// It is a no-op when nobody is subscribed.
func (a *Adapter) Refresh(ctx context.Context, userID string) {
	defer a.lockUser(userID)()

	subs := a.subscribers(userID)
	if len(subs) == 0 {
		return
	}
	snap, err := a.List(context.WithoutCancel(ctx), userID)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to refresh snapshot", "user_id", userID, "error", err)
	}
	for _, s := range subs {
		s.offer(update{snap: snap, err: err})
	}
}

// Subscribe registers fn for userID and delivers the current snapshot
// followed by one snapshot per change. Deliveries for one subscription are
// sequential; if fn falls behind, intermediate snapshots are dropped and
// only the latest is delivered. The subscription ends when Cancel is
// called or ctx is done.
func (a *Adapter) Subscribe(ctx context.Context, userID string, fn Listener) (*Subscription, error) {
	defer a.lockUser(userID)()

	first, err := a.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.nextID++
	s := &Subscription{
		adapter: a,
		userID:  userID,
		id:      a.nextID,
		fn:      fn,
		pending: make(chan update, 1),
		done:    make(chan struct{}),
	}
	if a.subs[userID] == nil {
		a.subs[userID] = make(map[uint64]*Subscription)
	}
	a.subs[userID][s.id] = s
	a.mu.Unlock()

	s.offer(update{snap: first})
	go s.run(ctx)

	a.logger.DebugContext(ctx, "Subscription registered", "user_id", userID, "subscription_id", s.id)
	return s, nil
}

// lockUser serializes refreshes of one user and returns the unlock func.
func (a *Adapter) lockUser(userID string) func() {
	a.mu.Lock()
	l := a.userLocks[userID]
	if l == nil {
		l = &userLock{}
		a.userLocks[userID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(a.userLocks, userID)
		}
		a.mu.Unlock()
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (a *Adapter) Subscribers(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs[userID])
}

func (a *Adapter) subscribers(userID string) []*Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Subscription, 0, len(a.subs[userID]))
	for _, s := range a.subs[userID] {
		out = append(out, s)
	}
	return out
}

func (a *Adapter) unregister(s *Subscription) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.subs[s.userID], s.id)
	if len(a.subs[s.userID]) == 0 {
		delete(a.subs, s.userID)
	}
}

type update struct {
	snap Snapshot
	err  error
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	adapter *Adapter
	userID  string
	id      uint64
	fn      Listener

	pending chan update
	done    chan struct{}
	once    sync.Once
}

// Cancel stops deliveries. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.adapter.unregister(s)
		close(s.done)
	})
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// offer replaces any undelivered update with u.
func (s *Subscription) offer(u update) {
	for {
		select {
		case s.pending <- u:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer s.Cancel()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case u := <-s.pending:
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(u.snap, u.err)
		}
	}
}
