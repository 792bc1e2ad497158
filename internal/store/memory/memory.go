// Package memory is an in-process transaction repository used for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Repository struct {
	mu      sync.RWMutex
	byUser  map[string][]core.Transaction
	ordered bool
	now     func() time.Time
}

var _ store.Repository = (*Repository)(nil)

type Option func(*Repository)

// WithoutOrdering makes ListOrdered fail with store.ErrOrderingUnsupported,
// the way a backend without a date index does.
func WithoutOrdering() Option {
	return func(r *Repository) { r.ordered = false }
}

// WithClock overrides the source of audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(opts ...Option) *Repository {
	r := &Repository{
		byUser:  make(map[string][]core.Transaction),
		ordered: true,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repository) ListOrdered(ctx context.Context, userID string) ([]core.Transaction, error) {
	if !r.ordered {
		return nil, store.ErrOrderingUnsupported
	}
	ts, err := r.ListUnordered(ctx, userID)
	if err != nil {
		return nil, err
	}
	store.SortByDateDesc(ts)
	return ts, nil
}

// ListUnordered returns the user's transactions in insertion order.
func (r *Repository) ListUnordered(_ context.Context, userID string) ([]core.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.Transaction(nil), r.byUser[userID]...), nil
}

func (r *Repository) Get(_ context.Context, userID, id string) (core.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(userID, id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return r.byUser[userID][i], nil
}

func (r *Repository) Create(_ context.Context, userID string, d core.Draft) (string, error) {
	now := r.now().UTC()
	t := core.Transaction{
		ID:          uuid.NewString(),
		Type:        d.Type,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.DateValue(),
		ReceiptURL:  d.ReceiptURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = append(r.byUser[userID], t)
	return t.ID, nil
}

func (r *Repository) Update(_ context.Context, userID, id string, d core.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(userID, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	t := &r.byUser[userID][i]
	t.Type = d.Type
	t.Amount = d.Amount
	t.Category = d.Category
	t.Description = d.Description
	t.Date = d.DateValue()
	t.ReceiptURL = d.ReceiptURL
	t.UpdatedAt = r.now().UTC()
	return nil
}

func (r *Repository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(userID, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	ts := r.byUser[userID]
	r.byUser[userID] = append(ts[:i:i], ts[i+1:]...)
	return nil
}

func (r *Repository) Ping(context.Context) error { return nil }

// indexOf must be called with r.mu held.
func (r *Repository) indexOf(userID, id string) int {
	for i, t := range r.byUser[userID] {
		if t.ID == id {
			return i
		}
	}
	return -1
}
