// Package store connects the dashboard to a per-user transaction
// collection. Backends implement Repository; Adapter layers ordered
// snapshots, the client-side sort fallback and live subscriptions on top.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"

	"fintrack/internal/core"
)

var (
	ErrNotFound = errors.New("transaction not found")
	// ErrOrderingUnsupported is returned by ListOrdered when the backend
	// cannot sort by date, typically because its date index is missing.
	ErrOrderingUnsupported = errors.New("ordered listing unsupported")
)

// Repository is a per-user transaction collection. IDs and audit
// timestamps are assigned by the implementation.
type Repository interface {
	// ListOrdered returns every transaction of the user by date descending,
	// ties broken by ascending ID.
	ListOrdered(ctx context.Context, userID string) ([]core.Transaction, error)
	// ListUnordered returns every transaction of the user in no particular
	// order.
	ListUnordered(ctx context.Context, userID string) ([]core.Transaction, error)
	Get(ctx context.Context, userID, id string) (core.Transaction, error)
	Create(ctx context.Context, userID string, d core.Draft) (string, error)
	Update(ctx context.Context, userID, id string, d core.Draft) error
	Delete(ctx context.Context, userID, id string) error
	Ping(ctx context.Context) error
}

// SortByDateDesc orders ts the way ListOrdered does: normalized date
// descending, then ID ascending.
func SortByDateDesc(ts []core.Transaction) {
	slices.SortStableFunc(ts, func(a, b core.Transaction) int {
		if c := b.When().Compare(a.When()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
