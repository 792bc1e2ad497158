// Package sheets defines the spreadsheet mirror of a user's transactions.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// SnapshotWriter replaces the mirrored table of a user with ts, in the
// given order.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, userID string, ts []core.Transaction) error
}
