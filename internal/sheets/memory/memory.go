// Package memory keeps mirrored snapshots in process, for development
// without a spreadsheet and for tests.
package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/export"
	ports "fintrack/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	tables map[string][][]string
	writes int
}

var _ ports.SnapshotWriter = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string][][]string)}
}

func (s *Store) WriteSnapshot(_ context.Context, userID string, ts []core.Transaction) error {
	table := append([][]string{export.Header}, export.Rows(ts)...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[userID] = table
	s.writes++
	return nil
}

// Table returns the mirrored rows of userID, header first.
func (s *Store) Table(userID string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.tables[userID]...)
}

// Writes counts WriteSnapshot calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
