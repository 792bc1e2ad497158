package analytics

import (
	"strings"

	"fintrack/internal/core"
)

// MatchAll is the sentinel that disables a Type or Category criterion.
const MatchAll = "all"

// Predicate combines the list filters. Empty fields and MatchAll match
// everything.
type Predicate struct {
	Search   string
	Type     string
	Category string
}

// IsZero reports whether p matches every transaction.
func (p Predicate) IsZero() bool {
	return p.Search == "" && isMatchAll(p.Type) && isMatchAll(p.Category)
}

// Key is a stable representation of p for caching filtered views.
func (p Predicate) Key() string {
	return strings.ToLower(p.Search) + "\x00" + p.Type + "\x00" + p.Category
}

func isMatchAll(s string) bool {
	return s == "" || s == MatchAll
}

// Match reports whether t passes every criterion of p.
func (p Predicate) Match(t core.Transaction) bool {
	if !isMatchAll(p.Type) && string(t.Type) != p.Type {
		return false
	}
	if !isMatchAll(p.Category) && t.Category != p.Category {
		return false
	}
	q := strings.ToLower(p.Search)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Description), q) ||
		strings.Contains(strings.ToLower(t.Category), q)
}

// Filter returns the transactions matching p in their input order. The
// result never aliases ts.
func Filter(ts []core.Transaction, p Predicate) []core.Transaction {
	out := make([]core.Transaction, 0, len(ts))
	for _, t := range ts {
		if p.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// FilterSummary summarizes the subset of ts matching p.
func FilterSummary(ts []core.Transaction, p Predicate) Summary {
	return Summarize(Filter(ts, p))
}
