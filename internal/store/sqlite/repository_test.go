package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := NewRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func draft(desc string, day int) core.Draft {
	return core.Draft{
		Type:        core.Expense,
		Amount:      core.Money{Cents: 1999},
		Category:    "Utilities",
		Description: desc,
		Date:        time.Date(2024, 9, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	id, err := r.Create(ctx, "u1", draft("Electricity", 10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.Get(ctx, "u1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "Electricity" || got.Amount.Cents != 1999 || got.Type != core.Expense {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Date.Text != "2024-09-10" || got.Date.Stamp == nil {
		t.Fatalf("expected both date encodings, got %+v", got.Date)
	}
	when, _ := got.Date.Instant()
	if !when.Equal(time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %v", when)
	}

	upd := draft("Water", 11)
	upd.Type = core.Income
	upd.ReceiptURL = "receipts/u1/1_bill.pdf"
	if err := r.Update(ctx, "u1", id, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got2, _ := r.Get(ctx, "u1", id)
	if got2.Description != "Water" || got2.ReceiptURL != upd.ReceiptURL || got2.Type != core.Income {
		t.Fatalf("update not applied: %+v", got2)
	}
	if !got2.CreatedAt.Equal(got.CreatedAt) {
		t.Fatalf("createdAt must be preserved")
	}

	if err := r.Update(ctx, "u2", id, upd); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	if err := r.Delete(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOrderedListingAndMissingIndexFallback(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	for _, day := range []int{4, 22, 13, 22} {
		if _, err := r.Create(ctx, "u1", draft("x", day)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	a := store.NewAdapter(r, nil)
	indexed, err := a.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if indexed.ClientSorted {
		t.Fatalf("indexed listing should be ordered by the database")
	}

	if _, err := r.db.ExecContext(ctx, `DROP INDEX `+DateIndexName); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := r.ListOrdered(ctx, "u1"); !errors.Is(err, store.ErrOrderingUnsupported) {
		t.Fatalf("expected ErrOrderingUnsupported, got %v", err)
	}

	fallback, err := a.List(ctx, "u1")
	if err != nil {
		t.Fatalf("fallback list: %v", err)
	}
	if !fallback.ClientSorted {
		t.Fatalf("expected client-side sort without the index")
	}

	idsOf := func(ts []core.Transaction) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}
	if !reflect.DeepEqual(idsOf(indexed.Transactions), idsOf(fallback.Transactions)) {
		t.Fatalf("fallback order differs from indexed order")
	}
	if d := indexed.Transactions[0].When().Day(); d != 22 {
		t.Fatalf("expected newest first, got day %d", d)
	}
}

func TestListIsScopedToUser(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	if _, err := r.Create(ctx, "u1", draft("mine", 1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	ts, err := r.ListUnordered(ctx, "u2")
	if err != nil || len(ts) != 0 {
		t.Fatalf("expected no rows for u2, got %d (err=%v)", len(ts), err)
	}
}
