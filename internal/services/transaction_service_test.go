package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/receipts"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

type fakeReceipts struct {
	mu      sync.Mutex
	objects map[string]string
	putErr  error
}

func newFakeReceipts() *fakeReceipts { return &fakeReceipts{objects: map[string]string{}} }

func (f *fakeReceipts) Put(_ context.Context, key string, u receipts.Upload) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, _ := io.ReadAll(u.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(b)
	return nil
}

func (f *fakeReceipts) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[key]
	if !ok {
		return nil, receipts.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func (f *fakeReceipts) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeReceipts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type published struct {
	userID, id string
	action     amqp.Action
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) PublishTransactionChanged(_ context.Context, userID, id string, action amqp.Action) error {
	p.msgs = append(p.msgs, published{userID, id, action})
	return p.err
}

// failingCreate wraps a repository and fails every Create and Update.
type failingCreate struct {
	store.Repository
}

func (failingCreate) Create(context.Context, string, core.Draft) (string, error) {
	return "", errors.New("disk full")
}

func (failingCreate) Update(context.Context, string, string, core.Draft) error {
	return errors.New("disk full")
}

func quietAdapter(repo store.Repository) *store.Adapter {
	return store.NewAdapter(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validDraft() core.Draft {
	return core.Draft{
		Type:        core.Expense,
		Amount:      core.Money{Cents: 4599},
		Category:    "Food",
		Description: "Dinner with Friends",
		Date:        time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC),
	}
}

func upload(name, body string) *receipts.Upload {
	return &receipts.Upload{Filename: name, ContentType: "text/plain", Body: strings.NewReader(body)}
}

func TestCreateWithReceipt(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	rs := newFakeReceipts()
	pub := &fakePublisher{}
	svc := NewTransactionService(quietAdapter(repo), rs, pub)
	svc.now = func() time.Time { return time.UnixMilli(1712900000000) }

	id, err := svc.Create(ctx, "u1", validDraft(), upload("bill.png", "img"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := repo.Get(ctx, "u1", id)
	if got.ReceiptURL != "/api/receipts/u1/1712900000000_bill.png" {
		t.Fatalf("unexpected receipt url %q", got.ReceiptURL)
	}
	if rs.count() != 1 {
		t.Fatalf("expected one stored receipt")
	}
	if len(pub.msgs) != 1 || pub.msgs[0] != (published{"u1", id, amqp.ActionCreated}) {
		t.Fatalf("unexpected publications %+v", pub.msgs)
	}
}

func TestCreateAbortsWhenUploadFails(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	rs := newFakeReceipts()
	rs.putErr = errors.New("bucket unavailable")
	pub := &fakePublisher{}
	svc := NewTransactionService(quietAdapter(repo), rs, pub)

	if _, err := svc.Create(ctx, "u1", validDraft(), upload("a.png", "x")); err == nil {
		t.Fatalf("expected upload error")
	}
	ts, _ := repo.ListUnordered(ctx, "u1")
	if len(ts) != 0 {
		t.Fatalf("no record may be written when the upload fails")
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestCreateRemovesReceiptWhenWriteFails(t *testing.T) {
	rs := newFakeReceipts()
	svc := NewTransactionService(quietAdapter(failingCreate{memory.New()}), rs, nil)
	if _, err := svc.Create(context.Background(), "u1", validDraft(), upload("a.png", "x")); err == nil {
		t.Fatalf("expected write error")
	}
	if rs.count() != 0 {
		t.Fatalf("orphaned receipt left behind")
	}
}

func TestCreateValidatesBeforeUploading(t *testing.T) {
	rs := newFakeReceipts()
	svc := NewTransactionService(quietAdapter(memory.New()), rs, nil)
	bad := validDraft()
	bad.Amount = core.Money{Cents: -5}
	_, err := svc.Create(context.Background(), "u1", bad, upload("a.png", "x"))
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if rs.count() != 0 {
		t.Fatalf("invalid drafts must not upload")
	}
}

func TestCreateWithoutReceiptStore(t *testing.T) {
	svc := NewTransactionService(quietAdapter(memory.New()), nil, nil)
	if _, err := svc.Create(context.Background(), "u1", validDraft(), upload("a", "x")); !errors.Is(err, ErrReceiptsDisabled) {
		t.Fatalf("expected ErrReceiptsDisabled, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "u1", validDraft(), nil); err != nil {
		t.Fatalf("create without receipt: %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(quietAdapter(memory.New()), nil, pub)
	if _, err := svc.Create(context.Background(), "u1", validDraft(), nil); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

func TestUpdateKeepsOrReplacesReceipt(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	rs := newFakeReceipts()
	pub := &fakePublisher{}
	svc := NewTransactionService(quietAdapter(repo), rs, pub)
	clock := time.UnixMilli(1000)
	svc.now = func() time.Time { return clock }

	id, err := svc.Create(ctx, "u1", validDraft(), upload("old.png", "old"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldURL := "/api/receipts/u1/1000_old.png"

	edit := validDraft()
	edit.Description = "Dinner"
	if err := svc.Update(ctx, "u1", id, edit, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.Get(ctx, "u1", id)
	if got.Description != "Dinner" || got.ReceiptURL != oldURL {
		t.Fatalf("receipt should be kept without a new upload: %+v", got)
	}

	clock = time.UnixMilli(2000)
	if err := svc.Update(ctx, "u1", id, edit, upload("new.png", "new")); err != nil {
		t.Fatalf("update with receipt: %v", err)
	}
	got, _ = repo.Get(ctx, "u1", id)
	if got.ReceiptURL != "/api/receipts/u1/2000_new.png" {
		t.Fatalf("receipt not replaced: %q", got.ReceiptURL)
	}
	if rs.count() != 1 {
		t.Fatalf("old receipt should be removed, have %d objects", rs.count())
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.action != amqp.ActionUpdated {
		t.Fatalf("expected update publication, got %+v", last)
	}
}

func TestUpdateFailureKeepsOldRecordAndRemovesNewReceipt(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	id, _ := base.Create(ctx, "u1", validDraft())
	rs := newFakeReceipts()
	svc := NewTransactionService(quietAdapter(failingCreate{base}), rs, nil)

	if err := svc.Update(ctx, "u1", id, validDraft(), upload("n.png", "n")); err == nil {
		t.Fatalf("expected update failure")
	}
	if rs.count() != 0 {
		t.Fatalf("new receipt must be removed after a failed write")
	}
	got, _ := base.Get(ctx, "u1", id)
	if got.ReceiptURL != "" {
		t.Fatalf("record must be unchanged, got %+v", got)
	}
}

func TestUpdateMissingTransaction(t *testing.T) {
	svc := NewTransactionService(quietAdapter(memory.New()), nil, nil)
	err := svc.Update(context.Background(), "u1", "nope", validDraft(), nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesReceiptAndOwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	rs := newFakeReceipts()
	pub := &fakePublisher{}
	svc := NewTransactionService(quietAdapter(repo), rs, pub)

	id, _ := svc.Create(ctx, "u1", validDraft(), upload("r.txt", "body"))
	got, _ := repo.Get(ctx, "u1", id)
	key, _ := receipts.KeyFromURL(got.ReceiptURL)

	rc, err := svc.OpenReceipt(ctx, "u1", key)
	if err != nil {
		t.Fatalf("open own receipt: %v", err)
	}
	rc.Close()
	if _, err := svc.OpenReceipt(ctx, "u2", key); !errors.Is(err, receipts.ErrNotFound) {
		t.Fatalf("foreign receipt must be hidden, got %v", err)
	}

	if err := svc.Delete(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rs.count() != 0 {
		t.Fatalf("receipt should be deleted with its record")
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.action != amqp.ActionDeleted {
		t.Fatalf("expected delete publication, got %+v", last)
	}
	if err := svc.Delete(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
