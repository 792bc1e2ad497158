// Package worker keeps the spreadsheet mirror in step with the store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// MirrorConfig holds configuration for the mirror processor.
type MirrorConfig struct {
	// FlushInterval is how often dirty users are mirrored (default: 5s)
	FlushInterval time.Duration

	// Concurrency bounds parallel mirror writes per flush (default: 4)
	Concurrency int

	// MaxRetries is how many failed flushes a user gets before being
	// dropped until its next change (default: 3)
	MaxRetries int
}

func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		FlushInterval: 5 * time.Second,
		Concurrency:   4,
		MaxRetries:    3,
	}
}

// Lister takes ordered snapshots of a user's collection.
type Lister interface {
	List(ctx context.Context, userID string) (store.Snapshot, error)
}

// MirrorProcessor collects change notifications and periodically rewrites
// the mirror of every user that changed. Several notifications for one
// user between flushes collapse into a single write.
type MirrorProcessor struct {
	lister Lister
	writer sheets.SnapshotWriter
	config MirrorConfig

	pendingMu sync.Mutex
	pending   map[string]int // user ID -> failed attempts

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorProcessor(lister Lister, writer sheets.SnapshotWriter, config MirrorConfig) *MirrorProcessor {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &MirrorProcessor{
		lister:  lister,
		writer:  writer,
		config:  config,
		pending: make(map[string]int),
	}
}

// HandleMessage marks the message's user for mirroring. It matches
// amqp.Handler.
func (p *MirrorProcessor) HandleMessage(ctx context.Context, msg *amqp.TransactionChangedMessage) error {
	slog.DebugContext(ctx, "Transaction change received",
		"user_id", msg.UserID,
		"transaction_id", msg.TransactionID,
		"action", msg.Action)
	p.Enqueue(msg.UserID)
	return nil
}

// Enqueue marks users for the next flush and resets their retry count.
func (p *MirrorProcessor) Enqueue(userIDs ...string) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for _, id := range userIDs {
		p.pending[id] = 0
	}
}

// Pending returns the number of users waiting for a flush.
func (p *MirrorProcessor) Pending() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// Start begins the flush loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror processor started",
		"flush_interval", p.config.FlushInterval,
		"concurrency", p.config.Concurrency)
	return nil
}

// Stop flushes once more and waits for the loop to finish.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.Flush(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush mirrors every pending user and returns how many were written.
// Failed users stay pending until MaxRetries is reached.
func (p *MirrorProcessor) Flush(ctx context.Context) int {
	batch := p.take()
	if len(batch) == 0 {
		return 0
	}

	users := make([]string, 0, len(batch))
	for id := range batch {
		users = append(users, id)
	}
	sort.Strings(users)

	var (
		mu      sync.Mutex
		written int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, userID := range users {
		g.Go(func() error {
			if err := p.mirror(gctx, userID); err != nil {
				p.handleFailure(gctx, userID, batch[userID], err)
				return nil
			}
			mu.Lock()
			written++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.DebugContext(ctx, "Mirror flush completed", "users", len(users), "written", written)
	return written
}

func (p *MirrorProcessor) take() map[string]int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	batch := p.pending
	p.pending = make(map[string]int)
	return batch
}

func (p *MirrorProcessor) mirror(ctx context.Context, userID string) error {
	snap, err := p.lister.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := p.writer.WriteSnapshot(ctx, userID, snap.Transactions); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored transactions",
		"user_id", userID,
		"transactions", len(snap.Transactions),
		"version", snap.Version)
	return nil
}

// handleFailure requeues the user unless it has run out of retries. A
// fresh notification that arrived meanwhile takes precedence.
func (p *MirrorProcessor) handleFailure(ctx context.Context, userID string, attempts int, err error) {
	attempts++
	slog.WarnContext(ctx, "Mirror failed",
		"user_id", userID,
		"attempt", attempts,
		"error", err)

	if attempts >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Mirror failed permanently after max retries",
			"user_id", userID,
			"attempts", attempts)
		return
	}

	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if _, ok := p.pending[userID]; !ok {
		p.pending[userID] = attempts
	}
}
