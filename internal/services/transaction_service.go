package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/receipts"
	"fintrack/internal/store"
)

var ErrReceiptsDisabled = errors.New("receipt uploads are not configured")

// Publisher announces collection changes to other processes.
type Publisher interface {
	PublishTransactionChanged(ctx context.Context, userID, transactionID string, action amqp.Action) error
}

// TransactionService runs the user-facing write operations. A write that
// carries a receipt uploads it first and only then writes the record; if
// either step fails nothing is left behind.
type TransactionService struct {
	store     *store.Adapter
	receipts  receipts.Store
	publisher Publisher
	now       func() time.Time
}

// NewTransactionService wires the service. receiptStore and publisher are
// optional.
func NewTransactionService(adapter *store.Adapter, receiptStore receipts.Store, publisher Publisher) *TransactionService {
	return &TransactionService{
		store:     adapter,
		receipts:  receiptStore,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create stores a new transaction, uploading receipt first when present.
func (s *TransactionService) Create(ctx context.Context, userID string, d core.Draft, receipt *receipts.Upload) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	key, err := s.upload(ctx, userID, receipt)
	if err != nil {
		return "", err
	}
	if key != "" {
		d.ReceiptURL = receipts.URLFor(key)
	}

	id, err := s.store.Create(ctx, userID, d)
	if err != nil {
		s.discard(ctx, key)
		return "", err
	}

	written(ctx).LogTransactionWritten(ctx, log.OpCreate, userID, id, string(d.Type), d.Category, d.Amount.Cents)

	s.publish(ctx, userID, id, amqp.ActionCreated)
	return id, nil
}

// Update replaces the editable fields of a transaction. The stored receipt
// is kept unless a new one is uploaded, in which case the old object is
// removed after the record write succeeds.
func (s *TransactionService) Update(ctx context.Context, userID, id string, d core.Draft, receipt *receipts.Upload) error {
	if err := d.Validate(); err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	key, err := s.upload(ctx, userID, receipt)
	if err != nil {
		return err
	}
	d.ReceiptURL = existing.ReceiptURL
	if key != "" {
		d.ReceiptURL = receipts.URLFor(key)
	}

	if err := s.store.Update(ctx, userID, id, d); err != nil {
		s.discard(ctx, key)
		return err
	}
	if key != "" {
		if oldKey, ok := receipts.KeyFromURL(existing.ReceiptURL); ok {
			s.discard(ctx, oldKey)
		}
	}

	written(ctx).LogTransactionWritten(ctx, log.OpUpdate, userID, id, string(d.Type), d.Category, d.Amount.Cents)
	s.publish(ctx, userID, id, amqp.ActionUpdated)
	return nil
}

// Delete removes a transaction and its receipt.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	if key, ok := receipts.KeyFromURL(existing.ReceiptURL); ok {
		s.discard(ctx, key)
	}

	written(ctx).LogTransactionWritten(ctx, log.OpDelete, userID, id, string(existing.Type), existing.Category, existing.Amount.Cents)
	s.publish(ctx, userID, id, amqp.ActionDeleted)
	return nil
}

// Get reads one transaction straight from the store.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.store.Get(ctx, userID, id)
}

// OpenReceipt streams a stored receipt belonging to userID.
func (s *TransactionService) OpenReceipt(ctx context.Context, userID, key string) (io.ReadCloser, error) {
	if s.receipts == nil {
		return nil, ErrReceiptsDisabled
	}
	if !receipts.OwnedBy(key, userID) {
		return nil, receipts.ErrNotFound
	}
	return s.receipts.Open(ctx, key)
}

func (s *TransactionService) upload(ctx context.Context, userID string, receipt *receipts.Upload) (string, error) {
	if receipt == nil {
		return "", nil
	}
	if s.receipts == nil {
		return "", ErrReceiptsDisabled
	}
	key := receipts.Key(userID, s.now(), receipt.Filename)
	if err := s.receipts.Put(ctx, key, *receipt); err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	return key, nil
}

// discard removes an uploaded object on a best-effort basis.
func (s *TransactionService) discard(ctx context.Context, key string) {
	if key == "" || s.receipts == nil {
		return
	}
	if err := s.receipts.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to remove receipt", log.FieldReceiptKey, key, log.FieldError, err)
	}
}

func (s *TransactionService) publish(ctx context.Context, userID, id string, action amqp.Action) {
	if s.publisher == nil {
		return
	}
	// The record is already stored; a lost notification only delays the
	// mirror until the next change.
	if err := s.publisher.PublishTransactionChanged(ctx, userID, id, action); err != nil {
		fields := log.NewFields().WithUser(userID).WithComponent(log.ComponentAMQP)
		fields[log.FieldTransactionID] = id
		written(ctx).LogError(ctx, "Failed to publish change", err, string(action), fields)
	}
}

func written(ctx context.Context) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContext(ctx))
}
