// Package gcs stores receipts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"fintrack/internal/receipts"
)

const uploadTimeout = 2 * time.Minute

type Store struct {
	client   *storage.Client
	bucket   *storage.BucketHandle
	maxBytes int64
}

var _ receipts.Store = (*Store)(nil)

// New creates a bucket-backed store. Credentials come from Application
// Default Credentials.
func New(ctx context.Context, bucket string, maxBytes int64) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(bucket), maxBytes: maxBytes}, nil
}

func (s *Store) Put(ctx context.Context, key string, u receipts.Upload) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = u.ContentType
	if _, err := io.Copy(w, receipts.LimitReader(u.Body, s.maxBytes)); err != nil {
		// Cancelling the context before Close aborts the upload.
		cancel()
		_ = w.Close()
		return fmt.Errorf("copy receipt to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", receipts.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return r, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
