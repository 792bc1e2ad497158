package backend

import (
	"context"

	"fintrack/internal/receipts"
	"fintrack/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the repository and optional cleanup function
type BackendResult struct {
	Repository store.Repository
	Cleanup    CleanupFunc
}

// ReceiptsResult contains the receipt store and optional cleanup function
type ReceiptsResult struct {
	Store   receipts.Store
	Cleanup CleanupFunc
}

// Factory creates storage backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateReceipts(ctx context.Context, config Config) (*ReceiptsResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Receipts
	ReceiptsType    ReceiptsType
	ReceiptsDir     string
	ReceiptsBucket  string
	ReceiptMaxBytes int64
}

// BackendType represents the type of transaction backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ReceiptsType represents where receipt blobs are kept
type ReceiptsType string

const (
	LocalReceipts ReceiptsType = "local"
	GCSReceipts   ReceiptsType = "gcs"
)

func (rt ReceiptsType) IsValid() bool {
	return rt == LocalReceipts || rt == GCSReceipts
}
