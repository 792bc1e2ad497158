package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/receipts"
	"fintrack/internal/receipts/gcs"
	"fintrack/internal/store/memory"
	"fintrack/internal/store/postgres"
	"fintrack/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Repository: repo,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &BackendResult{
		Repository: repo,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Repository: memory.New(),
		Cleanup:    nil, // No cleanup needed for memory backend
	}, nil
}

// CreateReceipts implements Factory.CreateReceipts
func (f *DefaultFactory) CreateReceipts(ctx context.Context, config Config) (*ReceiptsResult, error) {
	switch config.ReceiptsType {
	case LocalReceipts:
		store, err := receipts.NewLocal(config.ReceiptsDir, config.ReceiptMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local receipts: %w", err)
		}
		f.logger.Info("Initialized local receipts", "dir", config.ReceiptsDir)
		return &ReceiptsResult{Store: store}, nil

	case GCSReceipts:
		store, err := gcs.New(ctx, config.ReceiptsBucket, config.ReceiptMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS receipts: %w", err)
		}
		f.logger.Info("Initialized GCS receipts", "bucket", config.ReceiptsBucket)
		return &ReceiptsResult{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported receipts type: %s", config.ReceiptsType)
	}
}
