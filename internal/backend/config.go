package backend

import (
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:            BackendType(appConfig.DataBackend),
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		DatabaseURL:     appConfig.DatabaseURL,
		ReceiptsType:    ReceiptsType(appConfig.ReceiptsBackend),
		ReceiptsDir:     appConfig.ReceiptsDir,
		ReceiptsBucket:  appConfig.ReceiptsBucket,
		ReceiptMaxBytes: appConfig.ReceiptMaxBytes,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (want one of %v)", c.Type, []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend})
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
	}

	if !c.ReceiptsType.IsValid() {
		return fmt.Errorf("invalid receipts type: %s", c.ReceiptsType)
	}
	if c.ReceiptsType == LocalReceipts && c.ReceiptsDir == "" {
		return fmt.Errorf("receipts directory is required for local receipts")
	}
	if c.ReceiptsType == GCSReceipts && c.ReceiptsBucket == "" {
		return fmt.Errorf("receipts bucket is required for gcs receipts")
	}
	if c.ReceiptMaxBytes < 1 {
		return fmt.Errorf("receipt size limit must be positive")
	}

	return nil
}
