package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

func quietFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "memory with local receipts",
			config: Config{Type: MemoryBackend, ReceiptsType: LocalReceipts, ReceiptsDir: "r", ReceiptMaxBytes: 1},
		},
		{
			name:    "unknown backend",
			config:  Config{Type: "sheets", ReceiptsType: LocalReceipts, ReceiptsDir: "r", ReceiptMaxBytes: 1},
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			config:  Config{Type: SQLiteBackend, ReceiptsType: LocalReceipts, ReceiptsDir: "r", ReceiptMaxBytes: 1},
			wantErr: true,
		},
		{
			name:    "postgres without URL",
			config:  Config{Type: PostgresBackend, ReceiptsType: LocalReceipts, ReceiptsDir: "r", ReceiptMaxBytes: 1},
			wantErr: true,
		},
		{
			name:    "gcs without bucket",
			config:  Config{Type: MemoryBackend, ReceiptsType: GCSReceipts, ReceiptMaxBytes: 1},
			wantErr: true,
		},
		{
			name:    "unknown receipts type",
			config:  Config{Type: MemoryBackend, ReceiptsType: "s3", ReceiptMaxBytes: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:     "sqlite",
		SQLiteDBPath:    "./x.db",
		ReceiptsBackend: "local",
		ReceiptsDir:     "./receipts",
		ReceiptMaxBytes: 10,
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.ReceiptsType != LocalReceipts || cfg.ReceiptMaxBytes != 10 {
		t.Fatalf("unexpected backend config %+v", cfg)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := quietFactory()

	tests := []struct {
		name   string
		config Config
	}{
		{name: "memory", config: Config{Type: MemoryBackend}},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "fintrack.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(ctx, tt.config)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}

			if err := res.Repository.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}

			adapter := store.NewAdapter(res.Repository, slog.New(slog.NewTextHandler(io.Discard, nil)))
			d := core.Draft{
				Type:        core.Income,
				Amount:      core.Money{Cents: 100},
				Category:    "Salary",
				Description: "Bonus",
				Date:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			}
			if _, err := adapter.Create(ctx, "u1", d); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			snap, err := adapter.List(ctx, "u1")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(snap.Transactions) != 1 || snap.Transactions[0].Description != "Bonus" {
				t.Fatalf("unexpected snapshot %+v", snap.Transactions)
			}
		})
	}

	if _, err := f.CreateBackend(ctx, Config{Type: "nope"}); err == nil {
		t.Fatalf("expected error for invalid backend type")
	}
}

func TestCreateReceipts(t *testing.T) {
	ctx := context.Background()
	f := quietFactory()

	res, err := f.CreateReceipts(ctx, Config{ReceiptsType: LocalReceipts, ReceiptsDir: t.TempDir(), ReceiptMaxBytes: 1024})
	if err != nil {
		t.Fatalf("CreateReceipts() error = %v", err)
	}
	if res.Store == nil {
		t.Fatalf("expected a receipt store")
	}

	if _, err := f.CreateReceipts(ctx, Config{ReceiptsType: "s3"}); err == nil {
		t.Fatalf("expected error for unsupported receipts type")
	}
}
