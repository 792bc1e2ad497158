// Package sqlite stores transactions in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// DateIndexName is the index that backs ordered listings. Without it
// ListOrdered reports store.ErrOrderingUnsupported.
const DateIndexName = "idx_transactions_user_date"

const selectColumns = `id, type, amount_cents, category, description, date_ms, date_text, receipt_url, created_at, updated_at`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Repository = (*Repository)(nil)

// NewRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dsnFor(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{db: db, now: time.Now}, nil
}

func dsnFor(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) hasDateIndex(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, DateIndexName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check date index: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) ListOrdered(ctx context.Context, userID string) ([]core.Transaction, error) {
	ok, err := r.hasDateIndex(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrOrderingUnsupported
	}
	return r.query(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE user_id = ? ORDER BY date_ms DESC, id ASC`, userID)
}

func (r *Repository) ListUnordered(ctx context.Context, userID string) ([]core.Transaction, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM transactions WHERE user_id = ?`, userID)
}

func (r *Repository) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE user_id = ? AND id = ?`, userID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) Create(ctx context.Context, userID string, d core.Draft) (string, error) {
	id := uuid.NewString()
	now := r.now().UnixMilli()
	date := d.DateValue()
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(id, user_id, type, amount_cents, category, description, date_ms, date_text, receipt_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, string(d.Type), d.Amount.Cents, d.Category, d.Description,
		date.Stamp.ToTime().UnixMilli(), date.Text, d.ReceiptURL, now, now)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"transaction_id", id,
		"user_id", userID,
		"type", d.Type,
		"amount_cents", d.Amount.Cents)
	return id, nil
}

func (r *Repository) Update(ctx context.Context, userID, id string, d core.Draft) error {
	date := d.DateValue()
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		type = ?, amount_cents = ?, category = ?, description = ?,
		date_ms = ?, date_text = ?, receipt_url = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		string(d.Type), d.Amount.Cents, d.Category, d.Description,
		date.Stamp.ToTime().UnixMilli(), date.Text, d.ReceiptURL, r.now().UnixMilli(),
		userID, id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		typ                  string
		dateMS               sql.NullInt64
		createdAt, updatedAt int64
	)
	err := s.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Category, &t.Description,
		&dateMS, &t.Date.Text, &t.ReceiptURL, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.Type(typ)
	if dateMS.Valid {
		t.Date.Stamp = core.TimestampFromMillis(dateMS.Int64)
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}
