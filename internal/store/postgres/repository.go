// Package postgres stores transactions in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// DateIndexName is the index that backs ordered listings.
const DateIndexName = "idx_transactions_user_date"

const selectColumns = `id, type, amount_cents, category, description, date_at, date_text, receipt_url, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Repository = (*Repository)(nil)

// Connect opens a pool, verifies it and applies migrations.
func Connect(ctx context.Context, url string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(url); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

// New wraps an existing pool. Migrations are the caller's concern.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) ListOrdered(ctx context.Context, userID string) ([]core.Transaction, error) {
	var indexed bool
	if err := r.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, DateIndexName).Scan(&indexed); err != nil {
		return nil, fmt.Errorf("check date index: %w", err)
	}
	if !indexed {
		return nil, store.ErrOrderingUnsupported
	}
	return r.query(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY date_at DESC, id COLLATE "C" ASC`, userID)
}

func (r *Repository) ListUnordered(ctx context.Context, userID string) ([]core.Transaction, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM transactions WHERE user_id = $1`, userID)
}

func (r *Repository) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM transactions
		WHERE user_id = $1 AND id = $2`, userID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) Create(ctx context.Context, userID string, d core.Draft) (string, error) {
	id := uuid.NewString()
	date := d.DateValue()
	_, err := r.pool.Exec(ctx, `INSERT INTO transactions
		(id, user_id, type, amount_cents, category, description, date_at, date_text, receipt_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, userID, string(d.Type), d.Amount.Cents, d.Category, d.Description,
		date.Stamp.ToTime(), date.Text, d.ReceiptURL)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, userID, id string, d core.Draft) error {
	date := d.DateValue()
	tag, err := r.pool.Exec(ctx, `UPDATE transactions SET
		type = $3, amount_cents = $4, category = $5, description = $6,
		date_at = $7, date_text = $8, receipt_url = $9, updated_at = NOW()
		WHERE user_id = $1 AND id = $2`,
		userID, id, string(d.Type), d.Amount.Cents, d.Category, d.Description,
		date.Stamp.ToTime(), date.Text, d.ReceiptURL)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, q, args...)
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

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t      core.Transaction
		typ    string
		dateAt *time.Time
	)
	err := row.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Category, &t.Description,
		&dateAt, &t.Date.Text, &t.ReceiptURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.Type(typ)
	if dateAt != nil {
		t.Date.Stamp = core.NewTimestamp(*dateAt)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
