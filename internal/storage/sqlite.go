package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pocketmoney/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the default Ledger Store backend.
//
// Every operation is a single statement, so SQLite's per-statement atomicity
// is all the transaction machinery the ledger needs. Balances are never
// stored; they are recomputed by summation on every read.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Insert persists a new transaction and returns it with the assigned id.
// CreatedAt is set here when the caller left it zero.
func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (account, amount_cents, reason, created_at) VALUES (?, ?, ?, ?)`,
		string(t.Account), t.Amount.Cents, nullableReason(t.Reason), t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"account", t.Account,
		"amount_cents", t.Amount.Cents)

	return t, nil
}

// Update overwrites account, amount and reason in place. ID and created_at
// are immutable. Returns core.ErrNotFound when no row matches.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, account core.Account, amount core.Money, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET account = ?, amount_cents = ?, reason = ? WHERE id = ?`,
		string(account), amount.Cents, nullableReason(reason), id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", id,
		"account", account,
		"amount_cents", amount.Cents)

	return nil
}

// Delete removes a transaction for good; its id is never reused.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// Get retrieves a single transaction by id.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account, amount_cents, reason, created_at FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// Balance returns the sum of amounts for one account, 0 if it has no
// transactions.
func (r *SQLiteRepository) Balance(ctx context.Context, account core.Account) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account = ?`,
		string(account)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// Balances returns every account's balance in one aggregate query. Accounts
// with no transactions are present with a zero balance, so the result always
// matches per-account Balance calls.
func (r *SQLiteRepository) Balances(ctx context.Context) (map[core.Account]core.Money, error) {
	balances := make(map[core.Account]core.Money, len(core.Accounts()))
	for _, a := range core.Accounts() {
		balances[a] = core.Money{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT account, COALESCE(SUM(amount_cents), 0) FROM transactions GROUP BY account`)
	if err != nil {
		return nil, fmt.Errorf("sum balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account string
		var cents int64
		if err := rows.Scan(&account, &cents); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		balances[core.Account(account)] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}

	return balances, nil
}

// ListTransactions returns one account's history, most recent first.
// A limit <= 0 means no limit.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, account core.Account, limit int) ([]core.Transaction, error) {
	query := `SELECT id, account, amount_cents, reason, created_at FROM transactions
		WHERE account = ? ORDER BY created_at DESC, id DESC`
	args := []any{string(account)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListRecent returns the most recent transactions across all accounts.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	query := `SELECT id, account, amount_cents, reason, created_at FROM transactions
		ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// PendingMirror returns transactions not yet appended to the spreadsheet
// mirror, oldest first.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account, amount_cents, reason, created_at FROM transactions
		WHERE mirror_state = 'pending' ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending mirror transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// MarkMirrored marks a transaction as appended to the mirror.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirror_state = 'done' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction mirrored: %w", err)
	}
	return nil
}

// MarkMirrorError marks a transaction whose mirror append failed.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirror_state = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction mirror error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with mirror error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		account string
		reason  sql.NullString
	)
	if err := row.Scan(&t.ID, &account, &t.Amount.Cents, &reason, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Account = core.Account(account)
	t.Reason = reason.String
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txs, nil
}

func nullableReason(reason string) sql.NullString {
	return sql.NullString{String: reason, Valid: reason != ""}
}
