package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"pocketmoney/internal/core"

	_ "github.com/lib/pq"
)

// PostgresRepository is the alternate Ledger Store backend, selected with
// DATA_BACKEND=postgres. Same contract as SQLiteRepository.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (account, amount_cents, reason, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		string(t.Account), t.Amount.Cents, nullableReason(t.Reason), t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"account", t.Account,
		"amount_cents", t.Amount.Cents)

	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, account core.Account, amount core.Money, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET account = $1, amount_cents = $2, reason = $3 WHERE id = $4`,
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

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
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

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account, amount_cents, reason, created_at FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *PostgresRepository) Balance(ctx context.Context, account core.Account) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account = $1`,
		string(account)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (r *PostgresRepository) Balances(ctx context.Context) (map[core.Account]core.Money, error) {
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

func (r *PostgresRepository) ListTransactions(ctx context.Context, account core.Account, limit int) ([]core.Transaction, error) {
	query := `SELECT id, account, amount_cents, reason, created_at FROM transactions
		WHERE account = $1 ORDER BY created_at DESC, id DESC`
	args := []any{string(account)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	query := `SELECT id, account, amount_cents, reason, created_at FROM transactions
		ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *PostgresRepository) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account, amount_cents, reason, created_at FROM transactions
		WHERE mirror_state = 'pending' ORDER BY id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending mirror transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *PostgresRepository) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirror_state = 'done' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark transaction mirrored: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkMirrorError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirror_state = 'error' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark transaction mirror error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with mirror error", "id", id)
	return nil
}
