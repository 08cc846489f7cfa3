package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

var tables = map[core.Kind]string{
	core.KindCategory:    "categories",
	core.KindTransaction: "transactions",
	core.KindBudget:      "budgets",
	core.KindGoal:        "financial_goals",
	core.KindUser:        "users",
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteRepository implements Store on a SQLite database. Staged writes live
// in an open database transaction until Commit.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string

	mu sync.Mutex
	tx *sql.Tx
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: staged writes and reads must see the same transaction
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (r *SQLiteRepository) Path() string { return r.dbPath }

func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tx != nil {
		_ = r.tx.Rollback()
		r.tx = nil
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// writer returns the open transaction, beginning one when needed. The
// transaction outlives the context of the call that opened it.
// Callers hold r.mu.
func (r *SQLiteRepository) writer(ctx context.Context) (*sql.Tx, error) {
	if r.tx != nil {
		return r.tx, nil
	}
	tx, err := r.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, &core.PersistenceError{Op: "begin", Err: err}
	}
	r.tx = tx
	return tx, nil
}

// reader returns the open transaction if any so reads see staged writes.
// Callers hold r.mu.
func (r *SQLiteRepository) reader() execQuerier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Insert implements Store.
func (r *SQLiteRepository) Insert(ctx context.Context, e core.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.writer(ctx)
	if err != nil {
		return err
	}

	var (
		query string
		args  []any
	)
	switch v := e.(type) {
	case core.Category:
		query = `INSERT INTO categories (id, name, icon, color, type) VALUES (?, ?, ?, ?, ?)`
		args = []any{v.ID.String(), v.Name, v.Icon, v.Color, string(v.Type)}
	case core.Transaction:
		if v.IsOccurrence() {
			return &core.PersistenceError{Op: "insert", Kind: core.KindTransaction, Err: errors.New("occurrences are derived and never stored")}
		}
		var freq any
		if v.IsRecurring {
			freq = string(v.RecurringFrequency)
		}
		query = `INSERT INTO transactions (id, amount, title, date, category_id, type, notes, is_recurring, recurring_frequency)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = []any{v.ID.String(), v.Amount.String(), v.Title, v.Date.String(), v.CategoryID.String(),
			string(v.Type), v.Notes, v.IsRecurring, freq}
	case core.Budget:
		var supersededBy any
		if v.SupersededBy.Valid {
			supersededBy = v.SupersededBy.UUID.String()
		}
		query = `INSERT INTO budgets (id, category_id, amount, period, start_date, created_at, superseded_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		args = []any{v.ID.String(), v.CategoryID.String(), v.Amount.String(), string(v.Period),
			v.StartDate.String(), formatTime(v.CreatedAt), supersededBy}
	case core.FinancialGoal:
		var targetDate any
		if !v.TargetDate.IsZero() {
			targetDate = v.TargetDate.String()
		}
		query = `INSERT INTO financial_goals (id, name, target_amount, current_amount, target_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
		args = []any{v.ID.String(), v.Name, v.TargetAmount.String(), v.CurrentAmount.String(),
			targetDate, formatTime(v.CreatedAt)}
	case core.User:
		query = `INSERT INTO users (id, name, email, profile_image, created_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, profile_image = excluded.profile_image`
		args = []any{v.ID.String(), v.Name, v.Email, v.ProfileImage, formatTime(v.CreatedAt)}
	default:
		return &core.PersistenceError{Op: "insert", Err: fmt.Errorf("unsupported entity %T", e)}
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return &core.PersistenceError{Op: "insert", Kind: e.EntityKind(), Err: err}
	}
	return nil
}

// Delete implements Store.
func (r *SQLiteRepository) Delete(ctx context.Context, kind core.Kind, id uuid.UUID) error {
	table, ok := tables[kind]
	if !ok {
		return &core.PersistenceError{Op: "delete", Kind: kind, Err: errors.New("unknown entity kind")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.writer(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id.String()); err != nil {
		return &core.PersistenceError{Op: "delete", Kind: kind, Err: err}
	}
	return nil
}

// DeleteAll implements Store.
func (r *SQLiteRepository) DeleteAll(ctx context.Context, kind core.Kind) error {
	table, ok := tables[kind]
	if !ok {
		return &core.PersistenceError{Op: "delete all", Kind: kind, Err: errors.New("unknown entity kind")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.writer(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return &core.PersistenceError{Op: "delete all", Kind: kind, Err: err}
	}
	n, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Staged delete of all records", "kind", kind, "rows", n)
	return nil
}

// Commit implements Store. Committing with nothing staged is a no-op.
func (r *SQLiteRepository) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tx == nil {
		return nil
	}
	err := r.tx.Commit()
	r.tx = nil
	if err != nil {
		return &core.PersistenceError{Op: "commit", Err: err}
	}
	slog.DebugContext(ctx, "Committed ledger changes", "db", r.dbPath)
	return nil
}

// Rollback implements Store.
func (r *SQLiteRepository) Rollback() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tx == nil {
		return nil
	}
	err := r.tx.Rollback()
	r.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &core.PersistenceError{Op: "rollback", Err: err}
	}
	return nil
}

// SaveUser implements UserRecorder. The user is written immediately unless a
// unit of work is already open, in which case it joins it.
func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) error {
	r.mu.Lock()
	pending := r.tx != nil
	r.mu.Unlock()

	if err := r.Insert(ctx, u); err != nil {
		return err
	}
	if pending {
		return nil
	}
	return r.Commit(ctx)
}

// FetchAll implements Store.
func (r *SQLiteRepository) FetchAll(ctx context.Context, kind core.Kind) ([]core.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.reader()
	var (
		out []core.Entity
		err error
	)
	switch kind {
	case core.KindCategory:
		out, err = fetchCategories(ctx, q)
	case core.KindTransaction:
		out, err = fetchTransactions(ctx, q)
	case core.KindBudget:
		out, err = fetchBudgets(ctx, q)
	case core.KindGoal:
		out, err = fetchGoals(ctx, q)
	case core.KindUser:
		out, err = fetchUsers(ctx, q)
	default:
		err = errors.New("unknown entity kind")
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "fetch", Kind: kind, Err: err}
	}
	return out, nil
}

func fetchCategories(ctx context.Context, q execQuerier) ([]core.Entity, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, icon, color, type FROM categories ORDER BY type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			c  core.Category
			ct string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &ct); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(ct)
		out = append(out, c)
	}
	return out, rows.Err()
}

func fetchTransactions(ctx context.Context, q execQuerier) ([]core.Entity, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, amount, title, date, category_id, type, notes, is_recurring, recurring_frequency
		FROM transactions ORDER BY date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			t            core.Transaction
			amount, date string
			txType       string
			frequency    sql.NullString
		)
		if err := rows.Scan(&t.ID, &amount, &t.Title, &date, &t.CategoryID, &txType, &t.Notes, &t.IsRecurring, &frequency); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		t.Type = core.TransactionType(txType)
		t.RecurringFrequency = core.RecurringFrequency(frequency.String)
		out = append(out, t)
	}
	return out, rows.Err()
}

func fetchBudgets(ctx context.Context, q execQuerier) ([]core.Entity, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, category_id, amount, period, start_date, created_at, superseded_by
		FROM budgets ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			b                           core.Budget
			amount, period, start, made string
		)
		if err := rows.Scan(&b.ID, &b.CategoryID, &amount, &period, &start, &made, &b.SupersededBy); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("budget %s amount: %w", b.ID, err)
		}
		if b.StartDate, err = core.ParseDate(start); err != nil {
			return nil, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		if b.CreatedAt, err = parseTime(made); err != nil {
			return nil, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		b.Period = core.BudgetPeriod(period)
		out = append(out, b)
	}
	return out, rows.Err()
}

func fetchGoals(ctx context.Context, q execQuerier) ([]core.Entity, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, target_amount, current_amount, target_date, created_at
		FROM financial_goals ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			g               core.FinancialGoal
			target, current string
			targetDate      sql.NullString
			made            string
		)
		if err := rows.Scan(&g.ID, &g.Name, &target, &current, &targetDate, &made); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %s target: %w", g.ID, err)
		}
		if g.CurrentAmount, err = decimal.NewFromString(current); err != nil {
			return nil, fmt.Errorf("goal %s current: %w", g.ID, err)
		}
		if targetDate.Valid {
			if g.TargetDate, err = core.ParseDate(targetDate.String); err != nil {
				return nil, fmt.Errorf("goal %s: %w", g.ID, err)
			}
		}
		if g.CreatedAt, err = parseTime(made); err != nil {
			return nil, fmt.Errorf("goal %s: %w", g.ID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func fetchUsers(ctx context.Context, q execQuerier) ([]core.Entity, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, email, profile_image, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			u    core.User
			made string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.ProfileImage, &made); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.CreatedAt, err = parseTime(made); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
