/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Persists the ledger, the balance aggregate and the engine's records
  (organizations, variants, workflows, requests, employees, assignments).
  In production the same patterns apply to PostgreSQL with minor dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - DELETE only for pending_deduction rows (display-only, rebuilt by sync)

KEY TABLES:
  transactions:    Ledger of all balance changes
  leave_balances:  Materialized balance, UNIQUE(user, variant, year, org)
  requests:        Leave / PTO / comp-off requests with pinned workflow
                   steps and approval history as JSON
  leave_variants, workflows, organizations, employees, assignments

CONCURRENCY:
  One open connection. WithTx serializes writers and hands the callback a
  view whose every query runs on the *sql.Tx, so a transaction never waits
  on the connection it is holding.

TIMESTAMPS:
  Stored as fixed-width UTC text so lexical order is time order.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := leave.NewEngine(store)

MIGRATION:
  Schema is created on New(). Statements are static; there is no runtime
  column introspection.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements leave.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex
}

// queries holds every statement. Store runs them on the pool; WithTx runs
// them on the transaction.
type queries struct {
	q querier
}

var (
	_ leave.TxStore = (*Store)(nil)
	_ leave.Store   = (*queries)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per connection; file databases have one writer
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		tx_subtype TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		leave_request_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Balance lookups and P1 checks (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_balance
		ON transactions(org_id, user_id, variant_id, year, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_request
		ON transactions(leave_request_id) WHERE leave_request_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);

	-- Balance aggregate
	CREATE TABLE IF NOT EXISTS leave_balances (
		user_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		org_id TEXT NOT NULL,
		total_entitlement TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		used_balance TEXT NOT NULL,
		carry_forward TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, variant_id, year, org_id)
	);

	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		effective_date TEXT
	);

	CREATE TABLE IF NOT EXISTS leave_variants (
		id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		paid_days_in_year TEXT NOT NULL,
		grant_leaves TEXT NOT NULL,
		grant_frequency TEXT NOT NULL,
		pro_rata_calculation TEXT NOT NULL,
		onboarding_slabs_json TEXT NOT NULL DEFAULT '[]',
		deduction_before BOOLEAN NOT NULL DEFAULT FALSE,
		deduction_after BOOLEAN NOT NULL DEFAULT FALSE,
		deduction_not_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (org_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_variants_leave_type
		ON leave_variants(org_id, leave_type_id);

	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		process TEXT NOT NULL,
		sub_processes_json TEXT NOT NULL DEFAULT '[]',
		steps_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (org_id, id)
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		working_days TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		workflow_id TEXT NOT NULL DEFAULT '',
		workflow_steps_json TEXT NOT NULL DEFAULT '[]',
		current_step INTEGER NOT NULL,
		workflow_status TEXT NOT NULL,
		history_json TEXT NOT NULL DEFAULT '[]',
		scheduled_auto_approval_at TEXT,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejected_by TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_user
		ON requests(org_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	-- Time-based approval sweep
	CREATE INDEX IF NOT EXISTS idx_requests_due
		ON requests(scheduled_auto_approval_at) WHERE scheduled_auto_approval_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		employee_number TEXT NOT NULL DEFAULT '',
		joining_date TEXT,
		PRIMARY KEY (org_id, id)
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		variant_id TEXT NOT NULL,
		assignment_type TEXT NOT NULL,
		UNIQUE(org_id, user_id, variant_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset deletes all data. For tests and demo resets.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"transactions", "leave_balances", "requests", "assignments",
		"employees", "workflows", "leave_variants", "organizations",
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to reset %s: %w", t, err)
		}
	}
	return nil
}

// =============================================================================
// LEDGER (generic.LedgerStore interface)
// =============================================================================

const transactionColumns = `id, org_id, user_id, variant_id, year, tx_type, tx_subtype, amount,
	balance_after, description, leave_request_id, created_by, created_at`

func (s *queries) AppendTransaction(ctx context.Context, tx generic.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		tx.ID, tx.OrgID, tx.UserID, tx.VariantID, tx.Year,
		tx.Type, tx.Subtype, tx.Amount.String(), tx.BalanceAfter.String(),
		tx.Description, nullString(tx.LeaveRequestID), tx.CreatedBy,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *queries) ListTransactions(ctx context.Context, f generic.TransactionFilter) ([]generic.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	if f.OrgID != "" {
		add("org_id = ?", f.OrgID)
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.VariantID != "" {
		add("variant_id = ?", f.VariantID)
	}
	if f.Year != 0 {
		add("year = ?", f.Year)
	}
	if f.LeaveRequestID != "" {
		add("leave_request_id = ?", f.LeaveRequestID)
	}
	if len(f.Types) > 0 {
		where = append(where, "tx_type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx           generic.Transaction
		amount       string
		balanceAfter string
		requestID    sql.NullString
		createdAt    string
	)
	err := rows.Scan(
		&tx.ID, &tx.OrgID, &tx.UserID, &tx.VariantID, &tx.Year,
		&tx.Type, &tx.Subtype, &amount, &balanceAfter,
		&tx.Description, &requestID, &tx.CreatedBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if tx.Amount, err = parseDecimal("transactions.amount", string(tx.ID), amount); err != nil {
		return tx, err
	}
	if tx.BalanceAfter, err = parseDecimal("transactions.balance_after", string(tx.ID), balanceAfter); err != nil {
		return tx, err
	}
	tx.LeaveRequestID = requestID.String
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

func (s *queries) PurgeTransactions(ctx context.Context, ids []generic.TransactionID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	var other int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE id IN (`+in+`) AND tx_type != 'pending_deduction'`,
		args...,
	).Scan(&other)
	if err != nil {
		return err
	}
	if other > 0 {
		return fmt.Errorf("%w: only pending_deduction transactions can be purged", generic.ErrInvalidInput)
	}

	_, err = s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id IN (`+in+`)`, args...)
	return err
}

// =============================================================================
// BALANCES (generic.BalanceStore interface)
// =============================================================================

const balanceColumns = `user_id, variant_id, year, org_id, total_entitlement, current_balance,
	used_balance, carry_forward, updated_at`

func (s *queries) GetBalance(ctx context.Context, key generic.BalanceKey) (generic.Balance, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM leave_balances
		 WHERE user_id = ? AND variant_id = ? AND year = ? AND org_id = ?`,
		key.UserID, key.VariantID, key.Year, key.OrgID,
	)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Balance{}, generic.ErrBalanceNotFound
	}
	return b, err
}

func (s *queries) SaveBalance(ctx context.Context, b generic.Balance) error {
	query := `
		INSERT INTO leave_balances (` + balanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, variant_id, year, org_id) DO UPDATE SET
			total_entitlement = excluded.total_entitlement,
			current_balance = excluded.current_balance,
			used_balance = excluded.used_balance,
			carry_forward = excluded.carry_forward,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		b.Key.UserID, b.Key.VariantID, b.Key.Year, b.Key.OrgID,
		b.TotalEntitlement.String(), b.CurrentBalance.String(),
		b.UsedBalance.String(), b.CarryForward.String(),
		formatTime(b.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateBalance
	}
	return err
}

func (s *queries) ListBalances(ctx context.Context, f generic.BalanceFilter) ([]generic.Balance, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM leave_balances
		 WHERE (? = '' OR org_id = ?) AND (? = '' OR user_id = ?)
		   AND (? = '' OR variant_id = ?) AND (? = 0 OR year = ?)
		 ORDER BY user_id, variant_id, year`,
		f.OrgID, f.OrgID, f.UserID, f.UserID, f.VariantID, f.VariantID, f.Year, f.Year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var out []generic.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBalance(row scanner) (generic.Balance, error) {
	var (
		b                                  generic.Balance
		total, current, used, carryForward string
		updatedAt                          string
	)
	err := row.Scan(
		&b.Key.UserID, &b.Key.VariantID, &b.Key.Year, &b.Key.OrgID,
		&total, &current, &used, &carryForward, &updatedAt,
	)
	if err != nil {
		return b, err
	}
	columns := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"total_entitlement", total, &b.TotalEntitlement},
		{"current_balance", current, &b.CurrentBalance},
		{"used_balance", used, &b.UsedBalance},
		{"carry_forward", carryForward, &b.CarryForward},
	}
	for _, c := range columns {
		if *c.dst, err = parseDecimal("leave_balances."+c.name, balanceID(b.Key), c.raw); err != nil {
			return b, err
		}
	}
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func balanceID(k generic.BalanceKey) string {
	return fmt.Sprintf("%s/%s/%s/%d", k.OrgID, k.UserID, k.VariantID, k.Year)
}

// parseDecimal decodes a stored amount. Anything that is not a finite
// decimal is reported as invalid state.
func parseDecimal(column, id, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s of %s holds %q", generic.ErrInvalidState, column, id, raw)
	}
	return d, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
