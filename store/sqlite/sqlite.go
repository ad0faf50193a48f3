/*
Package sqlite provides the SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists accounts, debts, transactions, and budgets. The same SQL shapes
  apply to PostgreSQL with minor dialect changes.

KEY TABLES:
  accounts:      cached balance per (account_number, fi_code)
  debts:         cached remaining principal and installment counter
  transactions:  the transaction rows the balances must stay in sync with
  budgets:       cached per-month spending per expense type

ATOMIC UNITS:
  WithTx wraps a database transaction. Every read and write the callback
  performs goes through that transaction, so balance checks inside a unit
  see the unit's own uncommitted writes. A store-level mutex serializes
  units; SQLite allows one writer at a time anyway.

DECIMALS:
  Monetary columns are stored as TEXT decimal strings and summed in Go with
  shopspring/decimal. SQLite's numeric affinity is float-based and is never
  used for money arithmetic.

ERRORS:
  Unique-key violations map to ledger.ErrConflict; other database failures
  wrap ledger.ErrStoreUnavailable.

WAL MODE:
  The database is opened with WAL journaling: readers don't block, a single
  writer at a time, better crash recovery.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

const monthFormat = "2006-01"

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and with
	// ":memory:" every pooled connection would otherwise get its own
	// database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		account_number TEXT NOT NULL,
		fi_code TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		display_name TEXT,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (account_number, fi_code)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);

	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		fi_code TEXT,
		loan_principal TEXT NOT NULL,
		loan_balance TEXT NOT NULL,
		current_installment INTEGER NOT NULL DEFAULT 0,
		total_installments INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_debts_owner ON debts(owner_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		datetime TEXT NOT NULL,
		category TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		sender_account_number TEXT,
		sender_fi_code TEXT,
		receiver_account_number TEXT,
		receiver_fi_code TEXT,
		debt_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Owner listing and month aggregation (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_owner_datetime
		ON transactions(owner_id, datetime DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_sender
		ON transactions(sender_account_number, sender_fi_code)
		WHERE sender_account_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_receiver
		ON transactions(receiver_account_number, receiver_fi_code)
		WHERE receiver_account_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_debt
		ON transactions(debt_id) WHERE debt_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS budgets (
		owner_id TEXT NOT NULL,
		expense_type TEXT NOT NULL,
		month TEXT NOT NULL,
		monthly_limit TEXT NOT NULL,
		current_spending TEXT NOT NULL,
		PRIMARY KEY (owner_id, expense_type, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so every operation can
// run inside or outside a WithTx unit.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. All reads and writes in
// fn go through the transaction, so the unit sees its own writes.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{parent: s, tx: sqlTx}); err != nil {
		return err
	}
	return storeErr(sqlTx.Commit())
}

// txStore routes every Store call through the open transaction.
type txStore struct {
	parent *Store
	tx     *sql.Tx
}

func (t *txStore) GetAccount(ctx context.Context, ref ledger.AccountRef) (*ledger.Account, error) {
	return t.parent.getAccount(ctx, t.tx, ref)
}
func (t *txStore) SaveAccount(ctx context.Context, a *ledger.Account) error {
	return t.parent.saveAccount(ctx, t.tx, a)
}
func (t *txStore) ListAccounts(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	return t.parent.listAccounts(ctx, t.tx, ownerID)
}
func (t *txStore) ApplyAccountDelta(ctx context.Context, ref ledger.AccountRef, delta decimal.Decimal) (*ledger.Account, error) {
	return t.parent.applyAccountDelta(ctx, t.tx, ref, delta)
}
func (t *txStore) GetDebt(ctx context.Context, id string) (*ledger.Debt, error) {
	return t.parent.getDebt(ctx, t.tx, id)
}
func (t *txStore) SaveDebt(ctx context.Context, d *ledger.Debt) error {
	return t.parent.saveDebt(ctx, t.tx, d)
}
func (t *txStore) ListDebts(ctx context.Context, ownerID string) ([]ledger.Debt, error) {
	return t.parent.listDebts(ctx, t.tx, ownerID)
}
func (t *txStore) ApplyDebtDelta(ctx context.Context, id string, balanceDelta decimal.Decimal, installmentDelta int) (*ledger.Debt, error) {
	return t.parent.applyDebtDelta(ctx, t.tx, id, balanceDelta, installmentDelta)
}
func (t *txStore) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return t.parent.insertTransaction(ctx, t.tx, tx)
}
func (t *txStore) FindTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	return t.parent.findTransaction(ctx, t.tx, id)
}
func (t *txStore) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return t.parent.updateTransaction(ctx, t.tx, tx)
}
func (t *txStore) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return t.parent.deleteTransaction(ctx, t.tx, id)
}
func (t *txStore) ListTransactions(ctx context.Context, ownerID string) ([]ledger.Transaction, error) {
	return t.parent.listTransactions(ctx, t.tx, ownerID)
}
func (t *txStore) ListTransactionsByAccount(ctx context.Context, ref ledger.AccountRef) ([]ledger.Transaction, error) {
	return t.parent.listTransactionsByAccount(ctx, t.tx, ref)
}
func (t *txStore) SumExpensesByTypeMonth(ctx context.Context, ownerID, expenseType string, month time.Time) (decimal.Decimal, error) {
	return t.parent.sumExpensesByTypeMonth(ctx, t.tx, ownerID, expenseType, month)
}
func (t *txStore) MonthlyTotals(ctx context.Context, ownerID string, months int) ([]ledger.MonthlyTotal, error) {
	return t.parent.monthlyTotals(ctx, t.tx, ownerID, months)
}
func (t *txStore) GetBudget(ctx context.Context, ownerID, expenseType string, month time.Time) (*ledger.Budget, error) {
	return t.parent.getBudget(ctx, t.tx, ownerID, expenseType, month)
}
func (t *txStore) UpsertBudget(ctx context.Context, b *ledger.Budget) error {
	return t.parent.upsertBudget(ctx, t.tx, b)
}
func (t *txStore) SetBudgetSpending(ctx context.Context, ownerID, expenseType string, month time.Time, spending decimal.Decimal) error {
	return t.parent.setBudgetSpending(ctx, t.tx, ownerID, expenseType, month, spending)
}
func (t *txStore) ListBudgets(ctx context.Context, ownerID string) ([]ledger.Budget, error) {
	return t.parent.listBudgets(ctx, t.tx, ownerID)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, ref ledger.AccountRef) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccount(ctx, s.db, ref)
}

func (s *Store) getAccount(ctx context.Context, q querier, ref ledger.AccountRef) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT account_number, fi_code, owner_id, display_name, balance, created_at
		 FROM accounts WHERE account_number = ? AND fi_code = ?`,
		ref.AccountNumber, ref.FICode)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return a, nil
}

func scanAccount(r rowScanner) (*ledger.Account, error) {
	var (
		a           ledger.Account
		displayName sql.NullString
		balance     string
		createdAt   string
	)
	if err := r.Scan(&a.AccountNumber, &a.FICode, &a.OwnerID, &displayName, &balance, &createdAt); err != nil {
		return nil, err
	}
	a.DisplayName = displayName.String
	a.Balance = parseDecimal(balance)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccount(ctx, s.db, a)
}

func (s *Store) saveAccount(ctx context.Context, q querier, a *ledger.Account) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO accounts (account_number, fi_code, owner_id, display_name, balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.AccountNumber, a.FICode, a.OwnerID, nullString(a.DisplayName),
		a.Balance.String(), a.CreatedAt.UTC().Format(time.RFC3339))
	return storeErr(err)
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAccounts(ctx, s.db, ownerID)
}

func (s *Store) listAccounts(ctx context.Context, q querier, ownerID string) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT account_number, fi_code, owner_id, display_name, balance, created_at
		 FROM accounts WHERE owner_id = ? ORDER BY account_number, fi_code`, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, storeErr(rows.Err())
}

func (s *Store) ApplyAccountDelta(ctx context.Context, ref ledger.AccountRef, delta decimal.Decimal) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyAccountDelta(ctx, s.db, ref, delta)
}

func (s *Store) applyAccountDelta(ctx context.Context, q querier, ref ledger.AccountRef, delta decimal.Decimal) (*ledger.Account, error) {
	a, err := s.getAccount(ctx, q, ref)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &ledger.NotFoundError{Resource: "bank account", Key: ref.String()}
	}

	a.Balance = a.Balance.Add(delta)
	_, err = q.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE account_number = ? AND fi_code = ?`,
		a.Balance.String(), ref.AccountNumber, ref.FICode)
	if err != nil {
		return nil, storeErr(err)
	}
	return a, nil
}

// =============================================================================
// DEBTS
// =============================================================================

func (s *Store) GetDebt(ctx context.Context, id string) (*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDebt(ctx, s.db, id)
}

func (s *Store) getDebt(ctx context.Context, q querier, id string) (*ledger.Debt, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, fi_code, loan_principal, loan_balance,
		        current_installment, total_installments, created_at
		 FROM debts WHERE id = ?`, id)

	d, err := scanDebt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return d, nil
}

func scanDebt(r rowScanner) (*ledger.Debt, error) {
	var (
		d         ledger.Debt
		fiCode    sql.NullString
		principal string
		balance   string
		createdAt string
	)
	if err := r.Scan(&d.ID, &d.OwnerID, &d.Name, &fiCode, &principal, &balance,
		&d.CurrentInstallment, &d.TotalInstallments, &createdAt); err != nil {
		return nil, err
	}
	d.FICode = fiCode.String
	d.LoanPrincipal = parseDecimal(principal)
	d.LoanBalance = parseDecimal(balance)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func (s *Store) SaveDebt(ctx context.Context, d *ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveDebt(ctx, s.db, d)
}

func (s *Store) saveDebt(ctx context.Context, q querier, d *ledger.Debt) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO debts (id, owner_id, name, fi_code, loan_principal, loan_balance,
		                    current_installment, total_installments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.Name, nullString(d.FICode),
		d.LoanPrincipal.String(), d.LoanBalance.String(),
		d.CurrentInstallment, d.TotalInstallments,
		d.CreatedAt.UTC().Format(time.RFC3339))
	return storeErr(err)
}

func (s *Store) ListDebts(ctx context.Context, ownerID string) ([]ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDebts(ctx, s.db, ownerID)
}

func (s *Store) listDebts(ctx context.Context, q querier, ownerID string) ([]ledger.Debt, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, owner_id, name, fi_code, loan_principal, loan_balance,
		        current_installment, total_installments, created_at
		 FROM debts WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var debts []ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		debts = append(debts, *d)
	}
	return debts, storeErr(rows.Err())
}

func (s *Store) ApplyDebtDelta(ctx context.Context, id string, balanceDelta decimal.Decimal, installmentDelta int) (*ledger.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyDebtDelta(ctx, s.db, id, balanceDelta, installmentDelta)
}

func (s *Store) applyDebtDelta(ctx context.Context, q querier, id string, balanceDelta decimal.Decimal, installmentDelta int) (*ledger.Debt, error) {
	d, err := s.getDebt(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &ledger.NotFoundError{Resource: "debt", Key: id}
	}

	d.LoanBalance = d.LoanBalance.Add(balanceDelta)
	d.CurrentInstallment += installmentDelta
	_, err = q.ExecContext(ctx,
		`UPDATE debts SET loan_balance = ?, current_installment = ? WHERE id = ?`,
		d.LoanBalance.String(), d.CurrentInstallment, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return d, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, owner_id, datetime, category, tx_type, amount, note,
	sender_account_number, sender_fi_code, receiver_account_number, receiver_fi_code,
	debt_id, created_at, updated_at`

func (s *Store) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(ctx, s.db, tx)
}

func (s *Store) insertTransaction(ctx context.Context, q querier, tx *ledger.Transaction) error {
	sender := splitRef(tx.Sender)
	receiver := splitRef(tx.Receiver)

	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, tx.Datetime.UTC().Format(time.RFC3339),
		tx.Category, tx.Type, tx.Amount.String(), nullString(tx.Note),
		sender[0], sender[1], receiver[0], receiver[1], nullString(tx.DebtID),
		tx.CreatedAt.UTC().Format(time.RFC3339), tx.UpdatedAt.UTC().Format(time.RFC3339))
	return storeErr(err)
}

func (s *Store) FindTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findTransaction(ctx, s.db, id)
}

func (s *Store) findTransaction(ctx context.Context, q querier, id ledger.TransactionID) (*ledger.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return tx, nil
}

func scanTransaction(r rowScanner) (*ledger.Transaction, error) {
	var (
		tx                   ledger.Transaction
		datetime             string
		amount               string
		note                 sql.NullString
		senderNum, senderFI  sql.NullString
		recvNum, recvFI      sql.NullString
		debtID               sql.NullString
		createdAt, updatedAt string
	)
	if err := r.Scan(&tx.ID, &tx.OwnerID, &datetime, &tx.Category, &tx.Type, &amount, &note,
		&senderNum, &senderFI, &recvNum, &recvFI, &debtID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	tx.Datetime = parseTime(datetime)
	tx.Amount = parseDecimal(amount)
	tx.Note = note.String
	tx.DebtID = debtID.String
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)
	if senderNum.Valid {
		tx.Sender = &ledger.AccountRef{AccountNumber: senderNum.String, FICode: senderFI.String}
	}
	if recvNum.Valid {
		tx.Receiver = &ledger.AccountRef{AccountNumber: recvNum.String, FICode: recvFI.String}
	}
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTransaction(ctx, s.db, tx)
}

func (s *Store) updateTransaction(ctx context.Context, q querier, tx *ledger.Transaction) error {
	sender := splitRef(tx.Sender)
	receiver := splitRef(tx.Receiver)

	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET datetime = ?, category = ?, tx_type = ?, amount = ?, note = ?,
		        sender_account_number = ?, sender_fi_code = ?,
		        receiver_account_number = ?, receiver_fi_code = ?,
		        debt_id = ?, updated_at = ?
		 WHERE id = ?`,
		tx.Datetime.UTC().Format(time.RFC3339), tx.Category, tx.Type, tx.Amount.String(),
		nullString(tx.Note), sender[0], sender[1], receiver[0], receiver[1],
		nullString(tx.DebtID), tx.UpdatedAt.UTC().Format(time.RFC3339), tx.ID)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Resource: "transaction", Key: string(tx.ID)}
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTransaction(ctx, s.db, id)
}

func (s *Store) deleteTransaction(ctx context.Context, q querier, id ledger.TransactionID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Resource: "transaction", Key: string(id)}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransactions(ctx, s.db, ownerID)
}

func (s *Store) listTransactions(ctx context.Context, q querier, ownerID string) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx, q,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE owner_id = ? ORDER BY datetime DESC, created_at DESC`, ownerID)
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, ref ledger.AccountRef) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransactionsByAccount(ctx, s.db, ref)
}

func (s *Store) listTransactionsByAccount(ctx context.Context, q querier, ref ledger.AccountRef) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx, q,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE (sender_account_number = ? AND sender_fi_code = ?)
		    OR (receiver_account_number = ? AND receiver_fi_code = ?)
		 ORDER BY datetime DESC, created_at DESC`,
		ref.AccountNumber, ref.FICode, ref.AccountNumber, ref.FICode)
}

func (s *Store) queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		txs = append(txs, *tx)
	}
	return txs, storeErr(rows.Err())
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (s *Store) SumExpensesByTypeMonth(ctx context.Context, ownerID, expenseType string, month time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumExpensesByTypeMonth(ctx, s.db, ownerID, expenseType, month)
}

func (s *Store) sumExpensesByTypeMonth(ctx context.Context, q querier, ownerID, expenseType string, month time.Time) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT amount FROM transactions
		 WHERE owner_id = ? AND category = ? AND tx_type = ?
		   AND strftime('%Y-%m', datetime) = ?`,
		ownerID, ledger.CategoryExpense, expenseType,
		ledger.MonthOf(month).Format(monthFormat))
	if err != nil {
		return decimal.Zero, storeErr(err)
	}
	defer rows.Close()

	// Summed in Go to keep decimal exactness.
	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, storeErr(err)
		}
		sum = sum.Add(parseDecimal(amount))
	}
	return sum, storeErr(rows.Err())
}

func (s *Store) MonthlyTotals(ctx context.Context, ownerID string, months int) ([]ledger.MonthlyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monthlyTotals(ctx, s.db, ownerID, months)
}

func (s *Store) monthlyTotals(ctx context.Context, q querier, ownerID string, months int) ([]ledger.MonthlyTotal, error) {
	current := ledger.MonthOf(time.Now())
	oldest := current.AddDate(0, -(months - 1), 0)

	rows, err := q.QueryContext(ctx,
		`SELECT datetime, category, amount FROM transactions
		 WHERE owner_id = ? AND datetime >= ?`,
		ownerID, oldest.Format(time.RFC3339))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	totals := make([]ledger.MonthlyTotal, months)
	index := make(map[time.Time]int, months)
	for i := 0; i < months; i++ {
		month := current.AddDate(0, -i, 0)
		totals[i] = ledger.MonthlyTotal{Month: month, Income: decimal.Zero, Expense: decimal.Zero}
		index[month] = i
	}

	for rows.Next() {
		var datetime, category, amount string
		if err := rows.Scan(&datetime, &category, &amount); err != nil {
			return nil, storeErr(err)
		}
		i, ok := index[ledger.MonthOf(parseTime(datetime))]
		if !ok {
			continue
		}
		switch ledger.Category(category) {
		case ledger.CategoryIncome:
			totals[i].Income = totals[i].Income.Add(parseDecimal(amount))
		case ledger.CategoryExpense:
			totals[i].Expense = totals[i].Expense.Add(parseDecimal(amount))
		}
	}
	return totals, storeErr(rows.Err())
}

// =============================================================================
// BUDGETS
// =============================================================================

func (s *Store) GetBudget(ctx context.Context, ownerID, expenseType string, month time.Time) (*ledger.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBudget(ctx, s.db, ownerID, expenseType, month)
}

func (s *Store) getBudget(ctx context.Context, q querier, ownerID, expenseType string, month time.Time) (*ledger.Budget, error) {
	row := q.QueryRowContext(ctx,
		`SELECT owner_id, expense_type, month, monthly_limit, current_spending
		 FROM budgets WHERE owner_id = ? AND expense_type = ? AND month = ?`,
		ownerID, expenseType, ledger.MonthOf(month).Format(monthFormat))

	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return b, nil
}

func scanBudget(r rowScanner) (*ledger.Budget, error) {
	var (
		b        ledger.Budget
		month    string
		limit    string
		spending string
	)
	if err := r.Scan(&b.OwnerID, &b.ExpenseType, &month, &limit, &spending); err != nil {
		return nil, err
	}
	m, _ := time.ParseInLocation(monthFormat, month, time.UTC)
	b.Month = m
	b.MonthlyLimit = parseDecimal(limit)
	b.CurrentSpending = parseDecimal(spending)
	return &b, nil
}

func (s *Store) UpsertBudget(ctx context.Context, b *ledger.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertBudget(ctx, s.db, b)
}

func (s *Store) upsertBudget(ctx context.Context, q querier, b *ledger.Budget) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO budgets (owner_id, expense_type, month, monthly_limit, current_spending)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, expense_type, month) DO UPDATE SET
		 	monthly_limit = excluded.monthly_limit,
		 	current_spending = excluded.current_spending`,
		b.OwnerID, b.ExpenseType, ledger.MonthOf(b.Month).Format(monthFormat),
		b.MonthlyLimit.String(), b.CurrentSpending.String())
	return storeErr(err)
}

func (s *Store) SetBudgetSpending(ctx context.Context, ownerID, expenseType string, month time.Time, spending decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setBudgetSpending(ctx, s.db, ownerID, expenseType, month, spending)
}

func (s *Store) setBudgetSpending(ctx context.Context, q querier, ownerID, expenseType string, month time.Time, spending decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		`UPDATE budgets SET current_spending = ?
		 WHERE owner_id = ? AND expense_type = ? AND month = ?`,
		spending.String(), ownerID, expenseType, ledger.MonthOf(month).Format(monthFormat))
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Resource: "budget", Key: expenseType}
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, ownerID string) ([]ledger.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBudgets(ctx, s.db, ownerID)
}

func (s *Store) listBudgets(ctx context.Context, q querier, ownerID string) ([]ledger.Budget, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT owner_id, expense_type, month, monthly_limit, current_spending
		 FROM budgets WHERE owner_id = ? ORDER BY month, expense_type`, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var budgets []ledger.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		budgets = append(budgets, *b)
	}
	return budgets, storeErr(rows.Err())
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

func splitRef(r *ledger.AccountRef) [2]sql.NullString {
	if r == nil {
		return [2]sql.NullString{}
	}
	return [2]sql.NullString{nullString(r.AccountNumber), nullString(r.FICode)}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key") {
		return ledger.ErrConflict
	}
	return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
}
