/*
store.go - Persistence interfaces for accounts, debts, transactions, budgets

PURPOSE:
  Defines the boundary between the consistency engine and the database.
  Implementations: store/sqlite (production), ledger/store (in-memory).

CONTRACT:
  - Get* methods return (nil, nil) when the row is absent; the Engine turns
    that into a NotFoundError after its ownership checks.
  - Apply*Delta methods add a signed delta atomically with respect to the
    enclosing WithTx unit and return the updated row.
  - Balances and debt fields are written ONLY through Apply*Delta and the
    initial Save*. No other component writes them.

ATOMICITY:
  Every engine mutation (create/update/delete of a transaction) runs inside
  exactly one WithTx call. If fn returns an error the implementation must
  discard all writes made through the Store it passed to fn.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store bundles the account, debt, transaction, and budget persistence
// operations the engine needs.
type Store interface {
	// Accounts
	GetAccount(ctx context.Context, ref AccountRef) (*Account, error)
	SaveAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context, ownerID string) ([]Account, error)
	ApplyAccountDelta(ctx context.Context, ref AccountRef, delta decimal.Decimal) (*Account, error)

	// Debts
	GetDebt(ctx context.Context, id string) (*Debt, error)
	SaveDebt(ctx context.Context, d *Debt) error
	ListDebts(ctx context.Context, ownerID string) ([]Debt, error)
	ApplyDebtDelta(ctx context.Context, id string, balanceDelta decimal.Decimal, installmentDelta int) (*Debt, error)

	// Transactions
	InsertTransaction(ctx context.Context, tx *Transaction) error
	FindTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	DeleteTransaction(ctx context.Context, id TransactionID) error
	ListTransactions(ctx context.Context, ownerID string) ([]Transaction, error)
	ListTransactionsByAccount(ctx context.Context, ref AccountRef) ([]Transaction, error)

	// Aggregates
	SumExpensesByTypeMonth(ctx context.Context, ownerID, expenseType string, month time.Time) (decimal.Decimal, error)
	MonthlyTotals(ctx context.Context, ownerID string, months int) ([]MonthlyTotal, error)

	// Budgets
	GetBudget(ctx context.Context, ownerID, expenseType string, month time.Time) (*Budget, error)
	UpsertBudget(ctx context.Context, b *Budget) error
	SetBudgetSpending(ctx context.Context, ownerID, expenseType string, month time.Time, spending decimal.Decimal) error
	ListBudgets(ctx context.Context, ownerID string) ([]Budget, error)
}

// TxStore adds the atomic unit. Concurrent WithTx calls touching the same
// rows must serialize so balance checks always see a consistent snapshot.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error every
	// write made through the passed Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
