/*
Package ledger implements the transaction ledger consistency engine.

PURPOSE:
  This package keeps every bank account's cached balance and every debt's
  cached remaining principal exactly synchronized with the set of recorded
  transactions. Transactions are created, updated, and deleted through the
  Engine; the Engine computes the monetary effect of each mutation and
  applies (or reverses) it against the referenced accounts and debts inside
  one atomic store unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: a single Income/Expense/Transfer record with optional
    sender/receiver account references and an optional debt reference
  - Account: a bank account identified by (account number, FI code) with a
    cached balance
  - Debt: a loan with cached remaining principal and installment counter
  - Budget: a per-month spending cap with a cached spending figure

INVARIANTS:
  - Account.Balance == initial balance + sum of signed effects of all live
    transactions referencing the account
  - Balances are mutated only by the Engine's apply/reverse paths
  - All monetary values are decimal.Decimal, never floats

SEE ALSO:
  - effect.go: category/role to signed delta mapping
  - engine.go: create/update/delete orchestration
  - store.go: persistence interfaces
*/
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORIES AND ROLES
// =============================================================================

// Category is the closed set of transaction categories.
type Category string

const (
	CategoryIncome   Category = "Income"
	CategoryExpense  Category = "Expense"
	CategoryTransfer Category = "Transfer"
)

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryIncome, CategoryExpense, CategoryTransfer:
		return true
	}
	return false
}

// RequiredRoles returns which account roles a category must populate.
// Expense requires sender only, Income receiver only, Transfer both.
func (c Category) RequiredRoles() (sender, receiver bool) {
	switch c {
	case CategoryIncome:
		return false, true
	case CategoryExpense:
		return true, false
	case CategoryTransfer:
		return true, true
	}
	return false, false
}

// Role identifies which side of a transaction an account plays.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string

// NewTransactionID returns a fresh v4 UUID transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// ValidTransactionID reports whether id parses as a v4 UUID.
func ValidTransactionID(id TransactionID) bool {
	u, err := uuid.Parse(string(id))
	return err == nil && u.Version() == 4
}

// AccountRef identifies a bank account by its composite key.
type AccountRef struct {
	AccountNumber string `json:"account_number"`
	FICode        string `json:"fi_code"`
}

// Normalize strips formatting characters from the account number so that
// "123-456-7890" and "1234567890" resolve to the same account.
func (r AccountRef) Normalize() AccountRef {
	var b strings.Builder
	for _, c := range r.AccountNumber {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return AccountRef{AccountNumber: b.String(), FICode: strings.TrimSpace(r.FICode)}
}

func (r AccountRef) IsZero() bool {
	return r.AccountNumber == "" && r.FICode == ""
}

func (r AccountRef) String() string {
	return r.AccountNumber + "/" + r.FICode
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is a single recorded money movement. Sender and Receiver are
// populated according to the category's required roles; DebtID is set only
// for Expense transactions of type "Debt Payment".
type Transaction struct {
	ID       TransactionID
	OwnerID  string
	Datetime time.Time
	Category Category
	Type     string
	Amount   decimal.Decimal
	Note     string
	Sender   *AccountRef
	Receiver *AccountRef
	DebtID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy. Account refs are copied so that patching the
// clone never aliases the original's references.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Sender != nil {
		s := *t.Sender
		c.Sender = &s
	}
	if t.Receiver != nil {
		r := *t.Receiver
		c.Receiver = &r
	}
	return &c
}

// ValidAmount reports whether a is positive with at most two fractional digits.
func ValidAmount(a decimal.Decimal) bool {
	return a.IsPositive() && a.Equal(a.Round(2))
}

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is a user-owned bank account. Balance is a cache over the
// transaction history and is mutated only by the Engine.
type Account struct {
	AccountNumber string
	FICode        string
	OwnerID       string
	DisplayName   string
	Balance       decimal.Decimal
	CreatedAt     time.Time
}

func (a *Account) Ref() AccountRef {
	return AccountRef{AccountNumber: a.AccountNumber, FICode: a.FICode}
}

// =============================================================================
// DEBT
// =============================================================================

// Debt is a user-owned loan. LoanBalance is the cached remaining principal;
// CurrentInstallment counts applied debt payments. Both are mutated only
// alongside the referencing transaction's lifecycle.
type Debt struct {
	ID                 string
	OwnerID            string
	Name               string
	FICode             string
	LoanPrincipal      decimal.Decimal
	LoanBalance        decimal.Decimal
	CurrentInstallment int
	TotalInstallments  int
	CreatedAt          time.Time
}

// =============================================================================
// BUDGET
// =============================================================================

// Budget caps spending for one expense type in one month. CurrentSpending is
// a cache reconciled lazily on read against the transaction store.
type Budget struct {
	OwnerID         string
	ExpenseType     string
	Month           time.Time
	MonthlyLimit    decimal.Decimal
	CurrentSpending decimal.Decimal
}

// MonthOf truncates t to the first instant of its month in UTC. Budgets and
// monthly summaries key on this value.
func MonthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthlyTotal is one month's income/expense aggregate for summaries.
type MonthlyTotal struct {
	Month   time.Time
	Income  decimal.Decimal
	Expense decimal.Decimal
}
