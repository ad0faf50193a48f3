// Package store provides an in-memory ledger.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type budgetKey struct {
	OwnerID     string
	ExpenseType string
	Month       string
}

type Memory struct {
	mu           sync.RWMutex
	accounts     map[ledger.AccountRef]ledger.Account
	debts        map[string]ledger.Debt
	transactions map[ledger.TransactionID]ledger.Transaction
	budgets      map[budgetKey]ledger.Budget
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[ledger.AccountRef]ledger.Account),
		debts:        make(map[string]ledger.Debt),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		budgets:      make(map[budgetKey]ledger.Budget),
	}
}

// WithTx executes fn within a simulated transaction: the whole state is
// snapshotted up front and restored when fn fails. The store mutex is held
// for the full unit, which serializes conflicting mutations.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[ledger.AccountRef]ledger.Account
	debts        map[string]ledger.Debt
	transactions map[ledger.TransactionID]ledger.Transaction
	budgets      map[budgetKey]ledger.Budget
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accounts:     make(map[ledger.AccountRef]ledger.Account, len(m.accounts)),
		debts:        make(map[string]ledger.Debt, len(m.debts)),
		transactions: make(map[ledger.TransactionID]ledger.Transaction, len(m.transactions)),
		budgets:      make(map[budgetKey]ledger.Budget, len(m.budgets)),
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.debts {
		s.debts[k] = v
	}
	for k, v := range m.transactions {
		s.transactions[k] = v
	}
	for k, v := range m.budgets {
		s.budgets[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.accounts = s.accounts
	m.debts = s.debts
	m.transactions = s.transactions
	m.budgets = s.budgets
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) GetAccount(ctx context.Context, ref ledger.AccountRef) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(ref)
}

func (m *Memory) getAccountLocked(ref ledger.AccountRef) (*ledger.Account, error) {
	a, ok := m.accounts[ref]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) SaveAccount(ctx context.Context, a *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAccountLocked(a)
}

func (m *Memory) saveAccountLocked(a *ledger.Account) error {
	if _, exists := m.accounts[a.Ref()]; exists {
		return ledger.ErrConflict
	}
	m.accounts[a.Ref()] = *a
	return nil
}

func (m *Memory) ListAccounts(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAccountsLocked(ownerID)
}

func (m *Memory) listAccountsLocked(ownerID string) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountNumber != out[j].AccountNumber {
			return out[i].AccountNumber < out[j].AccountNumber
		}
		return out[i].FICode < out[j].FICode
	})
	return out, nil
}

func (m *Memory) ApplyAccountDelta(ctx context.Context, ref ledger.AccountRef, delta decimal.Decimal) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyAccountDeltaLocked(ref, delta)
}

func (m *Memory) applyAccountDeltaLocked(ref ledger.AccountRef, delta decimal.Decimal) (*ledger.Account, error) {
	a, ok := m.accounts[ref]
	if !ok {
		return nil, &ledger.NotFoundError{Resource: "bank account", Key: ref.String()}
	}
	a.Balance = a.Balance.Add(delta)
	m.accounts[ref] = a
	return &a, nil
}

// =============================================================================
// DEBTS
// =============================================================================

func (m *Memory) GetDebt(ctx context.Context, id string) (*ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDebtLocked(id)
}

func (m *Memory) getDebtLocked(id string) (*ledger.Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) SaveDebt(ctx context.Context, d *ledger.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveDebtLocked(d)
}

func (m *Memory) saveDebtLocked(d *ledger.Debt) error {
	if _, exists := m.debts[d.ID]; exists {
		return ledger.ErrConflict
	}
	m.debts[d.ID] = *d
	return nil
}

func (m *Memory) ListDebts(ctx context.Context, ownerID string) ([]ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listDebtsLocked(ownerID)
}

func (m *Memory) listDebtsLocked(ownerID string) ([]ledger.Debt, error) {
	var out []ledger.Debt
	for _, d := range m.debts {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ApplyDebtDelta(ctx context.Context, id string, balanceDelta decimal.Decimal, installmentDelta int) (*ledger.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyDebtDeltaLocked(id, balanceDelta, installmentDelta)
}

func (m *Memory) applyDebtDeltaLocked(id string, balanceDelta decimal.Decimal, installmentDelta int) (*ledger.Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return nil, &ledger.NotFoundError{Resource: "debt", Key: id}
	}
	d.LoanBalance = d.LoanBalance.Add(balanceDelta)
	d.CurrentInstallment += installmentDelta
	m.debts[id] = d
	return &d, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionLocked(tx)
}

func (m *Memory) insertTransactionLocked(tx *ledger.Transaction) error {
	if _, exists := m.transactions[tx.ID]; exists {
		return ledger.ErrConflict
	}
	m.transactions[tx.ID] = *tx.Clone()
	return nil
}

func (m *Memory) FindTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findTransactionLocked(id)
}

func (m *Memory) findTransactionLocked(id ledger.TransactionID) (*ledger.Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return tx.Clone(), nil
}

func (m *Memory) UpdateTransaction(ctx context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransactionLocked(tx)
}

func (m *Memory) updateTransactionLocked(tx *ledger.Transaction) error {
	if _, ok := m.transactions[tx.ID]; !ok {
		return &ledger.NotFoundError{Resource: "transaction", Key: string(tx.ID)}
	}
	m.transactions[tx.ID] = *tx.Clone()
	return nil
}

func (m *Memory) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteTransactionLocked(id)
}

func (m *Memory) deleteTransactionLocked(id ledger.TransactionID) error {
	if _, ok := m.transactions[id]; !ok {
		return &ledger.NotFoundError{Resource: "transaction", Key: string(id)}
	}
	delete(m.transactions, id)
	return nil
}

func (m *Memory) ListTransactions(ctx context.Context, ownerID string) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsLocked(ownerID)
}

func (m *Memory) listTransactionsLocked(ownerID string) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.OwnerID == ownerID {
			out = append(out, *tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.After(out[j].Datetime) })
	return out, nil
}

func (m *Memory) ListTransactionsByAccount(ctx context.Context, ref ledger.AccountRef) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsByAccountLocked(ref)
}

func (m *Memory) listTransactionsByAccountLocked(ref ledger.AccountRef) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range m.transactions {
		if (tx.Sender != nil && *tx.Sender == ref) || (tx.Receiver != nil && *tx.Receiver == ref) {
			out = append(out, *tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.After(out[j].Datetime) })
	return out, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (m *Memory) SumExpensesByTypeMonth(ctx context.Context, ownerID, expenseType string, month time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumExpensesByTypeMonthLocked(ownerID, expenseType, month)
}

func (m *Memory) sumExpensesByTypeMonthLocked(ownerID, expenseType string, month time.Time) (decimal.Decimal, error) {
	month = ledger.MonthOf(month)
	sum := decimal.Zero
	for _, tx := range m.transactions {
		if tx.OwnerID != ownerID || tx.Category != ledger.CategoryExpense || tx.Type != expenseType {
			continue
		}
		if !ledger.MonthOf(tx.Datetime).Equal(month) {
			continue
		}
		sum = sum.Add(tx.Amount)
	}
	return sum, nil
}

func (m *Memory) MonthlyTotals(ctx context.Context, ownerID string, months int) ([]ledger.MonthlyTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monthlyTotalsLocked(ownerID, months)
}

func (m *Memory) monthlyTotalsLocked(ownerID string, months int) ([]ledger.MonthlyTotal, error) {
	current := ledger.MonthOf(time.Now())
	totals := make([]ledger.MonthlyTotal, months)
	index := make(map[time.Time]int, months)
	for i := 0; i < months; i++ {
		month := current.AddDate(0, -i, 0)
		totals[i] = ledger.MonthlyTotal{Month: month, Income: decimal.Zero, Expense: decimal.Zero}
		index[month] = i
	}

	for _, tx := range m.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		i, ok := index[ledger.MonthOf(tx.Datetime)]
		if !ok {
			continue
		}
		switch tx.Category {
		case ledger.CategoryIncome:
			totals[i].Income = totals[i].Income.Add(tx.Amount)
		case ledger.CategoryExpense:
			totals[i].Expense = totals[i].Expense.Add(tx.Amount)
		}
	}
	return totals, nil
}

// =============================================================================
// BUDGETS
// =============================================================================

func (m *Memory) key(ownerID, expenseType string, month time.Time) budgetKey {
	return budgetKey{OwnerID: ownerID, ExpenseType: expenseType, Month: ledger.MonthOf(month).Format("2006-01")}
}

func (m *Memory) GetBudget(ctx context.Context, ownerID, expenseType string, month time.Time) (*ledger.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBudgetLocked(ownerID, expenseType, month)
}

func (m *Memory) getBudgetLocked(ownerID, expenseType string, month time.Time) (*ledger.Budget, error) {
	b, ok := m.budgets[m.key(ownerID, expenseType, month)]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) UpsertBudget(ctx context.Context, b *ledger.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertBudgetLocked(b)
}

func (m *Memory) upsertBudgetLocked(b *ledger.Budget) error {
	m.budgets[m.key(b.OwnerID, b.ExpenseType, b.Month)] = *b
	return nil
}

func (m *Memory) SetBudgetSpending(ctx context.Context, ownerID, expenseType string, month time.Time, spending decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setBudgetSpendingLocked(ownerID, expenseType, month, spending)
}

func (m *Memory) setBudgetSpendingLocked(ownerID, expenseType string, month time.Time, spending decimal.Decimal) error {
	k := m.key(ownerID, expenseType, month)
	b, ok := m.budgets[k]
	if !ok {
		return &ledger.NotFoundError{Resource: "budget", Key: expenseType}
	}
	b.CurrentSpending = spending
	m.budgets[k] = b
	return nil
}

func (m *Memory) ListBudgets(ctx context.Context, ownerID string) ([]ledger.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBudgetsLocked(ownerID)
}

func (m *Memory) listBudgetsLocked(ownerID string) ([]ledger.Budget, error) {
	var out []ledger.Budget
	for _, b := range m.budgets {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].ExpenseType < out[j].ExpenseType
	})
	return out, nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// txView exposes the locked methods to WithTx callbacks. The parent mutex is
// already held for the whole unit.
type txView struct {
	m *Memory
}

func (v *txView) GetAccount(_ context.Context, ref ledger.AccountRef) (*ledger.Account, error) {
	return v.m.getAccountLocked(ref)
}
func (v *txView) SaveAccount(_ context.Context, a *ledger.Account) error {
	return v.m.saveAccountLocked(a)
}
func (v *txView) ListAccounts(_ context.Context, ownerID string) ([]ledger.Account, error) {
	return v.m.listAccountsLocked(ownerID)
}
func (v *txView) ApplyAccountDelta(_ context.Context, ref ledger.AccountRef, delta decimal.Decimal) (*ledger.Account, error) {
	return v.m.applyAccountDeltaLocked(ref, delta)
}
func (v *txView) GetDebt(_ context.Context, id string) (*ledger.Debt, error) {
	return v.m.getDebtLocked(id)
}
func (v *txView) SaveDebt(_ context.Context, d *ledger.Debt) error {
	return v.m.saveDebtLocked(d)
}
func (v *txView) ListDebts(_ context.Context, ownerID string) ([]ledger.Debt, error) {
	return v.m.listDebtsLocked(ownerID)
}
func (v *txView) ApplyDebtDelta(_ context.Context, id string, balanceDelta decimal.Decimal, installmentDelta int) (*ledger.Debt, error) {
	return v.m.applyDebtDeltaLocked(id, balanceDelta, installmentDelta)
}
func (v *txView) InsertTransaction(_ context.Context, tx *ledger.Transaction) error {
	return v.m.insertTransactionLocked(tx)
}
func (v *txView) FindTransaction(_ context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	return v.m.findTransactionLocked(id)
}
func (v *txView) UpdateTransaction(_ context.Context, tx *ledger.Transaction) error {
	return v.m.updateTransactionLocked(tx)
}
func (v *txView) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	return v.m.deleteTransactionLocked(id)
}
func (v *txView) ListTransactions(_ context.Context, ownerID string) ([]ledger.Transaction, error) {
	return v.m.listTransactionsLocked(ownerID)
}
func (v *txView) ListTransactionsByAccount(_ context.Context, ref ledger.AccountRef) ([]ledger.Transaction, error) {
	return v.m.listTransactionsByAccountLocked(ref)
}
func (v *txView) SumExpensesByTypeMonth(_ context.Context, ownerID, expenseType string, month time.Time) (decimal.Decimal, error) {
	return v.m.sumExpensesByTypeMonthLocked(ownerID, expenseType, month)
}
func (v *txView) MonthlyTotals(_ context.Context, ownerID string, months int) ([]ledger.MonthlyTotal, error) {
	return v.m.monthlyTotalsLocked(ownerID, months)
}
func (v *txView) GetBudget(_ context.Context, ownerID, expenseType string, month time.Time) (*ledger.Budget, error) {
	return v.m.getBudgetLocked(ownerID, expenseType, month)
}
func (v *txView) UpsertBudget(_ context.Context, b *ledger.Budget) error {
	return v.m.upsertBudgetLocked(b)
}
func (v *txView) SetBudgetSpending(_ context.Context, ownerID, expenseType string, month time.Time, spending decimal.Decimal) error {
	return v.m.setBudgetSpendingLocked(ownerID, expenseType, month, spending)
}
func (v *txView) ListBudgets(_ context.Context, ownerID string) ([]ledger.Budget, error) {
	return v.m.listBudgetsLocked(ownerID)
}
