/*
budget.go - Budget cache reconciler

PURPOSE:
  A budget caches "spending so far this month" for one expense type. The
  cache is reconciled lazily on read: the true sum is recomputed from the
  transaction store and the stored figure is corrected when they disagree.
  Transaction writes never touch budgets, so a budget can be stale between
  a write and the next read.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SetBudget creates or replaces the monthly limit for one expense type.
func (e *Engine) SetBudget(ctx context.Context, ownerID, expenseType string, month time.Time, limit decimal.Decimal) (*Budget, error) {
	if ownerID == "" {
		return nil, Validationf("budget owner is required")
	}
	if !ValidType(CategoryExpense, expenseType) {
		return nil, Validationf("type %q is not a valid Expense type", expenseType)
	}
	if limit.IsNegative() || !limit.Equal(limit.Round(2)) {
		return nil, Validationf("monthly limit must be non-negative with at most 2 decimal places")
	}

	b := &Budget{
		OwnerID:         ownerID,
		ExpenseType:     expenseType,
		Month:           MonthOf(month),
		MonthlyLimit:    limit,
		CurrentSpending: decimal.Zero,
	}
	if existing, err := e.store.GetBudget(ctx, ownerID, expenseType, b.Month); err != nil {
		return nil, err
	} else if existing != nil {
		b.CurrentSpending = existing.CurrentSpending
	}

	if err := e.store.UpsertBudget(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetReconciledBudget returns the budget for one expense type and month with
// its spending cache corrected against the transaction store. The corrected
// value is persisted before returning.
func (e *Engine) GetReconciledBudget(ctx context.Context, ownerID, expenseType string, month time.Time) (*Budget, error) {
	month = MonthOf(month)

	b, err := e.store.GetBudget(ctx, ownerID, expenseType, month)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &NotFoundError{Resource: "budget", Key: expenseType + "/" + month.Format("2006-01")}
	}

	actual, err := e.store.SumExpensesByTypeMonth(ctx, ownerID, expenseType, month)
	if err != nil {
		return nil, err
	}
	if !actual.Equal(b.CurrentSpending) {
		if err := e.store.SetBudgetSpending(ctx, ownerID, expenseType, month, actual); err != nil {
			return nil, err
		}
		b.CurrentSpending = actual
	}
	return b, nil
}

// ListBudgets returns the owner's budgets without reconciling them.
func (e *Engine) ListBudgets(ctx context.Context, ownerID string) ([]Budget, error) {
	return e.store.ListBudgets(ctx, ownerID)
}
