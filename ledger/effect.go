/*
effect.go - Balance effect calculator

PURPOSE:
  Pure mapping from (category, role) to the signed delta a transaction
  causes on each referenced account, plus the debt effect for debt
  payments. No I/O, no errors: callers guarantee the transaction's
  category/role combination is valid before asking for its effects.

RULE TABLE:
  Income,   receiver -> +amount
  Expense,  sender   -> -amount
  Transfer, sender   -> -amount
  Transfer, receiver -> +amount
  Debt reference     -> loan_balance -amount, installment +1

REVERSAL:
  The reversal of an effect is its algebraic inverse. apply(T) followed by
  reverse(T) leaves every balance unchanged.
*/
package ledger

import "github.com/shopspring/decimal"

// AccountEffect is the signed balance delta a transaction causes on one
// account.
type AccountEffect struct {
	Account AccountRef
	Role    Role
	Delta   decimal.Decimal
}

// Debits reports whether the effect removes money from the account. Debiting
// effects are the ones subject to the no-negative-balance check.
func (e AccountEffect) Debits() bool {
	return e.Delta.IsNegative()
}

// DebtEffect is the delta a debt payment causes on the referenced debt.
type DebtEffect struct {
	DebtID           string
	BalanceDelta     decimal.Decimal
	InstallmentDelta int
}

// EffectsOf computes the account effects and the optional debt effect of tx.
// It is total over valid transactions: every (category, role) pair the
// Engine admits has a defined delta.
func EffectsOf(tx *Transaction) ([]AccountEffect, *DebtEffect) {
	var effects []AccountEffect

	switch tx.Category {
	case CategoryIncome:
		if tx.Receiver != nil {
			effects = append(effects, AccountEffect{
				Account: *tx.Receiver, Role: RoleReceiver, Delta: tx.Amount,
			})
		}
	case CategoryExpense:
		if tx.Sender != nil {
			effects = append(effects, AccountEffect{
				Account: *tx.Sender, Role: RoleSender, Delta: tx.Amount.Neg(),
			})
		}
	case CategoryTransfer:
		if tx.Sender != nil {
			effects = append(effects, AccountEffect{
				Account: *tx.Sender, Role: RoleSender, Delta: tx.Amount.Neg(),
			})
		}
		if tx.Receiver != nil {
			effects = append(effects, AccountEffect{
				Account: *tx.Receiver, Role: RoleReceiver, Delta: tx.Amount,
			})
		}
	}

	var debt *DebtEffect
	if tx.DebtID != "" {
		debt = &DebtEffect{
			DebtID:           tx.DebtID,
			BalanceDelta:     tx.Amount.Neg(),
			InstallmentDelta: 1,
		}
	}

	return effects, debt
}

// ReverseAccountEffects negates every delta.
func ReverseAccountEffects(effects []AccountEffect) []AccountEffect {
	out := make([]AccountEffect, len(effects))
	for i, e := range effects {
		out[i] = AccountEffect{Account: e.Account, Role: e.Role, Delta: e.Delta.Neg()}
	}
	return out
}

// ReverseDebtEffect negates the debt deltas. Returns nil for nil.
func ReverseDebtEffect(e *DebtEffect) *DebtEffect {
	if e == nil {
		return nil
	}
	return &DebtEffect{
		DebtID:           e.DebtID,
		BalanceDelta:     e.BalanceDelta.Neg(),
		InstallmentDelta: -e.InstallmentDelta,
	}
}
