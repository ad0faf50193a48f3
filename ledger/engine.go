/*
engine.go - Ledger consistency engine

PURPOSE:
  Orchestrates every transaction mutation. The Engine validates the
  referenced accounts and debts, computes the transaction's monetary
  effect, and applies it (create), reverses-then-reapplies it (update), or
  reverses it (delete). Each mutation runs inside one WithTx unit: a
  failure at any step discards all partial balance writes.

VALIDATION ORDER (create):
  1. Category and role presence (Expense=sender, Income=receiver,
     Transfer=both, nothing extra)
  2. Amount positive, at most two decimals; datetime not in the future
  3. Referenced accounts resolved (normalized) and ownership-checked
  4. Debt resolved and ownership-checked; type forced to "Debt Payment"
  5. Debit balance check (sender balance >= amount)
  6. Persist row, then apply deltas

UPDATE REVERSAL:
  The reversal is always computed from the transaction row as stored
  BEFORE the edit, against the accounts that row references. Reversal and
  reapplication on a shared account stay two separate deltas; the debit
  check reads the true post-reversal balance.

NEGATIVE BALANCES:
  Only debiting operations are guarded. Reversals are unconditional, so
  deleting an Income transaction can legitimately take the receiving
  account below the deposited amount.

SEE ALSO:
  - effect.go: the delta rule table
  - budget.go: read-time budget cache reconciliation
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Engine is the only component allowed to mutate account balances and debt
// principals. It is stateless apart from its store; methods are safe for
// concurrent use when the store's WithTx serializes conflicting units.
type Engine struct {
	store TxStore

	// Now is the clock used for future-datetime checks and row timestamps.
	// Tests override it.
	Now func() time.Time
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store, Now: time.Now}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the validated field values for a new transaction.
type CreateInput struct {
	Datetime time.Time
	Category Category
	Type     string
	Amount   decimal.Decimal
	Note     string
	Sender   *AccountRef
	Receiver *AccountRef
	DebtID   string
}

// CreateTransaction records a transaction and applies its effect to every
// referenced account and debt.
func (e *Engine) CreateTransaction(ctx context.Context, ownerID string, in CreateInput) (*Transaction, error) {
	tx := &Transaction{
		ID:       NewTransactionID(),
		OwnerID:  ownerID,
		Datetime: in.Datetime.UTC(),
		Category: in.Category,
		Type:     in.Type,
		Amount:   in.Amount,
		Note:     in.Note,
		Sender:   normalizeRef(in.Sender),
		Receiver: normalizeRef(in.Receiver),
		DebtID:   in.DebtID,
	}

	if err := e.validateShape(tx); err != nil {
		return nil, err
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if err := e.resolveReferences(ctx, s, tx); err != nil {
			return err
		}
		if err := e.checkDebits(ctx, s, tx); err != nil {
			return err
		}

		now := e.Now().UTC()
		tx.CreatedAt = now
		tx.UpdatedAt = now
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return applyEffects(ctx, s, tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Patch holds the fields an update may replace. Nil means "not present".
// The debt reference is not patchable; a debt payment stays bound to its
// debt for its whole lifetime.
type Patch struct {
	Datetime *time.Time
	Category *Category
	Type     *string
	Amount   *decimal.Decimal
	Note     *string
	Sender   *AccountRef
	Receiver *AccountRef
}

// UpdateTransaction replaces the patched fields of a transaction. When the
// monetary effect changes, the original effect is reversed against the
// originally stored accounts before the new effect is validated and applied,
// all inside one atomic unit.
func (e *Engine) UpdateTransaction(ctx context.Context, ownerID string, id TransactionID, p Patch) (*Transaction, error) {
	if !ValidTransactionID(id) {
		return nil, Validationf("invalid transaction id: %s", id)
	}

	var updated *Transaction
	err := e.store.WithTx(ctx, func(s Store) error {
		orig, err := s.FindTransaction(ctx, id)
		if err != nil {
			return err
		}
		if orig == nil || orig.OwnerID != ownerID {
			return &NotFoundError{Resource: "transaction", Key: string(id)}
		}

		updated = mergePatch(orig, p)
		if err := e.validateShape(updated); err != nil {
			return err
		}

		if !effectChanged(orig, updated) {
			// Only non-monetary fields moved; the cached balances already
			// reflect this transaction exactly.
			updated.UpdatedAt = e.Now().UTC()
			return s.UpdateTransaction(ctx, updated)
		}

		if err := e.resolveReferences(ctx, s, updated); err != nil {
			return err
		}

		// Reverse the stored row's effect first. The debit check below must
		// see the post-reversal balances.
		if err := reverseEffects(ctx, s, orig); err != nil {
			return err
		}
		if err := e.checkDebits(ctx, s, updated); err != nil {
			return err
		}
		if err := applyEffects(ctx, s, updated); err != nil {
			return err
		}

		updated.UpdatedAt = e.Now().UTC()
		return s.UpdateTransaction(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// mergePatch builds the updated transaction from the stored row and the
// patch. When the category changes, roles the new category forbids are
// dropped so the exactly-one-role-set invariant keeps holding.
func mergePatch(orig *Transaction, p Patch) *Transaction {
	tx := orig.Clone()
	if p.Datetime != nil {
		tx.Datetime = p.Datetime.UTC()
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Note != nil {
		tx.Note = *p.Note
	}
	if p.Sender != nil {
		tx.Sender = normalizeRef(p.Sender)
	}
	if p.Receiver != nil {
		tx.Receiver = normalizeRef(p.Receiver)
	}

	if p.Category != nil && *p.Category != orig.Category {
		needSender, needReceiver := tx.Category.RequiredRoles()
		if !needSender {
			tx.Sender = nil
		}
		if !needReceiver {
			tx.Receiver = nil
		}
	}
	return tx
}

// effectChanged reports whether the patch moved anything that alters the
// transaction's monetary effect.
func effectChanged(orig, updated *Transaction) bool {
	if !orig.Amount.Equal(updated.Amount) {
		return true
	}
	if orig.Category != updated.Category {
		return true
	}
	if !refEqual(orig.Sender, updated.Sender) || !refEqual(orig.Receiver, updated.Receiver) {
		return true
	}
	return false
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteTransaction reverses a transaction's effect and removes its row.
// If the removal fails the reversal is rolled back with it.
func (e *Engine) DeleteTransaction(ctx context.Context, ownerID string, id TransactionID) error {
	if !ValidTransactionID(id) {
		return Validationf("invalid transaction id: %s", id)
	}

	return e.store.WithTx(ctx, func(s Store) error {
		tx, err := s.FindTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil || tx.OwnerID != ownerID {
			return &NotFoundError{Resource: "transaction", Key: string(id)}
		}

		if err := reverseEffects(ctx, s, tx); err != nil {
			return err
		}
		return s.DeleteTransaction(ctx, id)
	})
}

// =============================================================================
// READS
// =============================================================================

// GetTransaction returns one transaction, ownership-checked.
func (e *Engine) GetTransaction(ctx context.Context, ownerID string, id TransactionID) (*Transaction, error) {
	tx, err := e.store.FindTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil || tx.OwnerID != ownerID {
		return nil, &NotFoundError{Resource: "transaction", Key: string(id)}
	}
	return tx, nil
}

// ListTransactions returns all of the owner's transactions, newest first.
func (e *Engine) ListTransactions(ctx context.Context, ownerID string) ([]Transaction, error) {
	return e.store.ListTransactions(ctx, ownerID)
}

// ListTransactionsByAccount returns the transactions referencing one of the
// owner's accounts as sender or receiver.
func (e *Engine) ListTransactionsByAccount(ctx context.Context, ownerID string, ref AccountRef) ([]Transaction, error) {
	ref = ref.Normalize()
	acct, err := e.store.GetAccount(ctx, ref)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.OwnerID != ownerID {
		return nil, &NotFoundError{Resource: "bank account", Key: ref.String()}
	}
	return e.store.ListTransactionsByAccount(ctx, ref)
}

// MonthlySummary returns per-month income/expense totals for the latest
// months, most recent first.
func (e *Engine) MonthlySummary(ctx context.Context, ownerID string, months int) ([]MonthlyTotal, error) {
	if months <= 0 {
		months = 12
	}
	return e.store.MonthlyTotals(ctx, ownerID, months)
}

// =============================================================================
// ACCOUNT AND DEBT REGISTRATION
// =============================================================================

// CreateAccount registers a bank account with its opening balance. After
// registration the balance changes only through transaction mutations.
func (e *Engine) CreateAccount(ctx context.Context, a *Account) (*Account, error) {
	ref := a.Ref().Normalize()
	if ref.AccountNumber == "" || ref.FICode == "" {
		return nil, Validationf("account number and fi code are required")
	}
	if a.OwnerID == "" {
		return nil, Validationf("account owner is required")
	}
	if a.Balance.IsNegative() || !a.Balance.Equal(a.Balance.Round(2)) {
		return nil, Validationf("opening balance must be non-negative with at most 2 decimal places")
	}

	a.AccountNumber = ref.AccountNumber
	a.FICode = ref.FICode
	a.CreatedAt = e.Now().UTC()
	if err := e.store.SaveAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount returns one of the owner's accounts.
func (e *Engine) GetAccount(ctx context.Context, ownerID string, ref AccountRef) (*Account, error) {
	ref = ref.Normalize()
	a, err := e.store.GetAccount(ctx, ref)
	if err != nil {
		return nil, err
	}
	if a == nil || a.OwnerID != ownerID {
		return nil, &NotFoundError{Resource: "bank account", Key: ref.String()}
	}
	return a, nil
}

// ListAccounts returns the owner's accounts.
func (e *Engine) ListAccounts(ctx context.Context, ownerID string) ([]Account, error) {
	return e.store.ListAccounts(ctx, ownerID)
}

// CreateDebt registers a debt. LoanBalance starts at the remaining principal
// and is then mutated only alongside debt-payment transactions.
func (e *Engine) CreateDebt(ctx context.Context, d *Debt) (*Debt, error) {
	if d.OwnerID == "" || d.Name == "" {
		return nil, Validationf("debt owner and name are required")
	}
	if d.LoanBalance.IsNegative() || d.LoanPrincipal.IsNegative() {
		return nil, Validationf("loan principal and balance must be non-negative")
	}
	if d.CurrentInstallment < 0 || d.TotalInstallments < 0 {
		return nil, Validationf("installment counters must be non-negative")
	}
	if d.ID == "" {
		d.ID = string(NewTransactionID())
	}
	d.CreatedAt = e.Now().UTC()
	if err := e.store.SaveDebt(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDebt returns one of the owner's debts.
func (e *Engine) GetDebt(ctx context.Context, ownerID, id string) (*Debt, error) {
	d, err := e.store.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil || d.OwnerID != ownerID {
		return nil, &NotFoundError{Resource: "debt", Key: id}
	}
	return d, nil
}

// ListDebts returns the owner's debts.
func (e *Engine) ListDebts(ctx context.Context, ownerID string) ([]Debt, error) {
	return e.store.ListDebts(ctx, ownerID)
}

// =============================================================================
// INTERNALS
// =============================================================================

// validateShape checks everything that needs no store access: category,
// role presence, amount, datetime, and the type-for-category table.
func (e *Engine) validateShape(tx *Transaction) error {
	if !tx.Category.Valid() {
		return Validationf("invalid category %q: must be Income, Expense, or Transfer", tx.Category)
	}

	needSender, needReceiver := tx.Category.RequiredRoles()
	if needSender && (tx.Sender == nil || tx.Sender.AccountNumber == "" || tx.Sender.FICode == "") {
		return Validationf("sender account (account_number and fi_code) is required for %s transactions", tx.Category)
	}
	if !needSender && tx.Sender != nil {
		return Validationf("sender account must not be provided for %s transactions", tx.Category)
	}
	if needReceiver && (tx.Receiver == nil || tx.Receiver.AccountNumber == "" || tx.Receiver.FICode == "") {
		return Validationf("receiver account (account_number and fi_code) is required for %s transactions", tx.Category)
	}
	if !needReceiver && tx.Receiver != nil {
		return Validationf("receiver account must not be provided for %s transactions", tx.Category)
	}

	if !ValidAmount(tx.Amount) {
		return Validationf("amount must be positive with at most 2 decimal places")
	}
	if tx.Datetime.IsZero() {
		return Validationf("transaction datetime is required")
	}
	if tx.Datetime.After(e.Now().UTC()) {
		return Validationf("transaction datetime must not be in the future")
	}

	if tx.DebtID != "" {
		if tx.Category != CategoryExpense {
			return Validationf("a debt reference is only allowed on Expense transactions")
		}
		// Type is derived, not user-settable, when a debt is referenced.
		tx.Type = TypeDebtPayment
		return nil
	}
	if !ValidType(tx.Category, tx.Type) {
		return Validationf("type %q is not valid for category %s", tx.Type, tx.Category)
	}
	return nil
}

// resolveReferences looks up every referenced account and debt inside the
// current atomic unit and enforces ownership.
func (e *Engine) resolveReferences(ctx context.Context, s Store, tx *Transaction) error {
	for _, ref := range []*AccountRef{tx.Sender, tx.Receiver} {
		if ref == nil {
			continue
		}
		acct, err := s.GetAccount(ctx, *ref)
		if err != nil {
			return err
		}
		if acct == nil || acct.OwnerID != tx.OwnerID {
			return &NotFoundError{Resource: "bank account", Key: ref.String()}
		}
	}

	if tx.DebtID != "" {
		debt, err := s.GetDebt(ctx, tx.DebtID)
		if err != nil {
			return err
		}
		if debt == nil || debt.OwnerID != tx.OwnerID {
			return &NotFoundError{Resource: "debt", Key: tx.DebtID}
		}
	}
	return nil
}

// checkDebits verifies every debiting role against the balance as currently
// visible inside the atomic unit.
func (e *Engine) checkDebits(ctx context.Context, s Store, tx *Transaction) error {
	effects, _ := EffectsOf(tx)
	for _, eff := range effects {
		if !eff.Debits() {
			continue
		}
		acct, err := s.GetAccount(ctx, eff.Account)
		if err != nil {
			return err
		}
		if acct == nil {
			return &NotFoundError{Resource: "bank account", Key: eff.Account.String()}
		}
		if acct.Balance.LessThan(tx.Amount) {
			return &InsufficientBalanceError{
				Account:   eff.Account,
				Available: acct.Balance,
				Required:  tx.Amount,
			}
		}
	}
	return nil
}

// applyEffects writes the transaction's deltas to every referenced account
// and debt.
func applyEffects(ctx context.Context, s Store, tx *Transaction) error {
	effects, debtEffect := EffectsOf(tx)
	for _, eff := range effects {
		if _, err := s.ApplyAccountDelta(ctx, eff.Account, eff.Delta); err != nil {
			return err
		}
	}
	if debtEffect != nil {
		if _, err := s.ApplyDebtDelta(ctx, debtEffect.DebtID, debtEffect.BalanceDelta, debtEffect.InstallmentDelta); err != nil {
			return err
		}
	}
	return nil
}

// reverseEffects undoes a previously applied transaction.
func reverseEffects(ctx context.Context, s Store, tx *Transaction) error {
	effects, debtEffect := EffectsOf(tx)
	for _, eff := range ReverseAccountEffects(effects) {
		if _, err := s.ApplyAccountDelta(ctx, eff.Account, eff.Delta); err != nil {
			return err
		}
	}
	if rev := ReverseDebtEffect(debtEffect); rev != nil {
		if _, err := s.ApplyDebtDelta(ctx, rev.DebtID, rev.BalanceDelta, rev.InstallmentDelta); err != nil {
			return err
		}
	}
	return nil
}

func normalizeRef(r *AccountRef) *AccountRef {
	if r == nil {
		return nil
	}
	n := r.Normalize()
	return &n
}

func refEqual(a, b *AccountRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
