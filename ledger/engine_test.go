package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	owner      = "user-1"
	otherOwner = "user-2"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	e := ledger.NewEngine(store.NewMemory())
	e.Now = func() time.Time { return testNow }
	return e
}

func seedAccount(t *testing.T, e *ledger.Engine, num, fi, balance string) ledger.AccountRef {
	t.Helper()
	a, err := e.CreateAccount(context.Background(), &ledger.Account{
		AccountNumber: num,
		FICode:        fi,
		OwnerID:       owner,
		Balance:       money(balance),
	})
	require.NoError(t, err)
	return a.Ref()
}

func seedDebt(t *testing.T, e *ledger.Engine, balance string) *ledger.Debt {
	t.Helper()
	d, err := e.CreateDebt(context.Background(), &ledger.Debt{
		OwnerID:            owner,
		Name:               "Car loan",
		LoanPrincipal:      money(balance),
		LoanBalance:        money(balance),
		CurrentInstallment: 5,
		TotalInstallments:  48,
	})
	require.NoError(t, err)
	return d
}

func balanceOf(t *testing.T, e *ledger.Engine, ref ledger.AccountRef) decimal.Decimal {
	t.Helper()
	a, err := e.GetAccount(context.Background(), owner, ref)
	require.NoError(t, err)
	return a.Balance
}

func expenseInput(ref ledger.AccountRef, amount string) ledger.CreateInput {
	return ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryExpense,
		Type:     "Groceries",
		Amount:   money(amount),
		Sender:   &ref,
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateTransaction_Expense_ReducesBalance(t *testing.T) {
	// GIVEN: Account with balance 10000
	// WHEN: Creating a 1000 expense from it
	// THEN: Balance becomes 9000

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")

	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "1000"))
	require.NoError(t, err)
	assert.True(t, ledger.ValidTransactionID(tx.ID))
	assert.True(t, balanceOf(t, e, ref).Equal(money("9000")))
}

func TestCreateTransaction_Income_IncreasesBalance(t *testing.T) {
	// GIVEN: Account with balance 100
	// WHEN: Recording a 3000 salary into it
	// THEN: Balance becomes 3100

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "100")

	_, err := e.CreateTransaction(context.Background(), owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryIncome,
		Type:     "40(1)Salary",
		Amount:   money("3000"),
		Receiver: &ref,
	})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, e, ref).Equal(money("3100")))
}

func TestCreateTransaction_Transfer_MovesMoney(t *testing.T) {
	// GIVEN: Two accounts, 10000 and 0
	// WHEN: Transferring 2000 between them
	// THEN: 8000 and 2000

	e := newTestEngine(t)
	from := seedAccount(t, e, "1111111111", "004", "10000")
	to := seedAccount(t, e, "2222222222", "014", "0")

	_, err := e.CreateTransaction(context.Background(), owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryTransfer,
		Type:     "Transfer",
		Amount:   money("2000"),
		Sender:   &from,
		Receiver: &to,
	})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, e, from).Equal(money("8000")))
	assert.True(t, balanceOf(t, e, to).Equal(money("2000")))
}

func TestCreateTransaction_InsufficientBalance_NothingWritten(t *testing.T) {
	// GIVEN: Account with balance 50
	// WHEN: Creating a 100 expense
	// THEN: InsufficientBalanceError; balance untouched; no transaction stored

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "50")

	_, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "100"))
	require.Error(t, err)

	var insErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insErr)
	assert.True(t, insErr.Available.Equal(money("50")))
	assert.True(t, insErr.Required.Equal(money("100")))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.True(t, balanceOf(t, e, ref).Equal(money("50")))
	txs, err := e.ListTransactions(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCreateTransaction_ExactBalance_Allowed(t *testing.T) {
	// GIVEN: Account with balance 100
	// WHEN: Spending exactly 100
	// THEN: Accepted; balance is zero

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "100")

	_, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "100"))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, e, ref).IsZero())
}

func TestCreateTransaction_RoleMismatch_Rejected(t *testing.T) {
	// GIVEN: A valid account
	// WHEN: Submitting category/role combinations the rule table forbids
	// THEN: Each is rejected as a validation error

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")
	ctx := context.Background()

	// Income with a sender
	_, err := e.CreateTransaction(ctx, owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryIncome,
		Type:     "40(1)Salary",
		Amount:   money("10"),
		Sender:   &ref,
		Receiver: &ref,
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	// Expense without a sender
	_, err = e.CreateTransaction(ctx, owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryExpense,
		Type:     "Food",
		Amount:   money("10"),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	// Unknown category
	_, err = e.CreateTransaction(ctx, owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: "Savings",
		Amount:   money("10"),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateTransaction_FutureDatetime_Rejected(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")

	in := expenseInput(ref, "10")
	in.Datetime = testNow.Add(time.Minute)
	_, err := e.CreateTransaction(context.Background(), owner, in)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateTransaction_TypeMustMatchCategory(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")

	in := expenseInput(ref, "10")
	in.Type = "40(1)Salary" // Income type on an Expense
	_, err := e.CreateTransaction(context.Background(), owner, in)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateTransaction_UnknownAccount_NotFound(t *testing.T) {
	// GIVEN: No registered accounts
	// WHEN: Creating an expense from a nonexistent account
	// THEN: NotFoundError; nothing stored

	e := newTestEngine(t)
	ghost := ledger.AccountRef{AccountNumber: "9999999999", FICode: "004"}

	_, err := e.CreateTransaction(context.Background(), owner, expenseInput(ghost, "10"))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateTransaction_OtherOwnersAccount_NotFound(t *testing.T) {
	// GIVEN: An account registered to another user
	// WHEN: The caller tries to spend from it
	// THEN: NotFoundError, indistinguishable from a nonexistent account

	e := newTestEngine(t)
	other, err := e.CreateAccount(context.Background(), &ledger.Account{
		AccountNumber: "3333333333",
		FICode:        "004",
		OwnerID:       otherOwner,
		Balance:       money("5000"),
	})
	require.NoError(t, err)

	_, err = e.CreateTransaction(context.Background(), owner, expenseInput(other.Ref(), "10"))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateTransaction_NormalizesAccountNumber(t *testing.T) {
	// GIVEN: Account registered as "1234567890"
	// WHEN: Referencing it as "123-456-7890"
	// THEN: Same account is debited

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1234567890", "004", "1000")

	dashed := ledger.AccountRef{AccountNumber: "123-456-7890", FICode: "004"}
	_, err := e.CreateTransaction(context.Background(), owner, expenseInput(dashed, "100"))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, e, ref).Equal(money("900")))
}

// =============================================================================
// DEBT PAYMENTS
// =============================================================================

func TestCreateTransaction_DebtPayment_AdjustsDebt(t *testing.T) {
	// GIVEN: Account 10000, debt with remaining 96000 at installment 5
	// WHEN: Paying 2000 against the debt
	// THEN: Balance 8000, loan balance 94000, installment 6, type forced

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	debt := seedDebt(t, e, "96000")

	in := expenseInput(ref, "2000")
	in.Type = "Food" // Caller-supplied type is overridden
	in.DebtID = debt.ID

	tx, err := e.CreateTransaction(context.Background(), owner, in)
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeDebtPayment, tx.Type)
	assert.True(t, balanceOf(t, e, ref).Equal(money("8000")))

	got, err := e.GetDebt(context.Background(), owner, debt.ID)
	require.NoError(t, err)
	assert.True(t, got.LoanBalance.Equal(money("94000")))
	assert.Equal(t, 6, got.CurrentInstallment)
}

func TestCreateTransaction_DebtOnIncome_Rejected(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")
	debt := seedDebt(t, e, "5000")

	_, err := e.CreateTransaction(context.Background(), owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryIncome,
		Type:     "40(1)Salary",
		Amount:   money("100"),
		Receiver: &ref,
		DebtID:   debt.ID,
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateTransaction_OtherOwnersDebt_NotFound(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")

	foreign, err := e.CreateDebt(context.Background(), &ledger.Debt{
		OwnerID:       otherOwner,
		Name:          "Their loan",
		LoanPrincipal: money("1000"),
		LoanBalance:   money("1000"),
	})
	require.NoError(t, err)

	in := expenseInput(ref, "100")
	in.DebtID = foreign.ID
	_, err = e.CreateTransaction(context.Background(), owner, in)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.True(t, balanceOf(t, e, ref).Equal(money("10000")))
}

func TestDeleteTransaction_DebtPayment_RestoresDebt(t *testing.T) {
	// GIVEN: A recorded 2000 debt payment
	// WHEN: Deleting it
	// THEN: Account, loan balance, and installment counter all restored

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	debt := seedDebt(t, e, "96000")

	in := expenseInput(ref, "2000")
	in.DebtID = debt.ID
	tx, err := e.CreateTransaction(context.Background(), owner, in)
	require.NoError(t, err)

	require.NoError(t, e.DeleteTransaction(context.Background(), owner, tx.ID))

	assert.True(t, balanceOf(t, e, ref).Equal(money("10000")))
	got, err := e.GetDebt(context.Background(), owner, debt.ID)
	require.NoError(t, err)
	assert.True(t, got.LoanBalance.Equal(money("96000")))
	assert.Equal(t, 5, got.CurrentInstallment)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateTransaction_AmountChange_ReversesAndReapplies(t *testing.T) {
	// GIVEN: Balance 10000 and a recorded 1000 expense (balance 9000)
	// WHEN: Updating the amount to 1500
	// THEN: Balance becomes 8500

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "1000"))
	require.NoError(t, err)

	amount := money("1500")
	updated, err := e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))
	assert.True(t, balanceOf(t, e, ref).Equal(money("8500")))
}

func TestUpdateTransaction_SenderChange_MovesEffectBetweenAccounts(t *testing.T) {
	// GIVEN: A 1000 expense from account A
	// WHEN: Re-pointing it at account B
	// THEN: A is restored and B is debited

	e := newTestEngine(t)
	a := seedAccount(t, e, "1111111111", "004", "10000")
	b := seedAccount(t, e, "2222222222", "014", "5000")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(a, "1000"))
	require.NoError(t, err)

	_, err = e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{Sender: &b})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, e, a).Equal(money("10000")))
	assert.True(t, balanceOf(t, e, b).Equal(money("4000")))
}

func TestUpdateTransaction_DebitCheckSeesPostReversalBalance(t *testing.T) {
	// GIVEN: Balance 100, then an 80 expense (balance 20)
	// WHEN: Raising the amount to 90
	// THEN: Accepted: the check runs against the post-reversal balance of
	//       100, not the visible 20

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "100")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "80"))
	require.NoError(t, err)

	amount := money("90")
	_, err = e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, e, ref).Equal(money("10")))
}

func TestUpdateTransaction_InsufficientAfterReversal_RollsBack(t *testing.T) {
	// GIVEN: Balance 100 and a 50 expense (balance 50)
	// WHEN: Raising the amount to 200
	// THEN: Rejected; the stored row and the balance are unchanged

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "100")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "50"))
	require.NoError(t, err)

	amount := money("200")
	_, err = e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{Amount: &amount})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.True(t, balanceOf(t, e, ref).Equal(money("50")))
	stored, err := e.GetTransaction(context.Background(), owner, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(money("50")))
}

func TestUpdateTransaction_CategoryChange_DropsForbiddenRoles(t *testing.T) {
	// GIVEN: A 2000 transfer from A to B
	// WHEN: Recategorizing it as an Expense with type Food
	// THEN: The receiver role is dropped; B loses the 2000 credit and A
	//       keeps the debit

	e := newTestEngine(t)
	a := seedAccount(t, e, "1111111111", "004", "10000")
	b := seedAccount(t, e, "2222222222", "014", "0")
	tx, err := e.CreateTransaction(context.Background(), owner, ledger.CreateInput{
		Datetime: testNow.Add(-time.Hour),
		Category: ledger.CategoryTransfer,
		Type:     "Transfer",
		Amount:   money("2000"),
		Sender:   &a,
		Receiver: &b,
	})
	require.NoError(t, err)

	cat := ledger.CategoryExpense
	typ := "Food"
	updated, err := e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{
		Category: &cat,
		Type:     &typ,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Receiver)
	assert.True(t, balanceOf(t, e, a).Equal(money("8000")))
	assert.True(t, balanceOf(t, e, b).IsZero())
}

func TestUpdateTransaction_NonMonetaryPatch_LeavesBalancesAlone(t *testing.T) {
	// GIVEN: A recorded expense
	// WHEN: Changing only the note and type
	// THEN: Balance is untouched and the row carries the new values

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "100"))
	require.NoError(t, err)

	note := "tuesday shop"
	typ := "Food"
	updated, err := e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{
		Note: &note,
		Type: &typ,
	})
	require.NoError(t, err)
	assert.Equal(t, "tuesday shop", updated.Note)
	assert.Equal(t, "Food", updated.Type)
	assert.True(t, balanceOf(t, e, ref).Equal(money("900")))
}

func TestUpdateTransaction_EquivalentToDeleteThenCreate(t *testing.T) {
	// GIVEN: Two engines seeded identically with a 1000 expense
	// WHEN: One updates the amount to 250; the other deletes and recreates
	//       with 250
	// THEN: Final balances agree

	build := func(t *testing.T) (*ledger.Engine, ledger.AccountRef, ledger.TransactionID) {
		e := newTestEngine(t)
		ref := seedAccount(t, e, "1111111111", "004", "10000")
		tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "1000"))
		require.NoError(t, err)
		return e, ref, tx.ID
	}
	ctx := context.Background()

	updEngine, updRef, updID := build(t)
	amount := money("250")
	_, err := updEngine.UpdateTransaction(ctx, owner, updID, ledger.Patch{Amount: &amount})
	require.NoError(t, err)

	delEngine, delRef, delID := build(t)
	require.NoError(t, delEngine.DeleteTransaction(ctx, owner, delID))
	_, err = delEngine.CreateTransaction(ctx, owner, expenseInput(delRef, "250"))
	require.NoError(t, err)

	assert.True(t, balanceOf(t, updEngine, updRef).Equal(balanceOf(t, delEngine, delRef)))
	assert.True(t, balanceOf(t, updEngine, updRef).Equal(money("9750")))
}

func TestUpdateTransaction_DebtPaymentKeepsDerivedType(t *testing.T) {
	// GIVEN: A debt payment
	// WHEN: Patching the type to something else
	// THEN: The stored type stays "Debt Payment" while the debt reference
	//       is present

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	debt := seedDebt(t, e, "96000")

	in := expenseInput(ref, "2000")
	in.DebtID = debt.ID
	tx, err := e.CreateTransaction(context.Background(), owner, in)
	require.NoError(t, err)

	typ := "Food"
	updated, err := e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{Type: &typ})
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeDebtPayment, updated.Type)
}

func TestUpdateTransaction_DebtPaymentAmountChange_AdjustsDebt(t *testing.T) {
	// GIVEN: A 2000 debt payment (loan balance 94000, installment 6)
	// WHEN: Changing the amount to 3000
	// THEN: Loan balance 93000; the installment counter nets out unchanged

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	debt := seedDebt(t, e, "96000")

	in := expenseInput(ref, "2000")
	in.DebtID = debt.ID
	tx, err := e.CreateTransaction(context.Background(), owner, in)
	require.NoError(t, err)

	amount := money("3000")
	_, err = e.UpdateTransaction(context.Background(), owner, tx.ID, ledger.Patch{Amount: &amount})
	require.NoError(t, err)

	got, err := e.GetDebt(context.Background(), owner, debt.ID)
	require.NoError(t, err)
	assert.True(t, got.LoanBalance.Equal(money("93000")))
	assert.Equal(t, 6, got.CurrentInstallment)
	assert.True(t, balanceOf(t, e, ref).Equal(money("7000")))
}

func TestUpdateTransaction_WrongOwner_NotFound(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "100"))
	require.NoError(t, err)

	note := "mine now"
	_, err = e.UpdateTransaction(context.Background(), otherOwner, tx.ID, ledger.Patch{Note: &note})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdateTransaction_MalformedID_Rejected(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.UpdateTransaction(context.Background(), owner, "not-a-uuid", ledger.Patch{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteTransaction_Expense_RestoresBalance(t *testing.T) {
	// GIVEN: A 1000 expense (balance 9000)
	// WHEN: Deleting it
	// THEN: Balance is back to 10000 and the row is gone

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "1000"))
	require.NoError(t, err)

	require.NoError(t, e.DeleteTransaction(context.Background(), owner, tx.ID))
	assert.True(t, balanceOf(t, e, ref).Equal(money("10000")))

	_, err = e.GetTransaction(context.Background(), owner, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDeleteTransaction_Income_MayGoNegative(t *testing.T) {
	// GIVEN: Balance 0, a 3000 salary (balance 3000), then 2500 spent
	// WHEN: Deleting the salary
	// THEN: The reversal is unconditional; balance goes to -2500

	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "0")
	ctx := context.Background()

	income, err := e.CreateTransaction(ctx, owner, ledger.CreateInput{
		Datetime: testNow.Add(-2 * time.Hour),
		Category: ledger.CategoryIncome,
		Type:     "40(1)Salary",
		Amount:   money("3000"),
		Receiver: &ref,
	})
	require.NoError(t, err)
	_, err = e.CreateTransaction(ctx, owner, expenseInput(ref, "2500"))
	require.NoError(t, err)

	require.NoError(t, e.DeleteTransaction(ctx, owner, income.ID))
	assert.True(t, balanceOf(t, e, ref).Equal(money("-2500")))
}

func TestDeleteTransaction_WrongOwner_NotFound(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")
	tx, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "100"))
	require.NoError(t, err)

	err = e.DeleteTransaction(context.Background(), otherOwner, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.True(t, balanceOf(t, e, ref).Equal(money("900")))
}

// =============================================================================
// READS
// =============================================================================

func TestListTransactions_NewestFirst(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "10000")
	ctx := context.Background()

	older := expenseInput(ref, "10")
	older.Datetime = testNow.Add(-48 * time.Hour)
	newer := expenseInput(ref, "20")
	newer.Datetime = testNow.Add(-time.Hour)

	_, err := e.CreateTransaction(ctx, owner, older)
	require.NoError(t, err)
	_, err = e.CreateTransaction(ctx, owner, newer)
	require.NoError(t, err)

	txs, err := e.ListTransactions(ctx, owner)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Amount.Equal(money("20")))
	assert.True(t, txs[1].Amount.Equal(money("10")))
}

func TestListTransactionsByAccount_OwnershipChecked(t *testing.T) {
	e := newTestEngine(t)
	ref := seedAccount(t, e, "1111111111", "004", "1000")
	_, err := e.CreateTransaction(context.Background(), owner, expenseInput(ref, "100"))
	require.NoError(t, err)

	txs, err := e.ListTransactionsByAccount(context.Background(), owner, ref)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	_, err = e.ListTransactionsByAccount(context.Background(), otherOwner, ref)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateAccount_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateAccount(ctx, &ledger.Account{FICode: "004", OwnerID: owner})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = e.CreateAccount(ctx, &ledger.Account{
		AccountNumber: "1111111111", FICode: "004", OwnerID: owner,
		Balance: money("-1"),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateAccount_DuplicateKey_Conflict(t *testing.T) {
	e := newTestEngine(t)
	seedAccount(t, e, "1111111111", "004", "100")

	_, err := e.CreateAccount(context.Background(), &ledger.Account{
		AccountNumber: "1111111111", FICode: "004", OwnerID: owner,
		Balance: money("0"),
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}
