package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	acctA = ledger.AccountRef{AccountNumber: "1111111111", FICode: "004"}
	acctB = ledger.AccountRef{AccountNumber: "2222222222", FICode: "014"}
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// RULE TABLE TESTS
// =============================================================================

func TestEffectsOf_Income_CreditsReceiver(t *testing.T) {
	// GIVEN: An Income transaction into account A
	// WHEN: Computing its effects
	// THEN: A single +amount credit on the receiver, no debt effect

	tx := &ledger.Transaction{
		Category: ledger.CategoryIncome,
		Amount:   money("3000.00"),
		Receiver: &acctA,
	}

	effects, debt := ledger.EffectsOf(tx)
	require.Len(t, effects, 1)
	assert.Nil(t, debt)
	assert.Equal(t, acctA, effects[0].Account)
	assert.Equal(t, ledger.RoleReceiver, effects[0].Role)
	assert.True(t, effects[0].Delta.Equal(money("3000.00")))
	assert.False(t, effects[0].Debits())
}

func TestEffectsOf_Expense_DebitsSender(t *testing.T) {
	// GIVEN: An Expense transaction from account A
	// WHEN: Computing its effects
	// THEN: A single -amount debit on the sender

	tx := &ledger.Transaction{
		Category: ledger.CategoryExpense,
		Amount:   money("120.50"),
		Sender:   &acctA,
	}

	effects, debt := ledger.EffectsOf(tx)
	require.Len(t, effects, 1)
	assert.Nil(t, debt)
	assert.Equal(t, ledger.RoleSender, effects[0].Role)
	assert.True(t, effects[0].Delta.Equal(money("-120.50")))
	assert.True(t, effects[0].Debits())
}

func TestEffectsOf_Transfer_DebitsSenderCreditsReceiver(t *testing.T) {
	// GIVEN: A Transfer from A to B
	// WHEN: Computing its effects
	// THEN: -amount on sender and +amount on receiver, in that order

	tx := &ledger.Transaction{
		Category: ledger.CategoryTransfer,
		Amount:   money("500.00"),
		Sender:   &acctA,
		Receiver: &acctB,
	}

	effects, _ := ledger.EffectsOf(tx)
	require.Len(t, effects, 2)
	assert.Equal(t, acctA, effects[0].Account)
	assert.True(t, effects[0].Delta.Equal(money("-500.00")))
	assert.Equal(t, acctB, effects[1].Account)
	assert.True(t, effects[1].Delta.Equal(money("500.00")))
}

func TestEffectsOf_DebtPayment_ReducesLoanBalance(t *testing.T) {
	// GIVEN: An Expense with a debt reference
	// WHEN: Computing its effects
	// THEN: Sender debit plus loan_balance -amount and installment +1

	tx := &ledger.Transaction{
		Category: ledger.CategoryExpense,
		Type:     ledger.TypeDebtPayment,
		Amount:   money("2000.00"),
		Sender:   &acctA,
		DebtID:   "debt-1",
	}

	effects, debt := ledger.EffectsOf(tx)
	require.Len(t, effects, 1)
	require.NotNil(t, debt)
	assert.Equal(t, "debt-1", debt.DebtID)
	assert.True(t, debt.BalanceDelta.Equal(money("-2000.00")))
	assert.Equal(t, 1, debt.InstallmentDelta)
}

// =============================================================================
// REVERSAL ROUND-TRIP
// =============================================================================

func TestReverseEffects_RoundTrip_NetsToZero(t *testing.T) {
	// GIVEN: Any transaction's effects
	// WHEN: Summing each effect with its reversal
	// THEN: Every account and debt delta nets to exactly zero

	cases := []*ledger.Transaction{
		{Category: ledger.CategoryIncome, Amount: money("0.01"), Receiver: &acctA},
		{Category: ledger.CategoryExpense, Amount: money("999999.99"), Sender: &acctA},
		{Category: ledger.CategoryTransfer, Amount: money("250.25"), Sender: &acctA, Receiver: &acctB},
		{Category: ledger.CategoryExpense, Amount: money("2000.00"), Sender: &acctA, DebtID: "debt-1"},
	}

	for _, tx := range cases {
		effects, debt := ledger.EffectsOf(tx)
		reversed := ledger.ReverseAccountEffects(effects)
		require.Len(t, reversed, len(effects))

		for i := range effects {
			net := effects[i].Delta.Add(reversed[i].Delta)
			assert.True(t, net.IsZero(), "account delta must net to zero, got %s", net)
		}

		if debt != nil {
			rev := ledger.ReverseDebtEffect(debt)
			require.NotNil(t, rev)
			assert.True(t, debt.BalanceDelta.Add(rev.BalanceDelta).IsZero())
			assert.Zero(t, debt.InstallmentDelta+rev.InstallmentDelta)
		}
	}
}

func TestReverseDebtEffect_Nil(t *testing.T) {
	assert.Nil(t, ledger.ReverseDebtEffect(nil))
}

// =============================================================================
// CATEGORY TABLE
// =============================================================================

func TestValidType_PerCategory(t *testing.T) {
	assert.True(t, ledger.ValidType(ledger.CategoryExpense, "Groceries"))
	assert.True(t, ledger.ValidType(ledger.CategoryExpense, ledger.TypeDebtPayment))
	assert.True(t, ledger.ValidType(ledger.CategoryIncome, "40(1)Salary"))
	assert.True(t, ledger.ValidType(ledger.CategoryTransfer, "Transfer"))

	assert.False(t, ledger.ValidType(ledger.CategoryIncome, "Groceries"))
	assert.False(t, ledger.ValidType(ledger.CategoryTransfer, "Food"))
	assert.False(t, ledger.ValidType(ledger.CategoryExpense, ""))
}

func TestAccountRef_Normalize(t *testing.T) {
	ref := ledger.AccountRef{AccountNumber: "123-456-7890", FICode: " 004 "}
	norm := ref.Normalize()
	assert.Equal(t, "1234567890", norm.AccountNumber)
	assert.Equal(t, "004", norm.FICode)
}

func TestValidAmount(t *testing.T) {
	assert.True(t, ledger.ValidAmount(money("0.01")))
	assert.True(t, ledger.ValidAmount(money("100")))
	assert.False(t, ledger.ValidAmount(money("0")))
	assert.False(t, ledger.ValidAmount(money("-5.00")))
	assert.False(t, ledger.ValidAmount(money("1.999")))
}
