/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs are separate from
  domain types so the wire format can evolve without touching the engine.

CONVENTIONS:
  - Amounts travel as decimal strings ("120.50"), never floats.
  - Datetimes travel as RFC3339; budget months as "YYYY-MM".
  - Update requests use pointers: absent field = keep stored value.

SEE ALSO:
  - handlers.go: where these are populated and parsed
*/
package api

import (
	"time"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// SHARED
// =============================================================================

// AccountRefDTO identifies a bank account on the wire.
type AccountRefDTO struct {
	AccountNumber string `json:"account_number"`
	FICode        string `json:"fi_code"`
}

func (d *AccountRefDTO) toRef() *ledger.AccountRef {
	if d == nil {
		return nil
	}
	return &ledger.AccountRef{AccountNumber: d.AccountNumber, FICode: d.FICode}
}

func refDTO(r *ledger.AccountRef) *AccountRefDTO {
	if r == nil {
		return nil
	}
	return &AccountRefDTO{AccountNumber: r.AccountNumber, FICode: r.FICode}
}

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// CreateTransactionRequest is the body of POST /api/transactions.
type CreateTransactionRequest struct {
	Datetime string         `json:"datetime"`
	Category string         `json:"category"`
	Type     string         `json:"type"`
	Amount   string         `json:"amount"`
	Note     string         `json:"note,omitempty"`
	Sender   *AccountRefDTO `json:"sender,omitempty"`
	Receiver *AccountRefDTO `json:"receiver,omitempty"`
	DebtID   string         `json:"debt_id,omitempty"`
}

// UpdateTransactionRequest is the body of PUT /api/transactions/{id}.
// Absent fields keep their stored values. The debt reference is not
// updatable.
type UpdateTransactionRequest struct {
	Datetime *string        `json:"datetime,omitempty"`
	Category *string        `json:"category,omitempty"`
	Type     *string        `json:"type,omitempty"`
	Amount   *string        `json:"amount,omitempty"`
	Note     *string        `json:"note,omitempty"`
	Sender   *AccountRefDTO `json:"sender,omitempty"`
	Receiver *AccountRefDTO `json:"receiver,omitempty"`
}

// TransactionDTO is the wire representation of a transaction.
type TransactionDTO struct {
	ID        string         `json:"id"`
	Datetime  string         `json:"datetime"`
	Category  string         `json:"category"`
	Type      string         `json:"type"`
	Amount    string         `json:"amount"`
	Note      string         `json:"note,omitempty"`
	Sender    *AccountRefDTO `json:"sender,omitempty"`
	Receiver  *AccountRefDTO `json:"receiver,omitempty"`
	DebtID    string         `json:"debt_id,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:        string(tx.ID),
		Datetime:  tx.Datetime.Format(time.RFC3339),
		Category:  string(tx.Category),
		Type:      tx.Type,
		Amount:    tx.Amount.StringFixed(2),
		Note:      tx.Note,
		Sender:    refDTO(tx.Sender),
		Receiver:  refDTO(tx.Receiver),
		DebtID:    tx.DebtID,
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt: tx.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	return dtos
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccountRequest is the body of POST /api/accounts.
type CreateAccountRequest struct {
	AccountNumber  string `json:"account_number"`
	FICode         string `json:"fi_code"`
	DisplayName    string `json:"display_name,omitempty"`
	OpeningBalance string `json:"opening_balance"`
}

// AccountDTO is the wire representation of a bank account with its cached
// balance.
type AccountDTO struct {
	AccountNumber string `json:"account_number"`
	FICode        string `json:"fi_code"`
	DisplayName   string `json:"display_name,omitempty"`
	Balance       string `json:"balance"`
	CreatedAt     string `json:"created_at"`
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		AccountNumber: a.AccountNumber,
		FICode:        a.FICode,
		DisplayName:   a.DisplayName,
		Balance:       a.Balance.StringFixed(2),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DEBTS
// =============================================================================

// CreateDebtRequest is the body of POST /api/debts.
type CreateDebtRequest struct {
	Name               string `json:"name"`
	FICode             string `json:"fi_code,omitempty"`
	LoanPrincipal      string `json:"loan_principal"`
	LoanBalance        string `json:"loan_balance"`
	CurrentInstallment int    `json:"current_installment"`
	TotalInstallments  int    `json:"total_installments"`
}

// DebtDTO is the wire representation of a debt with its cached remaining
// principal and installment counter.
type DebtDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	FICode             string `json:"fi_code,omitempty"`
	LoanPrincipal      string `json:"loan_principal"`
	LoanBalance        string `json:"loan_balance"`
	CurrentInstallment int    `json:"current_installment"`
	TotalInstallments  int    `json:"total_installments"`
	CreatedAt          string `json:"created_at"`
}

func toDebtDTO(d *ledger.Debt) DebtDTO {
	return DebtDTO{
		ID:                 d.ID,
		Name:               d.Name,
		FICode:             d.FICode,
		LoanPrincipal:      d.LoanPrincipal.StringFixed(2),
		LoanBalance:        d.LoanBalance.StringFixed(2),
		CurrentInstallment: d.CurrentInstallment,
		TotalInstallments:  d.TotalInstallments,
		CreatedAt:          d.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// BUDGETS AND SUMMARIES
// =============================================================================

// SetBudgetRequest is the body of PUT /api/budgets.
type SetBudgetRequest struct {
	Type         string `json:"type"`
	Month        string `json:"month"` // "2006-01"
	MonthlyLimit string `json:"monthly_limit"`
}

// BudgetDTO is the wire representation of a budget.
type BudgetDTO struct {
	Type            string `json:"type"`
	Month           string `json:"month"`
	MonthlyLimit    string `json:"monthly_limit"`
	CurrentSpending string `json:"current_spending"`
}

func toBudgetDTO(b *ledger.Budget) BudgetDTO {
	return BudgetDTO{
		Type:            b.ExpenseType,
		Month:           b.Month.Format("2006-01"),
		MonthlyLimit:    b.MonthlyLimit.StringFixed(2),
		CurrentSpending: b.CurrentSpending.StringFixed(2),
	}
}

// MonthlyTotalDTO is one row of GET /api/summary/monthly.
type MonthlyTotalDTO struct {
	Month   string `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
}

func toMonthlyTotalDTOs(totals []ledger.MonthlyTotal) []MonthlyTotalDTO {
	dtos := make([]MonthlyTotalDTO, len(totals))
	for i, t := range totals {
		dtos[i] = MonthlyTotalDTO{
			Month:   t.Month.Format("2006-01"),
			Income:  t.Income.StringFixed(2),
			Expense: t.Expense.StringFixed(2),
		}
	}
	return dtos
}
