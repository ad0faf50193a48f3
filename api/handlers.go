/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the transaction ledger via REST API. Handles HTTP
  request/response, JSON serialization, and delegates all consistency
  logic to the engine.

ENDPOINTS:
  Transactions:
    GET    /api/transactions           List caller's transactions
    POST   /api/transactions           Create transaction (applies effect)
    GET    /api/transactions/{id}      Get one transaction
    PUT    /api/transactions/{id}      Update (reverse + reapply effect)
    DELETE /api/transactions/{id}      Delete (reverse effect)

  Accounts:
    GET    /api/accounts               List caller's accounts
    POST   /api/accounts               Register account with opening balance
    GET    /api/accounts/{number}/{fi}              Get account
    GET    /api/accounts/{number}/{fi}/transactions History for account

  Debts:
    GET    /api/debts                  List caller's debts
    POST   /api/debts                  Register debt
    GET    /api/debts/{id}             Get debt

  Budgets:
    GET    /api/budgets                List budgets (unreconciled)
    PUT    /api/budgets                Set monthly limit
    GET    /api/budgets/{type}         Get reconciled budget (?month=YYYY-MM)

  Summary:
    GET    /api/summary/monthly        Per-month income/expense (?months=N)

IDENTITY:
  The caller is identified by the X-Owner-ID header. Requests without it
  get 400. There is no authentication beyond that; this service sits
  behind a gateway that validates the header.

ERROR HANDLING:
  Engine errors map to HTTP status by sentinel:
  - 400: validation, insufficient balance
  - 404: not found (includes ownership failures)
  - 409: duplicate key
  - 503: store unavailable
  - 500: anything else

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/logger"
)

const ownerHeader = "X-Owner-ID"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{Engine: engine}
}

func ownerID(r *http.Request) string {
	return r.Header.Get(ownerHeader)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns the caller's transactions, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	txs, err := h.Engine.ListTransactions(r.Context(), owner)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetTransaction returns a single transaction.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	tx, err := h.Engine.GetTransaction(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// CreateTransaction records a transaction and applies its monetary effect.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	datetime, err := time.Parse(time.RFC3339, req.Datetime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid datetime (use RFC3339)", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	tx, err := h.Engine.CreateTransaction(r.Context(), owner, ledger.CreateInput{
		Datetime: datetime,
		Category: ledger.Category(req.Category),
		Type:     req.Type,
		Amount:   amount,
		Note:     req.Note,
		Sender:   req.Sender.toRef(),
		Receiver: req.Receiver.toRef(),
		DebtID:   req.DebtID,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("transaction_id", string(tx.ID)).
		Str("category", string(tx.Category)).
		Str("amount", tx.Amount.StringFixed(2)).
		Msg("transaction created")

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// UpdateTransaction patches a transaction, reversing and reapplying its
// monetary effect when needed.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var patch ledger.Patch
	if req.Datetime != nil {
		dt, err := time.Parse(time.RFC3339, *req.Datetime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid datetime (use RFC3339)", err)
			return
		}
		patch.Datetime = &dt
	}
	if req.Category != nil {
		c := ledger.Category(*req.Category)
		patch.Category = &c
	}
	patch.Type = req.Type
	if req.Amount != nil {
		a, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		patch.Amount = &a
	}
	patch.Note = req.Note
	patch.Sender = req.Sender.toRef()
	patch.Receiver = req.Receiver.toRef()

	tx, err := h.Engine.UpdateTransaction(r.Context(), owner, id, patch)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("transaction_id", string(tx.ID)).
		Msg("transaction updated")

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction removes a transaction after reversing its effect.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteTransaction(r.Context(), owner, id); err != nil {
		writeEngineError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("transaction_id", string(id)).
		Msg("transaction deleted")

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListTransactionTypes returns the category to allowed-type table so
// clients can populate their pickers.
func (h *Handler) ListTransactionTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledger.AllTypes())
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns the caller's bank accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	accounts, err := h.Engine.ListAccounts(r.Context(), owner)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount registers a bank account with its opening balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance, err := decimal.NewFromString(req.OpeningBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid opening_balance", err)
		return
	}

	acct, err := h.Engine.CreateAccount(r.Context(), &ledger.Account{
		AccountNumber: req.AccountNumber,
		FICode:        req.FICode,
		OwnerID:       owner,
		DisplayName:   req.DisplayName,
		Balance:       balance,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// GetAccount returns one of the caller's accounts.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	ref := ledger.AccountRef{
		AccountNumber: chi.URLParam(r, "number"),
		FICode:        chi.URLParam(r, "fi"),
	}

	acct, err := h.Engine.GetAccount(r.Context(), owner, ref)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// GetAccountTransactions returns the transactions touching one account.
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	ref := ledger.AccountRef{
		AccountNumber: chi.URLParam(r, "number"),
		FICode:        chi.URLParam(r, "fi"),
	}

	txs, err := h.Engine.ListTransactionsByAccount(r.Context(), owner, ref)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// DEBT HANDLERS
// =============================================================================

// ListDebts returns the caller's debts.
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	debts, err := h.Engine.ListDebts(r.Context(), owner)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	dtos := make([]DebtDTO, len(debts))
	for i := range debts {
		dtos[i] = toDebtDTO(&debts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDebt registers a debt.
func (h *Handler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	var req CreateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	principal, err := decimal.NewFromString(req.LoanPrincipal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan_principal", err)
		return
	}
	balance, err := decimal.NewFromString(req.LoanBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan_balance", err)
		return
	}

	debt, err := h.Engine.CreateDebt(r.Context(), &ledger.Debt{
		OwnerID:            owner,
		Name:               req.Name,
		FICode:             req.FICode,
		LoanPrincipal:      principal,
		LoanBalance:        balance,
		CurrentInstallment: req.CurrentInstallment,
		TotalInstallments:  req.TotalInstallments,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(debt))
}

// GetDebt returns one of the caller's debts.
func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	id := chi.URLParam(r, "id")

	debt, err := h.Engine.GetDebt(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(debt))
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListBudgets returns the caller's budgets without reconciling them.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	budgets, err := h.Engine.ListBudgets(r.Context(), owner)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	dtos := make([]BudgetDTO, len(budgets))
	for i := range budgets {
		dtos[i] = toBudgetDTO(&budgets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetBudget creates or replaces a monthly spending limit.
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	var req SetBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := time.ParseInLocation("2006-01", req.Month, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}
	limit, err := decimal.NewFromString(req.MonthlyLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monthly_limit", err)
		return
	}

	b, err := h.Engine.SetBudget(r.Context(), owner, req.Type, month, limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// GetBudget returns one budget with its spending cache reconciled against
// the transaction history. Month defaults to the current month.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}
	expenseType := chi.URLParam(r, "type")

	month := time.Now().UTC()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.ParseInLocation("2006-01", m, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
			return
		}
		month = parsed
	}

	b, err := h.Engine.GetReconciledBudget(r.Context(), owner, expenseType, month)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// MonthlySummary returns per-month income and expense totals, most recent
// month first. Defaults to 12 months.
func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header is required", nil)
		return
	}

	months := 0
	if m := r.URL.Query().Get("months"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid months parameter", err)
			return
		}
		months = parsed
	}

	totals, err := h.Engine.MonthlySummary(r.Context(), owner, months)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyTotalDTOs(totals))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to HTTP status codes by sentinel.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ledger.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ledger.ErrStoreUnavailable):
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("store unavailable")
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", nil)
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
