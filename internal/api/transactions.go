package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/app/ledger"
	"github.com/kaizen-app/kaizen/internal/domain"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	txs, err := s.ledger.History(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

type createTransactionRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
	Title  string          `json:"title"`
	Notes  string          `json:"notes"`
}

// handleCreateTransaction covers the manual adjustments. REWARD rows cannot
// be created here; only the evaluator writes those.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		tx  *domain.Transaction
		err error
	)
	switch domain.TransactionType(req.Type) {
	case domain.TxManualCredit:
		tx, err = s.ledger.ManualCredit(r.Context(), uid, req.Amount, req.Title, req.Notes)
	case domain.TxManualDebit:
		tx, err = s.ledger.ManualDebit(r.Context(), uid, req.Amount, req.Title, req.Notes)
	default:
		writeError(w, http.StatusBadRequest, "type must be MANUAL_CREDIT or MANUAL_DEBIT")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

type cashoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleCashout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req cashoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := s.ledger.Cashout(r.Context(), uid, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

type updateTransactionRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Title  *string          `json:"title"`
	Notes  *string          `json:"notes"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := s.ledger.EditTransaction(r.Context(), uid, chi.URLParam(r, "id"), ledger.TransactionPatch{
		Amount: req.Amount,
		Title:  req.Title,
		Notes:  req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
