package http

import (
	"net/http"

	"github.com/charles-997/budge/internal/ledger"
	"github.com/charles-997/budge/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	var in ledger.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	in.Memo = sanitizeInput(in.Memo)

	t, err := s.ledger.CreateTransaction(r.Context(), budgetID, in)
	if err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.FieldBudgetID, budgetID,
		log.FieldAccountID, t.AccountID,
		log.FieldAmountCents, t.Amount.Cents)
	Created(w, t)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, transactionID, err := transactionPath(r)
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), budgetID, transactionID)
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	OK(w, t)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	budgetID, accountID, err := accountPath(r)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	transactions, err := s.ledger.ListTransactions(r.Context(), budgetID, accountID)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	OK(w, nonNil(transactions))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, transactionID, err := transactionPath(r)
	if err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	var patch ledger.TransactionPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	if patch.Memo != nil {
		memo := sanitizeInput(*patch.Memo)
		patch.Memo = &memo
	}

	t, err := s.ledger.UpdateTransaction(r.Context(), budgetID, transactionID, patch)
	if err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	OK(w, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, transactionID, err := transactionPath(r)
	if err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), budgetID, transactionID); err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	OK(w, nil)
}

func transactionPath(r *http.Request) (budgetID, transactionID string, err error) {
	if budgetID, err = PathID(r, "budgetId"); err != nil {
		return "", "", err
	}
	if transactionID, err = PathID(r, "transactionId"); err != nil {
		return "", "", err
	}
	return budgetID, transactionID, nil
}
