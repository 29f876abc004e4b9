package http

import (
	"net/http"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/ledger"
	"github.com/charles-997/budge/internal/log"
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "create account", err)
		return
	}
	var in ledger.AccountInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeError(w, r, "create account", err)
		return
	}
	in.Name = sanitizeInput(in.Name)

	a, err := s.ledger.CreateAccount(r.Context(), budgetID, in)
	if err != nil {
		writeError(w, r, "create account", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account created",
		log.FieldBudgetID, budgetID,
		log.FieldAccountID, a.ID)
	Created(w, a)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	accounts, err := s.ledger.ListAccounts(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	OK(w, nonNil(accounts))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	budgetID, accountID, err := accountPath(r)
	if err != nil {
		writeError(w, r, "get account", err)
		return
	}
	a, err := s.ledger.GetAccount(r.Context(), budgetID, accountID)
	if err != nil {
		writeError(w, r, "get account", err)
		return
	}
	OK(w, a)
}

func (s *Server) handleGetAccountBalance(w http.ResponseWriter, r *http.Request) {
	budgetID, accountID, err := accountPath(r)
	if err != nil {
		writeError(w, r, "get account balance", err)
		return
	}
	balance, err := s.ledger.GetAccountBalance(r.Context(), budgetID, accountID)
	if err != nil {
		writeError(w, r, "get account balance", err)
		return
	}
	OK(w, balance)
}

// handleUpdateAccount applies a rename and/or reorder, then reconciles when
// a balance is given.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	budgetID, accountID, err := accountPath(r)
	if err != nil {
		writeError(w, r, "update account", err)
		return
	}
	var req accountUpdateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "update account", err)
		return
	}
	if req.empty() {
		writeError(w, r, "update account", core.Validationf("nothing to update"))
		return
	}

	var account core.Account
	if req.Name != nil || req.Order != nil {
		patch := ledger.AccountPatch{Order: req.Order}
		if req.Name != nil {
			name := sanitizeInput(*req.Name)
			patch.Name = &name
		}
		account, err = s.ledger.UpdateAccount(r.Context(), budgetID, accountID, patch)
		if err != nil {
			writeError(w, r, "update account", err)
			return
		}
	}
	if req.Balance != nil {
		account, err = s.ledger.ReconcileAccount(r.Context(), budgetID, accountID, *req.Balance)
		if err != nil {
			writeError(w, r, "reconcile account", err)
			return
		}
	}
	OK(w, account)
}

func accountPath(r *http.Request) (budgetID, accountID string, err error) {
	if budgetID, err = PathID(r, "budgetId"); err != nil {
		return "", "", err
	}
	if accountID, err = PathID(r, "accountId"); err != nil {
		return "", "", err
	}
	return budgetID, accountID, nil
}
