package http

import (
	"net/http"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/log"
)

// budgetView is a budget together with its current "to be budgeted".
type budgetView struct {
	core.Budget
	ToBeBudgeted core.Money `json:"toBeBudgeted"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	name, err := req.clean()
	if err != nil {
		writeError(w, r, "create budget", err)
		return
	}

	b, err := s.ledger.CreateBudget(r.Context(), name)
	if err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget created", log.FieldBudgetID, b.ID)
	Created(w, budgetView{Budget: b})
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "get budget", err)
		return
	}

	b, err := s.ledger.GetBudget(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "get budget", err)
		return
	}
	tbb, err := s.ledger.GetToBeBudgeted(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "get budget", err)
		return
	}
	OK(w, budgetView{Budget: b, ToBeBudgeted: tbb})
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "get month", err)
		return
	}
	month, err := PathMonth(r, "month")
	if err != nil {
		writeError(w, r, "get month", err)
		return
	}

	categories, err := s.ledger.GetMonth(r.Context(), budgetID, month)
	if err != nil {
		writeError(w, r, "get month", err)
		return
	}
	tbb, err := s.ledger.GetToBeBudgeted(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "get month", err)
		return
	}
	OK(w, core.SummarizeMonth(month, categories, tbb))
}

func (s *Server) handleCreatePayee(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "create payee", err)
		return
	}
	var req nameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create payee", err)
		return
	}
	name, err := req.clean()
	if err != nil {
		writeError(w, r, "create payee", err)
		return
	}

	p, err := s.ledger.CreatePayee(r.Context(), budgetID, name)
	if err != nil {
		writeError(w, r, "create payee", err)
		return
	}
	Created(w, p)
}

func (s *Server) handleListPayees(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "list payees", err)
		return
	}
	payees, err := s.ledger.ListPayees(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "list payees", err)
		return
	}
	OK(w, nonNil(payees))
}

// nonNil keeps empty lists encoded as [] rather than omitted.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
