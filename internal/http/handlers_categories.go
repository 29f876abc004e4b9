package http

import (
	"net/http"

	"github.com/charles-997/budge/internal/core"
)

// categoryGroupView is a category group with its categories in order.
type categoryGroupView struct {
	core.CategoryGroup
	Categories []core.Category `json:"categories"`
}

func (s *Server) handleCreateCategoryGroup(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "create category group", err)
		return
	}
	var req nameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create category group", err)
		return
	}
	name, err := req.clean()
	if err != nil {
		writeError(w, r, "create category group", err)
		return
	}

	g, err := s.ledger.CreateCategoryGroup(r.Context(), budgetID, name)
	if err != nil {
		writeError(w, r, "create category group", err)
		return
	}
	Created(w, g)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "create category", err)
		return
	}
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create category", err)
		return
	}
	if err := requireField(req.CategoryGroupID != "", "categoryGroupId"); err != nil {
		writeError(w, r, "create category", err)
		return
	}
	name, err := nameRequest{Name: req.Name}.clean()
	if err != nil {
		writeError(w, r, "create category", err)
		return
	}

	c, err := s.ledger.CreateCategory(r.Context(), budgetID, req.CategoryGroupID, name)
	if err != nil {
		writeError(w, r, "create category", err)
		return
	}
	Created(w, c)
}

// handleListCategories returns the category groups with their categories
// nested, both in display order.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	budgetID, err := PathID(r, "budgetId")
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	groups, err := s.ledger.ListCategoryGroups(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	categories, err := s.ledger.ListCategories(r.Context(), budgetID)
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}

	byGroup := make(map[string][]core.Category, len(groups))
	for _, c := range categories {
		byGroup[c.CategoryGroupID] = append(byGroup[c.CategoryGroupID], c)
	}
	views := make([]categoryGroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, categoryGroupView{CategoryGroup: g, Categories: nonNil(byGroup[g.ID])})
	}
	OK(w, views)
}

func (s *Server) handleGetCategoryMonth(w http.ResponseWriter, r *http.Request) {
	budgetID, categoryID, month, err := categoryMonthPath(r)
	if err != nil {
		writeError(w, r, "get category month", err)
		return
	}
	cm, err := s.ledger.GetCategoryMonth(r.Context(), budgetID, categoryID, month)
	if err != nil {
		writeError(w, r, "get category month", err)
		return
	}
	OK(w, cm)
}

func (s *Server) handleSetBudgeted(w http.ResponseWriter, r *http.Request) {
	budgetID, categoryID, month, err := categoryMonthPath(r)
	if err != nil {
		writeError(w, r, "set budgeted", err)
		return
	}
	var req budgetedRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, "set budgeted", err)
		return
	}
	if err := requireField(req.Budgeted != nil, "budgeted"); err != nil {
		writeError(w, r, "set budgeted", err)
		return
	}

	cm, err := s.ledger.SetCategoryMonthBudgeted(r.Context(), budgetID, categoryID, month, *req.Budgeted)
	if err != nil {
		writeError(w, r, "set budgeted", err)
		return
	}
	OK(w, cm)
}

func categoryMonthPath(r *http.Request) (budgetID, categoryID string, month core.Month, err error) {
	if budgetID, err = PathID(r, "budgetId"); err != nil {
		return
	}
	if categoryID, err = PathID(r, "categoryId"); err != nil {
		return
	}
	month, err = PathMonth(r, "month")
	return
}
