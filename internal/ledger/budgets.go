package ledger

import (
	"context"
	"fmt"

	"github.com/charles-997/budge/internal/core"
)

// CreateBudget creates a budget together with the records every budget
// needs: the internal inflow group, its single inflow category, and the
// reserved internal payees.
func (e *Engine) CreateBudget(ctx context.Context, name string) (core.Budget, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	now := e.now()
	budget := core.Budget{ID: e.newID(), Name: name, Created: now, Updated: now}
	err := e.write(ctx, "create budget", budget.ID, func(tx Tx) error {
		if err := tx.PutBudget(budget); err != nil {
			return err
		}
		group := core.CategoryGroup{
			ID:       e.newID(),
			BudgetID: budget.ID,
			Name:     core.InflowGroupName,
			Internal: true,
			Locked:   true,
			Created:  now,
			Updated:  now,
		}
		if err := tx.PutCategoryGroup(group); err != nil {
			return err
		}
		inflow := core.Category{
			ID:              e.newID(),
			BudgetID:        budget.ID,
			CategoryGroupID: group.ID,
			Name:            core.InflowCategoryName,
			Inflow:          true,
			Locked:          true,
			Created:         now,
			Updated:         now,
		}
		if err := tx.PutCategory(inflow); err != nil {
			return err
		}
		for _, name := range []string{core.StartingBalancePayee, core.ReconciliationPayee} {
			payee := core.Payee{
				ID:       e.newID(),
				BudgetID: budget.ID,
				Name:     name,
				Internal: true,
				Created:  now,
				Updated:  now,
			}
			if err := tx.PutPayee(payee); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Budget{}, err
	}

	e.logger.InfoContext(ctx, "Budget created", "budget_id", budget.ID, "name", name)
	e.publish(ctx, EventBudgetCreated, budget.ID, budget.ID)
	return budget, nil
}

func (e *Engine) GetBudget(ctx context.Context, budgetID string) (core.Budget, error) {
	var budget core.Budget
	err := e.read(ctx, "get budget", budgetID, func(tx Tx) error {
		var err error
		budget, err = tx.GetBudget()
		return err
	})
	return budget, err
}

func (e *Engine) CreateCategoryGroup(ctx context.Context, budgetID, name string) (core.CategoryGroup, error) {
	if err := core.ValidateName(name); err != nil {
		return core.CategoryGroup{}, fmt.Errorf("create category group: %w", err)
	}
	var group core.CategoryGroup
	err := e.write(ctx, "create category group", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		groups, err := tx.ListCategoryGroups()
		if err != nil {
			return err
		}
		now := e.now()
		group = core.CategoryGroup{
			ID:       e.newID(),
			BudgetID: budgetID,
			Name:     name,
			Order:    len(groups),
			Created:  now,
			Updated:  now,
		}
		return tx.PutCategoryGroup(group)
	})
	return group, err
}

func (e *Engine) ListCategoryGroups(ctx context.Context, budgetID string) ([]core.CategoryGroup, error) {
	var groups []core.CategoryGroup
	err := e.read(ctx, "list category groups", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		var err error
		groups, err = tx.ListCategoryGroups()
		return err
	})
	return groups, err
}

// CreateCategory adds a regular (non-inflow) category to a group. The inflow
// category is only ever created with the budget.
func (e *Engine) CreateCategory(ctx context.Context, budgetID, groupID, name string) (core.Category, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	var category core.Category
	err := e.write(ctx, "create category", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		group, err := tx.GetCategoryGroup(groupID)
		if err != nil {
			return err
		}
		if group.Locked {
			return core.Validationf("category group %q is locked", group.Name)
		}
		categories, err := tx.ListCategories()
		if err != nil {
			return err
		}
		order := 0
		for _, c := range categories {
			if c.CategoryGroupID == group.ID {
				order++
			}
		}
		now := e.now()
		category = core.Category{
			ID:              e.newID(),
			BudgetID:        budgetID,
			CategoryGroupID: group.ID,
			Name:            name,
			Order:           order,
			Created:         now,
			Updated:         now,
		}
		return tx.PutCategory(category)
	})
	if err != nil {
		return core.Category{}, err
	}
	e.publish(ctx, EventCategoryCreated, budgetID, category.ID)
	return category, nil
}

func (e *Engine) ListCategories(ctx context.Context, budgetID string) ([]core.Category, error) {
	var categories []core.Category
	err := e.read(ctx, "list categories", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		var err error
		categories, err = tx.ListCategories()
		return err
	})
	return categories, err
}

func (e *Engine) CreatePayee(ctx context.Context, budgetID, name string) (core.Payee, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Payee{}, fmt.Errorf("create payee: %w", err)
	}
	var payee core.Payee
	err := e.write(ctx, "create payee", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		now := e.now()
		payee = core.Payee{
			ID:       e.newID(),
			BudgetID: budgetID,
			Name:     name,
			Created:  now,
			Updated:  now,
		}
		return tx.PutPayee(payee)
	})
	return payee, err
}

func (e *Engine) ListPayees(ctx context.Context, budgetID string) ([]core.Payee, error) {
	var payees []core.Payee
	err := e.read(ctx, "list payees", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		var err error
		payees, err = tx.ListPayees()
		return err
	})
	return payees, err
}

// SetCategoryMonthBudgeted assigns amount to a category for month and
// cascades the new balance through the following months.
func (e *Engine) SetCategoryMonthBudgeted(ctx context.Context, budgetID, categoryID string, month core.Month, amount core.Money) (core.CategoryMonth, error) {
	if err := amount.Validate(); err != nil {
		return core.CategoryMonth{}, fmt.Errorf("set category month budgeted: %w", err)
	}
	var cm core.CategoryMonth
	err := e.write(ctx, "set category month budgeted", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		var err error
		cm, err = e.setBudgeted(ctx, tx, categoryID, month, amount)
		return err
	})
	if err != nil {
		return core.CategoryMonth{}, err
	}

	e.logger.InfoContext(ctx, "Category month budgeted",
		"budget_id", budgetID,
		"category_id", categoryID,
		"month", month.String(),
		"budgeted_cents", amount.Cents)
	e.publish(ctx, EventCategoryMonthBudgeted, budgetID, cm.ID)
	return cm, nil
}

// GetCategoryMonth returns the record for a category and month,
// materializing it (and any missing months before it) on first access.
func (e *Engine) GetCategoryMonth(ctx context.Context, budgetID, categoryID string, month core.Month) (core.CategoryMonth, error) {
	var cm core.CategoryMonth
	err := e.store.Update(ctx, budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		var err error
		cm, err = e.findOrCreateCategoryMonth(tx, categoryID, month)
		return err
	})
	if err != nil {
		return core.CategoryMonth{}, e.wrapRead("get category month", err)
	}
	return cm, nil
}

// GetMonth returns the records of every category of the budget for month,
// materializing missing ones.
func (e *Engine) GetMonth(ctx context.Context, budgetID string, month core.Month) ([]core.CategoryMonth, error) {
	var months []core.CategoryMonth
	err := e.store.Update(ctx, budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		categories, err := tx.ListCategories()
		if err != nil {
			return err
		}
		months = make([]core.CategoryMonth, 0, len(categories))
		for _, c := range categories {
			cm, err := e.findOrCreateCategoryMonth(tx, c.ID, month)
			if err != nil {
				return err
			}
			months = append(months, cm)
		}
		return nil
	})
	if err != nil {
		return nil, e.wrapRead("get month", err)
	}
	return months, nil
}

// wrapRead types errors of operations that only materialize lazily created
// records and therefore leave the aggregate untouched.
func (e *Engine) wrapRead(op string, err error) error {
	if core.KindOf(err) == nil {
		return core.StoreFailure(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
