package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/charles-997/budge/internal/core"
)

// cascadeResult describes one forward propagation through a category's chain.
type cascadeResult struct {
	Rewritten    int  // records whose balance changed
	ShortCircuit bool // stopped at a record whose balance was already right
}

// findOrCreateCategoryMonth returns the record for (categoryID, month),
// materializing it if missing. Materialization fills every month between
// the category's nearest existing record and the requested month, each
// carrying the previous balance forward with nothing budgeted and no
// activity, so the chain never has gaps.
func (e *Engine) findOrCreateCategoryMonth(tx Tx, categoryID string, month core.Month) (core.CategoryMonth, error) {
	category, err := tx.GetCategory(categoryID)
	if err != nil {
		return core.CategoryMonth{}, err
	}

	cm, err := tx.GetCategoryMonth(categoryID, month)
	if err == nil {
		return cm, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.CategoryMonth{}, err
	}

	first, err := tx.FirstCategoryMonth(categoryID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return e.materialize(tx, category, month, month, core.Money{})
	case err != nil:
		return core.CategoryMonth{}, err
	case month.Before(first.Month):
		// Nothing precedes these months, so they open at zero and leave the
		// existing chain's recurrence untouched.
		if _, err := e.materialize(tx, category, month, first.Month.Prev(), core.Money{}); err != nil {
			return core.CategoryMonth{}, err
		}
		return tx.GetCategoryMonth(categoryID, month)
	}

	before, err := tx.ListCategoryMonths(categoryID, first.Month, month.Prev())
	if err != nil {
		return core.CategoryMonth{}, err
	}
	prev := before[len(before)-1]
	return e.materialize(tx, category, prev.Month.Next(), month, prev.Balance)
}

// materialize writes carry-forward records for every month in [from, to]
// and returns the last one.
func (e *Engine) materialize(tx Tx, category core.Category, from, to core.Month, balance core.Money) (core.CategoryMonth, error) {
	now := e.now()
	var last core.CategoryMonth
	for m := from; !m.After(to); m = m.Next() {
		last = core.CategoryMonth{
			ID:         e.newID(),
			BudgetID:   category.BudgetID,
			CategoryID: category.ID,
			Month:      m,
			Balance:    balance,
			Created:    now,
			Updated:    now,
		}
		if err := tx.PutCategoryMonth(last); err != nil {
			return core.CategoryMonth{}, fmt.Errorf("put category month %s/%s: %w", category.ID, m, err)
		}
	}
	return last, nil
}

// setBudgeted assigns amount to the month, recomputes its balance and
// cascades the change forward.
func (e *Engine) setBudgeted(ctx context.Context, tx Tx, categoryID string, month core.Month, amount core.Money) (core.CategoryMonth, error) {
	cm, err := e.findOrCreateCategoryMonth(tx, categoryID, month)
	if err != nil {
		return core.CategoryMonth{}, err
	}
	cm.Budgeted = amount
	return e.rebalance(ctx, tx, cm)
}

// recordActivity adds delta to the month's activity, recomputes its balance
// and cascades the change forward.
func (e *Engine) recordActivity(ctx context.Context, tx Tx, categoryID string, month core.Month, delta core.Money) (core.CategoryMonth, error) {
	cm, err := e.findOrCreateCategoryMonth(tx, categoryID, month)
	if err != nil {
		return core.CategoryMonth{}, err
	}
	if cm.Activity, err = cm.Activity.CheckedAdd(delta); err != nil {
		return core.CategoryMonth{}, fmt.Errorf("category month %s/%s: %w", categoryID, month, err)
	}
	return e.rebalance(ctx, tx, cm)
}

// rebalance recomputes balance = previous balance + budgeted + activity for
// cm, persists it, cascades forward, then extends the chain to the horizon.
func (e *Engine) rebalance(ctx context.Context, tx Tx, cm core.CategoryMonth) (core.CategoryMonth, error) {
	prevBalance, err := e.previousBalance(tx, cm)
	if err != nil {
		return core.CategoryMonth{}, err
	}
	if cm.Balance, err = carryBalance(prevBalance, cm); err != nil {
		return core.CategoryMonth{}, err
	}
	cm.Updated = e.now()
	if err := tx.PutCategoryMonth(cm); err != nil {
		return core.CategoryMonth{}, fmt.Errorf("put category month %s/%s: %w", cm.CategoryID, cm.Month, err)
	}

	res, err := e.cascade(tx, cm)
	if err != nil {
		return core.CategoryMonth{}, err
	}
	e.logger.DebugContext(ctx, "Category month cascade finished",
		"category_id", cm.CategoryID,
		"month", cm.Month.String(),
		"cascade_length", res.Rewritten,
		"short_circuit", res.ShortCircuit)

	if err := e.extendToHorizon(tx, cm); err != nil {
		return core.CategoryMonth{}, err
	}
	return cm, nil
}

// carryBalance is prev + budgeted + activity, failing instead of wrapping
// around the int64 range.
func carryBalance(prev core.Money, cm core.CategoryMonth) (core.Money, error) {
	balance, err := prev.CheckedAdd(cm.Budgeted)
	if err == nil {
		balance, err = balance.CheckedAdd(cm.Activity)
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("category month %s/%s: %w", cm.CategoryID, cm.Month, err)
	}
	return balance, nil
}

func (e *Engine) previousBalance(tx Tx, cm core.CategoryMonth) (core.Money, error) {
	prev, err := tx.GetCategoryMonth(cm.CategoryID, cm.Month.Prev())
	if errors.Is(err, core.ErrNotFound) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, err
	}
	return prev.Balance, nil
}

// cascade propagates changed's balance through the later records of its
// category. It stops at the first record whose recomputed balance equals
// the stored one: everything after it is already consistent.
func (e *Engine) cascade(tx Tx, changed core.CategoryMonth) (cascadeResult, error) {
	var res cascadeResult
	later, err := tx.ListCategoryMonths(changed.CategoryID, changed.Month.Next(), core.Month{})
	if err != nil {
		return res, err
	}

	prev := changed
	for _, cm := range later {
		balance, err := carryBalance(prev.Balance, cm)
		if err != nil {
			return res, err
		}
		if balance == cm.Balance {
			res.ShortCircuit = true
			break
		}
		cm.Balance = balance
		cm.Updated = e.now()
		if err := tx.PutCategoryMonth(cm); err != nil {
			return res, fmt.Errorf("put category month %s/%s: %w", cm.CategoryID, cm.Month, err)
		}
		res.Rewritten++
		prev = cm
	}
	return res, nil
}

// extendToHorizon materializes carry-forward records after the category's
// last record up to the month after the current one, so a fresh assignment
// is visible as next month's available balance. Writes beyond the horizon
// never extend the chain.
func (e *Engine) extendToHorizon(tx Tx, cm core.CategoryMonth) error {
	horizon := core.MonthOf(e.now()).Next()
	if cm.Month.After(horizon) {
		return nil
	}
	last, err := tx.LastCategoryMonth(cm.CategoryID)
	if err != nil {
		return err
	}
	if !last.Month.Before(horizon) {
		return nil
	}
	category, err := tx.GetCategory(cm.CategoryID)
	if err != nil {
		return err
	}
	_, err = e.materialize(tx, category, last.Month.Next(), horizon, last.Balance)
	return err
}
