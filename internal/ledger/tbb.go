package ledger

import (
	"context"
	"fmt"

	"github.com/charles-997/budge/internal/core"
)

// computeToBeBudgeted derives the budget's unassigned money: everything
// posted to the inflow category minus everything budgeted in any month.
func computeToBeBudgeted(tx Tx) (core.Money, error) {
	inflow, err := tx.FindInflowCategory()
	if err != nil {
		return core.Money{}, fmt.Errorf("find inflow category: %w", err)
	}
	income, err := tx.SumCategoryActivity(inflow.ID)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum inflow: %w", err)
	}
	budgeted, err := tx.SumBudgeted()
	if err != nil {
		return core.Money{}, fmt.Errorf("sum budgeted: %w", err)
	}
	tbb, err := income.CheckedSub(budgeted)
	if err != nil {
		return core.Money{}, fmt.Errorf("to be budgeted: %w", err)
	}
	return tbb, nil
}

// GetToBeBudgeted returns the budget's "to be budgeted" amount. The value is
// recomputed from the store on a cache miss; concurrent misses for the same
// budget share one computation.
func (e *Engine) GetToBeBudgeted(ctx context.Context, budgetID string) (core.Money, error) {
	if e.cache != nil {
		if tbb, ok := e.cache.Get(budgetID); ok {
			return tbb, nil
		}
	}

	v, err, _ := e.group.Do(budgetID, func() (any, error) {
		gen := e.generation(budgetID)
		var tbb core.Money
		err := e.read(ctx, "get to be budgeted", budgetID, func(tx Tx) error {
			if _, err := tx.GetBudget(); err != nil {
				return err
			}
			var err error
			tbb, err = computeToBeBudgeted(tx)
			return err
		})
		if err != nil {
			return core.Money{}, err
		}
		e.fill(budgetID, gen, tbb)
		return tbb, nil
	})
	if err != nil {
		return core.Money{}, err
	}
	return v.(core.Money), nil
}

// InvalidateToBeBudgeted drops the cached aggregate for budgetID. It is
// called after every committed write and for change events received from
// other processes.
func (e *Engine) InvalidateToBeBudgeted(budgetID string) {
	e.mu.Lock()
	e.gens[budgetID]++
	e.mu.Unlock()

	e.group.Forget(budgetID)
	if e.cache != nil {
		e.cache.Delete(budgetID)
	}
}

func (e *Engine) generation(budgetID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gens[budgetID]
}

// fill caches tbb unless the budget was invalidated while it was computed.
func (e *Engine) fill(budgetID string, gen uint64, tbb core.Money) {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gens[budgetID] != gen {
		return
	}
	e.cache.Set(budgetID, tbb)
}
