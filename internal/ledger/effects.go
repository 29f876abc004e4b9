package ledger

import (
	"context"

	"github.com/charles-997/budge/internal/core"
)

// effect is what a stored transaction contributes to the ledger: an amount
// in one bucket of one account and, when categorized, activity in one
// category month.
//
// Create, update and delete all reduce to applying and unapplying effects.
// An edit is never diffed arithmetically: the old effect is reversed where
// it was posted and the new one applied where it now belongs, so moving a
// transaction between accounts, categories or months touches origin and
// destination independently.
type effect struct {
	AccountID  string
	Amount     core.Money
	Status     core.TransactionStatus
	CategoryID string
	Month      core.Month
}

func effectOf(t core.Transaction) effect {
	ef := effect{
		AccountID: t.AccountID,
		Amount:    t.Amount,
		Status:    t.Status,
	}
	if t.CategoryID != "" {
		ef.CategoryID = t.CategoryID
		ef.Month = t.Date.Month()
	}
	return ef
}

func (ef effect) reversed() effect {
	ef.Amount = ef.Amount.Neg()
	return ef
}

func (ef effect) equal(o effect) bool {
	return ef.AccountID == o.AccountID &&
		ef.Amount == o.Amount &&
		ef.Status == o.Status &&
		ef.CategoryID == o.CategoryID &&
		ef.Month.Equal(o.Month)
}

func (e *Engine) apply(ctx context.Context, tx Tx, ef effect) error {
	if _, err := applyTransactionDelta(tx, ef.AccountID, ef.Amount, ef.Status, e.now()); err != nil {
		return err
	}
	if ef.CategoryID == "" {
		return nil
	}
	_, err := e.recordActivity(ctx, tx, ef.CategoryID, ef.Month, ef.Amount)
	return err
}

func (e *Engine) unapply(ctx context.Context, tx Tx, ef effect) error {
	return e.apply(ctx, tx, ef.reversed())
}

// reapply moves a transaction's contribution from before to after. It is a
// no-op when nothing that affects balances changed.
func (e *Engine) reapply(ctx context.Context, tx Tx, before, after effect) error {
	if before.equal(after) {
		return nil
	}
	if err := e.unapply(ctx, tx, before); err != nil {
		return err
	}
	return e.apply(ctx, tx, after)
}
