package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/charles-997/budge/internal/core"
)

// TransactionInput describes a new transaction. Paying a transfer payee
// turns the transaction into a transfer: the category is dropped and a
// mirrored transaction is created in the payee's account.
type TransactionInput struct {
	AccountID  string                 `json:"accountId"`
	PayeeID    string                 `json:"payeeId"`
	CategoryID string                 `json:"categoryId,omitempty"`
	Amount     core.Money             `json:"amount"`
	Date       core.Date              `json:"date"`
	Memo       string                 `json:"memo"`
	Status     core.TransactionStatus `json:"status,omitempty"` // default pending
}

// TransactionPatch holds the attributes to change on a transaction. Nil
// fields are left unchanged; an empty CategoryID uncategorizes it.
type TransactionPatch struct {
	AccountID  *string                 `json:"accountId,omitempty"`
	PayeeID    *string                 `json:"payeeId,omitempty"`
	CategoryID *string                 `json:"categoryId,omitempty"`
	Amount     *core.Money             `json:"amount,omitempty"`
	Date       *core.Date              `json:"date,omitempty"`
	Memo       *string                 `json:"memo,omitempty"`
	Status     *core.TransactionStatus `json:"status,omitempty"`
}

func (p TransactionPatch) apply(t core.Transaction) core.Transaction {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.PayeeID != nil {
		t.PayeeID = *p.PayeeID
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Memo != nil {
		t.Memo = *p.Memo
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}

func (e *Engine) CreateTransaction(ctx context.Context, budgetID string, in TransactionInput) (core.Transaction, error) {
	now := e.now()
	t := core.Transaction{
		ID:         e.newID(),
		BudgetID:   budgetID,
		AccountID:  in.AccountID,
		PayeeID:    in.PayeeID,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Date:       in.Date,
		Memo:       strings.TrimSpace(in.Memo),
		Status:     in.Status,
		Created:    now,
		Updated:    now,
	}
	if t.Status == "" {
		t.Status = core.Pending
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	err := e.write(ctx, "create transaction", budgetID, func(tx Tx) error {
		var err error
		t, err = resolve(tx, t)
		if err != nil {
			return err
		}
		if err := tx.PutTransaction(t); err != nil {
			return err
		}
		if err := e.apply(ctx, tx, effectOf(t)); err != nil {
			return err
		}
		if !t.IsTransfer() {
			return nil
		}
		mirror, err := e.mirrorOf(tx, t, "")
		if err != nil {
			return err
		}
		t.TransferTransactionID = mirror.ID
		if err := tx.PutTransaction(t); err != nil {
			return err
		}
		if err := tx.PutTransaction(mirror); err != nil {
			return err
		}
		return e.apply(ctx, tx, effectOf(mirror))
	})
	if err != nil {
		return core.Transaction{}, err
	}

	e.logger.InfoContext(ctx, "Transaction created",
		"budget_id", budgetID,
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"amount_cents", t.Amount.Cents,
		"transfer", t.IsTransfer())
	e.publish(ctx, EventTransactionCreated, budgetID, t.ID)
	return t, nil
}

// UpdateTransaction applies patch. The old contribution of the transaction
// is reversed where it was posted and the new one applied where it now
// belongs. For transfers the other side is rebuilt from the edited side.
func (e *Engine) UpdateTransaction(ctx context.Context, budgetID, transactionID string, patch TransactionPatch) (core.Transaction, error) {
	var t core.Transaction
	err := e.write(ctx, "update transaction", budgetID, func(tx Tx) error {
		old, err := tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}

		t = patch.apply(old)
		t.Memo = strings.TrimSpace(t.Memo)
		t.TransferAccountID = ""
		t.Updated = e.now()
		if err := t.Validate(); err != nil {
			return err
		}
		if t, err = resolve(tx, t); err != nil {
			return err
		}

		var oldMirror core.Transaction
		if old.TransferTransactionID != "" {
			if oldMirror, err = tx.GetTransaction(old.TransferTransactionID); err != nil {
				return err
			}
			if err := e.unapply(ctx, tx, effectOf(oldMirror)); err != nil {
				return err
			}
		}

		if err := e.reapply(ctx, tx, effectOf(old), effectOf(t)); err != nil {
			return err
		}

		switch {
		case t.IsTransfer():
			mirror, err := e.mirrorOf(tx, t, old.TransferTransactionID)
			if err != nil {
				return err
			}
			if oldMirror.ID != "" {
				mirror.Status = oldMirror.Status
				mirror.Created = oldMirror.Created
			}
			t.TransferTransactionID = mirror.ID
			if err := tx.PutTransaction(mirror); err != nil {
				return err
			}
			if err := e.apply(ctx, tx, effectOf(mirror)); err != nil {
				return err
			}
		case oldMirror.ID != "":
			t.TransferTransactionID = ""
			if err := tx.DeleteTransaction(oldMirror.ID); err != nil {
				return err
			}
		}
		return tx.PutTransaction(t)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	e.logger.InfoContext(ctx, "Transaction updated",
		"budget_id", budgetID,
		"transaction_id", t.ID,
		"amount_cents", t.Amount.Cents)
	e.publish(ctx, EventTransactionUpdated, budgetID, t.ID)
	return t, nil
}

// DeleteTransaction removes a transaction and reverses its contribution.
// Deleting either side of a transfer removes both.
func (e *Engine) DeleteTransaction(ctx context.Context, budgetID, transactionID string) error {
	err := e.write(ctx, "delete transaction", budgetID, func(tx Tx) error {
		t, err := tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		sides := []core.Transaction{t}
		if t.TransferTransactionID != "" {
			mirror, err := tx.GetTransaction(t.TransferTransactionID)
			if err != nil {
				return err
			}
			sides = append(sides, mirror)
		}
		for _, side := range sides {
			if err := e.unapply(ctx, tx, effectOf(side)); err != nil {
				return err
			}
			if err := tx.DeleteTransaction(side.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Transaction deleted",
		"budget_id", budgetID,
		"transaction_id", transactionID)
	e.publish(ctx, EventTransactionDeleted, budgetID, transactionID)
	return nil
}

func (e *Engine) GetTransaction(ctx context.Context, budgetID, transactionID string) (core.Transaction, error) {
	var t core.Transaction
	err := e.read(ctx, "get transaction", budgetID, func(tx Tx) error {
		var err error
		t, err = tx.GetTransaction(transactionID)
		return err
	})
	return t, err
}

// ListTransactions returns the transactions of an account, newest first.
func (e *Engine) ListTransactions(ctx context.Context, budgetID, accountID string) ([]core.Transaction, error) {
	var txs []core.Transaction
	err := e.read(ctx, "list transactions", budgetID, func(tx Tx) error {
		if _, err := tx.GetAccount(accountID); err != nil {
			return err
		}
		var err error
		txs, err = tx.ListTransactionsByAccount(accountID)
		return err
	})
	return txs, err
}

// resolve checks every reference of t against the budget and derives its
// transfer fields from the payee.
func resolve(tx Tx, t core.Transaction) (core.Transaction, error) {
	if _, err := tx.GetAccount(t.AccountID); err != nil {
		return t, err
	}
	payee, err := tx.GetPayee(t.PayeeID)
	if err != nil {
		return t, err
	}

	if payee.TransferAccountID != "" {
		if payee.TransferAccountID == t.AccountID {
			return t, core.ErrSelfTransfer
		}
		if _, err := tx.GetAccount(payee.TransferAccountID); err != nil {
			return t, err
		}
		t.TransferAccountID = payee.TransferAccountID
		t.CategoryID = ""
		return t, nil
	}

	t.TransferAccountID = ""
	if t.CategoryID != "" {
		if _, err := tx.GetCategory(t.CategoryID); err != nil {
			return t, err
		}
	}
	return t, nil
}

// mirrorOf builds the other side of transfer t, reusing id when the mirror
// already exists.
func (e *Engine) mirrorOf(tx Tx, t core.Transaction, id string) (core.Transaction, error) {
	source, err := tx.GetAccount(t.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	if id == "" {
		id = e.newID()
	}
	return core.Transaction{
		ID:                    id,
		BudgetID:              t.BudgetID,
		AccountID:             t.TransferAccountID,
		PayeeID:               source.TransferPayeeID,
		TransferAccountID:     source.ID,
		TransferTransactionID: t.ID,
		Amount:                t.Amount.Neg(),
		Date:                  t.Date,
		Memo:                  t.Memo,
		Status:                t.Status,
		Created:               t.Updated,
		Updated:               t.Updated,
	}, nil
}
