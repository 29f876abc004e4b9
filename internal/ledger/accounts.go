package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charles-997/budge/internal/core"
)

// AccountBalance is the derived balance of an account.
type AccountBalance struct {
	Cleared   core.Money `json:"cleared"`
	Uncleared core.Money `json:"uncleared"`
	Balance   core.Money `json:"balance"`
}

func balanceOf(a core.Account) AccountBalance {
	return AccountBalance{
		Cleared:   a.Cleared,
		Uncleared: a.Uncleared,
		Balance:   a.Cleared.Add(a.Uncleared),
	}
}

// applyTransactionDelta moves amount into the bucket selected by status:
// pending amounts are uncleared, cleared and reconciled amounts are cleared.
// Balance is rewritten in the same put so it never drifts from its parts.
func applyTransactionDelta(tx Tx, accountID string, amount core.Money, status core.TransactionStatus, now time.Time) (core.Account, error) {
	if err := status.Validate(); err != nil {
		return core.Account{}, err
	}
	account, err := tx.GetAccount(accountID)
	if err != nil {
		return core.Account{}, err
	}
	if amount.IsZero() {
		return account, nil
	}

	bucket := &account.Uncleared
	if status.IsCleared() {
		bucket = &account.Cleared
	}
	if *bucket, err = bucket.CheckedAdd(amount); err != nil {
		return core.Account{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	if account.Balance, err = account.Cleared.CheckedAdd(account.Uncleared); err != nil {
		return core.Account{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	account.Updated = now

	if err := tx.PutAccount(account); err != nil {
		return core.Account{}, fmt.Errorf("put account %s: %w", accountID, err)
	}
	return account, nil
}

// AccountInput describes a new account. A non-zero Balance opens the account
// with a reconciled starting balance transaction dated Date (default: today).
type AccountInput struct {
	Name    string           `json:"name"`
	Type    core.AccountType `json:"type"`
	Balance core.Money       `json:"balance"`
	Date    core.Date        `json:"date"`
}

// AccountPatch holds the mutable attributes of an account. Nil fields are
// left unchanged.
type AccountPatch struct {
	Name  *string `json:"name,omitempty"`
	Order *int    `json:"order,omitempty"`
}

func (e *Engine) CreateAccount(ctx context.Context, budgetID string, in AccountInput) (core.Account, error) {
	now := e.now()
	account := core.Account{
		ID:       e.newID(),
		BudgetID: budgetID,
		Name:     strings.TrimSpace(in.Name),
		Type:     in.Type,
		Created:  now,
		Updated:  now,
	}
	if err := account.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	if err := in.Balance.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	err := e.write(ctx, "create account", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		accounts, err := tx.ListAccounts()
		if err != nil {
			return err
		}
		account.Order = len(accounts)

		payee := core.Payee{
			ID:                e.newID(),
			BudgetID:          budgetID,
			Name:              core.TransferPayeePrefix + account.Name,
			TransferAccountID: account.ID,
			Internal:          true,
			Created:           now,
			Updated:           now,
		}
		if err := tx.PutPayee(payee); err != nil {
			return err
		}
		account.TransferPayeeID = payee.ID
		if err := tx.PutAccount(account); err != nil {
			return err
		}

		if in.Balance.IsZero() {
			return nil
		}
		opening, err := e.startingBalance(tx, account, in.Balance, in.Date)
		if err != nil {
			return err
		}
		if err := tx.PutTransaction(opening); err != nil {
			return err
		}
		if err := e.apply(ctx, tx, effectOf(opening)); err != nil {
			return err
		}
		account, err = tx.GetAccount(account.ID)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}

	e.logger.InfoContext(ctx, "Account created",
		"budget_id", budgetID,
		"account_id", account.ID,
		"type", string(account.Type),
		"balance_cents", account.Balance.Cents)
	e.publish(ctx, EventAccountCreated, budgetID, account.ID)
	return account, nil
}

// startingBalance builds the opening transaction of a new account. Money in a
// bank account is income to budget; a credit card opens with the debt it
// already carries; tracking accounts stay off budget.
func (e *Engine) startingBalance(tx Tx, account core.Account, balance core.Money, date core.Date) (core.Transaction, error) {
	payee, err := tx.FindInternalPayee(core.StartingBalancePayee)
	if err != nil {
		return core.Transaction{}, err
	}
	if date.IsZero() {
		date = core.DateOf(e.now())
	}
	now := e.now()
	t := core.Transaction{
		ID:        e.newID(),
		BudgetID:  account.BudgetID,
		AccountID: account.ID,
		PayeeID:   payee.ID,
		Amount:    balance,
		Date:      date,
		Memo:      core.StartingBalancePayee,
		Status:    core.Reconciled,
		Created:   now,
		Updated:   now,
	}
	switch account.Type {
	case core.Bank:
		inflow, err := tx.FindInflowCategory()
		if err != nil {
			return core.Transaction{}, err
		}
		t.CategoryID = inflow.ID
	case core.CreditCard:
		t.Amount = balance.Neg()
	}
	return t, nil
}

func (e *Engine) GetAccount(ctx context.Context, budgetID, accountID string) (core.Account, error) {
	var account core.Account
	err := e.read(ctx, "get account", budgetID, func(tx Tx) error {
		var err error
		account, err = tx.GetAccount(accountID)
		return err
	})
	return account, err
}

func (e *Engine) ListAccounts(ctx context.Context, budgetID string) ([]core.Account, error) {
	var accounts []core.Account
	err := e.read(ctx, "list accounts", budgetID, func(tx Tx) error {
		if _, err := tx.GetBudget(); err != nil {
			return err
		}
		var err error
		accounts, err = tx.ListAccounts()
		return err
	})
	return accounts, err
}

func (e *Engine) GetAccountBalance(ctx context.Context, budgetID, accountID string) (AccountBalance, error) {
	account, err := e.GetAccount(ctx, budgetID, accountID)
	if err != nil {
		return AccountBalance{}, err
	}
	return balanceOf(account), nil
}

// UpdateAccount renames and/or moves an account. Renaming also renames the
// account's transfer payee; moving keeps the orders of all accounts
// contiguous starting at zero.
func (e *Engine) UpdateAccount(ctx context.Context, budgetID, accountID string, patch AccountPatch) (core.Account, error) {
	var account core.Account
	err := e.write(ctx, "update account", budgetID, func(tx Tx) error {
		var err error
		account, err = tx.GetAccount(accountID)
		if err != nil {
			return err
		}
		now := e.now()

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if err := core.ValidateName(name); err != nil {
				return err
			}
			account.Name = name
			account.Updated = now
			if err := tx.PutAccount(account); err != nil {
				return err
			}
			payee, err := tx.GetPayee(account.TransferPayeeID)
			if err != nil {
				return err
			}
			payee.Name = core.TransferPayeePrefix + name
			payee.Updated = now
			if err := tx.PutPayee(payee); err != nil {
				return err
			}
		}

		if patch.Order != nil {
			if *patch.Order < 0 {
				return core.Validationf("order must not be negative")
			}
			if err := e.reorderAccounts(tx, account.ID, *patch.Order, now); err != nil {
				return err
			}
		}

		account, err = tx.GetAccount(accountID)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	e.publish(ctx, EventAccountUpdated, budgetID, account.ID)
	return account, nil
}

func (e *Engine) reorderAccounts(tx Tx, accountID string, order int, now time.Time) error {
	accounts, err := tx.ListAccounts()
	if err != nil {
		return err
	}
	var moved core.Account
	rest := make([]core.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.ID == accountID {
			moved = a
			continue
		}
		rest = append(rest, a)
	}
	if order > len(rest) {
		order = len(rest)
	}
	ordered := make([]core.Account, 0, len(accounts))
	ordered = append(ordered, rest[:order]...)
	ordered = append(ordered, moved)
	ordered = append(ordered, rest[order:]...)

	for i, a := range ordered {
		if a.Order == i {
			continue
		}
		a.Order = i
		a.Updated = now
		if err := tx.PutAccount(a); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileAccount records that the bank confirms cleared as the account's
// cleared balance. A difference is booked as a reconciled adjustment to the
// inflow category, then every cleared transaction of the account is locked
// as reconciled.
func (e *Engine) ReconcileAccount(ctx context.Context, budgetID, accountID string, cleared core.Money) (core.Account, error) {
	var (
		account    core.Account
		adjustment core.Money
		locked     int
	)
	if err := cleared.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("reconcile account: %w", err)
	}
	err := e.write(ctx, "reconcile account", budgetID, func(tx Tx) error {
		var err error
		account, err = tx.GetAccount(accountID)
		if err != nil {
			return err
		}
		now := e.now()

		if adjustment, err = cleared.CheckedSub(account.Cleared); err != nil {
			return err
		}
		if !adjustment.IsZero() {
			payee, err := tx.FindInternalPayee(core.ReconciliationPayee)
			if err != nil {
				return err
			}
			inflow, err := tx.FindInflowCategory()
			if err != nil {
				return err
			}
			t := core.Transaction{
				ID:         e.newID(),
				BudgetID:   budgetID,
				AccountID:  account.ID,
				PayeeID:    payee.ID,
				CategoryID: inflow.ID,
				Amount:     adjustment,
				Date:       core.DateOf(now),
				Memo:       "Reconciliation Transaction",
				Status:     core.Reconciled,
				Created:    now,
				Updated:    now,
			}
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
			if err := e.apply(ctx, tx, effectOf(t)); err != nil {
				return err
			}
		}

		// Cleared and reconciled amounts share a bucket, so locking them
		// leaves every balance as it is.
		pending, err := tx.ListTransactionsByAccountAndStatus(account.ID, core.Cleared)
		if err != nil {
			return err
		}
		for _, t := range pending {
			t.Status = core.Reconciled
			t.Updated = now
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
		}
		locked = len(pending)

		account, err = tx.GetAccount(accountID)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}

	e.logger.InfoContext(ctx, "Account reconciled",
		"budget_id", budgetID,
		"account_id", accountID,
		"adjustment_cents", adjustment.Cents,
		"reconciled", locked)
	e.publish(ctx, EventAccountReconciled, budgetID, accountID)
	return account, nil
}
