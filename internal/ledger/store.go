// Package ledger implements the budget ledger engine: account balances,
// the cascading category-month chain, transaction effects, and the
// "to be budgeted" aggregate.
//
// All rules live here. Persistence is reached only through Store and Tx, so
// the engine runs unchanged on the in-memory and SQLite backends.
package ledger

import (
	"context"

	"github.com/charles-997/budge/internal/core"
)

// Store is the persistence boundary of the ledger.
//
// Update runs fn as one atomic unit of work scoped to a single budget: every
// write made through the Tx becomes visible together when fn returns nil, and
// none of them does when fn returns an error. Concurrent units of work on the
// same budget are serialized. View runs fn against a consistent snapshot and
// must not write.
type Store interface {
	Update(ctx context.Context, budgetID string, fn func(Tx) error) error
	View(ctx context.Context, budgetID string, fn func(Tx) error) error
	Close() error
}

// Tx is the read/write surface available inside a unit of work. Every lookup
// is scoped to the budget the unit of work was opened for: an entity that
// exists in another budget is reported as core.ErrNotFound.
type Tx interface {
	GetBudget() (core.Budget, error)
	PutBudget(core.Budget) error

	GetAccount(id string) (core.Account, error)
	ListAccounts() ([]core.Account, error) // ordered by Order
	PutAccount(core.Account) error

	GetPayee(id string) (core.Payee, error)
	FindInternalPayee(name string) (core.Payee, error)
	ListPayees() ([]core.Payee, error)
	PutPayee(core.Payee) error

	GetCategoryGroup(id string) (core.CategoryGroup, error)
	ListCategoryGroups() ([]core.CategoryGroup, error)
	PutCategoryGroup(core.CategoryGroup) error

	GetCategory(id string) (core.Category, error)
	FindInflowCategory() (core.Category, error)
	ListCategories() ([]core.Category, error)
	PutCategory(core.Category) error

	GetCategoryMonth(categoryID string, month core.Month) (core.CategoryMonth, error)
	// ListCategoryMonths returns the category's records with from <= month <= to
	// in month order. A zero from or to leaves that side unbounded.
	ListCategoryMonths(categoryID string, from, to core.Month) ([]core.CategoryMonth, error)
	FirstCategoryMonth(categoryID string) (core.CategoryMonth, error)
	LastCategoryMonth(categoryID string) (core.CategoryMonth, error)
	ListCategoryMonthsByMonth(month core.Month) ([]core.CategoryMonth, error)
	PutCategoryMonth(core.CategoryMonth) error

	GetTransaction(id string) (core.Transaction, error)
	ListTransactionsByAccount(accountID string) ([]core.Transaction, error) // newest first
	ListTransactionsByAccountAndStatus(accountID string, status core.TransactionStatus) ([]core.Transaction, error)
	PutTransaction(core.Transaction) error
	DeleteTransaction(id string) error

	// SumCategoryActivity totals the amount of every transaction posted to
	// the category, across all months.
	SumCategoryActivity(categoryID string) (core.Money, error)
	// SumBudgeted totals the budgeted amount of every category month.
	SumBudgeted() (core.Money, error)
}
