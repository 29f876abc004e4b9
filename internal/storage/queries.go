package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/charles-997/budge/internal/core"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const upsertBudget = `
INSERT INTO budgets (id, name, created, updated) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated = excluded.updated`

func (q *Queries) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, b.ID, b.Name, formatTime(b.Created), formatTime(b.Updated))
	return err
}

const getBudget = `SELECT id, name, created, updated FROM budgets WHERE id = ?`

func (q *Queries) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	var (
		b                core.Budget
		created, updated string
	)
	err := q.db.QueryRowContext(ctx, getBudget, id).Scan(&b.ID, &b.Name, &created, &updated)
	if err != nil {
		return core.Budget{}, err
	}
	if b.Created, err = parseTime(created); err != nil {
		return core.Budget{}, err
	}
	if b.Updated, err = parseTime(updated); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

const accountColumns = `id, budget_id, name, type, transfer_payee_id, cleared, uncleared, balance, sort_order, created, updated`

const upsertAccount = `
INSERT INTO accounts (` + accountColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    transfer_payee_id = excluded.transfer_payee_id,
    cleared = excluded.cleared,
    uncleared = excluded.uncleared,
    balance = excluded.balance,
    sort_order = excluded.sort_order,
    updated = excluded.updated`

func (q *Queries) UpsertAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, upsertAccount,
		a.ID, a.BudgetID, a.Name, string(a.Type), a.TransferPayeeID,
		a.Cleared.Cents, a.Uncleared.Cents, a.Balance.Cents, a.Order,
		formatTime(a.Created), formatTime(a.Updated))
	return err
}

func scanAccount(row scanner) (core.Account, error) {
	var (
		a                core.Account
		typ              string
		created, updated string
	)
	err := row.Scan(&a.ID, &a.BudgetID, &a.Name, &typ, &a.TransferPayeeID,
		&a.Cleared.Cents, &a.Uncleared.Cents, &a.Balance.Cents, &a.Order, &created, &updated)
	if err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	if a.Created, err = parseTime(created); err != nil {
		return core.Account{}, err
	}
	if a.Updated, err = parseTime(updated); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE budget_id = ? AND id = ?`

func (q *Queries) GetAccount(ctx context.Context, budgetID, id string) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, budgetID, id))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts WHERE budget_id = ? ORDER BY sort_order, id`

func (q *Queries) ListAccounts(ctx context.Context, budgetID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const payeeColumns = `id, budget_id, name, transfer_account_id, internal, created, updated`

const upsertPayee = `
INSERT INTO payees (` + payeeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    transfer_account_id = excluded.transfer_account_id,
    internal = excluded.internal,
    updated = excluded.updated`

func (q *Queries) UpsertPayee(ctx context.Context, p core.Payee) error {
	_, err := q.db.ExecContext(ctx, upsertPayee,
		p.ID, p.BudgetID, p.Name, nullString(p.TransferAccountID), p.Internal,
		formatTime(p.Created), formatTime(p.Updated))
	return err
}

func scanPayee(row scanner) (core.Payee, error) {
	var (
		p                core.Payee
		transfer         sql.NullString
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.BudgetID, &p.Name, &transfer, &p.Internal, &created, &updated); err != nil {
		return core.Payee{}, err
	}
	p.TransferAccountID = transfer.String
	var err error
	if p.Created, err = parseTime(created); err != nil {
		return core.Payee{}, err
	}
	if p.Updated, err = parseTime(updated); err != nil {
		return core.Payee{}, err
	}
	return p, nil
}

const getPayee = `SELECT ` + payeeColumns + ` FROM payees WHERE budget_id = ? AND id = ?`

func (q *Queries) GetPayee(ctx context.Context, budgetID, id string) (core.Payee, error) {
	return scanPayee(q.db.QueryRowContext(ctx, getPayee, budgetID, id))
}

const findInternalPayee = `
SELECT ` + payeeColumns + ` FROM payees
WHERE budget_id = ? AND internal = 1 AND transfer_account_id IS NULL AND name = ?
LIMIT 1`

func (q *Queries) FindInternalPayee(ctx context.Context, budgetID, name string) (core.Payee, error) {
	return scanPayee(q.db.QueryRowContext(ctx, findInternalPayee, budgetID, name))
}

const listPayees = `SELECT ` + payeeColumns + ` FROM payees WHERE budget_id = ? ORDER BY name, id`

func (q *Queries) ListPayees(ctx context.Context, budgetID string) ([]core.Payee, error) {
	rows, err := q.db.QueryContext(ctx, listPayees, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Payee
	for rows.Next() {
		p, err := scanPayee(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const groupColumns = `id, budget_id, name, internal, locked, sort_order, created, updated`

const upsertCategoryGroup = `
INSERT INTO category_groups (` + groupColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    locked = excluded.locked,
    sort_order = excluded.sort_order,
    updated = excluded.updated`

func (q *Queries) UpsertCategoryGroup(ctx context.Context, g core.CategoryGroup) error {
	_, err := q.db.ExecContext(ctx, upsertCategoryGroup,
		g.ID, g.BudgetID, g.Name, g.Internal, g.Locked, g.Order,
		formatTime(g.Created), formatTime(g.Updated))
	return err
}

func scanCategoryGroup(row scanner) (core.CategoryGroup, error) {
	var (
		g                core.CategoryGroup
		created, updated string
	)
	if err := row.Scan(&g.ID, &g.BudgetID, &g.Name, &g.Internal, &g.Locked, &g.Order, &created, &updated); err != nil {
		return core.CategoryGroup{}, err
	}
	var err error
	if g.Created, err = parseTime(created); err != nil {
		return core.CategoryGroup{}, err
	}
	if g.Updated, err = parseTime(updated); err != nil {
		return core.CategoryGroup{}, err
	}
	return g, nil
}

const getCategoryGroup = `SELECT ` + groupColumns + ` FROM category_groups WHERE budget_id = ? AND id = ?`

func (q *Queries) GetCategoryGroup(ctx context.Context, budgetID, id string) (core.CategoryGroup, error) {
	return scanCategoryGroup(q.db.QueryRowContext(ctx, getCategoryGroup, budgetID, id))
}

const listCategoryGroups = `SELECT ` + groupColumns + ` FROM category_groups WHERE budget_id = ? ORDER BY sort_order, id`

func (q *Queries) ListCategoryGroups(ctx context.Context, budgetID string) ([]core.CategoryGroup, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryGroups, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.CategoryGroup
	for rows.Next() {
		g, err := scanCategoryGroup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

const categoryColumns = `c.id, c.budget_id, c.category_group_id, c.name, c.inflow, c.locked, c.sort_order, c.created, c.updated`

const upsertCategory = `
INSERT INTO categories (id, budget_id, category_group_id, name, inflow, locked, sort_order, created, updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    category_group_id = excluded.category_group_id,
    name = excluded.name,
    locked = excluded.locked,
    sort_order = excluded.sort_order,
    updated = excluded.updated`

func (q *Queries) UpsertCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, upsertCategory,
		c.ID, c.BudgetID, c.CategoryGroupID, c.Name, c.Inflow, c.Locked, c.Order,
		formatTime(c.Created), formatTime(c.Updated))
	return err
}

func scanCategory(row scanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.BudgetID, &c.CategoryGroupID, &c.Name, &c.Inflow, &c.Locked, &c.Order, &created, &updated); err != nil {
		return core.Category{}, err
	}
	var err error
	if c.Created, err = parseTime(created); err != nil {
		return core.Category{}, err
	}
	if c.Updated, err = parseTime(updated); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories c WHERE c.budget_id = ? AND c.id = ?`

func (q *Queries) GetCategory(ctx context.Context, budgetID, id string) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, budgetID, id))
}

const findInflowCategory = `SELECT ` + categoryColumns + ` FROM categories c WHERE c.budget_id = ? AND c.inflow = 1`

func (q *Queries) FindInflowCategory(ctx context.Context, budgetID string) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, findInflowCategory, budgetID))
}

const listCategories = `
SELECT ` + categoryColumns + ` FROM categories c
JOIN category_groups g ON g.id = c.category_group_id
WHERE c.budget_id = ?
ORDER BY g.sort_order, c.sort_order, c.id`

func (q *Queries) ListCategories(ctx context.Context, budgetID string) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const categoryMonthColumns = `id, budget_id, category_id, month, budgeted, activity, balance, created, updated`

const upsertCategoryMonth = `
INSERT INTO category_months (` + categoryMonthColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    budgeted = excluded.budgeted,
    activity = excluded.activity,
    balance = excluded.balance,
    updated = excluded.updated`

func (q *Queries) UpsertCategoryMonth(ctx context.Context, cm core.CategoryMonth) error {
	_, err := q.db.ExecContext(ctx, upsertCategoryMonth,
		cm.ID, cm.BudgetID, cm.CategoryID, cm.Month.String(),
		cm.Budgeted.Cents, cm.Activity.Cents, cm.Balance.Cents,
		formatTime(cm.Created), formatTime(cm.Updated))
	return err
}

func scanCategoryMonth(row scanner) (core.CategoryMonth, error) {
	var (
		cm                      core.CategoryMonth
		month, created, updated string
	)
	err := row.Scan(&cm.ID, &cm.BudgetID, &cm.CategoryID, &month,
		&cm.Budgeted.Cents, &cm.Activity.Cents, &cm.Balance.Cents, &created, &updated)
	if err != nil {
		return core.CategoryMonth{}, err
	}
	if cm.Month, err = core.ParseMonth(month); err != nil {
		return core.CategoryMonth{}, err
	}
	if cm.Created, err = parseTime(created); err != nil {
		return core.CategoryMonth{}, err
	}
	if cm.Updated, err = parseTime(updated); err != nil {
		return core.CategoryMonth{}, err
	}
	return cm, nil
}

func (q *Queries) queryCategoryMonths(ctx context.Context, query string, args ...any) ([]core.CategoryMonth, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.CategoryMonth
	for rows.Next() {
		cm, err := scanCategoryMonth(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cm)
	}
	return items, rows.Err()
}

const getCategoryMonth = `
SELECT ` + categoryMonthColumns + ` FROM category_months
WHERE budget_id = ? AND category_id = ? AND month = ?`

func (q *Queries) GetCategoryMonth(ctx context.Context, budgetID, categoryID string, month core.Month) (core.CategoryMonth, error) {
	return scanCategoryMonth(q.db.QueryRowContext(ctx, getCategoryMonth, budgetID, categoryID, month.String()))
}

// Months are stored as YYYY-MM-01 so string comparison orders them.
const listCategoryMonths = `
SELECT ` + categoryMonthColumns + ` FROM category_months
WHERE budget_id = ? AND category_id = ? AND month >= ? AND month <= ?
ORDER BY month`

func (q *Queries) ListCategoryMonths(ctx context.Context, budgetID, categoryID, from, to string) ([]core.CategoryMonth, error) {
	return q.queryCategoryMonths(ctx, listCategoryMonths, budgetID, categoryID, from, to)
}

const firstCategoryMonth = `
SELECT ` + categoryMonthColumns + ` FROM category_months
WHERE budget_id = ? AND category_id = ? ORDER BY month ASC LIMIT 1`

func (q *Queries) FirstCategoryMonth(ctx context.Context, budgetID, categoryID string) (core.CategoryMonth, error) {
	return scanCategoryMonth(q.db.QueryRowContext(ctx, firstCategoryMonth, budgetID, categoryID))
}

const lastCategoryMonth = `
SELECT ` + categoryMonthColumns + ` FROM category_months
WHERE budget_id = ? AND category_id = ? ORDER BY month DESC LIMIT 1`

func (q *Queries) LastCategoryMonth(ctx context.Context, budgetID, categoryID string) (core.CategoryMonth, error) {
	return scanCategoryMonth(q.db.QueryRowContext(ctx, lastCategoryMonth, budgetID, categoryID))
}

const listCategoryMonthsByMonth = `
SELECT ` + categoryMonthColumns + ` FROM category_months
WHERE budget_id = ? AND month = ? ORDER BY category_id`

func (q *Queries) ListCategoryMonthsByMonth(ctx context.Context, budgetID string, month core.Month) ([]core.CategoryMonth, error) {
	return q.queryCategoryMonths(ctx, listCategoryMonthsByMonth, budgetID, month.String())
}

const sumBudgeted = `SELECT COALESCE(SUM(budgeted), 0) FROM category_months WHERE budget_id = ?`

func (q *Queries) SumBudgeted(ctx context.Context, budgetID string) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumBudgeted, budgetID).Scan(&sum)
	return sum, err
}

const transactionColumns = `id, budget_id, account_id, payee_id, category_id, transfer_account_id, transfer_transaction_id, amount, date, memo, status, created, updated`

const upsertTransaction = `
INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    account_id = excluded.account_id,
    payee_id = excluded.payee_id,
    category_id = excluded.category_id,
    transfer_account_id = excluded.transfer_account_id,
    transfer_transaction_id = excluded.transfer_transaction_id,
    amount = excluded.amount,
    date = excluded.date,
    memo = excluded.memo,
    status = excluded.status,
    updated = excluded.updated`

func (q *Queries) UpsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, upsertTransaction,
		t.ID, t.BudgetID, t.AccountID, t.PayeeID,
		nullString(t.CategoryID), nullString(t.TransferAccountID), nullString(t.TransferTransactionID),
		t.Amount.Cents, t.Date.String(), t.Memo, string(t.Status),
		formatTime(t.Created), formatTime(t.Updated))
	return err
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                                     core.Transaction
		category, transferAccount, transferTx sql.NullString
		date, status, created, updated        string
	)
	err := row.Scan(&t.ID, &t.BudgetID, &t.AccountID, &t.PayeeID,
		&category, &transferAccount, &transferTx,
		&t.Amount.Cents, &date, &t.Memo, &status, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = category.String
	t.TransferAccountID = transferAccount.String
	t.TransferTransactionID = transferTx.String
	t.Status = core.TransactionStatus(status)
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, err
	}
	if t.Created, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if t.Updated, err = parseTime(updated); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE budget_id = ? AND id = ?`

func (q *Queries) GetTransaction(ctx context.Context, budgetID, id string) (core.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, budgetID, id))
}

const listTransactionsByAccount = `
SELECT ` + transactionColumns + ` FROM transactions
WHERE budget_id = ? AND account_id = ?
ORDER BY date DESC, created DESC, id DESC`

const listTransactionsByAccountAndStatus = `
SELECT ` + transactionColumns + ` FROM transactions
WHERE budget_id = ? AND account_id = ? AND status = ?
ORDER BY date DESC, created DESC, id DESC`

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (q *Queries) ListTransactionsByAccount(ctx context.Context, budgetID, accountID string) ([]core.Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsByAccount, budgetID, accountID)
}

func (q *Queries) ListTransactionsByAccountAndStatus(ctx context.Context, budgetID, accountID, status string) ([]core.Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsByAccountAndStatus, budgetID, accountID, status)
}

const deleteTransaction = `DELETE FROM transactions WHERE budget_id = ? AND id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, budgetID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, budgetID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const sumCategoryActivity = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE budget_id = ? AND category_id = ?`

func (q *Queries) SumCategoryActivity(ctx context.Context, budgetID, categoryID string) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumCategoryActivity, budgetID, categoryID).Scan(&sum)
	return sum, err
}
