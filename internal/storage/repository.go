package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/ledger"
	"github.com/charles-997/budge/internal/log"

	_ "modernc.org/sqlite"
)

// SQLite result codes (primary codes, extended codes are masked off).
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// SQLiteRepository is the durable ledger store. All units of work go through
// a single connection, so writers are serialized by the pool and a unit of
// work never observes another one half applied.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("SQLite ledger store ready", "path", dbPath)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Update(ctx context.Context, budgetID string, fn func(ledger.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	if err := fn(&sqlTx{ctx: ctx, budgetID: budgetID, q: New(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.WarnContext(ctx, "Rollback failed", log.FieldBudgetID, budgetID, log.FieldError, rbErr)
		}
		return classify("unit of work", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (r *SQLiteRepository) View(ctx context.Context, budgetID string, fn func(ledger.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback()
	return classify("read", fn(&sqlTx{ctx: ctx, budgetID: budgetID, q: New(tx)}))
}

// classify maps driver errors onto ledger error kinds. Errors that already
// carry a kind pass through unchanged.
func classify(op string, err error) error {
	if err == nil || core.KindOf(err) != nil {
		return err
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return core.Conflict(op, err)
		case sqliteConstraint:
			if strings.Contains(err.Error(), "UNIQUE") {
				return core.Conflict(op, err)
			}
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return core.Conflict(op, err)
	}
	if strings.Contains(err.Error(), "integer overflow") {
		return fmt.Errorf("%s: %w", op, core.ErrAmountOverflow)
	}
	return core.StoreFailure(op, err)
}

// sqlTx implements ledger.Tx on one database transaction. Every query is
// filtered by the unit of work's budget.
type sqlTx struct {
	ctx      context.Context
	budgetID string
	q        *Queries
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(entity, id)
	}
	return err
}

func (t *sqlTx) checkBudget(budgetID string) error {
	if budgetID != t.budgetID {
		return core.Validationf("record belongs to budget %q, not %q", budgetID, t.budgetID)
	}
	return nil
}

func (t *sqlTx) GetBudget() (core.Budget, error) {
	b, err := t.q.GetBudget(t.ctx, t.budgetID)
	return b, notFound(err, "budget", t.budgetID)
}

func (t *sqlTx) PutBudget(b core.Budget) error {
	if err := t.checkBudget(b.ID); err != nil {
		return err
	}
	return t.q.UpsertBudget(t.ctx, b)
}

func (t *sqlTx) GetAccount(id string) (core.Account, error) {
	a, err := t.q.GetAccount(t.ctx, t.budgetID, id)
	return a, notFound(err, "account", id)
}

func (t *sqlTx) ListAccounts() ([]core.Account, error) {
	return t.q.ListAccounts(t.ctx, t.budgetID)
}

func (t *sqlTx) PutAccount(a core.Account) error {
	if err := t.checkBudget(a.BudgetID); err != nil {
		return err
	}
	return t.q.UpsertAccount(t.ctx, a)
}

func (t *sqlTx) GetPayee(id string) (core.Payee, error) {
	p, err := t.q.GetPayee(t.ctx, t.budgetID, id)
	return p, notFound(err, "payee", id)
}

func (t *sqlTx) FindInternalPayee(name string) (core.Payee, error) {
	p, err := t.q.FindInternalPayee(t.ctx, t.budgetID, name)
	return p, notFound(err, "payee", name)
}

func (t *sqlTx) ListPayees() ([]core.Payee, error) {
	return t.q.ListPayees(t.ctx, t.budgetID)
}

func (t *sqlTx) PutPayee(p core.Payee) error {
	if err := t.checkBudget(p.BudgetID); err != nil {
		return err
	}
	return t.q.UpsertPayee(t.ctx, p)
}

func (t *sqlTx) GetCategoryGroup(id string) (core.CategoryGroup, error) {
	g, err := t.q.GetCategoryGroup(t.ctx, t.budgetID, id)
	return g, notFound(err, "category group", id)
}

func (t *sqlTx) ListCategoryGroups() ([]core.CategoryGroup, error) {
	return t.q.ListCategoryGroups(t.ctx, t.budgetID)
}

func (t *sqlTx) PutCategoryGroup(g core.CategoryGroup) error {
	if err := t.checkBudget(g.BudgetID); err != nil {
		return err
	}
	return t.q.UpsertCategoryGroup(t.ctx, g)
}

func (t *sqlTx) GetCategory(id string) (core.Category, error) {
	c, err := t.q.GetCategory(t.ctx, t.budgetID, id)
	return c, notFound(err, "category", id)
}

func (t *sqlTx) FindInflowCategory() (core.Category, error) {
	c, err := t.q.FindInflowCategory(t.ctx, t.budgetID)
	return c, notFound(err, "category", core.InflowCategoryName)
}

func (t *sqlTx) ListCategories() ([]core.Category, error) {
	return t.q.ListCategories(t.ctx, t.budgetID)
}

func (t *sqlTx) PutCategory(c core.Category) error {
	if err := t.checkBudget(c.BudgetID); err != nil {
		return err
	}
	return t.q.UpsertCategory(t.ctx, c)
}

func (t *sqlTx) GetCategoryMonth(categoryID string, month core.Month) (core.CategoryMonth, error) {
	cm, err := t.q.GetCategoryMonth(t.ctx, t.budgetID, categoryID, month)
	return cm, notFound(err, "category month", categoryID+"/"+month.String())
}

func (t *sqlTx) ListCategoryMonths(categoryID string, from, to core.Month) ([]core.CategoryMonth, error) {
	lo, hi := "0000-01-01", "9999-12-01"
	if !from.IsZero() {
		lo = from.String()
	}
	if !to.IsZero() {
		hi = to.String()
	}
	return t.q.ListCategoryMonths(t.ctx, t.budgetID, categoryID, lo, hi)
}

func (t *sqlTx) FirstCategoryMonth(categoryID string) (core.CategoryMonth, error) {
	cm, err := t.q.FirstCategoryMonth(t.ctx, t.budgetID, categoryID)
	return cm, notFound(err, "category month", categoryID)
}

func (t *sqlTx) LastCategoryMonth(categoryID string) (core.CategoryMonth, error) {
	cm, err := t.q.LastCategoryMonth(t.ctx, t.budgetID, categoryID)
	return cm, notFound(err, "category month", categoryID)
}

func (t *sqlTx) ListCategoryMonthsByMonth(month core.Month) ([]core.CategoryMonth, error) {
	return t.q.ListCategoryMonthsByMonth(t.ctx, t.budgetID, month)
}

func (t *sqlTx) PutCategoryMonth(cm core.CategoryMonth) error {
	if err := t.checkBudget(cm.BudgetID); err != nil {
		return err
	}
	return t.q.UpsertCategoryMonth(t.ctx, cm)
}

func (t *sqlTx) GetTransaction(id string) (core.Transaction, error) {
	tr, err := t.q.GetTransaction(t.ctx, t.budgetID, id)
	return tr, notFound(err, "transaction", id)
}

func (t *sqlTx) ListTransactionsByAccount(accountID string) ([]core.Transaction, error) {
	return t.q.ListTransactionsByAccount(t.ctx, t.budgetID, accountID)
}

func (t *sqlTx) ListTransactionsByAccountAndStatus(accountID string, status core.TransactionStatus) ([]core.Transaction, error) {
	return t.q.ListTransactionsByAccountAndStatus(t.ctx, t.budgetID, accountID, string(status))
}

func (t *sqlTx) PutTransaction(tr core.Transaction) error {
	if err := t.checkBudget(tr.BudgetID); err != nil {
		return err
	}
	return t.q.UpsertTransaction(t.ctx, tr)
}

func (t *sqlTx) DeleteTransaction(id string) error {
	n, err := t.q.DeleteTransaction(t.ctx, t.budgetID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFound("transaction", id)
	}
	return nil
}

func (t *sqlTx) SumCategoryActivity(categoryID string) (core.Money, error) {
	sum, err := t.q.SumCategoryActivity(t.ctx, t.budgetID, categoryID)
	return core.Cents(sum), err
}

func (t *sqlTx) SumBudgeted() (core.Money, error) {
	sum, err := t.q.SumBudgeted(t.ctx, t.budgetID)
	return core.Cents(sum), err
}
