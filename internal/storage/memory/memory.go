// Package memory is an in-process ledger store. Each budget is guarded by its
// own lock; a unit of work runs against a private copy of the budget that
// replaces the live one only when the unit of work succeeds.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/ledger"
)

var errReadOnly = errors.New("memory: write in read-only unit of work")

// Stats counts committed record writes. Writes of failed units of work are
// not counted.
type Stats struct {
	AccountWrites       int64
	CategoryMonthWrites int64
	TransactionWrites   int64
}

type Store struct {
	mu      sync.Mutex
	budgets map[string]*budget
	closed  atomic.Bool

	accountWrites       atomic.Int64
	categoryMonthWrites atomic.Int64
	transactionWrites   atomic.Int64
}

type budget struct {
	mu    sync.RWMutex
	state *state

	// dropped is set, under mu, once the slot is removed from Store.budgets.
	dropped bool
}

type monthKey struct {
	categoryID string
	month      string
}

type state struct {
	budget       *core.Budget
	accounts     map[string]core.Account
	payees       map[string]core.Payee
	groups       map[string]core.CategoryGroup
	categories   map[string]core.Category
	months       map[monthKey]core.CategoryMonth
	transactions map[string]core.Transaction
}

func newState() *state {
	return &state{
		accounts:     map[string]core.Account{},
		payees:       map[string]core.Payee{},
		groups:       map[string]core.CategoryGroup{},
		categories:   map[string]core.Category{},
		months:       map[monthKey]core.CategoryMonth{},
		transactions: map[string]core.Transaction{},
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:     cloneMap(s.accounts),
		payees:       cloneMap(s.payees),
		groups:       cloneMap(s.groups),
		categories:   cloneMap(s.categories),
		months:       cloneMap(s.months),
		transactions: cloneMap(s.transactions),
	}
	if s.budget != nil {
		b := *s.budget
		c.budget = &b
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func New() *Store {
	return &Store{budgets: map[string]*budget{}}
}

var _ ledger.Store = (*Store)(nil)

// budgetFor returns the budget's slot, creating an empty one when create is
// set. Without create an unknown budget gets a detached empty slot.
func (s *Store) budgetFor(id string, create bool) *budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if ok {
		return b
	}
	b = &budget{state: newState()}
	if create {
		s.budgets[id] = b
	}
	return b
}

func (s *Store) Update(ctx context.Context, budgetID string, fn func(ledger.Tx) error) error {
	if s.closed.Load() {
		return errors.New("memory: store closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b := s.lockBudget(budgetID)
	defer b.mu.Unlock()

	tx := &tx{budgetID: budgetID, state: b.state.clone(), writable: true}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.dropEmpty(budgetID, b)
		return err
	}
	b.state = tx.state
	s.accountWrites.Add(tx.accountWrites)
	s.categoryMonthWrites.Add(tx.categoryMonthWrites)
	s.transactionWrites.Add(tx.transactionWrites)
	return nil
}

// lockBudget returns the budget's registered slot with its write lock held.
func (s *Store) lockBudget(id string) *budget {
	for {
		b := s.budgetFor(id, true)
		b.mu.Lock()
		if !b.dropped {
			return b
		}
		b.mu.Unlock()
	}
}

// dropEmpty unregisters a slot that never received a budget record, so
// failed writes against unknown ids leave nothing behind. The caller holds
// b.mu.
func (s *Store) dropEmpty(id string, b *budget) {
	if b.state.budget != nil {
		return
	}
	s.mu.Lock()
	if s.budgets[id] == b {
		delete(s.budgets, id)
	}
	s.mu.Unlock()
	b.dropped = true
}

func (s *Store) View(ctx context.Context, budgetID string, fn func(ledger.Tx) error) error {
	if s.closed.Load() {
		return errors.New("memory: store closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b := s.budgetFor(budgetID, false)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fn(&tx{budgetID: budgetID, state: b.state})
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Stats returns the committed write counters.
func (s *Store) Stats() Stats {
	return Stats{
		AccountWrites:       s.accountWrites.Load(),
		CategoryMonthWrites: s.categoryMonthWrites.Load(),
		TransactionWrites:   s.transactionWrites.Load(),
	}
}

type tx struct {
	budgetID string
	state    *state
	writable bool

	accountWrites       int64
	categoryMonthWrites int64
	transactionWrites   int64
}

func (t *tx) checkWrite(budgetID string) error {
	if !t.writable {
		return errReadOnly
	}
	if budgetID != t.budgetID {
		return core.Validationf("record belongs to budget %q, not %q", budgetID, t.budgetID)
	}
	return nil
}

func (t *tx) GetBudget() (core.Budget, error) {
	if t.state.budget == nil {
		return core.Budget{}, core.NotFound("budget", t.budgetID)
	}
	return *t.state.budget, nil
}

func (t *tx) PutBudget(b core.Budget) error {
	if err := t.checkWrite(b.ID); err != nil {
		return err
	}
	t.state.budget = &b
	return nil
}

func (t *tx) GetAccount(id string) (core.Account, error) {
	a, ok := t.state.accounts[id]
	if !ok {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (t *tx) ListAccounts() ([]core.Account, error) {
	out := values(t.state.accounts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) PutAccount(a core.Account) error {
	if err := t.checkWrite(a.BudgetID); err != nil {
		return err
	}
	t.state.accounts[a.ID] = a
	t.accountWrites++
	return nil
}

func (t *tx) GetPayee(id string) (core.Payee, error) {
	p, ok := t.state.payees[id]
	if !ok {
		return core.Payee{}, core.NotFound("payee", id)
	}
	return p, nil
}

func (t *tx) FindInternalPayee(name string) (core.Payee, error) {
	for _, p := range t.state.payees {
		if p.Internal && p.TransferAccountID == "" && p.Name == name {
			return p, nil
		}
	}
	return core.Payee{}, core.NotFound("payee", name)
}

func (t *tx) ListPayees() ([]core.Payee, error) {
	out := values(t.state.payees)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) PutPayee(p core.Payee) error {
	if err := t.checkWrite(p.BudgetID); err != nil {
		return err
	}
	t.state.payees[p.ID] = p
	return nil
}

func (t *tx) GetCategoryGroup(id string) (core.CategoryGroup, error) {
	g, ok := t.state.groups[id]
	if !ok {
		return core.CategoryGroup{}, core.NotFound("category group", id)
	}
	return g, nil
}

func (t *tx) ListCategoryGroups() ([]core.CategoryGroup, error) {
	out := values(t.state.groups)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) PutCategoryGroup(g core.CategoryGroup) error {
	if err := t.checkWrite(g.BudgetID); err != nil {
		return err
	}
	t.state.groups[g.ID] = g
	return nil
}

func (t *tx) GetCategory(id string) (core.Category, error) {
	c, ok := t.state.categories[id]
	if !ok {
		return core.Category{}, core.NotFound("category", id)
	}
	return c, nil
}

func (t *tx) FindInflowCategory() (core.Category, error) {
	for _, c := range t.state.categories {
		if c.Inflow {
			return c, nil
		}
	}
	return core.Category{}, core.NotFound("category", core.InflowCategoryName)
}

func (t *tx) ListCategories() ([]core.Category, error) {
	groupOrder := make(map[string]int, len(t.state.groups))
	for _, g := range t.state.groups {
		groupOrder[g.ID] = g.Order
	}
	out := values(t.state.categories)
	sort.Slice(out, func(i, j int) bool {
		gi, gj := groupOrder[out[i].CategoryGroupID], groupOrder[out[j].CategoryGroupID]
		if gi != gj {
			return gi < gj
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) PutCategory(c core.Category) error {
	if err := t.checkWrite(c.BudgetID); err != nil {
		return err
	}
	if c.Inflow {
		if existing, err := t.FindInflowCategory(); err == nil && existing.ID != c.ID {
			return core.Conflict("put category", errors.New("budget already has an inflow category"))
		}
	}
	t.state.categories[c.ID] = c
	return nil
}

func (t *tx) GetCategoryMonth(categoryID string, month core.Month) (core.CategoryMonth, error) {
	cm, ok := t.state.months[monthKey{categoryID, month.String()}]
	if !ok {
		return core.CategoryMonth{}, core.NotFound("category month", categoryID+"/"+month.String())
	}
	return cm, nil
}

func (t *tx) ListCategoryMonths(categoryID string, from, to core.Month) ([]core.CategoryMonth, error) {
	var out []core.CategoryMonth
	for k, cm := range t.state.months {
		if k.categoryID != categoryID {
			continue
		}
		if !from.IsZero() && cm.Month.Before(from) {
			continue
		}
		if !to.IsZero() && cm.Month.After(to) {
			continue
		}
		out = append(out, cm)
	}
	sortMonths(out)
	return out, nil
}

func (t *tx) FirstCategoryMonth(categoryID string) (core.CategoryMonth, error) {
	months, _ := t.ListCategoryMonths(categoryID, core.Month{}, core.Month{})
	if len(months) == 0 {
		return core.CategoryMonth{}, core.NotFound("category month", categoryID)
	}
	return months[0], nil
}

func (t *tx) LastCategoryMonth(categoryID string) (core.CategoryMonth, error) {
	months, _ := t.ListCategoryMonths(categoryID, core.Month{}, core.Month{})
	if len(months) == 0 {
		return core.CategoryMonth{}, core.NotFound("category month", categoryID)
	}
	return months[len(months)-1], nil
}

func (t *tx) ListCategoryMonthsByMonth(month core.Month) ([]core.CategoryMonth, error) {
	var out []core.CategoryMonth
	for _, cm := range t.state.months {
		if cm.Month.Equal(month) {
			out = append(out, cm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (t *tx) PutCategoryMonth(cm core.CategoryMonth) error {
	if err := t.checkWrite(cm.BudgetID); err != nil {
		return err
	}
	t.state.months[monthKey{cm.CategoryID, cm.Month.String()}] = cm
	t.categoryMonthWrites++
	return nil
}

func (t *tx) GetTransaction(id string) (core.Transaction, error) {
	tr, ok := t.state.transactions[id]
	if !ok {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return tr, nil
}

func (t *tx) ListTransactionsByAccount(accountID string) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.state.transactions {
		if tr.AccountID == accountID {
			out = append(out, tr)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (t *tx) ListTransactionsByAccountAndStatus(accountID string, status core.TransactionStatus) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.state.transactions {
		if tr.AccountID == accountID && tr.Status == status {
			out = append(out, tr)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (t *tx) PutTransaction(tr core.Transaction) error {
	if err := t.checkWrite(tr.BudgetID); err != nil {
		return err
	}
	t.state.transactions[tr.ID] = tr
	t.transactionWrites++
	return nil
}

func (t *tx) DeleteTransaction(id string) error {
	if err := t.checkWrite(t.budgetID); err != nil {
		return err
	}
	if _, ok := t.state.transactions[id]; !ok {
		return core.NotFound("transaction", id)
	}
	delete(t.state.transactions, id)
	t.transactionWrites++
	return nil
}

func (t *tx) SumCategoryActivity(categoryID string) (core.Money, error) {
	var (
		sum core.Money
		err error
	)
	for _, tr := range t.state.transactions {
		if tr.CategoryID != categoryID {
			continue
		}
		if sum, err = sum.CheckedAdd(tr.Amount); err != nil {
			return core.Money{}, err
		}
	}
	return sum, nil
}

func (t *tx) SumBudgeted() (core.Money, error) {
	var (
		sum core.Money
		err error
	)
	for _, cm := range t.state.months {
		if sum, err = sum.CheckedAdd(cm.Budgeted); err != nil {
			return core.Money{}, err
		}
	}
	return sum, nil
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func sortMonths(ms []core.CategoryMonth) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Month.Before(ms[j].Month) })
}

// sortTransactions orders newest first, ties broken by creation time then id.
func sortTransactions(ts []core.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.Created.Equal(b.Created) {
			return a.Created.After(b.Created)
		}
		return a.ID > b.ID
	})
}
