package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/ledger"
)

var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestEngine(t *testing.T, repo *SQLiteRepository) *ledger.Engine {
	t.Helper()
	return ledger.NewEngine(repo, ledger.Config{Now: func() time.Time { return testNow }})
}

func TestNewSQLiteRepository_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, nil)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := repo.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		if err := repo.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	budget := core.Budget{ID: "b1", Name: "Home", Created: testNow, Updated: testNow}
	account := core.Account{
		ID: "a1", BudgetID: "b1", Name: "Checking", Type: core.Bank, TransferPayeeID: "p-transfer",
		Cleared: core.Cents(1000), Uncleared: core.Cents(-250), Balance: core.Cents(750),
		Created: testNow, Updated: testNow,
	}
	payee := core.Payee{ID: "p1", BudgetID: "b1", Name: "Shop", Created: testNow, Updated: testNow}
	group := core.CategoryGroup{ID: "g1", BudgetID: "b1", Name: "Bills", Created: testNow, Updated: testNow}
	category := core.Category{ID: "c1", BudgetID: "b1", CategoryGroupID: "g1", Name: "Power", Created: testNow, Updated: testNow}
	month := core.CategoryMonth{
		ID: "cm1", BudgetID: "b1", CategoryID: "c1", Month: core.NewMonth(2024, time.March),
		Budgeted: core.Cents(2500), Activity: core.Cents(-1000), Balance: core.Cents(1500),
		Created: testNow, Updated: testNow,
	}
	tr := core.Transaction{
		ID: "t1", BudgetID: "b1", AccountID: "a1", PayeeID: "p1", CategoryID: "c1",
		Amount: core.Cents(-1000), Date: core.NewDate(2024, 3, 3), Memo: "bill", Status: core.Cleared,
		Created: testNow, Updated: testNow,
	}

	err := repo.Update(ctx, "b1", func(tx ledger.Tx) error {
		for _, put := range []func() error{
			func() error { return tx.PutBudget(budget) },
			func() error { return tx.PutAccount(account) },
			func() error { return tx.PutPayee(payee) },
			func() error { return tx.PutCategoryGroup(group) },
			func() error { return tx.PutCategory(category) },
			func() error { return tx.PutCategoryMonth(month) },
			func() error { return tx.PutTransaction(tr) },
		} {
			if err := put(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = repo.View(ctx, "b1", func(tx ledger.Tx) error {
		gotAccount, err := tx.GetAccount("a1")
		if err != nil {
			return err
		}
		if gotAccount.Balance != account.Balance || gotAccount.Type != core.Bank || !gotAccount.Created.Equal(testNow) {
			t.Errorf("account = %+v", gotAccount)
		}

		gotMonth, err := tx.GetCategoryMonth("c1", month.Month)
		if err != nil {
			return err
		}
		if gotMonth.Balance != month.Balance || !gotMonth.Month.Equal(month.Month) {
			t.Errorf("category month = %+v", gotMonth)
		}

		gotTx, err := tx.GetTransaction("t1")
		if err != nil {
			return err
		}
		if gotTx.CategoryID != "c1" || gotTx.TransferAccountID != "" || gotTx.Date.String() != "2024-03-03" {
			t.Errorf("transaction = %+v", gotTx)
		}

		sum, err := tx.SumCategoryActivity("c1")
		if err != nil {
			return err
		}
		if sum != core.Cents(-1000) {
			t.Errorf("activity sum = %s", sum)
		}
		budgeted, err := tx.SumBudgeted()
		if err != nil {
			return err
		}
		if budgeted != core.Cents(2500) {
			t.Errorf("budgeted sum = %s", budgeted)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	// Other budgets see nothing.
	err = repo.View(ctx, "b2", func(tx ledger.Tx) error {
		_, err := tx.GetAccount("a1")
		return err
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign lookup error = %v, want not found", err)
	}
}

func TestSQLiteRepository_RollbackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Update(ctx, "b1", func(tx ledger.Tx) error {
		if err := tx.PutBudget(core.Budget{ID: "b1", Name: "Home", Created: testNow, Updated: testNow}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	err = repo.View(ctx, "b1", func(tx ledger.Tx) error {
		_, err := tx.GetBudget()
		return err
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("budget survived rollback: %v", err)
	}
}

func TestSQLiteRepository_CheckConstraintIsStoreFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.Update(ctx, "b1", func(tx ledger.Tx) error {
		if err := tx.PutBudget(core.Budget{ID: "b1", Name: "Home", Created: testNow, Updated: testNow}); err != nil {
			return err
		}
		return tx.PutAccount(core.Account{
			ID: "a1", BudgetID: "b1", Name: "Broken", Type: core.Bank,
			Cleared: core.Cents(1), Balance: core.Cents(2),
			Created: testNow, Updated: testNow,
		})
	})
	if !errors.Is(err, core.ErrStoreFailure) {
		t.Fatalf("error = %v, want store failure", err)
	}
}

func TestSQLiteRepository_SumOverflowIsValidation(t *testing.T) {
	repo := newTestRepo(t)
	engine := newTestEngine(t, repo)
	ctx := context.Background()

	budget, err := engine.CreateBudget(ctx, "Household")
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	group, err := engine.CreateCategoryGroup(ctx, budget.ID, "Bills")
	if err != nil {
		t.Fatalf("CreateCategoryGroup: %v", err)
	}
	rent, err := engine.CreateCategory(ctx, budget.ID, group.ID, "Rent")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	near := core.Cents(math.MaxInt64 - 5)
	err = repo.Update(ctx, budget.ID, func(tx ledger.Tx) error {
		for i, m := range []core.Month{core.NewMonth(2024, time.January), core.NewMonth(2024, time.February)} {
			cm := core.CategoryMonth{
				ID: fmt.Sprintf("cm%d", i), BudgetID: budget.ID, CategoryID: rent.ID, Month: m,
				Budgeted: near, Balance: near, Created: testNow, Updated: testNow,
			}
			if err := tx.PutCategoryMonth(cm); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = engine.GetToBeBudgeted(ctx, budget.ID)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("GetToBeBudgeted error = %v, want validation", err)
	}
}

func TestSQLiteRepository_EngineScenarios(t *testing.T) {
	repo := newTestRepo(t)
	engine := newTestEngine(t, repo)
	ctx := context.Background()

	budget, err := engine.CreateBudget(ctx, "Household")
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	group, err := engine.CreateCategoryGroup(ctx, budget.ID, "Bills")
	if err != nil {
		t.Fatalf("CreateCategoryGroup: %v", err)
	}
	power, err := engine.CreateCategory(ctx, budget.ID, group.ID, "Power")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	checking, err := engine.CreateAccount(ctx, budget.ID, ledger.AccountInput{Name: "Checking", Type: core.Bank, Balance: core.Cents(10000)})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	savings, err := engine.CreateAccount(ctx, budget.ID, ledger.AccountInput{Name: "Savings", Type: core.Bank})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	utility, err := engine.CreatePayee(ctx, budget.ID, "Utility")
	if err != nil {
		t.Fatalf("CreatePayee: %v", err)
	}

	mar := core.NewMonth(2024, time.March)
	if _, err := engine.SetCategoryMonthBudgeted(ctx, budget.ID, power.ID, mar, core.Cents(2500)); err != nil {
		t.Fatalf("SetCategoryMonthBudgeted: %v", err)
	}
	if _, err := engine.CreateTransaction(ctx, budget.ID, ledger.TransactionInput{
		AccountID: checking.ID, PayeeID: utility.ID, CategoryID: power.ID,
		Amount: core.Cents(-2500), Date: core.NewDate(2024, 3, 20),
	}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	transfer, err := engine.CreateTransaction(ctx, budget.ID, ledger.TransactionInput{
		AccountID: checking.ID, PayeeID: savings.TransferPayeeID,
		Amount: core.Cents(-3000), Date: core.NewDate(2024, 3, 21), Status: core.Cleared,
	})
	if err != nil {
		t.Fatalf("CreateTransaction(transfer): %v", err)
	}

	for _, tt := range []struct {
		month core.Month
		want  int64
	}{
		{mar, 0},
		{mar.Next(), 0},
	} {
		cm, err := engine.GetCategoryMonth(ctx, budget.ID, power.ID, tt.month)
		if err != nil {
			t.Fatalf("GetCategoryMonth: %v", err)
		}
		if cm.Balance != core.Cents(tt.want) {
			t.Errorf("%s balance = %s, want %s", tt.month, cm.Balance, core.Cents(tt.want))
		}
	}

	tbb, err := engine.GetToBeBudgeted(ctx, budget.ID)
	if err != nil {
		t.Fatalf("GetToBeBudgeted: %v", err)
	}
	if tbb != core.Cents(7500) {
		t.Errorf("to be budgeted = %s, want 75.00", tbb)
	}

	a, err := engine.GetAccount(ctx, budget.ID, checking.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if a.Cleared != core.Cents(7000) || a.Uncleared != core.Cents(-2500) || a.Balance != core.Cents(4500) {
		t.Errorf("checking = %+v", a)
	}
	s, err := engine.GetAccount(ctx, budget.ID, savings.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if s.Balance != core.Cents(3000) {
		t.Errorf("savings balance = %s, want 30.00", s.Balance)
	}

	if err := engine.DeleteTransaction(ctx, budget.ID, transfer.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	txs, err := engine.ListTransactions(ctx, budget.ID, savings.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("savings still has %d transactions", len(txs))
	}

	reconciled, err := engine.ReconcileAccount(ctx, budget.ID, checking.ID, core.Cents(9900))
	if err != nil {
		t.Fatalf("ReconcileAccount: %v", err)
	}
	if reconciled.Cleared != core.Cents(9900) {
		t.Errorf("cleared after reconcile = %s", reconciled.Cleared)
	}
}

func TestSQLiteRepository_ConcurrentWriters(t *testing.T) {
	repo := newTestRepo(t)
	engine := newTestEngine(t, repo)
	ctx := context.Background()

	budget, err := engine.CreateBudget(ctx, "Household")
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	checking, err := engine.CreateAccount(ctx, budget.ID, ledger.AccountInput{Name: "Checking", Type: core.Bank})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	shop, err := engine.CreatePayee(ctx, budget.ID, "Shop")
	if err != nil {
		t.Fatalf("CreatePayee: %v", err)
	}

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := engine.CreateTransaction(ctx, budget.ID, ledger.TransactionInput{
				AccountID: checking.ID, PayeeID: shop.ID,
				Amount: core.Cents(-100), Date: core.NewDate(2024, 3, 1+i), Memo: fmt.Sprint(i),
			})
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent write: %v", err)
		}
	}

	a, err := engine.GetAccount(ctx, budget.ID, checking.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if a.Balance != core.Cents(-100*n) {
		t.Errorf("balance = %s, want %s", a.Balance, core.Cents(-100*n))
	}
}
