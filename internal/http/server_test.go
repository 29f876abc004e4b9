package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/ledger"
	"github.com/charles-997/budge/internal/middleware/ratelimit"
	"github.com/charles-997/budge/internal/storage/memory"
)

type apiResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t   *testing.T
	srv *Server
}

func newTestAPI(t *testing.T, l Ledger, opts Options) *testAPI {
	t.Helper()
	srv, err := NewServer(":0", l, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, srv: srv}
}

func newEngine() *ledger.Engine {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	return ledger.NewEngine(memory.New(), ledger.Config{Now: func() time.Time { return now }})
}

// do sends a request and decodes the envelope; data is unmarshalled into
// out when out is not nil.
func (a *testAPI) do(method, path, body string, out any) (int, apiResponse) {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)

	var resp apiResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		a.t.Fatalf("%s %s: decode body %q: %v", method, path, rr.Body.String(), err)
	}
	if out != nil && rr.Code < 300 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			a.t.Fatalf("%s %s: decode data %s: %v", method, path, resp.Data, err)
		}
	}
	return rr.Code, resp
}

func (a *testAPI) mustDo(method, path, body string, wantStatus int, out any) {
	a.t.Helper()
	code, resp := a.do(method, path, body, out)
	if code != wantStatus {
		a.t.Fatalf("%s %s: status = %d (%s), want %d", method, path, code, resp.Message, wantStatus)
	}
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, newEngine(), Options{})
	api.mustDo(http.MethodGet, "/healthz", "", http.StatusOK, nil)
	api.mustDo(http.MethodGet, "/readyz", "", http.StatusOK, nil)

	failing := newTestAPI(t, newEngine(), Options{
		Ready: func(context.Context) error { return errors.New("database is down") },
	})
	code, resp := failing.do(http.MethodGet, "/readyz", "", nil)
	if code != http.StatusServiceUnavailable || resp.Message != "not ready" {
		t.Errorf("readyz = %d %q, want 503 not ready", code, resp.Message)
	}
}

func TestLedgerLifecycle(t *testing.T) {
	api := newTestAPI(t, newEngine(), Options{})

	var budget struct {
		ID           string `json:"id"`
		ToBeBudgeted int64  `json:"toBeBudgeted"`
	}
	api.mustDo(http.MethodPost, "/budgets", `{"name":"Home"}`, http.StatusCreated, &budget)
	base := "/budgets/" + budget.ID

	var groups []categoryGroupView
	api.mustDo(http.MethodGet, base+"/categories", "", http.StatusOK, &groups)
	if len(groups) != 1 || groups[0].Name != core.InflowGroupName || len(groups[0].Categories) != 1 {
		t.Fatalf("new budget categories = %+v, want the inflow group with one category", groups)
	}

	var group core.CategoryGroup
	api.mustDo(http.MethodPost, base+"/categories/groups", `{"name":"Bills"}`, http.StatusCreated, &group)
	var power core.Category
	api.mustDo(http.MethodPost, base+"/categories", `{"categoryGroupId":"`+group.ID+`","name":"Power"}`, http.StatusCreated, &power)

	var checking core.Account
	api.mustDo(http.MethodPost, base+"/accounts",
		`{"name":"Checking","type":"bank","balance":"1000.00","date":"2024-03-01"}`, http.StatusCreated, &checking)
	if checking.Balance != core.Cents(100000) || checking.TransferPayeeID == "" {
		t.Fatalf("checking = %+v", checking)
	}

	api.mustDo(http.MethodGet, base, "", http.StatusOK, &budget)
	if budget.ToBeBudgeted != 100000 {
		t.Errorf("toBeBudgeted = %d, want 100000", budget.ToBeBudgeted)
	}

	var cm core.CategoryMonth
	api.mustDo(http.MethodPut, base+"/categories/"+power.ID+"/2024-03", `{"budgeted":2500}`, http.StatusOK, &cm)
	if cm.Budgeted != core.Cents(2500) || cm.Balance != core.Cents(2500) {
		t.Errorf("budgeted month = %+v", cm)
	}

	var payee core.Payee
	api.mustDo(http.MethodPost, base+"/payees", `{"name":"Power Co"}`, http.StatusCreated, &payee)

	var bill core.Transaction
	api.mustDo(http.MethodPost, base+"/transactions",
		`{"accountId":"`+checking.ID+`","payeeId":"`+payee.ID+`","categoryId":"`+power.ID+`","amount":-2500,"date":"2024-03-10","status":"cleared"}`,
		http.StatusCreated, &bill)

	var month core.MonthSummary
	api.mustDo(http.MethodGet, base+"/months/2024-03", "", http.StatusOK, &month)
	if month.ToBeBudgeted != core.Cents(97500) {
		t.Errorf("month toBeBudgeted = %s, want 975.00", month.ToBeBudgeted)
	}
	found := false
	for _, c := range month.Categories {
		if c.CategoryID == power.ID {
			found = true
			if c.Activity != core.Cents(-2500) || !c.Balance.IsZero() {
				t.Errorf("power month = %+v, want activity -25.00 and zero balance", c)
			}
		}
	}
	if !found {
		t.Errorf("month summary misses the power category: %+v", month.Categories)
	}

	var updated core.Transaction
	api.mustDo(http.MethodPut, base+"/transactions/"+bill.ID, `{"amount":"-30.00"}`, http.StatusOK, &updated)
	api.mustDo(http.MethodGet, base+"/categories/"+power.ID+"/2024-03", "", http.StatusOK, &cm)
	if cm.Balance != core.Cents(-500) {
		t.Errorf("power balance after edit = %s, want -5.00", cm.Balance)
	}

	var balance ledger.AccountBalance
	api.mustDo(http.MethodGet, base+"/accounts/"+checking.ID+"/balance", "", http.StatusOK, &balance)
	if balance.Balance != core.Cents(97000) || balance.Cleared != core.Cents(97000) {
		t.Errorf("balance = %+v, want 970.00 cleared", balance)
	}

	var txs []core.Transaction
	api.mustDo(http.MethodGet, base+"/accounts/"+checking.ID+"/transactions", "", http.StatusOK, &txs)
	if len(txs) != 2 {
		t.Errorf("got %d transactions, want opening balance + bill", len(txs))
	}

	api.mustDo(http.MethodDelete, base+"/transactions/"+bill.ID, "", http.StatusOK, nil)
	api.mustDo(http.MethodGet, base+"/transactions/"+bill.ID, "", http.StatusNotFound, nil)
	api.mustDo(http.MethodGet, base+"/accounts/"+checking.ID, "", http.StatusOK, &checking)
	if checking.Balance != core.Cents(100000) {
		t.Errorf("balance after delete = %s, want 1000.00", checking.Balance)
	}
}

func TestUpdateAccount(t *testing.T) {
	api := newTestAPI(t, newEngine(), Options{})

	var budget core.Budget
	api.mustDo(http.MethodPost, "/budgets", `{"name":"Home"}`, http.StatusCreated, &budget)
	base := "/budgets/" + budget.ID

	var a core.Account
	api.mustDo(http.MethodPost, base+"/accounts", `{"name":"Checking","type":"bank","balance":10000}`, http.StatusCreated, &a)

	api.mustDo(http.MethodPut, base+"/accounts/"+a.ID, `{"name":"Main"}`, http.StatusOK, &a)
	if a.Name != "Main" {
		t.Errorf("name = %q, want Main", a.Name)
	}

	api.mustDo(http.MethodPut, base+"/accounts/"+a.ID, `{"balance":"120.00"}`, http.StatusOK, &a)
	if a.Cleared != core.Cents(12000) || a.Balance != core.Cents(12000) {
		t.Errorf("reconciled account = %+v, want 120.00 cleared", a)
	}

	var budgetView struct {
		ToBeBudgeted int64 `json:"toBeBudgeted"`
	}
	api.mustDo(http.MethodGet, base, "", http.StatusOK, &budgetView)
	if budgetView.ToBeBudgeted != 12000 {
		t.Errorf("toBeBudgeted after reconcile = %d, want 12000", budgetView.ToBeBudgeted)
	}

	api.mustDo(http.MethodPut, base+"/accounts/"+a.ID, `{}`, http.StatusUnprocessableEntity, nil)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, newEngine(), Options{})

	var budget core.Budget
	api.mustDo(http.MethodPost, "/budgets", `{"name":"Home"}`, http.StatusCreated, &budget)
	base := "/budgets/" + budget.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/budgets", `{"name":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/budgets", ``, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/budgets", `{"title":"x"}`, http.StatusBadRequest},
		{"empty name", http.MethodPost, "/budgets", `{"name":"  "}`, http.StatusUnprocessableEntity},
		{"unknown budget", http.MethodGet, "/budgets/nope", ``, http.StatusNotFound},
		{"invalid account type", http.MethodPost, base + "/accounts", `{"name":"X","type":"cash"}`, http.StatusUnprocessableEntity},
		{"invalid amount", http.MethodPost, base + "/transactions", `{"accountId":"a","payeeId":"p","amount":"abc","date":"2024-03-01"}`, http.StatusUnprocessableEntity},
		{"fractional json amount", http.MethodPost, base + "/transactions", `{"accountId":"a","payeeId":"p","amount":1.5,"date":"2024-03-01"}`, http.StatusUnprocessableEntity},
		{"amount out of range", http.MethodPost, base + "/transactions", `{"accountId":"a","payeeId":"p","amount":9223372036854775807,"date":"2024-03-01"}`, http.StatusUnprocessableEntity},
		{"invalid date", http.MethodPost, base + "/transactions", `{"accountId":"a","payeeId":"p","amount":100,"date":"yesterday"}`, http.StatusUnprocessableEntity},
		{"unknown account", http.MethodPost, base + "/transactions", `{"accountId":"a","payeeId":"p","amount":100,"date":"2024-03-01"}`, http.StatusNotFound},
		{"invalid month", http.MethodGet, base + "/months/March", ``, http.StatusUnprocessableEntity},
		{"missing budgeted", http.MethodPut, base + "/categories/c/2024-03", `{}`, http.StatusUnprocessableEntity},
		{"missing group", http.MethodPost, base + "/categories", `{"name":"Power"}`, http.StatusUnprocessableEntity},
		{"unknown route", http.MethodGet, "/nothing/here", ``, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(tt.method, tt.path, tt.body, nil)
			if code != tt.want {
				t.Errorf("status = %d (%s), want %d", code, resp.Message, tt.want)
			}
			if resp.Message == "" || resp.Message == messageSuccess {
				t.Errorf("error response message = %q", resp.Message)
			}
		})
	}
}

// failingLedger answers every budget lookup with a fixed error.
type failingLedger struct {
	Ledger
	err error
}

func (f failingLedger) GetBudget(context.Context, string) (core.Budget, error) {
	return core.Budget{}, f.err
}

func TestStoreErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"store failure", core.StoreFailure("read", errors.New("disk I/O error")), http.StatusServiceUnavailable},
		{"conflict", core.Conflict("commit", errors.New("database is locked")), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, failingLedger{Ledger: newEngine(), err: tt.err}, Options{})
			code, resp := api.do(http.MethodGet, "/budgets/b1", "", nil)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
			if strings.Contains(resp.Message, "disk") || strings.Contains(resp.Message, "boom") {
				t.Errorf("internal cause leaked to client: %q", resp.Message)
			}
		})
	}
}

func rateLimitConfig(perMinute int) ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	cfg.RequestsPerMinute = perMinute
	return cfg
}

func TestRateLimitedWrites(t *testing.T) {
	api := newTestAPI(t, newEngine(), Options{RateLimit: rateLimitConfig(2)})

	api.mustDo(http.MethodPost, "/budgets", `{"name":"A"}`, http.StatusCreated, nil)
	api.mustDo(http.MethodPost, "/budgets", `{"name":"B"}`, http.StatusCreated, nil)
	code, resp := api.do(http.MethodPost, "/budgets", `{"name":"C"}`, nil)
	if code != http.StatusTooManyRequests {
		t.Errorf("third write status = %d (%s), want 429", code, resp.Message)
	}
	api.mustDo(http.MethodGet, "/healthz", "", http.StatusOK, nil)

	if got := api.srv.Metrics().TotalRequests; got != 4 {
		t.Errorf("TotalRequests = %d, want 4", got)
	}
}
