package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/ledger"
	"github.com/charles-997/budge/internal/log"
	"github.com/charles-997/budge/internal/middleware/ratelimit"
	"github.com/charles-997/budge/internal/middleware/security"
	"github.com/charles-997/budge/internal/middleware/trace"
)

// Ledger is the set of engine operations served over HTTP.
type Ledger interface {
	CreateBudget(ctx context.Context, name string) (core.Budget, error)
	GetBudget(ctx context.Context, budgetID string) (core.Budget, error)
	GetToBeBudgeted(ctx context.Context, budgetID string) (core.Money, error)

	CreateAccount(ctx context.Context, budgetID string, in ledger.AccountInput) (core.Account, error)
	GetAccount(ctx context.Context, budgetID, accountID string) (core.Account, error)
	ListAccounts(ctx context.Context, budgetID string) ([]core.Account, error)
	GetAccountBalance(ctx context.Context, budgetID, accountID string) (ledger.AccountBalance, error)
	UpdateAccount(ctx context.Context, budgetID, accountID string, patch ledger.AccountPatch) (core.Account, error)
	ReconcileAccount(ctx context.Context, budgetID, accountID string, cleared core.Money) (core.Account, error)

	CreateCategoryGroup(ctx context.Context, budgetID, name string) (core.CategoryGroup, error)
	ListCategoryGroups(ctx context.Context, budgetID string) ([]core.CategoryGroup, error)
	CreateCategory(ctx context.Context, budgetID, groupID, name string) (core.Category, error)
	ListCategories(ctx context.Context, budgetID string) ([]core.Category, error)
	GetCategoryMonth(ctx context.Context, budgetID, categoryID string, month core.Month) (core.CategoryMonth, error)
	SetCategoryMonthBudgeted(ctx context.Context, budgetID, categoryID string, month core.Month, amount core.Money) (core.CategoryMonth, error)
	GetMonth(ctx context.Context, budgetID string, month core.Month) ([]core.CategoryMonth, error)

	CreatePayee(ctx context.Context, budgetID, name string) (core.Payee, error)
	ListPayees(ctx context.Context, budgetID string) ([]core.Payee, error)

	CreateTransaction(ctx context.Context, budgetID string, in ledger.TransactionInput) (core.Transaction, error)
	GetTransaction(ctx context.Context, budgetID, transactionID string) (core.Transaction, error)
	ListTransactions(ctx context.Context, budgetID, accountID string) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, budgetID, transactionID string, patch ledger.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, budgetID, transactionID string) error
}

var _ Ledger = (*ledger.Engine)(nil)

// Options configures the optional parts of a Server.
type Options struct {
	Logger *log.Logger

	// Ready reports whether the backing store can serve requests. Nil means
	// always ready.
	Ready func(ctx context.Context) error

	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	ledger  Ledger
	ready   func(ctx context.Context) error
	logger  *log.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, l Ledger, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	if opts.TrustedProxies == nil {
		opts.TrustedProxies = security.DefaultTrustedProxies
	}
	resolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	if opts.RateLimit.Logger == nil {
		opts.RateLimit.Logger = opts.Logger
	}

	s := &Server{
		ledger:  l,
		ready:   opts.Ready,
		logger:  logger,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:  trace.NewMiddleware(opts.Logger, resolver.ExtractClientIP),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = log.Middleware(logger)(handler)
	handler = s.limiter.Middleware(resolver.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /budgets/{budgetId}", s.handleGetBudget)

	mux.HandleFunc("POST /budgets/{budgetId}/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /budgets/{budgetId}/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /budgets/{budgetId}/accounts/{accountId}", s.handleGetAccount)
	mux.HandleFunc("GET /budgets/{budgetId}/accounts/{accountId}/balance", s.handleGetAccountBalance)
	mux.HandleFunc("PUT /budgets/{budgetId}/accounts/{accountId}", s.handleUpdateAccount)
	mux.HandleFunc("GET /budgets/{budgetId}/accounts/{accountId}/transactions", s.handleListTransactions)

	mux.HandleFunc("POST /budgets/{budgetId}/categories/groups", s.handleCreateCategoryGroup)
	mux.HandleFunc("POST /budgets/{budgetId}/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /budgets/{budgetId}/categories", s.handleListCategories)
	mux.HandleFunc("GET /budgets/{budgetId}/categories/{categoryId}/{month}", s.handleGetCategoryMonth)
	mux.HandleFunc("PUT /budgets/{budgetId}/categories/{categoryId}/{month}", s.handleSetBudgeted)
	mux.HandleFunc("GET /budgets/{budgetId}/months/{month}", s.handleGetMonth)

	mux.HandleFunc("POST /budgets/{budgetId}/payees", s.handleCreatePayee)
	mux.HandleFunc("GET /budgets/{budgetId}/payees", s.handleListPayees)

	mux.HandleFunc("POST /budgets/{budgetId}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /budgets/{budgetId}/transactions/{transactionId}", s.handleGetTransaction)
	mux.HandleFunc("PUT /budgets/{budgetId}/transactions/{transactionId}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /budgets/{budgetId}/transactions/{transactionId}", s.handleDeleteTransaction)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	OK(w, map[string]string{"status": "ready"})
}
