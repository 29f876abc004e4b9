package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/charles-997/budge/internal/cache"
	"github.com/charles-997/budge/internal/core"
	"github.com/charles-997/budge/internal/log"
)

// Config holds the optional collaborators of an Engine.
type Config struct {
	// Cache holds "to be budgeted" per budget id. Nil disables caching.
	Cache cache.Cache[core.Money]

	// Publisher receives an event after every committed write. Nil disables
	// publishing.
	Publisher Publisher

	Logger *log.Logger

	// Now is the engine clock (default: time.Now). It stamps records and
	// decides how far category month chains are carried forward.
	Now func() time.Time

	// NewID generates entity ids (default: random UUIDs).
	NewID func() string
}

// Engine exposes the ledger operations. Each mutating operation is one unit
// of work against the Store: it either commits completely or leaves the
// budget as it was.
type Engine struct {
	store     Store
	cache     cache.Cache[core.Money]
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
	newID     func() string

	group singleflight.Group
	mu    sync.Mutex
	gens  map[string]uint64 // bumped on every invalidation, guards late cache fills
}

func NewEngine(store Store, cfg Config) *Engine {
	e := &Engine{
		store:     store,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Now,
		newID:     cfg.NewID,
		gens:      make(map[string]uint64),
	}
	if e.logger == nil {
		e.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// write runs fn as a unit of work and, once it has committed, drops the
// cached aggregate of the budget.
func (e *Engine) write(ctx context.Context, op, budgetID string, fn func(Tx) error) error {
	err := e.store.Update(ctx, budgetID, fn)
	if err != nil {
		if core.KindOf(err) == nil {
			err = core.StoreFailure(op, err)
		} else {
			err = fmt.Errorf("%s: %w", op, err)
		}
		e.logFailure(ctx, op, budgetID, err)
		return err
	}
	e.InvalidateToBeBudgeted(budgetID)
	return nil
}

// read runs fn against a snapshot of the budget.
func (e *Engine) read(ctx context.Context, op, budgetID string, fn func(Tx) error) error {
	err := e.store.View(ctx, budgetID, fn)
	if err == nil {
		return nil
	}
	if core.KindOf(err) == nil {
		return core.StoreFailure(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) logFailure(ctx context.Context, op, budgetID string, err error) {
	fields := log.NewFields().
		WithOperation(op).
		WithBudget(budgetID).
		WithError(err).
		ToSlice()
	switch core.KindOf(err) {
	case core.ErrNotFound, core.ErrValidation:
		e.logger.DebugContext(ctx, "Ledger operation rejected", fields...)
	case core.ErrConflict:
		e.logger.WarnContext(ctx, "Ledger operation conflicted", fields...)
	default:
		e.logger.ErrorContext(ctx, "Ledger operation failed", fields...)
	}
}

// publish sends a change event. Publishing is best effort: the write has
// already committed and stays committed.
func (e *Engine) publish(ctx context.Context, typ EventType, budgetID, entityID string) {
	if e.publisher == nil {
		return
	}
	ev := Event{
		Type:       typ,
		BudgetID:   budgetID,
		EntityID:   entityID,
		OccurredAt: e.now().UTC(),
	}
	if err := e.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish ledger event",
			"event", string(typ),
			log.FieldBudgetID, budgetID,
			log.FieldError, err)
	}
}
