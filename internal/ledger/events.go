package ledger

import (
	"context"
	"time"
)

type EventType string

const (
	EventBudgetCreated         EventType = "budget.created"
	EventAccountCreated        EventType = "account.created"
	EventAccountUpdated        EventType = "account.updated"
	EventAccountReconciled     EventType = "account.reconciled"
	EventCategoryCreated       EventType = "category.created"
	EventCategoryMonthBudgeted EventType = "category_month.budgeted"
	EventTransactionCreated    EventType = "transaction.created"
	EventTransactionUpdated    EventType = "transaction.updated"
	EventTransactionDeleted    EventType = "transaction.deleted"
)

// Event announces a committed change to a budget.
type Event struct {
	Type       EventType
	BudgetID   string
	EntityID   string
	OccurredAt time.Time
}

// Publisher delivers ledger events to other processes.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev Event) error
}
