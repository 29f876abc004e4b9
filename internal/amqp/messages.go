package amqp

import (
	"encoding/json"
	"time"

	"github.com/charles-997/budge/internal/ledger"
)

// LedgerEventMessage is the wire form of a committed ledger change. It only
// names what changed; consumers read current state from the store.
type LedgerEventMessage struct {
	Type       string    `json:"type"`
	BudgetID   string    `json:"budget_id"`
	EntityID   string    `json:"entity_id,omitempty"`
	Origin     string    `json:"origin"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLedgerEventMessage wraps ev for publishing by the process origin.
func NewLedgerEventMessage(ev ledger.Event, origin string) *LedgerEventMessage {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return &LedgerEventMessage{
		Type:       string(ev.Type),
		BudgetID:   ev.BudgetID,
		EntityID:   ev.EntityID,
		Origin:     origin,
		OccurredAt: occurred.UTC(),
	}
}

// Event converts the message back into a ledger event.
func (m *LedgerEventMessage) Event() ledger.Event {
	return ledger.Event{
		Type:       ledger.EventType(m.Type),
		BudgetID:   m.BudgetID,
		EntityID:   m.EntityID,
		OccurredAt: m.OccurredAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
