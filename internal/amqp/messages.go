package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to the ledger.
type EventType string

const (
	EventTransactionRecorded EventType = "transaction.recorded"
	EventDebtCreated         EventType = "debt.created"
	EventDebtPaid            EventType = "debt.paid"
	EventExchangeRecorded    EventType = "exchange.recorded"
	EventProductDeleted      EventType = "product.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTransactionRecorded, EventDebtCreated, EventDebtPaid, EventExchangeRecorded, EventProductDeleted:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification. It carries only the entity id;
// consumers fetch the full record from the database.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	EntityID  string    `json:"entity_id"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, entityID, kind string) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		EntityID:  entityID,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.EntityID == "" {
		return nil, fmt.Errorf("event %s without entity id", msg.Type)
	}
	return &msg, nil
}
