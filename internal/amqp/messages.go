package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entities and actions carried by LedgerEvent.
const (
	EntityTransaction = "transaction"
	EntityCategory    = "category"
	EntityBudget      = "budget"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LedgerEvent announces a committed mutation. It carries ids only; consumers
// read the current record from the store when they need its content.
type LedgerEvent struct {
	Owner     string    `json:"owner"`
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(owner, entity, action, id string) *LedgerEvent {
	return &LedgerEvent{
		Owner:     owner,
		Entity:    entity,
		Action:    action,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// Kind is "<entity>/<action>", e.g. "transaction/created".
func (e *LedgerEvent) Kind() string {
	return e.Entity + "/" + e.Action
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks the required fields.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Owner == "" || ev.Entity == "" || ev.Action == "" || ev.ID == "" {
		return nil, fmt.Errorf("incomplete ledger event %q", ev.Kind())
	}
	return &ev, nil
}
