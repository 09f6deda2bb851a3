package events

import (
	"encoding/json"
	"time"

	"pocketmoney/internal/core"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LedgerEvent is the message published after every successful mutation.
// It carries only the id and the affected account; consumers fetch the full
// record from the store if they need it.
type LedgerEvent struct {
	ID        int64     `json:"id"`
	Account   string    `json:"account"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(id int64, account core.Account, action string) *LedgerEvent {
	return &LedgerEvent{
		ID:        id,
		Account:   string(account),
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
