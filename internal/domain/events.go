package domain

import "time"

// Event types
const (
	EventTypeEntryAppended     = "ledger.entry.appended"
	EventTypeEntryDeleted      = "ledger.entry.deleted"
	EventTypeEntryRestored     = "ledger.entry.restored"
	EventTypeEntryFrozen       = "ledger.entry.frozen"
	EventTypeEntryUnfrozen     = "ledger.entry.unfrozen"
	EventTypeEntryAmountEdited = "ledger.entry.amount_edited"
	EventTypeScopeRecomputed   = "ledger.scope.recomputed"
)

// OutboxEvent represents an event to be published. AggregateType is the scope
// kind and AggregateID the scope key, so consumers can partition by scope.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// LedgerChangedEvent is the payload of every ledger event.
type LedgerChangedEvent struct {
	Scope          string `json:"scope"`
	EntryID        int64  `json:"entry_id,omitempty"`
	Amount         string `json:"amount,omitempty"`
	CurrentBalance string `json:"current_balance"`
	CascadeLength  int    `json:"cascade_length"`
	Actor          string `json:"actor"`
	EventAt        string `json:"event_at"`
}

// Map flattens the payload for storage in the outbox.
func (e LedgerChangedEvent) Map() map[string]any {
	m := map[string]any{
		"scope":           e.Scope,
		"current_balance": e.CurrentBalance,
		"cascade_length":  e.CascadeLength,
		"actor":           e.Actor,
		"event_at":        e.EventAt,
	}
	if e.EntryID != 0 {
		m["entry_id"] = e.EntryID
	}
	if e.Amount != "" {
		m["amount"] = e.Amount
	}
	return m
}
