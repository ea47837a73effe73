package domain

import (
	"encoding/json"
	"time"
)

// AuditLog records who changed a ledger entry and how.
type AuditLog struct {
	ID           string
	Actor        string      // Who performed the action
	Action       AuditAction // What was done
	ScopeKind    ScopeKind   // Which history table the entry lives in
	ResourceID   string      // Entry id or scope key
	RequestID    string      // Request ID for tracing
	BeforeState  JSON
	AfterState   JSON
	Status       AuditStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionEntryAppend     AuditAction = "entry.append"
	AuditActionEntryDelete     AuditAction = "entry.delete"
	AuditActionEntryRestore    AuditAction = "entry.restore"
	AuditActionEntryFreeze     AuditAction = "entry.freeze"
	AuditActionEntryUnfreeze   AuditAction = "entry.unfreeze"
	AuditActionEntryEditAmount AuditAction = "entry.edit_amount"
	AuditActionScopeRecompute  AuditAction = "scope.recompute"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// EntryState is the audited snapshot of an entry.
func EntryState(e *Entry) JSON {
	return JSON{
		"id":             e.ID,
		"scope":          e.Scope.String(),
		"amount":         e.Amount.String(),
		"balance_before": e.BalanceBefore.String(),
		"balance_after":  e.BalanceAfter.String(),
		"is_deleted":     e.IsDeleted,
		"is_frozen":      e.IsFrozen,
	}
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	Actor      string
	Action     AuditAction
	ScopeKind  ScopeKind
	ResourceID string
	Limit      int
	Offset     int
}
