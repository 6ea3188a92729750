package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionKind selects which active-session slot a record occupies.
type SessionKind string

const (
	KindCash      SessionKind = "cash"
	KindInventory SessionKind = "inventory"
)

func (k SessionKind) Valid() bool { return k == KindCash || k == KindInventory }

// AuditKind returns the audit kind written when a session of this kind is finalized.
func (k SessionKind) AuditKind() AuditKind {
	if k == KindCash {
		return AuditCashClosing
	}
	return AuditInventoryAdjustment
}

// ActiveSession is the envelope a SessionStore keeps per (Kind, ScopeID).
// Version increases by one on every successful PutActive.
type ActiveSession struct {
	Kind      SessionKind       `json:"kind"`
	ScopeID   string            `json:"scopeId"`
	SessionID uuid.UUID         `json:"sessionId"`
	Version   int64             `json:"version"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Cash      *CashSession      `json:"cash,omitempty"`
	Inventory *InventorySession `json:"inventory,omitempty"`
}
