package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditKind: "cash_closing" | "inventory_adjustment"
type AuditKind string

const (
	AuditCashClosing         AuditKind = "cash_closing"
	AuditInventoryAdjustment AuditKind = "inventory_adjustment"
)

func (k AuditKind) Valid() bool { return k == AuditCashClosing || k == AuditInventoryAdjustment }

// AuditRecord is an append-only entry proving what was reconciled and when.
// Exactly one of Closing / Adjustment is set, matching Kind; on the wire both
// travel in the "payload" field.
type AuditRecord struct {
	ID         uuid.UUID
	Kind       AuditKind
	SessionID  uuid.UUID
	ScopeID    string
	AppliedAt  time.Time
	Closing    *ClosingReport
	Adjustment *InventoryAdjustment
}

type auditRecordJSON struct {
	ID        uuid.UUID       `json:"id"`
	Kind      AuditKind       `json:"kind"`
	SessionID uuid.UUID       `json:"sessionId"`
	ScopeID   string          `json:"scopeId"`
	AppliedAt time.Time       `json:"appliedAt"`
	Payload   json.RawMessage `json:"payload"`
}

func (r AuditRecord) MarshalJSON() ([]byte, error) {
	var payload any
	switch r.Kind {
	case AuditCashClosing:
		payload = r.Closing
	case AuditInventoryAdjustment:
		payload = r.Adjustment
	default:
		return nil, fmt.Errorf("audit record: invalid kind %q", r.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(auditRecordJSON{
		ID:        r.ID,
		Kind:      r.Kind,
		SessionID: r.SessionID,
		ScopeID:   r.ScopeID,
		AppliedAt: r.AppliedAt,
		Payload:   raw,
	})
}

func (r *AuditRecord) UnmarshalJSON(b []byte) error {
	var in auditRecordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := AuditRecord{
		ID:        in.ID,
		Kind:      in.Kind,
		SessionID: in.SessionID,
		ScopeID:   in.ScopeID,
		AppliedAt: in.AppliedAt,
	}
	switch in.Kind {
	case AuditCashClosing:
		out.Closing = &ClosingReport{}
		if err := json.Unmarshal(in.Payload, out.Closing); err != nil {
			return fmt.Errorf("audit record payload: %w", err)
		}
	case AuditInventoryAdjustment:
		out.Adjustment = &InventoryAdjustment{}
		if err := json.Unmarshal(in.Payload, out.Adjustment); err != nil {
			return fmt.Errorf("audit record payload: %w", err)
		}
	default:
		return fmt.Errorf("audit record: invalid kind %q", in.Kind)
	}
	*r = out
	return nil
}
