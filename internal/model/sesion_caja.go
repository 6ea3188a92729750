package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashStatus is the lifecycle state of a cash-drawer session.
type CashStatus string

const (
	CashOpen   CashStatus = "open"
	CashClosed CashStatus = "closed"
)

func (s CashStatus) Valid() bool { return s == CashOpen || s == CashClosed }

func (s *CashStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(s), "cash status", func(v string) bool { return CashStatus(v).Valid() })
}

// OperationType classifies a CashOperation.
// "opening" is only ever written by Open; callers may record "in" and "out".
type OperationType string

const (
	OperationOpening OperationType = "opening"
	OperationIn      OperationType = "in"
	OperationOut     OperationType = "out"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationOpening, OperationIn, OperationOut:
		return true
	}
	return false
}

// ParseManualOperationType accepts the types a caller is allowed to record.
func ParseManualOperationType(s string) (OperationType, bool) {
	t := OperationType(s)
	if t == OperationIn || t == OperationOut {
		return t, true
	}
	return "", false
}

func (t *OperationType) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(t), "operation type", func(v string) bool { return OperationType(v).Valid() })
}

// CashSession represents the lifecycle of a cash register session.
// Operations are append-only; the session is immutable once closed.
type CashSession struct {
	ID            uuid.UUID       `json:"id"`
	RegisterID    string          `json:"registerId"`
	OpenedAt      time.Time       `json:"openedAt"`
	OpenedBy      string          `json:"openedBy"`
	OpeningAmount decimal.Decimal `json:"openingAmount"`
	Status        CashStatus      `json:"status"`
	Operations    []CashOperation `json:"operations"`

	// Report is set when the session transitions to closed and is kept until
	// the closing audit record has been archived.
	Report *ClosingReport `json:"report,omitempty"`
}

// CashOperation is an immutable event in the cash drawer ledger.
type CashOperation struct {
	ID          uuid.UUID       `json:"id"`
	SessionID   uuid.UUID       `json:"sessionId"`
	Type        OperationType   `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description"`
	Operator    string          `json:"operator"`
}

// CashTotals is the expected-cash breakdown computed at close.
// ExpectedCash = opening + CashSales + OtherOperationsNet.
type CashTotals struct {
	CashSales          decimal.Decimal `json:"cashSales"`
	CardSales          decimal.Decimal `json:"cardSales"`
	CreditSales        decimal.Decimal `json:"creditSales"`
	Unclassified       decimal.Decimal `json:"unclassified"`
	UnclassifiedCount  int             `json:"unclassifiedCount"`
	OtherOperationsNet decimal.Decimal `json:"otherOperationsNet"`
	ExpectedCash       decimal.Decimal `json:"expectedCash"`
	SalesCount         int             `json:"salesCount"`
}

// VarianceLevel classifies the closing difference: normal <= 1%, warning <= 5%, critical > 5%.
type VarianceLevel string

const (
	VarianceNormal   VarianceLevel = "normal"
	VarianceWarning  VarianceLevel = "warning"
	VarianceCritical VarianceLevel = "critical"
)

// ClosingReport is written once per closed CashSession and never modified.
type ClosingReport struct {
	SessionID      uuid.UUID       `json:"sessionId"`
	RegisterID     string          `json:"registerId"`
	OpenedAt       time.Time       `json:"openedAt"`
	ClosedAt       time.Time       `json:"closedAt"`
	OpenedBy       string          `json:"openedBy"`
	ClosedBy       string          `json:"closedBy"`
	OpeningAmount  decimal.Decimal `json:"openingAmount"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
	ActualAmount   decimal.Decimal `json:"actualAmount"`
	Difference     decimal.Decimal `json:"difference"`
	DifferencePct  decimal.Decimal `json:"differencePct"`
	VarianceLevel  VarianceLevel   `json:"varianceLevel"`
	Totals         CashTotals      `json:"totals"`
	Notes          string          `json:"notes"`
	Operations     []CashOperation `json:"operations"`
}

// unmarshalEnum decodes a JSON string into dst, rejecting values valid() refuses.
func unmarshalEnum(b []byte, dst *string, name string, valid func(string) bool) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !valid(s) {
		return fmt.Errorf("invalid %s %q", name, s)
	}
	*dst = s
	return nil
}
