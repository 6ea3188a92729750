package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryStatus: "preparation" | "in_progress" | "completed". There is no reopen.
type InventoryStatus string

const (
	InventoryPreparation InventoryStatus = "preparation"
	InventoryInProgress  InventoryStatus = "in_progress"
	InventoryCompleted   InventoryStatus = "completed"
)

func (s InventoryStatus) Valid() bool {
	switch s {
	case InventoryPreparation, InventoryInProgress, InventoryCompleted:
		return true
	}
	return false
}

func (s *InventoryStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, (*string)(s), "inventory status", func(v string) bool { return InventoryStatus(v).Valid() })
}

// InventorySession is a physical stock count for one store.
// Counts are keyed by product; a later count for the same product replaces the earlier one.
type InventorySession struct {
	ID         uuid.UUID                  `json:"id"`
	Name       string                     `json:"name"`
	StoreID    string                     `json:"storeId"`
	Status     InventoryStatus            `json:"status"`
	StartedAt  time.Time                  `json:"startedAt"`
	AssignedTo string                     `json:"assignedTo"`
	Notes      string                     `json:"notes"`
	Counts     map[uuid.UUID]ProductCount `json:"counts"`

	// PreviewDigest fingerprints the discrepancy list last shown to the caller.
	PreviewDigest string `json:"previewDigest,omitempty"`
	// Commit is set once the commit phase starts; from then on the session
	// can only move forward to completed.
	Commit *CommitPlan `json:"commit,omitempty"`
}

// ProductCount is one physical count. Keyed uniquely by (SessionID, ProductID).
type ProductCount struct {
	SessionID       uuid.UUID `json:"sessionId"`
	ProductID       uuid.UUID `json:"productId"`
	CountedQuantity int       `json:"countedQuantity"`
	Note            string    `json:"note,omitempty"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// Discrepancy is derived at finalize time: Difference = Counted - Recorded,
// ValueImpact = Difference * unit cost.
type Discrepancy struct {
	ProductID     uuid.UUID       `json:"productId"`
	RecordedStock int             `json:"recordedStock"`
	CountedStock  int             `json:"countedStock"`
	Difference    int             `json:"difference"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	ValueImpact   decimal.Decimal `json:"valueImpact"`
}

// AdjustmentStats aggregates a discrepancy list.
type AdjustmentStats struct {
	PositiveAdjustments int             `json:"positiveAdjustments"`
	NegativeAdjustments int             `json:"negativeAdjustments"`
	TotalValueImpact    decimal.Decimal `json:"totalValueImpact"`
}

// CommitPlan freezes the discrepancies being applied so an interrupted commit
// resumes on exactly the remaining products.
type CommitPlan struct {
	Operator      string             `json:"operator"`
	StartedAt     time.Time          `json:"startedAt"`
	Discrepancies []Discrepancy      `json:"discrepancies"`
	Applied       map[uuid.UUID]bool `json:"applied"`
}

// Pending returns the planned discrepancies not yet written to stock.
func (p *CommitPlan) Pending() []Discrepancy {
	var out []Discrepancy
	for _, d := range p.Discrepancies {
		if !p.Applied[d.ProductID] {
			out = append(out, d)
		}
	}
	return out
}

// InventoryAdjustment is the audit payload of a finalized inventory session.
type InventoryAdjustment struct {
	SessionID       uuid.UUID       `json:"sessionId"`
	StoreID         string          `json:"storeId"`
	Name            string          `json:"name"`
	Operator        string          `json:"operator"`
	StartedAt       time.Time       `json:"startedAt"`
	CompletedAt     time.Time       `json:"completedAt"`
	CountedProducts int             `json:"countedProducts"`
	Accuracy        int             `json:"accuracy"`
	Discrepancies   []Discrepancy   `json:"discrepancies"`
	Stats           AdjustmentStats `json:"stats"`
	Note            string          `json:"note,omitempty"`
}
