// Package reconcile holds the pure arithmetic shared by cash closing and
// inventory finalization. Nothing here performs I/O.
package reconcile

import (
	"context"
	"sort"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ── Cash ──────────────────────────────────────────────────────────────────────

// ComputeCashTotals derives the expected drawer content.
// Sales are bucketed by payment-method tag; a missing or unknown tag goes to
// Unclassified and is never counted as cash. Opening operations are excluded
// from OtherOperationsNet because openingAmount already carries them.
func ComputeCashTotals(openingAmount decimal.Decimal, operations []model.CashOperation, sales []model.Sale) model.CashTotals {
	t := model.CashTotals{
		CashSales:          decimal.Zero,
		CardSales:          decimal.Zero,
		CreditSales:        decimal.Zero,
		Unclassified:       decimal.Zero,
		OtherOperationsNet: decimal.Zero,
		SalesCount:         len(sales),
	}

	for _, s := range sales {
		method, ok := model.ParsePaymentMethod(s.PaymentMethod)
		if !ok {
			t.Unclassified = t.Unclassified.Add(s.Total)
			t.UnclassifiedCount++
			continue
		}
		switch method {
		case model.PaymentCash:
			t.CashSales = t.CashSales.Add(s.Total)
		case model.PaymentCard:
			t.CardSales = t.CardSales.Add(s.Total)
		case model.PaymentCredit:
			t.CreditSales = t.CreditSales.Add(s.Total)
		}
	}

	for _, op := range operations {
		switch op.Type {
		case model.OperationIn:
			t.OtherOperationsNet = t.OtherOperationsNet.Add(op.Amount)
		case model.OperationOut:
			t.OtherOperationsNet = t.OtherOperationsNet.Sub(op.Amount)
		}
	}

	t.ExpectedCash = openingAmount.Add(t.CashSales).Add(t.OtherOperationsNet)
	return t
}

// DifferencePct returns difference / expected * 100 rounded to two places,
// computed from the unrounded amounts. Zero expected yields zero.
func DifferencePct(difference, expected decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		return decimal.Zero
	}
	return difference.Div(expected).Mul(hundred).Round(2)
}

// ClassifyVariance: normal |pct| <= 1, warning <= 5, critical above.
func ClassifyVariance(pct decimal.Decimal) model.VarianceLevel {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return model.VarianceNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return model.VarianceWarning
	default:
		return model.VarianceCritical
	}
}

// ── Inventory ─────────────────────────────────────────────────────────────────

// CostLookup resolves a product's unit cost for value-impact math.
type CostLookup func(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)

// ComputeInventoryDiscrepancies compares counted quantities with recorded stock.
// Only products present in counts are considered; a counted product missing
// from recordedStock is treated as recorded 0. Costs are looked up only for
// products that differ. The result is ordered by product id.
func ComputeInventoryDiscrepancies(
	ctx context.Context,
	recordedStock map[uuid.UUID]int,
	counts map[uuid.UUID]model.ProductCount,
	costLookup CostLookup,
) ([]model.Discrepancy, error) {
	ids := make([]uuid.UUID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := make([]model.Discrepancy, 0)
	for _, id := range ids {
		counted := counts[id].CountedQuantity
		recorded := recordedStock[id]
		if counted == recorded {
			continue
		}
		cost, err := costLookup(ctx, id)
		if err != nil {
			return nil, err
		}
		diff := counted - recorded
		out = append(out, model.Discrepancy{
			ProductID:     id,
			RecordedStock: recorded,
			CountedStock:  counted,
			Difference:    diff,
			UnitCost:      cost,
			ValueImpact:   cost.Mul(decimal.NewFromInt(int64(diff))),
		})
	}
	return out, nil
}

// Accuracy is the share of counted products without a discrepancy, rounded
// to a whole percent. No discrepancies (including nothing counted) is 100.
func Accuracy(counted, discrepancies int) int {
	if discrepancies == 0 || counted == 0 {
		return 100
	}
	return int(decimal.NewFromInt(int64(counted - discrepancies)).
		Div(decimal.NewFromInt(int64(counted))).
		Mul(hundred).
		Round(0).
		IntPart())
}

// SummarizeAdjustments aggregates a discrepancy list.
func SummarizeAdjustments(discrepancies []model.Discrepancy) model.AdjustmentStats {
	stats := model.AdjustmentStats{TotalValueImpact: decimal.Zero}
	for _, d := range discrepancies {
		switch {
		case d.Difference > 0:
			stats.PositiveAdjustments++
		case d.Difference < 0:
			stats.NegativeAdjustments++
		}
		stats.TotalValueImpact = stats.TotalValueImpact.Add(d.ValueImpact)
	}
	return stats
}
