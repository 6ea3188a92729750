package reconcile_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
	"github.com/dyaogo/pos-superette-sub002/internal/reconcile"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func op(t model.OperationType, amount string) model.CashOperation {
	return model.CashOperation{ID: uuid.New(), Type: t, Amount: dec(amount), Timestamp: time.Now()}
}

func sale(total, method string) model.Sale {
	return model.Sale{ID: uuid.New(), Total: dec(total), PaymentMethod: method}
}

func TestComputeCashTotals_Scenario(t *testing.T) {
	ops := []model.CashOperation{
		op(model.OperationOpening, "25000"),
		op(model.OperationIn, "5000"),
	}
	sales := []model.Sale{sale("7000", "cash"), sale("5000", "cash")}

	totals := reconcile.ComputeCashTotals(dec("25000"), ops, sales)

	assert.Equal(t, "12000", totals.CashSales.String())
	assert.Equal(t, "5000", totals.OtherOperationsNet.String())
	assert.Equal(t, "42000", totals.ExpectedCash.String())
	assert.Equal(t, 2, totals.SalesCount)
}

func TestComputeCashTotals_BucketsByPaymentMethod(t *testing.T) {
	sales := []model.Sale{
		sale("100.10", "cash"),
		sale("200.20", "card"),
		sale("300.30", "credit"),
		sale("40", ""),
		sale("50", "transfer"),
	}
	totals := reconcile.ComputeCashTotals(dec("1000"), nil, sales)

	assert.True(t, totals.CashSales.Equal(dec("100.10")))
	assert.True(t, totals.CardSales.Equal(dec("200.20")))
	assert.True(t, totals.CreditSales.Equal(dec("300.30")))
	assert.True(t, totals.Unclassified.Equal(dec("90")))
	assert.Equal(t, 2, totals.UnclassifiedCount)
	assert.True(t, totals.ExpectedCash.Equal(dec("1100.10")))
}

func TestComputeCashTotals_UnclassifiedNeverFoldsIntoCash(t *testing.T) {
	// No sale carries a valid tag: nothing may be attributed to cash.
	sales := []model.Sale{sale("500", ""), sale("700", "")}
	totals := reconcile.ComputeCashTotals(dec("100"), nil, sales)

	assert.True(t, totals.CashSales.IsZero())
	assert.True(t, totals.Unclassified.Equal(dec("1200")))
	assert.True(t, totals.ExpectedCash.Equal(dec("100")))
}

func TestComputeCashTotals_OutSubtractsAndOpeningIgnored(t *testing.T) {
	ops := []model.CashOperation{
		op(model.OperationOpening, "999"),
		op(model.OperationIn, "10"),
		op(model.OperationOut, "25.50"),
	}
	totals := reconcile.ComputeCashTotals(dec("999"), ops, nil)
	assert.True(t, totals.OtherOperationsNet.Equal(dec("-15.50")))
	assert.True(t, totals.ExpectedCash.Equal(dec("983.50")))
}

func TestComputeCashTotals_OrderIndependentAndExact(t *testing.T) {
	var ops []model.CashOperation
	in, out := decimal.Zero, decimal.Zero
	for i := 0; i < 500; i++ {
		amount := decimal.New(int64(i%97+1), -2) // 0.01 .. 0.97
		if i%3 == 0 {
			ops = append(ops, model.CashOperation{Type: model.OperationOut, Amount: amount})
			out = out.Add(amount)
		} else {
			ops = append(ops, model.CashOperation{Type: model.OperationIn, Amount: amount})
			in = in.Add(amount)
		}
	}
	sales := []model.Sale{sale("0.10", "cash"), sale("0.20", "cash")}
	want := dec("250").Add(dec("0.30")).Add(in).Sub(out)

	base := reconcile.ComputeCashTotals(dec("250"), ops, sales)
	require.True(t, base.ExpectedCash.Equal(want), "got %s want %s", base.ExpectedCash, want)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		shuffled := append([]model.CashOperation(nil), ops...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := reconcile.ComputeCashTotals(dec("250"), shuffled, sales)
		assert.True(t, got.ExpectedCash.Equal(base.ExpectedCash))
	}
}

func TestDifferencePctAndClassification(t *testing.T) {
	assert.True(t, reconcile.DifferencePct(dec("-2000"), dec("42000")).Equal(dec("-4.76")))
	assert.True(t, reconcile.DifferencePct(dec("10"), decimal.Zero).IsZero())

	assert.Equal(t, model.VarianceNormal, reconcile.ClassifyVariance(dec("-1")))
	assert.Equal(t, model.VarianceWarning, reconcile.ClassifyVariance(dec("-4.76")))
	assert.Equal(t, model.VarianceWarning, reconcile.ClassifyVariance(dec("5")))
	assert.Equal(t, model.VarianceCritical, reconcile.ClassifyVariance(dec("5.01")))
}

// ── Inventory ─────────────────────────────────────────────────────────────────

func fixedCost(cost string) reconcile.CostLookup {
	return func(context.Context, uuid.UUID) (decimal.Decimal, error) { return dec(cost), nil }
}

func counts(entries map[uuid.UUID]int) map[uuid.UUID]model.ProductCount {
	out := make(map[uuid.UUID]model.ProductCount, len(entries))
	for id, q := range entries {
		out[id] = model.ProductCount{ProductID: id, CountedQuantity: q}
	}
	return out
}

func TestComputeInventoryDiscrepancies_Scenario(t *testing.T) {
	p := uuid.New()
	got, err := reconcile.ComputeInventoryDiscrepancies(context.Background(),
		map[uuid.UUID]int{p: 10}, counts(map[uuid.UUID]int{p: 7}), fixedCost("500"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -3, got[0].Difference)
	assert.Equal(t, "-1500", got[0].ValueImpact.String())
}

func TestComputeInventoryDiscrepancies_ExcludesUncountedAndMatching(t *testing.T) {
	recorded := make(map[uuid.UUID]int)
	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		id := uuid.New()
		ids = append(ids, id)
		recorded[id] = 5
	}
	// Count 3 of 10: one matches, two differ.
	c := counts(map[uuid.UUID]int{ids[0]: 5, ids[1]: 6, ids[2]: 0})

	got, err := reconcile.ComputeInventoryDiscrepancies(context.Background(), recorded, c, fixedCost("2"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 3)
	assert.Len(t, got, 2)
	for _, d := range got {
		assert.NotEqual(t, ids[0], d.ProductID)
	}
}

func TestComputeInventoryDiscrepancies_MissingRecordedIsZero(t *testing.T) {
	p := uuid.New()
	got, err := reconcile.ComputeInventoryDiscrepancies(context.Background(),
		map[uuid.UUID]int{}, counts(map[uuid.UUID]int{p: 4}), fixedCost("1.25"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].RecordedStock)
	assert.Equal(t, 4, got[0].Difference)
	assert.True(t, got[0].ValueImpact.Equal(dec("5")))
}

func TestComputeInventoryDiscrepancies_CostOnlyForDifferences(t *testing.T) {
	same, diff := uuid.New(), uuid.New()
	var looked []uuid.UUID
	lookup := func(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
		looked = append(looked, id)
		return dec("1"), nil
	}
	_, err := reconcile.ComputeInventoryDiscrepancies(context.Background(),
		map[uuid.UUID]int{same: 3, diff: 3}, counts(map[uuid.UUID]int{same: 3, diff: 1}), lookup)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{diff}, looked)
}

func TestComputeInventoryDiscrepancies_PropagatesCostError(t *testing.T) {
	p := uuid.New()
	boom := errors.New("cost table unavailable")
	_, err := reconcile.ComputeInventoryDiscrepancies(context.Background(),
		map[uuid.UUID]int{p: 1}, counts(map[uuid.UUID]int{p: 2}),
		func(context.Context, uuid.UUID) (decimal.Decimal, error) { return decimal.Zero, boom })
	assert.ErrorIs(t, err, boom)
}

func TestComputeInventoryDiscrepancies_StableOrder(t *testing.T) {
	recorded := map[uuid.UUID]int{}
	entries := map[uuid.UUID]int{}
	for i := 0; i < 20; i++ {
		id := uuid.New()
		recorded[id] = 1
		entries[id] = 2
	}
	a, err := reconcile.ComputeInventoryDiscrepancies(context.Background(), recorded, counts(entries), fixedCost("1"))
	require.NoError(t, err)
	b, err := reconcile.ComputeInventoryDiscrepancies(context.Background(), recorded, counts(entries), fixedCost("1"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.Digest(a), reconcile.Digest(b))
	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1].ProductID.String(), a[i].ProductID.String())
	}
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 100, reconcile.Accuracy(0, 0))
	assert.Equal(t, 100, reconcile.Accuracy(12, 0))
	assert.Equal(t, 67, reconcile.Accuracy(3, 1)) // 66.67 rounds up
	assert.Equal(t, 0, reconcile.Accuracy(4, 4))
	assert.Equal(t, 83, reconcile.Accuracy(6, 1)) // 83.33
}

func TestSummarizeAdjustments(t *testing.T) {
	stats := reconcile.SummarizeAdjustments([]model.Discrepancy{
		{Difference: -3, ValueImpact: dec("-1500")},
		{Difference: 2, ValueImpact: dec("40.50")},
		{Difference: 1, ValueImpact: dec("9.50")},
	})
	assert.Equal(t, 2, stats.PositiveAdjustments)
	assert.Equal(t, 1, stats.NegativeAdjustments)
	assert.True(t, stats.TotalValueImpact.Equal(dec("-1450")))
}

func TestDigest_ChangesWithContent(t *testing.T) {
	p := uuid.New()
	a := []model.Discrepancy{{ProductID: p, RecordedStock: 10, CountedStock: 7, ValueImpact: dec("-3")}}
	b := []model.Discrepancy{{ProductID: p, RecordedStock: 9, CountedStock: 7, ValueImpact: dec("-2")}}
	assert.NotEqual(t, reconcile.Digest(a), reconcile.Digest(b))
	assert.Equal(t, reconcile.Digest(nil), reconcile.Digest([]model.Discrepancy{}))
}
