package infra

import (
	"os"
	"testing"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/config"
	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateClosingReportPDF(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	sessionID := uuid.New()
	report := &model.ClosingReport{
		SessionID:      sessionID,
		RegisterID:     "main",
		OpenedAt:       now.Add(-8 * time.Hour),
		ClosedAt:       now,
		OpenedBy:       "ana",
		ClosedBy:       "luis",
		OpeningAmount:  decimal.NewFromInt(25000),
		ExpectedAmount: decimal.NewFromInt(42000),
		ActualAmount:   decimal.NewFromInt(40000),
		Difference:     decimal.NewFromInt(-2000),
		DifferencePct:  decimal.RequireFromString("-4.76"),
		VarianceLevel:  model.VarianceWarning,
		Notes:          "faltante en el cambio",
		Totals: model.CashTotals{
			CashSales:          decimal.NewFromInt(12000),
			OtherOperationsNet: decimal.NewFromInt(5000),
			UnclassifiedCount:  1,
			Unclassified:       decimal.NewFromInt(300),
			SalesCount:         4,
		},
		Operations: []model.CashOperation{{
			ID:          uuid.New(),
			SessionID:   sessionID,
			Type:        model.OperationIn,
			Amount:      decimal.NewFromInt(5000),
			Timestamp:   now.Add(-time.Hour),
			Description: "refuerzo de cambio",
			Operator:    "ana",
		}},
	}

	path, err := GenerateClosingReportPDF(report, dir)
	require.NoError(t, err)
	assert.Contains(t, path, sessionID.String())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestGenerateAdjustmentXLSX(t *testing.T) {
	dir := t.TempDir()
	productID := uuid.New()
	adj := &model.InventoryAdjustment{
		SessionID:       uuid.New(),
		StoreID:         "store-1",
		Name:            "Inventario mensual",
		Operator:        "luis",
		StartedAt:       time.Now().Add(-time.Hour),
		CompletedAt:     time.Now(),
		CountedProducts: 2,
		Accuracy:        50,
		Discrepancies: []model.Discrepancy{{
			ProductID:     productID,
			RecordedStock: 10,
			CountedStock:  7,
			Difference:    -3,
			UnitCost:      decimal.NewFromInt(150),
			ValueImpact:   decimal.NewFromInt(-450),
		}},
		Stats: model.AdjustmentStats{NegativeAdjustments: 1, TotalValueImpact: decimal.NewFromInt(-450)},
	}

	path, err := GenerateAdjustmentXLSX(adj, dir)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(adjustmentSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "producto_id", rows[0][0])
	assert.Equal(t, productID.String(), rows[1][0])
	assert.Equal(t, "-3", rows[1][3])

	name, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Inventario mensual", name)
}

func TestMailer_DisabledWithoutHost(t *testing.T) {
	m := NewMailer(&config.Config{SMTPPort: 587})
	assert.False(t, m.Enabled())
	assert.Error(t, m.SendReport("a@example.com", "s", "b", ""))
}
