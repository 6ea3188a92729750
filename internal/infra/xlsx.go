package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	adjustmentSheet = "Ajustes"
	summarySheet    = "Resumen"
)

// GenerateAdjustmentXLSX writes an inventory adjustment as a workbook with a
// summary sheet and one row per discrepancy. Returns the file path.
func GenerateAdjustmentXLSX(adj *model.InventoryAdjustment, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("xlsx: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("inventario_%s.xlsx", adj.SessionID))

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), summarySheet); err != nil {
		return "", fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Inventario", adj.Name},
		{"Sucursal", adj.StoreID},
		{"Operador", adj.Operator},
		{"Inicio", adj.StartedAt.Format("2006-01-02 15:04")},
		{"Fin", adj.CompletedAt.Format("2006-01-02 15:04")},
		{"Productos contados", adj.CountedProducts},
		{"Precision (%)", adj.Accuracy},
		{"Ajustes positivos", adj.Stats.PositiveAdjustments},
		{"Ajustes negativos", adj.Stats.NegativeAdjustments},
		{"Impacto total", adj.Stats.TotalValueImpact.InexactFloat64()},
	}
	if adj.Note != "" {
		summary = append(summary, []interface{}{"Nota", adj.Note})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return "", err
	}

	if _, err := f.NewSheet(adjustmentSheet); err != nil {
		return "", fmt.Errorf("xlsx: new sheet: %w", err)
	}
	rows := [][]interface{}{{
		"producto_id",
		"stock_registrado",
		"stock_contado",
		"diferencia",
		"costo_unitario",
		"impacto",
	}}
	for _, d := range adj.Discrepancies {
		rows = append(rows, []interface{}{
			d.ProductID.String(),
			d.RecordedStock,
			d.CountedStock,
			d.Difference,
			d.UnitCost.InexactFloat64(),
			d.ValueImpact.InexactFloat64(),
		})
	}
	if err := writeRows(f, adjustmentSheet, rows); err != nil {
		return "", err
	}

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("xlsx: write file: %w", err)
	}
	return filePath, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
