package infra

// pdf.go: closing report rendering using go-pdf/fpdf.
// One A4 page per closed cash session with:
//   - Register and shift header
//   - Expected cash breakdown by payment method
//   - Counted cash, difference and variance level
//   - Manual operations table
//
// The output file is saved to storagePath/cierre_{session}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateClosingReportPDF renders a ClosingReport.
// storagePath is the directory where the PDF will be written (created if needed).
// Returns the path to the generated file.
func GenerateClosingReportPDF(report *model.ClosingReport, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("cierre_%s.pdf", report.SessionID)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Cierre de Caja", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Caja "+report.RegisterID, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// ── Shift info ───────────────────────────────────────────────────────────
	half := contentW / 2
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(half, 5, "Apertura: "+report.OpenedAt.Format("02/01/2006 15:04"), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, "Por: "+report.OpenedBy, "", 1, "L", false, 0, "")
	pdf.CellFormat(half, 5, "Cierre: "+report.ClosedAt.Format("02/01/2006 15:04"), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, "Por: "+report.ClosedBy, "", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	// ── Expected cash ────────────────────────────────────────────────────────
	label := contentW * 0.7
	value := contentW * 0.3
	row := func(name string, amount decimal.Decimal) {
		pdf.CellFormat(label, 6, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(value, 6, "$"+amount.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 7, "Efectivo esperado", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	row("Fondo inicial", report.OpeningAmount)
	row(fmt.Sprintf("Ventas en efectivo (%d ventas en total)", report.Totals.SalesCount), report.Totals.CashSales)
	row("Ingresos / egresos manuales", report.Totals.OtherOperationsNet)
	pdf.SetFont("Helvetica", "B", 9)
	row("Total esperado", report.ExpectedAmount)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 8)
	row("Ventas con tarjeta (informativo)", report.Totals.CardSales)
	row("Ventas a credito (informativo)", report.Totals.CreditSales)
	if report.Totals.UnclassifiedCount > 0 {
		row(fmt.Sprintf("Sin clasificar (%d)", report.Totals.UnclassifiedCount), report.Totals.Unclassified)
	}
	pdf.Ln(3)

	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(3)

	// ── Result ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 10)
	row("Efectivo contado", report.ActualAmount)
	pdf.SetFont("Helvetica", "B", 11)
	row("Diferencia", report.Difference)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(label, 6, "Desvio", "", 0, "L", false, 0, "")
	pdf.CellFormat(value, 6, fmt.Sprintf("%s%% (%s)", report.DifferencePct.StringFixed(2), report.VarianceLevel), "", 1, "R", false, 0, "")

	if report.Notes != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, "Notas: "+report.Notes, "", "L", false)
	}

	// ── Operations ───────────────────────────────────────────────────────────
	pdf.Ln(4)
	col1 := contentW * 0.18 // time
	col2 := contentW * 0.14 // type
	col3 := contentW * 0.38 // description
	col4 := contentW * 0.12 // operator
	col5 := contentW * 0.18 // amount

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(col1, 6, "Hora", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Tipo", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "Descripcion", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 6, "Operador", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col5, 6, "Monto", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for _, op := range report.Operations {
		desc := op.Description
		if len(desc) > 48 {
			desc = desc[:47] + "."
		}
		pdf.CellFormat(col1, 5, op.Timestamp.Format("15:04:05"), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, string(op.Type), "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, desc, "", 0, "L", false, 0, "")
		pdf.CellFormat(col4, 5, op.Operator, "", 0, "L", false, 0, "")
		pdf.CellFormat(col5, 5, "$"+op.Amount.StringFixed(2), "", 1, "R", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
