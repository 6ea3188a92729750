package worker

// report_worker.go
// Processes report jobs from QueueReportes. Each finalized session gets one
// rendered document: a PDF for cash closings, an XLSX for inventory
// adjustments. When a recipient is configured an email job follows.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyaogo/pos-superette-sub002/internal/infra"
	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/rs/zerolog/log"
)

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ReportWorker struct {
	storagePath string
	emailTo     string
	emails      EmailEnqueuer
}

// NewReportWorker wires the report renderer. emailTo may be empty to skip mailing.
func NewReportWorker(storagePath, emailTo string, emails EmailEnqueuer) *ReportWorker {
	return &ReportWorker{storagePath: storagePath, emailTo: emailTo, emails: emails}
}

// Process renders the document for one audit record and optionally enqueues it for mailing.
func (w *ReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReportJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Record == nil {
		log.Error().Err(err).Msg("report_worker: invalid payload")
		return nil
	}
	rec := payload.Record
	if (rec.Kind == model.AuditCashClosing && rec.Closing == nil) ||
		(rec.Kind == model.AuditInventoryAdjustment && rec.Adjustment == nil) {
		log.Error().Str("audit_id", rec.ID.String()).Msg("report_worker: record without body")
		return nil
	}

	var (
		path    string
		subject string
		body    string
		err     error
	)
	switch rec.Kind {
	case model.AuditCashClosing:
		path, err = infra.GenerateClosingReportPDF(rec.Closing, w.storagePath)
		subject = fmt.Sprintf("Cierre de caja %s (%s)", rec.Closing.RegisterID, rec.Closing.ClosedAt.Format("02/01/2006"))
		body = fmt.Sprintf("Esperado: $%s\nContado: $%s\nDiferencia: $%s (%s)",
			rec.Closing.ExpectedAmount.StringFixed(2),
			rec.Closing.ActualAmount.StringFixed(2),
			rec.Closing.Difference.StringFixed(2),
			rec.Closing.VarianceLevel)
	case model.AuditInventoryAdjustment:
		path, err = infra.GenerateAdjustmentXLSX(rec.Adjustment, w.storagePath)
		subject = fmt.Sprintf("Inventario %s (%s)", rec.Adjustment.Name, rec.Adjustment.StoreID)
		body = fmt.Sprintf("Productos contados: %d\nPrecision: %d%%\nImpacto total: $%s",
			rec.Adjustment.CountedProducts,
			rec.Adjustment.Accuracy,
			rec.Adjustment.Stats.TotalValueImpact.StringFixed(2))
	default:
		log.Error().Str("kind", string(rec.Kind)).Msg("report_worker: unknown audit kind")
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("audit_id", rec.ID.String()).Msg("report_worker: render failed")
		return err
	}
	log.Info().Str("path", path).Str("session_id", rec.SessionID.String()).Msg("report_worker: report generated")

	if w.emailTo == "" || w.emails == nil {
		return nil
	}
	job := EmailJobPayload{ToEmail: w.emailTo, Subject: subject, Body: body, AttachmentPath: path}
	if err := w.emails.EnqueueEmail(ctx, job); err != nil {
		// The file exists; a retry would only re-render it.
		log.Warn().Err(err).Str("to", w.emailTo).Msg("report_worker: failed to enqueue email")
	}
	return nil
}
