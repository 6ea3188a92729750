package service

import (
	"context"
	"sync"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/infra"
	"github.com/dyaogo/pos-superette-sub002/internal/model"
	"github.com/dyaogo/pos-superette-sub002/internal/reconcile"
	"github.com/dyaogo/pos-superette-sub002/internal/repository"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CashService drives the cash-drawer session of one register:
// none → open → closed → none.
type CashService interface {
	Open(ctx context.Context, openingAmount decimal.Decimal, operator string) (*model.CashSession, error)
	RecordOperation(ctx context.Context, opType model.OperationType, amount decimal.Decimal, description, operator string) (*model.CashOperation, error)
	Close(ctx context.Context, actualAmount decimal.Decimal, notes, operator string) (*model.ClosingReport, error)
	// Active returns the open session, e.g. to resume after a restart.
	Active(ctx context.Context) (*model.CashSession, error)
	History(ctx context.Context) ([]model.ClosingReport, error)
}

type cashService struct {
	mu         sync.Mutex
	store      repository.SessionStore
	sales      repository.SalesLedger
	audit      AuditLog
	registerID string
}

func NewCashService(store repository.SessionStore, sales repository.SalesLedger, audit AuditLog, registerID string) CashService {
	return &cashService{store: store, sales: sales, audit: audit, registerID: registerID}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *cashService) Open(ctx context.Context, openingAmount decimal.Decimal, operator string) (*model.CashSession, error) {
	if openingAmount.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "opening amount %s", openingAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrSessionAlreadyOpen
	}

	now := time.Now().UTC()
	id := uuid.New()
	session := &model.CashSession{
		ID:            id,
		RegisterID:    s.registerID,
		OpenedAt:      now,
		OpenedBy:      operator,
		OpeningAmount: openingAmount,
		Status:        model.CashOpen,
		Operations: []model.CashOperation{{
			ID:          uuid.New(),
			SessionID:   id,
			Type:        model.OperationOpening,
			Amount:      openingAmount,
			Timestamp:   now,
			Description: "apertura de caja",
			Operator:    operator,
		}},
	}
	env := &model.ActiveSession{
		Kind:      model.KindCash,
		ScopeID:   s.registerID,
		SessionID: id,
		Cash:      session,
	}
	err = s.store.CreateActive(ctx, env)
	if errors.Is(err, repository.ErrActiveSessionExists) {
		return nil, ErrSessionAlreadyOpen
	}
	if err != nil {
		return nil, storageErr(err, "open cash session")
	}

	infra.SessionsOpened.WithLabelValues(string(model.KindCash)).Inc()
	log.Info().
		Str("session_id", id.String()).
		Str("register_id", s.registerID).
		Str("operator", operator).
		Str("opening_amount", openingAmount.String()).
		Msg("caja: session opened")
	return env.Cash, nil
}

// ── RecordOperation ───────────────────────────────────────────────────────────
// Manual in/out movements. Operations are append-only.

func (s *cashService) RecordOperation(ctx context.Context, opType model.OperationType, amount decimal.Decimal, description, operator string) (*model.CashOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, ErrNoActiveSession
	}
	if !amount.IsPositive() {
		return nil, errors.Wrapf(ErrInvalidAmount, "operation amount %s", amount)
	}
	t, ok := model.ParseManualOperationType(string(opType))
	if !ok {
		return nil, errors.Wrapf(ErrInvalidType, "operation type %q", opType)
	}

	op := model.CashOperation{
		ID:          uuid.New(),
		SessionID:   env.SessionID,
		Type:        t,
		Amount:      amount,
		Timestamp:   time.Now().UTC(),
		Description: description,
		Operator:    operator,
	}
	env.Cash.Operations = append(env.Cash.Operations, op)
	if err := s.store.PutActive(ctx, env); err != nil {
		return nil, storageErr(err, "record cash operation")
	}

	log.Info().
		Str("session_id", env.SessionID.String()).
		Str("type", string(t)).
		Str("amount", amount.String()).
		Msg("caja: operation recorded")
	return &op, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// The closed session (with its report) is persisted before the audit record is
// appended and the slot cleared; load() finishes an interrupted close.

func (s *cashService) Close(ctx context.Context, actualAmount decimal.Decimal, notes, operator string) (*model.ClosingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, ErrNoActiveSession
	}
	if actualAmount.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "actual amount %s", actualAmount)
	}

	cash := env.Cash
	sales, err := s.sales.SalesSince(ctx, cash.OpenedAt)
	if err != nil {
		return nil, storageErr(err, "load sales since opening")
	}

	totals := reconcile.ComputeCashTotals(cash.OpeningAmount, cash.Operations, sales)
	difference := actualAmount.Sub(totals.ExpectedCash)
	pct := reconcile.DifferencePct(difference, totals.ExpectedCash)

	report := &model.ClosingReport{
		SessionID:      cash.ID,
		RegisterID:     cash.RegisterID,
		OpenedAt:       cash.OpenedAt,
		ClosedAt:       time.Now().UTC(),
		OpenedBy:       cash.OpenedBy,
		ClosedBy:       operator,
		OpeningAmount:  cash.OpeningAmount,
		ExpectedAmount: totals.ExpectedCash,
		ActualAmount:   actualAmount,
		Difference:     difference,
		DifferencePct:  pct,
		VarianceLevel:  reconcile.ClassifyVariance(pct),
		Totals:         totals,
		Notes:          notes,
		Operations:     cash.Operations,
	}

	cash.Status = model.CashClosed
	cash.Report = report
	if err := s.store.PutActive(ctx, env); err != nil {
		return nil, storageErr(err, "persist closed cash session")
	}
	if err := s.archive(ctx, env); err != nil {
		return nil, err
	}

	infra.SessionsFinalized.WithLabelValues(string(model.KindCash)).Inc()
	infra.CashVariance.WithLabelValues(string(report.VarianceLevel)).Inc()
	if totals.UnclassifiedCount > 0 {
		log.Warn().
			Str("session_id", cash.ID.String()).
			Int("count", totals.UnclassifiedCount).
			Str("total", totals.Unclassified.String()).
			Msg("caja: sales without a recognised payment method")
	}
	log.Info().
		Str("session_id", cash.ID.String()).
		Str("expected", report.ExpectedAmount.String()).
		Str("actual", report.ActualAmount.String()).
		Str("difference", report.Difference.String()).
		Str("variance", string(report.VarianceLevel)).
		Msg("caja: session closed")
	return report, nil
}

// ── Active / History ──────────────────────────────────────────────────────────

func (s *cashService) Active(ctx context.Context) (*model.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, ErrNoActiveSession
	}
	return env.Cash, nil
}

func (s *cashService) History(ctx context.Context) ([]model.ClosingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx); err != nil {
		return nil, err
	}
	recs, err := s.audit.List(ctx, model.AuditCashClosing, s.registerID)
	if err != nil {
		return nil, err
	}
	reports := make([]model.ClosingReport, 0, len(recs))
	for _, r := range recs {
		if r.Closing != nil {
			reports = append(reports, *r.Closing)
		}
	}
	return reports, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// load returns the open session of this register, or nil when there is none.
// A session found already closed has its archival completed first.
func (s *cashService) load(ctx context.Context) (*model.ActiveSession, error) {
	env, err := s.store.GetActive(ctx, model.KindCash, s.registerID)
	if err != nil {
		return nil, storageErr(err, "load cash session")
	}
	if env == nil {
		return nil, nil
	}
	if env.Cash == nil {
		return nil, errors.Newf("cash slot %s holds no cash session", s.registerID)
	}
	if env.Cash.Status == model.CashClosed {
		log.Warn().Str("session_id", env.SessionID.String()).Msg("caja: completing interrupted close")
		if err := s.archive(ctx, env); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return env, nil
}

// archive appends the closing audit record and frees the slot. Both steps
// are safe to repeat.
func (s *cashService) archive(ctx context.Context, env *model.ActiveSession) error {
	report := env.Cash.Report
	if report == nil {
		return errors.Newf("closed cash session %s has no report", env.SessionID)
	}
	rec := &model.AuditRecord{
		ID:        AuditRecordID(model.AuditCashClosing, env.SessionID),
		Kind:      model.AuditCashClosing,
		SessionID: env.SessionID,
		ScopeID:   env.ScopeID,
		AppliedAt: report.ClosedAt,
		Closing:   report,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		return err
	}
	if err := s.store.ClearActive(ctx, model.KindCash, env.ScopeID); err != nil {
		return storageErr(err, "clear cash session")
	}
	return nil
}
