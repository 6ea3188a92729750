package service

import (
	"context"
	"sort"
	"strings"
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

// StartInventoryInput carries the fields of a new count.
type StartInventoryInput struct {
	Name       string
	AssignedTo string
	Notes      string
	StoreID    string
}

// FinalizePreview is what the operator must see before stock is touched.
// Digest has to be echoed back to CommitFinalize.
type FinalizePreview struct {
	SessionID       uuid.UUID
	StoreID         string
	CountedProducts int
	Accuracy        int
	Discrepancies   []model.Discrepancy
	Stats           model.AdjustmentStats
	Digest          string
	// CommitStarted is true when the list is the frozen plan of an
	// interrupted commit; Applied then lists products already written.
	CommitStarted bool
	Applied       []uuid.UUID
}

// InventoryService drives physical stock counts, one in progress per store.
type InventoryService interface {
	Start(ctx context.Context, in StartInventoryInput) (*model.InventorySession, error)
	RecordCount(ctx context.Context, storeID string, productID uuid.UUID, qty int, note string) (*model.ProductCount, error)
	// StageCount buffers a count in memory; Flush persists the buffer in one write.
	StageCount(ctx context.Context, storeID string, productID uuid.UUID, qty int, note string) error
	Flush(ctx context.Context, storeID string) (int, error)
	FlushAll(ctx context.Context) error
	PreviewFinalize(ctx context.Context, storeID string) (*FinalizePreview, error)
	CommitFinalize(ctx context.Context, storeID, operator, digest string) (*model.InventoryAdjustment, error)
	// Finalize completes a session without discrepancies in one call; otherwise
	// it returns the preview together with ErrConfirmationRequired.
	Finalize(ctx context.Context, storeID, operator string) (*model.InventoryAdjustment, *FinalizePreview, error)
	Discard(ctx context.Context, storeID string) error
	Active(ctx context.Context, storeID string) (*model.InventorySession, error)
	History(ctx context.Context, storeID string) ([]model.InventoryAdjustment, error)
}

type inventoryService struct {
	mu     sync.Mutex
	store  repository.SessionStore
	stock  repository.StockLedger
	audit  AuditLog
	drafts map[string]map[uuid.UUID]model.ProductCount
}

func NewInventoryService(store repository.SessionStore, stock repository.StockLedger, audit AuditLog) InventoryService {
	return &inventoryService{
		store:  store,
		stock:  stock,
		audit:  audit,
		drafts: make(map[string]map[uuid.UUID]model.ProductCount),
	}
}

// ── Start ─────────────────────────────────────────────────────────────────────
// The session leaves preparation as soon as it is stored, so it is persisted
// directly as in progress. Nothing is snapshotted: recorded stock is read when
// the count is finalized.

func (s *inventoryService) Start(ctx context.Context, in StartInventoryInput) (*model.InventorySession, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.Wrap(ErrInvalidSession, "name is required")
	}
	storeID := strings.TrimSpace(in.StoreID)
	if storeID == "" {
		return nil, errors.Wrap(ErrInvalidSession, "store id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	session := &model.InventorySession{
		ID:         id,
		Name:       name,
		StoreID:    storeID,
		Status:     model.InventoryInProgress,
		StartedAt:  time.Now().UTC(),
		AssignedTo: in.AssignedTo,
		Notes:      in.Notes,
		Counts:     make(map[uuid.UUID]model.ProductCount),
	}

	env := &model.ActiveSession{
		Kind:      model.KindInventory,
		ScopeID:   storeID,
		SessionID: id,
		Inventory: session,
	}
	err := s.store.CreateActive(ctx, env)
	if errors.Is(err, repository.ErrActiveSessionExists) {
		return nil, ErrSessionAlreadyActive
	}
	if err != nil {
		return nil, storageErr(err, "start inventory session")
	}
	delete(s.drafts, storeID)

	infra.SessionsOpened.WithLabelValues(string(model.KindInventory)).Inc()
	log.Info().
		Str("session_id", id.String()).
		Str("store_id", storeID).
		Str("name", name).
		Str("assigned_to", in.AssignedTo).
		Msg("inventario: session started")
	return env.Inventory, nil
}

// ── Counts ────────────────────────────────────────────────────────────────────

func (s *inventoryService) RecordCount(ctx context.Context, storeID string, productID uuid.UUID, qty int, note string) (*model.ProductCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.requireActive(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "counted quantity %d", qty)
	}
	if env.Inventory.Commit != nil {
		return nil, ErrCommitInProgress
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}

	count := model.ProductCount{
		SessionID:       env.SessionID,
		ProductID:       productID,
		CountedQuantity: qty,
		Note:            note,
		RecordedAt:      time.Now().UTC(),
	}
	env.Inventory.Counts[productID] = count
	if err := s.store.PutActive(ctx, env); err != nil {
		return nil, storageErr(err, "record product count")
	}
	// A durable count supersedes any staged one for the same product.
	if d := s.drafts[storeID]; d != nil {
		delete(d, productID)
	}

	log.Debug().
		Str("session_id", env.SessionID.String()).
		Str("product_id", productID.String()).
		Int("qty", qty).
		Msg("inventario: count recorded")
	return &count, nil
}

// StageCount buffers a count in memory until the next flush. It is validated
// like RecordCount so a count accepted here is never lost at flush time.
func (s *inventoryService) StageCount(ctx context.Context, storeID string, productID uuid.UUID, qty int, note string) error {
	if qty < 0 {
		return errors.Wrapf(ErrInvalidQuantity, "counted quantity %d", qty)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.requireActive(ctx, storeID)
	if err != nil {
		return err
	}
	if env.Inventory.Commit != nil {
		return ErrCommitInProgress
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return err
	}

	d := s.drafts[storeID]
	if d == nil {
		d = make(map[uuid.UUID]model.ProductCount)
		s.drafts[storeID] = d
	}
	d[productID] = model.ProductCount{
		ProductID:       productID,
		CountedQuantity: qty,
		Note:            note,
		RecordedAt:      time.Now().UTC(),
	}
	return nil
}

func (s *inventoryService) Flush(ctx context.Context, storeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx, storeID)
}

func (s *inventoryService) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stores := make([]string, 0, len(s.drafts))
	for id := range s.drafts {
		stores = append(stores, id)
	}
	sort.Strings(stores)

	var firstErr error
	for _, storeID := range stores {
		_, err := s.flushLocked(ctx, storeID)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrCommitInProgress):
			log.Warn().Err(err).Str("store_id", storeID).Msg("inventario: staged counts dropped")
		default:
			log.Error().Err(err).Str("store_id", storeID).Msg("inventario: flush failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// flushLocked persists staged counts of storeID in one write. On a storage
// error the buffer is kept for the next attempt.
func (s *inventoryService) flushLocked(ctx context.Context, storeID string) (int, error) {
	staged := s.drafts[storeID]
	if len(staged) == 0 {
		return 0, nil
	}

	env, err := s.requireActive(ctx, storeID)
	if errors.Is(err, ErrNoActiveSession) {
		delete(s.drafts, storeID)
		return 0, err
	}
	if err != nil {
		return 0, err
	}
	if env.Inventory.Commit != nil {
		delete(s.drafts, storeID)
		return 0, ErrCommitInProgress
	}

	for id, c := range staged {
		c.SessionID = env.SessionID
		env.Inventory.Counts[id] = c
	}
	if err := s.store.PutActive(ctx, env); err != nil {
		return 0, storageErr(err, "flush staged counts")
	}
	delete(s.drafts, storeID)

	infra.DraftCountsFlushed.Add(float64(len(staged)))
	log.Debug().Str("store_id", storeID).Int("counts", len(staged)).Msg("inventario: staged counts flushed")
	return len(staged), nil
}

// ── PreviewFinalize ───────────────────────────────────────────────────────────

func (s *inventoryService) PreviewFinalize(ctx context.Context, storeID string) (*FinalizePreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.prepareFinalize(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if env.Inventory.Commit != nil {
		return planPreview(env), nil
	}
	return s.computePreview(ctx, env)
}

// ── CommitFinalize ────────────────────────────────────────────────────────────
// Applies a previewed discrepancy list. The list is frozen into a CommitPlan
// before the first SetStock; from then on the session can only be completed.

func (s *inventoryService) CommitFinalize(ctx context.Context, storeID, operator, digest string) (*model.InventoryAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.prepareFinalize(ctx, storeID)
	if err != nil {
		return nil, err
	}
	inv := env.Inventory

	if inv.Commit == nil {
		if inv.PreviewDigest == "" || digest != inv.PreviewDigest {
			return nil, errors.Wrap(ErrConfirmationRequired, "no matching preview")
		}
		discrepancies, err := s.discrepancies(ctx, env)
		if err != nil {
			return nil, err
		}
		if reconcile.Digest(discrepancies) != digest {
			return nil, errors.Wrap(ErrConfirmationRequired, "stock or counts changed since preview")
		}
		inv.Commit = &model.CommitPlan{
			Operator:      operator,
			StartedAt:     time.Now().UTC(),
			Discrepancies: discrepancies,
			Applied:       make(map[uuid.UUID]bool),
		}
		if err := s.store.PutActive(ctx, env); err != nil {
			return nil, storageErr(err, "freeze commit plan")
		}
		log.Info().
			Str("session_id", env.SessionID.String()).
			Int("discrepancies", len(discrepancies)).
			Str("operator", operator).
			Msg("inventario: commit started")
	} else if digest != reconcile.Digest(inv.Commit.Discrepancies) {
		return nil, errors.Wrap(ErrConfirmationRequired, "digest does not match the commit in progress")
	}

	if err := s.applyPlan(ctx, env); err != nil {
		return nil, err
	}
	return s.complete(ctx, env, inv.Commit.Operator, inv.Commit.Discrepancies)
}

// applyPlan writes every pending adjustment. Products are independent: one
// failure does not stop the others, but ctx cancellation does.
func (s *inventoryService) applyPlan(ctx context.Context, env *model.ActiveSession) error {
	plan := env.Inventory.Commit
	if plan.Applied == nil {
		plan.Applied = make(map[uuid.UUID]bool)
	}

	var cause error
	progressed := false
	for _, d := range plan.Pending() {
		if err := ctx.Err(); err != nil {
			cause = err
			break
		}
		if err := s.stock.SetStock(ctx, env.ScopeID, d.ProductID, d.CountedStock); err != nil {
			infra.StockAdjustments.WithLabelValues("error").Inc()
			log.Error().Err(err).
				Str("session_id", env.SessionID.String()).
				Str("product_id", d.ProductID.String()).
				Msg("inventario: set stock failed")
			if cause == nil {
				cause = storageErr(err, "set stock")
			}
			continue
		}
		infra.StockAdjustments.WithLabelValues("ok").Inc()
		plan.Applied[d.ProductID] = true
		progressed = true
	}

	if progressed {
		if err := s.store.PutActive(ctx, env); err != nil && cause == nil {
			// SetStock is absolute, so a lost Applied map only means rewriting
			// the same quantities on retry.
			cause = storageErr(err, "persist commit progress")
		}
	}
	if cause == nil {
		return nil
	}

	pe := &PartialCommitError{SessionID: env.SessionID, Cause: cause}
	for _, d := range plan.Discrepancies {
		if plan.Applied[d.ProductID] {
			pe.Applied = append(pe.Applied, d.ProductID)
		} else {
			pe.Pending = append(pe.Pending, d.ProductID)
		}
	}
	infra.PartialCommits.Inc()
	log.Warn().
		Str("session_id", env.SessionID.String()).
		Int("applied", len(pe.Applied)).
		Int("pending", len(pe.Pending)).
		Msg("inventario: commit interrupted")
	return pe
}

// ── Finalize ──────────────────────────────────────────────────────────────────

func (s *inventoryService) Finalize(ctx context.Context, storeID, operator string) (*model.InventoryAdjustment, *FinalizePreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.prepareFinalize(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}
	if env.Inventory.Commit != nil {
		return nil, planPreview(env), errors.Wrap(ErrConfirmationRequired, "a commit is in progress")
	}

	preview, err := s.computePreview(ctx, env)
	if err != nil {
		return nil, nil, err
	}
	if len(preview.Discrepancies) > 0 {
		return nil, preview, ErrConfirmationRequired
	}

	adj, err := s.complete(ctx, env, operator, nil)
	if err != nil {
		return nil, nil, err
	}
	return adj, preview, nil
}

// ── Discard ───────────────────────────────────────────────────────────────────

func (s *inventoryService) Discard(ctx context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, storeID)
	env, err := s.requireActive(ctx, storeID)
	if err != nil {
		return err
	}
	if env.Inventory.Commit != nil {
		return ErrCommitInProgress
	}
	if err := s.store.ClearActive(ctx, model.KindInventory, storeID); err != nil {
		return storageErr(err, "discard inventory session")
	}
	log.Info().Str("session_id", env.SessionID.String()).Str("store_id", storeID).Msg("inventario: session discarded")
	return nil
}

// ── Active / History ──────────────────────────────────────────────────────────

// Active returns the session with staged (not yet flushed) counts merged in.
func (s *inventoryService) Active(ctx context.Context, storeID string) (*model.InventorySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.requireActive(ctx, storeID)
	if err != nil {
		return nil, err
	}
	for id, c := range s.drafts[storeID] {
		c.SessionID = env.SessionID
		env.Inventory.Counts[id] = c
	}
	return env.Inventory, nil
}

func (s *inventoryService) History(ctx context.Context, storeID string) ([]model.InventoryAdjustment, error) {
	recs, err := s.audit.List(ctx, model.AuditInventoryAdjustment, storeID)
	if err != nil {
		return nil, err
	}
	out := make([]model.InventoryAdjustment, 0, len(recs))
	for _, r := range recs {
		if r.Adjustment != nil {
			out = append(out, *r.Adjustment)
		}
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *inventoryService) requireActive(ctx context.Context, storeID string) (*model.ActiveSession, error) {
	env, err := s.store.GetActive(ctx, model.KindInventory, storeID)
	if err != nil {
		return nil, storageErr(err, "load inventory session")
	}
	if env == nil || env.Inventory == nil || env.Inventory.Status != model.InventoryInProgress {
		return nil, ErrNoActiveSession
	}
	if env.Inventory.Counts == nil {
		env.Inventory.Counts = make(map[uuid.UUID]model.ProductCount)
	}
	return env, nil
}

// requireProduct rejects counts for products the stock ledger does not know.
func (s *inventoryService) requireProduct(ctx context.Context, productID uuid.UUID) error {
	_, err := s.stock.UnitCost(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return errors.Wrapf(ErrUnknownProduct, "product %s", productID)
	}
	if err != nil {
		return storageErr(err, "look up product")
	}
	return nil
}

// prepareFinalize flushes staged counts and loads the session.
func (s *inventoryService) prepareFinalize(ctx context.Context, storeID string) (*model.ActiveSession, error) {
	if _, err := s.flushLocked(ctx, storeID); err != nil &&
		!errors.Is(err, ErrNoActiveSession) && !errors.Is(err, ErrCommitInProgress) {
		return nil, err
	}
	return s.requireActive(ctx, storeID)
}

func (s *inventoryService) discrepancies(ctx context.Context, env *model.ActiveSession) ([]model.Discrepancy, error) {
	recorded, err := s.stock.CurrentStock(ctx, env.ScopeID)
	if err != nil {
		return nil, storageErr(err, "read current stock")
	}
	cost := func(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
		v, err := s.stock.UnitCost(ctx, id)
		if errors.Is(err, repository.ErrProductNotFound) {
			return v, errors.Wrapf(ErrUnknownProduct, "counted product %s", id)
		}
		if err != nil {
			return v, storageErr(err, "read unit cost")
		}
		return v, nil
	}
	return reconcile.ComputeInventoryDiscrepancies(ctx, recorded, env.Inventory.Counts, cost)
}

// computePreview derives the discrepancy list and remembers its digest.
func (s *inventoryService) computePreview(ctx context.Context, env *model.ActiveSession) (*FinalizePreview, error) {
	discrepancies, err := s.discrepancies(ctx, env)
	if err != nil {
		return nil, err
	}
	digest := reconcile.Digest(discrepancies)
	if env.Inventory.PreviewDigest != digest {
		env.Inventory.PreviewDigest = digest
		if err := s.store.PutActive(ctx, env); err != nil {
			return nil, storageErr(err, "persist preview digest")
		}
	}
	counted := len(env.Inventory.Counts)
	return &FinalizePreview{
		SessionID:       env.SessionID,
		StoreID:         env.ScopeID,
		CountedProducts: counted,
		Accuracy:        reconcile.Accuracy(counted, len(discrepancies)),
		Discrepancies:   discrepancies,
		Stats:           reconcile.SummarizeAdjustments(discrepancies),
		Digest:          digest,
	}, nil
}

func planPreview(env *model.ActiveSession) *FinalizePreview {
	plan := env.Inventory.Commit
	counted := len(env.Inventory.Counts)
	p := &FinalizePreview{
		SessionID:       env.SessionID,
		StoreID:         env.ScopeID,
		CountedProducts: counted,
		Accuracy:        reconcile.Accuracy(counted, len(plan.Discrepancies)),
		Discrepancies:   plan.Discrepancies,
		Stats:           reconcile.SummarizeAdjustments(plan.Discrepancies),
		Digest:          reconcile.Digest(plan.Discrepancies),
		CommitStarted:   true,
	}
	for _, d := range plan.Discrepancies {
		if plan.Applied[d.ProductID] {
			p.Applied = append(p.Applied, d.ProductID)
		}
	}
	return p
}

// complete writes the adjustment audit record and frees the slot. Retrying
// after a failure here is safe: the record id is derived from the session.
func (s *inventoryService) complete(ctx context.Context, env *model.ActiveSession, operator string, discrepancies []model.Discrepancy) (*model.InventoryAdjustment, error) {
	inv := env.Inventory
	if discrepancies == nil {
		discrepancies = []model.Discrepancy{}
	}
	counted := len(inv.Counts)
	adj := &model.InventoryAdjustment{
		SessionID:       inv.ID,
		StoreID:         inv.StoreID,
		Name:            inv.Name,
		Operator:        operator,
		StartedAt:       inv.StartedAt,
		CompletedAt:     time.Now().UTC(),
		CountedProducts: counted,
		Accuracy:        reconcile.Accuracy(counted, len(discrepancies)),
		Discrepancies:   discrepancies,
		Stats:           reconcile.SummarizeAdjustments(discrepancies),
	}
	if len(discrepancies) == 0 {
		adj.Note = "sin diferencias"
	}

	rec := &model.AuditRecord{
		ID:         AuditRecordID(model.AuditInventoryAdjustment, inv.ID),
		Kind:       model.AuditInventoryAdjustment,
		SessionID:  inv.ID,
		ScopeID:    inv.StoreID,
		AppliedAt:  adj.CompletedAt,
		Adjustment: adj,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.store.ClearActive(ctx, model.KindInventory, inv.StoreID); err != nil {
		return nil, storageErr(err, "clear inventory session")
	}
	inv.Status = model.InventoryCompleted

	infra.SessionsFinalized.WithLabelValues(string(model.KindInventory)).Inc()
	log.Info().
		Str("session_id", inv.ID.String()).
		Str("store_id", inv.StoreID).
		Int("counted", counted).
		Int("discrepancies", len(discrepancies)).
		Str("value_impact", adj.Stats.TotalValueImpact.String()).
		Msg("inventario: session completed")
	return adj, nil
}
