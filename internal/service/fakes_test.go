package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
	"github.com/dyaogo/pos-superette-sub002/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Sales ledger ─────────────────────────────────────────────────────────────

type fakeSales struct {
	mu    sync.Mutex
	sales []model.Sale
	err   error
	since []time.Time
}

var _ repository.SalesLedger = (*fakeSales)(nil)

func (f *fakeSales) add(total, method string) {
	f.addAt(total, method, time.Now().UTC())
}

func (f *fakeSales) addAt(total, method string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, model.Sale{
		ID:            uuid.New(),
		Total:         decimal.RequireFromString(total),
		PaymentMethod: method,
		CreatedAt:     at,
	})
}

func (f *fakeSales) SalesSince(_ context.Context, since time.Time) ([]model.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Sale
	for _, s := range f.sales {
		if !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ── Stock ledger ─────────────────────────────────────────────────────────────

type setStockCall struct {
	StoreID   string
	ProductID uuid.UUID
	Qty       int
}

type fakeStock struct {
	mu      sync.Mutex
	stock   map[uuid.UUID]int
	cost    map[uuid.UUID]decimal.Decimal
	failSet map[uuid.UUID]error
	readErr error
	calls   []setStockCall
}

var _ repository.StockLedger = (*fakeStock)(nil)

func newFakeStock() *fakeStock {
	return &fakeStock{
		stock:   make(map[uuid.UUID]int),
		cost:    make(map[uuid.UUID]decimal.Decimal),
		failSet: make(map[uuid.UUID]error),
	}
}

func (f *fakeStock) put(id uuid.UUID, qty int, cost string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[id] = qty
	f.cost[id] = decimal.RequireFromString(cost)
}

func (f *fakeStock) setCalls() []setStockCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]setStockCall(nil), f.calls...)
}

func (f *fakeStock) CurrentStock(context.Context, string) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make(map[uuid.UUID]int, len(f.stock))
	for k, v := range f.stock {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStock) SetStock(_ context.Context, storeID string, productID uuid.UUID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failSet[productID]; err != nil {
		return err
	}
	f.calls = append(f.calls, setStockCall{StoreID: storeID, ProductID: productID, Qty: qty})
	f.stock[productID] = qty
	return nil
}

func (f *fakeStock) UnitCost(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cost[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("unit cost %s: %w", productID, repository.ErrProductNotFound)
	}
	return c, nil
}

// ── Session store with failure injection ─────────────────────────────────────

var errStoreDown = errors.New("store down")

type flakyStore struct {
	repository.SessionStore

	mu          sync.Mutex
	failAppend  int // number of upcoming AppendAudit calls that fail
	failPut     int
	putCalls    int
	appendCalls int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{SessionStore: repository.NewMemorySessionStore()}
}

func (f *flakyStore) PutActive(ctx context.Context, s *model.ActiveSession) error {
	f.mu.Lock()
	f.putCalls++
	fail := f.failPut > 0
	if fail {
		f.failPut--
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.SessionStore.PutActive(ctx, s)
}

func (f *flakyStore) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	f.mu.Lock()
	f.appendCalls++
	fail := f.failAppend > 0
	if fail {
		f.failAppend--
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.SessionStore.AppendAudit(ctx, rec)
}

func (f *flakyStore) puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}

// ── Report enqueuer ──────────────────────────────────────────────────────────

type recordingEnqueuer struct {
	mu   sync.Mutex
	recs []model.AuditRecord
	err  error
}

func (r *recordingEnqueuer) EnqueueReport(_ context.Context, rec *model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, *rec)
	return r.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
