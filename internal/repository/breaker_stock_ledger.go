package repository

import (
	"context"
	"errors"

	"github.com/dyaogo/pos-superette-sub002/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// breakerStockLedger routes every call through a circuit breaker so a failing
// stock backend fast-fails instead of stalling each product of a commit.
type breakerStockLedger struct {
	next StockLedger
	cb   *infra.CircuitBreaker
}

// NewBreakerStockLedger wraps next with cb. While the breaker is open every
// call returns infra.ErrCircuitOpen without reaching next.
func NewBreakerStockLedger(next StockLedger, cb *infra.CircuitBreaker) StockLedger {
	return &breakerStockLedger{next: next, cb: cb}
}

func (b *breakerStockLedger) CurrentStock(ctx context.Context, storeID string) (map[uuid.UUID]int, error) {
	var out map[uuid.UUID]int
	err := b.cb.Execute(func() error {
		var err error
		out, err = b.next.CurrentStock(ctx, storeID)
		return err
	})
	return out, err
}

// An unknown product is the caller's mistake, not a backend failure, so it
// is returned without counting against the breaker.

func (b *breakerStockLedger) SetStock(ctx context.Context, storeID string, productID uuid.UUID, qty int) error {
	var notFound error
	err := b.cb.Execute(func() error {
		return holdNotFound(b.next.SetStock(ctx, storeID, productID, qty), &notFound)
	})
	if err != nil {
		return err
	}
	return notFound
}

func (b *breakerStockLedger) UnitCost(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	cost := decimal.Zero
	var notFound error
	err := b.cb.Execute(func() error {
		var err error
		cost, err = b.next.UnitCost(ctx, productID)
		return holdNotFound(err, &notFound)
	})
	if err != nil {
		return cost, err
	}
	return cost, notFound
}

func holdNotFound(err error, held *error) error {
	if errors.Is(err, ErrProductNotFound) {
		*held = err
		return nil
	}
	return err
}
