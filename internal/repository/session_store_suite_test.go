package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
	"github.com/dyaogo/pos-superette-sub002/internal/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// runSessionStoreSuite checks the SessionStore contract. Every implementation
// (memory, Postgres, Redis) runs the same cases.
func runSessionStoreSuite(t *testing.T, newStore func(t *testing.T) repository.SessionStore) {
	t.Run("GetActiveEmpty", func(t *testing.T) {
		store := newStore(t)
		got, err := store.GetActive(context.Background(), model.KindCash, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CreateActiveOnce", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()

		first := cashEnvelope(scope)
		require.NoError(t, store.CreateActive(ctx, first))
		assert.Equal(t, int64(1), first.Version)

		err := store.CreateActive(ctx, cashEnvelope(scope))
		assert.ErrorIs(t, err, repository.ErrActiveSessionExists)

		// Same scope, other kind: independent slot.
		inv := inventoryEnvelope(scope)
		require.NoError(t, store.CreateActive(ctx, inv))
	})

	t.Run("CreateActiveConcurrent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := store.CreateActive(ctx, cashEnvelope(scope)); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("PutActiveRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()

		env := cashEnvelope(scope)
		require.NoError(t, store.CreateActive(ctx, env))

		env.Cash.Operations = append(env.Cash.Operations, model.CashOperation{
			ID:        uuid.New(),
			SessionID: env.SessionID,
			Type:      model.OperationIn,
			Amount:    decimal.RequireFromString("5000.05"),
			Timestamp: time.Now().UTC().Truncate(time.Microsecond),
			Operator:  "ana",
		})
		require.NoError(t, store.PutActive(ctx, env))
		assert.Equal(t, int64(2), env.Version)

		got, err := store.GetActive(ctx, model.KindCash, scope)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.Version)
		if diff := cmp.Diff(env.Cash, got.Cash, decimalEqual); diff != "" {
			t.Errorf("cash session mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("PutActiveStale", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()

		env := cashEnvelope(scope)
		require.NoError(t, store.CreateActive(ctx, env))

		other, err := store.GetActive(ctx, model.KindCash, scope)
		require.NoError(t, err)
		require.NoError(t, store.PutActive(ctx, other))

		env.Cash.OpenedBy = "intruder"
		assert.ErrorIs(t, store.PutActive(ctx, env), repository.ErrStaleSession)
		assert.Equal(t, int64(1), env.Version)

		got, err := store.GetActive(ctx, model.KindCash, scope)
		require.NoError(t, err)
		assert.Equal(t, "ana", got.Cash.OpenedBy)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("PutActiveOtherSession", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()

		require.NoError(t, store.CreateActive(ctx, cashEnvelope(scope)))
		foreign := cashEnvelope(scope)
		foreign.Version = 1
		assert.ErrorIs(t, store.PutActive(ctx, foreign), repository.ErrStaleSession)
	})

	t.Run("PutActiveAfterClear", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()

		env := cashEnvelope(scope)
		require.NoError(t, store.CreateActive(ctx, env))
		require.NoError(t, store.ClearActive(ctx, model.KindCash, scope))

		assert.ErrorIs(t, store.PutActive(ctx, env), repository.ErrActiveSessionNotFound)
		got, err := store.GetActive(ctx, model.KindCash, scope)
		require.NoError(t, err)
		assert.Nil(t, got)

		// Slot is reusable.
		require.NoError(t, store.CreateActive(ctx, cashEnvelope(scope)))
	})

	t.Run("AuditAppendOnly", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		scope := uuid.NewString()
		base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

		second := closingAudit(scope, base.Add(time.Hour))
		first := closingAudit(scope, base)
		require.NoError(t, store.AppendAudit(ctx, second))
		require.NoError(t, store.AppendAudit(ctx, first))
		assert.ErrorIs(t, store.AppendAudit(ctx, first), repository.ErrAuditExists)

		inv := &model.AuditRecord{
			ID:        uuid.New(),
			Kind:      model.AuditInventoryAdjustment,
			SessionID: uuid.New(),
			ScopeID:   scope,
			AppliedAt: base,
			Adjustment: &model.InventoryAdjustment{
				StoreID:  scope,
				Accuracy: 100,
				Stats:    model.AdjustmentStats{TotalValueImpact: decimal.Zero},
			},
		}
		require.NoError(t, store.AppendAudit(ctx, inv))

		got, err := store.ListAudits(ctx, model.AuditCashClosing, scope)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)
		if diff := cmp.Diff(first.Closing, got[0].Closing, decimalEqual); diff != "" {
			t.Errorf("closing report mismatch (-want +got):\n%s", diff)
		}

		other, err := store.ListAudits(ctx, model.AuditCashClosing, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func cashEnvelope(scope string) *model.ActiveSession {
	id := uuid.New()
	opened := time.Now().UTC().Truncate(time.Microsecond)
	return &model.ActiveSession{
		Kind:      model.KindCash,
		ScopeID:   scope,
		SessionID: id,
		Cash: &model.CashSession{
			ID:            id,
			RegisterID:    scope,
			OpenedAt:      opened,
			OpenedBy:      "ana",
			OpeningAmount: decimal.RequireFromString("25000.10"),
			Status:        model.CashOpen,
			Operations: []model.CashOperation{{
				ID:        uuid.New(),
				SessionID: id,
				Type:      model.OperationOpening,
				Amount:    decimal.RequireFromString("25000.10"),
				Timestamp: opened,
				Operator:  "ana",
			}},
		},
	}
}

func inventoryEnvelope(scope string) *model.ActiveSession {
	id := uuid.New()
	return &model.ActiveSession{
		Kind:      model.KindInventory,
		ScopeID:   scope,
		SessionID: id,
		Inventory: &model.InventorySession{
			ID:        id,
			Name:      "Conteo mensual",
			StoreID:   scope,
			Status:    model.InventoryInProgress,
			StartedAt: time.Now().UTC(),
			Counts:    map[uuid.UUID]model.ProductCount{},
		},
	}
}

func closingAudit(scope string, at time.Time) *model.AuditRecord {
	sessionID := uuid.New()
	return &model.AuditRecord{
		ID:        uuid.New(),
		Kind:      model.AuditCashClosing,
		SessionID: sessionID,
		ScopeID:   scope,
		AppliedAt: at,
		Closing: &model.ClosingReport{
			SessionID:      sessionID,
			RegisterID:     scope,
			OpenedAt:       at.Add(-8 * time.Hour),
			ClosedAt:       at,
			OpeningAmount:  decimal.RequireFromString("100"),
			ExpectedAmount: decimal.RequireFromString("140.33"),
			ActualAmount:   decimal.RequireFromString("140.30"),
			Difference:     decimal.RequireFromString("-0.03"),
			DifferencePct:  decimal.RequireFromString("-0.02"),
			VarianceLevel:  model.VarianceNormal,
			Totals: model.CashTotals{
				CashSales:          decimal.RequireFromString("40.33"),
				CardSales:          decimal.Zero,
				CreditSales:        decimal.Zero,
				Unclassified:       decimal.Zero,
				OtherOperationsNet: decimal.Zero,
				ExpectedCash:       decimal.RequireFromString("140.33"),
			},
			Operations: []model.CashOperation{},
		},
	}
}
