package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProductNotFound is returned when a product id is unknown to the store or
// the product is inactive. Inactive products are invisible to every method.
var ErrProductNotFound = errors.New("product not found")

// StockLedger is the externally owned source of truth for on-hand quantities.
// SetStock writes an absolute quantity, never a delta, so replaying it is harmless.
type StockLedger interface {
	CurrentStock(ctx context.Context, storeID string) (map[uuid.UUID]int, error)
	SetStock(ctx context.Context, storeID string, productID uuid.UUID, qty int) error
	UnitCost(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

const movimientoAjusteInventario = "ajuste_inventario"

type stockLedgerRepo struct{ db *gorm.DB }

// NewStockLedger reads and writes productos.stock_actual and records every
// change in movimientos_stock.
func NewStockLedger(db *gorm.DB) StockLedger { return &stockLedgerRepo{db: db} }

func (r *stockLedgerRepo) CurrentStock(ctx context.Context, storeID string) (map[uuid.UUID]int, error) {
	var rows []struct {
		ID          uuid.UUID
		StockActual int
	}
	err := r.db.WithContext(ctx).Model(&model.Producto{}).
		Select("id, stock_actual").
		Where("store_id = ? AND activo = true", storeID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.ID] = row.StockActual
	}
	return out, nil
}

func (r *stockLedgerRepo) SetStock(ctx context.Context, storeID string, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Producto
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND store_id = ? AND activo = true", productID, storeID).
			First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("set stock %s: %w", productID, ErrProductNotFound)
		}
		if err != nil {
			return err
		}
		if p.StockActual == qty {
			return nil
		}

		if err := tx.Model(&model.Producto{}).Where("id = ?", productID).
			Update("stock_actual", qty).Error; err != nil {
			return err
		}
		return tx.Create(&model.MovimientoStock{
			ProductoID:    productID,
			StoreID:       storeID,
			Tipo:          movimientoAjusteInventario,
			Cantidad:      qty - p.StockActual,
			StockAnterior: p.StockActual,
			StockNuevo:    qty,
			Motivo:        "conteo fisico",
		}).Error
	})
}

func (r *stockLedgerRepo) UnitCost(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).Select("id, precio_costo").First(&p, "id = ? AND activo = true", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("unit cost %s: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p.PrecioCosto, nil
}
