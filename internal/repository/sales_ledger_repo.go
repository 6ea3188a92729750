package repository

import (
	"context"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"gorm.io/gorm"
)

// SalesLedger exposes completed sales to cash reconciliation. Read-only.
type SalesLedger interface {
	SalesSince(ctx context.Context, since time.Time) ([]model.Sale, error)
}

type salesLedgerRepo struct{ db *gorm.DB }

func NewSalesLedger(db *gorm.DB) SalesLedger { return &salesLedgerRepo{db: db} }

func (r *salesLedgerRepo) SalesSince(ctx context.Context, since time.Time) ([]model.Sale, error) {
	var ventas []model.Venta
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("created_at >= ? AND estado = ?", since, "completada").
		Order("created_at ASC").
		Find(&ventas).Error
	if err != nil {
		return nil, err
	}

	sales := make([]model.Sale, 0, len(ventas))
	for _, v := range ventas {
		s := model.Sale{ID: v.ID, Total: v.Total, CreatedAt: v.CreatedAt}
		if v.MetodoPago != nil {
			s.PaymentMethod = *v.MetodoPago
		}
		for _, it := range v.Items {
			s.Items = append(s.Items, model.SaleItem{
				ProductID: it.ProductoID,
				Quantity:  it.Cantidad,
				UnitPrice: it.PrecioUnitario,
			})
		}
		sales = append(sales, s)
	}
	return sales, nil
}
