package model

import (
	"time"

	"github.com/google/uuid"
)

// MovimientoStock records every stock change applied by the inventory engine.
// Tipo is always "ajuste_inventario" for rows written here.
type MovimientoStock struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID    uuid.UUID `gorm:"type:uuid;not null;index"`
	StoreID       string    `gorm:"not null"`
	Tipo          string    `gorm:"not null"`
	Cantidad      int       `gorm:"not null"` // positive = entrada, negative = salida
	StockAnterior int       `gorm:"not null"`
	StockNuevo    int       `gorm:"not null"`
	Motivo        string
	CreatedAt     time.Time
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
