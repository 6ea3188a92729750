package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is the row shape of the externally owned product catalog.
// Only the columns the stock ledger reads or writes are mapped.
type Producto struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID      string          `gorm:"not null;index"`
	CodigoBarras string          `gorm:"not null"`
	Nombre       string          `gorm:"index;not null"`
	PrecioCosto  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	StockActual  int             `gorm:"not null;default:0"`
	Activo       bool            `gorm:"not null;default:true"`
	UpdatedAt    time.Time
}
