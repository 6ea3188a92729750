package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod: "cash" | "card" | "credit". Anything else is unclassified.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentCredit PaymentMethod = "credit"
)

// ParsePaymentMethod reports whether tag names a known payment method.
func ParsePaymentMethod(tag string) (PaymentMethod, bool) {
	switch m := PaymentMethod(tag); m {
	case PaymentCash, PaymentCard, PaymentCredit:
		return m, true
	}
	return "", false
}

// Sale is the read-only view the sales ledger hands to cash reconciliation.
// PaymentMethod is the raw tag; it is empty when the tag was missing or not a string.
type Sale struct {
	ID            uuid.UUID       `json:"id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Items         []SaleItem      `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type SaleItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// UnmarshalJSON tolerates a non-string paymentMethod (number, object, null)
// by leaving the tag empty so the sale is reported as unclassified.
func (s *Sale) UnmarshalJSON(b []byte) error {
	type plain Sale
	var in struct {
		plain
		PaymentMethod json.RawMessage `json:"paymentMethod"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = Sale(in.plain)
	s.PaymentMethod = ""
	var tag string
	if len(in.PaymentMethod) > 0 && json.Unmarshal(in.PaymentMethod, &tag) == nil {
		s.PaymentMethod = tag
	}
	return nil
}

// Venta is the row shape of the externally owned sales table.
type Venta struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroTicket int             `gorm:"not null"`
	StoreID      string          `gorm:"not null;index"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// MetodoPago is nullable in legacy rows.
	MetodoPago *string   `gorm:"type:varchar(20)"`
	Estado     string    `gorm:"type:varchar(20);not null;default:'completada'"`
	CreatedAt  time.Time `gorm:"index"`

	Items []VentaItem `gorm:"foreignKey:VentaID"`
}

type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}
