package dto

import (
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"min=0"`
}

type MovimientoCajaRequest struct {
	Tipo        string          `json:"tipo"        validate:"required,oneof=in out"`
	Monto       decimal.Decimal `json:"monto"       validate:"gt=0"`
	Descripcion string          `json:"descripcion" validate:"max=255"`
}

type CerrarCajaRequest struct {
	MontoContado decimal.Decimal `json:"monto_contado" validate:"min=0"`
	Notas        string          `json:"notas"         validate:"max=1000"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OperacionCajaResponse struct {
	ID          string          `json:"id"`
	Tipo        string          `json:"tipo"`
	Monto       decimal.Decimal `json:"monto"`
	Descripcion string          `json:"descripcion"`
	Operador    string          `json:"operador"`
	Timestamp   string          `json:"timestamp"`
}

type SesionCajaResponse struct {
	ID           string                  `json:"id"`
	CajaID       string                  `json:"caja_id"`
	Estado       string                  `json:"estado"`
	MontoInicial decimal.Decimal         `json:"monto_inicial"`
	AbiertaPor   string                  `json:"abierta_por"`
	AbiertaEn    string                  `json:"abierta_en"`
	Operaciones  []OperacionCajaResponse `json:"operaciones"`
}

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | warning | critical
}

type TotalesCajaResponse struct {
	VentasEfectivo        decimal.Decimal `json:"ventas_efectivo"`
	VentasTarjeta         decimal.Decimal `json:"ventas_tarjeta"`
	VentasCredito         decimal.Decimal `json:"ventas_credito"`
	SinClasificar         decimal.Decimal `json:"sin_clasificar"`
	CantidadSinClasificar int             `json:"cantidad_sin_clasificar"`
	OtrosMovimientos      decimal.Decimal `json:"otros_movimientos"`
	CantidadVentas        int             `json:"cantidad_ventas"`
}

type ReporteCierreResponse struct {
	SesionID      string                  `json:"sesion_id"`
	CajaID        string                  `json:"caja_id"`
	AbiertaEn     string                  `json:"abierta_en"`
	CerradaEn     string                  `json:"cerrada_en"`
	AbiertaPor    string                  `json:"abierta_por"`
	CerradaPor    string                  `json:"cerrada_por"`
	MontoInicial  decimal.Decimal         `json:"monto_inicial"`
	MontoEsperado decimal.Decimal         `json:"monto_esperado"`
	MontoContado  decimal.Decimal         `json:"monto_contado"`
	Desvio        DesvioResponse          `json:"desvio"`
	Totales       TotalesCajaResponse     `json:"totales"`
	Notas         string                  `json:"notas"`
	Operaciones   []OperacionCajaResponse `json:"operaciones"`
}

// ─── Mapping ─────────────────────────────────────────────────────────────────

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func NewOperacionCajaResponse(op model.CashOperation) OperacionCajaResponse {
	return OperacionCajaResponse{
		ID:          op.ID.String(),
		Tipo:        string(op.Type),
		Monto:       op.Amount,
		Descripcion: op.Description,
		Operador:    op.Operator,
		Timestamp:   fmtTime(op.Timestamp),
	}
}

func newOperaciones(ops []model.CashOperation) []OperacionCajaResponse {
	out := make([]OperacionCajaResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, NewOperacionCajaResponse(op))
	}
	return out
}

func NewSesionCajaResponse(s *model.CashSession) SesionCajaResponse {
	return SesionCajaResponse{
		ID:           s.ID.String(),
		CajaID:       s.RegisterID,
		Estado:       string(s.Status),
		MontoInicial: s.OpeningAmount,
		AbiertaPor:   s.OpenedBy,
		AbiertaEn:    fmtTime(s.OpenedAt),
		Operaciones:  newOperaciones(s.Operations),
	}
}

func NewReporteCierreResponse(r *model.ClosingReport) ReporteCierreResponse {
	return ReporteCierreResponse{
		SesionID:      r.SessionID.String(),
		CajaID:        r.RegisterID,
		AbiertaEn:     fmtTime(r.OpenedAt),
		CerradaEn:     fmtTime(r.ClosedAt),
		AbiertaPor:    r.OpenedBy,
		CerradaPor:    r.ClosedBy,
		MontoInicial:  r.OpeningAmount,
		MontoEsperado: r.ExpectedAmount,
		MontoContado:  r.ActualAmount,
		Desvio: DesvioResponse{
			Monto:         r.Difference,
			Porcentaje:    r.DifferencePct,
			Clasificacion: string(r.VarianceLevel),
		},
		Totales: TotalesCajaResponse{
			VentasEfectivo:        r.Totals.CashSales,
			VentasTarjeta:         r.Totals.CardSales,
			VentasCredito:         r.Totals.CreditSales,
			SinClasificar:         r.Totals.Unclassified,
			CantidadSinClasificar: r.Totals.UnclassifiedCount,
			OtrosMovimientos:      r.Totals.OtherOperationsNet,
			CantidadVentas:        r.Totals.SalesCount,
		},
		Notas:       r.Notes,
		Operaciones: newOperaciones(r.Operations),
	}
}
