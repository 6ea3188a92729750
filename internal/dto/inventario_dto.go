package dto

import (
	"sort"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
	"github.com/dyaogo/pos-superette-sub002/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// StoreID may be omitted when the token carries a store_id claim.

type IniciarInventarioRequest struct {
	Nombre    string `json:"nombre"     validate:"required,max=120"`
	StoreID   string `json:"store_id"   validate:"omitempty,max=64"`
	AsignadoA string `json:"asignado_a" validate:"max=120"`
	Notas     string `json:"notas"      validate:"max=1000"`
}

type ConteoRequest struct {
	StoreID    string `json:"store_id"    validate:"omitempty,max=64"`
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   *int   `json:"cantidad"    validate:"required,min=0"`
	Nota       string `json:"nota"        validate:"max=255"`
}

type InventarioScopeRequest struct {
	StoreID string `json:"store_id" validate:"omitempty,max=64"`
}

type CommitInventarioRequest struct {
	StoreID string `json:"store_id" validate:"omitempty,max=64"`
	Digest  string `json:"digest"   validate:"required,len=64,hexadecimal"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ConteoResponse struct {
	ProductoID   string `json:"producto_id"`
	Cantidad     int    `json:"cantidad"`
	Nota         string `json:"nota,omitempty"`
	RegistradoEn string `json:"registrado_en"`
}

type SesionInventarioResponse struct {
	ID             string           `json:"id"`
	Nombre         string           `json:"nombre"`
	StoreID        string           `json:"store_id"`
	Estado         string           `json:"estado"`
	IniciadaEn     string           `json:"iniciada_en"`
	AsignadoA      string           `json:"asignado_a"`
	Notas          string           `json:"notas"`
	Conteos        []ConteoResponse `json:"conteos"`
	CommitIniciado bool             `json:"commit_iniciado"`
}

type DiscrepanciaResponse struct {
	ProductoID      string          `json:"producto_id"`
	StockRegistrado int             `json:"stock_registrado"`
	StockContado    int             `json:"stock_contado"`
	Diferencia      int             `json:"diferencia"`
	CostoUnitario   decimal.Decimal `json:"costo_unitario"`
	Impacto         decimal.Decimal `json:"impacto"`
}

type EstadisticasAjusteResponse struct {
	AjustesPositivos int             `json:"ajustes_positivos"`
	AjustesNegativos int             `json:"ajustes_negativos"`
	ImpactoTotal     decimal.Decimal `json:"impacto_total"`
}

type PreviewInventarioResponse struct {
	SesionID          string                     `json:"sesion_id"`
	StoreID           string                     `json:"store_id"`
	ProductosContados int                        `json:"productos_contados"`
	Precision         int                        `json:"precision"`
	Discrepancias     []DiscrepanciaResponse     `json:"discrepancias"`
	Estadisticas      EstadisticasAjusteResponse `json:"estadisticas"`
	Digest            string                     `json:"digest"`
	CommitIniciado    bool                       `json:"commit_iniciado"`
	Aplicados         []string                   `json:"aplicados,omitempty"`
}

type AjusteInventarioResponse struct {
	SesionID          string                     `json:"sesion_id"`
	StoreID           string                     `json:"store_id"`
	Nombre            string                     `json:"nombre"`
	Operador          string                     `json:"operador"`
	IniciadaEn        string                     `json:"iniciada_en"`
	CompletadaEn      string                     `json:"completada_en"`
	ProductosContados int                        `json:"productos_contados"`
	Precision         int                        `json:"precision"`
	Discrepancias     []DiscrepanciaResponse     `json:"discrepancias"`
	Estadisticas      EstadisticasAjusteResponse `json:"estadisticas"`
	Nota              string                     `json:"nota,omitempty"`
}

// ConfirmacionRequeridaResponse is returned by the one-shot finalize when the
// count has discrepancies that must be confirmed through the commit endpoint.
type ConfirmacionRequeridaResponse struct {
	Code    string                    `json:"code"`
	Detail  string                    `json:"detail"`
	Preview PreviewInventarioResponse `json:"preview"`
}

// CommitParcialResponse reports an interrupted commit; retrying with the same
// digest applies only Pendientes.
type CommitParcialResponse struct {
	Code       string   `json:"code"`
	Detail     string   `json:"detail"`
	SesionID   string   `json:"sesion_id"`
	Aplicados  []string `json:"aplicados"`
	Pendientes []string `json:"pendientes"`
}

// ─── Mapping ─────────────────────────────────────────────────────────────────

func NewConteoResponse(c model.ProductCount) ConteoResponse {
	return ConteoResponse{
		ProductoID:   c.ProductID.String(),
		Cantidad:     c.CountedQuantity,
		Nota:         c.Note,
		RegistradoEn: fmtTime(c.RecordedAt),
	}
}

// NewSesionInventarioResponse lists counts oldest first.
func NewSesionInventarioResponse(s *model.InventorySession) SesionInventarioResponse {
	counts := make([]model.ProductCount, 0, len(s.Counts))
	for _, c := range s.Counts {
		counts = append(counts, c)
	}
	sort.Slice(counts, func(i, j int) bool {
		if !counts[i].RecordedAt.Equal(counts[j].RecordedAt) {
			return counts[i].RecordedAt.Before(counts[j].RecordedAt)
		}
		return counts[i].ProductID.String() < counts[j].ProductID.String()
	})
	conteos := make([]ConteoResponse, 0, len(counts))
	for _, c := range counts {
		conteos = append(conteos, NewConteoResponse(c))
	}
	return SesionInventarioResponse{
		ID:             s.ID.String(),
		Nombre:         s.Name,
		StoreID:        s.StoreID,
		Estado:         string(s.Status),
		IniciadaEn:     fmtTime(s.StartedAt),
		AsignadoA:      s.AssignedTo,
		Notas:          s.Notes,
		Conteos:        conteos,
		CommitIniciado: s.Commit != nil,
	}
}

func newDiscrepancias(ds []model.Discrepancy) []DiscrepanciaResponse {
	out := make([]DiscrepanciaResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, DiscrepanciaResponse{
			ProductoID:      d.ProductID.String(),
			StockRegistrado: d.RecordedStock,
			StockContado:    d.CountedStock,
			Diferencia:      d.Difference,
			CostoUnitario:   d.UnitCost,
			Impacto:         d.ValueImpact,
		})
	}
	return out
}

func newEstadisticas(s model.AdjustmentStats) EstadisticasAjusteResponse {
	return EstadisticasAjusteResponse{
		AjustesPositivos: s.PositiveAdjustments,
		AjustesNegativos: s.NegativeAdjustments,
		ImpactoTotal:     s.TotalValueImpact,
	}
}

func NewPreviewInventarioResponse(p *service.FinalizePreview) PreviewInventarioResponse {
	return PreviewInventarioResponse{
		SesionID:          p.SessionID.String(),
		StoreID:           p.StoreID,
		ProductosContados: p.CountedProducts,
		Precision:         p.Accuracy,
		Discrepancias:     newDiscrepancias(p.Discrepancies),
		Estadisticas:      newEstadisticas(p.Stats),
		Digest:            p.Digest,
		CommitIniciado:    p.CommitStarted,
		Aplicados:         UUIDStrings(p.Applied),
	}
}

func NewAjusteInventarioResponse(a *model.InventoryAdjustment) AjusteInventarioResponse {
	return AjusteInventarioResponse{
		SesionID:          a.SessionID.String(),
		StoreID:           a.StoreID,
		Nombre:            a.Name,
		Operador:          a.Operator,
		IniciadaEn:        fmtTime(a.StartedAt),
		CompletadaEn:      fmtTime(a.CompletedAt),
		ProductosContados: a.CountedProducts,
		Precision:         a.Accuracy,
		Discrepancias:     newDiscrepancias(a.Discrepancies),
		Estadisticas:      newEstadisticas(a.Stats),
		Nota:              a.Note,
	}
}

func UUIDStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
