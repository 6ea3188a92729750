package handler

import (
	"net/http"

	"github.com/dyaogo/pos-superette-sub002/internal/apierror"
	"github.com/dyaogo/pos-superette-sub002/internal/dto"
	"github.com/dyaogo/pos-superette-sub002/internal/middleware"
	"github.com/dyaogo/pos-superette-sub002/internal/service"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventarioHandler struct{ svc service.InventoryService }

func NewInventarioHandler(svc service.InventoryService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// IniciarSesion godoc
// @Summary Inicia un conteo fisico para una sucursal
// @Tags inventario
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.IniciarInventarioRequest true "Datos del conteo"
// @Success 201 {object} dto.SesionInventarioResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/inventario/sesiones [post]
func (h *InventarioHandler) IniciarSesion(c *gin.Context) {
	var req dto.IniciarInventarioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	assigned := req.AsignadoA
	if assigned == "" {
		assigned = middleware.Operator(c)
	}
	session, err := h.svc.Start(c.Request.Context(), service.StartInventoryInput{
		Name:       req.Nombre,
		AssignedTo: assigned,
		Notes:      req.Notas,
		StoreID:    storeID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewSesionInventarioResponse(session))
}

func (h *InventarioHandler) SesionActiva(c *gin.Context) {
	storeID, ok := storeScope(c, "")
	if !ok {
		return
	}
	session, err := h.svc.Active(c.Request.Context(), storeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSesionInventarioResponse(session))
}

// RegistrarConteo persists one count before answering.
func (h *InventarioHandler) RegistrarConteo(c *gin.Context) {
	var req dto.ConteoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	productID, _ := uuid.Parse(req.ProductoID)
	count, err := h.svc.RecordCount(c.Request.Context(), storeID, productID, *req.Cantidad, req.Nota)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewConteoResponse(*count))
}

// BorradorConteo stages a count in memory; it becomes durable on the next flush.
func (h *InventarioHandler) BorradorConteo(c *gin.Context) {
	var req dto.ConteoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	productID, _ := uuid.Parse(req.ProductoID)
	if err := h.svc.StageCount(c.Request.Context(), storeID, productID, *req.Cantidad, req.Nota); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *InventarioHandler) Flush(c *gin.Context) {
	var req dto.InventarioScopeRequest
	if !bindOptional(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	n, err := h.svc.Flush(c.Request.Context(), storeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"persistidos": n})
}

// PreviewFinalizar returns the discrepancy list and the digest that must be
// echoed back to CommitFinalizar.
func (h *InventarioHandler) PreviewFinalizar(c *gin.Context) {
	var req dto.InventarioScopeRequest
	if !bindOptional(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	preview, err := h.svc.PreviewFinalize(c.Request.Context(), storeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPreviewInventarioResponse(preview))
}

func (h *InventarioHandler) CommitFinalizar(c *gin.Context) {
	var req dto.CommitInventarioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	adj, err := h.svc.CommitFinalize(c.Request.Context(), storeID, middleware.Operator(c), req.Digest)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAjusteInventarioResponse(adj))
}

// Finalizar completes a count without discrepancies in one call. With
// discrepancies it answers 409 with the preview to confirm.
func (h *InventarioHandler) Finalizar(c *gin.Context) {
	var req dto.InventarioScopeRequest
	if !bindOptional(c, &req) {
		return
	}
	storeID, ok := storeScope(c, req.StoreID)
	if !ok {
		return
	}
	adj, preview, err := h.svc.Finalize(c.Request.Context(), storeID, middleware.Operator(c))
	if errors.Is(err, service.ErrConfirmationRequired) && preview != nil {
		c.JSON(http.StatusConflict, dto.ConfirmacionRequeridaResponse{
			Code:    apierror.CodeConfirmationRequired,
			Detail:  "Hay diferencias de stock; confirme con /inventario/finalizar/commit",
			Preview: dto.NewPreviewInventarioResponse(preview),
		})
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAjusteInventarioResponse(adj))
}

func (h *InventarioHandler) Descartar(c *gin.Context) {
	storeID, ok := storeScope(c, "")
	if !ok {
		return
	}
	if err := h.svc.Discard(c.Request.Context(), storeID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InventarioHandler) Historial(c *gin.Context) {
	storeID, ok := storeScope(c, "")
	if !ok {
		return
	}
	adjs, err := h.svc.History(c.Request.Context(), storeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.AjusteInventarioResponse, 0, len(adjs))
	for i := range adjs {
		out = append(out, dto.NewAjusteInventarioResponse(&adjs[i]))
	}
	c.JSON(http.StatusOK, out)
}

