package handler

import (
	"net/http"

	"github.com/dyaogo/pos-superette-sub002/internal/dto"
	"github.com/dyaogo/pos-superette-sub002/internal/middleware"
	"github.com/dyaogo/pos-superette-sub002/internal/model"
	"github.com/dyaogo/pos-superette-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct{ svc service.CashService }

func NewCajaHandler(svc service.CashService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary Abre una nueva sesion de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Fondo inicial"
// @Success 201 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	session, err := h.svc.Open(c.Request.Context(), req.MontoInicial, middleware.Operator(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewSesionCajaResponse(session))
}

// RegistrarMovimiento godoc
// @Summary Registra un ingreso o egreso manual en la caja abierta
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoCajaRequest true "Movimiento manual"
// @Success 201 {object} dto.OperacionCajaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/movimiento [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	op, err := h.svc.RecordOperation(c.Request.Context(), model.OperationType(req.Tipo), req.Monto, req.Descripcion, middleware.Operator(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOperacionCajaResponse(*op))
}

// Cerrar godoc
// @Summary Cierra la caja con el efectivo contado y devuelve el reporte
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CerrarCajaRequest true "Efectivo contado"
// @Success 200 {object} dto.ReporteCierreResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	report, err := h.svc.Close(c.Request.Context(), req.MontoContado, req.Notas, middleware.Operator(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewReporteCierreResponse(report))
}

func (h *CajaHandler) GetActiva(c *gin.Context) {
	session, err := h.svc.Active(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSesionCajaResponse(session))
}

func (h *CajaHandler) Historial(c *gin.Context) {
	reports, err := h.svc.History(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.ReporteCierreResponse, 0, len(reports))
	for i := range reports {
		out = append(out, dto.NewReporteCierreResponse(&reports[i]))
	}
	c.JSON(http.StatusOK, out)
}
