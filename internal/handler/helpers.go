package handler

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/dyaogo/pos-superette-sub002/internal/apierror"
	"github.com/dyaogo/pos-superette-sub002/internal/dto"
	"github.com/dyaogo/pos-superette-sub002/internal/middleware"
	"github.com/dyaogo/pos-superette-sub002/internal/service"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0 work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails; the
// caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// bindOptional is bindAndValidate for endpoints whose body may be omitted.
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindAndValidate(c, req)
}

// storeScope resolves the store an inventory request targets: explicit
// value first, then the store_id claim of the token.
func storeScope(c *gin.Context, explicit string) (string, bool) {
	if s := strings.TrimSpace(explicit); s != "" {
		return s, true
	}
	if s := strings.TrimSpace(c.Query("store_id")); s != "" {
		return s, true
	}
	if claims := middleware.GetClaims(c); claims != nil && claims.StoreID != "" {
		return claims.StoreID, true
	}
	c.JSON(http.StatusBadRequest, apierror.New("store_id requerido"))
	return "", false
}

// writeServiceError maps engine errors to HTTP statuses. Anything it does not
// recognize is attached to the context for middleware.ErrorHandler.
func writeServiceError(c *gin.Context, err error) {
	var partial *service.PartialCommitError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusConflict, dto.CommitParcialResponse{
			Code:       apierror.CodePartialCommit,
			Detail:     "Ajuste aplicado parcialmente; reintente con el mismo digest",
			SesionID:   partial.SessionID.String(),
			Aplicados:  dto.UUIDStrings(partial.Applied),
			Pendientes: dto.UUIDStrings(partial.Pending),
		})
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidType),
		errors.Is(err, service.ErrInvalidSession):
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeInvalidInput, err.Error()))
	case errors.Is(err, service.ErrUnknownProduct):
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeUnknownProduct, err.Error()))
	case errors.Is(err, service.ErrNoActiveSession):
		c.JSON(http.StatusNotFound, apierror.WithCode(apierror.CodeNoActiveSession, "No hay una sesion activa"))
	case errors.Is(err, service.ErrSessionAlreadyOpen):
		c.JSON(http.StatusConflict, apierror.WithCode(apierror.CodeSessionAlreadyOpen, "Ya hay una caja abierta"))
	case errors.Is(err, service.ErrSessionAlreadyActive):
		c.JSON(http.StatusConflict, apierror.WithCode(apierror.CodeSessionAlreadyActive, "Ya hay un inventario en curso para esta sucursal"))
	case errors.Is(err, service.ErrCommitInProgress):
		c.JSON(http.StatusConflict, apierror.WithCode(apierror.CodeCommitInProgress, "El ajuste de inventario ya comenzo"))
	case errors.Is(err, service.ErrConfirmationRequired):
		c.JSON(http.StatusPreconditionFailed, apierror.WithCode(apierror.CodeConfirmationRequired, "Las diferencias cambiaron o no fueron confirmadas; vuelva a previsualizar"))
	case errors.Is(err, service.ErrStorage):
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, apierror.WithCode(apierror.CodeStorageUnavailable, "Servicio no disponible, intente nuevamente"))
	default:
		_ = c.Error(err)
	}
}
