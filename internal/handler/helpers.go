package handler

import (
	"errors"
	"net/http"
	"reflect"

	"mesapos/internal/apierror"
	"mesapos/internal/middleware"
	"mesapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validar(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return false
	}
	return validar(c, req)
}

func validar(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// paramUUID parses a path parameter; writes 400 and returns false when invalid.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the authenticated caller set by middleware.JWTAuth.
func actor(c *gin.Context) service.Actor {
	a, _ := middleware.GetActor(c)
	return a
}

// respondError maps domain errors to HTTP status codes. Unknown errors become
// a generic 500 and are logged with the request id.
func respondError(c *gin.Context, err error) {
	var stockErr *service.StockInsuficienteError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, &apierror.StockError{
			Detail:     stockErr.Error(),
			Code:       "stock_insuficiente",
			ProductoID: stockErr.ProductoID.String(),
			Producto:   stockErr.Producto,
			Disponible: stockErr.Disponible,
			Solicitado: stockErr.Solicitado,
		})
		return
	}

	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("handler: unexpected error")
		c.JSON(status, apierror.New("Error interno del servidor"))
		return
	}
	body := apierror.WithCode(code, err.Error())
	body.Reintentable = errors.Is(err, service.ErrModificacionConcurrente)
	c.JSON(status, body)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrStockInsuficiente):
		return http.StatusConflict, "stock_insuficiente"
	case errors.Is(err, service.ErrModificacionConcurrente):
		return http.StatusConflict, "modificacion_concurrente"
	case errors.Is(err, service.ErrMesaNoLibre):
		return http.StatusConflict, "mesa_no_libre"
	case errors.Is(err, service.ErrOrdenesPendientes):
		return http.StatusConflict, "ordenes_pendientes"
	case errors.Is(err, service.ErrMesaSinSesion):
		return http.StatusConflict, "mesa_sin_sesion"
	case errors.Is(err, service.ErrTransicionInvalida):
		return http.StatusConflict, "transicion_invalida"
	case errors.Is(err, service.ErrProductoOSucursalDesconocida):
		return http.StatusNotFound, "producto_o_sucursal_desconocida"
	case errors.Is(err, service.ErrVentaNoEncontrada):
		return http.StatusNotFound, "venta_no_encontrada"
	case errors.Is(err, service.ErrMesaNoEncontrada):
		return http.StatusNotFound, "mesa_no_encontrada"
	case errors.Is(err, service.ErrPermisoDenegado):
		return http.StatusForbidden, "permiso_denegado"
	case errors.Is(err, service.ErrMotivoRequerido),
		errors.Is(err, service.ErrCantidadInvalida),
		errors.Is(err, service.ErrPagoInsuficiente),
		errors.Is(err, service.ErrProductoInactivo):
		return http.StatusUnprocessableEntity, "solicitud_invalida"
	}
	return http.StatusInternalServerError, ""
}
