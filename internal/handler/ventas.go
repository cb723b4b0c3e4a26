package handler

import (
	"net/http"

	"mesapos/internal/dto"
	"mesapos/internal/model"
	"mesapos/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler { return &VentasHandler{svc: svc} }

// CrearVenta godoc
// @Summary      Tomar un pedido
// @Description  Pedidos de mozo quedan pendientes de aprobación. Pedidos de caja se confirman y descuentan stock en la misma transacción.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CrearVentaRequest true "Sucursal, mesa opcional e ítems"
// @Success      201  {object} dto.VentaResponse
// @Failure      403  {object} apierror.APIError
// @Failure      409  {object} apierror.StockError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/ventas [post]
func (h *VentasHandler) CrearVenta(c *gin.Context) {
	var req dto.CrearVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearVenta(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ObtenerVenta godoc
// @Summary      Obtener venta
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la venta"
// @Success      200 {object} dto.VentaResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/ventas/{id} [get]
func (h *VentasHandler) ObtenerVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarVentas godoc
// @Summary      Listar ventas de una sucursal
// @Description  Las prioritarias primero, luego por antigüedad.
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        sucursal_id query string true  "UUID de la sucursal"
// @Param        mesa_id     query string false "UUID de la mesa"
// @Param        estado      query string false "Estado de la venta o all"
// @Param        page        query int    false "Página (default 1)"
// @Param        limit       query int    false "Registros por página (default 50)"
// @Success      200 {object} dto.VentaListResponse
// @Router       /v1/ventas [get]
func (h *VentasHandler) ListarVentas(c *gin.Context) {
	var filter dto.VentaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarVentas(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AprobarVenta godoc
// @Summary      Aprobar pedido de mozo
// @Description  Confirma el pedido y descuenta stock. Sin stock el pedido queda pendiente de aprobación.
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la venta"
// @Success      200 {object} dto.VentaResponse
// @Failure      409 {object} apierror.StockError
// @Router       /v1/ventas/{id}/aprobar [post]
func (h *VentasHandler) AprobarVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.AprobarVenta(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RechazarVenta godoc
// @Summary      Rechazar pedido de mozo
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string            true "UUID de la venta"
// @Param        body body     dto.MotivoRequest true "Motivo"
// @Success      200  {object} dto.VentaResponse
// @Router       /v1/ventas/{id}/rechazar [post]
func (h *VentasHandler) RechazarVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RechazarVenta(c.Request.Context(), actor(c), id, req.Motivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CambiarEstado godoc
// @Summary      Avanzar estado de cocina
// @Description  pendiente → preparando → listo → entregado, de a un paso.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                   true "UUID de la venta"
// @Param        body body     dto.CambiarEstadoRequest true "Nuevo estado"
// @Success      200  {object} dto.VentaResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/ventas/{id}/estado [patch]
func (h *VentasHandler) CambiarEstado(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CambiarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AvanzarEstado(c.Request.Context(), actor(c), id, model.EstadoVenta(req.Estado))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelarVenta godoc
// @Summary      Cancelar o anular venta
// @Description  Si la venta había descontado stock, lo repone con movimientos de reversión.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string            true "UUID de la venta"
// @Param        body body     dto.MotivoRequest true "Motivo"
// @Success      200  {object} dto.VentaResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/ventas/{id}/cancelar [post]
func (h *VentasHandler) CancelarVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.MotivoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CancelarVenta(c.Request.Context(), actor(c), id, req.Motivo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
