package handler

import (
	"net/http"

	"mesapos/internal/dto"
	"mesapos/internal/service"

	"github.com/gin-gonic/gin"
)

type StockHandler struct{ svc service.StockService }

func NewStockHandler(svc service.StockService) *StockHandler { return &StockHandler{svc: svc} }

// RegistrarCompra godoc
// @Summary      Registrar ingreso de mercadería
// @Description  Suma unidades al stock de una sucursal y registra el movimiento de compra.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CompraRequest true "Producto, sucursal y cantidad"
// @Success      201  {object} dto.MutacionResponse
// @Failure      404  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/stock/compras [post]
func (h *StockHandler) RegistrarCompra(c *gin.Context) {
	var req dto.CompraRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarCompra(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// AjustarStock godoc
// @Summary      Ajuste manual de stock
// @Description  Corrección con signo (merma, rotura, conteo). Nunca deja el stock negativo.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.AjusteRequest true "Delta y motivo"
// @Success      201  {object} dto.MutacionResponse
// @Failure      409  {object} apierror.StockError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/stock/ajustes [post]
func (h *StockHandler) AjustarStock(c *gin.Context) {
	var req dto.AjusteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjustarStock(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Transferir godoc
// @Summary      Transferir stock entre sucursales
// @Description  Descuenta del origen y suma al destino en una sola transacción.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.TransferenciaRequest true "Origen, destino y cantidad"
// @Success      201  {object} dto.TransferenciaResponse
// @Failure      409  {object} apierror.StockError
// @Router       /v1/stock/transferencias [post]
func (h *StockHandler) Transferir(c *gin.Context) {
	var req dto.TransferenciaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Transferir(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ConfigurarLimites godoc
// @Summary      Configurar stock mínimo y máximo
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.LimitesRequest true "Límites"
// @Success      200  {object} dto.StockSucursalResponse
// @Router       /v1/stock/limites [put]
func (h *StockHandler) ConfigurarLimites(c *gin.Context) {
	var req dto.LimitesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ConfigurarLimites(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StockGlobal godoc
// @Summary      Stock de un producto en todas las sucursales activas
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID del producto"
// @Success      200 {object} dto.StockGlobalResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/stock/productos/{id} [get]
func (h *StockHandler) StockGlobal(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.StockPorSucursal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SnapshotSucursal godoc
// @Summary      Stock de todos los productos de una sucursal
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la sucursal"
// @Success      200 {array}  dto.StockSucursalResponse
// @Router       /v1/stock/sucursales/{id} [get]
func (h *StockHandler) SnapshotSucursal(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.SnapshotSucursal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Alertas godoc
// @Summary      Productos bajo el mínimo o sobre el máximo
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la sucursal"
// @Success      200 {array}  dto.StockSucursalResponse
// @Router       /v1/stock/sucursales/{id}/alertas [get]
func (h *StockHandler) Alertas(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Alertas(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarMovimientos godoc
// @Summary      Historial de movimientos de stock
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        sucursal_id query string false "UUID de la sucursal"
// @Param        producto_id query string false "UUID del producto"
// @Param        tipo        query string false "venta | compra | ajuste | transferencia | reversion_cancelacion"
// @Param        desde       query string false "YYYY-MM-DD"
// @Param        hasta       query string false "YYYY-MM-DD"
// @Param        page        query int    false "Página (default 1)"
// @Param        limit       query int    false "Registros por página (default 100)"
// @Success      200 {object} dto.MovimientoListResponse
// @Router       /v1/stock/movimientos [get]
func (h *StockHandler) ListarMovimientos(c *gin.Context) {
	var filter dto.MovimientoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
