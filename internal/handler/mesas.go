package handler

import (
	"net/http"

	"mesapos/internal/dto"
	"mesapos/internal/service"

	"github.com/gin-gonic/gin"
)

type MesasHandler struct {
	svc          service.MesaService
	conciliacion service.ConciliacionService
}

func NewMesasHandler(svc service.MesaService, conciliacion service.ConciliacionService) *MesasHandler {
	return &MesasHandler{svc: svc, conciliacion: conciliacion}
}

// ListarMesas godoc
// @Summary      Mesas de una sucursal
// @Description  Devuelve las mesas activas con su estado y total acumulado.
// @Tags         mesas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la sucursal"
// @Success      200 {array}  dto.MesaResponse
// @Router       /v1/sucursales/{id}/mesas [get]
func (h *MesasHandler) ListarMesas(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarMesas(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerMesa godoc
// @Summary      Obtener mesa
// @Tags         mesas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la mesa"
// @Success      200 {object} dto.MesaResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/mesas/{id} [get]
func (h *MesasHandler) ObtenerMesa(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerMesa(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AbrirSesion godoc
// @Summary      Abrir sesión de mesa
// @Description  Pasa una mesa libre a ocupada. Tomar un pedido en una mesa libre también la abre.
// @Tags         mesas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la mesa"
// @Success      200 {object} dto.MesaResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/mesas/{id}/abrir [post]
func (h *MesasHandler) AbrirSesion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.AbrirSesion(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SolicitarCuenta godoc
// @Summary      Solicitar la cuenta
// @Tags         mesas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la mesa"
// @Success      200 {object} dto.MesaResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/mesas/{id}/cuenta [post]
func (h *MesasHandler) SolicitarCuenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.SolicitarCuenta(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CerrarSesion godoc
// @Summary      Cerrar sesión y cobrar
// @Description  Recalcula el total desde las ventas confirmadas, registra el pago y libera la mesa.
// @Tags         mesas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                  true "UUID de la mesa"
// @Param        body body     dto.CerrarSesionRequest true "Pago"
// @Success      200  {object} dto.PrefacturaResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/mesas/{id}/cerrar [post]
func (h *MesasHandler) CerrarSesion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarSesionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	pago := service.Pago{Metodo: req.MetodoPago, Monto: req.Monto, Forzar: req.Forzar}
	resp, err := h.svc.CerrarSesion(c.Request.Context(), actor(c), id, pago)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Conciliacion godoc
// @Summary      Conciliar total de la sesión
// @Description  Recalcula el total desde las ventas y lo compara con el acumulado. Solo informa, nunca corrige.
// @Tags         mesas
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la mesa"
// @Success      200 {object} dto.ConciliacionResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/mesas/{id}/conciliacion [get]
func (h *MesasHandler) Conciliacion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.conciliacion.Recalcular(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ConciliacionToResponse(res))
}

// HistorialSesiones godoc
// @Summary      Sesiones cerradas de una mesa
// @Tags         mesas
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "UUID de la mesa"
// @Param        page  query int    false "Página (default 1)"
// @Param        limit query int    false "Registros por página (default 20)"
// @Success      200   {object} dto.HistorialSesionesResponse
// @Router       /v1/mesas/{id}/sesiones [get]
func (h *MesasHandler) HistorialSesiones(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var q dto.HistorialQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.HistorialSesiones(c.Request.Context(), id, q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
