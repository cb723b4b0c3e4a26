package handler

import (
	"net/http"
	"strings"

	"mesapos/internal/apierror"
	"mesapos/internal/middleware"
	"mesapos/internal/model"
	"mesapos/internal/ws"

	"github.com/gin-gonic/gin"
)

// EventosSucursal upgrades to a websocket subscribed to one sucursal.
// Browsers cannot set headers on websocket handshakes, so the JWT may also
// come in the token query parameter.
//
// @Summary      Eventos en vivo de una sucursal
// @Tags         eventos
// @Param        id    path  string true  "UUID de la sucursal"
// @Param        token query string false "JWT"
// @Success      101
// @Failure      401  {object} apierror.APIError
// @Failure      403  {object} apierror.APIError
// @Router       /ws/sucursales/{id}/eventos [get]
func EventosSucursal(hub *ws.Hub, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sucursalID, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		claims, err := middleware.ParseToken(jwtSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}
		if model.Rol(claims.Rol) != model.RolAdministrador && claims.SucursalID != sucursalID.String() {
			c.JSON(http.StatusForbidden, apierror.New("Sin acceso a esta sucursal"))
			return
		}

		ws.Serve(hub, c.Writer, c.Request, sucursalID)
	}
}
