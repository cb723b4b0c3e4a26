package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	SucursalID string `form:"sucursal_id"              validate:"required,uuid"`
	MesaID     string `form:"mesa_id"                  validate:"omitempty,uuid"`
	Estado     string `form:"estado"` // any EstadoVenta | all; empty = all
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID string  `json:"producto_id" validate:"required,uuid"`
	Cantidad   int     `json:"cantidad"    validate:"required,min=1"`
	Notas      *string `json:"notas"       validate:"omitempty,max=200"`
}

type CrearVentaRequest struct {
	SucursalID string             `json:"sucursal_id" validate:"required,uuid"`
	MesaID     *string            `json:"mesa_id"     validate:"omitempty,uuid"`
	Items      []ItemVentaRequest `json:"items"       validate:"required,min=1,dive"`
	Prioridad  bool               `json:"prioridad"`
}

// CambiarEstadoRequest moves an order one kitchen step forward.
type CambiarEstadoRequest struct {
	Estado string `json:"estado" validate:"required,oneof=preparando listo entregado"`
}

type MotivoRequest struct {
	Motivo string `json:"motivo" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID     string          `json:"producto_id"`
	Producto       string          `json:"producto"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Notas          *string         `json:"notas,omitempty"`
}

type VentaResponse struct {
	ID                string              `json:"id"`
	SucursalID        string              `json:"sucursal_id"`
	MesaID            *string             `json:"mesa_id"`
	MesaNumero        *int                `json:"mesa_numero,omitempty"`
	Estado            string              `json:"estado"`
	Total             decimal.Decimal     `json:"total"`
	Prioridad         bool                `json:"prioridad"`
	RolOrigen         string              `json:"rol_origen"`
	UsuarioID         string              `json:"usuario_id"`
	MotivoCancelacion *string             `json:"motivo_cancelacion,omitempty"`
	Items             []ItemVentaResponse `json:"items"`
	Fecha             string              `json:"fecha"`
	ConfirmadaAt      *string             `json:"confirmada_at,omitempty"`
}
