package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CerrarSesionRequest settles the bill. Forzar closes with undelivered orders
// and is honoured for administradores only.
type CerrarSesionRequest struct {
	MetodoPago string          `json:"metodo_pago" validate:"omitempty,oneof=efectivo debito credito transferencia"`
	Monto      decimal.Decimal `json:"monto"       validate:"min=0"`
	Forzar     bool            `json:"forzar"`
}

// HistorialQuery pages GET /v1/mesas/{id}/sesiones.
type HistorialQuery struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MesaResponse struct {
	ID              string          `json:"id"`
	SucursalID      string          `json:"sucursal_id"`
	Numero          int             `json:"numero"`
	Capacidad       int             `json:"capacidad"`
	Estado          string          `json:"estado"`
	SesionAbiertaAt *string         `json:"sesion_abierta_at"`
	TotalAcumulado  decimal.Decimal `json:"total_acumulado"`
}

type PrefacturaResponse struct {
	ID            string          `json:"id"`
	MesaID        string          `json:"mesa_id"`
	Estado        string          `json:"estado"`
	AbiertaAt     string          `json:"abierta_at"`
	CerradaAt     *string         `json:"cerrada_at"`
	Total         decimal.Decimal `json:"total"`
	TotalCacheado decimal.Decimal `json:"total_cacheado"`
	Discrepancia  decimal.Decimal `json:"discrepancia"`
	MetodoPago    *string         `json:"metodo_pago"`
	MontoPagado   decimal.Decimal `json:"monto_pagado"`
	Vuelto        decimal.Decimal `json:"vuelto"`
	CierreForzado bool            `json:"cierre_forzado"`
}

type HistorialSesionesResponse struct {
	Data  []PrefacturaResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type ConciliacionResponse struct {
	MesaID              string          `json:"mesa_id"`
	TotalCalculado      decimal.Decimal `json:"total_calculado"`
	TotalCacheado       decimal.Decimal `json:"total_cacheado"`
	Discrepancia        decimal.Decimal `json:"discrepancia"`
	Clasificacion       string          `json:"clasificacion"` // normal | advertencia | critico
	CantidadVentas      int             `json:"cantidad_ventas"`
	VentasFueraDeSesion []string        `json:"ventas_fuera_de_sesion"`
}
