package dto

import "github.com/shopspring/decimal"

// Event types published after commit to the jobs:eventos queue.
const (
	EventoVentaCreada      = "venta_creada"
	EventoVentaConfirmada  = "venta_confirmada"
	EventoVentaEstado      = "venta_estado"
	EventoMesaAbierta      = "mesa_abierta"
	EventoCuentaSolicitada = "cuenta_solicitada"
	EventoMesaCerrada      = "mesa_cerrada"
)

// Evento is the JSON pushed to kitchen displays and consumed by the workers.
type Evento struct {
	Type       string            `json:"type"`
	SucursalID string            `json:"sucursal_id"`
	MesaID     string            `json:"mesa_id,omitempty"`
	MesaNumero *int              `json:"mesa_numero,omitempty"`
	VentaID    string            `json:"venta_id,omitempty"`
	Estado     string            `json:"estado,omitempty"`
	Prioridad  bool              `json:"prioridad"`
	Items      []EventoItem      `json:"items,omitempty"`
	Prefactura *EventoPrefactura `json:"prefactura,omitempty"`
	Timestamp  string            `json:"timestamp"`
}

type EventoItem struct {
	Producto string          `json:"producto"`
	Cantidad int             `json:"cantidad"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Notas    *string         `json:"notas,omitempty"`
}

// EventoPrefactura carries what the ticket worker prints when a session closes.
type EventoPrefactura struct {
	ID          string          `json:"id"`
	AbiertaAt   string          `json:"abierta_at"`
	CerradaAt   string          `json:"cerrada_at"`
	Total       decimal.Decimal `json:"total"`
	MetodoPago  string          `json:"metodo_pago,omitempty"`
	MontoPagado decimal.Decimal `json:"monto_pagado"`
	Vuelto      decimal.Decimal `json:"vuelto"`
}
