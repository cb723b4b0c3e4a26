package worker

import (
	"fmt"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/infra"

	"github.com/google/uuid"
)

// ticketDesdeEvento maps a mesa_cerrada event to the printable pre-bill.
func ticketDesdeEvento(ev dto.Evento) (infra.TicketPrefactura, error) {
	if ev.Type != dto.EventoMesaCerrada || ev.Prefactura == nil {
		return infra.TicketPrefactura{}, fmt.Errorf("ticket: event %q has no prefactura", ev.Type)
	}
	pf := ev.Prefactura

	id, err := uuid.Parse(pf.ID)
	if err != nil {
		return infra.TicketPrefactura{}, fmt.Errorf("ticket: prefactura id: %w", err)
	}
	abierta, err := time.Parse(time.RFC3339, pf.AbiertaAt)
	if err != nil {
		return infra.TicketPrefactura{}, fmt.Errorf("ticket: abierta_at: %w", err)
	}
	cerrada, err := time.Parse(time.RFC3339, pf.CerradaAt)
	if err != nil {
		return infra.TicketPrefactura{}, fmt.Errorf("ticket: cerrada_at: %w", err)
	}

	t := infra.TicketPrefactura{
		PrefacturaID: id,
		AbiertaAt:    abierta,
		CerradaAt:    cerrada,
		Total:        pf.Total,
		MetodoPago:   pf.MetodoPago,
		MontoPagado:  pf.MontoPagado,
		Vuelto:       pf.Vuelto,
	}
	if ev.MesaNumero != nil {
		t.MesaNumero = *ev.MesaNumero
	}
	for _, it := range ev.Items {
		t.Lineas = append(t.Lineas, infra.LineaTicket{
			Producto: it.Producto,
			Cantidad: it.Cantidad,
			Subtotal: it.Subtotal,
		})
	}
	return t, nil
}
