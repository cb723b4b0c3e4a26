package model

// ── Roles ─────────────────────────────────────────────────────────────────────

// Rol is the role carried by the actor's JWT.
type Rol string

const (
	RolMozo          Rol = "mozo"
	RolCajero        Rol = "cajero"
	RolCocina        Rol = "cocina"
	RolAdministrador Rol = "administrador"
)

// Valido reports whether r is one of the known roles.
func (r Rol) Valido() bool {
	switch r {
	case RolMozo, RolCajero, RolCocina, RolAdministrador:
		return true
	}
	return false
}

// PuedeCobrar is true for roles that approve, cancel and close sessions.
func (r Rol) PuedeCobrar() bool {
	return r == RolCajero || r == RolAdministrador
}

// GestionaStock is true for roles allowed to register purchases, adjustments
// and transfers.
func (r Rol) GestionaStock() bool {
	return r == RolCajero || r == RolAdministrador
}

// ── Mesa ──────────────────────────────────────────────────────────────────────

// EstadoMesa: "libre" | "ocupada" | "cuenta_solicitada"
type EstadoMesa string

const (
	MesaLibre            EstadoMesa = "libre"
	MesaOcupada          EstadoMesa = "ocupada"
	MesaCuentaSolicitada EstadoMesa = "cuenta_solicitada"
)

var transicionesMesa = map[EstadoMesa][]EstadoMesa{
	MesaLibre:            {MesaOcupada},
	MesaOcupada:          {MesaCuentaSolicitada, MesaLibre},
	MesaCuentaSolicitada: {MesaLibre},
}

// PuedeTransicionar checks the table lifecycle free → occupied → {bill-requested|free} → free.
func (e EstadoMesa) PuedeTransicionar(destino EstadoMesa) bool {
	for _, d := range transicionesMesa[e] {
		if d == destino {
			return true
		}
	}
	return false
}

// SesionAbierta is true while sales can accumulate against the table.
func (e EstadoMesa) SesionAbierta() bool {
	return e == MesaOcupada || e == MesaCuentaSolicitada
}

// ── Venta ─────────────────────────────────────────────────────────────────────

// EstadoVenta: "pendiente_aprobacion" | "pendiente" | "preparando" | "listo" | "entregado" | "cancelada"
type EstadoVenta string

const (
	VentaPendienteAprobacion EstadoVenta = "pendiente_aprobacion"
	VentaPendiente           EstadoVenta = "pendiente"
	VentaPreparando          EstadoVenta = "preparando"
	VentaListo               EstadoVenta = "listo"
	VentaEntregado           EstadoVenta = "entregado"
	VentaCancelada           EstadoVenta = "cancelada"
)

// siguienteCocina is the strict kitchen progression; no skipping.
var siguienteCocina = map[EstadoVenta]EstadoVenta{
	VentaPendiente:  VentaPreparando,
	VentaPreparando: VentaListo,
	VentaListo:      VentaEntregado,
}

// Valido reports whether e is a known order status.
func (e EstadoVenta) Valido() bool {
	switch e {
	case VentaPendienteAprobacion, VentaPendiente, VentaPreparando, VentaListo, VentaEntregado, VentaCancelada:
		return true
	}
	return false
}

// Terminal states accept no further kitchen or approval transitions.
func (e EstadoVenta) Terminal() bool {
	return e == VentaEntregado || e == VentaCancelada
}

// Confirmada is true once stock has been committed for the order.
func (e EstadoVenta) Confirmada() bool {
	switch e {
	case VentaPendiente, VentaPreparando, VentaListo, VentaEntregado:
		return true
	}
	return false
}

// Activa marks orders that block a session close.
func (e EstadoVenta) Activa() bool {
	return e == VentaPendiente || e == VentaPreparando || e == VentaListo
}

// PuedeAvanzarA validates a kitchen step: exactly the next state, never a skip.
func (e EstadoVenta) PuedeAvanzarA(destino EstadoVenta) bool {
	sig, ok := siguienteCocina[e]
	return ok && sig == destino
}

// PuedeCancelarse is true for every non-terminal state. Delivered orders can only
// be voided, see Anulable.
func (e EstadoVenta) PuedeCancelarse() bool {
	return !e.Terminal()
}

// Anulable is true for delivered orders, which a cashier may still void.
func (e EstadoVenta) Anulable() bool {
	return e == VentaEntregado
}

// EstadosFacturables are the statuses summed into a table bill.
var EstadosFacturables = []EstadoVenta{VentaPendiente, VentaPreparando, VentaListo, VentaEntregado}

// EstadosActivos block CerrarSesion unless forced.
var EstadosActivos = []EstadoVenta{VentaPendiente, VentaPreparando, VentaListo}

// ── Stock ─────────────────────────────────────────────────────────────────────

// TipoMovimiento: "venta" | "compra" | "ajuste" | "transferencia" | "reversion_cancelacion"
type TipoMovimiento string

const (
	MovimientoVenta                TipoMovimiento = "venta"
	MovimientoCompra               TipoMovimiento = "compra"
	MovimientoAjuste               TipoMovimiento = "ajuste"
	MovimientoTransferencia        TipoMovimiento = "transferencia"
	MovimientoReversionCancelacion TipoMovimiento = "reversion_cancelacion"
)

// Valido reports whether t is a known movement kind.
func (t TipoMovimiento) Valido() bool {
	switch t {
	case MovimientoVenta, MovimientoCompra, MovimientoAjuste, MovimientoTransferencia, MovimientoReversionCancelacion:
		return true
	}
	return false
}

// ── Prefactura ────────────────────────────────────────────────────────────────

// EstadoPrefactura: "abierta" | "cerrada"
type EstadoPrefactura string

const (
	PrefacturaAbierta EstadoPrefactura = "abierta"
	PrefacturaCerrada EstadoPrefactura = "cerrada"
)
