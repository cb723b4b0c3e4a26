package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrStockInsuficiente            = errors.New("stock insuficiente")
	ErrTransicionInvalida           = errors.New("transición de estado inválida")
	ErrMesaNoLibre                  = errors.New("la mesa no está libre")
	ErrOrdenesPendientes            = errors.New("la mesa tiene pedidos sin entregar")
	ErrProductoOSucursalDesconocida = errors.New("producto o sucursal desconocida")
	ErrModificacionConcurrente      = errors.New("modificación concurrente, reintente la operación")

	ErrPermisoDenegado   = errors.New("el rol no tiene permiso para esta operación")
	ErrVentaNoEncontrada = errors.New("venta no encontrada")
	ErrMesaNoEncontrada  = errors.New("mesa no encontrada")
	ErrMotivoRequerido   = errors.New("se requiere un motivo")
	ErrCantidadInvalida  = errors.New("cantidad o tipo de movimiento inválido")
	ErrPagoInsuficiente  = errors.New("el monto pagado es menor al total de la mesa")
	ErrProductoInactivo  = errors.New("producto inactivo")

	// ErrMesaSinSesion is an invalid transition: the table has no open session.
	ErrMesaSinSesion = fmt.Errorf("la mesa no tiene sesión abierta: %w", ErrTransicionInvalida)
)

// StockInsuficienteError names the product that blocked a mutation and how
// much was left. errors.Is(err, ErrStockInsuficiente) holds for it.
type StockInsuficienteError struct {
	ProductoID uuid.UUID
	Producto   string
	Disponible int
	Solicitado int
}

func (e *StockInsuficienteError) Error() string {
	nombre := e.Producto
	if nombre == "" {
		nombre = e.ProductoID.String()
	}
	return fmt.Sprintf("stock insuficiente para %s: disponible %d, solicitado %d", nombre, e.Disponible, e.Solicitado)
}

func (e *StockInsuficienteError) Unwrap() error { return ErrStockInsuficiente }
