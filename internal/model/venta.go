package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Venta is a sale ticket, optionally tied to a Mesa.
// Total is fixed at creation; cancelling a confirmed venta reverses stock with
// compensating movements instead of editing the ticket.
type Venta struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SucursalID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	MesaID            *uuid.UUID      `gorm:"type:uuid;index:idx_ventas_mesa_fecha"`
	Estado            EstadoVenta     `gorm:"type:varchar(30);not null;index"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Fecha             time.Time       `gorm:"not null;index:idx_ventas_mesa_fecha"`
	UsuarioID         uuid.UUID       `gorm:"type:uuid;not null"`
	RolOrigen         Rol             `gorm:"type:varchar(20);not null"`
	Prioridad         bool            `gorm:"not null;default:false"`
	MotivoCancelacion *string
	ConfirmadaAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID"`
	Mesa  *Mesa       `gorm:"foreignKey:MesaID"`
}

func (v *Venta) BeforeCreate(*gorm.DB) error {
	asignarID(&v.ID)
	return nil
}

// VentaItem is one order line. Immutable once the venta leaves pendiente_aprobacion.
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null"`
	Cantidad       int             `gorm:"not null;check:chk_venta_items_cantidad,cantidad > 0"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notas          *string

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (i *VentaItem) BeforeCreate(*gorm.DB) error {
	asignarID(&i.ID)
	return nil
}
