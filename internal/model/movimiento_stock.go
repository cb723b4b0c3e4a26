package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovimientoStock registra cada cambio de stock de un producto en una sucursal.
// Append-only: one row per StockSucursal mutation, written in the same
// transaction, never updated or deleted. StockNuevo always equals the row's
// Cantidad right after the commit that wrote it.
type MovimientoStock struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProductoID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	SucursalID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Tipo          TipoMovimiento `gorm:"type:varchar(30);not null"`
	Cantidad      int            `gorm:"not null"` // positive = entrada, negative = salida
	StockAnterior int            `gorm:"not null"`
	StockNuevo    int            `gorm:"not null"`
	UsuarioID     *uuid.UUID     `gorm:"type:uuid"` // nil for system actions
	Motivo        string
	ReferenciaID  *uuid.UUID `gorm:"type:uuid;index"` // venta_id when applicable
	CreatedAt     time.Time  `gorm:"index"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }

func (m *MovimientoStock) BeforeCreate(*gorm.DB) error {
	asignarID(&m.ID)
	return nil
}
