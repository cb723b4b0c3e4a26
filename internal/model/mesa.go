package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Mesa is a physical dining table. It never points at its orders: a Venta
// references the Mesa by id and the session window [SesionAbiertaAt, now)
// selects which ventas belong to the current bill.
// Estado, SesionAbiertaAt and TotalAcumulado are written only by service.MesaService.
type Mesa struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SucursalID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_mesa_sucursal_numero"`
	Numero          int        `gorm:"not null;uniqueIndex:idx_mesa_sucursal_numero"`
	Capacidad       int        `gorm:"not null;default:4"`
	Estado          EstadoMesa `gorm:"type:varchar(30);not null;default:'libre'"`
	SesionAbiertaAt *time.Time
	// TotalAcumulado is a denormalized running total for fast UI reads,
	// updated incrementally on each confirmed venta.
	TotalAcumulado decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Activo         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (m *Mesa) BeforeCreate(*gorm.DB) error {
	asignarID(&m.ID)
	if m.Estado == "" {
		m.Estado = MesaLibre
	}
	return nil
}
