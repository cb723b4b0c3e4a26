package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Prefactura is the pre-bill of one table session.
// Estado: "abierta" | "cerrada". At most one abierta per Mesa (partial unique
// index on postgres, checked under the mesa row lock everywhere).
type Prefactura struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	MesaID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	Estado    EstadoPrefactura `gorm:"type:varchar(20);not null;default:'abierta'"`
	AbiertaAt time.Time        `gorm:"not null"`
	CerradaAt *time.Time
	// Total is the reconciled amount charged at close, recomputed from venta items.
	Total decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// TotalCacheado is Mesa.TotalAcumulado as it stood at close; Discrepancia = Total - TotalCacheado.
	TotalCacheado   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Discrepancia    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MetodoPago      *string         `gorm:"type:varchar(20)"`
	MontoPagado     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Vuelto          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CierreForzado   bool            `gorm:"not null;default:false"`
	UsuarioCierreID *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Mesa *Mesa `gorm:"foreignKey:MesaID"`
}

func (p *Prefactura) BeforeCreate(*gorm.DB) error {
	asignarID(&p.ID)
	return nil
}
