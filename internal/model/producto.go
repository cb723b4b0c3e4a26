package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Producto is a catalog entry. Stock is not stored here: it lives per branch in
// StockSucursal and the cross-branch figure is derived on read.
type Producto struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RestauranteID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Nombre        string          `gorm:"index;not null"`
	Precio        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CategoriaID   *uuid.UUID      `gorm:"type:uuid;index"`
	Activo        bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Producto) BeforeCreate(*gorm.DB) error {
	asignarID(&p.ID)
	return nil
}
