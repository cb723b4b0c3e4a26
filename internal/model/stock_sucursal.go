package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockSucursal is the per-(producto, sucursal) stock row, the only source of
// truth for availability. Rows are created lazily by the stock ledger on the
// first mutation for a pair and are never deleted (Activo=false instead).
// Cantidad is written exclusively by service.StockService.
type StockSucursal struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductoID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_producto_sucursal"`
	SucursalID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_producto_sucursal;index"`
	Cantidad    int       `gorm:"not null;default:0;check:chk_stock_sucursal_cantidad,cantidad >= 0"`
	StockMinimo int       `gorm:"not null;default:0"`
	StockMaximo int       `gorm:"not null;default:0"` // 0 = sin tope
	Activo      bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Producto *Producto `gorm:"foreignKey:ProductoID"`
	Sucursal *Sucursal `gorm:"foreignKey:SucursalID"`
}

// TableName keeps the singular collection name used by reports.
func (StockSucursal) TableName() string { return "stock_sucursal" }

func (s *StockSucursal) BeforeCreate(*gorm.DB) error {
	asignarID(&s.ID)
	return nil
}

// BajoMinimo is true when the row needs restocking.
func (s *StockSucursal) BajoMinimo() bool {
	return s.Cantidad <= s.StockMinimo
}

// SobreMaximo is true when a purchase overfilled the configured capacity.
func (s *StockSucursal) SobreMaximo() bool {
	return s.StockMaximo > 0 && s.Cantidad > s.StockMaximo
}
