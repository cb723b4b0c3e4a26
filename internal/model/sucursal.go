package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sucursal is a physical location of a restaurant. Created by onboarding,
// read here for scoping only.
type Sucursal struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	RestauranteID uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre        string    `gorm:"not null"`
	Activo        bool      `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides GORM's default pluralization (sucursals → sucursales).
func (Sucursal) TableName() string { return "sucursales" }

func (s *Sucursal) BeforeCreate(*gorm.DB) error {
	asignarID(&s.ID)
	return nil
}
