package repository

import (
	"context"

	"mesapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SucursalRepository interface {
	Create(ctx context.Context, s *model.Sucursal) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sucursal, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sucursal, error)
}

type sucursalRepo struct{ db *gorm.DB }

func NewSucursalRepository(db *gorm.DB) SucursalRepository { return &sucursalRepo{db: db} }

func (r *sucursalRepo) Create(ctx context.Context, s *model.Sucursal) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sucursalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sucursal, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *sucursalRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sucursal, error) {
	var s model.Sucursal
	err := tx.Where("id = ?", id).First(&s).Error
	return &s, err
}
