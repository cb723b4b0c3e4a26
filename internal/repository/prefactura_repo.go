package repository

import (
	"context"

	"mesapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PrefacturaRepository interface {
	CreateTx(tx *gorm.DB, p *model.Prefactura) error
	FindAbiertaTx(tx *gorm.DB, mesaID uuid.UUID) (*model.Prefactura, error)
	UpdateTx(tx *gorm.DB, p *model.Prefactura) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Prefactura, error)
	// ListCerradas returns closed pre-bills of a table, newest first.
	ListCerradas(ctx context.Context, mesaID uuid.UUID, page, limit int) ([]model.Prefactura, int64, error)
}

type prefacturaRepo struct{ db *gorm.DB }

func NewPrefacturaRepository(db *gorm.DB) PrefacturaRepository { return &prefacturaRepo{db: db} }

func (r *prefacturaRepo) CreateTx(tx *gorm.DB, p *model.Prefactura) error {
	return tx.Create(p).Error
}

func (r *prefacturaRepo) FindAbiertaTx(tx *gorm.DB, mesaID uuid.UUID) (*model.Prefactura, error) {
	var p model.Prefactura
	err := tx.Where("mesa_id = ? AND estado = ?", mesaID, model.PrefacturaAbierta).First(&p).Error
	return &p, err
}

func (r *prefacturaRepo) UpdateTx(tx *gorm.DB, p *model.Prefactura) error {
	return tx.Save(p).Error
}

func (r *prefacturaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Prefactura, error) {
	var p model.Prefactura
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *prefacturaRepo) ListCerradas(ctx context.Context, mesaID uuid.UUID, page, limit int) ([]model.Prefactura, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Prefactura{}).
		Where("mesa_id = ? AND estado = ?", mesaID, model.PrefacturaCerrada)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var prefacturas []model.Prefactura
	err := q.Order("cerrada_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&prefacturas).Error
	return prefacturas, total, err
}
