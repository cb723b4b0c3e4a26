package repository

import (
	"context"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VentaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	List(ctx context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error)

	// Used inside transactions; callers must pass the tx instance
	CreateTx(tx *gorm.DB, v *model.Venta) error
	// LockTx locks the venta row and loads its items.
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	UpdateEstadoTx(tx *gorm.DB, v *model.Venta) error
	// ListSesionTx returns the table's ventas in the given statuses with
	// desde <= fecha <= hasta, items and products preloaded.
	ListSesionTx(tx *gorm.DB, mesaID uuid.UUID, desde, hasta time.Time, estados []model.EstadoVenta) ([]model.Venta, error)
	// ListAnterioresTx returns the table's ventas in the given statuses stamped before antes.
	ListAnterioresTx(tx *gorm.DB, mesaID uuid.UUID, antes time.Time, estados []model.EstadoVenta) ([]model.Venta, error)
	CountSesionTx(tx *gorm.DB, mesaID uuid.UUID, desde time.Time, estados []model.EstadoVenta) (int64, error)
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items.Producto").Preload("Mesa").
		Where("id = ?", id).First(&v).Error
	return &v, err
}

func (r *ventaRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&v).Error; err != nil {
		return &v, err
	}
	// items are immutable once created; no lock needed
	err := tx.Preload("Producto").Where("venta_id = ?", id).Order("producto_id ASC").Find(&v.Items).Error
	return &v, err
}

func (r *ventaRepo) UpdateEstadoTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Model(&model.Venta{}).Where("id = ?", v.ID).Updates(map[string]interface{}{
		"estado":             v.Estado,
		"motivo_cancelacion": v.MotivoCancelacion,
		"confirmada_at":      v.ConfirmadaAt,
	}).Error
}

func (r *ventaRepo) ListSesionTx(tx *gorm.DB, mesaID uuid.UUID, desde, hasta time.Time, estados []model.EstadoVenta) ([]model.Venta, error) {
	var ventas []model.Venta
	err := tx.Preload("Items.Producto").
		Where("mesa_id = ? AND fecha >= ? AND fecha <= ? AND estado IN ?", mesaID, desde, hasta, estados).
		Order("fecha ASC").
		Find(&ventas).Error
	return ventas, err
}

func (r *ventaRepo) ListAnterioresTx(tx *gorm.DB, mesaID uuid.UUID, antes time.Time, estados []model.EstadoVenta) ([]model.Venta, error) {
	var ventas []model.Venta
	err := tx.Where("mesa_id = ? AND fecha < ? AND estado IN ?", mesaID, antes, estados).
		Order("fecha ASC").
		Find(&ventas).Error
	return ventas, err
}

func (r *ventaRepo) CountSesionTx(tx *gorm.DB, mesaID uuid.UUID, desde time.Time, estados []model.EstadoVenta) (int64, error) {
	var n int64
	err := tx.Model(&model.Venta{}).
		Where("mesa_id = ? AND fecha >= ? AND estado IN ?", mesaID, desde, estados).
		Count(&n).Error
	return n, err
}

func (r *ventaRepo) List(ctx context.Context, filter dto.VentaFilter) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Venta{}).Where("sucursal_id = ?", filter.SucursalID)
	if filter.MesaID != "" {
		q = q.Where("mesa_id = ?", filter.MesaID)
	}
	if filter.Estado != "" && filter.Estado != "all" {
		q = q.Where("estado = ?", filter.Estado)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Items.Producto").Preload("Mesa").
		Order("prioridad DESC, fecha ASC").
		Offset(offset).Limit(filter.Limit).
		Find(&ventas).Error

	return ventas, total, err
}
