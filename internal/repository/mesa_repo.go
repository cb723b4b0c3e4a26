package repository

import (
	"context"

	"mesapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MesaRepository interface {
	Create(ctx context.Context, m *model.Mesa) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Mesa, error)
	ListBySucursal(ctx context.Context, sucursalID uuid.UUID) ([]model.Mesa, error)
	// ListConSesion returns every table whose session is open, across branches.
	ListConSesion(ctx context.Context) ([]model.Mesa, error)

	// Used inside transactions; callers must pass the tx instance
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Mesa, error)
	LockTx(tx *gorm.DB, id uuid.UUID) (*model.Mesa, error)
	UpdateSesionTx(tx *gorm.DB, m *model.Mesa) error
	SetTotalTx(tx *gorm.DB, id uuid.UUID, total decimal.Decimal) error
}

type mesaRepo struct{ db *gorm.DB }

func NewMesaRepository(db *gorm.DB) MesaRepository { return &mesaRepo{db: db} }

func (r *mesaRepo) Create(ctx context.Context, m *model.Mesa) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *mesaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Mesa, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *mesaRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Mesa, error) {
	var m model.Mesa
	err := tx.Where("id = ?", id).First(&m).Error
	return &m, err
}

func (r *mesaRepo) ListBySucursal(ctx context.Context, sucursalID uuid.UUID) ([]model.Mesa, error) {
	var mesas []model.Mesa
	err := r.db.WithContext(ctx).
		Where("sucursal_id = ? AND activo = ?", sucursalID, true).
		Order("numero ASC").
		Find(&mesas).Error
	return mesas, err
}

func (r *mesaRepo) ListConSesion(ctx context.Context) ([]model.Mesa, error) {
	var mesas []model.Mesa
	err := r.db.WithContext(ctx).
		Where("estado IN ?", []model.EstadoMesa{model.MesaOcupada, model.MesaCuentaSolicitada}).
		Find(&mesas).Error
	return mesas, err
}

func (r *mesaRepo) LockTx(tx *gorm.DB, id uuid.UUID) (*model.Mesa, error) {
	var m model.Mesa
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error
	return &m, err
}

// UpdateSesionTx writes the session fields. Select forces nil / zero values.
func (r *mesaRepo) UpdateSesionTx(tx *gorm.DB, m *model.Mesa) error {
	return tx.Model(m).
		Select("estado", "sesion_abierta_at", "total_acumulado").
		Updates(map[string]interface{}{
			"estado":            m.Estado,
			"sesion_abierta_at": m.SesionAbiertaAt,
			"total_acumulado":   m.TotalAcumulado,
		}).Error
}

func (r *mesaRepo) SetTotalTx(tx *gorm.DB, id uuid.UUID, total decimal.Decimal) error {
	return tx.Model(&model.Mesa{}).Where("id = ?", id).Update("total_acumulado", total).Error
}
