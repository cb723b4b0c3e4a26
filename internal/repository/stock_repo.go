package repository

import (
	"context"

	"mesapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockPorSucursal is one branch's share of a product's global stock.
type StockPorSucursal struct {
	SucursalID     uuid.UUID
	SucursalNombre string
	Cantidad       int
}

// StockRepository owns the stock_sucursal rows. Only the *Tx methods write,
// and only service.StockService calls them.
type StockRepository interface {
	// MaterializarTx inserts the (producto, sucursal) row at quantity 0 if it
	// does not exist yet. Concurrent callers never fail on the unique index.
	MaterializarTx(tx *gorm.DB, productoID, sucursalID uuid.UUID, minimo, maximo int) error
	// LockTx reads the row with SELECT ... FOR UPDATE.
	LockTx(tx *gorm.DB, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error)
	UpdateCantidadTx(tx *gorm.DB, id uuid.UUID, cantidad int) error
	UpdateLimitesTx(tx *gorm.DB, id uuid.UUID, minimo, maximo int) error

	SumGlobal(ctx context.Context, productoID, restauranteID uuid.UUID) (int64, error)
	ListPorProducto(ctx context.Context, productoID, restauranteID uuid.UUID) ([]StockPorSucursal, error)
	ListPorSucursal(ctx context.Context, sucursalID uuid.UUID) ([]model.StockSucursal, error)
	ListAlertas(ctx context.Context, sucursalID uuid.UUID) ([]model.StockSucursal, error)
	Find(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepository(db *gorm.DB) StockRepository { return &stockRepo{db: db} }

func (r *stockRepo) MaterializarTx(tx *gorm.DB, productoID, sucursalID uuid.UUID, minimo, maximo int) error {
	row := model.StockSucursal{
		ProductoID:  productoID,
		SucursalID:  sucursalID,
		Cantidad:    0,
		StockMinimo: minimo,
		StockMaximo: maximo,
		Activo:      true,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "producto_id"}, {Name: "sucursal_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

func (r *stockRepo) LockTx(tx *gorm.DB, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error) {
	var s model.StockSucursal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("producto_id = ? AND sucursal_id = ?", productoID, sucursalID).
		First(&s).Error
	return &s, err
}

func (r *stockRepo) UpdateCantidadTx(tx *gorm.DB, id uuid.UUID, cantidad int) error {
	return tx.Model(&model.StockSucursal{}).Where("id = ?", id).Update("cantidad", cantidad).Error
}

func (r *stockRepo) UpdateLimitesTx(tx *gorm.DB, id uuid.UUID, minimo, maximo int) error {
	return tx.Model(&model.StockSucursal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"stock_minimo": minimo,
		"stock_maximo": maximo,
	}).Error
}

// globalScope restricts stock rows to active rows of active branches owned by
// the product's restaurant.
func (r *stockRepo) globalScope(ctx context.Context, productoID, restauranteID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.StockSucursal{}).
		Joins("JOIN sucursales ON sucursales.id = stock_sucursal.sucursal_id").
		Where("stock_sucursal.producto_id = ?", productoID).
		Where("stock_sucursal.activo = ?", true).
		Where("sucursales.activo = ? AND sucursales.restaurante_id = ?", true, restauranteID)
}

func (r *stockRepo) SumGlobal(ctx context.Context, productoID, restauranteID uuid.UUID) (int64, error) {
	var total int64
	err := r.globalScope(ctx, productoID, restauranteID).
		Select("COALESCE(SUM(stock_sucursal.cantidad), 0)").
		Scan(&total).Error
	return total, err
}

func (r *stockRepo) ListPorProducto(ctx context.Context, productoID, restauranteID uuid.UUID) ([]StockPorSucursal, error) {
	var rows []StockPorSucursal
	err := r.globalScope(ctx, productoID, restauranteID).
		Select("stock_sucursal.sucursal_id AS sucursal_id, sucursales.nombre AS sucursal_nombre, stock_sucursal.cantidad AS cantidad").
		Order("sucursales.nombre ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *stockRepo) ListPorSucursal(ctx context.Context, sucursalID uuid.UUID) ([]model.StockSucursal, error) {
	var rows []model.StockSucursal
	err := r.db.WithContext(ctx).Preload("Producto").
		Where("sucursal_id = ? AND activo = ?", sucursalID, true).
		Find(&rows).Error
	return rows, err
}

func (r *stockRepo) ListAlertas(ctx context.Context, sucursalID uuid.UUID) ([]model.StockSucursal, error) {
	var rows []model.StockSucursal
	err := r.db.WithContext(ctx).Preload("Producto").
		Where("sucursal_id = ? AND activo = ? AND cantidad <= stock_minimo", sucursalID, true).
		Order("cantidad ASC").
		Find(&rows).Error
	return rows, err
}

func (r *stockRepo) Find(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error) {
	var s model.StockSucursal
	err := r.db.WithContext(ctx).
		Where("producto_id = ? AND sucursal_id = ?", productoID, sucursalID).
		First(&s).Error
	return &s, err
}
