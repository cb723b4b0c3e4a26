package infra

import (
	"fmt"
	"time"

	"mesapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate for
// every model, then applies the idempotent SQL patches that GORM cannot express
// (partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&model.Sucursal{},
		&model.Producto{},
		&model.StockSucursal{},
		&model.MovimientoStock{},
		&model.Mesa{},
		&model.Venta{},
		&model.VentaItem{},
		&model.Prefactura{},
	}
}

// RunMigrations creates / updates all tables. Postgres-only patches are skipped
// on other dialects so tests can run the same path on sqlite.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own. Each statement is guarded so re-running is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// One open prefactura per mesa.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_prefacturas_mesa_abierta
		    ON prefacturas (mesa_id)
		    WHERE estado = 'abierta'`,
		// Movement log queries by branch and date (reporting surface).
		`CREATE INDEX IF NOT EXISTS idx_movimientos_stock_sucursal_fecha
		    ON movimientos_stock (sucursal_id, created_at DESC)`,
		// Session history per mesa.
		`CREATE INDEX IF NOT EXISTS idx_prefacturas_mesa_cerrada
		    ON prefacturas (mesa_id, cerrada_at DESC)
		    WHERE estado = 'cerrada'`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_stock_sucursal_cantidad') THEN
		    ALTER TABLE stock_sucursal ADD CONSTRAINT chk_stock_sucursal_cantidad CHECK (cantidad >= 0);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
