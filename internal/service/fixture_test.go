package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/infra"
	"mesapos/internal/model"
	"mesapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── Test clock ───────────────────────────────────────────────────────────────

// relojTest advances one second per call so every persisted timestamp is distinct.
type relojTest struct {
	mu sync.Mutex
	t  time.Time
}

func (r *relojTest) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t = r.t.Add(time.Second)
	return r.t
}

// ── Event capture ────────────────────────────────────────────────────────────

type capturaPublicador struct {
	mu      sync.Mutex
	eventos []dto.Evento
}

func (p *capturaPublicador) Publicar(_ context.Context, ev dto.Evento) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventos = append(p.eventos, ev)
}

func (p *capturaPublicador) tipos() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.eventos))
	for _, ev := range p.eventos {
		out = append(out, ev.Type)
	}
	return out
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	t             *testing.T
	db            *gorm.DB
	restauranteID uuid.UUID
	sucursal      *model.Sucursal

	stock  *stockService
	conc   *conciliacionService
	mesas  *mesaService
	ventas *ventaService
	pub    *capturaPublicador
	reloj  *relojTest
}

// newTestDB opens a private in-memory sqlite database. One connection means
// transactions run one at a time, like rows locked FOR UPDATE would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.RunMigrations(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	txr := NewTxRunner(db, 5*time.Second, 2)
	reloj := &relojTest{t: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	pub := &capturaPublicador{}

	stockRepo := repository.NewStockRepository(db)
	movRepo := repository.NewMovimientoStockRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	sucursalRepo := repository.NewSucursalRepository(db)
	mesaRepo := repository.NewMesaRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	prefacturaRepo := repository.NewPrefacturaRepository(db)

	stock := NewStockService(txr, stockRepo, movRepo, productoRepo, sucursalRepo, LimitesDefault{Minimo: 2}).(*stockService)
	stock.now = reloj.Now
	conc := NewConciliacionService(txr, mesaRepo, ventaRepo).(*conciliacionService)
	conc.now = reloj.Now
	mesas := NewMesaService(txr, mesaRepo, prefacturaRepo, ventaRepo, conc, pub).(*mesaService)
	mesas.now = reloj.Now
	ventas := NewVentaService(txr, ventaRepo, productoRepo, sucursalRepo, stock, mesas, pub).(*ventaService)
	ventas.now = reloj.Now

	f := &fixture{
		t:             t,
		db:            db,
		restauranteID: uuid.New(),
		stock:         stock,
		conc:          conc,
		mesas:         mesas,
		ventas:        ventas,
		pub:           pub,
		reloj:         reloj,
	}
	f.sucursal = f.nuevaSucursal("Centro")
	return f
}

func (f *fixture) nuevaSucursal(nombre string) *model.Sucursal {
	f.t.Helper()
	s := &model.Sucursal{RestauranteID: f.restauranteID, Nombre: nombre, Activo: true}
	require.NoError(f.t, f.db.Create(s).Error)
	return s
}

func (f *fixture) producto(nombre string, precio int64) *model.Producto {
	f.t.Helper()
	p := &model.Producto{RestauranteID: f.restauranteID, Nombre: nombre, Precio: decimal.NewFromInt(precio), Activo: true}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

func (f *fixture) mesa(numero int) *model.Mesa {
	f.t.Helper()
	m := &model.Mesa{SucursalID: f.sucursal.ID, Numero: numero, Activo: true}
	require.NoError(f.t, f.db.Create(m).Error)
	return m
}

// stockInicial loads stock through the ledger so the movement log stays complete.
func (f *fixture) stockInicial(p *model.Producto, s *model.Sucursal, cantidad int) {
	f.t.Helper()
	_, err := f.stock.Mutar(context.Background(), MutacionStock{
		ProductoID: p.ID, SucursalID: s.ID, Delta: cantidad, Tipo: model.MovimientoCompra, Motivo: "stock inicial",
	})
	require.NoError(f.t, err)
}

func (f *fixture) cantidad(p *model.Producto, s *model.Sucursal) int {
	f.t.Helper()
	var row model.StockSucursal
	require.NoError(f.t, f.db.Where("producto_id = ? AND sucursal_id = ?", p.ID, s.ID).First(&row).Error)
	return row.Cantidad
}

func (f *fixture) recargarMesa(id uuid.UUID) *model.Mesa {
	f.t.Helper()
	var m model.Mesa
	require.NoError(f.t, f.db.Where("id = ?", id).First(&m).Error)
	return &m
}

func (f *fixture) recargarVenta(id uuid.UUID) *model.Venta {
	f.t.Helper()
	var v model.Venta
	require.NoError(f.t, f.db.Preload("Items").Where("id = ?", id).First(&v).Error)
	return &v
}

func (f *fixture) movimientos(referencia uuid.UUID) []model.MovimientoStock {
	f.t.Helper()
	var movs []model.MovimientoStock
	require.NoError(f.t, f.db.Where("referencia_id = ?", referencia).Order("created_at ASC").Find(&movs).Error)
	return movs
}

func actor(rol model.Rol) Actor {
	return Actor{ID: uuid.New(), Rol: rol}
}

// pedido builds a CrearVentaRequest for a table.
func (f *fixture) pedido(m *model.Mesa, lineas ...dto.ItemVentaRequest) dto.CrearVentaRequest {
	req := dto.CrearVentaRequest{SucursalID: f.sucursal.ID.String(), Items: lineas}
	if m != nil {
		id := m.ID.String()
		req.MesaID = &id
	}
	return req
}

func linea(p *model.Producto, cantidad int) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{ProductoID: p.ID.String(), Cantidad: cantidad}
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
