//go:build integration

package router

// Integration tests against real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v
//
// They cover what sqlite cannot: SELECT ... FOR UPDATE under real concurrency
// and the Redis event queue consumed by the worker pool.

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"mesapos/internal/config"
	"mesapos/internal/dto"
	"mesapos/internal/infra"
	"mesapos/internal/model"
	"mesapos/internal/worker"
	"mesapos/internal/ws"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type difusorCanal chan dto.Evento

func (d difusorCanal) Publicar(ev dto.Evento) { d <- ev }

func setupIntegracion(t *testing.T) (*testEnv, *redis.Client, *infra.CircuitBreaker) {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx,
		"postgres:16-alpine",
		tcPostgres.WithDatabase("mesapos_test"),
		tcPostgres.WithUsername("mesapos"),
		tcPostgres.WithPassword("mesapos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          testSecret,
		TxTimeout:          5 * time.Second,
		TxMaxRetries:       3,
		StockMinimoDefault: 2,
		CORSOrigins:        "*",
		RateLimit:          10000,
	}

	hub := ws.NewHub()
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig("eventos"))
	pub := &capturaPublicador{}
	svcs := NewServices(cfg, db, pub)

	sucursal := &model.Sucursal{RestauranteID: uuid.New(), Nombre: "Centro", Activo: true}
	require.NoError(t, db.Create(sucursal).Error)

	env := &testEnv{
		t:        t,
		engine:   New(cfg, db, rdb, cb, hub, svcs),
		db:       db,
		pub:      pub,
		sucursal: sucursal,
		tokens:   map[model.Rol]string{},
	}
	for _, rol := range []model.Rol{model.RolMozo, model.RolCajero, model.RolCocina, model.RolAdministrador} {
		env.tokens[rol] = env.firmar(rol)
	}
	return env, rdb, cb
}

func TestIntegracion_PedidosConcurrentesNuncaSobrevenden(t *testing.T) {
	env, _, _ := setupIntegracion(t)
	p := env.producto("Provoleta", 5200)
	env.compra(p, 10)

	const n = 25
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.pedido(model.RolCajero, nil, p, 1).Code
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, n-10, conflict)
	assert.EqualValues(t, 0, env.stockGlobal(p).Total)

	var movs int64
	require.NoError(t, env.db.Model(&model.MovimientoStock{}).
		Where("producto_id = ? AND tipo = ?", p.ID, model.MovimientoVenta).Count(&movs).Error)
	assert.EqualValues(t, 10, movs)
}

func TestIntegracion_TransferenciasCruzadasSinDeadlock(t *testing.T) {
	env, _, _ := setupIntegracion(t)
	norte := &model.Sucursal{RestauranteID: env.sucursal.RestauranteID, Nombre: "Norte", Activo: true}
	require.NoError(t, env.db.Create(norte).Error)

	p := env.producto("Harina", 900)
	env.compra(p, 50)
	w := env.do(http.MethodPost, "/v1/stock/compras", model.RolCajero, dto.CompraRequest{
		ProductoID: p.ID.String(), SucursalID: norte.ID.String(), Cantidad: 50,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		origen, destino := env.sucursal.ID, norte.ID
		if i%2 == 1 {
			origen, destino = destino, origen
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(http.MethodPost, "/v1/stock/transferencias", model.RolAdministrador, dto.TransferenciaRequest{
				ProductoID: p.ID.String(), SucursalOrigenID: origen.String(), SucursalDestinoID: destino.String(), Cantidad: 1,
			})
			assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 100, env.stockGlobal(p).Total, "transfers never create or destroy units")
}

func TestIntegracion_EventosPorRedis(t *testing.T) {
	_, rdb, cb := setupIntegracion(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recibidos := make(difusorCanal, 8)
	worker.StartWorkerPool(ctx, rdb, 2, &worker.Procesador{Difusor: recibidos, PDFStoragePath: t.TempDir()})

	d := worker.NewDispatcher(rdb, cb, nil)
	ev := dto.Evento{Type: dto.EventoVentaConfirmada, SucursalID: uuid.NewString(), VentaID: uuid.NewString()}
	d.Publicar(ctx, ev)

	select {
	case got := <-recibidos:
		assert.Equal(t, ev.VentaID, got.VentaID)
	case <-time.After(10 * time.Second):
		t.Fatal("event not delivered through redis")
	}
	assert.Equal(t, infra.CBClosed, cb.State())

	// a ticket job that can never succeed ends in the DLQ
	require.NoError(t, rdb.LPush(ctx, worker.QueueEventos, `{"type":"ticket","payload":{"type":"venta_estado"}}`).Err())
	assert.Eventually(t, func() bool {
		n, err := worker.DLQLength(ctx, rdb, worker.QueueEventos)
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)
}
