package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mesapos/internal/dto"
	"mesapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrearVenta_MozoQuedaPendienteAprobacion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 5)
	m := f.mesa(1)

	resp, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	assert.Equal(t, string(model.VentaPendienteAprobacion), resp.Estado)
	assert.Nil(t, resp.ConfirmadaAt)
	assert.True(t, decimal.NewFromInt(8000).Equal(resp.Total))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Pizza", resp.Items[0].Producto)

	assert.Equal(t, 5, f.cantidad(p, f.sucursal), "unapproved orders do not touch stock")
	mesa := f.recargarMesa(m.ID)
	assert.Equal(t, model.MesaOcupada, mesa.Estado, "first order opens the session")
	assert.True(t, mesa.TotalAcumulado.IsZero())

	assert.Equal(t, []string{dto.EventoMesaAbierta, dto.EventoVentaCreada}, f.pub.tipos())
}

func TestCrearVenta_CajeroConfirmaDirecto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	q := f.producto("Gaseosa", 900)
	f.stockInicial(p, f.sucursal, 5)
	f.stockInicial(q, f.sucursal, 10)
	m := f.mesa(2)

	resp, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), f.pedido(m, linea(p, 1), linea(q, 3)))
	require.NoError(t, err)
	assert.Equal(t, string(model.VentaPendiente), resp.Estado)
	assert.NotNil(t, resp.ConfirmadaAt)

	assert.Equal(t, 4, f.cantidad(p, f.sucursal))
	assert.Equal(t, 7, f.cantidad(q, f.sucursal))

	ventaID := mustUUID(t, resp.ID)
	movs := f.movimientos(ventaID)
	require.Len(t, movs, 2)
	for _, mv := range movs {
		assert.Equal(t, model.MovimientoVenta, mv.Tipo)
	}

	mesa := f.recargarMesa(m.ID)
	assert.True(t, decimal.NewFromInt(6700).Equal(mesa.TotalAcumulado))
	assert.Contains(t, f.pub.tipos(), dto.EventoVentaConfirmada)
}

func TestCrearVenta_MostradorSinMesa(t *testing.T) {
	f := newFixture(t)
	p := f.producto("Cafe", 700)
	f.stockInicial(p, f.sucursal, 2)

	resp, err := f.ventas.CrearVenta(context.Background(), actor(model.RolCajero), f.pedido(nil, linea(p, 2)))
	require.NoError(t, err)
	assert.Nil(t, resp.MesaID)
	assert.Equal(t, 0, f.cantidad(p, f.sucursal))
}

func TestCrearVenta_StockInsuficienteNoDejaRastro(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	q := f.producto("Postre", 1200)
	f.stockInicial(p, f.sucursal, 5)
	f.stockInicial(q, f.sucursal, 1)
	m := f.mesa(3)

	_, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), f.pedido(m, linea(p, 2), linea(q, 2)))
	require.ErrorIs(t, err, ErrStockInsuficiente)

	assert.Equal(t, 5, f.cantidad(p, f.sucursal), "no partial commit")
	assert.Equal(t, 1, f.cantidad(q, f.sucursal))
	var n int64
	require.NoError(t, f.db.Model(&model.Venta{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, model.MesaLibre, f.recargarMesa(m.ID).Estado, "session opening rolls back too")
	assert.Empty(t, f.pub.tipos(), "no events for aborted transactions")
}

func TestCrearVenta_LineasRepetidasReportanDisponibleReal(t *testing.T) {
	f := newFixture(t)
	p := f.producto("Milanesa", 1500)
	f.stockInicial(p, f.sucursal, 4)

	_, err := f.ventas.CrearVenta(context.Background(), actor(model.RolCajero), f.pedido(nil, linea(p, 2), linea(p, 3)))
	require.ErrorIs(t, err, ErrStockInsuficiente)

	var stockErr *StockInsuficienteError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, p.ID, stockErr.ProductoID)
	assert.Equal(t, 4, stockErr.Disponible, "on hand before the order, not after the first line")
	assert.Equal(t, 5, stockErr.Solicitado, "combined quantity of every line of the product")
	assert.Equal(t, 4, f.cantidad(p, f.sucursal))
}

func TestCrearVenta_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	m := f.mesa(4)

	_, err := f.ventas.CrearVenta(ctx, actor(model.RolCocina), f.pedido(m, linea(p, 1)))
	assert.ErrorIs(t, err, ErrPermisoDenegado)

	_, err = f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m))
	assert.ErrorIs(t, err, ErrCantidadInvalida)

	_, err = f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 0)))
	assert.ErrorIs(t, err, ErrCantidadInvalida)

	_, err = f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, dto.ItemVentaRequest{ProductoID: uuid.NewString(), Cantidad: 1}))
	assert.ErrorIs(t, err, ErrProductoOSucursalDesconocida)

	inactivo := f.producto("Fuera de carta", 100)
	require.NoError(t, f.db.Model(inactivo).Update("activo", false).Error)
	_, err = f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(inactivo, 1)))
	assert.ErrorIs(t, err, ErrProductoInactivo)

	otra := f.nuevaSucursal("Norte")
	req := f.pedido(m, linea(p, 1))
	req.SucursalID = otra.ID.String()
	_, err = f.ventas.CrearVenta(ctx, actor(model.RolMozo), req)
	assert.ErrorIs(t, err, ErrMesaNoEncontrada, "table of another branch")
}

func TestAprobarVenta_ConfirmaStockYTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 5)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)

	_, err = f.ventas.AprobarVenta(ctx, actor(model.RolMozo), ventaID)
	assert.ErrorIs(t, err, ErrPermisoDenegado)

	aprobada, err := f.ventas.AprobarVenta(ctx, actor(model.RolCajero), ventaID)
	require.NoError(t, err)
	assert.Equal(t, string(model.VentaPendiente), aprobada.Estado)
	assert.NotNil(t, aprobada.ConfirmadaAt)

	assert.Equal(t, 3, f.cantidad(p, f.sucursal))
	assert.True(t, decimal.NewFromInt(8000).Equal(f.recargarMesa(m.ID).TotalAcumulado))
	movs := f.movimientos(ventaID)
	require.Len(t, movs, 1)
	assert.Equal(t, -2, movs[0].Cantidad)

	_, err = f.ventas.AprobarVenta(ctx, actor(model.RolCajero), ventaID)
	assert.ErrorIs(t, err, ErrTransicionInvalida, "approving twice")
	assert.Equal(t, 3, f.cantidad(p, f.sucursal))
}

func TestAprobarVenta_SinStockSigueEsperando(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 1)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)

	_, err = f.ventas.AprobarVenta(ctx, actor(model.RolCajero), ventaID)
	var stockErr *StockInsuficienteError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Pizza", stockErr.Producto)

	v := f.recargarVenta(ventaID)
	assert.Equal(t, model.VentaPendienteAprobacion, v.Estado)
	assert.Nil(t, v.ConfirmadaAt)
	assert.Equal(t, 1, f.cantidad(p, f.sucursal))
	assert.True(t, f.recargarMesa(m.ID).TotalAcumulado.IsZero())

	// restock, then the same order goes through
	f.stockInicial(p, f.sucursal, 5)
	_, err = f.ventas.AprobarVenta(ctx, actor(model.RolCajero), ventaID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.cantidad(p, f.sucursal))
}

func TestAprobarVenta_ConcurrenteSobreStockLimitado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 5)
	m1, m2 := f.mesa(1), f.mesa(2)

	a, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m1, linea(p, 3)))
	require.NoError(t, err)
	b, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m2, linea(p, 3)))
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.ventas.AprobarVenta(ctx, actor(model.RolCajero), id)
		}(i, mustUUID(t, id))
	}
	wg.Wait()

	exitos := 0
	for _, err := range errs {
		if err == nil {
			exitos++
			continue
		}
		assert.ErrorIs(t, err, ErrStockInsuficiente)
	}
	assert.Equal(t, 1, exitos)
	assert.Equal(t, 2, f.cantidad(p, f.sucursal))
}

func TestAprobarVenta_DobleAprobacionConcurrente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 10)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ventas.AprobarVenta(ctx, actor(model.RolAdministrador), ventaID)
		}(i)
	}
	wg.Wait()

	exitos := 0
	for _, err := range errs {
		if err == nil {
			exitos++
			continue
		}
		assert.ErrorIs(t, err, ErrTransicionInvalida)
	}
	assert.Equal(t, 1, exitos)
	assert.Equal(t, 8, f.cantidad(p, f.sucursal), "stock committed exactly once")
	assert.True(t, decimal.NewFromInt(8000).Equal(f.recargarMesa(m.ID).TotalAcumulado))
}

func TestRechazarVenta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)

	_, err = f.ventas.RechazarVenta(ctx, actor(model.RolCajero), ventaID, "   ")
	assert.ErrorIs(t, err, ErrMotivoRequerido)

	resp, err := f.ventas.RechazarVenta(ctx, actor(model.RolCajero), ventaID, "sin stock de masa")
	require.NoError(t, err)
	assert.Equal(t, string(model.VentaCancelada), resp.Estado)
	require.NotNil(t, resp.MotivoCancelacion)
	assert.Equal(t, "sin stock de masa", *resp.MotivoCancelacion)
	assert.Empty(t, f.movimientos(ventaID))

	_, err = f.ventas.RechazarVenta(ctx, actor(model.RolCajero), ventaID, "otra vez")
	assert.ErrorIs(t, err, ErrTransicionInvalida)
}

func TestAvanzarEstado_SecuenciaCocina(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 5)
	m := f.mesa(1)
	cocina := actor(model.RolCocina)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)

	_, err = f.ventas.AvanzarEstado(ctx, actor(model.RolMozo), ventaID, model.VentaPreparando)
	assert.ErrorIs(t, err, ErrPermisoDenegado)

	_, err = f.ventas.AvanzarEstado(ctx, cocina, ventaID, model.VentaListo)
	assert.ErrorIs(t, err, ErrTransicionInvalida, "kitchen cannot skip preparando")

	for _, estado := range []model.EstadoVenta{model.VentaPreparando, model.VentaListo, model.VentaEntregado} {
		resp, err := f.ventas.AvanzarEstado(ctx, cocina, ventaID, estado)
		require.NoError(t, err)
		assert.Equal(t, string(estado), resp.Estado)
	}

	_, err = f.ventas.AvanzarEstado(ctx, cocina, ventaID, model.VentaPendiente)
	assert.ErrorIs(t, err, ErrTransicionInvalida)
	assert.Equal(t, 4, f.cantidad(p, f.sucursal), "kitchen steps never touch stock")
}

func TestAvanzarEstado_PendienteAprobacionNoEntraACocina(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)

	_, err = f.ventas.AvanzarEstado(ctx, actor(model.RolCocina), mustUUID(t, creada.ID), model.VentaPreparando)
	assert.ErrorIs(t, err, ErrTransicionInvalida)
}

func TestCancelarVenta_ConfirmadaRevierteStockYTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	q := f.producto("Gaseosa", 900)
	f.stockInicial(p, f.sucursal, 5)
	f.stockInicial(q, f.sucursal, 5)
	m := f.mesa(1)
	cajero := actor(model.RolCajero)

	_, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(q, 1)))
	require.NoError(t, err)
	creada, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(p, 2), linea(q, 2)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)
	_, err = f.ventas.AvanzarEstado(ctx, actor(model.RolCocina), ventaID, model.VentaPreparando)
	require.NoError(t, err)

	resp, err := f.ventas.CancelarVenta(ctx, cajero, ventaID, "cliente se retiro")
	require.NoError(t, err)
	assert.Equal(t, string(model.VentaCancelada), resp.Estado)

	assert.Equal(t, 5, f.cantidad(p, f.sucursal))
	assert.Equal(t, 4, f.cantidad(q, f.sucursal), "only the cancelled order is reversed")
	assert.True(t, decimal.NewFromInt(900).Equal(f.recargarMesa(m.ID).TotalAcumulado))

	movs := f.movimientos(ventaID)
	require.Len(t, movs, 4)
	reversiones := 0
	for _, mv := range movs {
		if mv.Tipo == model.MovimientoReversionCancelacion {
			reversiones++
			assert.Positive(t, mv.Cantidad)
		}
	}
	assert.Equal(t, 2, reversiones)

	_, err = f.ventas.CancelarVenta(ctx, cajero, ventaID, "de nuevo")
	assert.ErrorIs(t, err, ErrTransicionInvalida, "cancelling twice")
	assert.Equal(t, 5, f.cantidad(p, f.sucursal), "no double reversal")
}

func TestCancelarVenta_SinConfirmarNoGeneraMovimientos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 5)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)

	_, err = f.ventas.CancelarVenta(ctx, actor(model.RolMozo), ventaID, "error de carga")
	assert.ErrorIs(t, err, ErrPermisoDenegado)

	_, err = f.ventas.CancelarVenta(ctx, actor(model.RolCajero), ventaID, "error de carga")
	require.NoError(t, err)
	assert.Empty(t, f.movimientos(ventaID))
	assert.Equal(t, 5, f.cantidad(p, f.sucursal))
}

func TestCancelarVenta_AnulaEntregada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 5)
	m := f.mesa(1)

	creada, err := f.ventas.CrearVenta(ctx, actor(model.RolAdministrador), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	ventaID := mustUUID(t, creada.ID)
	for _, e := range []model.EstadoVenta{model.VentaPreparando, model.VentaListo, model.VentaEntregado} {
		_, err = f.ventas.AvanzarEstado(ctx, actor(model.RolCocina), ventaID, e)
		require.NoError(t, err)
	}

	_, err = f.ventas.CancelarVenta(ctx, actor(model.RolAdministrador), ventaID, "reclamo")
	require.NoError(t, err)
	assert.Equal(t, 5, f.cantidad(p, f.sucursal))
	assert.True(t, f.recargarMesa(m.ID).TotalAcumulado.IsZero())
}

func TestObtenerYListarVentas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 10)
	m := f.mesa(7)

	normal, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	urgente := f.pedido(m, linea(p, 1))
	urgente.Prioridad = true
	prio, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), urgente)
	require.NoError(t, err)

	got, err := f.ventas.ObtenerVenta(ctx, mustUUID(t, normal.ID))
	require.NoError(t, err)
	require.NotNil(t, got.MesaNumero)
	assert.Equal(t, 7, *got.MesaNumero)

	_, err = f.ventas.ObtenerVenta(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrVentaNoEncontrada)

	list, err := f.ventas.ListarVentas(ctx, dto.VentaFilter{SucursalID: f.sucursal.ID.String()})
	require.NoError(t, err)
	require.Equal(t, int64(2), list.Total)
	assert.Equal(t, prio.ID, list.Data[0].ID, "priority orders first")
}
