package service

import (
	"context"
	"testing"

	"mesapos/internal/dto"
	"mesapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entregar walks a confirmed venta through the kitchen.
func (f *fixture) entregar(ventaID string) {
	f.t.Helper()
	id := mustUUID(f.t, ventaID)
	for _, e := range []model.EstadoVenta{model.VentaPreparando, model.VentaListo, model.VentaEntregado} {
		_, err := f.ventas.AvanzarEstado(context.Background(), actor(model.RolCocina), id, e)
		require.NoError(f.t, err)
	}
}

func pago(monto int64) Pago {
	return Pago{Metodo: "efectivo", Monto: decimal.NewFromInt(monto)}
}

func TestAbrirSesion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.mesa(1)

	_, err := f.mesas.AbrirSesion(ctx, actor(model.RolCocina), m.ID)
	assert.ErrorIs(t, err, ErrPermisoDenegado)

	resp, err := f.mesas.AbrirSesion(ctx, actor(model.RolMozo), m.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.MesaOcupada), resp.Estado)
	require.NotNil(t, resp.SesionAbiertaAt)
	assert.True(t, resp.TotalAcumulado.IsZero())

	var abiertas int64
	require.NoError(t, f.db.Model(&model.Prefactura{}).
		Where("mesa_id = ? AND estado = ?", m.ID, model.PrefacturaAbierta).Count(&abiertas).Error)
	assert.Equal(t, int64(1), abiertas)

	_, err = f.mesas.AbrirSesion(ctx, actor(model.RolMozo), m.ID)
	assert.ErrorIs(t, err, ErrMesaNoLibre)

	_, err = f.mesas.AbrirSesion(ctx, actor(model.RolMozo), uuid.New())
	assert.ErrorIs(t, err, ErrMesaNoEncontrada)
}

func TestSolicitarCuenta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.mesa(1)
	mozo := actor(model.RolMozo)

	_, err := f.mesas.SolicitarCuenta(ctx, mozo, m.ID)
	assert.ErrorIs(t, err, ErrMesaSinSesion)
	assert.ErrorIs(t, err, ErrTransicionInvalida)

	_, err = f.mesas.AbrirSesion(ctx, mozo, m.ID)
	require.NoError(t, err)

	resp, err := f.mesas.SolicitarCuenta(ctx, mozo, m.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.MesaCuentaSolicitada), resp.Estado)

	_, err = f.mesas.SolicitarCuenta(ctx, mozo, m.ID)
	assert.ErrorIs(t, err, ErrTransicionInvalida)
	assert.Contains(t, f.pub.tipos(), dto.EventoCuentaSolicitada)
}

func TestCerrarSesion_CicloCompleto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	q := f.producto("Gaseosa", 900)
	f.stockInicial(p, f.sucursal, 10)
	f.stockInicial(q, f.sucursal, 10)
	m := f.mesa(5)
	cajero := actor(model.RolCajero)

	v1, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(p, 1), linea(q, 2)))
	require.NoError(t, err)
	v2, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	_, err = f.mesas.SolicitarCuenta(ctx, actor(model.RolMozo), m.ID)
	require.NoError(t, err)

	_, err = f.mesas.CerrarSesion(ctx, cajero, m.ID, pago(10000))
	assert.ErrorIs(t, err, ErrOrdenesPendientes)
	assert.Equal(t, model.MesaCuentaSolicitada, f.recargarMesa(m.ID).Estado, "rejected close leaves the table untouched")

	f.entregar(v1.ID)
	f.entregar(v2.ID)

	_, err = f.mesas.CerrarSesion(ctx, cajero, m.ID, pago(9000))
	assert.ErrorIs(t, err, ErrPagoInsuficiente)

	pref, err := f.mesas.CerrarSesion(ctx, cajero, m.ID, pago(10000))
	require.NoError(t, err)
	assert.Equal(t, string(model.PrefacturaCerrada), pref.Estado)
	assert.True(t, decimal.NewFromInt(9800).Equal(pref.Total))
	assert.True(t, pref.Discrepancia.IsZero())
	assert.True(t, decimal.NewFromInt(200).Equal(pref.Vuelto))
	assert.False(t, pref.CierreForzado)
	require.NotNil(t, pref.MetodoPago)
	assert.Equal(t, "efectivo", *pref.MetodoPago)

	mesa := f.recargarMesa(m.ID)
	assert.Equal(t, model.MesaLibre, mesa.Estado)
	assert.Nil(t, mesa.SesionAbiertaAt)
	assert.True(t, mesa.TotalAcumulado.IsZero())

	_, err = f.mesas.CerrarSesion(ctx, cajero, m.ID, pago(0))
	assert.ErrorIs(t, err, ErrMesaSinSesion)

	f.pub.mu.Lock()
	ultimo := f.pub.eventos[len(f.pub.eventos)-1]
	f.pub.mu.Unlock()
	assert.Equal(t, dto.EventoMesaCerrada, ultimo.Type)
	require.NotNil(t, ultimo.Prefactura)
	require.Len(t, ultimo.Items, 2, "ticket lines aggregate per product")
	for _, it := range ultimo.Items {
		if it.Producto == "Pizza" {
			assert.Equal(t, 2, it.Cantidad)
			assert.True(t, decimal.NewFromInt(8000).Equal(it.Subtotal))
		}
	}
}

func TestCerrarSesion_NuevaSesionNoHeredaVentas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 10)
	m := f.mesa(5)
	cajero := actor(model.RolCajero)

	v, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	f.entregar(v.ID)
	_, err = f.mesas.CerrarSesion(ctx, cajero, m.ID, pago(8000))
	require.NoError(t, err)

	v2, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	f.entregar(v2.ID)
	pref, err := f.mesas.CerrarSesion(ctx, cajero, m.ID, pago(4000))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4000).Equal(pref.Total), "previous session's sales are not billed again")

	hist, err := f.mesas.HistorialSesiones(ctx, m.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hist.Total)
	assert.Equal(t, pref.ID, hist.Data[0].ID, "newest session first")
}

func TestCerrarSesion_Forzado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 10)
	m := f.mesa(5)

	_, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)

	forzado := Pago{Metodo: "efectivo", Forzar: true}
	_, err = f.mesas.CerrarSesion(ctx, actor(model.RolCajero), m.ID, forzado)
	assert.ErrorIs(t, err, ErrPermisoDenegado, "only administradores force a close")

	pref, err := f.mesas.CerrarSesion(ctx, actor(model.RolAdministrador), m.ID, forzado)
	require.NoError(t, err)
	assert.True(t, pref.CierreForzado)
	assert.True(t, decimal.NewFromInt(4000).Equal(pref.Total))
	assert.True(t, pref.Vuelto.IsZero())
	assert.Equal(t, model.MesaLibre, f.recargarMesa(m.ID).Estado)
	assert.Equal(t, 9, f.cantidad(p, f.sucursal), "forced close does not reverse stock")
}

func TestCerrarSesion_CancelaPedidosSinAprobar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 10)
	m := f.mesa(5)

	sinAprobar, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 3)))
	require.NoError(t, err)

	pref, err := f.mesas.CerrarSesion(ctx, actor(model.RolCajero), m.ID, pago(0))
	require.NoError(t, err)
	assert.True(t, pref.Total.IsZero())
	assert.False(t, pref.CierreForzado)

	v := f.recargarVenta(mustUUID(t, sinAprobar.ID))
	assert.Equal(t, model.VentaCancelada, v.Estado)
	require.NotNil(t, v.MotivoCancelacion)
	assert.Equal(t, 10, f.cantidad(p, f.sucursal))
}

func TestCerrarSesion_SesionAbandonada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.mesa(9)

	_, err := f.mesas.AbrirSesion(ctx, actor(model.RolMozo), m.ID)
	require.NoError(t, err)

	_, err = f.mesas.CerrarSesion(ctx, actor(model.RolMozo), m.ID, pago(0))
	assert.ErrorIs(t, err, ErrPermisoDenegado)

	pref, err := f.mesas.CerrarSesion(ctx, actor(model.RolCajero), m.ID, Pago{})
	require.NoError(t, err)
	assert.True(t, pref.Total.IsZero())
	assert.Nil(t, pref.MetodoPago)

	_, err = f.mesas.CerrarSesion(ctx, actor(model.RolCajero), m.ID, Pago{Monto: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrPagoInsuficiente)
}

func TestListarMesas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mesa(3)
	f.mesa(1)
	baja := f.mesa(2)
	require.NoError(t, f.db.Model(baja).Update("activo", false).Error)

	mesas, err := f.mesas.ListarMesas(ctx, f.sucursal.ID)
	require.NoError(t, err)
	require.Len(t, mesas, 2)
	assert.Equal(t, 1, mesas[0].Numero)
	assert.Equal(t, 3, mesas[1].Numero)

	_, err = f.mesas.AbrirSesion(ctx, actor(model.RolMozo), baja.ID)
	assert.ErrorIs(t, err, ErrMesaNoEncontrada)
}
