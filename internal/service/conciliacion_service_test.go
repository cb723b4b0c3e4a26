package service

import (
	"context"
	"testing"
	"time"

	"mesapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalcular_CoincideConElCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	q := f.producto("Gaseosa", 900)
	f.stockInicial(p, f.sucursal, 10)
	f.stockInicial(q, f.sucursal, 10)
	m := f.mesa(1)
	cajero := actor(model.RolCajero)

	_, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(p, 2)))
	require.NoError(t, err)
	cancelada, err := f.ventas.CrearVenta(ctx, cajero, f.pedido(m, linea(q, 3)))
	require.NoError(t, err)
	mozo, err := f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(q, 1)))
	require.NoError(t, err)
	_, err = f.ventas.AprobarVenta(ctx, cajero, mustUUID(t, mozo.ID))
	require.NoError(t, err)
	_, err = f.ventas.CancelarVenta(ctx, cajero, mustUUID(t, cancelada.ID), "mal cargado")
	require.NoError(t, err)
	_, err = f.ventas.CrearVenta(ctx, actor(model.RolMozo), f.pedido(m, linea(p, 5)))
	require.NoError(t, err, "unapproved orders are not billed")

	c, err := f.conc.Recalcular(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(8900).Equal(c.TotalCalculado), c.TotalCalculado.String())
	assert.True(t, c.TotalCalculado.Equal(c.TotalCacheado))
	assert.True(t, c.Discrepancia.IsZero())
	assert.Equal(t, "normal", c.Clasificacion)
	assert.Len(t, c.Ventas, 2)
	assert.Empty(t, c.VentasFueraDeSesion)
}

func TestRecalcular_ReportaDiscrepanciaSinCorregir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	f.stockInicial(p, f.sucursal, 10)
	m := f.mesa(1)

	_, err := f.ventas.CrearVenta(ctx, actor(model.RolCajero), f.pedido(m, linea(p, 1)))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Mesa{}).Where("id = ?", m.ID).
		Update("total_acumulado", decimal.NewFromInt(3000)).Error)

	c, err := f.conc.Recalcular(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(c.Discrepancia))
	assert.Equal(t, "critico", c.Clasificacion)
	assert.True(t, decimal.NewFromInt(3000).Equal(f.recargarMesa(m.ID).TotalAcumulado), "cache is never corrected")

	n, err := f.conc.RecalcularAbiertas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// closing bills the recomputed amount and records the gap
	pref, err := f.mesas.CerrarSesion(ctx, actor(model.RolAdministrador), m.ID, Pago{Forzar: true})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4000).Equal(pref.Total))
	assert.True(t, decimal.NewFromInt(3000).Equal(pref.TotalCacheado))
	assert.True(t, decimal.NewFromInt(1000).Equal(pref.Discrepancia))
}

func TestRecalcular_MarcaVentasFueraDeSesion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto("Pizza", 4000)
	m := f.mesa(1)

	_, err := f.mesas.AbrirSesion(ctx, actor(model.RolMozo), m.ID)
	require.NoError(t, err)
	abierta := f.recargarMesa(m.ID)

	vieja := &model.Venta{
		SucursalID: f.sucursal.ID,
		MesaID:     &m.ID,
		Estado:     model.VentaListo,
		Total:      decimal.NewFromInt(4000),
		Fecha:      abierta.SesionAbiertaAt.Add(-time.Hour),
		UsuarioID:  uuid.New(),
		RolOrigen:  model.RolCajero,
		Items: []model.VentaItem{{
			ProductoID: p.ID, Cantidad: 1, PrecioUnitario: decimal.NewFromInt(4000), Subtotal: decimal.NewFromInt(4000),
		}},
	}
	require.NoError(t, f.db.Create(vieja).Error)

	c, err := f.conc.Recalcular(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, c.TotalCalculado.IsZero(), "ventas before the session are not billed")
	assert.Equal(t, []uuid.UUID{vieja.ID}, c.VentasFueraDeSesion)
}

func TestRecalcular_MesaLibre(t *testing.T) {
	f := newFixture(t)
	m := f.mesa(1)

	_, err := f.conc.Recalcular(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrMesaSinSesion)

	_, err = f.conc.Recalcular(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMesaNoEncontrada)

	n, err := f.conc.RecalcularAbiertas(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClasificarDiscrepancia(t *testing.T) {
	d := decimal.NewFromInt
	tests := []struct {
		name      string
		disc      decimal.Decimal
		calculado decimal.Decimal
		want      string
	}{
		{"sin diferencia", d(0), d(1000), "normal"},
		{"uno por ciento", d(10), d(1000), "normal"},
		{"cinco por ciento", d(-50), d(1000), "advertencia"},
		{"sobre cinco", d(51), d(1000), "critico"},
		{"total cero", d(5), d(0), "critico"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, clasificarDiscrepancia(tc.disc, tc.calculado))
		})
	}
}

func TestConciliacionToResponse(t *testing.T) {
	id := uuid.New()
	fuera := uuid.New()
	resp := ConciliacionToResponse(&Conciliacion{
		MesaID:              id,
		TotalCalculado:      decimal.NewFromInt(100),
		TotalCacheado:       decimal.NewFromInt(90),
		Discrepancia:        decimal.NewFromInt(10),
		Clasificacion:       "critico",
		VentasFueraDeSesion: []uuid.UUID{fuera},
		Ventas:              make([]model.Venta, 3),
	})
	assert.Equal(t, id.String(), resp.MesaID)
	assert.Equal(t, 3, resp.CantidadVentas)
	assert.Equal(t, []string{fuera.String()}, resp.VentasFueraDeSesion)
}
