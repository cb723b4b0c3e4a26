package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/model"
	"mesapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Pago is the settlement submitted when a session closes.
type Pago struct {
	Metodo string
	Monto  decimal.Decimal
	// Forzar closes despite undelivered orders. Administrador only.
	Forzar bool
}

// MesaService is the table session manager. It is the only writer of
// Mesa.Estado, SesionAbiertaAt and TotalAcumulado.
type MesaService interface {
	AbrirSesion(ctx context.Context, actor Actor, mesaID uuid.UUID) (*dto.MesaResponse, error)
	SolicitarCuenta(ctx context.Context, actor Actor, mesaID uuid.UUID) (*dto.MesaResponse, error)
	CerrarSesion(ctx context.Context, actor Actor, mesaID uuid.UUID, pago Pago) (*dto.PrefacturaResponse, error)

	ObtenerMesa(ctx context.Context, mesaID uuid.UUID) (*dto.MesaResponse, error)
	ListarMesas(ctx context.Context, sucursalID uuid.UUID) ([]dto.MesaResponse, error)
	HistorialSesiones(ctx context.Context, mesaID uuid.UUID, page, limit int) (*dto.HistorialSesionesResponse, error)

	// Used by VentaService inside its transaction, with the mesa row locked.
	LockMesaTx(tx *gorm.DB, mesaID uuid.UUID) (*model.Mesa, error)
	// AsegurarSesionTx opens the session of a free table and reports whether it did.
	AsegurarSesionTx(tx *gorm.DB, mesa *model.Mesa, now time.Time) (bool, error)
	AcumularTotalTx(tx *gorm.DB, mesa *model.Mesa, monto decimal.Decimal) error
	DescontarTotalTx(tx *gorm.DB, mesa *model.Mesa, monto decimal.Decimal) error
}

type mesaService struct {
	txr            *TxRunner
	repo           repository.MesaRepository
	prefacturaRepo repository.PrefacturaRepository
	ventaRepo      repository.VentaRepository
	conciliacion   ConciliacionService
	publicador     Publicador
	now            Reloj
}

func NewMesaService(
	txr *TxRunner,
	repo repository.MesaRepository,
	prefacturaRepo repository.PrefacturaRepository,
	ventaRepo repository.VentaRepository,
	conciliacion ConciliacionService,
	publicador Publicador,
) MesaService {
	return &mesaService{
		txr:            txr,
		repo:           repo,
		prefacturaRepo: prefacturaRepo,
		ventaRepo:      ventaRepo,
		conciliacion:   conciliacion,
		publicador:     publicadorOrNoop(publicador),
		now:            relojUTC,
	}
}

// ── AbrirSesion ───────────────────────────────────────────────────────────────

func (s *mesaService) AbrirSesion(ctx context.Context, actor Actor, mesaID uuid.UUID) (*dto.MesaResponse, error) {
	if actor.Rol == model.RolCocina || !actor.Rol.Valido() {
		return nil, ErrPermisoDenegado
	}
	var mesa *model.Mesa
	err := s.txr.Run(ctx, func(tx *gorm.DB) error {
		m, err := s.LockMesaTx(tx, mesaID)
		if err != nil {
			return err
		}
		if m.Estado != model.MesaLibre {
			return ErrMesaNoLibre
		}
		if err := s.abrirSesionTx(tx, m, s.now()); err != nil {
			return err
		}
		mesa = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("mesa_id", mesa.ID.String()).Int("numero", mesa.Numero).Msg("mesa: sesion abierta")
	s.publicador.Publicar(ctx, eventoMesa(dto.EventoMesaAbierta, mesa, s.now()))
	return mesaToResponse(mesa), nil
}

// abrirSesionTx moves a locked free table to ocupada and opens its prefactura.
func (s *mesaService) abrirSesionTx(tx *gorm.DB, m *model.Mesa, now time.Time) error {
	if !m.Estado.PuedeTransicionar(model.MesaOcupada) {
		return ErrMesaNoLibre
	}
	m.Estado = model.MesaOcupada
	m.SesionAbiertaAt = &now
	m.TotalAcumulado = decimal.Zero
	if err := s.repo.UpdateSesionTx(tx, m); err != nil {
		return fmt.Errorf("abrir sesion: %w", err)
	}
	return s.prefacturaRepo.CreateTx(tx, &model.Prefactura{
		MesaID:    m.ID,
		Estado:    model.PrefacturaAbierta,
		AbiertaAt: now,
	})
}

// ── SolicitarCuenta ───────────────────────────────────────────────────────────

func (s *mesaService) SolicitarCuenta(ctx context.Context, actor Actor, mesaID uuid.UUID) (*dto.MesaResponse, error) {
	if actor.Rol == model.RolCocina || !actor.Rol.Valido() {
		return nil, ErrPermisoDenegado
	}
	var mesa *model.Mesa
	err := s.txr.Run(ctx, func(tx *gorm.DB) error {
		m, err := s.LockMesaTx(tx, mesaID)
		if err != nil {
			return err
		}
		if !m.Estado.SesionAbierta() {
			return ErrMesaSinSesion
		}
		if !m.Estado.PuedeTransicionar(model.MesaCuentaSolicitada) {
			return ErrTransicionInvalida
		}
		m.Estado = model.MesaCuentaSolicitada
		if err := s.repo.UpdateSesionTx(tx, m); err != nil {
			return err
		}
		mesa = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publicador.Publicar(ctx, eventoMesa(dto.EventoCuentaSolicitada, mesa, s.now()))
	return mesaToResponse(mesa), nil
}

// ── CerrarSesion ──────────────────────────────────────────────────────────────
//   1. Lock mesa, require an open session
//   2. Reject when pendiente/preparando/listo ventas remain, unless forced
//   3. Recompute the bill from venta items (BillReconciliation)
//   4. Reject payments below the computed total
//   5. Cancel unapproved ventas, close the prefactura, free the table

func (s *mesaService) CerrarSesion(ctx context.Context, actor Actor, mesaID uuid.UUID, pago Pago) (*dto.PrefacturaResponse, error) {
	if !actor.Rol.PuedeCobrar() {
		return nil, ErrPermisoDenegado
	}
	if pago.Forzar && actor.Rol != model.RolAdministrador {
		return nil, ErrPermisoDenegado
	}
	if pago.Monto.IsNegative() {
		return nil, ErrPagoInsuficiente
	}

	var (
		mesa       model.Mesa
		prefactura *model.Prefactura
		conc       *Conciliacion
	)
	err := s.txr.Run(ctx, func(tx *gorm.DB) error {
		m, err := s.LockMesaTx(tx, mesaID)
		if err != nil {
			return err
		}
		if !m.Estado.SesionAbierta() || m.SesionAbiertaAt == nil {
			return ErrMesaSinSesion
		}
		now := s.now()

		activas, err := s.ventaRepo.CountSesionTx(tx, m.ID, *m.SesionAbiertaAt, model.EstadosActivos)
		if err != nil {
			return err
		}
		if activas > 0 && !pago.Forzar {
			return ErrOrdenesPendientes
		}

		c, err := s.conciliacion.RecalcularTx(tx, m, now)
		if err != nil {
			return err
		}
		if !pago.Forzar && pago.Monto.LessThan(c.TotalCalculado) {
			return ErrPagoInsuficiente
		}

		if err := s.cancelarSinAprobarTx(tx, m, now); err != nil {
			return err
		}

		p, err := s.prefacturaRepo.FindAbiertaTx(tx, m.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p = &model.Prefactura{MesaID: m.ID, Estado: model.PrefacturaAbierta, AbiertaAt: *m.SesionAbiertaAt}
			if err := s.prefacturaRepo.CreateTx(tx, p); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		vuelto := pago.Monto.Sub(c.TotalCalculado)
		if vuelto.IsNegative() {
			vuelto = decimal.Zero
		}
		p.Estado = model.PrefacturaCerrada
		p.CerradaAt = &now
		p.Total = c.TotalCalculado
		p.TotalCacheado = c.TotalCacheado
		p.Discrepancia = c.Discrepancia
		if pago.Metodo != "" {
			metodo := pago.Metodo
			p.MetodoPago = &metodo
		}
		p.MontoPagado = pago.Monto
		p.Vuelto = vuelto
		p.CierreForzado = pago.Forzar && activas > 0
		p.UsuarioCierreID = actor.usuarioID()
		if err := s.prefacturaRepo.UpdateTx(tx, p); err != nil {
			return err
		}

		m.Estado = model.MesaLibre
		m.SesionAbiertaAt = nil
		m.TotalAcumulado = decimal.Zero
		if err := s.repo.UpdateSesionTx(tx, m); err != nil {
			return err
		}

		mesa = *m
		prefactura = p
		conc = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := log.Info()
	if prefactura.CierreForzado || !prefactura.Discrepancia.IsZero() {
		ev = log.Warn()
	}
	ev.Str("mesa_id", mesa.ID.String()).
		Str("prefactura_id", prefactura.ID.String()).
		Str("total", prefactura.Total.StringFixed(2)).
		Str("discrepancia", prefactura.Discrepancia.StringFixed(2)).
		Bool("forzado", prefactura.CierreForzado).
		Msg("mesa: sesion cerrada")

	s.publicador.Publicar(ctx, eventoMesaCerrada(&mesa, prefactura, conc.Ventas, s.now()))
	return prefacturaToResponse(prefactura), nil
}

// cancelarSinAprobarTx rejects waiter orders nobody approved before the close.
// They never committed stock.
func (s *mesaService) cancelarSinAprobarTx(tx *gorm.DB, m *model.Mesa, hasta time.Time) error {
	sinAprobar, err := s.ventaRepo.ListSesionTx(tx, m.ID, *m.SesionAbiertaAt, hasta,
		[]model.EstadoVenta{model.VentaPendienteAprobacion})
	if err != nil {
		return err
	}
	motivo := "sesion cerrada sin aprobacion"
	for i := range sinAprobar {
		v := &sinAprobar[i]
		v.Estado = model.VentaCancelada
		v.MotivoCancelacion = &motivo
		if err := s.ventaRepo.UpdateEstadoTx(tx, v); err != nil {
			return err
		}
	}
	return nil
}

// ── Tx helpers for the order pipeline ─────────────────────────────────────────

func (s *mesaService) LockMesaTx(tx *gorm.DB, mesaID uuid.UUID) (*model.Mesa, error) {
	m, err := s.repo.LockTx(tx, mesaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMesaNoEncontrada
		}
		return nil, err
	}
	if !m.Activo {
		return nil, ErrMesaNoEncontrada
	}
	return m, nil
}

func (s *mesaService) AsegurarSesionTx(tx *gorm.DB, mesa *model.Mesa, now time.Time) (bool, error) {
	if mesa.Estado != model.MesaLibre {
		return false, nil
	}
	if err := s.abrirSesionTx(tx, mesa, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *mesaService) AcumularTotalTx(tx *gorm.DB, mesa *model.Mesa, monto decimal.Decimal) error {
	if !mesa.Estado.SesionAbierta() {
		return ErrMesaSinSesion
	}
	mesa.TotalAcumulado = mesa.TotalAcumulado.Add(monto)
	return s.repo.SetTotalTx(tx, mesa.ID, mesa.TotalAcumulado)
}

func (s *mesaService) DescontarTotalTx(tx *gorm.DB, mesa *model.Mesa, monto decimal.Decimal) error {
	if !mesa.Estado.SesionAbierta() {
		return ErrMesaSinSesion
	}
	mesa.TotalAcumulado = mesa.TotalAcumulado.Sub(monto)
	return s.repo.SetTotalTx(tx, mesa.ID, mesa.TotalAcumulado)
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *mesaService) ObtenerMesa(ctx context.Context, mesaID uuid.UUID) (*dto.MesaResponse, error) {
	m, err := s.repo.FindByID(ctx, mesaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMesaNoEncontrada
		}
		return nil, err
	}
	return mesaToResponse(m), nil
}

func (s *mesaService) ListarMesas(ctx context.Context, sucursalID uuid.UUID) ([]dto.MesaResponse, error) {
	mesas, err := s.repo.ListBySucursal(ctx, sucursalID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MesaResponse, 0, len(mesas))
	for i := range mesas {
		out = append(out, *mesaToResponse(&mesas[i]))
	}
	return out, nil
}

func (s *mesaService) HistorialSesiones(ctx context.Context, mesaID uuid.UUID, page, limit int) (*dto.HistorialSesionesResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	prefacturas, total, err := s.prefacturaRepo.ListCerradas(ctx, mesaID, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.PrefacturaResponse, 0, len(prefacturas))
	for i := range prefacturas {
		data = append(data, *prefacturaToResponse(&prefacturas[i]))
	}
	return &dto.HistorialSesionesResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func mesaToResponse(m *model.Mesa) *dto.MesaResponse {
	return &dto.MesaResponse{
		ID:              m.ID.String(),
		SucursalID:      m.SucursalID.String(),
		Numero:          m.Numero,
		Capacidad:       m.Capacidad,
		Estado:          string(m.Estado),
		SesionAbiertaAt: formatTimePtr(m.SesionAbiertaAt),
		TotalAcumulado:  m.TotalAcumulado,
	}
}

func prefacturaToResponse(p *model.Prefactura) *dto.PrefacturaResponse {
	return &dto.PrefacturaResponse{
		ID:            p.ID.String(),
		MesaID:        p.MesaID.String(),
		Estado:        string(p.Estado),
		AbiertaAt:     formatTime(p.AbiertaAt),
		CerradaAt:     formatTimePtr(p.CerradaAt),
		Total:         p.Total,
		TotalCacheado: p.TotalCacheado,
		Discrepancia:  p.Discrepancia,
		MetodoPago:    p.MetodoPago,
		MontoPagado:   p.MontoPagado,
		Vuelto:        p.Vuelto,
		CierreForzado: p.CierreForzado,
	}
}

func eventoMesa(tipo string, m *model.Mesa, now time.Time) dto.Evento {
	numero := m.Numero
	return dto.Evento{
		Type:       tipo,
		SucursalID: m.SucursalID.String(),
		MesaID:     m.ID.String(),
		MesaNumero: &numero,
		Estado:     string(m.Estado),
		Timestamp:  formatTime(now),
	}
}

// eventoMesaCerrada carries the aggregated ticket lines for the pre-bill PDF.
func eventoMesaCerrada(m *model.Mesa, p *model.Prefactura, ventas []model.Venta, now time.Time) dto.Evento {
	ev := eventoMesa(dto.EventoMesaCerrada, m, now)

	idx := make(map[uuid.UUID]int)
	for _, v := range ventas {
		for _, it := range v.Items {
			i, ok := idx[it.ProductoID]
			if !ok {
				nombre := it.ProductoID.String()
				if it.Producto != nil {
					nombre = it.Producto.Nombre
				}
				idx[it.ProductoID] = len(ev.Items)
				ev.Items = append(ev.Items, dto.EventoItem{Producto: nombre})
				i = len(ev.Items) - 1
			}
			ev.Items[i].Cantidad += it.Cantidad
			ev.Items[i].Subtotal = ev.Items[i].Subtotal.Add(it.Subtotal)
		}
	}

	metodo := ""
	if p.MetodoPago != nil {
		metodo = *p.MetodoPago
	}
	cerrada := now
	if p.CerradaAt != nil {
		cerrada = *p.CerradaAt
	}
	ev.Prefactura = &dto.EventoPrefactura{
		ID:          p.ID.String(),
		AbiertaAt:   formatTime(p.AbiertaAt),
		CerradaAt:   formatTime(cerrada),
		Total:       p.Total,
		MetodoPago:  metodo,
		MontoPagado: p.MontoPagado,
		Vuelto:      p.Vuelto,
	}
	return ev
}
