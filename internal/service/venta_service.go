package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/model"
	"mesapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VentaService is the order pipeline: creation, approval, kitchen progression
// and cancellation, with the stock and table side effects of each step.
type VentaService interface {
	CrearVenta(ctx context.Context, actor Actor, req dto.CrearVentaRequest) (*dto.VentaResponse, error)
	AprobarVenta(ctx context.Context, actor Actor, ventaID uuid.UUID) (*dto.VentaResponse, error)
	RechazarVenta(ctx context.Context, actor Actor, ventaID uuid.UUID, motivo string) (*dto.VentaResponse, error)
	AvanzarEstado(ctx context.Context, actor Actor, ventaID uuid.UUID, nuevo model.EstadoVenta) (*dto.VentaResponse, error)
	CancelarVenta(ctx context.Context, actor Actor, ventaID uuid.UUID, motivo string) (*dto.VentaResponse, error)

	ObtenerVenta(ctx context.Context, ventaID uuid.UUID) (*dto.VentaResponse, error)
	ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	txr          *TxRunner
	repo         repository.VentaRepository
	productoRepo repository.ProductoRepository
	sucursalRepo repository.SucursalRepository
	stock        StockService
	mesas        MesaService
	publicador   Publicador
	now          Reloj
}

func NewVentaService(
	txr *TxRunner,
	repo repository.VentaRepository,
	productoRepo repository.ProductoRepository,
	sucursalRepo repository.SucursalRepository,
	stock StockService,
	mesas MesaService,
	publicador Publicador,
) VentaService {
	return &ventaService{
		txr:          txr,
		repo:         repo,
		productoRepo: productoRepo,
		sucursalRepo: sucursalRepo,
		stock:        stock,
		mesas:        mesas,
		publicador:   publicadorOrNoop(publicador),
		now:          relojUTC,
	}
}

// ── CrearVenta ────────────────────────────────────────────────────────────────
// Single transaction:
//   1. Validate sucursal and resolve catalog prices
//   2. Lock mesa, open its session when free
//   3. Insert venta + items (mozo → pendiente_aprobacion, cajero/admin → pendiente)
//   4. Confirmed only: decrement stock per line (product id order), add total to mesa cache
//   5. COMMIT, then publish events

func (s *ventaService) CrearVenta(ctx context.Context, actor Actor, req dto.CrearVentaRequest) (*dto.VentaResponse, error) {
	if !actor.Rol.Valido() || actor.Rol == model.RolCocina {
		return nil, ErrPermisoDenegado
	}
	sucursalID, err := uuid.Parse(req.SucursalID)
	if err != nil {
		return nil, ErrProductoOSucursalDesconocida
	}
	var mesaID *uuid.UUID
	if req.MesaID != nil && *req.MesaID != "" {
		id, err := uuid.Parse(*req.MesaID)
		if err != nil {
			return nil, ErrMesaNoEncontrada
		}
		mesaID = &id
	}
	if len(req.Items) == 0 {
		return nil, ErrCantidadInvalida
	}

	directa := actor.Rol.PuedeCobrar()
	var (
		venta       model.Venta
		mesa        *model.Mesa
		sesionNueva bool
		nombres     map[uuid.UUID]string
		alertas     []*ResultadoMutacion
	)
	err = s.txr.Run(ctx, func(tx *gorm.DB) error {
		now := s.now()
		sucursal, err := s.sucursalRepo.FindByIDTx(tx, sucursalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductoOSucursalDesconocida
			}
			return err
		}
		if !sucursal.Activo {
			return ErrProductoOSucursalDesconocida
		}

		items, n, err := s.resolverItemsTx(tx, sucursal, req.Items)
		if err != nil {
			return err
		}
		nombres = n

		mesa = nil
		sesionNueva = false
		if mesaID != nil {
			m, err := s.mesas.LockMesaTx(tx, *mesaID)
			if err != nil {
				return err
			}
			if m.SucursalID != sucursalID {
				return ErrMesaNoEncontrada
			}
			if sesionNueva, err = s.mesas.AsegurarSesionTx(tx, m, now); err != nil {
				return err
			}
			mesa = m
		}

		total := decimal.Zero
		for _, it := range items {
			total = total.Add(it.Subtotal)
		}
		venta = model.Venta{
			SucursalID: sucursalID,
			MesaID:     mesaID,
			Estado:     model.VentaPendienteAprobacion,
			Total:      total,
			Fecha:      now,
			UsuarioID:  actor.ID,
			RolOrigen:  actor.Rol,
			Prioridad:  req.Prioridad,
			Items:      items,
		}
		if directa {
			venta.Estado = model.VentaPendiente
			venta.ConfirmadaAt = &now
		}
		if err := s.repo.CreateTx(tx, &venta); err != nil {
			return fmt.Errorf("crear venta: %w", err)
		}
		if directa {
			res, err := s.confirmarTx(tx, actor, &venta, mesa)
			alertas = res
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	avisarBajoMinimo(alertas...)

	for i := range venta.Items {
		venta.Items[i].Producto = &model.Producto{ID: venta.Items[i].ProductoID, Nombre: nombres[venta.Items[i].ProductoID]}
	}
	venta.Mesa = mesa

	log.Info().
		Str("venta_id", venta.ID.String()).
		Str("sucursal_id", venta.SucursalID.String()).
		Str("estado", string(venta.Estado)).
		Str("rol", string(actor.Rol)).
		Str("total", venta.Total.StringFixed(2)).
		Msg("venta: creada")

	if sesionNueva {
		s.publicador.Publicar(ctx, eventoMesa(dto.EventoMesaAbierta, mesa, venta.Fecha))
	}
	tipo := dto.EventoVentaCreada
	if directa {
		tipo = dto.EventoVentaConfirmada
	}
	s.publicador.Publicar(ctx, eventoVenta(tipo, &venta, s.now()))
	return ventaToResponse(&venta), nil
}

// resolverItemsTx captures catalog prices. Products must exist, be active and
// belong to the branch's restaurant.
func (s *ventaService) resolverItemsTx(tx *gorm.DB, sucursal *model.Sucursal, reqItems []dto.ItemVentaRequest) ([]model.VentaItem, map[uuid.UUID]string, error) {
	ids := make([]uuid.UUID, 0, len(reqItems))
	parsed := make([]uuid.UUID, len(reqItems))
	for i, it := range reqItems {
		if it.Cantidad <= 0 {
			return nil, nil, ErrCantidadInvalida
		}
		pid, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, nil, ErrProductoOSucursalDesconocida
		}
		parsed[i] = pid
		ids = append(ids, pid)
	}
	productos, err := s.productoRepo.FindByIDsTx(tx, ids)
	if err != nil {
		return nil, nil, err
	}
	catalogo := make(map[uuid.UUID]*model.Producto, len(productos))
	for i := range productos {
		catalogo[productos[i].ID] = &productos[i]
	}

	nombres := make(map[uuid.UUID]string, len(productos))
	items := make([]model.VentaItem, 0, len(reqItems))
	for i, it := range reqItems {
		p, ok := catalogo[parsed[i]]
		if !ok || p.RestauranteID != sucursal.RestauranteID {
			return nil, nil, ErrProductoOSucursalDesconocida
		}
		if !p.Activo {
			return nil, nil, fmt.Errorf("%s: %w", p.Nombre, ErrProductoInactivo)
		}
		nombres[p.ID] = p.Nombre
		items = append(items, model.VentaItem{
			ProductoID:     p.ID,
			Cantidad:       it.Cantidad,
			PrecioUnitario: p.Precio,
			Subtotal:       p.Precio.Mul(decimal.NewFromInt(int64(it.Cantidad))),
			Notas:          it.Notas,
		})
	}
	return items, nombres, nil
}

// confirmarTx commits stock for every line and adds the total to the mesa
// cache. Any InsufficientStock aborts the caller's whole transaction and
// reports the product's combined quantity across repeated lines.
func (s *ventaService) confirmarTx(tx *gorm.DB, actor Actor, v *model.Venta, mesa *model.Mesa) ([]*ResultadoMutacion, error) {
	motivo := "Venta"
	if mesa != nil {
		motivo = fmt.Sprintf("Venta mesa %d", mesa.Numero)
	}
	totales := make(map[uuid.UUID]int, len(v.Items))
	for _, it := range v.Items {
		totales[it.ProductoID] += it.Cantidad
	}
	ref := v.ID
	antes := make(map[uuid.UUID]int, len(totales))
	resultados := make([]*ResultadoMutacion, 0, len(v.Items))
	for _, it := range lineasOrdenadas(v.Items) {
		r, err := s.stock.MutarTx(tx, MutacionStock{
			ProductoID:   it.ProductoID,
			SucursalID:   v.SucursalID,
			Delta:        -it.Cantidad,
			Tipo:         model.MovimientoVenta,
			UsuarioID:    actor.usuarioID(),
			Motivo:       motivo,
			ReferenciaID: &ref,
		})
		if err != nil {
			var stockErr *StockInsuficienteError
			if errors.As(err, &stockErr) {
				disponible := stockErr.Disponible
				if previo, ok := antes[it.ProductoID]; ok {
					disponible = previo
				}
				return nil, &StockInsuficienteError{
					ProductoID: stockErr.ProductoID,
					Producto:   stockErr.Producto,
					Disponible: disponible,
					Solicitado: totales[it.ProductoID],
				}
			}
			return nil, err
		}
		if _, ok := antes[it.ProductoID]; !ok {
			antes[it.ProductoID] = r.StockAnterior
		}
		resultados = append(resultados, r)
	}
	if mesa != nil {
		if err := s.mesas.AcumularTotalTx(tx, mesa, v.Total); err != nil {
			return nil, err
		}
	}
	return resultados, nil
}

// ── AprobarVenta / RechazarVenta ──────────────────────────────────────────────

func (s *ventaService) AprobarVenta(ctx context.Context, actor Actor, ventaID uuid.UUID) (*dto.VentaResponse, error) {
	if !actor.Rol.PuedeCobrar() {
		return nil, ErrPermisoDenegado
	}
	var (
		venta   *model.Venta
		alertas []*ResultadoMutacion
	)
	err := s.enVentaTx(ctx, ventaID, func(tx *gorm.DB, v *model.Venta, mesa *model.Mesa) error {
		if v.Estado != model.VentaPendienteAprobacion {
			return ErrTransicionInvalida
		}
		if mesa != nil && !mesa.Estado.SesionAbierta() {
			return ErrMesaSinSesion
		}
		now := s.now()
		v.Estado = model.VentaPendiente
		v.ConfirmadaAt = &now
		res, err := s.confirmarTx(tx, actor, v, mesa)
		if err != nil {
			return err
		}
		alertas = res
		if err := s.repo.UpdateEstadoTx(tx, v); err != nil {
			return err
		}
		venta = v
		return nil
	})
	if err != nil {
		var stockErr *StockInsuficienteError
		if errors.As(err, &stockErr) {
			log.Warn().
				Str("venta_id", ventaID.String()).
				Str("producto_id", stockErr.ProductoID.String()).
				Int("disponible", stockErr.Disponible).
				Msg("venta: aprobacion rechazada por stock")
		}
		return nil, err
	}
	avisarBajoMinimo(alertas...)

	log.Info().Str("venta_id", venta.ID.String()).Msg("venta: aprobada")
	s.publicador.Publicar(ctx, eventoVenta(dto.EventoVentaConfirmada, venta, s.now()))
	return ventaToResponse(venta), nil
}

func (s *ventaService) RechazarVenta(ctx context.Context, actor Actor, ventaID uuid.UUID, motivo string) (*dto.VentaResponse, error) {
	if !actor.Rol.PuedeCobrar() {
		return nil, ErrPermisoDenegado
	}
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		return nil, ErrMotivoRequerido
	}
	var venta *model.Venta
	err := s.enVentaTx(ctx, ventaID, func(tx *gorm.DB, v *model.Venta, _ *model.Mesa) error {
		if v.Estado != model.VentaPendienteAprobacion {
			return ErrTransicionInvalida
		}
		v.Estado = model.VentaCancelada
		v.MotivoCancelacion = &motivo
		venta = v
		return s.repo.UpdateEstadoTx(tx, v)
	})
	if err != nil {
		return nil, err
	}
	s.publicador.Publicar(ctx, eventoVenta(dto.EventoVentaEstado, venta, s.now()))
	return ventaToResponse(venta), nil
}

// ── AvanzarEstado ─────────────────────────────────────────────────────────────

func (s *ventaService) AvanzarEstado(ctx context.Context, actor Actor, ventaID uuid.UUID, nuevo model.EstadoVenta) (*dto.VentaResponse, error) {
	if actor.Rol != model.RolCocina && actor.Rol != model.RolAdministrador {
		return nil, ErrPermisoDenegado
	}
	if !nuevo.Valido() {
		return nil, ErrTransicionInvalida
	}
	var venta *model.Venta
	err := s.txr.Run(ctx, func(tx *gorm.DB) error {
		v, err := s.lockVentaTx(tx, ventaID)
		if err != nil {
			return err
		}
		if !v.Estado.PuedeAvanzarA(nuevo) {
			return ErrTransicionInvalida
		}
		v.Estado = nuevo
		venta = v
		return s.repo.UpdateEstadoTx(tx, v)
	})
	if err != nil {
		return nil, err
	}
	s.publicador.Publicar(ctx, eventoVenta(dto.EventoVentaEstado, venta, s.now()))
	return ventaToResponse(venta), nil
}

// ── CancelarVenta ─────────────────────────────────────────────────────────────
// Any non-terminal venta can be cancelled; a delivered one can be voided.
// Confirmed ventas get one reversion_cancelacion movement per line, and their
// total leaves the mesa cache while the session they belong to is still open.

func (s *ventaService) CancelarVenta(ctx context.Context, actor Actor, ventaID uuid.UUID, motivo string) (*dto.VentaResponse, error) {
	if !actor.Rol.PuedeCobrar() {
		return nil, ErrPermisoDenegado
	}
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		return nil, ErrMotivoRequerido
	}
	var venta *model.Venta
	err := s.enVentaTx(ctx, ventaID, func(tx *gorm.DB, v *model.Venta, mesa *model.Mesa) error {
		if !v.Estado.PuedeCancelarse() && !v.Estado.Anulable() {
			return ErrTransicionInvalida
		}
		if v.Estado.Confirmada() {
			ref := v.ID
			for _, it := range lineasOrdenadas(v.Items) {
				if _, err := s.stock.MutarTx(tx, MutacionStock{
					ProductoID:   it.ProductoID,
					SucursalID:   v.SucursalID,
					Delta:        it.Cantidad,
					Tipo:         model.MovimientoReversionCancelacion,
					UsuarioID:    actor.usuarioID(),
					Motivo:       "Cancelacion: " + motivo,
					ReferenciaID: &ref,
				}); err != nil {
					return err
				}
			}
			if enSesion(mesa, v) {
				if err := s.mesas.DescontarTotalTx(tx, mesa, v.Total); err != nil {
					return err
				}
			}
		}
		v.Estado = model.VentaCancelada
		v.MotivoCancelacion = &motivo
		venta = v
		return s.repo.UpdateEstadoTx(tx, v)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("venta_id", venta.ID.String()).
		Str("motivo", motivo).
		Msg("venta: cancelada")
	s.publicador.Publicar(ctx, eventoVenta(dto.EventoVentaEstado, venta, s.now()))
	return ventaToResponse(venta), nil
}

// enSesion reports whether v counts toward the open session of mesa.
func enSesion(mesa *model.Mesa, v *model.Venta) bool {
	return mesa != nil && mesa.Estado.SesionAbierta() && mesa.SesionAbiertaAt != nil &&
		!v.Fecha.Before(*mesa.SesionAbiertaAt)
}

// enVentaTx locks mesa → venta in that order, the same order CerrarSesion uses,
// and runs fn in the transaction. mesa is nil for ventas without a table.
func (s *ventaService) enVentaTx(ctx context.Context, ventaID uuid.UUID, fn func(tx *gorm.DB, v *model.Venta, mesa *model.Mesa) error) error {
	pre, err := s.repo.FindByID(ctx, ventaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVentaNoEncontrada
		}
		return err
	}
	return s.txr.Run(ctx, func(tx *gorm.DB) error {
		var mesa *model.Mesa
		if pre.MesaID != nil {
			m, err := s.mesas.LockMesaTx(tx, *pre.MesaID)
			if err != nil {
				return err
			}
			mesa = m
		}
		v, err := s.lockVentaTx(tx, ventaID)
		if err != nil {
			return err
		}
		v.Mesa = mesa
		return fn(tx, v, mesa)
	})
}

func (s *ventaService) lockVentaTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Venta, error) {
	v, err := s.repo.LockTx(tx, ventaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVentaNoEncontrada
		}
		return nil, err
	}
	return v, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, ventaID uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repo.FindByID(ctx, ventaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVentaNoEncontrada
		}
		return nil, err
	}
	return ventaToResponse(v), nil
}

// ListarVentas returns a paginated list for a branch, priority orders first.
func (s *ventaService) ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	ventas, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		data = append(data, *ventaToResponse(&ventas[i]))
	}
	return &dto.VentaListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// lineasOrdenadas returns the lines sorted by product id so concurrent
// confirmations lock stock rows in the same order.
func lineasOrdenadas(items []model.VentaItem) []model.VentaItem {
	out := make([]model.VentaItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return menorID(out[i].ProductoID, out[j].ProductoID) })
	return out
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	items := make([]dto.ItemVentaResponse, 0, len(v.Items))
	for _, it := range v.Items {
		nombre := ""
		if it.Producto != nil {
			nombre = it.Producto.Nombre
		}
		items = append(items, dto.ItemVentaResponse{
			ProductoID:     it.ProductoID.String(),
			Producto:       nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
			Notas:          it.Notas,
		})
	}
	resp := &dto.VentaResponse{
		ID:                v.ID.String(),
		SucursalID:        v.SucursalID.String(),
		MesaID:            uuidPtrString(v.MesaID),
		Estado:            string(v.Estado),
		Total:             v.Total,
		Prioridad:         v.Prioridad,
		RolOrigen:         string(v.RolOrigen),
		UsuarioID:         v.UsuarioID.String(),
		MotivoCancelacion: v.MotivoCancelacion,
		Items:             items,
		Fecha:             formatTime(v.Fecha),
		ConfirmadaAt:      formatTimePtr(v.ConfirmadaAt),
	}
	if v.Mesa != nil {
		numero := v.Mesa.Numero
		resp.MesaNumero = &numero
	}
	return resp
}

func eventoVenta(tipo string, v *model.Venta, now time.Time) dto.Evento {
	ev := dto.Evento{
		Type:       tipo,
		SucursalID: v.SucursalID.String(),
		VentaID:    v.ID.String(),
		Estado:     string(v.Estado),
		Prioridad:  v.Prioridad,
		Timestamp:  formatTime(now),
	}
	if v.MesaID != nil {
		ev.MesaID = v.MesaID.String()
	}
	if v.Mesa != nil {
		numero := v.Mesa.Numero
		ev.MesaNumero = &numero
	}
	for _, it := range v.Items {
		nombre := it.ProductoID.String()
		if it.Producto != nil {
			nombre = it.Producto.Nombre
		}
		ev.Items = append(ev.Items, dto.EventoItem{
			Producto: nombre,
			Cantidad: it.Cantidad,
			Subtotal: it.Subtotal,
			Notas:    it.Notas,
		})
	}
	return ev
}
