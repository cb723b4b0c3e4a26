package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/model"
	"mesapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MutacionStock is one signed change to a (producto, sucursal) stock row.
type MutacionStock struct {
	ProductoID   uuid.UUID
	SucursalID   uuid.UUID
	Delta        int
	Tipo         model.TipoMovimiento
	UsuarioID    *uuid.UUID
	Motivo       string
	ReferenciaID *uuid.UUID
}

type ResultadoMutacion struct {
	ProductoID    uuid.UUID
	SucursalID    uuid.UUID
	StockAnterior int
	StockNuevo    int
	// BajoMinimo is set when this mutation crossed the alert threshold downwards.
	BajoMinimo bool
	Minimo     int
}

// LimitesDefault are applied to stock rows materialized by a first mutation.
type LimitesDefault struct {
	Minimo int
	Maximo int
}

// StockService is the stock ledger. Mutar / MutarTx are the only code paths
// that write stock_sucursal.cantidad.
type StockService interface {
	Mutar(ctx context.Context, m MutacionStock) (*ResultadoMutacion, error)
	// MutarTx joins the caller's transaction (order confirmation and cancellation).
	MutarTx(tx *gorm.DB, m MutacionStock) (*ResultadoMutacion, error)

	RegistrarCompra(ctx context.Context, actor Actor, req dto.CompraRequest) (*dto.MutacionResponse, error)
	AjustarStock(ctx context.Context, actor Actor, req dto.AjusteRequest) (*dto.MutacionResponse, error)
	Transferir(ctx context.Context, actor Actor, req dto.TransferenciaRequest) (*dto.TransferenciaResponse, error)
	ConfigurarLimites(ctx context.Context, actor Actor, req dto.LimitesRequest) (*dto.StockSucursalResponse, error)

	StockGlobal(ctx context.Context, productoID uuid.UUID) (int64, error)
	StockPorSucursal(ctx context.Context, productoID uuid.UUID) (*dto.StockGlobalResponse, error)
	SnapshotSucursal(ctx context.Context, sucursalID uuid.UUID) ([]dto.StockSucursalResponse, error)
	Alertas(ctx context.Context, sucursalID uuid.UUID) ([]dto.StockSucursalResponse, error)
	ListarMovimientos(ctx context.Context, filter dto.MovimientoFilter) (*dto.MovimientoListResponse, error)
}

type stockService struct {
	txr          *TxRunner
	repo         repository.StockRepository
	movRepo      repository.MovimientoStockRepository
	productoRepo repository.ProductoRepository
	sucursalRepo repository.SucursalRepository
	limites      LimitesDefault
	now          Reloj
}

func NewStockService(
	txr *TxRunner,
	repo repository.StockRepository,
	movRepo repository.MovimientoStockRepository,
	productoRepo repository.ProductoRepository,
	sucursalRepo repository.SucursalRepository,
	limites LimitesDefault,
) StockService {
	return &stockService{
		txr:          txr,
		repo:         repo,
		movRepo:      movRepo,
		productoRepo: productoRepo,
		sucursalRepo: sucursalRepo,
		limites:      limites,
		now:          relojUTC,
	}
}

// ── Mutar ─────────────────────────────────────────────────────────────────────
//   1. Validate producto and sucursal exist and belong to the same restaurant
//   2. INSERT ... ON CONFLICT DO NOTHING (row at 0 with default limits)
//   3. SELECT ... FOR UPDATE
//   4. nuevo = anterior + delta; abort when negative
//   5. UPDATE row, INSERT movimiento, COMMIT

func (s *stockService) Mutar(ctx context.Context, m MutacionStock) (*ResultadoMutacion, error) {
	var res *ResultadoMutacion
	err := s.txr.Run(ctx, func(tx *gorm.DB) error {
		r, err := s.MutarTx(tx, m)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}
	avisarBajoMinimo(res)
	return res, nil
}

// avisarBajoMinimo logs threshold crossings. Callers invoke it after commit so
// a rolled back or retried transaction never reports an alert.
func avisarBajoMinimo(resultados ...*ResultadoMutacion) {
	for _, r := range resultados {
		if r == nil || !r.BajoMinimo {
			continue
		}
		log.Warn().
			Str("producto_id", r.ProductoID.String()).
			Str("sucursal_id", r.SucursalID.String()).
			Int("stock", r.StockNuevo).
			Int("minimo", r.Minimo).
			Msg("stock: below minimum")
	}
}

func (s *stockService) MutarTx(tx *gorm.DB, m MutacionStock) (*ResultadoMutacion, error) {
	if m.Delta == 0 || !m.Tipo.Valido() {
		return nil, ErrCantidadInvalida
	}
	producto, err := s.validarParTx(tx, m.ProductoID, m.SucursalID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MaterializarTx(tx, m.ProductoID, m.SucursalID, s.limites.Minimo, s.limites.Maximo); err != nil {
		return nil, fmt.Errorf("materializar stock: %w", err)
	}
	row, err := s.repo.LockTx(tx, m.ProductoID, m.SucursalID)
	if err != nil {
		return nil, fmt.Errorf("bloquear stock: %w", err)
	}

	anterior := row.Cantidad
	nuevo := anterior + m.Delta
	if nuevo < 0 {
		return nil, &StockInsuficienteError{
			ProductoID: m.ProductoID,
			Producto:   producto.Nombre,
			Disponible: anterior,
			Solicitado: -m.Delta,
		}
	}

	if err := s.repo.UpdateCantidadTx(tx, row.ID, nuevo); err != nil {
		return nil, fmt.Errorf("actualizar stock: %w", err)
	}
	mov := &model.MovimientoStock{
		ProductoID:    m.ProductoID,
		SucursalID:    m.SucursalID,
		Tipo:          m.Tipo,
		Cantidad:      m.Delta,
		StockAnterior: anterior,
		StockNuevo:    nuevo,
		UsuarioID:     m.UsuarioID,
		Motivo:        m.Motivo,
		ReferenciaID:  m.ReferenciaID,
		CreatedAt:     s.now(),
	}
	if err := s.movRepo.CreateTx(tx, mov); err != nil {
		return nil, fmt.Errorf("registrar movimiento: %w", err)
	}

	return &ResultadoMutacion{
		ProductoID:    m.ProductoID,
		SucursalID:    m.SucursalID,
		StockAnterior: anterior,
		StockNuevo:    nuevo,
		BajoMinimo:    nuevo <= row.StockMinimo && anterior > row.StockMinimo,
		Minimo:        row.StockMinimo,
	}, nil
}

// validarParTx rejects unknown or inactive branches and products that belong to
// a different restaurant than the branch.
func (s *stockService) validarParTx(tx *gorm.DB, productoID, sucursalID uuid.UUID) (*model.Producto, error) {
	sucursal, err := s.sucursalRepo.FindByIDTx(tx, sucursalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductoOSucursalDesconocida
		}
		return nil, err
	}
	if !sucursal.Activo {
		return nil, ErrProductoOSucursalDesconocida
	}
	producto, err := s.productoRepo.FindByIDTx(tx, productoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductoOSucursalDesconocida
		}
		return nil, err
	}
	if producto.RestauranteID != sucursal.RestauranteID {
		return nil, ErrProductoOSucursalDesconocida
	}
	return producto, nil
}

// ── Compras / ajustes / transferencias ───────────────────────────────────────

func (s *stockService) RegistrarCompra(ctx context.Context, actor Actor, req dto.CompraRequest) (*dto.MutacionResponse, error) {
	if !actor.Rol.GestionaStock() {
		return nil, ErrPermisoDenegado
	}
	productoID, sucursalID, err := parsePar(req.ProductoID, req.SucursalID)
	if err != nil {
		return nil, err
	}
	if req.Cantidad <= 0 {
		return nil, ErrCantidadInvalida
	}
	motivo := req.Motivo
	if motivo == "" {
		motivo = "Compra a proveedor"
	}
	res, err := s.Mutar(ctx, MutacionStock{
		ProductoID: productoID,
		SucursalID: sucursalID,
		Delta:      req.Cantidad,
		Tipo:       model.MovimientoCompra,
		UsuarioID:  actor.usuarioID(),
		Motivo:     motivo,
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("producto_id", productoID.String()).
		Str("sucursal_id", sucursalID.String()).
		Int("cantidad", req.Cantidad).
		Msg("stock: compra registrada")
	return mutacionToResponse(res), nil
}

func (s *stockService) AjustarStock(ctx context.Context, actor Actor, req dto.AjusteRequest) (*dto.MutacionResponse, error) {
	if !actor.Rol.GestionaStock() {
		return nil, ErrPermisoDenegado
	}
	productoID, sucursalID, err := parsePar(req.ProductoID, req.SucursalID)
	if err != nil {
		return nil, err
	}
	if req.Motivo == "" {
		return nil, ErrMotivoRequerido
	}
	res, err := s.Mutar(ctx, MutacionStock{
		ProductoID: productoID,
		SucursalID: sucursalID,
		Delta:      req.Delta,
		Tipo:       model.MovimientoAjuste,
		UsuarioID:  actor.usuarioID(),
		Motivo:     req.Motivo,
	})
	if err != nil {
		return nil, err
	}
	return mutacionToResponse(res), nil
}

// Transferir moves stock between two branches in one transaction. Both movements
// share a ReferenciaID. Rows are locked in branch id order.
func (s *stockService) Transferir(ctx context.Context, actor Actor, req dto.TransferenciaRequest) (*dto.TransferenciaResponse, error) {
	if !actor.Rol.GestionaStock() {
		return nil, ErrPermisoDenegado
	}
	productoID, origenID, err := parsePar(req.ProductoID, req.SucursalOrigenID)
	if err != nil {
		return nil, err
	}
	destinoID, err := uuid.Parse(req.SucursalDestinoID)
	if err != nil {
		return nil, ErrProductoOSucursalDesconocida
	}
	if req.Cantidad <= 0 || origenID == destinoID {
		return nil, ErrCantidadInvalida
	}

	ref := uuid.New()
	motivo := req.Motivo
	if motivo == "" {
		motivo = "Transferencia entre sucursales"
	}
	salida := MutacionStock{
		ProductoID: productoID, SucursalID: origenID, Delta: -req.Cantidad,
		Tipo: model.MovimientoTransferencia, UsuarioID: actor.usuarioID(), Motivo: motivo, ReferenciaID: &ref,
	}
	entrada := MutacionStock{
		ProductoID: productoID, SucursalID: destinoID, Delta: req.Cantidad,
		Tipo: model.MovimientoTransferencia, UsuarioID: actor.usuarioID(), Motivo: motivo, ReferenciaID: &ref,
	}
	orden := []*MutacionStock{&salida, &entrada}
	if menorID(destinoID, origenID) {
		orden = []*MutacionStock{&entrada, &salida}
	}

	resultados := make(map[uuid.UUID]*ResultadoMutacion, 2)
	err = s.txr.Run(ctx, func(tx *gorm.DB) error {
		for _, m := range orden {
			r, err := s.MutarTx(tx, *m)
			if err != nil {
				return err
			}
			resultados[m.SucursalID] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	avisarBajoMinimo(resultados[origenID], resultados[destinoID])

	log.Info().
		Str("producto_id", productoID.String()).
		Str("origen", origenID.String()).
		Str("destino", destinoID.String()).
		Int("cantidad", req.Cantidad).
		Msg("stock: transferencia registrada")

	return &dto.TransferenciaResponse{
		Origen:  *mutacionToResponse(resultados[origenID]),
		Destino: *mutacionToResponse(resultados[destinoID]),
	}, nil
}

// ConfigurarLimites sets the alert thresholds. Quantity is never touched.
func (s *stockService) ConfigurarLimites(ctx context.Context, actor Actor, req dto.LimitesRequest) (*dto.StockSucursalResponse, error) {
	if !actor.Rol.GestionaStock() {
		return nil, ErrPermisoDenegado
	}
	productoID, sucursalID, err := parsePar(req.ProductoID, req.SucursalID)
	if err != nil {
		return nil, err
	}
	if req.StockMinimo < 0 || req.StockMaximo < 0 || (req.StockMaximo > 0 && req.StockMinimo > req.StockMaximo) {
		return nil, ErrCantidadInvalida
	}

	var resp *dto.StockSucursalResponse
	err = s.txr.Run(ctx, func(tx *gorm.DB) error {
		producto, err := s.validarParTx(tx, productoID, sucursalID)
		if err != nil {
			return err
		}
		if err := s.repo.MaterializarTx(tx, productoID, sucursalID, req.StockMinimo, req.StockMaximo); err != nil {
			return err
		}
		row, err := s.repo.LockTx(tx, productoID, sucursalID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateLimitesTx(tx, row.ID, req.StockMinimo, req.StockMaximo); err != nil {
			return err
		}
		row.StockMinimo = req.StockMinimo
		row.StockMaximo = req.StockMaximo
		row.Producto = producto
		resp = stockRowToResponse(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ── Aggregation ───────────────────────────────────────────────────────────────

// StockGlobal is derived on read, never stored.
func (s *stockService) StockGlobal(ctx context.Context, productoID uuid.UUID) (int64, error) {
	producto, err := s.findProducto(ctx, productoID)
	if err != nil {
		return 0, err
	}
	return s.repo.SumGlobal(ctx, productoID, producto.RestauranteID)
}

func (s *stockService) StockPorSucursal(ctx context.Context, productoID uuid.UUID) (*dto.StockGlobalResponse, error) {
	producto, err := s.findProducto(ctx, productoID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListPorProducto(ctx, productoID, producto.RestauranteID)
	if err != nil {
		return nil, err
	}
	resp := &dto.StockGlobalResponse{
		ProductoID: productoID.String(),
		Producto:   producto.Nombre,
		Sucursales: make([]dto.StockPorSucursalItem, 0, len(rows)),
	}
	for _, r := range rows {
		resp.Total += int64(r.Cantidad)
		resp.Sucursales = append(resp.Sucursales, dto.StockPorSucursalItem{
			SucursalID: r.SucursalID.String(),
			Sucursal:   r.SucursalNombre,
			Cantidad:   r.Cantidad,
		})
	}
	return resp, nil
}

func (s *stockService) findProducto(ctx context.Context, productoID uuid.UUID) (*model.Producto, error) {
	producto, err := s.productoRepo.FindByID(ctx, productoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductoOSucursalDesconocida
		}
		return nil, err
	}
	return producto, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *stockService) SnapshotSucursal(ctx context.Context, sucursalID uuid.UUID) ([]dto.StockSucursalResponse, error) {
	rows, err := s.repo.ListPorSucursal(ctx, sucursalID)
	if err != nil {
		return nil, err
	}
	return stockRowsToResponse(rows), nil
}

// Alertas lists rows at or below their configured minimum.
func (s *stockService) Alertas(ctx context.Context, sucursalID uuid.UUID) ([]dto.StockSucursalResponse, error) {
	rows, err := s.repo.ListAlertas(ctx, sucursalID)
	if err != nil {
		return nil, err
	}
	return stockRowsToResponse(rows), nil
}

func (s *stockService) ListarMovimientos(ctx context.Context, filter dto.MovimientoFilter) (*dto.MovimientoListResponse, error) {
	rf := repository.MovimientoStockFilter{
		Tipo:  filter.Tipo,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	if filter.SucursalID != "" {
		id, err := uuid.Parse(filter.SucursalID)
		if err != nil {
			return nil, ErrProductoOSucursalDesconocida
		}
		rf.SucursalID = &id
	}
	if filter.ProductoID != "" {
		id, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, ErrProductoOSucursalDesconocida
		}
		rf.ProductoID = &id
	}
	if filter.Desde != "" {
		d, err := time.Parse("2006-01-02", filter.Desde)
		if err != nil {
			return nil, fmt.Errorf("fecha desde inválida: %w", err)
		}
		rf.Desde = &d
	}
	if filter.Hasta != "" {
		h, err := time.Parse("2006-01-02", filter.Hasta)
		if err != nil {
			return nil, fmt.Errorf("fecha hasta inválida: %w", err)
		}
		// hasta is inclusive of the whole day
		h = h.AddDate(0, 0, 1)
		rf.Hasta = &h
	}
	if rf.Page < 1 {
		rf.Page = 1
	}
	if rf.Limit < 1 {
		rf.Limit = 100
	}

	movs, total, err := s.movRepo.List(ctx, rf)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovimientoResponse, 0, len(movs))
	for i := range movs {
		data = append(data, movimientoToResponse(&movs[i]))
	}
	return &dto.MovimientoListResponse{Data: data, Total: total, Page: rf.Page, Limit: rf.Limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func parsePar(productoID, sucursalID string) (uuid.UUID, uuid.UUID, error) {
	pid, err := uuid.Parse(productoID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrProductoOSucursalDesconocida
	}
	sid, err := uuid.Parse(sucursalID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrProductoOSucursalDesconocida
	}
	return pid, sid, nil
}

// menorID orders uuids bytewise, the same order postgres uses.
func menorID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func mutacionToResponse(r *ResultadoMutacion) *dto.MutacionResponse {
	return &dto.MutacionResponse{
		ProductoID:    r.ProductoID.String(),
		SucursalID:    r.SucursalID.String(),
		StockAnterior: r.StockAnterior,
		StockNuevo:    r.StockNuevo,
	}
}

func stockRowToResponse(r *model.StockSucursal) *dto.StockSucursalResponse {
	nombre := ""
	if r.Producto != nil {
		nombre = r.Producto.Nombre
	}
	return &dto.StockSucursalResponse{
		ProductoID:  r.ProductoID.String(),
		Producto:    nombre,
		SucursalID:  r.SucursalID.String(),
		Cantidad:    r.Cantidad,
		StockMinimo: r.StockMinimo,
		StockMaximo: r.StockMaximo,
		BajoMinimo:  r.BajoMinimo(),
		SobreMaximo: r.SobreMaximo(),
	}
}

func stockRowsToResponse(rows []model.StockSucursal) []dto.StockSucursalResponse {
	out := make([]dto.StockSucursalResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *stockRowToResponse(&rows[i]))
	}
	return out
}

func movimientoToResponse(m *model.MovimientoStock) dto.MovimientoResponse {
	nombre := ""
	if m.Producto != nil {
		nombre = m.Producto.Nombre
	}
	return dto.MovimientoResponse{
		ID:            m.ID.String(),
		ProductoID:    m.ProductoID.String(),
		Producto:      nombre,
		SucursalID:    m.SucursalID.String(),
		Tipo:          string(m.Tipo),
		Cantidad:      m.Cantidad,
		StockAnterior: m.StockAnterior,
		StockNuevo:    m.StockNuevo,
		UsuarioID:     uuidPtrString(m.UsuarioID),
		Motivo:        m.Motivo,
		ReferenciaID:  uuidPtrString(m.ReferenciaID),
		CreatedAt:     formatTime(m.CreatedAt),
	}
}
