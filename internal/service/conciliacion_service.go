package service

import (
	"context"
	"errors"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/model"
	"mesapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Conciliacion compares a table's cached running total with the total
// recomputed from its session's order lines.
type Conciliacion struct {
	MesaID         uuid.UUID
	TotalCalculado decimal.Decimal
	TotalCacheado  decimal.Decimal
	// Discrepancia = TotalCalculado - TotalCacheado. Reported, never corrected.
	Discrepancia  decimal.Decimal
	Clasificacion string
	// VentasFueraDeSesion are active ventas of the table stamped before the
	// session opened. They are not part of the bill.
	VentasFueraDeSesion []uuid.UUID
	// Ventas are the billable ventas of the session, items preloaded.
	Ventas []model.Venta
}

type ConciliacionService interface {
	Recalcular(ctx context.Context, mesaID uuid.UUID) (*Conciliacion, error)
	// RecalcularTx runs inside the caller's transaction with the mesa row
	// already locked. hasta closes the session window.
	RecalcularTx(tx *gorm.DB, mesa *model.Mesa, hasta time.Time) (*Conciliacion, error)
	// RecalcularAbiertas sweeps every table with an open session and returns
	// how many showed a discrepancy.
	RecalcularAbiertas(ctx context.Context) (int, error)
}

type conciliacionService struct {
	txr       *TxRunner
	mesaRepo  repository.MesaRepository
	ventaRepo repository.VentaRepository
	now       Reloj
}

func NewConciliacionService(txr *TxRunner, mesaRepo repository.MesaRepository, ventaRepo repository.VentaRepository) ConciliacionService {
	return &conciliacionService{txr: txr, mesaRepo: mesaRepo, ventaRepo: ventaRepo, now: relojUTC}
}

// estadosFueraDeSesion are the statuses flagged when stamped before the session.
var estadosFueraDeSesion = []model.EstadoVenta{
	model.VentaPendienteAprobacion, model.VentaPendiente, model.VentaPreparando, model.VentaListo,
}

func (s *conciliacionService) Recalcular(ctx context.Context, mesaID uuid.UUID) (*Conciliacion, error) {
	var c *Conciliacion
	err := s.txr.Run(ctx, func(tx *gorm.DB) error {
		m, err := s.mesaRepo.FindByIDTx(tx, mesaID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMesaNoEncontrada
			}
			return err
		}
		c, err = s.RecalcularTx(tx, m, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *conciliacionService) RecalcularTx(tx *gorm.DB, mesa *model.Mesa, hasta time.Time) (*Conciliacion, error) {
	if !mesa.Estado.SesionAbierta() || mesa.SesionAbiertaAt == nil {
		return nil, ErrMesaSinSesion
	}
	desde := *mesa.SesionAbiertaAt

	ventas, err := s.ventaRepo.ListSesionTx(tx, mesa.ID, desde, hasta, model.EstadosFacturables)
	if err != nil {
		return nil, err
	}
	calculado := decimal.Zero
	for _, v := range ventas {
		for _, it := range v.Items {
			calculado = calculado.Add(it.Subtotal)
		}
	}

	anteriores, err := s.ventaRepo.ListAnterioresTx(tx, mesa.ID, desde, estadosFueraDeSesion)
	if err != nil {
		return nil, err
	}
	fuera := make([]uuid.UUID, 0, len(anteriores))
	for _, v := range anteriores {
		fuera = append(fuera, v.ID)
	}

	disc := calculado.Sub(mesa.TotalAcumulado)
	c := &Conciliacion{
		MesaID:              mesa.ID,
		TotalCalculado:      calculado,
		TotalCacheado:       mesa.TotalAcumulado,
		Discrepancia:        disc,
		Clasificacion:       clasificarDiscrepancia(disc, calculado),
		VentasFueraDeSesion: fuera,
		Ventas:              ventas,
	}

	if !disc.IsZero() || len(fuera) > 0 {
		log.Warn().
			Str("mesa_id", mesa.ID.String()).
			Str("calculado", calculado.StringFixed(2)).
			Str("cacheado", mesa.TotalAcumulado.StringFixed(2)).
			Str("clasificacion", c.Clasificacion).
			Int("ventas_fuera_de_sesion", len(fuera)).
			Msg("conciliacion: discrepancy detected")
	}
	return c, nil
}

func (s *conciliacionService) RecalcularAbiertas(ctx context.Context) (int, error) {
	mesas, err := s.mesaRepo.ListConSesion(ctx)
	if err != nil {
		return 0, err
	}
	conDiscrepancia := 0
	for _, m := range mesas {
		c, err := s.Recalcular(ctx, m.ID)
		if err != nil {
			// the session may have closed since the list was read
			if errors.Is(err, ErrMesaSinSesion) {
				continue
			}
			return conDiscrepancia, err
		}
		if !c.Discrepancia.IsZero() {
			conDiscrepancia++
		}
	}
	return conDiscrepancia, nil
}

// clasificarDiscrepancia returns "normal" | "advertencia" | "critico"
// normal: |disc| <= 1% of the computed total, advertencia: <= 5%, critico: > 5%.
// Any discrepancy against a zero total is critico.
func clasificarDiscrepancia(disc, calculado decimal.Decimal) string {
	if disc.IsZero() {
		return "normal"
	}
	if calculado.IsZero() {
		return "critico"
	}
	pct := disc.Abs().Div(calculado.Abs()).Mul(decimal.NewFromInt(100))
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case pct.LessThanOrEqual(decimal.NewFromInt(5)):
		return "advertencia"
	default:
		return "critico"
	}
}

// ConciliacionToResponse maps a reconciliation result to its API shape.
func ConciliacionToResponse(c *Conciliacion) *dto.ConciliacionResponse {
	fuera := make([]string, 0, len(c.VentasFueraDeSesion))
	for _, id := range c.VentasFueraDeSesion {
		fuera = append(fuera, id.String())
	}
	return &dto.ConciliacionResponse{
		MesaID:              c.MesaID.String(),
		TotalCalculado:      c.TotalCalculado,
		TotalCacheado:       c.TotalCacheado,
		Discrepancia:        c.Discrepancia,
		Clasificacion:       c.Clasificacion,
		CantidadVentas:      len(c.Ventas),
		VentasFueraDeSesion: fuera,
	}
}
