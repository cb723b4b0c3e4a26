package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEventos = "jobs:eventos"

	JobEvento = "evento"
	JobTicket = "ticket"

	// MaxJobAttempts is how many times a failing job runs before it goes to the DLQ.
	MaxJobAttempts = 3

	enqueueTimeout = 2 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// Difusor pushes an event to connected displays. *ws.Hub implements it.
type Difusor interface {
	Publicar(ev dto.Evento)
}

// Dispatcher enqueues committed events into Redis. The worker pool dequeues
// them via BRPOP. It implements service.Publicador.
type Dispatcher struct {
	rdb *redis.Client
	cb  *infra.CircuitBreaker
	// local receives the event directly when Redis is unavailable, so kitchen
	// displays on this instance still get it.
	local Difusor
}

func NewDispatcher(rdb *redis.Client, cb *infra.CircuitBreaker, local Difusor) *Dispatcher {
	return &Dispatcher{rdb: rdb, cb: cb, local: local}
}

// Publicar never blocks the request for longer than enqueueTimeout and never
// fails it: the business transaction already committed.
func (d *Dispatcher) Publicar(ctx context.Context, ev dto.Evento) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	if err := d.enqueue(ctx, JobEvento, ev); err != nil {
		log.Warn().Err(err).
			Str("type", ev.Type).
			Str("sucursal_id", ev.SucursalID).
			Str("cb_state", d.cb.State().String()).
			Msg("dispatcher: enqueue failed, broadcasting locally")
		if d.local != nil {
			d.local.Publicar(ev)
		}
	}

	// the ticket job is independent: its failure must not re-broadcast an
	// event that is already queued
	if ev.Type == dto.EventoMesaCerrada && ev.Prefactura != nil {
		if err := d.enqueue(ctx, JobTicket, ev); err != nil {
			log.Error().Err(err).
				Str("sucursal_id", ev.SucursalID).
				Str("prefactura_id", ev.Prefactura.ID).
				Msg("dispatcher: ticket job not enqueued")
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.push(ctx, Job{Type: jobType, Payload: data})
}

func (d *Dispatcher) push(ctx context.Context, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.cb.Execute(func() error {
		return d.rdb.LPush(ctx, QueueEventos, encoded).Err()
	})
}

// Procesador runs one job. A returned error makes the pool retry the job.
type Procesador struct {
	Difusor        Difusor
	PDFStoragePath string
}

// Process dispatches on the job type.
func (p *Procesador) Process(ctx context.Context, job Job) error {
	var ev dto.Evento
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		return errPermanente{fmt.Errorf("invalid payload: %w", err)}
	}

	switch job.Type {
	case JobEvento:
		if p.Difusor != nil {
			p.Difusor.Publicar(ev)
		}
		return nil
	case JobTicket:
		ticket, err := ticketDesdeEvento(ev)
		if err != nil {
			return errPermanente{err}
		}
		path, err := infra.GeneratePrefacturaPDF(ticket, p.PDFStoragePath)
		if err != nil {
			return err
		}
		log.Info().
			Str("prefactura_id", ticket.PrefacturaID.String()).
			Int("mesa", ticket.MesaNumero).
			Str("path", path).
			Msg("ticket: prefactura generated")
		return nil
	default:
		return errPermanente{fmt.Errorf("unknown job type %q", job.Type)}
	}
}

// errPermanente marks failures that retrying cannot fix.
type errPermanente struct{ err error }

func (e errPermanente) Error() string { return e.err.Error() }
func (e errPermanente) Unwrap() error { return e.err }

// StartWorkerPool launches numWorkers goroutines consuming QueueEventos.
// Each goroutine blocks on BRPOP, so idle workers cost no CPU.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, p *Procesador) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, p)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, p *Procesador) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueEventos).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: brpop failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, p, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, p *Procesador, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, "", json.RawMessage(`null`), "unmarshal: "+err.Error(), 0)
		return
	}

	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	job.Attempts++

	var perm errPermanente
	if errors.As(err, &perm) || job.Attempts >= MaxJobAttempts {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}

	log.Warn().Err(err).
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Msg("worker: job failed, requeued")
	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		log.Error().Err(mErr).Msg("worker: marshal requeued job")
		return
	}
	if pErr := rdb.LPush(ctx, queue, encoded).Err(); pErr != nil {
		log.Error().Err(pErr).Str("type", job.Type).Msg("worker: requeue failed")
	}
}
