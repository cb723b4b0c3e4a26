package worker

// conciliacion_cron.go: periodic sweep that recomputes the running total of
// every open table session and logs discrepancies against the cached value.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Conciliador is the part of service.ConciliacionService the sweep needs.
type Conciliador interface {
	RecalcularAbiertas(ctx context.Context) (int, error)
}

// StartConciliacionCron ticks every interval until ctx is cancelled. A zero
// interval disables the sweep.
func StartConciliacionCron(ctx context.Context, c Conciliador, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("conciliacion_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("conciliacion_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("conciliacion_cron: shutting down")
				return
			case <-ticker.C:
				barrerSesiones(ctx, c)
			}
		}
	}()
}

func barrerSesiones(ctx context.Context, c Conciliador) {
	start := time.Now()
	n, err := c.RecalcularAbiertas(ctx)
	if err != nil {
		log.Error().Err(err).Msg("conciliacion_cron: sweep failed")
		return
	}
	ev := log.Debug()
	if n > 0 {
		ev = log.Warn()
	}
	ev.Int("con_discrepancia", n).
		Dur("took", time.Since(start)).
		Msg("conciliacion_cron: sweep done")
}
