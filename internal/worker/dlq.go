package worker

// dlq.go: jobs that exhaust MaxJobAttempts, or that can never succeed, are
// moved to dlq:{original_queue} for manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"mesapos/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339, UTC
	Attempts      int             `json:"attempts"`
	// Copied from the event payload so an operator can find the affected
	// branch and table without decoding it.
	EventType  string `json:"event_type,omitempty"`
	SucursalID string `json:"sucursal_id,omitempty"`
	MesaID     string `json:"mesa_id,omitempty"`
}

// nuevaEntradaDLQ builds the entry. An undecodable payload is still stored,
// only without the event fields.
func nuevaEntradaDLQ(queue, jobType string, payload json.RawMessage, reason string, attempts int, now time.Time) DLQEntry {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      now.UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}
	var ev dto.Evento
	if err := json.Unmarshal(payload, &ev); err == nil {
		entry.EventType = ev.Type
		entry.SucursalID = ev.SucursalID
		entry.MesaID = ev.MesaID
	}
	return entry
}

// SendToDLQ pushes a failed job to the dead letter queue. Errors are logged only.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := nuevaEntradaDLQ(queue, jobType, payload, reason, attempts, time.Now())

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("event_type", entry.EventType).
		Str("sucursal_id", entry.SucursalID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ, reported by /health.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
