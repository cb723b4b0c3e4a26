package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TxRunner runs store transactions with a bounded timeout and a bounded number
// of retries on serialization failures and deadlocks. Business errors returned
// by fn are never retried.
type TxRunner struct {
	db         *gorm.DB
	timeout    time.Duration
	maxRetries int
}

func NewTxRunner(db *gorm.DB, timeout time.Duration, maxRetries int) *TxRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxRunner{db: db, timeout: timeout, maxRetries: maxRetries}
}

// DB exposes the pool for read-only queries outside a transaction.
func (r *TxRunner) DB() *gorm.DB { return r.db }

// Run executes fn in a transaction. On timeout the transaction is rolled back
// and context.DeadlineExceeded is returned. When retries are exhausted the
// result is ErrModificacionConcurrente.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for intento := 0; intento <= r.maxRetries; intento++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !esReintentable(err) {
			return err
		}
		log.Warn().Err(err).Int("intento", intento+1).Msg("tx: serialization failure, retrying")
		// short linear backoff so competing writers interleave
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(intento+1) * 10 * time.Millisecond):
		}
	}
	return errors.Join(ErrModificacionConcurrente, err)
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.WithContext(ctx).Transaction(fn)
}

// esReintentable matches SQLSTATE 40001 (serialization_failure) and
// 40P01 (deadlock_detected).
func esReintentable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
