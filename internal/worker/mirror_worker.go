// Package worker replays change events into the spreadsheet mirror.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"zetafin/internal/amqp"
	"zetafin/internal/core"
	"zetafin/internal/log"
	"zetafin/internal/sheets"
)

// MirrorWorker applies change messages to a sheets.Mirror and counts outcomes.
type MirrorWorker struct {
	mirror sheets.Mirror
	logger *log.Logger

	applied atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// Stats are the running counters of a MirrorWorker.
type Stats struct {
	Applied int64
	Skipped int64
	Failed  int64
}

func NewMirrorWorker(mirror sheets.Mirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{mirror: mirror, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleChange is an amqp.ChangeHandler. Category events are acknowledged
// without touching the mirror.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Entity != core.EntityTransaction {
		w.skipped.Add(1)
		w.logger.DebugContext(ctx, "Change skipped",
			log.FieldEntity, msg.Entity, log.FieldEntityID, msg.ID.String())
		return nil
	}

	ref, err := sheets.Apply(ctx, w.mirror, msg.Change)
	if err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to mirror change",
			log.FieldOperation, log.OpMirror,
			log.FieldEntityID, msg.ID.String(),
			"op", string(msg.Op),
			log.FieldError, err)
		return fmt.Errorf("mirror %s %s: %w", msg.Op, msg.ID, err)
	}

	w.applied.Add(1)
	w.logger.InfoContext(ctx, "Change mirrored",
		log.FieldOperation, log.OpMirror,
		log.FieldEntityID, msg.ID.String(),
		"op", string(msg.Op),
		log.FieldSheetsRef, ref)
	return nil
}

// Resync upserts every transaction, e.g. to catch up on events published
// while the worker was down. It keeps going after a failed row and returns
// the joined errors.
func (w *MirrorWorker) Resync(ctx context.Context, txs []core.Transaction) error {
	var errs []error
	done := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.mirror.Upsert(ctx, tx); err != nil {
			w.failed.Add(1)
			errs = append(errs, fmt.Errorf("resync %s: %w", tx.ID, err))
			continue
		}
		done++
	}
	w.applied.Add(int64(done))
	w.logger.InfoContext(ctx, "Startup resync completed",
		log.FieldCount, done, "failed", len(errs))
	return errors.Join(errs...)
}

func (w *MirrorWorker) Stats() Stats {
	return Stats{
		Applied: w.applied.Load(),
		Skipped: w.skipped.Load(),
		Failed:  w.failed.Load(),
	}
}
