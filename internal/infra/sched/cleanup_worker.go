package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/usecase"
)

// CleanupWorker periodically purges terminal jobs past their retention age.
// Completed jobs are kept briefly for observability, failed ones for
// diagnosis; both eventually go.
type CleanupWorker struct {
	interval  time.Duration
	retention time.Duration
	queue     usecase.JobQueueUseCase
	log       *zerolog.Logger
}

func NewCleanupWorker(interval, retention time.Duration, queue usecase.JobQueueUseCase, logger *zerolog.Logger) *CleanupWorker {
	l := logger.With().Str("component", "CleanupWorker").Logger()
	return &CleanupWorker{interval: interval, retention: retention, queue: queue, log: &l}
}

func (w *CleanupWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("retention", w.retention).Msg("starting cleanup worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping cleanup worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.queue.CleanupTerminal(ctx, w.retention)
			if err != nil {
				w.log.Error().Err(err).Msg("cleanup error")
				continue
			}
			if n > 0 {
				w.log.Info().Int64("count", n).Msg("terminal jobs purged")
			}
		}
	}
}
