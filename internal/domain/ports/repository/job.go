package repository

import (
	"context"
	"time"

	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
)

// JobRepository is the durable source of truth for job lifecycle state.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// FetchAndMarkProcessing atomically claims the oldest pending job: it marks
	// the row processing, stamps startedAt and increments the attempt counter,
	// so no other worker can pick up the same job.
	FetchAndMarkProcessing(ctx context.Context) (*model.Job, error)

	// MarkTerminal persists a terminal transition guarded by the current status,
	// so a cancelled job is never resurrected to completed or failed.
	MarkTerminal(ctx context.Context, tx Tx, job *model.Job) error

	// Cancel flips a pending or processing job to cancelled. Returns false when
	// the job is already terminal.
	Cancel(ctx context.Context, tx Tx, id string) (bool, error)

	// DeleteTerminalBefore purges completed/failed/cancelled jobs older than the
	// cutoff and reports how many rows were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
