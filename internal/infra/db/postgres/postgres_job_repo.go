package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, type, status, payload, progress, result, last_error, attempts, created_at, started_at, completed_at, updated_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now()

	// The payload is immutable after creation; the upsert only touches
	// lifecycle fields. A terminal row is never overwritten here, so a
	// progress save racing a cancel cannot resurrect the job.
	const q = `
INSERT INTO jobs (id, type, status, payload, progress, result, last_error, attempts, created_at, started_at, completed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  result = EXCLUDED.result,
  last_error = EXCLUDED.last_error,
  attempts = EXCLUDED.attempts,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at,
  updated_at = EXCLUDED.updated_at
WHERE jobs.status NOT IN ('completed', 'failed', 'cancelled');`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.Type, job.Status, payload, job.Progress, nullableJSON(job.Result),
		job.Error, job.Attempts, job.CreatedAt, job.StartedAt, job.CompletedAt, job.UpdatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			return err
		}

		if err := fetched.MarkProcessing(time.Now()); err != nil {
			return err
		}
		if err := r.Save(ctx, tx, fetched); err != nil {
			return err
		}
		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) MarkTerminal(ctx context.Context, tx repository.Tx, job *model.Job) error {
	job.UpdatedAt = time.Now()

	// Guarded by the current status: a concurrently cancelled job stays
	// cancelled and the in-flight result is discarded.
	const q = `
UPDATE jobs SET
  status = $2, progress = $3, result = $4, last_error = $5,
  completed_at = $6, updated_at = $7
WHERE id = $1 AND status = 'processing';`

	tag, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Status, job.Progress, nullableJSON(job.Result), job.Error, job.CompletedAt, job.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobTerminal
	}
	return nil
}

func (r *jobRepo) Cancel(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `
UPDATE jobs SET status = 'cancelled', completed_at = $2, updated_at = $2
WHERE id = $1 AND status IN ('pending', 'processing');`

	tag, err := execSQL(ctx, r.pool, tx, q, id, time.Now())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish "already terminal" from "unknown job".
	if _, err := r.FindByID(ctx, tx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *jobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
DELETE FROM jobs
WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < $1;`

	tag, err := execSQL(ctx, r.pool, nil, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j          model.Job
		typeStr    string
		statusStr  string
		payloadRaw []byte
		resultRaw  []byte
	)
	err := row.Scan(
		&j.ID, &typeStr, &statusStr, &payloadRaw, &j.Progress, &resultRaw,
		&j.Error, &j.Attempts, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Type = model.JobType(typeStr)
	j.Status = model.JobStatus(statusStr)
	if len(resultRaw) > 0 {
		j.Result = json.RawMessage(resultRaw)
	}
	payload, err := model.UnmarshalPayload(j.Type, payloadRaw)
	if err != nil {
		return nil, err
	}
	j.Payload = payload
	return &j, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
