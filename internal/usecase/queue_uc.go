// File: internal/usecase/queue_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
	"github.com/peterjabraham/debatable-sub001/internal/infra/metrics"
	"github.com/peterjabraham/debatable-sub001/internal/retry"
)

// Compile-time check
var _ JobQueueUseCase = (*queueUC)(nil)

// JobStatusResponse is the only job shape exposed to callers; type-specific
// payload fields never leak into it. Type names the job kind so a poller can
// pick the matching result shape without a second lookup.
type JobStatusResponse struct {
	JobID       string          `json:"jobId"`
	Type        model.JobType   `json:"type"`
	Status      model.JobStatus `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type JobQueueUseCase interface {
	// Submit validates and durably enqueues a job, returning its id. The job
	// is visible as pending before Submit returns.
	Submit(ctx context.Context, payload model.JobPayload) (string, error)
	GetStatus(ctx context.Context, jobID string) (*JobStatusResponse, error)
	// Cancel removes a pending job from dispatch; cancelling a processing job
	// is advisory (the in-flight result is discarded).
	Cancel(ctx context.Context, jobID string) (bool, error)
	// CleanupTerminal purges terminal jobs older than the provided age.
	CleanupTerminal(ctx context.Context, olderThan time.Duration) (int64, error)
}

type queueUC struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
}

// storageRetry covers brief unavailability of the queue's own store during
// submission. Job-routine retries are a separate concern handled by workers.
var storageRetry = retry.Options{
	MaxAttempts:       3,
	InitialDelay:      100 * time.Millisecond,
	MaxDelay:          2 * time.Second,
	BackoffMultiplier: 2,
	RetryablePatterns: []string{"connection refused", "connection reset", "timeout", "deadline exceeded", "too many clients"},
}

func NewJobQueueUseCase(jobs repository.JobRepository, logger *zerolog.Logger) *queueUC {
	l := logger.With().Str("component", "JobQueue").Logger()
	return &queueUC{jobs: jobs, log: &l}
}

func (q *queueUC) Submit(ctx context.Context, payload model.JobPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("%w: nil payload", domain.ErrInvalidArgument)
	}
	if err := payload.Validate(); err != nil {
		return "", err
	}

	job := model.NewJob(payload)
	_, err := retry.Do(ctx, storageRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, q.jobs.Save(ctx, nil, job)
	})
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	metrics.IncJobSubmitted(string(job.Type))
	q.log.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("job submitted")
	return job.ID, nil
}

func (q *queueUC) GetStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	job, err := q.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	return statusOf(job), nil
}

func (q *queueUC) Cancel(ctx context.Context, jobID string) (bool, error) {
	ok, err := q.jobs.Cancel(ctx, nil, jobID)
	if err != nil {
		return false, err
	}
	if ok {
		q.log.Info().Str("job_id", jobID).Msg("job cancelled")
	}
	return ok, nil
}

func (q *queueUC) CleanupTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := q.jobs.DeleteTerminalBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddJobsPurged(n)
	}
	return n, nil
}

func statusOf(job *model.Job) *JobStatusResponse {
	return &JobStatusResponse{
		JobID:       job.ID,
		Type:        job.Type,
		Status:      job.Status,
		Progress:    job.Progress,
		Result:      job.Result,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
