package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/config"
	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/adapter"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
	"github.com/peterjabraham/debatable-sub001/internal/infra/logging"
	"github.com/peterjabraham/debatable-sub001/internal/infra/metrics"
	red "github.com/peterjabraham/debatable-sub001/internal/infra/redis"
	"github.com/peterjabraham/debatable-sub001/internal/llm"
	"github.com/peterjabraham/debatable-sub001/internal/retry"
	"github.com/peterjabraham/debatable-sub001/internal/usecase"
)

// JobProcessor pulls pending jobs and runs the type-specific routine for
// each, within the pool's concurrency bound and the rolling-window start cap.
type JobProcessor struct {
	jobs      repository.JobRepository
	conv      usecase.ConversationUseCase
	ai        adapter.AIServiceAdapter
	limiter   *red.RateLimiter
	cfg       config.QueueConfig
	retryOpts retry.Options
	provider  string
	model     string
	log       *zerolog.Logger
}

func NewJobProcessor(
	jobs repository.JobRepository,
	conv usecase.ConversationUseCase,
	ai adapter.AIServiceAdapter,
	limiter *red.RateLimiter,
	cfg config.QueueConfig,
	provider, model string,
	logger *zerolog.Logger,
) *JobProcessor {
	l := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		jobs:    jobs,
		conv:    conv,
		ai:      ai,
		limiter: limiter,
		cfg:     cfg,
		retryOpts: retry.Options{
			MaxAttempts:       cfg.MaxAttempts,
			InitialDelay:      cfg.InitialDelay,
			MaxDelay:          cfg.MaxDelay,
			BackoffMultiplier: 2,
			RetryablePatterns: retry.DefaultRetryablePatterns,
			OnRetry:           func(int, error) { metrics.IncAIRetry(provider) },
		},
		provider: provider,
		model:    model,
		log:      &l,
	}
}

// Start runs a loop that feeds the worker pool.
// This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *JobProcessor) processOne(ctx context.Context) {
	job, err := p.jobs.FetchAndMarkProcessing(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to fetch job")
		}
		return
	}

	// The window caps actual job starts, so the limiter is consulted only
	// once a job is claimed; idle polls never touch the budget.
	allowed, err := p.limiter.Allow(ctx, red.JobStartKey(time.Minute, time.Now()), p.cfg.StartsPerMinute, time.Minute)
	if err != nil {
		// Without the limiter we cannot respect the remote's rate limit, so
		// return the claim and hold off this tick.
		p.log.Warn().Err(err).Msg("rate limiter unavailable, deferring dispatch")
		p.requeue(ctx, job)
		return
	}
	if !allowed {
		metrics.IncRateLimitRejected()
		p.requeue(ctx, job)
		return
	}

	metrics.IncWorkerBusy()
	defer metrics.DecWorkerBusy()

	jctx, cancel := context.WithTimeout(logging.WithJobID(ctx, job.ID), p.cfg.JobTimeout)
	defer cancel()
	log := logging.With(jctx, p.log)

	log.Info().Str("type", string(job.Type)).Msg("processing job")
	start := time.Now()

	result, err := p.handleJob(jctx, job)
	latency := time.Since(start)

	if err != nil {
		log.Error().Err(err).Msg("job failed")
		_ = job.MarkFailed(err.Error(), time.Now())
	} else {
		raw, merr := json.Marshal(result)
		if merr != nil {
			_ = job.MarkFailed(fmt.Sprintf("encode result: %v", merr), time.Now())
		} else {
			_ = job.MarkCompleted(raw, time.Now())
		}
	}

	// Background context for the final update so teardown can't lose it.
	if err := p.jobs.MarkTerminal(context.Background(), nil, job); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			log.Info().Msg("job cancelled mid-flight, result discarded")
			metrics.IncJobProcessed(string(job.Type), string(model.JobStatusCancelled))
			return
		}
		log.Error().Err(err).Msg("failed to persist terminal status")
		return
	}

	metrics.IncJobProcessed(string(job.Type), string(job.Status))
	metrics.ObserveJobAttempts(string(job.Type), job.Attempts)
	log.Info().Str("status", string(job.Status)).Dur("duration", latency).Msg("job finished")
}

// requeue returns a claimed job to the queue when it cannot start this tick.
// The guarded save keeps a concurrent cancel intact.
func (p *JobProcessor) requeue(ctx context.Context, job *model.Job) {
	if err := job.Requeue(time.Now()); err != nil {
		return
	}
	if err := p.jobs.Save(ctx, nil, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to requeue job")
	}
}

// handleJob dispatches on the closed payload union.
func (p *JobProcessor) handleJob(ctx context.Context, job *model.Job) (interface{}, error) {
	switch payload := job.Payload.(type) {
	case model.GenerateResponsePayload:
		return p.generateResponse(ctx, job, payload)
	case model.SelectExpertsPayload:
		return p.selectExperts(ctx, job, payload)
	case model.ExtractTopicsPayload:
		return p.extractTopics(ctx, job, payload)
	case model.GenerateSummaryPayload:
		return p.generateSummary(ctx, job, payload)
	default:
		return nil, fmt.Errorf("%w: unhandled payload %T", domain.ErrInvalidArgument, payload)
	}
}

func (p *JobProcessor) generateResponse(ctx context.Context, job *model.Job, payload model.GenerateResponsePayload) (interface{}, error) {
	p.advance(ctx, job, 20)

	msgs := make([]adapter.Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return nil, domain.ErrEmptyTranscript
	}

	reply, err := p.generate(ctx, expertSystemPrompt(payload.Expert, payload.Topic), msgs)
	if err != nil {
		return nil, err
	}
	p.advance(ctx, job, 80)

	// Feed the produced message into the turn engine. Best-effort: context
	// updates never fail the job.
	if payload.ConversationID != "" && p.conv != nil {
		if _, err := p.conv.RecordMessage(ctx, usecase.RecordMessageInput{
			ConversationID: payload.ConversationID,
			MessageID:      uuid.NewString(),
			SpeakerID:      payload.Expert.Name,
			Content:        reply,
			Timestamp:      time.Now(),
		}); err != nil {
			p.log.Warn().Err(err).Str("conversation_id", payload.ConversationID).Msg("turn recording failed")
		}
	}

	return model.GenerateResponseResult{Response: reply}, nil
}

func (p *JobProcessor) selectExperts(ctx context.Context, job *model.Job, payload model.SelectExpertsPayload) (interface{}, error) {
	p.advance(ctx, job, 20)

	reply, err := p.generate(ctx, selectExpertsSystemPrompt(payload.ExpertType, payload.Count),
		[]adapter.Message{{Role: "user", Content: payload.Topic}})
	if err != nil {
		return nil, err
	}
	p.advance(ctx, job, 80)

	var out model.SelectExpertsResult
	if err := llm.Decode(reply, &out); err != nil {
		return nil, fmt.Errorf("parse expert selection: %w", err)
	}
	if len(out.Experts) > payload.Count {
		out.Experts = out.Experts[:payload.Count]
	}
	for i := range out.Experts {
		if out.Experts[i].ID == "" {
			out.Experts[i].ID = uuid.NewString()
		}
	}
	return out, nil
}

func (p *JobProcessor) extractTopics(ctx context.Context, job *model.Job, payload model.ExtractTopicsPayload) (interface{}, error) {
	p.advance(ctx, job, 20)

	text := payload.Text
	if len(text) > maxSourceChars {
		text = text[:maxSourceChars]
	}
	reply, err := p.generate(ctx, extractTopicsSystemPrompt(payload.SourceType, payload.MaxTopics),
		[]adapter.Message{{Role: "user", Content: text}})
	if err != nil {
		return nil, err
	}
	p.advance(ctx, job, 80)

	var out model.ExtractTopicsResult
	if err := llm.Decode(reply, &out); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	if len(out.Topics) > payload.MaxTopics {
		out.Topics = out.Topics[:payload.MaxTopics]
	}
	return out, nil
}

func (p *JobProcessor) generateSummary(ctx context.Context, job *model.Job, payload model.GenerateSummaryPayload) (interface{}, error) {
	p.advance(ctx, job, 20)

	reply, err := p.generate(ctx, summarySystemPrompt(payload.Topic),
		[]adapter.Message{{Role: "user", Content: renderTranscript(payload.Messages)}})
	if err != nil {
		return nil, err
	}
	p.advance(ctx, job, 80)

	var out model.SummaryResult
	if err := llm.Decode(reply, &out); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return out, nil
}

// generate calls the AI port through the retry wrapper and records latency.
func (p *JobProcessor) generate(ctx context.Context, system string, msgs []adapter.Message) (string, error) {
	if n, err := p.ai.CountTokens(ctx, msgs); err == nil {
		p.log.Trace().Int("prompt_tokens", n).Msg("prompt sized")
	}
	start := time.Now()
	reply, err := retry.Do(ctx, p.retryOpts, func(ctx context.Context) (string, error) {
		return p.ai.Generate(ctx, system, msgs)
	})
	metrics.ObserveAICall(p.provider, p.model, int(time.Since(start)/time.Millisecond), err == nil)
	return reply, err
}

// advance persists a progress milestone; purely informational, so failures
// are ignored.
func (p *JobProcessor) advance(ctx context.Context, job *model.Job, progress int) {
	job.SetProgress(progress)
	_ = p.jobs.Save(ctx, nil, job)
}
