package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
)

type JobType string

const (
	JobTypeGenerateResponse JobType = "generate-response"
	JobTypeSelectExperts    JobType = "select-experts"
	JobTypeExtractTopics    JobType = "extract-topics"
	JobTypeGenerateSummary  JobType = "generate-summary"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo enforces the one-directional lifecycle:
// pending -> processing -> completed|failed, and pending|processing -> cancelled.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusCancelled
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}

// ChatMessage is one entry of a debate transcript as carried in job payloads.
// Name identifies the speaker for expert/assistant turns.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ExpertProfile describes a debate participant generated or selected for a topic.
type ExpertProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Stance     string `json:"stance"` // "pro" | "con"
	Background string `json:"background,omitempty"`
	Expertise  string `json:"expertise,omitempty"`
}

// JobPayload is the closed union of job inputs. The dispatch switch in the
// worker is exhaustive over these concrete types, so adding a job kind is a
// compile-time-checked change.
type JobPayload interface {
	Type() JobType
	Validate() error
}

type GenerateResponsePayload struct {
	Expert   ExpertProfile `json:"expert"`
	Topic    string        `json:"topic"`
	Messages []ChatMessage `json:"messages"`

	// ConversationID links the produced message into the turn engine when set.
	ConversationID string `json:"conversationId,omitempty"`
}

func (GenerateResponsePayload) Type() JobType { return JobTypeGenerateResponse }

func (p GenerateResponsePayload) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("%w: topic is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(p.Expert.Name) == "" {
		return fmt.Errorf("%w: expert.name is required", domain.ErrInvalidArgument)
	}
	return nil
}

type SelectExpertsPayload struct {
	Topic      string `json:"topic"`
	ExpertType string `json:"expertType"` // "historical" | "domain"
	Count      int    `json:"count"`
}

func (SelectExpertsPayload) Type() JobType { return JobTypeSelectExperts }

func (p SelectExpertsPayload) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("%w: topic is required", domain.ErrInvalidArgument)
	}
	if p.Count <= 0 || p.Count > 6 {
		return fmt.Errorf("%w: count must be within 1..6", domain.ErrInvalidArgument)
	}
	return nil
}

type ExtractTopicsPayload struct {
	Text       string `json:"text"`
	SourceType string `json:"sourceType"` // "pdf" | "url" | "text"
	MaxTopics  int    `json:"maxTopics"`
}

func (ExtractTopicsPayload) Type() JobType { return JobTypeExtractTopics }

func (p ExtractTopicsPayload) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("%w: text is required", domain.ErrInvalidArgument)
	}
	if p.MaxTopics <= 0 {
		return fmt.Errorf("%w: maxTopics must be positive", domain.ErrInvalidArgument)
	}
	return nil
}

type GenerateSummaryPayload struct {
	Topic    string        `json:"topic"`
	Messages []ChatMessage `json:"messages"`
}

func (GenerateSummaryPayload) Type() JobType { return JobTypeGenerateSummary }

func (p GenerateSummaryPayload) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("%w: topic is required", domain.ErrInvalidArgument)
	}
	if len(p.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", domain.ErrInvalidArgument)
	}
	return nil
}

// Typed results, marshaled into Job.Result on completion.

type GenerateResponseResult struct {
	Response string `json:"response"`
}

type SelectExpertsResult struct {
	Experts []ExpertProfile `json:"experts"`
}

type DebateTopic struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
}

type ExtractTopicsResult struct {
	Topics []DebateTopic `json:"topics"`
}

type SummaryResult struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
}

// Job is a durable unit of asynchronous work. The payload is immutable after
// creation; only status, progress, result, error and timestamps mutate.
type Job struct {
	ID          string
	Type        JobType
	Status      JobStatus
	Payload     JobPayload
	Progress    int
	Result      json.RawMessage
	Error       string
	Attempts    int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

func NewJob(payload JobPayload) *Job {
	now := time.Now()
	return &Job{
		ID:        ulid.Make().String(),
		Type:      payload.Type(),
		Status:    JobStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetProgress keeps progress within 0..100 and monotonically non-decreasing.
func (j *Job) SetProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

func (j *Job) MarkProcessing(now time.Time) error {
	if !j.Status.CanTransitionTo(JobStatusProcessing) {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.Attempts++
	j.UpdatedAt = now
	return nil
}

func (j *Job) MarkCompleted(result json.RawMessage, now time.Time) error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusCompleted
	j.Result = result
	j.Error = ""
	j.Progress = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

func (j *Job) MarkFailed(reason string, now time.Time) error {
	if !j.Status.CanTransitionTo(JobStatusFailed) {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusFailed
	j.Error = reason
	j.Result = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

func (j *Job) MarkCancelled(now time.Time) error {
	if !j.Status.CanTransitionTo(JobStatusCancelled) {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusCancelled
	j.Result = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Requeue returns a claimed job to pending so a later tick can start it.
// The aborted claim does not count as an attempt.
func (j *Job) Requeue(now time.Time) error {
	if j.Status != JobStatusProcessing {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusPending
	j.StartedAt = nil
	if j.Attempts > 0 {
		j.Attempts--
	}
	j.UpdatedAt = now
	return nil
}

// UnmarshalPayload rebuilds the concrete payload for a stored job row.
func UnmarshalPayload(t JobType, raw []byte) (JobPayload, error) {
	switch t {
	case JobTypeGenerateResponse:
		var p GenerateResponsePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobTypeSelectExperts:
		var p SelectExpertsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobTypeExtractTopics:
		var p ExtractTopicsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobTypeGenerateSummary:
		var p GenerateSummaryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidArgument, t)
	}
}
