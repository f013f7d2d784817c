package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
)

func TestJobStatus_Transitions(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
		ok   bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusPending, JobStatusFailed, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusCancelled, true},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusPending, false},
		{JobStatusCancelled, JobStatusProcessing, false},
		{JobStatusCancelled, JobStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestJob_TerminalIsFinal(t *testing.T) {
	now := time.Now()
	job := NewJob(GenerateSummaryPayload{Topic: "climate policy", Messages: []ChatMessage{{Role: "user", Content: "hi"}}})

	if err := job.MarkProcessing(now); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := job.MarkCancelled(now); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}

	if err := job.MarkCompleted(json.RawMessage(`{}`), now); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal on complete-after-cancel, got %v", err)
	}
	if err := job.MarkFailed("boom", now); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal on fail-after-cancel, got %v", err)
	}
	if job.Status != JobStatusCancelled {
		t.Fatalf("terminal status changed to %s", job.Status)
	}
}

func TestJob_RequeueReturnsClaim(t *testing.T) {
	j := NewJob(GenerateSummaryPayload{Topic: "t", Messages: []ChatMessage{{Role: "user", Content: "x"}}})
	if err := j.MarkProcessing(time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := j.Requeue(time.Now()); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if j.Status != JobStatusPending {
		t.Fatalf("expected pending, got %s", j.Status)
	}
	if j.Attempts != 0 {
		t.Fatalf("aborted claim counted as attempt: %d", j.Attempts)
	}
	if j.StartedAt != nil {
		t.Fatal("requeued job keeps a start timestamp")
	}

	// A terminal job stays terminal.
	if err := j.MarkProcessing(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := j.MarkCompleted(json.RawMessage(`{}`), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := j.Requeue(time.Now()); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
}

func TestJob_MarkProcessingCountsAttempts(t *testing.T) {
	job := NewJob(GenerateResponsePayload{Topic: "t", Expert: ExpertProfile{Name: "Ada"}})
	if job.Status != JobStatusPending {
		t.Fatalf("new job must be pending, got %s", job.Status)
	}
	if err := job.MarkProcessing(time.Now()); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if job.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", job.Attempts)
	}
	if job.StartedAt == nil {
		t.Fatal("StartedAt not stamped")
	}
}

func TestJob_ProgressMonotonicClamped(t *testing.T) {
	job := NewJob(ExtractTopicsPayload{Text: "some text", MaxTopics: 3})

	job.SetProgress(40)
	job.SetProgress(20) // must not regress
	if job.Progress != 40 {
		t.Fatalf("progress regressed to %d", job.Progress)
	}
	job.SetProgress(150)
	if job.Progress != 100 {
		t.Fatalf("progress not clamped, got %d", job.Progress)
	}
}

func TestPayload_Validate(t *testing.T) {
	cases := []struct {
		name    string
		payload JobPayload
		wantErr bool
	}{
		{"response ok", GenerateResponsePayload{Topic: "t", Expert: ExpertProfile{Name: "Ada"}}, false},
		{"response empty topic", GenerateResponsePayload{Expert: ExpertProfile{Name: "Ada"}}, true},
		{"response empty expert", GenerateResponsePayload{Topic: "t"}, true},
		{"select ok", SelectExpertsPayload{Topic: "t", Count: 2}, false},
		{"select zero count", SelectExpertsPayload{Topic: "t"}, true},
		{"select too many", SelectExpertsPayload{Topic: "t", Count: 7}, true},
		{"topics ok", ExtractTopicsPayload{Text: "body", MaxTopics: 5}, false},
		{"topics empty text", ExtractTopicsPayload{MaxTopics: 5}, true},
		{"summary ok", GenerateSummaryPayload{Topic: "t", Messages: []ChatMessage{{Role: "user", Content: "x"}}}, false},
		{"summary no messages", GenerateSummaryPayload{Topic: "t"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr && !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUnmarshalPayload_RoundTrip(t *testing.T) {
	raw, err := json.Marshal(SelectExpertsPayload{Topic: "AI regulation", ExpertType: "domain", Count: 2})
	if err != nil {
		t.Fatal(err)
	}
	p, err := UnmarshalPayload(JobTypeSelectExperts, raw)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	sp, ok := p.(SelectExpertsPayload)
	if !ok {
		t.Fatalf("wrong concrete type %T", p)
	}
	if sp.Topic != "AI regulation" || sp.Count != 2 {
		t.Fatalf("payload fields lost: %+v", sp)
	}

	if _, err := UnmarshalPayload(JobType("bogus"), raw); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown type, got %v", err)
	}
}
