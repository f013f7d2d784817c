package ai

import (
	"context"
	"time"

	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements the text-generation port for local/dev runs.
// It returns a canned JSON object so the extraction routines can parse it.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) Generate(ctx context.Context, system string, messages []adapter.Message) (string, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return `{"summary":"noop","keyPoints":["noop"],"questions":[],"experts":[],"topics":[],"response":"noop"}`, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}
