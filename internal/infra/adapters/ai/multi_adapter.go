package ai

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*FailoverAdapter)(nil)

// FailoverAdapter tries the primary provider and falls back to the secondary
// when the primary call fails. Retry/backoff happens above this layer, so a
// single pass over the providers is enough here.
type FailoverAdapter struct {
	primary   adapter.AIServiceAdapter
	secondary adapter.AIServiceAdapter
	log       *zerolog.Logger
}

func NewFailoverAdapter(primary, secondary adapter.AIServiceAdapter, logger *zerolog.Logger) *FailoverAdapter {
	l := logger.With().Str("component", "FailoverAdapter").Logger()
	return &FailoverAdapter{primary: primary, secondary: secondary, log: &l}
}

func (f *FailoverAdapter) Generate(ctx context.Context, system string, messages []adapter.Message) (string, error) {
	text, err := f.primary.Generate(ctx, system, messages)
	if err == nil || f.secondary == nil {
		return text, err
	}
	f.log.Warn().Err(err).Msg("primary provider failed, trying fallback")
	return f.secondary.Generate(ctx, system, messages)
}

func (f *FailoverAdapter) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	n, err := f.primary.CountTokens(ctx, messages)
	if err == nil || f.secondary == nil {
		return n, err
	}
	return f.secondary.CountTokens(ctx, messages)
}
