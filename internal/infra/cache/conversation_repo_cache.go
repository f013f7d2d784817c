package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
)

var _ repository.ConversationRepository = (*conversationRepoCacheDecorator)(nil)

// conversationRepoCacheDecorator fronts the durable repository with the
// two-tier cache. The cache is an optimization only: reads fall through to
// the inner repository, and cache write failures are a missed optimization,
// not a hard failure.
type conversationRepoCacheDecorator struct {
	inner repository.ConversationRepository
	cache *ContextCache
	log   *zerolog.Logger
}

func NewConversationRepoCacheDecorator(inner repository.ConversationRepository, cache *ContextCache, logger *zerolog.Logger) repository.ConversationRepository {
	l := logger.With().Str("component", "ConversationRepoCache").Logger()
	return &conversationRepoCacheDecorator{inner: inner, cache: cache, log: &l}
}

func (d *conversationRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, cc *model.ConversationContext) error {
	if err := d.inner.Save(ctx, tx, cc); err != nil {
		return err
	}
	if err := d.cache.Set(ctx, cc, 0); err != nil {
		d.log.Warn().Err(err).Str("conversation_id", cc.ConversationID).Msg("cache write-through failed")
	}
	return nil
}

func (d *conversationRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, conversationID string) (*model.ConversationContext, error) {
	cc, err := d.cache.Get(ctx, conversationID)
	if err == nil {
		return cc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		d.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("cache read failed, falling through")
	}

	cc, err = d.inner.FindByID(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Set(ctx, cc, 0); err != nil {
		d.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("cache repopulate failed")
	}
	return cc, nil
}

func (d *conversationRepoCacheDecorator) ListIDsByUser(ctx context.Context, tx repository.Tx, userID string) ([]string, error) {
	return d.inner.ListIDsByUser(ctx, tx, userID)
}

// ListByUser resolves the id set durably, then bulk-reads the contexts
// through the two-tier cache. Only ids the cache misses hit the inner
// repository, and those reads repopulate the cache.
func (d *conversationRepoCacheDecorator) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.ConversationContext, error) {
	ids, err := d.inner.ListIDsByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	cached, err := d.cache.List(ctx, ids, nil)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("cache list failed, falling through")
		cached = nil
	}
	byID := make(map[string]*model.ConversationContext, len(cached))
	for _, cc := range cached {
		byID[cc.ConversationID] = cc
	}

	out := make([]*model.ConversationContext, 0, len(ids))
	for _, id := range ids {
		if cc, ok := byID[id]; ok {
			out = append(out, cc)
			continue
		}
		cc, err := d.inner.FindByID(ctx, tx, id)
		if err != nil {
			d.log.Warn().Err(err).Str("conversation_id", id).Msg("skipping unreadable conversation")
			continue
		}
		if err := d.cache.Set(ctx, cc, 0); err != nil {
			d.log.Warn().Err(err).Str("conversation_id", id).Msg("cache repopulate failed")
		}
		out = append(out, cc)
	}
	return out, nil
}
