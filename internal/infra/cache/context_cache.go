// Package cache provides a two-tier cache for conversation contexts: a fast
// in-process tier in front of a shared Redis tier. The in-process tier is an
// optimization only; every value is re-derivable from Redis or, failing that,
// from the durable record store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/infra/metrics"
	red "github.com/peterjabraham/debatable-sub001/internal/infra/redis"
)

const keyPrefix = "conversation_context:"

type entry struct {
	data      []byte
	expiresAt time.Time
}

type ContextCache struct {
	durable red.Client
	ttl     time.Duration
	log     *zerolog.Logger

	mu    sync.RWMutex
	local map[string]entry
}

func NewContextCache(durable red.Client, ttl time.Duration, logger *zerolog.Logger) *ContextCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "ContextCache").Logger()
	return &ContextCache{
		durable: durable,
		ttl:     ttl,
		log:     &l,
		local:   make(map[string]entry),
	}
}

// Set writes through: Redis first, then the in-process tier with an absolute
// expiry. A zero ttl falls back to the configured default.
func (c *ContextCache) Set(ctx context.Context, cc *model.ConversationContext, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(cc)
	if err != nil {
		return err
	}
	key := keyPrefix + cc.ConversationID
	if err := c.durable.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	c.mu.Lock()
	c.local[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Get checks the in-process tier first; on miss or expiry it falls back to
// Redis and repopulates. Returns domain.ErrNotFound on a full miss.
func (c *ContextCache) Get(ctx context.Context, conversationID string) (*model.ConversationContext, error) {
	c.sweep()

	key := keyPrefix + conversationID
	if data, ok := c.localGet(key); ok {
		metrics.IncCacheRequest("context", "memory_hit")
		return decode(data)
	}

	data, err := c.durable.Get(ctx, key)
	if err != nil {
		if errors.Is(err, red.Nil) {
			metrics.IncCacheRequest("context", "miss")
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	metrics.IncCacheRequest("context", "hit")

	c.mu.Lock()
	c.local[key] = entry{data: []byte(data), expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return decode([]byte(data))
}

func (c *ContextCache) Delete(ctx context.Context, conversationID string) error {
	key := keyPrefix + conversationID
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
	return c.durable.Del(ctx, key)
}

// List resolves many conversations at once, minimizing Redis round-trips:
// cache-warm entries come from memory, the rest are fetched concurrently and
// repopulated. Misses are skipped; pred filters the merged result.
func (c *ContextCache) List(ctx context.Context, conversationIDs []string, pred func(*model.ConversationContext) bool) ([]*model.ConversationContext, error) {
	c.sweep()

	warm := make([]*model.ConversationContext, 0, len(conversationIDs))
	var cold []string
	for _, id := range conversationIDs {
		key := keyPrefix + id
		if data, ok := c.localGet(key); ok {
			cc, err := decode(data)
			if err != nil {
				cold = append(cold, id)
				continue
			}
			warm = append(warm, cc)
			continue
		}
		cold = append(cold, id)
	}

	var (
		wg      sync.WaitGroup
		fetchMu sync.Mutex
	)
	for _, id := range cold {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			key := keyPrefix + id
			data, err := c.durable.Get(ctx, key)
			if err != nil {
				if !errors.Is(err, red.Nil) {
					c.log.Warn().Err(err).Str("conversation_id", id).Msg("cache list fetch failed")
				}
				return
			}
			cc, err := decode([]byte(data))
			if err != nil {
				return
			}
			c.mu.Lock()
			c.local[key] = entry{data: []byte(data), expiresAt: time.Now().Add(c.ttl)}
			c.mu.Unlock()
			fetchMu.Lock()
			warm = append(warm, cc)
			fetchMu.Unlock()
		}(id)
	}
	wg.Wait()

	if pred == nil {
		return warm, nil
	}
	out := warm[:0]
	for _, cc := range warm {
		if pred(cc) {
			out = append(out, cc)
		}
	}
	return out, nil
}

func (c *ContextCache) localGet(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.local[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// sweep lazily evicts expired in-process entries on each read; no background
// timer is needed to bound memory growth.
func (c *ContextCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.local {
		if now.After(e.expiresAt) {
			delete(c.local, k)
		}
	}
	c.mu.Unlock()
}

func decode(data []byte) (*model.ConversationContext, error) {
	var cc model.ConversationContext
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, err
	}
	return &cc, nil
}
