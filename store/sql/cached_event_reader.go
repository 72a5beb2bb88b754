package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhook-spine/core"
)

const eventCacheKeyPrefix = "go-webhook-spine::event::v1"

// CachedEventReader memoizes single-event reads. Event rows are immutable
// once written, so entries never need invalidation. Lists are not cached.
type CachedEventReader struct {
	base  core.EventReader
	cache repositorycache.CacheService
}

func NewCachedEventReader(base core.EventReader, cacheService repositorycache.CacheService) (*CachedEventReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event cache service is required")
	}
	return &CachedEventReader{base: base, cache: cacheService}, nil
}

// EventCacheKey returns go-webhook-spine::event::v1::<event_id>, the id URL-path
// escaped.
func EventCacheKey(eventID string) (string, error) {
	if strings.TrimSpace(eventID) == "" {
		return "", fmt.Errorf("sqlstore: event id is required for cache key")
	}
	return eventCacheKeyPrefix + "::" + url.PathEscape(eventID), nil
}

func (r *CachedEventReader) GetEvent(ctx context.Context, eventID string) (core.Event, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.Event{}, fmt.Errorf("sqlstore: cached event reader is not configured")
	}
	key, err := EventCacheKey(eventID)
	if err != nil {
		return core.Event{}, err
	}
	event, err := repositorycache.GetOrFetch(ctx, r.cache, key, func(ctx context.Context) (core.Event, error) {
		return r.base.GetEvent(ctx, eventID)
	})
	if err != nil {
		return core.Event{}, err
	}
	event.Payload = copyAnyMap(event.Payload)
	return event, nil
}

func (r *CachedEventReader) ListEvents(ctx context.Context, filter core.EventFilter) ([]core.Event, error) {
	if r == nil || r.base == nil {
		return nil, fmt.Errorf("sqlstore: cached event reader is not configured")
	}
	return r.base.ListEvents(ctx, filter)
}

// NewEventCacheService builds the in-process cache backing CachedEventReader.
func NewEventCacheService(cfg core.CacheConfig) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if cfg.TTL > 0 {
		config.TTL = cfg.TTL
	}
	return repositorycache.NewCacheService(config)
}
