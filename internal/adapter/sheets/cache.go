package sheets

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/cache"
	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/observability"
)

// CachedClient wraps a Client with a fetch cache keyed by sheet and tab.
// Cache failures are logged and treated as misses; they never fail a fetch.
type CachedClient struct {
	inner   *Client
	store   cache.Store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedClient creates a cache decorator around a client.
func NewCachedClient(inner *Client, store cache.Store, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CachedClient {
	return &CachedClient{
		inner:   inner,
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns the cached export when present, otherwise downloads and
// stores it.
func (c *CachedClient) Fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	key := cacheKey(src, c.inner.Format())
	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.FetchCache.WithLabelValues("error").Inc()
		c.logger.Warn("fetch cache read failed", "station", src.Station, "error", err)
	case ok:
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return data, nil
	default:
		c.metrics.FetchCache.WithLabelValues("miss").Inc()
	}
	return c.FetchFresh(ctx, src)
}

// FetchFresh downloads the export regardless of the cache and stores it.
// Failed downloads are never cached.
func (c *CachedClient) FetchFresh(ctx context.Context, src domain.Source) ([]byte, error) {
	data, err := c.inner.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, cacheKey(src, c.inner.Format()), data, c.ttl); err != nil {
		c.logger.Warn("fetch cache write failed", "station", src.Station, "error", err)
	}
	return data, nil
}

// Invalidate drops the cached exports of srcs.
func (c *CachedClient) Invalidate(ctx context.Context, srcs ...domain.Source) error {
	keys := make([]string, len(srcs))
	for i, src := range srcs {
		keys[i] = cacheKey(src, c.inner.Format())
	}
	return c.store.Delete(ctx, keys...)
}
