package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"dailytrader/internal/metrics"
	"dailytrader/internal/model"
)

// CacheConfig configures the Redis bar cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // how long a fetched bar window stays valid
}

// CachedSource decorates a Source with a Redis cache of bar windows.
// Daily bars for a closed session never change, so a short TTL only needs to
// cover the forming bar at the window's tail.
type CachedSource struct {
	src     Source
	client  *goredis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewCachedSource wraps src with a Redis cache and pings the server.
func NewCachedSource(src Source, cfg CacheConfig, log *slog.Logger) (*CachedSource, error) {
	if log == nil {
		log = slog.Default()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	log.Info("bar cache connected", "addr", cfg.Addr, "ttl", ttl)
	return &CachedSource{
		src:    src,
		client: client,
		ttl:    ttl,
		log:    log,
	}, nil
}

// Instrument attaches cache hit/miss counters and fetch latency tracking.
func (c *CachedSource) Instrument(m *metrics.Metrics) {
	c.metrics = m
}

// Client exposes the underlying Redis connection for liveness checks.
func (c *CachedSource) Client() *goredis.Client {
	return c.client
}

// Bars serves a cached window when present, otherwise delegates and caches.
// Cache failures fall through to the underlying source — the cache is an
// optimization, never a point of failure.
func (c *CachedSource) Bars(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]model.Bar, error) {
	key := fmt.Sprintf("bars:%s:%s:%d:%d", symbol, interval, start.Unix(), end.Unix())

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var bars []model.Bar
		if err := json.Unmarshal(raw, &bars); err == nil {
			if c.metrics != nil {
				c.metrics.BarCacheHits.Inc()
			}
			return bars, nil
		}
		c.log.Warn("dropping corrupt cache entry", "key", key)
		c.client.Del(ctx, key)
	}
	if c.metrics != nil {
		c.metrics.BarCacheMiss.Inc()
	}

	fetchStart := time.Now()
	bars, err := c.src.Bars(ctx, symbol, start, end, interval)
	if c.metrics != nil {
		c.metrics.MarketDataDur.Observe(time.Since(fetchStart).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(bars); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn("bar cache write failed", "key", key, "error", err)
		}
	}
	return bars, nil
}

// Price always delegates: spot prices are too volatile to cache.
func (c *CachedSource) Price(ctx context.Context, symbol string) (float64, error) {
	return c.src.Price(ctx, symbol)
}

// Close releases the Redis connection.
func (c *CachedSource) Close() error {
	return c.client.Close()
}
