// Package cache keeps rendered annotation responses in Redis. Identical
// concurrent requests collapse onto one computation via singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/redis"
)

const keyPrefix = "annotate:"

// Response is a cached annotation result: the rendered body, the
// content type it was rendered as, and the entity count for metrics on
// hits that never touch the engine.
type Response struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	Entities    int    `json:"entities"`
}

// AnnotationCache caches rendered responses keyed by a hash over the
// request text and options.
type AnnotationCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an AnnotationCache on top of the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *AnnotationCache {
	return &AnnotationCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "annotation-cache"),
	}
}

// Key derives the cache key for one request. Terminology names must
// already be resolved (sorted); postfilter order is part of the key
// because filters apply in declared order.
func Key(text string, terminologies, postfilters []string, format string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(terminologies, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(postfilters, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(format))
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}

// Get returns the cached response for key, if present and decodable.
func (c *AnnotationCache) Get(ctx context.Context, key string) (*Response, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &resp, true
}

// Set stores a rendered response under key with the configured TTL.
func (c *AnnotationCache) Set(ctx context.Context, key string, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for key or computes, stores
// and returns it. The second return reports whether it was a cache hit.
// Identical concurrent misses share one computation.
func (c *AnnotationCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func() (*Response, error),
) (*Response, bool, error) {
	if resp, ok := c.Get(ctx, key); ok {
		return resp, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, key); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Response), false, nil
}

// Invalidate removes every cached annotation response. Terminology
// reloads call this so stale entities never outlive their dictionary.
func (c *AnnotationCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the process-local hit and miss counts.
func (c *AnnotationCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// InvalidationEvent announces on Kafka that cached annotations went
// stale, typically after a terminology reload or removal.
type InvalidationEvent struct {
	Terminology string    `json:"terminology,omitempty"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// HandleInvalidation returns a Kafka handler that flushes the cache
// whenever an invalidation event arrives. Replicas that did not serve
// the reload drop their entries this way.
func HandleInvalidation(c *AnnotationCache) kafka.MessageHandler {
	logger := slog.Default().With("component", "annotation-cache")
	return func(ctx context.Context, key []byte, value []byte) error {
		if c == nil {
			return nil
		}
		event, err := kafka.DecodeJSON[InvalidationEvent](value)
		if err != nil {
			logger.Error("failed to decode invalidation event", "error", err)
			return nil
		}
		logger.Info("invalidation event received",
			"terminology", event.Terminology,
			"reason", event.Reason,
		)
		if err := c.Invalidate(ctx); err != nil {
			logger.Error("cache invalidation failed", "error", err)
		}
		return nil
	}
}
