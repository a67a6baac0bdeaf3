// Package cache is an optional read-through Redis cache in front of the
// query evaluator. Identical concurrent queries are collapsed with
// singleflight so the index store sees each distinct query once per TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/openradio/librarysearch/internal/index"
	"github.com/openradio/librarysearch/internal/searcher/executor"
	"github.com/openradio/librarysearch/internal/searcher/parser"
	"github.com/openradio/librarysearch/pkg/config"
	pkgerrors "github.com/openradio/librarysearch/pkg/errors"
	"github.com/openradio/librarysearch/pkg/logger"
	"github.com/openradio/librarysearch/pkg/metrics"
	pkgredis "github.com/openradio/librarysearch/pkg/redis"
)

const keyPrefix = "search:"

// Store is the slice of the Redis client the cache needs. *pkgredis.Client
// satisfies it; tests substitute an in-memory map.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	client  Store
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(client Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Get returns the cached result for a query, if present.
func (c *QueryCache) Get(ctx context.Context, query, kind string) (executor.Result, bool) {
	key := BuildKey(query, kind)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	result, err := decodeResult([]byte(data))
	if err != nil {
		c.logger.Error("cache decode failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return result, true
}

// Set stores a query result under its cache key.
func (c *QueryCache) Set(ctx context.Context, query, kind string, result executor.Result) {
	key := BuildKey(query, kind)
	data, err := encodeResult(result)
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for a query or computes and caches
// it. Invalid queries (a nil computed result) are never cached and surface
// as pkgerrors.ErrInvalidQuery. The boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query, kind string,
	computeFn func() (executor.Result, error),
) (executor.Result, bool, error) {
	if result, ok := c.Get(ctx, query, kind); ok {
		return result, true, nil
	}
	key := BuildKey(query, kind)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, kind); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, pkgerrors.ErrInvalidQuery
		}
		c.Set(ctx, query, kind, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(executor.Result), false, nil
}

// Invalidate drops every cached query result. Call it after reindexing.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives a stable cache key from the parsed form of a query, so
// queries that normalize identically ("Foo  bar", "foo BAR") share one
// entry.
func BuildKey(query, kind string) string {
	parsed := parser.Parse(query)
	parts := make([]string, 0, len(parsed))
	for _, t := range parsed {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", t.Req, t.Kind, t.Value))
	}
	sort.Strings(parts)
	raw := kind + "|" + strings.Join(parts, ",")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// cached results serialize keys and fields as plain strings.
type cachedResult map[string][]string

func encodeResult(result executor.Result) ([]byte, error) {
	enc := make(cachedResult, len(result))
	for key, fields := range result {
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		enc[key.String()] = names
	}
	return json.Marshal(enc)
}

func decodeResult(data []byte) (executor.Result, error) {
	var enc cachedResult
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, err
	}
	result := make(executor.Result, len(enc))
	for raw, names := range enc {
		key, err := index.ParseKey(raw)
		if err != nil {
			return nil, err
		}
		result[key] = index.NewFieldSet(names...)
	}
	return result, nil
}
