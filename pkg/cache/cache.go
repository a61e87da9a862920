// Package cache memoizes remote resources by key. Concurrent requests for a
// key that is still loading share one load.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/internal/metrics"
)

const DefaultSize = 256

// LoadFunc fetches the value for a key that is not cached.
type LoadFunc[K, V any] func(ctx context.Context, key K) (V, error)

// KeyFunc turns a key into its cache identity.
type KeyFunc[K any] func(key K) (string, error)

type Options[K any] struct {
	// Size bounds the number of cached values. Defaults to DefaultSize.
	Size int

	// Key defaults to CanonicalKey.
	Key KeyFunc[K]

	Logger *zerolog.Logger
}

// Cache is safe for concurrent use. Failed loads are not cached.
type Cache[K, V any] struct {
	load    LoadFunc[K, V]
	keyFn   KeyFunc[K]
	values  *lru.Cache[string, V]
	group   singleflight.Group
	fetches atomic.Int64
	pending atomic.Int64
	log     *zerolog.Logger
}

func New[K, V any](load LoadFunc[K, V], opts Options[K]) (*Cache[K, V], error) {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Key == nil {
		opts.Key = CanonicalKey[K]
	}
	values, err := lru.New[string, V](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache[K, V]{
		load:   load,
		keyFn:  opts.Key,
		values: values,
		log:    logger.Component(opts.Logger, "cache"),
	}, nil
}

// CanonicalKey encodes key as JSON with object members sorted, so that maps
// and decoded objects with the same members produce the same identity, and
// hashes the result.
func CanonicalKey[K any](key K) (string, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("decode key: %w", err)
	}
	// encoding/json writes map members in sorted order
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(canonical), 16), nil
}

// Get returns the cached value for key, loading it if needed. If ctx ends
// while a shared load is running the load continues for other callers.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V
	id, err := c.keyFn(key)
	if err != nil {
		return zero, err
	}

	if v, ok := c.values.Get(id); ok {
		metrics.IncCacheHit()
		return v, nil
	}
	metrics.IncCacheMiss()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		// another caller may have finished the load since our miss
		if v, ok := c.values.Get(id); ok {
			return v, nil
		}
		c.fetches.Add(1)
		c.pending.Add(1)
		defer c.pending.Add(-1)

		v, err := c.load(loadCtx, key)
		if err != nil {
			c.log.Warn().Err(err).Str("key", id).Msg("load failed")
			return zero, err
		}
		c.values.Add(id, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.IncCacheMerged()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek returns a cached value without loading.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	var zero V
	id, err := c.keyFn(key)
	if err != nil {
		return zero, false
	}
	return c.values.Peek(id)
}

// Dump snapshots the cached values by key identity.
func (c *Cache[K, V]) Dump() map[string]V {
	out := make(map[string]V, c.values.Len())
	for _, id := range c.values.Keys() {
		if v, ok := c.values.Peek(id); ok {
			out[id] = v
		}
	}
	return out
}

// Load adds values from a snapshot made by Dump.
func (c *Cache[K, V]) Load(snapshot map[string]V) {
	for id, v := range snapshot {
		c.values.Add(id, v)
	}
}

// NumFetches is the number of loads started.
func (c *Cache[K, V]) NumFetches() int64 { return c.fetches.Load() }

// NumPending is the number of loads in flight.
func (c *Cache[K, V]) NumPending() int64 { return c.pending.Load() }

func (c *Cache[K, V]) Len() int { return c.values.Len() }
