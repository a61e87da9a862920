// Package fetch loads data that follows a moving map view without flooding
// the data source while the user pans and zooms.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/internal/metrics"
	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

// DefaultExpansionFactor is how much larger than the requested box each
// fetched box is, per dimension.
const DefaultExpansionFactor = 1.5

// Box is the tile-space rectangle data is fetched for.
type Box = bbox.Box[coords.Tile]

// FetchFunc loads the value for box and key. Returning a nil value with a nil
// error skips the request: nothing is fetched again until the box or key
// changes.
type FetchFunc[K comparable, V any] func(ctx context.Context, box Box, key K) (*V, error)

type Options[K comparable, V any] struct {
	Fetch FetchFunc[K, V]

	// OnFetch receives every fetch result, including nil for a skip. It runs
	// on the coalescer's goroutine and may describe a stale box or key.
	OnFetch func(v *V)

	// OnError receives fetch errors. The next setter call retries.
	OnError func(err error)

	// ExpansionFactor defaults to DefaultExpansionFactor. Values below 1 are
	// replaced by the default so a fetched box always covers the request.
	ExpansionFactor float64

	Logger *zerolog.Logger
}

type hold int

const (
	holdNone hold = iota
	holdSkip
	holdError
)

// Coalescer keeps at most one fetch in flight. Bounds and key updates that
// arrive while a fetch runs are merged: once it completes, a single new
// fetch is made for the latest box and key, if they are not covered by what
// was just fetched. Keys are compared with ==, and the zero K is the initial
// key.
type Coalescer[K comparable, V any] struct {
	opts   Options[K, V]
	log    *zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	key     K
	box     *Box
	lastKey K
	lastBox *Box
	running bool
	done    chan struct{}

	// hold stops the loop after a skip or an error. heldKey and heldBox are
	// the request that caused it.
	hold    hold
	heldKey K
	heldBox Box
}

func New[K comparable, V any](opts Options[K, V]) *Coalescer[K, V] {
	if opts.ExpansionFactor < 1 {
		opts.ExpansionFactor = DefaultExpansionFactor
	}
	if opts.OnFetch == nil {
		opts.OnFetch = func(*V) {}
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer[K, V]{
		opts:   opts,
		log:    logger.Component(opts.Logger, "fetch"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetBounds requests data for box with the current key. It never blocks.
func (c *Coalescer[K, V]) SetBounds(box Box) {
	c.update(func() { c.box = &box })
}

// SetKey requests data for key with the current box. It never blocks.
func (c *Coalescer[K, V]) SetKey(key K) {
	c.update(func() { c.key = key })
}

// SetBoundsAndKey replaces both at once. It never blocks.
func (c *Coalescer[K, V]) SetBoundsAndKey(box Box, key K) {
	c.update(func() {
		c.box = &box
		c.key = key
	})
}

func (c *Coalescer[K, V]) update(apply func()) {
	metrics.IncFetchRequest()

	c.mu.Lock()
	apply()
	switch c.hold {
	case holdError:
		c.hold = holdNone
	case holdSkip:
		if !c.isHeldRequest() {
			c.hold = holdNone
		}
	}
	start := !c.running && c.ctx.Err() == nil && c.shouldFetch()
	if start {
		c.running = true
		c.done = make(chan struct{})
	}
	c.mu.Unlock()

	if start {
		go c.loop()
	}
}

func (c *Coalescer[K, V]) isHeldRequest() bool {
	return c.box != nil && *c.box == c.heldBox && c.key == c.heldKey
}

// shouldFetch must be called with mu held.
func (c *Coalescer[K, V]) shouldFetch() bool {
	if c.box == nil || c.hold != holdNone {
		return false
	}
	if c.key == c.lastKey && c.lastBox != nil && c.box.IsWithin(*c.lastBox) {
		return false
	}
	return true
}

func (c *Coalescer[K, V]) loop() {
	for {
		c.mu.Lock()
		if c.ctx.Err() != nil || !c.shouldFetch() {
			c.running = false
			close(c.done)
			c.mu.Unlock()
			return
		}
		key, box := c.key, *c.box
		expanded := box.ExpandByFactor(c.opts.ExpansionFactor)
		c.lastKey, c.lastBox = key, &expanded
		c.mu.Unlock()

		start := time.Now()
		v, err := c.opts.Fetch(c.ctx, expanded, key)
		elapsed := time.Since(start)

		if err != nil {
			if c.ctx.Err() != nil {
				continue
			}
			metrics.ObserveFetch(metrics.OutcomeError, elapsed)
			c.log.Warn().Err(err).Stringer("box", expanded).Msg("fetch failed")
			c.settle(key, box, holdError)
			c.opts.OnError(err)
			continue
		}
		if c.ctx.Err() != nil {
			continue
		}

		c.opts.OnFetch(v)
		if v == nil {
			metrics.ObserveFetch(metrics.OutcomeSkip, elapsed)
			c.log.Debug().Stringer("box", expanded).Msg("fetch skipped")
			c.settle(key, box, holdSkip)
			continue
		}
		metrics.ObserveFetch(metrics.OutcomeOK, elapsed)
		c.log.Debug().Stringer("box", expanded).Dur("elapsed", elapsed).Msg("fetched")
	}
}

// settle forgets the last fetched box after a skip or failure. The loop is
// held unless a newer request arrived while the fetch was in flight.
func (c *Coalescer[K, V]) settle(key K, box Box, h hold) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastBox = nil
	if c.box != nil && *c.box == box && c.key == key {
		c.hold = h
		c.heldKey, c.heldBox = key, box
	}
}

// Wait blocks until no fetch is in flight or ctx is done.
func (c *Coalescer[K, V]) Wait(ctx context.Context) error {
	c.mu.Lock()
	running, done := c.running, c.done
	c.mu.Unlock()
	if !running {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the context passed to an in-flight fetch and stops the loop.
// Later setter calls are ignored.
func (c *Coalescer[K, V]) Close() {
	c.cancel()
}
