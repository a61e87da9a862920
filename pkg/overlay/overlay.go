// Package overlay ties installed layers, the raster buffer and a renderer
// together into the object a map view talks to.
package overlay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/geo"
	"github.com/kass/go-geo-viewport/pkg/models"
	"github.com/kass/go-geo-viewport/pkg/viewport"
)

// ErrNoBuffer is returned by pixel operations before anything was drawn.
var ErrNoBuffer = errors.New("overlay has no buffer")

// Renderer draws layers onto a raster covering state.Buffer. Layers are
// passed in installed order.
type Renderer interface {
	Render(state viewport.State, layers []*geo.Layer) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(state viewport.State, layers []*geo.Layer) error

func (f RendererFunc) Render(state viewport.State, layers []*geo.Layer) error {
	return f(state, layers)
}

type Options struct {
	Display  viewport.Config
	Renderer Renderer
	// OnError receives render and indexing failures. It is called with the
	// overlay lock held and must not call back into the overlay.
	OnError func(error)
	Logger  *zerolog.Logger
	Layers  geo.Options
}

type view struct {
	bounds bbox.Box[coords.Tile]
	zoom   int
}

// Overlay is safe for concurrent use.
type Overlay struct {
	mu       sync.Mutex
	layers   *geo.LayerSet
	buffer   *viewport.BufferManager
	renderer Renderer
	onError  func(error)
	log      *zerolog.Logger
	view     *view
}

func New(opts Options) *Overlay {
	log := logger.Component(opts.Logger, "overlay")
	if opts.Layers.Logger == nil {
		opts.Layers.Logger = log
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = RendererFunc(func(viewport.State, []*geo.Layer) error { return nil })
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(error) {}
	}
	return &Overlay{
		layers:   geo.NewLayerSet(opts.Layers),
		buffer:   viewport.NewBufferManager(opts.Display, log),
		renderer: renderer,
		onError:  onError,
		log:      log,
	}
}

// Draw is called whenever the visible area changes. The raster is redrawn
// only when the buffer no longer covers the view or the zoom changed.
func (o *Overlay) Draw(bounds bbox.Box[coords.Tile], zoom int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.view = &view{bounds: bounds, zoom: zoom}
	if err := o.refresh(false); err != nil {
		// force the next draw to retry
		o.buffer.Invalidate()
		o.onError(err)
		return err
	}
	return nil
}

// UpdateData installs a new list of layers and redraws. If indexing or
// rendering fails the previous layers are put back, redrawn, and the error
// is reported and returned.
func (o *Overlay) UpdateData(data []models.LayerData) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	previous, err := o.layers.Install(data)
	if err != nil {
		err = fmt.Errorf("install layers: %w", err)
		o.onError(err)
		return err
	}

	if err := o.refresh(true); err != nil {
		o.log.Error().Err(err).Int("layers", len(data)).Msg("render failed, rolling back layers")
		o.layers.Restore(previous)
		if rerr := o.refresh(true); rerr != nil {
			o.buffer.Invalidate()
			o.log.Error().Err(rerr).Msg("render of previous layers failed")
		}
		o.onError(err)
		return err
	}
	return nil
}

func (o *Overlay) refresh(newData bool) error {
	if o.view == nil {
		return nil
	}
	state, rerender := o.buffer.Refresh(o.view.bounds, o.view.zoom, newData)
	if !rerender {
		return nil
	}
	if err := o.renderer.Render(state, o.layers.Layers()); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// Layers returns the installed layers.
func (o *Overlay) Layers() []*geo.Layer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.layers.Layers()
}

// State returns the current raster state.
func (o *Overlay) State() (viewport.State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buffer.State()
}

// HitTest finds the feature under p at the given zoom.
func (o *Overlay) HitTest(p coords.Point, zoom int) (geo.Hit, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.layers.HitTest(p, zoom)
}

// HitTestPixel finds the feature under a pixel of the current raster.
func (o *Overlay) HitTestPixel(px coords.Pixel) (geo.Hit, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, ok := o.buffer.State()
	if !ok {
		return geo.Hit{}, false, ErrNoBuffer
	}
	return o.layers.HitTest(state.FromPixel(px), state.Zoom)
}
