// Package viewport decides when the pre-rendered raster behind a map view has
// to be redrawn.
package viewport

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/internal/metrics"
	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

const (
	// DefaultMaxBufferPixels is the largest raster, in device pixels, that is
	// drawn at the device pixel ratio.
	DefaultMaxBufferPixels = 16777216

	maxBufferScreenWidth  = 3000
	maxBufferScreenHeight = 1500
	bufferOverscan        = 1.5
)

// Config describes the display the buffer is drawn for.
type Config struct {
	ScreenWidth     int
	ScreenHeight    int
	PixelRatio      float64
	MaxBufferPixels int
}

// BufferSize is the raster size in CSS pixels: 1.5 times the screen, with the
// screen capped at 3000x1500.
func (c Config) BufferSize() (width, height int) {
	w := math.Min(float64(c.ScreenWidth), maxBufferScreenWidth)
	h := math.Min(float64(c.ScreenHeight), maxBufferScreenHeight)
	return int(math.Floor(w * bufferOverscan)), int(math.Floor(h * bufferOverscan))
}

// RasterScale is the device pixel ratio to draw at, or 1 when a buffer at
// that ratio would exceed MaxBufferPixels.
func (c Config) RasterScale() float64 {
	ratio := c.PixelRatio
	if ratio <= 0 {
		return 1
	}
	limit := c.MaxBufferPixels
	if limit <= 0 {
		limit = DefaultMaxBufferPixels
	}
	w, h := c.BufferSize()
	if float64(w)*float64(h)*ratio*ratio <= float64(limit) {
		return ratio
	}
	return 1
}

// State is a rasterized region: the zoom level it was drawn at and its extent
// in tile space.
type State struct {
	Zoom   int
	Buffer bbox.Box[coords.Tile]
}

// Scale is the number of pixels per tile unit at the state's zoom.
func (s State) Scale() float64 {
	return math.Ldexp(1, s.Zoom)
}

// TopLeft is the tile-space origin of the raster.
func (s State) TopLeft() coords.Tile {
	return s.Buffer.Min()
}

// ToPixel places a tile-space point on the raster.
func (s State) ToPixel(p coords.Tile) coords.Pixel {
	return p.ToPixel(s.Scale(), s.TopLeft())
}

// FromPixel maps a raster pixel back to tile space.
func (s State) FromPixel(px coords.Pixel) coords.Tile {
	return coords.FromPixel(px, s.Scale(), s.TopLeft())
}

// BufferManager tracks the rasterized region. It is not safe for concurrent
// use.
type BufferManager struct {
	cfg    Config
	width  int
	height int
	state  *State
	log    *zerolog.Logger
}

func NewBufferManager(cfg Config, log *zerolog.Logger) *BufferManager {
	w, h := cfg.BufferSize()
	return &BufferManager{
		cfg:    cfg,
		width:  w,
		height: h,
		log:    logger.Component(log, "viewport"),
	}
}

func (m *BufferManager) Config() Config { return m.cfg }

// State returns the current buffer, or false before the first refresh.
func (m *BufferManager) State() (State, bool) {
	if m.state == nil {
		return State{}, false
	}
	return *m.state, true
}

// Invalidate drops the current buffer so the next refresh redraws.
func (m *BufferManager) Invalidate() {
	m.state = nil
}

// Refresh decides whether the raster must be redrawn for the visible area at
// zoom. It redraws when newData is set, when there is no buffer yet, when
// the zoom changed, or when the viewport is not entirely inside the buffer.
// Otherwise the current state is returned unchanged. A new buffer is centered
// on the viewport and sized to the configured buffer divided by 2^zoom.
func (m *BufferManager) Refresh(view bbox.Box[coords.Tile], zoom int, newData bool) (State, bool) {
	if !newData && m.state != nil && m.state.Zoom == zoom && view.IsWithin(m.state.Buffer) {
		metrics.ObserveBufferRefresh(false)
		return *m.state, false
	}

	scale := math.Ldexp(1, zoom)
	center := view.Center()
	halfWidth := float64(m.width) / scale / 2
	halfHeight := float64(m.height) / scale / 2

	next := State{
		Zoom: zoom,
		Buffer: bbox.New[coords.Tile](
			center.X-halfWidth,
			center.Y-halfHeight,
			center.X+halfWidth,
			center.Y+halfHeight,
		),
	}
	m.state = &next

	metrics.ObserveBufferRefresh(true)
	m.log.Debug().
		Int("zoom", zoom).
		Bool("new_data", newData).
		Stringer("buffer", next.Buffer).
		Msg("buffer invalidated")
	return next, true
}
