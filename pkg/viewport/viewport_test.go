package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

func testConfig() Config {
	return Config{ScreenWidth: 1024, ScreenHeight: 768, PixelRatio: 1}
}

func assertCenter(t *testing.T, want, got coords.Tile) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
}

func TestBufferSize(t *testing.T) {
	testCases := []struct {
		name       string
		cfg        Config
		wantW      int
		wantH      int
		wantRaster float64
	}{
		{"laptop", Config{ScreenWidth: 1024, ScreenHeight: 768, PixelRatio: 2}, 1536, 1152, 2},
		{"capped", Config{ScreenWidth: 5120, ScreenHeight: 2880, PixelRatio: 2}, 4500, 2250, 1},
		{"odd size floors", Config{ScreenWidth: 1001, ScreenHeight: 667, PixelRatio: 1}, 1501, 1000, 1},
		{"invalid ratio", Config{ScreenWidth: 800, ScreenHeight: 600}, 1200, 900, 1},
		{"custom limit", Config{ScreenWidth: 800, ScreenHeight: 600, PixelRatio: 2, MaxBufferPixels: 1000}, 1200, 900, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := tc.cfg.BufferSize()
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
			assert.Equal(t, tc.wantRaster, tc.cfg.RasterScale())
		})
	}
}

func TestRefreshFirstCallRenders(t *testing.T) {
	m := NewBufferManager(testConfig(), nil)
	_, ok := m.State()
	assert.False(t, ok)

	view := bbox.New[coords.Tile](100, 100, 101, 101)
	state, rerender := m.Refresh(view, 10, false)
	require.True(t, rerender)
	assert.Equal(t, 10, state.Zoom)

	// 1536x1152 pixels at 1024 pixels per tile unit, centered on the view
	assert.InDelta(t, 1.5, state.Buffer.Width(), 1e-12)
	assert.InDelta(t, 1.125, state.Buffer.Height(), 1e-12)
	assertCenter(t, view.Center(), state.Buffer.Center())
	assert.True(t, view.IsWithin(state.Buffer))
}

func TestRefreshInsideBufferIsNoop(t *testing.T) {
	m := NewBufferManager(testConfig(), nil)
	first, _ := m.Refresh(bbox.New[coords.Tile](100, 100, 101, 101), 10, false)

	panned := bbox.New[coords.Tile](100.1, 100.05, 101.1, 101.05)
	state, rerender := m.Refresh(panned, 10, false)
	assert.False(t, rerender)
	assert.Equal(t, first, state)
}

func TestRefreshPartiallyOutsideRerenders(t *testing.T) {
	m := NewBufferManager(testConfig(), nil)
	first, _ := m.Refresh(bbox.New[coords.Tile](100, 100, 101, 101), 10, false)

	panned := bbox.New[coords.Tile](100.4, 100, 101.4, 101)
	require.False(t, panned.IsWithin(first.Buffer))

	state, rerender := m.Refresh(panned, 10, false)
	assert.True(t, rerender)
	assertCenter(t, panned.Center(), state.Buffer.Center())
}

func TestRefreshZoomChangeRerenders(t *testing.T) {
	m := NewBufferManager(testConfig(), nil)
	view := bbox.New[coords.Tile](100, 100, 100.1, 100.1)
	first, _ := m.Refresh(view, 10, false)

	state, rerender := m.Refresh(view, 11, false)
	assert.True(t, rerender)
	assert.InDelta(t, first.Buffer.Width()/2, state.Buffer.Width(), 1e-12)
}

func TestRefreshNewDataForcesRerender(t *testing.T) {
	m := NewBufferManager(testConfig(), nil)
	view := bbox.New[coords.Tile](100, 100, 101, 101)
	m.Refresh(view, 10, false)

	_, rerender := m.Refresh(view, 10, true)
	assert.True(t, rerender)

	m.Invalidate()
	_, rerender = m.Refresh(view, 10, false)
	assert.True(t, rerender)
}

func TestStatePixelTransform(t *testing.T) {
	state := State{Zoom: 2, Buffer: bbox.New[coords.Tile](10, 20, 30, 40)}
	assert.Equal(t, 4.0, state.Scale())
	assert.Equal(t, coords.Tile{X: 10, Y: 20}, state.TopLeft())

	px := state.ToPixel(coords.Tile{X: 12, Y: 25})
	assert.Equal(t, coords.Pixel{X: 8, Y: 20}, px)
	assert.Equal(t, coords.Tile{X: 12, Y: 25}, state.FromPixel(px))
}

func TestRefreshExtremeZoom(t *testing.T) {
	m := NewBufferManager(testConfig(), nil)
	view := bbox.New[coords.Tile](0, 0, 256, 256)

	var state State
	require.NotPanics(t, func() { state, _ = m.Refresh(view, -1, false) })
	assert.Equal(t, 0.5, state.Scale())
	assert.InDelta(t, 1536.0, state.Buffer.Width(), 1e-9)
	assert.InDelta(t, 1152.0, state.Buffer.Height(), 1e-9)

	state, rerender := m.Refresh(view, 64, false)
	assert.True(t, rerender)
	assert.Equal(t, 18446744073709551616.0, state.Scale())
	assert.False(t, math.IsInf(state.Buffer.MinX, 0) || math.IsNaN(state.Buffer.MinX))
	assertCenter(t, coords.Tile{X: 128, Y: 128}, state.Buffer.Center())

	px := state.FromPixel(coords.Pixel{X: 10, Y: 10})
	assert.False(t, math.IsInf(px.X, 0) || math.IsNaN(px.X))
}
