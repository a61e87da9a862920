package overlay

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/geo"
	"github.com/kass/go-geo-viewport/pkg/models"
	"github.com/kass/go-geo-viewport/pkg/viewport"
)

type recordingRenderer struct {
	calls  int
	names  [][]string
	failOn string
}

func (r *recordingRenderer) Render(_ viewport.State, layers []*geo.Layer) error {
	r.calls++
	var names []string
	for _, l := range layers {
		names = append(names, l.Name())
		if r.failOn != "" && l.Name() == r.failOn {
			return errors.New("style function failed")
		}
	}
	r.names = append(r.names, names)
	return nil
}

func points(ids ...string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, id := range ids {
		f := geojson.NewFeature(orb.Point{100 + float64(i), 100})
		f.ID = id
		fc.Append(f)
	}
	return fc
}

func newTestOverlay(r Renderer, errs *[]error) *Overlay {
	return New(Options{
		Display:  viewport.Config{ScreenWidth: 1024, ScreenHeight: 768, PixelRatio: 1},
		Renderer: r,
		OnError:  func(err error) { *errs = append(*errs, err) },
	})
}

var testView = bbox.New[coords.Tile](99.5, 99.5, 100.5, 100.5)

func TestDrawRendersOnlyWhenNeeded(t *testing.T) {
	r := &recordingRenderer{}
	var errs []error
	o := newTestOverlay(r, &errs)

	require.NoError(t, o.UpdateData([]models.LayerData{{Name: "stops", Features: points("a")}}))
	assert.Equal(t, 0, r.calls, "nothing is drawn before the first view")

	require.NoError(t, o.Draw(testView, 10))
	assert.Equal(t, 1, r.calls)

	require.NoError(t, o.Draw(testView, 10))
	assert.Equal(t, 1, r.calls, "unchanged view reuses the buffer")

	require.NoError(t, o.Draw(testView, 11))
	assert.Equal(t, 2, r.calls)

	require.NoError(t, o.UpdateData([]models.LayerData{{Name: "stops", Features: points("a", "b")}}))
	assert.Equal(t, 3, r.calls, "new data always redraws")
	assert.Empty(t, errs)
}

func TestUpdateDataRollsBackOnRenderError(t *testing.T) {
	r := &recordingRenderer{failOn: "broken"}
	var errs []error
	o := newTestOverlay(r, &errs)

	require.NoError(t, o.Draw(testView, 10))
	require.NoError(t, o.UpdateData([]models.LayerData{{Name: "good", Features: points("a")}}))
	before := o.Layers()

	err := o.UpdateData([]models.LayerData{{Name: "broken", Features: points("b")}})
	require.Error(t, err)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], err)

	assert.Equal(t, before, o.Layers())
	assert.Equal(t, []string{"good"}, r.names[len(r.names)-1], "previous layers are redrawn")

	_, ok := o.State()
	assert.True(t, ok)
}

func TestDrawErrorForcesRetry(t *testing.T) {
	r := &recordingRenderer{}
	var errs []error
	o := newTestOverlay(r, &errs)
	require.NoError(t, o.UpdateData([]models.LayerData{{Name: "broken", Features: points("a")}}))

	r.failOn = "broken"
	require.Error(t, o.Draw(testView, 10))
	_, ok := o.State()
	assert.False(t, ok)

	r.failOn = ""
	require.NoError(t, o.Draw(testView, 10))
	assert.Len(t, errs, 1)
}

func TestHitTestPixel(t *testing.T) {
	var errs []error
	o := newTestOverlay(&recordingRenderer{}, &errs)

	_, _, err := o.HitTestPixel(coords.Pixel{})
	require.ErrorIs(t, err, ErrNoBuffer)

	require.NoError(t, o.UpdateData([]models.LayerData{{Name: "stops", Features: points("a", "b")}}))
	require.NoError(t, o.Draw(testView, 10))

	state, ok := o.State()
	require.True(t, ok)
	px := state.ToPixel(coords.Tile{X: 101, Y: 100})

	hit, ok, err := o.HitTestPixel(px)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", hit.Feature.ID)

	hit, ok, err = o.HitTest(coords.Tile{X: 100, Y: 100}, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", hit.Feature.ID)
}
