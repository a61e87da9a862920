package main

import (
	"context"
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

func TestParseFloats(t *testing.T) {
	v, err := parseFloats([]string{"40.75", "-73.98"})
	require.NoError(t, err)
	assert.Equal(t, []float64{40.75, -73.98}, v)

	_, err = parseFloats([]string{"1", "north"})
	assert.ErrorContains(t, err, "argument 2")
}

func TestPointOf(t *testing.T) {
	p, err := pointOf(coords.KindGeographic, 40, -74)
	require.NoError(t, err)
	assert.Equal(t, coords.LatLng{Lat: 40, Lng: -74}, p)

	p, err = pointOf(coords.KindTile, 75, 96)
	require.NoError(t, err)
	assert.Equal(t, coords.Tile{X: 75, Y: 96}, p)
}

func TestViewBox(t *testing.T) {
	d := viewport.Config{ScreenWidth: 1024, ScreenHeight: 512}
	box := viewBox(coords.Tile{X: 100, Y: 50}, 10, d)

	assert.InDelta(t, 99.5, box.MinX, 1e-12)
	assert.InDelta(t, 100.5, box.MaxX, 1e-12)
	assert.InDelta(t, 49.75, box.MinY, 1e-12)
	assert.InDelta(t, 50.25, box.MaxY, 1e-12)
}

func TestFileFetcher(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 1}))
	fc.Append(geojson.NewFeature(orb.Point{5, 5}))
	layer, err := geo.NewLayer(models.LayerData{Name: "points", Features: fc}, geo.Options{})
	require.NoError(t, err)

	fetchFn := fileFetcher(layer, 10)
	ctx := context.Background()

	got, err := fetchFn(ctx, bbox.New[coords.Tile](0, 0, 2, 2), "points")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Features, 1)
	assert.Equal(t, orb.Point{1, 1}, got.Features[0].Geometry)

	got, err = fetchFn(ctx, bbox.New[coords.Tile](0, 0, 2, 2), "")
	require.NoError(t, err)
	assert.Nil(t, got, "an empty key is skipped")

	got, err = fetchFn(ctx, bbox.New[coords.Tile](0, 0, 20, 20), "points")
	require.NoError(t, err)
	assert.Nil(t, got, "a box larger than the area limit is skipped")
}
