package postgis

import (
	"context"
	"database/sql"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/cache"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

func TestEnvelope(t *testing.T) {
	sw := coords.LatLng{Lat: 40.6, Lng: -74.1}
	ne := coords.LatLng{Lat: 40.9, Lng: -73.8}
	box := bbox.FromCorners(sw.ToTile(), ne.ToTile())

	env, err := envelope(box)
	require.NoError(t, err)
	assert.InDelta(t, -74.1, env[0], 1e-9)
	assert.InDelta(t, 40.6, env[1], 1e-9)
	assert.InDelta(t, -73.8, env[2], 1e-9)
	assert.InDelta(t, 40.9, env[3], 1e-9)
}

func TestFeatureEncoding(t *testing.T) {
	f := geojson.NewFeature(orb.LineString{{-74, 40.7}, {-73.9, 40.8}})
	f.ID = 12.0
	f.Properties["route"] = "A"

	id, props, geom, err := encodeFeature(f)
	require.NoError(t, err)
	assert.Equal(t, sql.NullString{String: "12", Valid: true}, id)
	assert.JSONEq(t, `{"route":"A"}`, string(props))
	assert.JSONEq(t, `{"type":"LineString","coordinates":[[-74,40.7],[-73.9,40.8]]}`, string(geom))

	back, err := decodeFeature(id, props, string(geom))
	require.NoError(t, err)
	assert.Equal(t, "12", back.ID)
	assert.Equal(t, "A", back.Properties["route"])
	assert.Equal(t, f.Geometry, back.Geometry)

	_, err = decodeFeature(sql.NullString{}, nil, `{"type":"Nope"}`)
	assert.Error(t, err)
}

func TestEncodeFeatureWithoutProperties(t *testing.T) {
	f := &geojson.Feature{Type: "Feature", Geometry: orb.Point{1, 2}}
	id, props, _, err := encodeFeature(f)
	require.NoError(t, err)
	assert.False(t, id.Valid)
	assert.Equal(t, "{}", string(props))
}

func TestFetcher(t *testing.T) {
	var queries []Query
	features, err := cache.New(func(_ context.Context, q Query) (*geojson.FeatureCollection, error) {
		queries = append(queries, q)
		return geojson.NewFeatureCollection(), nil
	}, cache.Options[Query]{})
	require.NoError(t, err)

	fetchFn := Fetcher(features, 4)
	small := bbox.New[coords.Tile](10, 10, 11, 11)

	fc, err := fetchFn(context.Background(), small, "")
	require.NoError(t, err)
	assert.Nil(t, fc, "no layer means skip")

	fc, err = fetchFn(context.Background(), bbox.New[coords.Tile](0, 0, 3, 3), "stops")
	require.NoError(t, err)
	assert.Nil(t, fc, "boxes over the area limit are skipped")

	fc, err = fetchFn(context.Background(), small, "stops")
	require.NoError(t, err)
	require.NotNil(t, fc)
	_, err = fetchFn(context.Background(), small, "stops")
	require.NoError(t, err)

	require.Len(t, queries, 1, "repeat requests are served from the cache")
	assert.Equal(t, "stops", queries[0].Layer)
	assert.Equal(t, small, bbox.FromSerialized[coords.Tile](queries[0].Bounds))
}
