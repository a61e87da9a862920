// Package postgis serves layer features for a map view from a PostGIS table.
package postgis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/cache"
	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/fetch"
)

const (
	// DefaultMaxFeatures caps the rows returned for one view.
	DefaultMaxFeatures = 10000

	insertBatchSize = 10000
)

const selectFeatures = `
	SELECT id, properties, ST_AsGeoJSON(geom)
	FROM geo_features
	WHERE layer = $1 AND geom && ST_MakeEnvelope($2, $3, $4, $5, 4326)
	ORDER BY seq
	LIMIT $6
`

type Source struct {
	db          *sql.DB
	maxFeatures int
	log         *zerolog.Logger
}

type Options struct {
	MaxFeatures int
	Logger      *zerolog.Logger
}

// Open connects to the database at dsn, e.g.
// "host=localhost port=5432 user=geo dbname=geodb sslmode=disable".
func Open(ctx context.Context, dsn string, opts Options) (*Source, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSource(db, opts), nil
}

func newSource(db *sql.DB, opts Options) *Source {
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = DefaultMaxFeatures
	}
	return &Source{
		db:          db,
		maxFeatures: opts.MaxFeatures,
		log:         logger.Component(opts.Logger, "postgis"),
	}
}

func (s *Source) Close() error {
	return s.db.Close()
}

// InitSchema creates the feature table and its spatial index if missing.
func (s *Source) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`CREATE TABLE IF NOT EXISTS geo_features (
			seq BIGSERIAL PRIMARY KEY,
			layer TEXT NOT NULL,
			id TEXT,
			properties JSONB NOT NULL DEFAULT '{}',
			geom GEOMETRY(GEOMETRY, 4326) NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_geo_features_geom ON geo_features USING GIST(geom);`,
		`CREATE INDEX IF NOT EXISTS idx_geo_features_layer ON geo_features(layer);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// InsertFeatures stores longitude/latitude features under layer. Features
// without a geometry are skipped.
func (s *Source) InsertFeatures(ctx context.Context, layer string, fc *geojson.FeatureCollection) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO geo_features (layer, id, properties, geom)
		VALUES ($1, $2, $3, ST_SetSRID(ST_GeomFromGeoJSON($4), 4326))
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		id, props, geom, err := encodeFeature(f)
		if err != nil {
			return inserted, fmt.Errorf("feature %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, layer, id, props, geom); err != nil {
			return inserted, fmt.Errorf("failed to insert feature %d: %w", i, err)
		}
		inserted++
		if inserted%insertBatchSize == 0 {
			s.log.Debug().Str("layer", layer).Int("inserted", inserted).Msg("inserting features")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// FetchFeatures returns the features of layer whose geometry intersects box.
// The result is projected to tile space.
func (s *Source) FetchFeatures(ctx context.Context, layer string, box bbox.Box[coords.Tile]) (*geojson.FeatureCollection, error) {
	env, err := envelope(box)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, selectFeatures, layer, env[0], env[1], env[2], env[3], s.maxFeatures)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var (
			id    sql.NullString
			props []byte
			geom  string
		)
		if err := rows.Scan(&id, &props, &geom); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f, err := decodeFeature(id, props, geom)
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	s.log.Debug().
		Str("layer", layer).
		Int("features", len(fc.Features)).
		Dur("elapsed", time.Since(start)).
		Msg("features fetched")
	return coords.ProjectFeatureCollection(fc, coords.KindGeographic, coords.KindTile)
}

// Count returns the number of features stored for layer.
func (s *Source) Count(ctx context.Context, layer string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM geo_features WHERE layer = $1", layer).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return count, nil
}

// Query identifies one cached feature request.
type Query struct {
	Layer  string          `json:"layer"`
	Bounds bbox.Serialized `json:"bounds"`
}

// Cached wraps FetchFeatures in a cache keyed by layer and box.
func (s *Source) Cached(size int) (*cache.Cache[Query, *geojson.FeatureCollection], error) {
	return cache.New(func(ctx context.Context, q Query) (*geojson.FeatureCollection, error) {
		return s.FetchFeatures(ctx, q.Layer, bbox.FromSerialized[coords.Tile](q.Bounds))
	}, cache.Options[Query]{Size: size, Logger: s.log})
}

// Fetcher adapts a feature cache to a fetch.Coalescer keyed by layer name.
// Requests with an empty layer, or for a box larger than maxArea tile units,
// are skipped. A maxArea of zero disables the size limit.
func Fetcher(features *cache.Cache[Query, *geojson.FeatureCollection], maxArea float64) fetch.FetchFunc[string, geojson.FeatureCollection] {
	return func(ctx context.Context, box fetch.Box, layer string) (*geojson.FeatureCollection, error) {
		if skipRequest(layer, box, maxArea) {
			return nil, nil
		}
		return features.Get(ctx, Query{Layer: layer, Bounds: box.Serialize()})
	}
}

func skipRequest(layer string, box fetch.Box, maxArea float64) bool {
	return layer == "" || (maxArea > 0 && box.Area() > maxArea)
}

// envelope converts a tile-space box to ST_MakeEnvelope arguments:
// xmin, ymin, xmax, ymax in degrees.
func envelope(box bbox.Box[coords.Tile]) ([4]float64, error) {
	geo, err := bbox.Convert[coords.LatLng](box)
	if err != nil {
		return [4]float64{}, err
	}
	return [4]float64{geo.MinX, geo.MinY, geo.MaxX, geo.MaxY}, nil
}

func encodeFeature(f *geojson.Feature) (id sql.NullString, props []byte, geom []byte, err error) {
	if f.ID != nil {
		id = sql.NullString{String: fmt.Sprint(f.ID), Valid: true}
	}
	props, err = json.Marshal(f.Properties)
	if err != nil {
		return id, nil, nil, fmt.Errorf("encode properties: %w", err)
	}
	if f.Properties == nil {
		props = []byte("{}")
	}
	geom, err = geojson.NewGeometry(f.Geometry).MarshalJSON()
	if err != nil {
		return id, nil, nil, fmt.Errorf("encode geometry: %w", err)
	}
	return id, props, geom, nil
}

func decodeFeature(id sql.NullString, props []byte, geom string) (*geojson.Feature, error) {
	g, err := geojson.UnmarshalGeometry([]byte(geom))
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	f := geojson.NewFeature(g.Geometry())
	if id.Valid {
		f.ID = id.String
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
	}
	return f, nil
}
