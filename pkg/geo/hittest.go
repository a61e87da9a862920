package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/kass/go-geo-viewport/internal/metrics"
	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

// HitPadding is the half-size, in screen pixels, of the box searched around a
// hit-test point.
const HitPadding = 5

// Hit identifies the feature found by HitTest.
type Hit struct {
	LayerIndex   int
	Layer        *Layer
	FeatureIndex int
	Feature      *geojson.Feature
}

// QueryBox is the tile-space box searched around p at the given zoom. Its
// padding shrinks as zoom grows so that it stays HitPadding pixels wide.
func QueryBox(p coords.Tile, zoom int) bbox.Box[coords.Tile] {
	padding := HitPadding * math.Pow(2, -float64(zoom))
	return bbox.New[coords.Tile](p.X-padding, p.Y-padding, p.X+padding, p.Y+padding)
}

// HitTest finds the feature under p. Layers are searched from index 0 and
// the first layer with a matching feature wins. Within a layer, candidates
// are tried from the highest feature index down. Points match whenever their
// box is hit, polygons must contain p and other geometries must intersect
// the query box.
func HitTest(layers []*Layer, p coords.Point, zoom int) (Hit, bool, error) {
	pt, err := toTile(p)
	if err != nil {
		return Hit{}, false, err
	}

	query := QueryBox(pt, zoom)
	target := orb.Point{pt.X, pt.Y}
	bound := orb.Bound{
		Min: orb.Point{query.MinX, query.MinY},
		Max: orb.Point{query.MaxX, query.MaxY},
	}

	for i, layer := range layers {
		candidates := layer.Search(query)
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(a, b int) bool {
			return candidates[a].Index > candidates[b].Index
		})

		for _, c := range candidates {
			f, ok := layer.Feature(c.Index)
			if !ok || f == nil || f.Geometry == nil {
				continue
			}
			if matches(f.Geometry, target, bound) {
				metrics.ObserveHitTest(true)
				return Hit{LayerIndex: i, Layer: layer, FeatureIndex: c.Index, Feature: f}, true, nil
			}
		}
	}

	metrics.ObserveHitTest(false)
	return Hit{}, false, nil
}

func toTile(p coords.Point) (coords.Tile, error) {
	if t, ok := p.(coords.Tile); ok {
		return t, nil
	}
	return coords.Convert[coords.Tile](p)
}

func matches(g orb.Geometry, p orb.Point, query orb.Bound) bool {
	switch g := g.(type) {
	case orb.Point, orb.MultiPoint:
		return true
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.LineString:
		return len(clip.LineString(query, g)) > 0
	case orb.MultiLineString:
		return len(clip.MultiLineString(query, g)) > 0
	default:
		return g.Bound().Intersects(query)
	}
}
