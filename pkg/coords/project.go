package coords

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ProjectGeometry returns a copy of g with every position converted from one
// kind to another. Positions are read in GeoJSON (x, y) order.
func ProjectGeometry(g orb.Geometry, from, to Kind) (orb.Geometry, error) {
	fn, err := lookup(from, to)
	if err != nil {
		return nil, err
	}
	return project(g, fn), nil
}

// ProjectFeatureCollection returns a new collection whose features carry
// projected geometries. Ids and properties are shared with the input.
// Features with a null geometry are kept as they are.
func ProjectFeatureCollection(fc *geojson.FeatureCollection, from, to Kind) (*geojson.FeatureCollection, error) {
	fn, err := lookup(from, to)
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	out.Features = make([]*geojson.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		cp := *f
		cp.BBox = nil
		cp.Geometry = project(f.Geometry, fn)
		out.Features = append(out.Features, &cp)
	}
	return out, nil
}

func project(g orb.Geometry, fn transform) orb.Geometry {
	switch g := g.(type) {
	case nil:
		return nil
	case orb.Point:
		return projectPoint(g, fn)
	case orb.MultiPoint:
		return orb.MultiPoint(projectPoints(g, fn))
	case orb.LineString:
		return orb.LineString(projectPoints(g, fn))
	case orb.Ring:
		return orb.Ring(projectPoints(g, fn))
	case orb.Polygon:
		return projectPolygon(g, fn)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			out[i] = orb.LineString(projectPoints(ls, fn))
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			out[i] = projectPolygon(p, fn)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, c := range g {
			out[i] = project(c, fn)
		}
		return out
	case orb.Bound:
		return orb.MultiPoint{projectPoint(g.Min, fn), projectPoint(g.Max, fn)}.Bound()
	default:
		return g
	}
}

func projectPoint(p orb.Point, fn transform) orb.Point {
	x, y := fn(p[0], p[1])
	return orb.Point{x, y}
}

func projectPoints(ps []orb.Point, fn transform) []orb.Point {
	out := make([]orb.Point, len(ps))
	for i, p := range ps {
		out[i] = projectPoint(p, fn)
	}
	return out
}

func projectPolygon(p orb.Polygon, fn transform) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = orb.Ring(projectPoints(r, fn))
	}
	return out
}
