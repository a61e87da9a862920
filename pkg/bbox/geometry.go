package bbox

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kass/go-geo-viewport/pkg/coords"
)

var (
	// ErrEmptyGeometry is returned when bounds are requested for a geometry
	// that contains an empty coordinate array at any nesting level.
	ErrEmptyGeometry = errors.New("bounds of empty coordinate array")

	// ErrInvalidPosition is returned for a position with fewer than two numbers.
	ErrInvalidPosition = errors.New("invalid position")
)

// FromGeometry returns the box covering every position of g. Positions are
// taken to already be in the coordinate system of P.
func FromGeometry[P coords.Coord](g orb.Geometry) (Box[P], error) {
	b, err := geometryBounds(g)
	if err != nil {
		return Box[P]{}, err
	}
	return Box[P](b), nil
}

// FromFeature returns the box covering a feature's geometry.
func FromFeature[P coords.Coord](f *geojson.Feature) (Box[P], error) {
	if f == nil || f.Geometry == nil {
		return Box[P]{}, ErrEmptyGeometry
	}
	return FromGeometry[P](f.Geometry)
}

// FromFeatureCollection returns the union of the boxes of every feature with a
// geometry.
func FromFeatureCollection[P coords.Coord](fc *geojson.FeatureCollection) (Box[P], error) {
	var (
		out   Box[P]
		found bool
	)
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b, err := FromGeometry[P](f.Geometry)
		if err != nil {
			return Box[P]{}, fmt.Errorf("feature %d: %w", i, err)
		}
		if !found {
			out, found = b, true
			continue
		}
		out = out.Union(b)
	}
	if !found {
		return Box[P]{}, ErrEmptyGeometry
	}
	return out, nil
}

// FromCoordinates computes bounds for GeoJSON-style nested coordinate arrays
// of any depth: a single [x, y] position, a ring of positions, or arrays of
// rings and polygons. It accepts decoded JSON ([]any) as well as typed slices.
func FromCoordinates[P coords.Coord](coordinates any) (Box[P], error) {
	b, err := nestedBounds(reflect.ValueOf(coordinates))
	if err != nil {
		return Box[P]{}, err
	}
	return Box[P](b), nil
}

type rawBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (a rawBox) union(b rawBox) rawBox {
	return rawBox(Box[coords.Tile](a).Union(Box[coords.Tile](b)))
}

func pointBounds(p orb.Point) rawBox {
	return rawBox{MinX: p[0], MinY: p[1], MaxX: p[0], MaxY: p[1]}
}

func pointsBounds(ps []orb.Point) (rawBox, error) {
	if len(ps) == 0 {
		return rawBox{}, ErrEmptyGeometry
	}
	b := pointBounds(ps[0])
	for _, p := range ps[1:] {
		b = b.union(pointBounds(p))
	}
	return b, nil
}

func geometryBounds(g orb.Geometry) (rawBox, error) {
	switch g := g.(type) {
	case nil:
		return rawBox{}, ErrEmptyGeometry
	case orb.Point:
		return pointBounds(g), nil
	case orb.MultiPoint:
		return pointsBounds(g)
	case orb.LineString:
		return pointsBounds(g)
	case orb.Ring:
		return pointsBounds(g)
	case orb.Bound:
		return rawBox{MinX: g.Min[0], MinY: g.Min[1], MaxX: g.Max[0], MaxY: g.Max[1]}, nil
	case orb.Polygon:
		return unionAll(len(g), func(i int) (rawBox, error) { return pointsBounds(g[i]) })
	case orb.MultiLineString:
		return unionAll(len(g), func(i int) (rawBox, error) { return pointsBounds(g[i]) })
	case orb.MultiPolygon:
		return unionAll(len(g), func(i int) (rawBox, error) { return geometryBounds(g[i]) })
	case orb.Collection:
		return unionAll(len(g), func(i int) (rawBox, error) { return geometryBounds(g[i]) })
	default:
		return rawBox{}, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func unionAll(n int, at func(i int) (rawBox, error)) (rawBox, error) {
	if n == 0 {
		return rawBox{}, ErrEmptyGeometry
	}
	out, err := at(0)
	if err != nil {
		return rawBox{}, err
	}
	for i := 1; i < n; i++ {
		b, err := at(i)
		if err != nil {
			return rawBox{}, err
		}
		out = out.union(b)
	}
	return out, nil
}

func nestedBounds(v reflect.Value) (rawBox, error) {
	v = unwrap(v)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return rawBox{}, fmt.Errorf("%w: unexpected %s", ErrInvalidPosition, v.Kind())
	}
	if v.Len() == 0 {
		return rawBox{}, ErrEmptyGeometry
	}

	if _, ok := number(v.Index(0)); ok {
		if v.Len() < 2 {
			return rawBox{}, ErrInvalidPosition
		}
		x, _ := number(v.Index(0))
		y, ok := number(v.Index(1))
		if !ok {
			return rawBox{}, ErrInvalidPosition
		}
		return pointBounds(orb.Point{x, y}), nil
	}

	return unionAll(v.Len(), func(i int) (rawBox, error) { return nestedBounds(v.Index(i)) })
}

func unwrap(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

func number(v reflect.Value) (float64, bool) {
	v = unwrap(v)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}
