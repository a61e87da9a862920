// Package bbox implements axis-aligned bounding boxes over the point kinds of
// package coords. Boxes are immutable values: every operation returns a new box.
package bbox

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/kass/go-geo-viewport/pkg/coords"
)

// Box is a rectangle in the coordinate system of P. For geographic boxes X is
// longitude and Y is latitude. MinX <= MaxX and MinY <= MaxY always hold for
// boxes built by this package.
type Box[P coords.Coord] struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// New builds a box from raw bounds, sorting each axis.
func New[P coords.Coord](minX, minY, maxX, maxY float64) Box[P] {
	return Box[P]{
		MinX: math.Min(minX, maxX),
		MinY: math.Min(minY, maxY),
		MaxX: math.Max(minX, maxX),
		MaxY: math.Max(minY, maxY),
	}
}

// FromCorners builds the box spanned by two arbitrary corner points.
func FromCorners[P coords.Coord](p1, p2 P) Box[P] {
	x1, y1 := p1.XY()
	x2, y2 := p2.XY()
	return New[P](x1, y1, x2, y2)
}

// Kind is the coordinate system of the box corners.
func (b Box[P]) Kind() coords.Kind {
	return coords.KindOf[P]()
}

// Min returns the corner with the smallest coordinates.
func (b Box[P]) Min() P { return coords.New[P](b.MinX, b.MinY) }

// Max returns the corner with the largest coordinates.
func (b Box[P]) Max() P { return coords.New[P](b.MaxX, b.MaxY) }

func (b Box[P]) Width() float64 { return b.MaxX - b.MinX }

func (b Box[P]) Height() float64 { return b.MaxY - b.MinY }

// IsWithin reports whether b lies entirely inside other, edges included.
func (b Box[P]) IsWithin(other Box[P]) bool {
	return b.MinX >= other.MinX &&
		b.MaxX <= other.MaxX &&
		b.MinY >= other.MinY &&
		b.MaxY <= other.MaxY
}

// ContainsPoint is inclusive on all four edges.
func (b Box[P]) ContainsPoint(p P) bool {
	x, y := p.XY()
	return b.MinX <= x && b.MaxX >= x && b.MinY <= y && b.MaxY >= y
}

// Overlaps reports whether the boxes share at least one point.
func (b Box[P]) Overlaps(other Box[P]) bool {
	return RangesOverlap(b.MinX, b.MaxX, other.MinX, other.MaxX) &&
		RangesOverlap(b.MinY, b.MaxY, other.MinY, other.MaxY)
}

// RangesOverlap checks two closed intervals [aMin, aMax] and [bMin, bMax].
func RangesOverlap(aMin, aMax, bMin, bMax float64) bool {
	return aMin <= bMax && bMin <= aMax
}

// Area is measured in the units of P.
func (b Box[P]) Area() float64 {
	return b.Width() * b.Height()
}

func (b Box[P]) Center() P {
	return coords.New[P]((b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2)
}

// ExpandByFactor grows both dimensions around the center. A factor of 2
// doubles the width and the height; 1 returns the same box.
func (b Box[P]) ExpandByFactor(factor float64) Box[P] {
	dw := b.Width() * (factor - 1) / 2
	dh := b.Height() * (factor - 1) / 2
	return New[P](b.MinX-dw, b.MinY-dh, b.MaxX+dw, b.MaxY+dh)
}

// Pad grows the box by d on every side.
func (b Box[P]) Pad(d float64) Box[P] {
	return New[P](b.MinX-d, b.MinY-d, b.MaxX+d, b.MaxY+d)
}

// Union returns the smallest box covering both.
func (b Box[P]) Union(other Box[P]) Box[P] {
	return Box[P]{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Hash is a stable 64-bit digest of the bounds and kind, for cache keys.
func (b Box[P]) Hash() uint64 {
	return xxhash.Sum64String(b.String())
}

func (b Box[P]) String() string {
	return fmt.Sprintf("%s(%v,%v,%v,%v)", b.Kind(), b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Convert converts the two extreme corners of b to kind Q and re-sorts them.
func Convert[Q, P coords.Coord](b Box[P]) (Box[Q], error) {
	lo, err := coords.Convert[Q](b.Min())
	if err != nil {
		return Box[Q]{}, err
	}
	hi, err := coords.Convert[Q](b.Max())
	if err != nil {
		return Box[Q]{}, err
	}
	return FromCorners(lo, hi), nil
}

// MustConvert panics on an unsupported conversion.
func MustConvert[Q, P coords.Coord](b Box[P]) Box[Q] {
	out, err := Convert[Q](b)
	if err != nil {
		panic(err)
	}
	return out
}

// CenterZoom is a map center plus the zoom level needed to show a region.
type CenterZoom struct {
	Center coords.LatLng `json:"center"`
	Zoom   int           `json:"zoomLevel"`
}

const (
	// fitSize is the viewport edge, in pixels, ToCenterZoom fits a box into.
	fitSize = 1024

	// MaxZoom is returned for degenerate boxes with no width and no height.
	MaxZoom = 22
)

// ToCenterZoom returns the geographic center of b and the web-map zoom level
// at which b fits in a 1024x1024 pixel viewport.
func ToCenterZoom(b Box[coords.Tile]) CenterZoom {
	level := math.Max(math.Log2(fitSize/b.Width()), math.Log2(fitSize/b.Height()))
	zoom := MaxZoom
	if !math.IsInf(level, 1) && !math.IsNaN(level) {
		// round half up
		zoom = int(math.Floor(level + 0.5))
	}
	return CenterZoom{
		Center: b.Center().ToLatLng(),
		Zoom:   zoom,
	}
}
