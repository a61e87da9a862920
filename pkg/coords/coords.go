// Package coords converts points between geographic coordinates, EPSG:3857
// projected meters and the 256x256 tile space used for map rendering.
//
// Every point type carries its Kind. Conversions are only defined along the
// graph Geographic <-> Meters <-> Tile (Geographic <-> Tile is composed through
// Meters); any other request fails with an UnsupportedConversionError.
// Inputs are never range checked: an out-of-range latitude produces a
// mathematically consistent but meaningless result.
package coords

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

const (
	// EarthRadius is the EPSG:3857 sphere radius in meters.
	EarthRadius = 6378137.0

	// tileFactor is how many projected meters make up one tile-space unit.
	tileFactor = EarthRadius * math.Pi / 128
)

// Kind identifies the coordinate system a point is expressed in.
type Kind uint8

const (
	KindGeographic Kind = iota + 1
	KindMeters
	KindTile
)

func (k Kind) String() string {
	switch k {
	case KindGeographic:
		return "geographic"
	case KindMeters:
		return "meters"
	case KindTile:
		return "tile"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind accepts the names returned by Kind.String, plus "latlng" and
// "google" as aliases for geographic and tile.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geographic", "latlng":
		return KindGeographic, nil
	case "meters", "epsg3857":
		return KindMeters, nil
	case "tile", "google":
		return KindTile, nil
	default:
		return 0, fmt.Errorf("unknown coordinate kind %q", s)
	}
}

// ErrUnsupportedConversion matches every UnsupportedConversionError.
var ErrUnsupportedConversion = errors.New("unsupported conversion")

// UnsupportedConversionError reports a conversion outside the conversion graph.
type UnsupportedConversionError struct {
	From Kind
	To   Kind
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("unsupported conversion from %s to %s", e.From, e.To)
}

func (e *UnsupportedConversionError) Is(target error) bool {
	return target == ErrUnsupportedConversion
}

// Point is implemented by LatLng, Meters and Tile.
type Point interface {
	Kind() Kind
	// XY returns the point in x, y order (longitude first for LatLng).
	XY() (x, y float64)
}

// Coord constrains generic code to the closed set of point kinds.
type Coord interface {
	LatLng | Meters | Tile
	Point
}

// LatLng is a geographic point in degrees. Latitude comes first.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (LatLng) Kind() Kind { return KindGeographic }

func (p LatLng) XY() (float64, float64) { return p.Lng, p.Lat }

func (p LatLng) String() string { return fmt.Sprintf("%v, %v", p.Lat, p.Lng) }

// GeoJSON returns the point in GeoJSON (lng, lat) order.
func (p LatLng) GeoJSON() orb.Point { return orb.Point{p.Lng, p.Lat} }

// LatLngFromGeoJSON reads a GeoJSON (lng, lat) position.
func LatLngFromGeoJSON(p orb.Point) LatLng { return LatLng{Lat: p[1], Lng: p[0]} }

// ToMeters projects the point to EPSG:3857.
func (p LatLng) ToMeters() Meters {
	x, y := geographicToMeters(p.Lng, p.Lat)
	return Meters{X: x, Y: y}
}

// ToTile projects the point to tile space.
func (p LatLng) ToTile() Tile { return p.ToMeters().ToTile() }

// Meters is an EPSG:3857 point; Y increases northward.
type Meters struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Meters) Kind() Kind { return KindMeters }

func (p Meters) XY() (float64, float64) { return p.X, p.Y }

func (p Meters) ToLatLng() LatLng {
	lng, lat := metersToGeographic(p.X, p.Y)
	return LatLng{Lat: lat, Lng: lng}
}

func (p Meters) ToTile() Tile {
	x, y := metersToTile(p.X, p.Y)
	return Tile{X: x, Y: y}
}

// MeterLength is the length of one meter near this point, in projected units.
func (p Meters) MeterLength() float64 {
	return 1 / math.Cosh(p.Y/EarthRadius)
}

// Tile is EPSG:3857 scaled and translated so the world spans [0,256] on both
// axes with Y increasing southward.
type Tile struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Tile) Kind() Kind { return KindTile }

func (p Tile) XY() (float64, float64) { return p.X, p.Y }

func (p Tile) ToMeters() Meters {
	x, y := tileToMeters(p.X, p.Y)
	return Meters{X: x, Y: y}
}

func (p Tile) ToLatLng() LatLng { return p.ToMeters().ToLatLng() }

// MeterLength is the length of one meter near this point, in tile units.
func (p Tile) MeterLength() float64 {
	return p.ToMeters().MeterLength() / tileFactor
}

// New builds a point of kind P from x, y (longitude first for LatLng).
func New[P Coord](x, y float64) P {
	var p P
	switch any(p).(type) {
	case LatLng:
		return any(LatLng{Lat: y, Lng: x}).(P)
	case Meters:
		return any(Meters{X: x, Y: y}).(P)
	default:
		return any(Tile{X: x, Y: y}).(P)
	}
}

// KindOf returns the Kind of the type parameter.
func KindOf[P Coord]() Kind {
	var p P
	return p.Kind()
}

// MeterLength returns the projected length of a meter near p. Geographic
// points are measured in EPSG:3857 units.
func MeterLength(p Point) (float64, error) {
	switch p := p.(type) {
	case Meters:
		return p.MeterLength(), nil
	case Tile:
		return p.MeterLength(), nil
	case LatLng:
		return p.ToMeters().MeterLength(), nil
	default:
		return 0, &UnsupportedConversionError{From: p.Kind(), To: KindMeters}
	}
}
