package coords

import "math"

type transform func(x, y float64) (float64, float64)

type edge struct {
	from, to Kind
}

var conversions = map[edge]transform{
	{KindGeographic, KindMeters}: geographicToMeters,
	{KindMeters, KindGeographic}: metersToGeographic,
	{KindMeters, KindTile}:       metersToTile,
	{KindTile, KindMeters}:       tileToMeters,
	{KindGeographic, KindTile}:   compose(geographicToMeters, metersToTile),
	{KindTile, KindGeographic}:   compose(tileToMeters, metersToGeographic),
}

func compose(first, second transform) transform {
	return func(x, y float64) (float64, float64) {
		return second(first(x, y))
	}
}

func lookup(from, to Kind) (transform, error) {
	fn, ok := conversions[edge{from, to}]
	if !ok {
		return nil, &UnsupportedConversionError{From: from, To: to}
	}
	return fn, nil
}

// Supported reports whether from -> to is an edge of the conversion graph.
func Supported(from, to Kind) bool {
	_, ok := conversions[edge{from, to}]
	return ok
}

// Transform converts raw x, y values between kinds.
func Transform(from, to Kind, x, y float64) (float64, float64, error) {
	fn, err := lookup(from, to)
	if err != nil {
		return 0, 0, err
	}
	tx, ty := fn(x, y)
	return tx, ty, nil
}

// Convert converts p to kind T.
func Convert[T Coord](p Point) (T, error) {
	x, y := p.XY()
	tx, ty, err := Transform(p.Kind(), KindOf[T](), x, y)
	if err != nil {
		var zero T
		return zero, err
	}
	return New[T](tx, ty), nil
}

// MustConvert is Convert for call sites where an unsupported conversion is a
// programming error. It panics on failure.
func MustConvert[T Coord](p Point) T {
	out, err := Convert[T](p)
	if err != nil {
		panic(err)
	}
	return out
}

func geographicToMeters(lng, lat float64) (float64, float64) {
	return lng * (EarthRadius * math.Pi) / 180,
		math.Log(math.Tan((lat+90)*math.Pi/360)) * EarthRadius
}

func metersToGeographic(x, y float64) (float64, float64) {
	lng := 180 * x / (EarthRadius * math.Pi)
	lat := 360*math.Atan(math.Exp(y/EarthRadius))/math.Pi - 90
	return lng, lat
}

func metersToTile(x, y float64) (float64, float64) {
	return 128 + x/tileFactor, 128 - y/tileFactor
}

func tileToMeters(x, y float64) (float64, float64) {
	return (x - 128) * tileFactor, (128 - y) * tileFactor
}
