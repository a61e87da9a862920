package coords

import "math"

// DistanceMeters calculates the haversine distance between two points in meters
func DistanceMeters(start, end LatLng) float64 {
	lat1Rad := start.Lat * math.Pi / 180.0
	lon1Rad := start.Lng * math.Pi / 180.0
	lat2Rad := end.Lat * math.Pi / 180.0
	lon2Rad := end.Lng * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Heading returns the initial great-circle bearing from one point to another,
// in degrees within [0, 360).
func Heading(from, to LatLng) float64 {
	srcLat := from.Lat * math.Pi / 180
	dstLat := to.Lat * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(dstLat)
	x := math.Cos(srcLat)*math.Sin(dstLat) -
		math.Sin(srcLat)*math.Cos(dstLat)*math.Cos(dLng)

	deg := math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
