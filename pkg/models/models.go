package models

import (
	"github.com/paulmach/orb/geojson"

	"github.com/kass/go-geo-viewport/pkg/bbox"
)

// LayerData is one dataset handed to the overlay. Feature coordinates are in
// tile space; see coords.ProjectFeatureCollection for converting GeoJSON read
// in longitude/latitude.
type LayerData struct {
	Name              string                     `json:"name"`
	Features          *geojson.FeatureCollection `json:"features"`
	SelectedFeatureID any                        `json:"selectedFeatureId,omitempty"`
}

// BoundingBox is the wire form of a rectangle: {minX, minY, maxX, maxY}.
type BoundingBox = bbox.Serialized

// Viewport is a visible map rectangle in tile space at a zoom level.
type Viewport struct {
	Bounds BoundingBox `json:"bounds"`
	Zoom   int         `json:"zoom"`
}
