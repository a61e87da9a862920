package coords

// Pixel is a screen position relative to a raster's top-left corner.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ToPixel maps a tile-space point onto a raster whose top-left corner is
// topLeft, drawn at scale pixels per tile unit.
func (p Tile) ToPixel(scale float64, topLeft Tile) Pixel {
	return Pixel{X: (p.X - topLeft.X) * scale, Y: (p.Y - topLeft.Y) * scale}
}

// FromPixel is the inverse of Tile.ToPixel.
func FromPixel(px Pixel, scale float64, topLeft Tile) Tile {
	return Tile{X: topLeft.X + px.X/scale, Y: topLeft.Y + px.Y/scale}
}
