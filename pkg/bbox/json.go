package bbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kass/go-geo-viewport/pkg/coords"
)

// Serialized is the wire form of a box: {minX, minY, maxX, maxY}. Values may
// be JSON numbers or decimal strings.
type Serialized struct {
	MinX Decimal `json:"minX"`
	MinY Decimal `json:"minY"`
	MaxX Decimal `json:"maxX"`
	MaxY Decimal `json:"maxY"`
}

// Decimal is a float64 that also decodes from a quoted decimal string.
type Decimal float64

func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	*d = Decimal(f)
	return nil
}

// FromSerialized builds a box of kind P from its wire form.
func FromSerialized[P coords.Coord](s Serialized) Box[P] {
	return New[P](float64(s.MinX), float64(s.MinY), float64(s.MaxX), float64(s.MaxY))
}

// Serialize returns the wire form of b.
func (b Box[P]) Serialize() Serialized {
	return Serialized{
		MinX: Decimal(b.MinX),
		MinY: Decimal(b.MinY),
		MaxX: Decimal(b.MaxX),
		MaxY: Decimal(b.MaxY),
	}
}

func (b Box[P]) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Serialize())
}

func (b *Box[P]) UnmarshalJSON(data []byte) error {
	var s Serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode bounding box: %w", err)
	}
	*b = FromSerialized[P](s)
	return nil
}
