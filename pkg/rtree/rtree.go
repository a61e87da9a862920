// Package rtree adapts github.com/dhconnelly/rtreego to the bulk-load and
// range-query contract used by the per-layer spatial index.
package rtree

import (
	"fmt"
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

const (
	// tolerance is the relative padding applied to every rectangle handed to
	// rtreego, which rejects zero-length sides and treats touching rectangles
	// as disjoint. Results are re-checked against the exact boxes.
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// Entry is a bounding box annotated with the position of its feature in the
// layer's feature slice.
type Entry[P coords.Coord] struct {
	Box   bbox.Box[P]
	Index int
}

// Index is the R-tree contract the spatial index depends on.
type Index[P coords.Coord] interface {
	Clear()
	Load(entries []Entry[P]) error
	Search(query bbox.Box[P]) []Entry[P]
	Len() int
}

// spatialEntry wraps an Entry to implement rtreego.Spatial
type spatialEntry[P coords.Coord] struct {
	Entry[P]
	rect rtreego.Rect
}

func (se *spatialEntry[P]) Bounds() rtreego.Rect {
	return se.rect
}

// Tree is a thread-safe Index backed by rtreego.
type Tree[P coords.Coord] struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	count int
}

var _ Index[coords.Tile] = (*Tree[coords.Tile])(nil)

// New creates an empty tree
func New[P coords.Coord]() *Tree[P] {
	return &Tree[P]{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Clear removes all entries from the tree
func (t *Tree[P]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	t.count = 0
}

// Load adds entries to the tree. An empty tree is bulk-loaded. If any entry
// has unusable bounds (NaN or infinite) nothing is added.
func (t *Tree[P]) Load(entries []Entry[P]) error {
	if len(entries) == 0 {
		return nil
	}

	spatials := make([]rtreego.Spatial, len(entries))
	for i, e := range entries {
		rect, err := toRect(e.Box)
		if err != nil {
			return fmt.Errorf("entry %d (feature %d): %w", i, e.Index, err)
		}
		spatials[i] = &spatialEntry[P]{Entry: e, rect: rect}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		t.tree = rtreego.NewTree(dimensions, minChildren, maxChildren, spatials...)
	} else {
		for _, s := range spatials {
			t.tree.Insert(s)
		}
	}
	t.count += len(spatials)
	return nil
}

// Search returns every entry whose box overlaps query, edges included.
func (t *Tree[P]) Search(query bbox.Box[P]) []Entry[P] {
	rect, err := toRect(query)
	if err != nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	results := t.tree.SearchIntersect(rect)

	entries := make([]Entry[P], 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialEntry[P])
		if !ok {
			continue
		}
		// rectangles were padded; confirm against the exact bounds
		if item.Box.Overlaps(query) {
			entries = append(entries, item.Entry)
		}
	}
	return entries
}

// Len returns the number of entries in the tree
func (t *Tree[P]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

func toRect[P coords.Coord](b bbox.Box[P]) (rtreego.Rect, error) {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rtreego.Rect{}, fmt.Errorf("invalid bounds %s", b)
		}
	}

	scale := math.Max(1, math.Max(
		math.Max(math.Abs(b.MinX), math.Abs(b.MaxX)),
		math.Max(math.Abs(b.MinY), math.Abs(b.MaxY)),
	))
	pad := tolerance * scale

	rect, err := rtreego.NewRect(
		rtreego.Point{b.MinX - pad, b.MinY - pad},
		[]float64{b.Width() + 2*pad, b.Height() + 2*pad},
	)
	if err != nil {
		return rtreego.Rect{}, fmt.Errorf("invalid bounds %s: %w", b, err)
	}
	return rect, nil
}
