// Package geo builds the per-layer spatial indexes used to resolve map clicks
// to features. All geometry handled here is in tile space.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/internal/metrics"
	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/models"
	"github.com/kass/go-geo-viewport/pkg/rtree"
)

// Options configures layer construction. The zero value is usable.
type Options struct {
	Logger *zerolog.Logger

	// NewIndex returns an empty R-tree for a layer. Defaults to rtree.New.
	NewIndex func() rtree.Index[coords.Tile]
}

func (o Options) withDefaults() Options {
	o.Logger = logger.OrNop(o.Logger)
	if o.NewIndex == nil {
		o.NewIndex = func() rtree.Index[coords.Tile] { return rtree.New[coords.Tile]() }
	}
	return o
}

// Layer is an installed dataset with its id lookup and spatial index. The
// index is built once; a Layer is never mutated after construction.
type Layer struct {
	data    models.LayerData
	byID    map[string]*geojson.Feature
	index   rtree.Index[coords.Tile]
	indexed int
	skipped int
}

// NewLayer indexes every feature of data that has a geometry. Features whose
// bounds cannot be computed are logged and left out; the layer is still built.
func NewLayer(data models.LayerData, opts Options) (*Layer, error) {
	opts = opts.withDefaults()
	l := &Layer{
		data:  data,
		byID:  map[string]*geojson.Feature{},
		index: opts.NewIndex(),
	}
	if data.Features == nil {
		return l, nil
	}

	entries := make([]rtree.Entry[coords.Tile], 0, len(data.Features.Features))
	for i, f := range data.Features.Features {
		if f == nil {
			continue
		}
		if f.ID != nil {
			l.byID[idKey(f.ID)] = f
		}
		if f.Geometry == nil {
			continue
		}
		box, err := bbox.FromFeature[coords.Tile](f)
		if err != nil {
			l.skipped++
			opts.Logger.Warn().
				Err(err).
				Str("layer", data.Name).
				Int("feature", i).
				Msg("feature left out of index")
			continue
		}
		entries = append(entries, rtree.Entry[coords.Tile]{Box: box, Index: i})
	}

	l.index.Clear()
	if err := l.index.Load(entries); err != nil {
		return nil, fmt.Errorf("index layer %q: %w", data.Name, err)
	}
	l.indexed = len(entries)

	metrics.SetLayerFeaturesIndexed(l.indexed)
	metrics.AddLayerFeaturesSkipped(l.skipped)
	opts.Logger.Debug().
		Str("layer", data.Name).
		Int("indexed", l.indexed).
		Int("skipped", l.skipped).
		Msg("layer indexed")
	return l, nil
}

func idKey(id any) string {
	return fmt.Sprint(id)
}

// Data returns the dataset the layer was built from, with the current
// selection.
func (l *Layer) Data() models.LayerData { return l.data }

func (l *Layer) Name() string { return l.data.Name }

// Features returns the feature collection by reference.
func (l *Layer) Features() *geojson.FeatureCollection { return l.data.Features }

// Len is the number of indexed features.
func (l *Layer) Len() int { return l.indexed }

// Skipped is the number of features with a geometry that could not be indexed.
func (l *Layer) Skipped() int { return l.skipped }

// Feature returns the feature at position i of the collection.
func (l *Layer) Feature(i int) (*geojson.Feature, bool) {
	if l.data.Features == nil || i < 0 || i >= len(l.data.Features.Features) {
		return nil, false
	}
	return l.data.Features.Features[i], true
}

// FeatureByID looks a feature up by id. String and numeric ids with the same
// text resolve to the same feature.
func (l *Layer) FeatureByID(id any) (*geojson.Feature, bool) {
	if id == nil {
		return nil, false
	}
	f, ok := l.byID[idKey(id)]
	return f, ok
}

func (l *Layer) SelectedFeatureID() any { return l.data.SelectedFeatureID }

// SelectedFeature resolves the selected id, if any.
func (l *Layer) SelectedFeature() (*geojson.Feature, bool) {
	return l.FeatureByID(l.data.SelectedFeatureID)
}

// Search returns the index entries overlapping box.
func (l *Layer) Search(box bbox.Box[coords.Tile]) []rtree.Entry[coords.Tile] {
	return l.index.Search(box)
}

// withSelection returns a copy sharing the index but carrying a new selection.
func (l *Layer) withSelection(id any) *Layer {
	out := *l
	out.data.SelectedFeatureID = id
	return &out
}

// LayerSet is the ordered list of installed layers. It is not safe for
// concurrent use; the overlay serializes access.
type LayerSet struct {
	opts   Options
	layers []*Layer
}

func NewLayerSet(opts Options) *LayerSet {
	return &LayerSet{opts: opts.withDefaults()}
}

// Layers returns the installed layers in order.
func (s *LayerSet) Layers() []*Layer {
	return s.layers
}

func (s *LayerSet) Len() int { return len(s.layers) }

// Install replaces the layer list. A layer whose feature collection is the
// same reference as the layer previously installed at that position is reused
// without re-indexing; only its selection is updated. The previous layers are
// returned so the caller can roll back with Restore. If any layer fails to
// build the set is left unchanged.
func (s *LayerSet) Install(data []models.LayerData) ([]*Layer, error) {
	old := s.layers
	next := make([]*Layer, 0, len(data))

	var errs []error
	for i, d := range data {
		if i < len(old) && old[i].data.Features == d.Features {
			next = append(next, old[i].withSelection(d.SelectedFeatureID))
			continue
		}
		l, err := NewLayer(d, s.opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		next = append(next, l)
	}
	if err := errors.Join(errs...); err != nil {
		return old, err
	}

	s.layers = next
	return old, nil
}

// Restore reinstalls a layer list returned by Install.
func (s *LayerSet) Restore(layers []*Layer) {
	s.layers = layers
}

// HitTest resolves a point to a feature of the installed layers.
func (s *LayerSet) HitTest(p coords.Point, zoom int) (Hit, bool, error) {
	return HitTest(s.layers, p, zoom)
}
