package main

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/fetch"
	"github.com/kass/go-geo-viewport/pkg/geo"
	"github.com/kass/go-geo-viewport/pkg/models"
	"github.com/kass/go-geo-viewport/pkg/overlay"
	"github.com/kass/go-geo-viewport/pkg/postgis"
	"github.com/kass/go-geo-viewport/pkg/viewport"
)

var (
	panSteps   int
	panDX      float64
	panDY      float64
	panZoom    int
	panLayer   string
	panFile    string
	panMaxArea float64
)

var panCmd = &cobra.Command{
	Use:   "pan LAT LNG",
	Short: "Simulate panning a map and report redraws and fetches",
	Long: `Pan a simulated map view from a starting center, a fixed number of pixels per step.
Each step is drawn through the viewport buffer and requests data through a fetch coalescer.
Data comes from a GeoJSON file (--file) or from PostGIS when POSTGIS_DSN is set.`,
	Args: cobra.ExactArgs(2),
	RunE: runPan,
}

func init() {
	panCmd.Flags().IntVarP(&panSteps, "steps", "n", 20, "Number of pan steps")
	panCmd.Flags().Float64Var(&panDX, "dx", 100, "Horizontal pixels per step")
	panCmd.Flags().Float64Var(&panDY, "dy", 0, "Vertical pixels per step")
	panCmd.Flags().IntVarP(&panZoom, "zoom", "z", 12, "Map zoom level")
	panCmd.Flags().StringVar(&panLayer, "layer", "features", "Layer name to fetch")
	panCmd.Flags().StringVarP(&panFile, "file", "f", "", "GeoJSON feature collection in longitude/latitude")
	panCmd.Flags().Float64Var(&panMaxArea, "max-area", 4, "Skip fetches for boxes larger than this many square tile units")
}

// viewBox is the tile-space rectangle a screen shows around center.
func viewBox(center coords.Tile, zoom int, d viewport.Config) bbox.Box[coords.Tile] {
	scale := math.Ldexp(1, zoom)
	halfW := float64(d.ScreenWidth) / scale / 2
	halfH := float64(d.ScreenHeight) / scale / 2
	return bbox.New[coords.Tile](center.X-halfW, center.Y-halfH, center.X+halfW, center.Y+halfH)
}

// fileFetcher serves features of a single in-memory layer by box.
func fileFetcher(layer *geo.Layer, maxArea float64) fetch.FetchFunc[string, geojson.FeatureCollection] {
	return func(_ context.Context, box fetch.Box, key string) (*geojson.FeatureCollection, error) {
		if key == "" || (maxArea > 0 && box.Area() > maxArea) {
			return nil, nil
		}
		out := geojson.NewFeatureCollection()
		for _, e := range layer.Search(box) {
			if f, ok := layer.Feature(e.Index); ok {
				out.Append(f)
			}
		}
		return out, nil
	}
}

func panFetcher(ctx context.Context) (fetch.FetchFunc[string, geojson.FeatureCollection], func(), error) {
	if panFile != "" {
		fc, err := readTileFeatures(panFile)
		if err != nil {
			return nil, nil, err
		}
		layer, err := geo.NewLayer(models.LayerData{Name: panLayer, Features: fc}, geo.Options{Logger: &log})
		if err != nil {
			return nil, nil, err
		}
		return fileFetcher(layer, panMaxArea), func() {}, nil
	}
	if cfg.PostGISDSN == "" {
		return nil, nil, fmt.Errorf("give --file or set POSTGIS_DSN")
	}
	src, err := postgis.Open(ctx, cfg.PostGISDSN, postgis.Options{Logger: &log})
	if err != nil {
		return nil, nil, err
	}
	features, err := src.Cached(cfg.CacheSize)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return postgis.Fetcher(features, panMaxArea), func() { src.Close() }, nil
}

func runPan(cmd *cobra.Command, args []string) error {
	v, err := parseFloats(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fetchFn, closeSource, err := panFetcher(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	var renders atomic.Int64
	o := overlay.New(overlay.Options{
		Display: display(),
		Logger:  &log,
		Renderer: overlay.RendererFunc(func(state viewport.State, layers []*geo.Layer) error {
			renders.Add(1)
			log.Debug().Int("zoom", state.Zoom).Stringer("buffer", state.Buffer).Msg("render")
			return nil
		}),
		OnError: func(err error) { log.Error().Err(err).Msg("overlay error") },
	})

	var fetched, skipped atomic.Int64
	coalescer := fetch.New(fetch.Options[string, geojson.FeatureCollection]{
		Fetch:           fetchFn,
		ExpansionFactor: cfg.FetchExpansionFactor,
		Logger:          &log,
		OnFetch: func(fc *geojson.FeatureCollection) {
			if fc == nil {
				skipped.Add(1)
				return
			}
			fetched.Add(1)
			if err := o.UpdateData([]models.LayerData{{Name: panLayer, Features: fc}}); err != nil {
				log.Error().Err(err).Msg("install fetched features")
			}
		},
		OnError: func(err error) { log.Warn().Err(err).Msg("fetch failed") },
	})
	defer coalescer.Close()
	coalescer.SetKey(panLayer)

	scale := math.Ldexp(1, panZoom)
	center := coords.LatLng{Lat: v[0], Lng: v[1]}.ToTile()
	start := time.Now()

	for step := 0; step < panSteps; step++ {
		view := viewBox(center, panZoom, display())
		before := renders.Load()
		if err := o.Draw(view, panZoom); err != nil {
			return err
		}
		coalescer.SetBounds(view)

		fmt.Fprintf(cmd.OutOrStdout(), "step %3d  center %s  redraw %v\n",
			step, center.ToLatLng(), renders.Load() > before)

		center = coords.Tile{X: center.X + panDX/scale, Y: center.Y + panDY/scale}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := coalescer.Wait(waitCtx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nPan Results:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Steps: %d\n", panSteps)
	fmt.Fprintf(cmd.OutOrStdout(), "Renders: %d\n", renders.Load())
	fmt.Fprintf(cmd.OutOrStdout(), "Fetches delivered: %d (skipped %d)\n", fetched.Load(), skipped.Load())
	fmt.Fprintf(cmd.OutOrStdout(), "Total time: %v\n", time.Since(start))
	return nil
}
