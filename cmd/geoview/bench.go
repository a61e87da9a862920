package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/geo"
	"github.com/kass/go-geo-viewport/pkg/models"
)

var (
	numFeatures int
	numQueries  int
	numWorkers  int
	benchZoom   int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run hit-test benchmarks",
	Long:  `Index random points and polygons around New York and run hit tests from parallel workers.`,
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&numFeatures, "features", "p", 100000, "Number of features to generate")
	benchCmd.Flags().IntVarP(&numQueries, "queries", "q", 100000, "Number of hit tests to run")
	benchCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().IntVarP(&benchZoom, "zoom", "z", 14, "Map zoom level for hit tests")
}

// benchRegion is the tile-space area features and queries are drawn from.
var benchRegion = struct{ minX, minY, size float64 }{minX: 75.3, minY: 96.1, size: 0.3}

func randomTile(r *rand.Rand) coords.Tile {
	return coords.Tile{
		X: benchRegion.minX + r.Float64()*benchRegion.size,
		Y: benchRegion.minY + r.Float64()*benchRegion.size,
	}
}

// generateFeatures builds a mix of points and small squares in tile space.
func generateFeatures(r *rand.Rand, n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		p := randomTile(r)
		var g orb.Geometry = orb.Point{p.X, p.Y}
		if i%2 == 1 {
			d := r.Float64() * 0.002
			g = orb.Polygon{{{p.X, p.Y}, {p.X + d, p.Y}, {p.X + d, p.Y + d}, {p.X, p.Y + d}, {p.X, p.Y}}}
		}
		f := geojson.NewFeature(g)
		f.ID = fmt.Sprintf("feature_%d", i)
		fc.Append(f)
	}
	return fc
}

func runBench(cmd *cobra.Command, args []string) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	out := cmd.OutOrStdout()
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	fmt.Fprintf(out, "Indexing %d random features...\n", numFeatures)
	fc := generateFeatures(r, numFeatures)

	start := time.Now()
	layer, err := geo.NewLayer(models.LayerData{Name: "bench", Features: fc}, geo.Options{Logger: &log})
	if err != nil {
		return err
	}
	loadTime := time.Since(start)
	fmt.Fprintf(out, "Indexed %d features in %v\n", layer.Len(), loadTime)
	fmt.Fprintf(out, "Features per second: %.0f\n", float64(layer.Len())/loadTime.Seconds())

	queries := make([]coords.Tile, numQueries)
	for i := range queries {
		queries[i] = randomTile(r)
	}
	layers := []*geo.Layer{layer}

	fmt.Fprintf(out, "Running %d hit tests using %d workers...\n", numQueries, numWorkers)

	var hits atomic.Int64
	var queryCount atomic.Int64

	start = time.Now()

	var wg sync.WaitGroup
	queriesPerWorker := numQueries / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * queriesPerWorker
		endIdx := startIdx + queriesPerWorker
		if w == numWorkers-1 {
			endIdx = numQueries
		}

		go func(workerID, start, end int) {
			defer wg.Done()

			localHits := 0
			for i := start; i < end; i++ {
				_, ok, err := geo.HitTest(layers, queries[i], benchZoom)
				if err != nil {
					log.Error().Err(err).Int("worker", workerID).Msg("hit test error")
					continue
				}
				if ok {
					localHits++
				}
				queryCount.Add(1)
			}
			hits.Add(int64(localHits))
		}(w, startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)

	completed := queryCount.Load()
	if completed == 0 {
		return fmt.Errorf("no hit tests completed")
	}
	fmt.Fprintf(out, "\nBenchmark Results:\n")
	fmt.Fprintf(out, "Total hit tests: %d\n", completed)
	fmt.Fprintf(out, "Total time: %v\n", elapsed)
	fmt.Fprintf(out, "Hit tests per second: %.0f\n", float64(completed)/elapsed.Seconds())
	fmt.Fprintf(out, "Average hit test time: %v\n", elapsed/time.Duration(completed))
	fmt.Fprintf(out, "Hits: %d (%.1f%%)\n", hits.Load(), 100*float64(hits.Load())/float64(completed))
	return nil
}
