package rtree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

func indexes(entries []Entry[coords.Tile]) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Index
	}
	sort.Ints(out)
	return out
}

func TestSearch(t *testing.T) {
	tree := New[coords.Tile]()
	err := tree.Load([]Entry[coords.Tile]{
		{Box: bbox.New[coords.Tile](0, 0, 10, 10), Index: 0},
		{Box: bbox.New[coords.Tile](20, 20, 30, 30), Index: 1},
		{Box: bbox.New[coords.Tile](5, 5, 25, 25), Index: 2},
		{Box: bbox.New[coords.Tile](40, 40, 40, 40), Index: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())

	testCases := []struct {
		name     string
		query    bbox.Box[coords.Tile]
		expected []int
	}{
		{"first only", bbox.New[coords.Tile](1, 1, 2, 2), []int{0}},
		{"overlap two", bbox.New[coords.Tile](8, 8, 9, 9), []int{0, 2}},
		{"touching edge", bbox.New[coords.Tile](30, 30, 35, 35), []int{1}},
		{"point entry", bbox.New[coords.Tile](40, 40, 40, 40), []int{3}},
		{"nothing", bbox.New[coords.Tile](100, 100, 110, 110), []int{}},
		{"everything", bbox.New[coords.Tile](-1, -1, 50, 50), []int{0, 1, 2, 3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, indexes(tree.Search(tc.query)))
		})
	}
}

func TestSearchNearTouchIsExact(t *testing.T) {
	tree := New[coords.Tile]()
	require.NoError(t, tree.Load([]Entry[coords.Tile]{
		{Box: bbox.New[coords.Tile](0, 0, 1, 1), Index: 0},
	}))
	// inside the padding but outside the exact bounds
	assert.Empty(t, tree.Search(bbox.New[coords.Tile](1+1e-12, 0, 2, 1)))
	assert.Len(t, tree.Search(bbox.New[coords.Tile](1, 0, 2, 1)), 1)
}

func TestSearchLargeCoordinates(t *testing.T) {
	tree := New[coords.Meters]()
	edge := 20037508.342789244
	require.NoError(t, tree.Load([]Entry[coords.Meters]{
		{Box: bbox.New[coords.Meters](edge-100, 0, edge, 100), Index: 7},
	}))
	got := tree.Search(bbox.New[coords.Meters](edge, 100, edge+10, 200))
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Index)
}

func TestClear(t *testing.T) {
	tree := New[coords.Tile]()
	require.NoError(t, tree.Load([]Entry[coords.Tile]{{Box: bbox.New[coords.Tile](0, 0, 1, 1)}}))
	tree.Clear()
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Search(bbox.New[coords.Tile](0, 0, 1, 1)))
}

func TestLoadAppends(t *testing.T) {
	tree := New[coords.Tile]()
	require.NoError(t, tree.Load([]Entry[coords.Tile]{{Box: bbox.New[coords.Tile](0, 0, 1, 1), Index: 0}}))
	require.NoError(t, tree.Load([]Entry[coords.Tile]{{Box: bbox.New[coords.Tile](0, 0, 1, 1), Index: 1}}))
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, []int{0, 1}, indexes(tree.Search(bbox.New[coords.Tile](0, 0, 1, 1))))
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	tree := New[coords.Tile]()
	err := tree.Load([]Entry[coords.Tile]{
		{Box: bbox.New[coords.Tile](0, 0, 1, 1), Index: 0},
		{Box: bbox.Box[coords.Tile]{MinX: math.NaN(), MaxX: 1, MaxY: 1}, Index: 1},
	})
	require.Error(t, err)
	assert.Equal(t, 0, tree.Len(), "nothing is loaded when one entry is invalid")
}

func TestSearchMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	entries := generateRandomEntries(r, 5000)

	tree := New[coords.Tile]()
	require.NoError(t, tree.Load(entries))

	for i := 0; i < 50; i++ {
		query := randomBox(r, 20)
		var expected []int
		for _, e := range entries {
			if e.Box.Overlaps(query) {
				expected = append(expected, e.Index)
			}
		}
		if expected == nil {
			expected = []int{}
		}
		assert.Equal(t, expected, indexes(tree.Search(query)), "query %s", query)
	}
}

func TestConcurrentSearch(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tree := New[coords.Tile]()
	require.NoError(t, tree.Load(generateRandomEntries(r, 10000)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			qr := rand.New(rand.NewSource(seed))
			query := randomBox(qr, 10)
			for _, e := range tree.Search(query) {
				assert.True(t, e.Box.Overlaps(query))
			}
		}(int64(i))
	}
	wg.Wait()
}

func randomBox(r *rand.Rand, maxSize float64) bbox.Box[coords.Tile] {
	x, y := r.Float64()*256, r.Float64()*256
	return bbox.New[coords.Tile](x, y, x+r.Float64()*maxSize, y+r.Float64()*maxSize)
}

// Helper function to generate random entries
func generateRandomEntries(r *rand.Rand, n int) []Entry[coords.Tile] {
	entries := make([]Entry[coords.Tile], n)
	for i := range entries {
		entries[i] = Entry[coords.Tile]{Box: randomBox(r, 2), Index: i}
	}
	return entries
}

// Benchmarks
func BenchmarkLoad(b *testing.B) {
	for _, size := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("%d_entries", size), func(b *testing.B) {
			entries := generateRandomEntries(rand.New(rand.NewSource(1)), size)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = New[coords.Tile]().Load(entries)
			}
		})
	}
}

func BenchmarkSearch(b *testing.B) {
	tree := New[coords.Tile]()
	_ = tree.Load(generateRandomEntries(rand.New(rand.NewSource(1)), 100000))
	query := bbox.New[coords.Tile](100, 100, 101, 101)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tree.Search(query)
	}
}
