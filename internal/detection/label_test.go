package detection

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/object-counter/internal/imaging"
)

// maskFromRows builds a mask where '#' is foreground.
func maskFromRows(t *testing.T, rows ...string) *imaging.Mask {
	t.Helper()
	m, err := imaging.NewMask(len(rows[0]), len(rows))
	require.NoError(t, err)
	for y, row := range rows {
		require.Len(t, row, m.Width, "row %d", y)
		for x, ch := range row {
			m.Set(x, y, ch == '#')
		}
	}
	return m
}

func randomMask(t *testing.T, rng *rand.Rand, w, h int, density float64) *imaging.Mask {
	t.Helper()
	m, err := imaging.NewMask(w, h)
	require.NoError(t, err)
	for i := range m.Bits {
		m.Bits[i] = rng.Float64() < density
	}
	return m
}

// referenceLabel labels with union-find, independently of the flood fill,
// and orders components by their first pixel in raster order.
func referenceLabel(m *imaging.Mask) []Blob {
	parent := make([]int, len(m.Bits))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	w := m.Width
	for i, fg := range m.Bits {
		if !fg {
			continue
		}
		if x := i % w; x > 0 && m.Bits[i-1] {
			union(i-1, i)
		}
		if i >= w && m.Bits[i-w] {
			union(i-w, i)
		}
	}

	index := make(map[int]int)
	var blobs []Blob
	for i, fg := range m.Bits {
		if !fg {
			continue
		}
		x, y := i%w, i/w
		r := find(i)
		k, ok := index[r]
		if !ok {
			k = len(blobs)
			index[r] = k
			blobs = append(blobs, Blob{MinX: x, MaxX: x, MinY: y, MaxY: y})
		}
		b := &blobs[k]
		b.Area++
		b.MinX = min(b.MinX, x)
		b.MaxX = max(b.MaxX, x)
		b.MinY = min(b.MinY, y)
		b.MaxY = max(b.MaxY, y)
	}
	return blobs
}

func TestLabel_SingleSquare(t *testing.T) {
	m := maskFromRows(t,
		".....",
		".###.",
		".###.",
		".###.",
		".....",
	)

	blobs, err := Label(m)
	require.NoError(t, err)
	assert.Equal(t, []Blob{{Area: 9, MinX: 1, MaxX: 3, MinY: 1, MaxY: 3}}, blobs)
}

func TestLabel_Empty(t *testing.T) {
	m := maskFromRows(t, "...", "...")

	blobs, err := Label(m)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestLabel_DiagonalIsolation(t *testing.T) {
	m := maskFromRows(t,
		"###...",
		"###...",
		"###...",
		"...###",
		"...###",
		"...###",
	)

	blobs, err := Label(m)
	require.NoError(t, err)
	require.Len(t, blobs, 2, "corner contact must not connect")
	assert.Equal(t, Blob{Area: 9, MinX: 0, MaxX: 2, MinY: 0, MaxY: 2}, blobs[0])
	assert.Equal(t, Blob{Area: 9, MinX: 3, MaxX: 5, MinY: 3, MaxY: 5}, blobs[1])
}

func TestLabel_Checkerboard(t *testing.T) {
	m := maskFromRows(t,
		"#.#.",
		".#.#",
		"#.#.",
	)

	blobs, err := Label(m)
	require.NoError(t, err)
	assert.Len(t, blobs, 6)
	for _, b := range blobs {
		assert.Equal(t, 1, b.Area)
	}
}

func TestLabel_DiscoveryOrder(t *testing.T) {
	// The U is discovered first at (0,0) even though its right arm starts
	// after the dot's column.
	m := maskFromRows(t,
		"#...#",
		"#.#.#",
		"#...#",
		"#####",
	)

	blobs, err := Label(m)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, Blob{Area: 11, MinX: 0, MaxX: 4, MinY: 0, MaxY: 3}, blobs[0])
	assert.Equal(t, Blob{Area: 1, MinX: 2, MaxX: 2, MinY: 1, MaxY: 1}, blobs[1])
}

func TestLabel_FullFrame(t *testing.T) {
	m, err := imaging.NewMask(300, 200)
	require.NoError(t, err)
	for i := range m.Bits {
		m.Bits[i] = true
	}

	blobs, err := Label(m)
	require.NoError(t, err)
	assert.Equal(t, []Blob{{Area: 60000, MinX: 0, MaxX: 299, MinY: 0, MaxY: 199}}, blobs)
}

func TestLabel_Serpentine(t *testing.T) {
	// One long path that forces the deepest possible traversal.
	m := maskFromRows(t,
		"#########",
		"........#",
		"#########",
		"#........",
		"#########",
	)

	blobs, err := Label(m)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, m.Count(), blobs[0].Area)
}

func TestLabel_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		m := randomMask(t, rng, 1+rng.Intn(60), 1+rng.Intn(60), rng.Float64())

		got, err := Label(m)
		require.NoError(t, err)

		want := referenceLabel(m)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("trial %d (%dx%d) mismatch (-want +got):\n%s", trial, m.Width, m.Height, diff)
		}
	}
}

func TestLabel_AreaConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m := randomMask(t, rng, 80, 50, 0.45)

	blobs, err := Label(m)
	require.NoError(t, err)

	total := 0
	for _, b := range blobs {
		total += b.Area
	}
	assert.Equal(t, m.Count(), total)
}

func TestLabel_TightBoundingBox(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := randomMask(t, rng, 40, 40, 0.5)

	blobs, err := Label(m)
	require.NoError(t, err)

	for i, b := range blobs {
		assert.LessOrEqual(t, b.MinX, b.MaxX)
		assert.LessOrEqual(t, b.MinY, b.MaxY)
		assert.GreaterOrEqual(t, b.Area, 1)
		assert.LessOrEqual(t, b.Area, b.Width()*b.Height())

		// Every edge of the box has a foreground pixel on it.
		assert.True(t, edgeHasForeground(m, b.MinX, b.MinX, b.MinY, b.MaxY), "blob %d left edge", i)
		assert.True(t, edgeHasForeground(m, b.MaxX, b.MaxX, b.MinY, b.MaxY), "blob %d right edge", i)
		assert.True(t, edgeHasForeground(m, b.MinX, b.MaxX, b.MinY, b.MinY), "blob %d top edge", i)
		assert.True(t, edgeHasForeground(m, b.MinX, b.MaxX, b.MaxY, b.MaxY), "blob %d bottom edge", i)
	}
}

func edgeHasForeground(m *imaging.Mask, x0, x1, y0, y1 int) bool {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if m.At(x, y) {
				return true
			}
		}
	}
	return false
}

func TestLabel_Errors(t *testing.T) {
	_, err := Label(nil)
	assert.ErrorIs(t, err, ErrInvalidFrameShape)

	_, err = Label(&imaging.Mask{Width: 3, Height: 3, Bits: make([]bool, 8)})
	assert.ErrorIs(t, err, ErrInvalidFrameShape)

	_, err = Label(&imaging.Mask{Width: 8192, Height: 8192})
	assert.ErrorIs(t, err, ErrAllocationFailure)
}
