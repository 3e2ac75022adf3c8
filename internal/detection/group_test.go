package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareBlob returns a blob of the given area with a 10x10 box.
func squareBlob(area, x int) Blob {
	return Blob{Area: area, MinX: x, MaxX: x + 9, MinY: 0, MaxY: 9}
}

func TestBlob_AspectRatio(t *testing.T) {
	tests := []struct {
		name string
		blob Blob
		want float64
	}{
		{"square", Blob{MinX: 0, MaxX: 9, MinY: 0, MaxY: 9}, 1},
		{"wide", Blob{MinX: 0, MaxX: 8, MinY: 0, MaxY: 4}, 2},
		{"single row clamps", Blob{MinX: 2, MaxX: 7, MinY: 3, MaxY: 3}, 5},
		{"single pixel", Blob{MinX: 4, MaxX: 4, MinY: 4, MaxY: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.blob.AspectRatio(), 1e-9)
		})
	}
}

func TestGroup_SimilarBlobsAndNoise(t *testing.T) {
	blobs := []Blob{
		squareBlob(95, 0),
		squareBlob(100, 20),
		{Area: 3, MinX: 40, MaxX: 42, MinY: 0, MaxY: 0},
		squareBlob(105, 60),
		squareBlob(98, 80),
		squareBlob(102, 100),
	}

	assert.Equal(t, 5, Group(blobs, 0.2, 0.2))

	groups := Groups(blobs, 0.2, 0.2)
	require.Len(t, groups, 2)
	assert.Equal(t, BlobGroup{Seed: 0, Members: []int{0, 1, 3, 4, 5}}, groups[0])
	assert.Equal(t, BlobGroup{Seed: 2, Members: []int{2}}, groups[1])
	assert.False(t, groups[1].Counted())
}

func TestGroup_SingletonCountsZero(t *testing.T) {
	assert.Equal(t, 0, Group([]Blob{squareBlob(100, 0)}, 0.5, 0.5))
	assert.Equal(t, 0, Group(nil, 0.5, 0.5))
}

func TestGroup_ToleranceIsStrict(t *testing.T) {
	blobs := []Blob{squareBlob(100, 0), squareBlob(110, 20)}

	// |100-110| = 10 is not < 100*0.1.
	assert.Equal(t, 0, Group(blobs, 0.1, 1))
	assert.Equal(t, 2, Group(blobs, 0.11, 1))

	// Zero tolerance never matches, even for identical blobs.
	same := []Blob{squareBlob(100, 0), squareBlob(100, 20)}
	assert.Equal(t, 0, Group(same, 0, 1))
	assert.Equal(t, 0, Group(same, 1, 0))
}

func TestGroup_AspectTolerance(t *testing.T) {
	square := Blob{Area: 100, MinX: 0, MaxX: 9, MinY: 0, MaxY: 9}
	bar := Blob{Area: 100, MinX: 20, MaxX: 59, MinY: 0, MaxY: 2}

	assert.Equal(t, 0, Group([]Blob{square, bar}, 0.5, 0.5))
}

func TestGroup_SeedAreaIsReference(t *testing.T) {
	// The tolerance scales with the seed's area: 100 admits 81 (19 < 20)
	// but 81 rejects 100 (19 >= 16.2).
	blobs := []Blob{squareBlob(100, 0), squareBlob(81, 20)}
	assert.Equal(t, 2, Group(blobs, 0.2, 1))

	reversed := []Blob{squareBlob(81, 0), squareBlob(100, 20)}
	assert.Equal(t, 0, Group(reversed, 0.2, 1))
}

func TestGroup_MaxGroupSize(t *testing.T) {
	blobs := make([]Blob, 20)
	for i := range blobs {
		blobs[i] = squareBlob(100, i*20)
	}

	groups := Groups(blobs, 0.1, 0.1)
	require.Len(t, groups, 2)
	assert.Equal(t, MaxGroupSize, groups[0].Size())
	assert.Equal(t, 4, groups[1].Size())
	assert.Equal(t, 20, Group(blobs, 0.1, 0.1))
}

func TestGroup_Window(t *testing.T) {
	// A seed only looks at GroupWindow ungrouped followers. Its twin sits
	// just past the window and is never compared.
	blobs := []Blob{squareBlob(1000, 0)}
	for i := 0; i < GroupWindow; i++ {
		blobs = append(blobs, squareBlob(10, 20+i*20))
	}
	blobs = append(blobs, squareBlob(1000, 2000))

	groups := Groups(blobs, 0.1, 0.1)
	assert.Equal(t, []int{0}, groups[0].Members)

	last := groups[len(groups)-1]
	assert.Equal(t, len(blobs)-1, last.Seed)
	assert.Equal(t, 1, last.Size())

	// The 32 small blobs split into two capped groups of 16.
	assert.Equal(t, GroupWindow, Group(blobs, 0.1, 0.1))
}

func TestGroup_WindowSkipsGroupedBlobs(t *testing.T) {
	// Blobs absorbed by an earlier group do not use up a later seed's window.
	var blobs []Blob
	for i := 0; i < 4; i++ {
		blobs = append(blobs, squareBlob(10, i*20), squareBlob(500, i*20+10))
	}

	groups := Groups(blobs, 0.1, 0.1)
	require.Len(t, groups, 2)
	assert.Equal(t, []int{0, 2, 4, 6}, groups[0].Members)
	assert.Equal(t, []int{1, 3, 5, 7}, groups[1].Members)
}

func TestGroup_Deterministic(t *testing.T) {
	blobs := []Blob{squareBlob(50, 0), squareBlob(52, 20), squareBlob(10, 40), squareBlob(11, 60)}
	assert.Equal(t, Groups(blobs, 0.2, 0.2), Groups(blobs, 0.2, 0.2))
}
