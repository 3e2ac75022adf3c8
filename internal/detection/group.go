package detection

import "math"

const (
	// GroupWindow is how many following ungrouped blobs a seed examines.
	GroupWindow = 32

	// MaxGroupSize caps the members of one group, seed included.
	MaxGroupSize = 16
)

// BlobGroup is a set of similar blobs. Seed and Members are indexes into
// the slice passed to Groups; Members starts with Seed and is ascending.
type BlobGroup struct {
	Seed    int   `json:"seed"`
	Members []int `json:"members"`
}

// Size returns the number of members.
func (g BlobGroup) Size() int { return len(g.Members) }

// Counted reports whether the group contributes to a smart-mode count.
func (g BlobGroup) Counted() bool { return len(g.Members) >= 2 }

// Groups clusters blobs greedily in discovery order.
//
// Each ungrouped blob i seeds a group and examines up to GroupWindow of the
// following ungrouped blobs. Blob j joins when
//
//	|Ai - Aj| < Ai*areaTolerance  and  |aspect_i - aspect_j| < aspectTolerance
//
// Both comparisons are strict, so a zero tolerance never matches. A group
// stops absorbing at MaxGroupSize members. Every blob ends up in exactly one
// group; unmatched blobs form singleton groups.
func Groups(blobs []Blob, areaTolerance, aspectTolerance float64) []BlobGroup {
	grouped := make([]bool, len(blobs))
	var groups []BlobGroup

	for i := range blobs {
		if grouped[i] {
			continue
		}
		grouped[i] = true

		g := BlobGroup{Seed: i, Members: []int{i}}
		ai := float64(blobs[i].Area)
		ri := blobs[i].AspectRatio()

		examined := 0
		for j := i + 1; j < len(blobs) && examined < GroupWindow && len(g.Members) < MaxGroupSize; j++ {
			if grouped[j] {
				continue
			}
			examined++

			aj := float64(blobs[j].Area)
			rj := blobs[j].AspectRatio()
			if math.Abs(ai-aj) < ai*areaTolerance && math.Abs(ri-rj) < aspectTolerance {
				grouped[j] = true
				g.Members = append(g.Members, j)
			}
		}

		groups = append(groups, g)
	}

	return groups
}

// Group returns the smart-mode count: the total size of every group with at
// least two members.
//
// Singletons contribute 0. A blob with no similar neighbour is treated as
// noise, so a frame holding one isolated object counts 0 in smart mode.
func Group(blobs []Blob, areaTolerance, aspectTolerance float64) int {
	count := 0
	for _, g := range Groups(blobs, areaTolerance, aspectTolerance) {
		if g.Counted() {
			count += g.Size()
		}
	}
	return count
}
