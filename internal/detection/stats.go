package detection

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AreaStats summarises blob areas.
type AreaStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// SummarizeAreas returns count, min, max, mean and sample standard deviation
// of the blob areas. StdDev is 0 for fewer than two blobs; all fields are 0
// for none.
func SummarizeAreas(blobs []Blob) AreaStats {
	if len(blobs) == 0 {
		return AreaStats{}
	}

	areas := make([]float64, len(blobs))
	for i, b := range blobs {
		areas[i] = float64(b.Area)
	}

	s := AreaStats{
		Count: len(areas),
		Min:   floats.Min(areas),
		Max:   floats.Max(areas),
	}
	if len(areas) < 2 {
		s.Mean = areas[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(areas, nil)
	return s
}
