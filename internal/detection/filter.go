package detection

// FilterByArea keeps blobs with minArea <= Area <= maxArea.
//
// The input is not modified and order is preserved. Bounds are not
// validated here; Config.Validate rejects minArea > maxArea before counting.
func FilterByArea(blobs []Blob, minArea, maxArea int) []Blob {
	kept := make([]Blob, 0, len(blobs))
	for _, b := range blobs {
		if b.Area >= minArea && b.Area <= maxArea {
			kept = append(kept, b)
		}
	}
	return kept
}
