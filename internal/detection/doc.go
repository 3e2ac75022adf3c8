// Package detection counts objects in a thresholded camera frame.
//
// The pipeline is:
//
//  1. imaging.Threshold turns a Frame into a binary Mask.
//  2. Label partitions the Mask into 4-connected Blobs.
//  3. FilterByArea drops blobs outside [MinArea, MaxArea].
//  4. In smart mode, Groups clusters similar blobs and only groups of two or
//     more are counted.
//
// CountObjects runs all four steps with an explicit Config. Every call is
// synchronous and self-contained: scratch buffers live for one call, no
// state is shared between calls and the caller's frame is never modified.
//
// # Connectivity
//
// Pixels connect through shared edges only. Two squares touching at a
// corner are two blobs.
//
// # Bounded Work
//
// Label uses an explicit index stack sized to the frame rather than
// recursion, so worst-case memory is fixed by width*height and never by the
// shape of the foreground. Groups examines a fixed window of candidates per
// seed, keeping smart mode linear in the number of blobs.
//
// # Smart Mode
//
// Smart mode is a noise filter, not a deduplicator. Every member of a
// counted group is still counted; a blob with no similar neighbour counts
// zero.
package detection
