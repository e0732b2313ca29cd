// ABOUTME: Marker index package for timestamped navigation points
// ABOUTME: Documents the ordered index and its next-marker query
// Package marker holds the ordered set of millisecond timestamps a user
// places on a recording.
//
// The Index keeps markers strictly ascending with no duplicates and answers
// "next marker at or after T". Playback advances monotonically, so the index
// remembers where the last successful query ended and resumes scanning
// there; a backwards jump falls back to a scan from the start.
//
// Example:
//
//	idx := marker.New()
//	idx.Insert(1500)
//	idx.Insert(400)
//	next, ok := idx.NextAtOrAfter(1000) // 1500, true
package marker
