// ABOUTME: Ordered marker index with resumable next-marker lookup
// ABOUTME: Stores unique millisecond timestamps and notifies on insertion
package marker

import (
	"iter"
	"slices"
	"sync"
)

// Index is an ordered set of marker times in milliseconds.
// It is safe for concurrent use.
type Index struct {
	mu      sync.Mutex
	markers []uint32
	cursor  int // resume position for NextAtOrAfter, -1 when unset

	listeners []func(timeMs uint32)
}

// New creates an empty index
func New() *Index {
	return &Index{cursor: -1}
}

// OnAdded registers fn to be called with the time of every newly inserted
// marker. Callbacks run on the inserting goroutine after the index is
// unlocked, so they may query the index.
func (x *Index) OnAdded(fn func(timeMs uint32)) {
	if fn == nil {
		return
	}
	x.mu.Lock()
	x.listeners = append(x.listeners, fn)
	x.mu.Unlock()
}

// Insert adds a marker at timeMs. It reports false, and notifies nobody,
// when a marker already exists at that time.
func (x *Index) Insert(timeMs uint32) bool {
	x.mu.Lock()
	pos, found := slices.BinarySearch(x.markers, timeMs)
	if found {
		x.mu.Unlock()
		return false
	}
	x.markers = slices.Insert(x.markers, pos, timeMs)
	if x.cursor >= 0 && pos <= x.cursor {
		x.cursor++
	}
	listeners := x.listeners
	x.mu.Unlock()

	for _, fn := range listeners {
		fn(timeMs)
	}
	return true
}

// NextAtOrAfter returns the smallest marker >= timeMs.
// Negative times return the first marker.
func (x *Index) NextAtOrAfter(timeMs int64) (uint32, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.markers) == 0 {
		return 0, false
	}

	i := -1
	if x.cursor >= 0 {
		i = x.scan(x.cursor, timeMs)
	}
	if i < 0 {
		i = x.scan(0, timeMs)
	}
	if i < 0 {
		x.cursor = -1
		return 0, false
	}

	x.cursor = i + 1
	return x.markers[i], true
}

// scan walks forward from start looking for the first marker whose
// predecessor lies before timeMs and which itself is at or after it.
// It gives up as soon as it passes a marker >= timeMs, which means the
// answer lies behind start.
func (x *Index) scan(start int, timeMs int64) int {
	for i := start; i < len(x.markers); i++ {
		if i > 0 && int64(x.markers[i-1]) >= timeMs {
			return -1
		}
		if timeMs <= int64(x.markers[i]) {
			return i
		}
	}
	return -1
}

// All yields the markers in ascending order. It iterates over a snapshot
// and does not disturb the lookup cursor.
func (x *Index) All() iter.Seq[uint32] {
	snapshot := x.Markers()
	return func(yield func(uint32) bool) {
		for _, m := range snapshot {
			if !yield(m) {
				return
			}
		}
	}
}

// Markers returns a copy of the markers in ascending order
func (x *Index) Markers() []uint32 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.markers)
}

// Last returns the greatest marker
func (x *Index) Last() (uint32, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.markers) == 0 {
		return 0, false
	}
	return x.markers[len(x.markers)-1], true
}

// Len returns the number of markers
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.markers)
}
