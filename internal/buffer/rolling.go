// Package buffer holds the fixed-capacity rolling sequences that back
// dashboard tables and chart series.
package buffer

// Order is the order in which Snapshot returns a buffer's contents.
type Order int

const (
	// OldestFirst is the chart series convention (push + shift).
	OldestFirst Order = iota
	// NewestFirst is the table convention (prepend + trim).
	NewestFirst
)

func (o Order) String() string {
	switch o {
	case OldestFirst:
		return "oldest_first"
	case NewestFirst:
		return "newest_first"
	default:
		return "unknown"
	}
}

// Rolling is a bounded ordered history. Appending past capacity evicts
// the oldest entry. It is not safe for concurrent use.
type Rolling[T any] struct {
	items    []T
	capacity int
	order    Order
}

// New creates an empty buffer. It panics if capacity < 1.
func New[T any](capacity int, order Order) *Rolling[T] {
	if capacity < 1 {
		panic("buffer: capacity must be at least 1")
	}

	return &Rolling[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		order:    order,
	}
}

// NewTable creates a newest-first buffer for table rows.
func NewTable[T any](capacity int) *Rolling[T] {
	return New[T](capacity, NewestFirst)
}

// NewSeries creates an oldest-first buffer for chart series.
func NewSeries[T any](capacity int) *Rolling[T] {
	return New[T](capacity, OldestFirst)
}

// Append adds v as the newest entry.
func (b *Rolling[T]) Append(v T) {
	if len(b.items) == b.capacity {
		copy(b.items, b.items[1:])
		b.items[len(b.items)-1] = v
		return
	}

	b.items = append(b.items, v)
}

// Clear empties the buffer. Capacity is unchanged.
func (b *Rolling[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.items = b.items[:0]
}

func (b *Rolling[T]) Len() int {
	return len(b.items)
}

func (b *Rolling[T]) Cap() int {
	return b.capacity
}

func (b *Rolling[T]) Order() Order {
	return b.order
}

// Latest returns the most recently appended value.
func (b *Rolling[T]) Latest() (T, bool) {
	if len(b.items) == 0 {
		var zero T
		return zero, false
	}

	return b.items[len(b.items)-1], true
}

// Snapshot returns a copy of the contents in the buffer's order.
func (b *Rolling[T]) Snapshot() []T {
	out := make([]T, len(b.items))
	if b.order == NewestFirst {
		for i, v := range b.items {
			out[len(b.items)-1-i] = v
		}
		return out
	}

	copy(out, b.items)

	return out
}
