// Package ringbuf provides a fixed-capacity FIFO buffer that evicts the
// oldest entry on overflow.
package ringbuf

// Ring is a generic circular buffer. It is not safe for concurrent use;
// callers hold their own lock.
type Ring[T any] struct {
	entries  []T
	head     int // index of the oldest entry once the ring is full
	capacity int
	evicted  int64
}

// New creates a ring with the given capacity. Capacity below 1 is treated as 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an item, dropping the oldest entry when full.
// It reports whether an entry was evicted.
func (r *Ring[T]) Push(item T) bool {
	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, item)
		return false
	}
	r.entries[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.evicted++
	return true
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int { return len(r.entries) }

// Cap returns the configured capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Evicted returns how many entries have been dropped since the last Clear.
func (r *Ring[T]) Evicted() int64 { return r.evicted }

// Clear removes all entries.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.entries {
		r.entries[i] = zero
	}
	r.entries = r.entries[:0]
	r.head = 0
	r.evicted = 0
}

// Items returns a copy of the entries, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, len(r.entries))
	r.Each(func(v *T) bool {
		out = append(out, *v)
		return true
	})
	return out
}

// Each visits entries oldest first until fn returns false. The pointer is
// valid only for the duration of the call and may be used to patch the
// entry in place.
func (r *Ring[T]) Each(fn func(v *T) bool) {
	n := len(r.entries)
	for i := 0; i < n; i++ {
		if !fn(&r.entries[(r.head+i)%n]) {
			return
		}
	}
}

// Reverse visits entries newest first until fn returns false.
func (r *Ring[T]) Reverse(fn func(v *T) bool) {
	n := len(r.entries)
	for i := n - 1; i >= 0; i-- {
		if !fn(&r.entries[(r.head+i)%n]) {
			return
		}
	}
}

// Last returns the newest entry.
func (r *Ring[T]) Last() (T, bool) {
	n := len(r.entries)
	if n == 0 {
		var zero T
		return zero, false
	}
	return r.entries[(r.head+n-1)%n], true
}
