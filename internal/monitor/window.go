package monitor

// Window is a bounded FIFO: pushing past capacity evicts the oldest entries. Not safe for
// concurrent use; Session guards its windows with its own lock.
type Window[T any] struct {
	items    []T
	capacity int
}

// NewWindow creates a window holding at most capacity items (minimum 1).
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{items: make([]T, 0, capacity), capacity: capacity}
}

// Push appends v, dropping the oldest entry when full.
func (w *Window[T]) Push(v T) {
	if len(w.items) == w.capacity {
		copy(w.items, w.items[1:])
		w.items[len(w.items)-1] = v
		return
	}
	w.items = append(w.items, v)
}

// Len returns the number of retained items.
func (w *Window[T]) Len() int { return len(w.items) }

// Items returns a copy of the retained items, oldest first.
func (w *Window[T]) Items() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}

// Last returns a copy of the newest n items, oldest first.
func (w *Window[T]) Last(n int) []T {
	if n > len(w.items) {
		n = len(w.items)
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	copy(out, w.items[len(w.items)-n:])
	return out
}
