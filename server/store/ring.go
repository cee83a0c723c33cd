package store

// Ring is a fixed-capacity FIFO buffer. Once full, Push overwrites the
// oldest element in place, so append+evict is O(1) with no reallocation.
type Ring[T any] struct {
	buf   []T
	head  int
	count int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Push(v T) {
	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = v
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
}

func (r *Ring[T]) Len() int {
	return r.count
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// At returns the i-th element in insertion order, oldest first.
func (r *Ring[T]) At(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.At(r.count - 1), true
}

// Items copies the buffer contents out in insertion order.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Tail copies out the most recent n elements in insertion order.
func (r *Ring[T]) Tail(n int) []T {
	if n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.count - n + i)
	}
	return out
}

func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}

// Filter drops elements for which keep returns false, preserving the
// relative order of the survivors.
func (r *Ring[T]) Filter(keep func(T) bool) {
	kept := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		if v := r.At(i); keep(v) {
			kept = append(kept, v)
		}
	}
	r.Clear()
	for _, v := range kept {
		r.Push(v)
	}
}
