package leadscore

// ring is a fixed-capacity FIFO buffer. Pushing beyond capacity evicts the
// oldest element. The zero value is not usable; use newRing.
//
// ring is not thread-safe; the owner provides locking.
type ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v, evicting the oldest element when full.
func (r *ring[T]) push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// len returns the number of stored elements.
func (r *ring[T]) len() int {
	return r.n
}

// at returns the element at logical index i, oldest first. Panics on an
// out-of-range index, same as a slice.
func (r *ring[T]) at(i int) T {
	if i < 0 || i >= r.n {
		panic("ring: index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// items returns a copy of the contents, oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.at(i)
	}
	return out
}
