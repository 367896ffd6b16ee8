// Package txqueue implements the single-producer/single-consumer byte ring that
// hands scancodes from the scheduler task to the bus interrupt handler.
//
// The producer (task context) is the only writer of the head index and the
// consumer (interrupt context) is the only writer of the tail index. Both
// indices are atomics so neither side needs a lock.
package txqueue

import "sync/atomic"

// DefaultCapacity matches the console adapter's 64-entry buffer.
const DefaultCapacity = 64

// Ring is a fixed-capacity FIFO of bytes. The zero value is not usable; use New.
type Ring struct {
	buf  []byte
	head atomic.Uint32 // next slot to write, producer owned
	tail atomic.Uint32 // next slot to read, consumer owned
}

// New returns a ring that holds exactly capacity bytes. A capacity below 1
// falls back to DefaultCapacity.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	// one slot stays empty so head == tail always means empty
	return &Ring{buf: make([]byte, capacity+1)}
}

// Cap returns the number of bytes the ring can hold.
func (r *Ring) Cap() int { return len(r.buf) - 1 }

// Len returns the number of queued bytes. It is exact when called from either
// owner and a snapshot otherwise.
func (r *Ring) Len() int {
	h := r.head.Load()
	t := r.tail.Load()
	n := uint32(len(r.buf))
	return int((h + n - t) % n)
}

// Empty reports whether no bytes are queued.
func (r *Ring) Empty() bool {
	return r.head.Load() == r.tail.Load()
}

// Push appends b. It returns false and leaves the ring untouched when full.
// Only the producer may call Push.
func (r *Ring) Push(b byte) bool {
	h := r.head.Load()
	next := (h + 1) % uint32(len(r.buf))
	if next == r.tail.Load() {
		return false
	}
	r.buf[h] = b
	r.head.Store(next)
	return true
}

// Pop removes and returns the oldest byte. Only the consumer may call Pop.
func (r *Ring) Pop() (byte, bool) {
	t := r.tail.Load()
	if t == r.head.Load() {
		return 0, false
	}
	b := r.buf[t]
	r.tail.Store((t + 1) % uint32(len(r.buf)))
	return b, true
}

// Peek returns the queued bytes oldest first without consuming them. It is
// meant for diagnostics and tests on a quiescent ring.
func (r *Ring) Peek() []byte {
	h := r.head.Load()
	t := r.tail.Load()
	n := uint32(len(r.buf))
	out := make([]byte, 0, (h+n-t)%n)
	for i := t; i != h; i = (i + 1) % n {
		out = append(out, r.buf[i])
	}
	return out
}
