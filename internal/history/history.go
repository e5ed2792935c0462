// Package history keeps a bounded window of recent level samples for
// rendering. It sits outside the capture core: the session never
// retains samples itself.
package history

import (
	"sync"

	"github.com/petems/miclevel/internal/meter"
)

// Ring holds the most recent samples in arrival order, overwriting the
// oldest once full.
type Ring struct {
	mu    sync.Mutex
	buf   []meter.Sample
	head  int
	count int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]meter.Sample, capacity)}
}

func (r *Ring) Push(s meter.Sample) {
	r.mu.Lock()
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Samples returns a snapshot of the retained samples, oldest first.
func (r *Ring) Samples() []meter.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]meter.Sample, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Last returns the most recently pushed sample.
func (r *Ring) Last() (meter.Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return meter.Sample{}, false
	}
	idx := r.head - 1
	if idx < 0 {
		idx += len(r.buf)
	}
	return r.buf[idx], true
}

// Peak returns the highest level currently retained.
func (r *Ring) Peak() (float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return 0, false
	}

	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	peak := r.buf[start%len(r.buf)].Level
	for i := 1; i < r.count; i++ {
		if l := r.buf[(start+i)%len(r.buf)].Level; l > peak {
			peak = l
		}
	}
	return peak, true
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
