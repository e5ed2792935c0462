package history

import (
	"testing"
	"time"

	"github.com/petems/miclevel/internal/meter"
)

func push(r *Ring, levels ...float32) {
	for _, l := range levels {
		r.Push(meter.Sample{Time: time.Now(), Level: l})
	}
}

func TestRingKeepsMostRecent(t *testing.T) {
	r := NewRing(3)
	push(r, 1, 2, 3, 4, 5)

	got := r.Samples()
	if len(got) != 3 {
		t.Fatalf("expected 3 retained samples, got %d", len(got))
	}
	for i, want := range []float32{3, 4, 5} {
		if got[i].Level != want {
			t.Fatalf("sample %d: expected level %f, got %f", i, want, got[i].Level)
		}
	}
}

func TestRingPartialFill(t *testing.T) {
	r := NewRing(5)

	if _, ok := r.Last(); ok {
		t.Fatal("expected no last sample on an empty ring")
	}
	if _, ok := r.Peak(); ok {
		t.Fatal("expected no peak on an empty ring")
	}

	push(r, -20, -10)

	if r.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", r.Len())
	}
	last, ok := r.Last()
	if !ok || last.Level != -10 {
		t.Fatalf("expected last level -10, got %v %v", last.Level, ok)
	}
}

func TestRingPeak(t *testing.T) {
	r := NewRing(4)
	push(r, -30, -5, -40, -12)

	peak, ok := r.Peak()
	if !ok || peak != -5 {
		t.Fatalf("expected peak -5, got %f", peak)
	}

	// Push until the -5 peak ages out of the window.
	push(r, -50, -60)
	peak, ok = r.Peak()
	if !ok || peak != -12 {
		t.Fatalf("expected peak -12 after eviction, got %f", peak)
	}
}

func TestRingZeroCapacity(t *testing.T) {
	r := NewRing(0)
	push(r, -3)

	last, ok := r.Last()
	if !ok || last.Level != -3 {
		t.Fatal("expected a minimum capacity of one sample")
	}
}
