package ioport

import "testing"

func TestRingFIFOOrder(t *testing.T) {
	var r Ring
	for i := uint64(0); i < 10; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) unexpectedly dropped", i)
		}
	}
	for i := uint64(0); i < 10; i++ {
		got, ok := r.Get()
		if !ok || got != i {
			t.Fatalf("Get() = (%d, %v), want (%d, true)", got, ok, i)
		}
	}
}

func TestRingEmptyGet(t *testing.T) {
	var r Ring
	if _, ok := r.Get(); ok {
		t.Fatal("Get() on an empty ring should report false")
	}
}

// TestRingFullDropsNewWrite pins spec.md 9's corrected full-ring behavior:
// the ring is full when rear+1==front, and the new write is dropped silently
// rather than overwriting the oldest unread entry.
func TestRingFullDropsNewWrite(t *testing.T) {
	var r Ring
	for i := uint64(0); i < RingCapacity-1; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) should succeed while under capacity", i)
		}
	}
	if !r.full() {
		t.Fatal("ring should be full after capacity-1 pushes")
	}
	if r.Push(0xFFFF) {
		t.Fatal("Push on a full ring should be dropped (return false)")
	}

	got, ok := r.Get()
	if !ok || got != 0 {
		t.Fatalf("oldest entry should be preserved: got (%d, %v), want (0, true)", got, ok)
	}
}

func TestRingCapacityBoundedProgress(t *testing.T) {
	var r Ring
	// Push 100 entries (well under RingCapacity), drain half, push more: FIFO order must hold
	// for every entry that was never overwritten/dropped (invariant 5).
	for i := uint64(0); i < 100; i++ {
		r.Push(i)
	}
	for i := uint64(0); i < 50; i++ {
		got, ok := r.Get()
		if !ok || got != i {
			t.Fatalf("Get() = (%d,%v), want (%d,true)", got, ok, i)
		}
	}
	for i := uint64(100); i < 150; i++ {
		r.Push(i)
	}
	for i := uint64(50); i < 150; i++ {
		got, ok := r.Get()
		if !ok || got != i {
			t.Fatalf("Get() = (%d,%v), want (%d,true)", got, ok, i)
		}
	}
}
