/*
   vcore - I/O port ring buffers.

   Copyright (c) 2026, RWS Vrisc Project

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.
*/

package ioport

// RingCapacity is the fixed ring size, spec.md 3: 4096 64-bit words.
const RingCapacity = 4096

// Ring is a single-producer/single-consumer circular queue of 64-bit words.
// It contains only fixed-size scalar fields so that it remains valid when
// embedded directly in a shared memory region (no pointers, no slices).
//
// original_source's IOPortBuffer push functions have no full check at all
// (front==rear only means "empty", so a full ring silently loses a slot by
// overwriting the oldest entry). spec.md 9 prescribes detecting rear+1==front
// as full and dropping the new write instead - that corrected behavior is
// what Push implements.
type Ring struct {
	Front uint32
	Rear  uint32
	Buf   [RingCapacity]uint64
}

func (r *Ring) full() bool {
	return (r.Rear+1)%RingCapacity == r.Front
}

func (r *Ring) empty() bool {
	return r.Front == r.Rear
}

// Push enqueues v, returning false (and dropping v) if the ring is full.
func (r *Ring) Push(v uint64) bool {
	if r.full() {
		return false
	}
	r.Buf[r.Rear] = v
	r.Rear = (r.Rear + 1) % RingCapacity
	return true
}

// Get dequeues the oldest value, returning (0, false) if the ring is empty.
func (r *Ring) Get() (uint64, bool) {
	if r.empty() {
		return 0, false
	}
	v := r.Buf[r.Front]
	r.Front = (r.Front + 1) % RingCapacity
	return v, true
}

// PortBuffer is the per-port shared structure: two independent rings, one
// per direction (spec.md 3).
type PortBuffer struct {
	In  Ring // device -> core
	Out Ring // core -> device
}
