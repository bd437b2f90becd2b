/*
   vcore - coarse internal clock source.

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

// Package clock is the VM's coarse ~250Hz tick source (spec.md 4.9). Unlike
// the teacher's emu/timer, which pushes ticks across a master channel into an
// event queue, the core loop here polls Clock.Hit() once per iteration - the
// spec models a single synchronous hit() operation, not an asynchronous
// delta-queue scheduler (emu/event's queue is a poor fit for a single coarse
// periodic source and is not carried forward; see DESIGN.md).
package clock

import "time"

const DefaultCycle = 4 * time.Millisecond // ~250Hz

// Clock is a per-core monotonic tick source.
type Clock struct {
	cycle time.Duration
	last  time.Time
}

// New creates a Clock with the given tick period. A zero cycle uses
// DefaultCycle.
func New(cycle time.Duration) *Clock {
	if cycle <= 0 {
		cycle = DefaultCycle
	}
	return &Clock{cycle: cycle, last: time.Now()}
}

// Hit returns true when at least cycle has elapsed since the last true
// return, per spec.md 4.9. It uses the host's monotonic clock (time.Since
// reads the monotonic reading embedded in a time.Time taken via time.Now).
func (c *Clock) Hit() bool {
	now := time.Now()
	if now.Sub(c.last) >= c.cycle {
		c.last = now
		return true
	}
	return false
}
