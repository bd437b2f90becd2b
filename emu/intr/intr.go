/*
   vcore - interrupt controller.

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

// Package intr implements the single-slot per-core interrupt controller of
// spec.md 4.3: at most one pending interrupt is latched at a time, and a
// later interrupt() intentionally overwrites an earlier, undelivered one.
package intr

// ID identifies an interrupt cause, spec.md 3.
type ID int

const (
	NI ID = iota
	InaccessibleAddress
	Device
	Clock
	InvalidInstruction
	WrongPrivilege
	InaccessibleIOPort
	PageOrTableUnreadable
	PageOrTableUnwritable
	DeviceCommunication
)

// Controller is the per-core interrupt latch.
type Controller struct {
	pending bool
	id      ID
}

// Interrupt latches (pending=true, id). A later call before delivery
// replaces the earlier one - documented behavior, not a bug (spec.md 4.3).
func (c *Controller) Interrupt(id ID) {
	c.pending = true
	c.id = id
}

// Interrupted returns the pending interrupt id and true, or (0, false) if
// none is pending.
func (c *Controller) Interrupted() (ID, bool) {
	if !c.pending {
		return NI, false
	}
	return c.id, true
}

// ResetPending clears the pending latch without changing the stored id.
func (c *Controller) ResetPending() {
	c.pending = false
}

// Reset clears the controller entirely.
func (c *Controller) Reset() {
	*c = Controller{}
}
