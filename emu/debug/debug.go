/*
   vcore - debugger request/response mailbox protocol.

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

// Package debug implements the per-core debugger mailbox of spec.md 4.10: a
// single-slot VcoreCore{i}DebugApi region holding a VdbApi tagged union.
// Unlike a Rust enum, Go has no sum type with payload-carrying variants, so
// VdbApi is flattened into one comparable struct with a Tag selecting which
// fields are meaningful - the same flattening approach the original's debug
// mailbox uses at the wire level (a fixed-size region, not a boxed enum).
//
// original_source/src/debug.rs's VdbApi is missing several variants this
// implementation needs (WriteRegister, DebugMode, Instruction, Interrupt) -
// those were added in spec.md 4.10 and are implemented here; the earlier,
// smaller enum is not reproduced.
package debug

import (
	"fmt"
	"time"

	"github.com/rwsvrisc/vcore/emu/regs"
	"github.com/rwsvrisc/vcore/emu/shared"
)

// Tag selects which VdbApi variant a value represents.
type Tag int

const (
	TagNone Tag = iota
	TagInitialized
	TagNotRunning
	TagStartCore
	TagCoreStarted
	TagRegister
	TagWriteRegister
	TagDebugMode
	TagInstruction
	TagInterrupt
	TagContinue
	TagExit
	TagOk
)

// Mode selects step-mode gating (spec.md 4.10's DebugMode variant).
type Mode uint8

const (
	ModeNone Mode = iota
	ModeStep
)

// VdbApi is the flattened tagged union exchanged over the mailbox. It
// contains only scalar/array fields so it is valid to embed directly in a
// shared memory region.
type VdbApi struct {
	Tag        Tag
	HasPayload bool // distinguishes a request (Register(None)) from its response (Register(Some))
	Regs       regs.Registers
	RegSel     uint8
	RegVal     uint64
	DebugMode  Mode
	Instr      uint8
	IntID      uint8
}

func None() VdbApi                 { return VdbApi{Tag: TagNone} }
func Initialized() VdbApi          { return VdbApi{Tag: TagInitialized} }
func NotRunning() VdbApi           { return VdbApi{Tag: TagNotRunning} }
func StartCore() VdbApi            { return VdbApi{Tag: TagStartCore} }
func CoreStarted() VdbApi          { return VdbApi{Tag: TagCoreStarted} }
func RegisterRequest() VdbApi      { return VdbApi{Tag: TagRegister, HasPayload: false} }
func RegisterResponse(r regs.Registers) VdbApi {
	return VdbApi{Tag: TagRegister, HasPayload: true, Regs: r}
}
func WriteRegister(sel uint8, val uint64) VdbApi {
	return VdbApi{Tag: TagWriteRegister, RegSel: sel, RegVal: val}
}
func DebugModeRequest(m Mode) VdbApi { return VdbApi{Tag: TagDebugMode, DebugMode: m} }
func InstructionRequest() VdbApi     { return VdbApi{Tag: TagInstruction, HasPayload: false} }
func InstructionResponse(b uint8) VdbApi {
	return VdbApi{Tag: TagInstruction, HasPayload: true, Instr: b}
}
func Interrupt(id uint8) VdbApi { return VdbApi{Tag: TagInterrupt, IntID: id} }
func Continue() VdbApi          { return VdbApi{Tag: TagContinue} }
func Exit() VdbApi              { return VdbApi{Tag: TagExit} }
func Ok() VdbApi                { return VdbApi{Tag: TagOk} }

// IsRequest reports whether v is one of the frontend-originated request
// shapes the backend must act on (as opposed to a response sitting in the
// mailbox, awaiting the frontend to notice it).
func IsRequest(v VdbApi) bool {
	switch v.Tag {
	case TagStartCore, TagWriteRegister, TagDebugMode, TagInterrupt, TagContinue, TagExit:
		return true
	case TagRegister, TagInstruction:
		return !v.HasPayload
	default:
		return false
	}
}

const (
	pollSleep        = time.Millisecond
	pollMaxIterations = 1000 // ~1s cap, spec.md 5
)

func regionName(core int) string {
	return fmt.Sprintf("VcoreCore%dDebugApi", core)
}

// Mailbox is one core's debugger mailbox.
type Mailbox struct {
	region *shared.Region[VdbApi]
}

// New creates and owns a core's mailbox region, initialized to Initialized.
func New(core int) (*Mailbox, error) {
	r, err := shared.New[VdbApi](regionName(core), 1)
	if err != nil {
		return nil, err
	}
	r.Write(0, Initialized())
	return &Mailbox{region: r}, nil
}

// Bind maps an existing mailbox region.
func Bind(core int) (*Mailbox, error) {
	r, err := shared.Bind[VdbApi](regionName(core), 1)
	if err != nil {
		return nil, err
	}
	return &Mailbox{region: r}, nil
}

// Close releases the mailbox region.
func (m *Mailbox) Close() error {
	return m.region.Close()
}

// Request is the frontend call: it writes req, then polls until the mailbox
// holds something other than req, or the ~1s bound elapses - in which case
// the original request is returned to the caller, per spec.md 5/7.
func (m *Mailbox) Request(req VdbApi) (VdbApi, bool) {
	m.region.Write(0, req)
	for i := 0; i < pollMaxIterations; i++ {
		v := m.region.At(0)
		if v != req {
			return v, true
		}
		time.Sleep(pollSleep)
	}
	return req, false
}

// Peek is the backend call: it reads the mailbox without altering it.
func (m *Mailbox) Peek() VdbApi {
	return m.region.At(0)
}

// Respond is the backend call: it writes the response variant.
func (m *Mailbox) Respond(v VdbApi) {
	m.region.Write(0, v)
}
