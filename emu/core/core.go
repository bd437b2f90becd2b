/*
   vcore - per-core fetch/translate/execute loop.

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

// Package core implements one Vcore: the per-iteration loop of spec.md 4.5
// (drain I/O events, check the clock, deliver a pending interrupt, gate on
// the debugger and on whether the core has been started, fetch, execute).
//
// The "lazy IP" cache spec.md 4.5 describes is not reimplemented as a
// separate layer here: emu/addr's Translator already caches up to 128
// recent logical->physical mappings, and every byte this core fetches goes
// through it, so the translation for a hot instruction pointer is already
// effectively cached one layer down. Duplicating that cache here would just
// be two caches doing the same job; see DESIGN.md.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rwsvrisc/vcore/emu/addr"
	"github.com/rwsvrisc/vcore/emu/debug"
	"github.com/rwsvrisc/vcore/emu/instr"
	"github.com/rwsvrisc/vcore/emu/intr"
	"github.com/rwsvrisc/vcore/emu/ioport"
	"github.com/rwsvrisc/vcore/emu/memory"
	"github.com/rwsvrisc/vcore/emu/regs"
	"github.com/rwsvrisc/vcore/emu/shared"
)

// StartFlag is the VcoreCore{N}StartFlg region: the supervisor sets Start
// (and StartIP for cores other than 0) to wake a waiting core (spec.md 4.5).
type StartFlag struct {
	Start   bool
	StartIP uint64
}

// StartFlagName returns the external ABI name of a core's start-flag region,
// per spec.md 4.1 - used by the supervisor when it creates these regions.
func StartFlagName(core int) string { return fmt.Sprintf("VcoreCore%dStartFlg", core) }

func instCountName(core int) string { return fmt.Sprintf("VcoreCore%dInstCount", core) }

// Register selectors for the debugger's WriteRegister request (spec.md 4.10).
const (
	RegSelX0 = iota
	_
	_
	_
	_
	_
	_
	_
	_
	_
	_
	_
	_
	_
	_
	RegSelX15
	RegSelIP
	RegSelFlag
	RegSelIVT
	RegSelKPT
	RegSelUPT
	RegSelSCP
	RegSelIMsg
	RegSelIPDump
	RegSelFlagDump
)

// privileged is the set of opcodes that trap with WrongPrivilege when
// executed while FlagPrivilege is set (user mode), spec.md 4.4/7.
var privileged = map[byte]bool{
	0x14: true, 0x16: true, 0x23: true, 0x24: true,
	0x30: true, 0x31: true, 0x32: true, 0x33: true,
	0x34: true, 0x35: true, 0x36: true, 0x37: true,
	0x38: true, 0x39: true, 0x3A: true, 0x3B: true,
}

// widthBytesFor maps the 2-bit width selector to a byte count.
func widthBytesFor(width int) int {
	switch width {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

// clock is a tiny indirection so tests can stub the tick source; production
// wiring uses *emu/clock.Clock, which satisfies this shape.
type clock interface{ Hit() bool }

// Config supplies a Core with its shared dependencies. Regions the core
// itself owns (its instruction counter and debugger mailbox) are created by
// New; StartFlag is created by the supervisor and handed in directly, since
// the default runtime mode is cores-as-goroutines within one process (the
// supervisor already holds every region it creates - see emu/ioport's
// package doc for the same in-process/cross-process split).
type Config struct {
	ID        int
	NumCores  int
	Mem       *memory.Memory
	IO        *ioport.Controller
	Events    <-chan ioport.Event
	StartFlag *shared.Region[StartFlag]
	Table     *instr.Table
	Clock     clock
	Log       *slog.Logger
}

// Core is one Vcore.
type Core struct {
	id       int
	numCores int
	mem      *memory.Memory
	xlat     *addr.Translator
	intc     intr.Controller
	r        regs.Registers
	table    *instr.Table
	clk      clock
	events   <-chan ioport.Event
	io       *ioport.Controller
	mailbox  *debug.Mailbox
	instCnt  *shared.Region[uint64]
	start    *shared.Region[StartFlag]
	log      *slog.Logger

	running   bool
	exit      bool
	nop       bool
	transfer  bool
	debugMode debug.Mode
	stepArmed bool
}

// New creates a Core, owning its own instruction counter and debugger
// mailbox regions.
func New(cfg Config) (*Core, error) {
	instCnt, err := shared.New[uint64](instCountName(cfg.ID), 1)
	if err != nil {
		return nil, err
	}
	mailbox, err := debug.New(cfg.ID)
	if err != nil {
		instCnt.Close()
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Core{
		id:       cfg.ID,
		numCores: cfg.NumCores,
		mem:      cfg.Mem,
		xlat:     addr.New(cfg.Mem),
		table:    cfg.Table,
		clk:      cfg.Clock,
		events:   cfg.Events,
		io:       cfg.IO,
		mailbox:  mailbox,
		instCnt:  instCnt,
		start:    cfg.StartFlag,
		log:      log,
		running:  cfg.ID == 0, // core 0 auto-starts, spec.md 4.5/6
	}, nil
}

// Close releases the regions this core owns.
func (c *Core) Close() error {
	if err := c.instCnt.Close(); err != nil {
		return err
	}
	return c.mailbox.Close()
}

// Run drives the core's loop until Exit is requested over the debugger
// mailbox or stop is closed.
func (c *Core) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		c.Step()
		if c.exit {
			return
		}
		if !c.running {
			time.Sleep(time.Millisecond)
		}
	}
}

// Step runs exactly one iteration of the core's loop (spec.md 4.5): drain
// pending I/O events, check the clock, deliver an interrupt if one is both
// pending and enabled, service one debugger request, and - if the core is
// running, not blocked in single-step mode, and not idled by nop - fetch and
// execute one instruction. A pending nop idles the core until an interrupt
// wakes it.
func (c *Core) Step() {
	c.drainEvents()
	c.checkStartFlag()

	if c.clk != nil && c.clk.Hit() {
		c.intc.Interrupt(intr.Clock)
	}

	delivered := c.deliverInterrupt()
	c.serviceDebugger()

	if !c.running || c.exit {
		return
	}
	if c.debugMode == debug.ModeStep {
		if !c.stepArmed {
			return
		}
		c.stepArmed = false
	}
	if c.nop && !delivered {
		time.Sleep(time.Millisecond)
		return
	}

	c.fetchAndExecute()
}

func (c *Core) drainEvents() {
	if c.events == nil {
		return
	}
	for {
		select {
		case ev := <-c.events:
			switch ev.Kind {
			case ioport.EventLink:
				if buf, ok := c.portBuffer(0); ok {
					buf.In.Push(uint64(ev.Port))
				}
				c.intc.Interrupt(intr.Device)
			case ioport.EventInterrupt:
				c.r.IMsg = uint64(ev.Port)
				c.intc.Interrupt(intr.DeviceCommunication)
			}
		default:
			return
		}
	}
}

// checkStartFlag picks up a supervisor-issued start request for a core that
// has not yet run (spec.md 4.5/6: cores other than 0 wait for one).
func (c *Core) checkStartFlag() {
	if c.running || c.start == nil {
		return
	}
	sf := c.start.At(0)
	if sf.Start {
		c.running = true
		c.r.IP = sf.StartIP
	}
}

// deliverInterrupt vectors through the untranslated IVT table (spec.md 4.7):
// IVT + id*8 holds the handler's entry IP. Entering a handler disables
// further interrupt delivery, drops to kernel privilege, and wakes the core
// out of a nop-idle (spec.md 4.5 step 3/6), mirroring sysc.
func (c *Core) deliverInterrupt() bool {
	id, ok := c.intc.Interrupted()
	if !ok || !regs.BitGet(c.r.Flag, regs.FlagInterruptEnabled) {
		return false
	}
	c.r.IPDump = c.r.IP
	c.r.FlagDump = c.r.Flag
	c.r.IP = c.mem.ReadU64(c.r.IVT + uint64(id)*8)
	flag := regs.BitReset(c.r.Flag, regs.FlagInterruptEnabled)
	flag = regs.BitReset(flag, regs.FlagPrivilege)
	c.flushOnModeChange(flag)
	c.r.Flag = flag
	c.intc.ResetPending()
	c.nop = false
	return true
}

// flushOnModeChange empties the translation cache when replacing the current
// flag value with next changes the PagingEnabled or Privilege bit.
func (c *Core) flushOnModeChange(next uint64) {
	changed := c.r.Flag ^ next
	if regs.BitGet(changed, regs.FlagPagingEnabled) || regs.BitGet(changed, regs.FlagPrivilege) {
		c.xlat.Flush()
	}
}

// serviceDebugger answers at most one pending debugger request per Step, per
// the mailbox's strict request/response alternation (spec.md 4.10).
func (c *Core) serviceDebugger() {
	v := c.mailbox.Peek()
	if !debug.IsRequest(v) {
		return
	}
	switch v.Tag {
	case debug.TagStartCore:
		if !c.running {
			c.running = true
			c.mailbox.Respond(debug.Ok())
		} else {
			c.mailbox.Respond(debug.CoreStarted())
		}
	case debug.TagRegister:
		c.mailbox.Respond(debug.RegisterResponse(c.r))
	case debug.TagWriteRegister:
		c.writeRegSel(int(v.RegSel), v.RegVal)
		c.mailbox.Respond(debug.Ok())
	case debug.TagDebugMode:
		c.debugMode = v.DebugMode
		c.stepArmed = false
		c.mailbox.Respond(debug.Ok())
	case debug.TagInstruction:
		b, _ := c.translatedByte(c.r.IP, false)
		c.mailbox.Respond(debug.InstructionResponse(b))
	case debug.TagInterrupt:
		c.intc.Interrupt(intr.ID(v.IntID))
		c.mailbox.Respond(debug.Ok())
	case debug.TagContinue:
		if c.debugMode == debug.ModeStep {
			c.stepArmed = true
		}
		c.mailbox.Respond(debug.Ok())
	case debug.TagExit:
		c.exit = true
		c.mailbox.Respond(debug.Ok())
	}
}

func (c *Core) writeRegSel(sel int, val uint64) {
	switch {
	case sel >= RegSelX0 && sel <= RegSelX15:
		c.r.X[sel] = val
	case sel == RegSelIP:
		c.r.IP = val
	case sel == RegSelFlag:
		c.r.Flag = val
		c.xlat.Flush()
	case sel == RegSelIVT:
		c.r.IVT = val
	case sel == RegSelKPT:
		c.r.KPT = val
		c.xlat.Flush()
	case sel == RegSelUPT:
		c.r.UPT = val
		c.xlat.Flush()
	case sel == RegSelSCP:
		c.r.SCP = val
	case sel == RegSelIMsg:
		c.r.IMsg = val
	case sel == RegSelIPDump:
		c.r.IPDump = val
	case sel == RegSelFlagDump:
		c.r.FlagDump = val
	}
}

func (c *Core) translatedByte(logical uint64, write bool) (byte, error) {
	phys, err := c.xlat.Translate(logical, c.r.Flag, c.r.KPT, c.r.UPT, write)
	if err != nil {
		return 0, err
	}
	return c.mem.GetByte(phys), nil
}

func (c *Core) faultToInterrupt(err error) (intr.ID, bool) {
	var ae *addr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case addr.OverSized, addr.Ineffective:
			return intr.InaccessibleAddress, true
		case addr.WrongPrivilege:
			return intr.WrongPrivilege, true
		case addr.Unreadable:
			return intr.PageOrTableUnreadable, true
		case addr.Unwritable:
			return intr.PageOrTableUnwritable, true
		}
	}
	return 0, false
}

func (c *Core) fetchAndExecute() {
	opcode, err := c.translatedByte(c.r.IP, false)
	if err != nil {
		if id, ok := c.faultToInterrupt(err); ok {
			c.intc.Interrupt(id)
		}
		return
	}

	entry := c.table[opcode]
	if entry == nil {
		c.intc.Interrupt(intr.InvalidInstruction)
		return
	}
	if privileged[opcode] && regs.BitGet(c.r.Flag, regs.FlagPrivilege) {
		c.intc.Interrupt(intr.WrongPrivilege)
		return
	}

	b := make([]byte, entry.Length)
	b[0] = opcode
	for i := 1; i < entry.Length; i++ {
		v, err := c.translatedByte(c.r.IP+uint64(i), false)
		if err != nil {
			if id, ok := c.faultToInterrupt(err); ok {
				c.intc.Interrupt(id)
			}
			return
		}
		b[i] = v
	}

	c.nop = false
	c.transfer = false
	advance, err := entry.Handler(c, b)
	if err != nil {
		c.intc.Interrupt(intr.InvalidInstruction)
		return
	}
	if !c.transfer {
		c.r.IP += uint64(advance)
	}

	n := c.instCnt.At(0)
	c.instCnt.Write(0, n+1)
}

// --- instr.Machine implementation ---

func (c *Core) X(i int) uint64       { return c.r.X[i] }
func (c *Core) SetX(i int, v uint64) { c.r.X[i] = v }
func (c *Core) IP() uint64           { return c.r.IP }
func (c *Core) SetIP(v uint64)       { c.r.IP = v }
func (c *Core) Flag() uint64         { return c.r.Flag }
func (c *Core) SetFlag(v uint64)     { c.flushOnModeChange(v); c.r.Flag = v }
func (c *Core) IVT() uint64          { return c.r.IVT }
func (c *Core) SetIVT(v uint64)      { c.r.IVT = v }
func (c *Core) KPT() uint64          { return c.r.KPT }
func (c *Core) SetKPT(v uint64)      { c.r.KPT = v; c.xlat.Flush() }
func (c *Core) UPT() uint64          { return c.r.UPT }
func (c *Core) SetUPT(v uint64)      { c.r.UPT = v; c.xlat.Flush() }
func (c *Core) SCP() uint64          { return c.r.SCP }
func (c *Core) SetSCP(v uint64)      { c.r.SCP = v }
func (c *Core) IMsg() uint64         { return c.r.IMsg }
func (c *Core) SetIMsg(v uint64)     { c.r.IMsg = v }
func (c *Core) IPDump() uint64       { return c.r.IPDump }
func (c *Core) SetIPDump(v uint64)   { c.r.IPDump = v }
func (c *Core) FlagDump() uint64     { return c.r.FlagDump }
func (c *Core) SetFlagDump(v uint64) { c.r.FlagDump = v }

func (c *Core) ReadMem(addrv uint64, width int) (uint64, error) {
	n := widthBytesFor(width)
	var buf [8]byte
	for i := 0; i < n; i++ {
		v, err := c.translatedByte(addrv+uint64(i), false)
		if err != nil {
			return 0, err
		}
		buf[i] = v
	}
	var out uint64
	for i := n - 1; i >= 0; i-- {
		out = (out << 8) | uint64(buf[i])
	}
	return out, nil
}

func (c *Core) WriteMem(addrv uint64, v uint64, width int) error {
	n := widthBytesFor(width)
	for i := 0; i < n; i++ {
		phys, err := c.xlat.Translate(addrv+uint64(i), c.r.Flag, c.r.KPT, c.r.UPT, true)
		if err != nil {
			return err
		}
		c.mem.PutByte(phys, byte(v>>(8*uint(i))))
	}
	return nil
}

func (c *Core) RaiseInterrupt(id int) { c.intc.Interrupt(intr.ID(id)) }
func (c *Core) AckInterrupt()         { c.intc.ResetPending() }
func (c *Core) SetNop(b bool)         { c.nop = b }
func (c *Core) SetTransferred(b bool) { c.transfer = b }

var errBadPort = errors.New("core: no such I/O port")

func (c *Core) portBuffer(port uint16) (*ioport.PortBuffer, bool) {
	if c.io == nil {
		return nil, false
	}
	if port < ioport.NumFixedPorts {
		r := c.io.FixedPort(int(port), c.id)
		if r == nil {
			return nil, false
		}
		return r.AtMut(0), true
	}
	r, ok := c.io.DynamicPort(int(port))
	if !ok || r == nil {
		return nil, false
	}
	return r.AtMut(0), true
}

func (c *Core) IOIn(port uint16, width int) (uint64, error) {
	buf, ok := c.portBuffer(port)
	if !ok {
		return 0, errBadPort
	}
	v, _ := buf.In.Get()
	return v, nil
}

func (c *Core) IOOut(port uint16, v uint64, width int) error {
	buf, ok := c.portBuffer(port)
	if !ok {
		return errBadPort
	}
	buf.Out.Push(v)
	return nil
}

func (c *Core) CoreCount() int { return c.numCores }
func (c *Core) CoreID() int    { return c.id }
func (c *Core) TerminalWrite(s string) {
	c.log.Info("guest terminal output", "core", c.id, "text", s)
}
