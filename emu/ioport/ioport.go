/*
   vcore - I/O controller: fixed + dynamic ports, interrupt forwarding.

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

// Package ioport implements the VM's I/O subsystem: per-core fixed ports
// 0-255, dynamically allocated ports 256-65535, the interrupt-forwarding
// port, and the port-2 DMA control sub-protocol (spec.md 4.6). The
// supervisor owns a Controller; each core reaches its own fixed ports and
// the dynamic ports through that Controller, plus a channel of Events that
// the Controller's Service methods send on when the supervisor's background
// dispatch goroutine drives them - the channel stands
// in for the cross-process "per-core I/O-request channel" of spec.md 4.5
// when cores run as goroutines within one supervisor binary, matching the
// teacher's own emu/core, which talks to the rest of the system over an
// in-process Go channel despite the wider system being conceptually
// multi-device.
package ioport

import (
	"fmt"
	"log/slog"

	"github.com/rwsvrisc/vcore/emu/dma"
	"github.com/rwsvrisc/vcore/emu/shared"
)

const (
	NumFixedPorts     = 256
	DynamicPortStart  = 256
	DynamicPortEnd    = 65535
	PortWake          = 1
	PortDMA           = 2
	RequestPortName   = "VcoreIORequestPort"
	InterruptPortName = "VcoreInterruptPort"
)

func fixedPortName(port, core int) string {
	return fmt.Sprintf("VcoreIOPort%dC%d", port, core)
}

func dynamicPortName(port int) string {
	return fmt.Sprintf("VcoreIOPort%d", port)
}

// EventKind distinguishes the two messages the I/O controller delivers to a
// core, per original_source's PortRequest{Link, Interrupt}.
type EventKind int

const (
	EventLink EventKind = iota
	EventInterrupt
)

// Event is a message delivered to a core's event channel.
type Event struct {
	Kind EventKind
	Port uint16
}

// Controller is the supervisor-owned I/O subsystem: it creates every fixed
// port for every core, the request/interrupt ports, and services dynamic
// port allocation and the DMA control sub-protocol.
type Controller struct {
	log *slog.Logger

	numCores int
	fixed    map[int][]*shared.Region[PortBuffer] // fixed[port][core]
	dynamic  map[int]*shared.Region[PortBuffer]
	dynOwner map[int]int // dynamic port -> owning core, for interrupt forwarding
	nextDyn  int

	reqPort *shared.Region[uint32]
	intPort *shared.Region[Ring]

	events []chan Event // one per core

	dmaTable *dma.Table
	dmaState [](*dmaSession)
}

type dmaSession struct {
	currentID uint64
}

// NewController creates every fixed port region for numCores cores, plus the
// request and interrupt ports, and returns the owning Controller.
func NewController(log *slog.Logger, numCores int, dmaTable *dma.Table) (*Controller, error) {
	c := &Controller{
		log:      log,
		numCores: numCores,
		fixed:    make(map[int][]*shared.Region[PortBuffer]),
		dynamic:  make(map[int]*shared.Region[PortBuffer]),
		dynOwner: make(map[int]int),
		nextDyn:  DynamicPortStart,
		dmaTable: dmaTable,
		events:   make([]chan Event, numCores),
	}
	for core := 0; core < numCores; core++ {
		c.events[core] = make(chan Event, 64)
		c.dmaState = append(c.dmaState, &dmaSession{})
	}
	for port := 0; port < NumFixedPorts; port++ {
		regions := make([]*shared.Region[PortBuffer], numCores)
		for core := 0; core < numCores; core++ {
			r, err := shared.New[PortBuffer](fixedPortName(port, core), 1)
			if err != nil {
				return nil, err
			}
			regions[core] = r
		}
		c.fixed[port] = regions
	}
	reqPort, err := shared.New[uint32](RequestPortName, 1)
	if err != nil {
		return nil, err
	}
	c.reqPort = reqPort

	intPort, err := shared.New[Ring](InterruptPortName, 1)
	if err != nil {
		return nil, err
	}
	c.intPort = intPort

	return c, nil
}

// Events returns the event channel for the given core; the core's loop
// drains it at step 1 of spec.md 4.5.
func (c *Controller) Events(core int) <-chan Event {
	return c.events[core]
}

// FixedPort returns the shared port buffer for (port, core).
func (c *Controller) FixedPort(port, core int) *shared.Region[PortBuffer] {
	return c.fixed[port][core]
}

// DynamicPort returns the shared port buffer for a previously allocated
// dynamic port, if one has been created.
func (c *Controller) DynamicPort(port int) (*shared.Region[PortBuffer], bool) {
	r, ok := c.dynamic[port]
	return r, ok
}

// ServiceRequestPort implements the dynamic-port allocation handshake of
// spec.md 4.6: the device sets the high 16 bits of VcoreIORequestPort to 1
// and the low 16 bits to 0; the controller allocates a port, writes its
// number into the low 16 bits (leaving the request flag set), and the
// device is expected to clear the high bit once it has read the response.
// owner identifies which core's event channel receives the resulting Link
// event.
func (c *Controller) ServiceRequestPort(owner int) {
	val := c.reqPort.At(0)
	requested := val>>16 == 1
	low := val & 0xFFFF
	if !requested || low != 0 {
		return
	}
	port := c.allocateDynamicPort()
	r, err := shared.New[PortBuffer](dynamicPortName(port), 1)
	if err != nil {
		c.log.Error("ioport: failed to create dynamic port region", "port", port, "err", err)
		return
	}
	c.dynamic[port] = r
	c.dynOwner[port] = owner
	c.reqPort.Write(0, (uint32(1)<<16)|uint32(port&0xFFFF))
	c.events[owner] <- Event{Kind: EventLink, Port: uint16(port)}
}

// OwnerOfPort reports which core owns a dynamically allocated port, for
// routing an interrupt on that port back to the right core's event channel.
func (c *Controller) OwnerOfPort(port uint16) (int, bool) {
	core, ok := c.dynOwner[int(port)]
	return core, ok
}

// allocateDynamicPort returns the next dynamic port id, wrapping 65535 back
// to 256 (spec.md 4.6).
func (c *Controller) allocateDynamicPort() int {
	id := c.nextDyn
	c.nextDyn++
	if c.nextDyn > DynamicPortEnd {
		c.nextDyn = DynamicPortStart
	}
	return id
}

// ServiceInterruptPort drains VcoreInterruptPort and forwards each entry to
// the owning core's event channel as an Interrupt event, per spec.md 4.6.
// coreOf maps a port id to the core that owns it.
func (c *Controller) ServiceInterruptPort(coreOf func(port uint16) int) {
	for {
		v, ok := c.intPort.AtMut(0).Get()
		if !ok {
			return
		}
		port := uint16(v)
		core := coreOf(port)
		if core < 0 || core >= len(c.events) {
			continue
		}
		c.events[core] <- Event{Kind: EventInterrupt, Port: port}
	}
}

// ServicePort1Wake implements the wake-up fixed port: a {core_id:32,
// start_ip:32} word dequeued from port 1's out ring sets that core's
// start-flag. setStartFlag is supplied by the supervisor (it owns the
// start-flag regions).
func (c *Controller) ServicePort1Wake(core int, setStartFlag func(coreID int, startIP uint32)) {
	buf := c.fixed[PortWake][core]
	for {
		v, ok := buf.AtMut(0).Out.Get()
		if !ok {
			return
		}
		coreID := uint32(v & 0xFFFFFFFF)
		startIP := uint32(v >> 32)
		setStartFlag(int(coreID), startIP)
	}
}

// DMA control sub-protocol modes (port 2, spec.md 4.6).
const (
	dmaModeCreate = 0
	dmaModeSelect = 1
	dmaModeStart  = 2
	dmaModeLength = 3
	dmaModeRead   = 4
	dmaModeWrite  = 5
	dmaModeRemove = 6
)

// ServicePort2DMA implements the port-2 DMA control channel: a mode byte
// then a value byte/word, dispatched against the process-wide DMA table
// (spec.md 4.6/4.8).
func (c *Controller) ServicePort2DMA(core int) {
	buf := c.fixed[PortDMA][core]
	session := c.dmaState[core]
	for {
		modeWord, ok := buf.AtMut(0).Out.Get()
		if !ok {
			return
		}
		mode := modeWord & 0xFF
		valueWord, hasValue := buf.AtMut(0).Out.Get()

		switch mode {
		case dmaModeCreate:
			id, err := c.dmaTable.Create()
			if err != nil {
				c.log.Error("ioport: dma create failed", "err", err)
				continue
			}
			session.currentID = id
			buf.AtMut(0).In.Push(id)
		case dmaModeSelect:
			if hasValue {
				session.currentID = valueWord
			}
		case dmaModeStart:
			if hasValue {
				c.dmaTable.SetStart(session.currentID, valueWord)
			}
		case dmaModeLength:
			if hasValue {
				c.dmaTable.SetLength(session.currentID, valueWord)
			}
		case dmaModeRead:
			if hasValue {
				c.dmaTable.SetReadable(session.currentID, valueWord != 0)
			}
		case dmaModeWrite:
			if hasValue {
				c.dmaTable.SetWritable(session.currentID, valueWord != 0)
			}
		case dmaModeRemove:
			c.dmaTable.Remove(session.currentID)
		}
	}
}

// Close releases every region the controller owns.
func (c *Controller) Close() error {
	for _, regions := range c.fixed {
		for _, r := range regions {
			r.Close()
		}
	}
	for _, r := range c.dynamic {
		r.Close()
	}
	c.reqPort.Close()
	c.intPort.Close()
	return nil
}
