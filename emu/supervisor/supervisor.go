/*
   vcore - supervisor: region ownership, core lifecycle, I/O dispatch.

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

// Package supervisor owns every named shared region the VM publishes, runs
// each core's loop (by default as a goroutine; spec.md 6's process_child/
// id_core flags describe the alternative, one-OS-process-per-core mode a
// self-re-exec'd binary would use instead), and services the I/O
// controller's dynamic-port and DMA control protocols on a background
// ticker - the same role the teacher's emu/core.core.Start loop plays for
// its master channel, generalized here to N cores plus a shared I/O
// controller instead of one CPU plus a channel device.
package supervisor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rwsvrisc/vcore/emu/clock"
	"github.com/rwsvrisc/vcore/emu/core"
	"github.com/rwsvrisc/vcore/emu/dma"
	"github.com/rwsvrisc/vcore/emu/instr"
	"github.com/rwsvrisc/vcore/emu/ioport"
	"github.com/rwsvrisc/vcore/emu/memory"
	"github.com/rwsvrisc/vcore/emu/shared"
)

// Config configures the VM as a whole, spec.md 6.
type Config struct {
	NumCores   int
	MemorySize uint64
	ROM        []byte
	Cycle      time.Duration
	// Debug and ExternalClock, if either is set, suppress the internal
	// ~250Hz Clock interrupt source (spec.md 4.5 step 2: the clock only
	// fires "if debug=false and external clock disabled").
	Debug         bool
	ExternalClock bool
	Log           *slog.Logger
}

// Supervisor owns the VM's shared state and every core.
type Supervisor struct {
	log   *slog.Logger
	mem   *memory.Memory
	io    *ioport.Controller
	dma   *dma.Table
	cores []*core.Core
	start []*shared.Region[core.StartFlag]
	stop  chan struct{}
}

// New creates main memory, loads the ROM at physical 0, creates the I/O
// controller and DMA table, and constructs NumCores cores (core 0 auto-runs;
// the rest wait on their start-flag region, spec.md 4.5/6).
func New(cfg Config) (*Supervisor, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	mem, err := memory.New(cfg.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("supervisor: create memory: %w", err)
	}
	if cfg.ROM != nil {
		mem.LoadROM(cfg.ROM)
	}

	dmaTable := dma.NewTable(mem)
	io, err := ioport.NewController(log, cfg.NumCores, dmaTable)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("supervisor: create I/O controller: %w", err)
	}

	s := &Supervisor{log: log, mem: mem, io: io, dma: dmaTable, stop: make(chan struct{})}

	table := instr.NewBaseTable()
	for id := 0; id < cfg.NumCores; id++ {
		sf, err := shared.New[core.StartFlag](core.StartFlagName(id), 1)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("supervisor: create start flag for core %d: %w", id, err)
		}
		if id == 0 {
			sf.Write(0, core.StartFlag{Start: true, StartIP: 0})
		}
		s.start = append(s.start, sf)

		coreCfg := core.Config{
			ID:        id,
			NumCores:  cfg.NumCores,
			Mem:       mem,
			IO:        io,
			Events:    io.Events(id),
			StartFlag: sf,
			Table:     table,
			Log:       log,
		}
		if !cfg.Debug && !cfg.ExternalClock {
			coreCfg.Clock = clock.New(cfg.Cycle)
		}
		c, err := core.New(coreCfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("supervisor: create core %d: %w", id, err)
		}
		s.cores = append(s.cores, c)
	}

	return s, nil
}

// Run launches every core's loop plus the background I/O dispatch ticker,
// and blocks until Shutdown is called.
func (s *Supervisor) Run() {
	var coreStop = make(chan struct{})
	for _, c := range s.cores {
		go c.Run(coreStop)
	}
	go s.dispatchIO(coreStop)
	<-s.stop
	close(coreStop)
}

// dispatchIO round-robins the I/O controller's request/interrupt/DMA
// servicing across every core, spec.md 4.6.
func (s *Supervisor) dispatchIO(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	coreOf := func(port uint16) int {
		if core, ok := s.io.OwnerOfPort(port); ok {
			return core
		}
		return -1
	}
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for id := range s.cores {
				s.io.ServiceRequestPort(id)
				s.io.ServicePort1Wake(id, s.setStartFlag)
				s.io.ServicePort2DMA(id)
			}
			s.io.ServiceInterruptPort(coreOf)
		}
	}
}

func (s *Supervisor) setStartFlag(coreID int, startIP uint32) {
	if coreID < 0 || coreID >= len(s.start) {
		s.log.Warn("supervisor: wake request for unknown core", "core", coreID)
		return
	}
	s.start[coreID].Write(0, core.StartFlag{Start: true, StartIP: uint64(startIP)})
}

// Shutdown stops every core and the I/O dispatcher.
func (s *Supervisor) Shutdown() {
	close(s.stop)
}

// Close releases every region the supervisor owns. Call after Run returns.
func (s *Supervisor) Close() error {
	for _, c := range s.cores {
		c.Close()
	}
	for _, sf := range s.start {
		sf.Close()
	}
	if s.io != nil {
		s.io.Close()
	}
	return s.mem.Close()
}
