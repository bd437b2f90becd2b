/*
   vcore - DMA descriptor table.

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

// Package dma implements the process-wide DMA descriptor table of
// spec.md 4.8: a monotonically-increasing id keyed table, each descriptor
// published as its own named shared region (VcoreDMA{id}Obj) so a device
// process can bind just that descriptor plus the memory window it describes.
package dma

import (
	"fmt"

	"github.com/rwsvrisc/vcore/emu/memory"
	"github.com/rwsvrisc/vcore/emu/shared"
)

// Descriptor describes a window into main memory a device may access.
type Descriptor struct {
	Start    uint64
	Length   uint64
	Readable bool
	Writable bool
}

func regionName(id uint64) string {
	return fmt.Sprintf("VcoreDMA%dObj", id)
}

// Table owns the process-wide descriptor table. It is created and owned by
// the supervisor; device processes bind individual descriptors by id.
type Table struct {
	mem     *memory.Memory
	descs   map[uint64]*shared.Region[Descriptor]
	nextID  uint64
}

// NewTable creates an empty, owning descriptor table. Ids start at 1, per
// spec.md 4.8.
func NewTable(mem *memory.Memory) *Table {
	return &Table{mem: mem, descs: make(map[uint64]*shared.Region[Descriptor]), nextID: 1}
}

// Create allocates a new descriptor, zero-valued, and returns its id.
func (t *Table) Create() (uint64, error) {
	id := t.nextID
	t.nextID++
	r, err := shared.New[Descriptor](regionName(id), 1)
	if err != nil {
		return 0, err
	}
	t.descs[id] = r
	return id, nil
}

// Remove unpublishes a descriptor.
func (t *Table) Remove(id uint64) error {
	r, ok := t.descs[id]
	if !ok {
		return nil
	}
	delete(t.descs, id)
	return r.Close()
}

func (t *Table) region(id uint64) (*shared.Region[Descriptor], bool) {
	r, ok := t.descs[id]
	return r, ok
}

// SetStart, SetLength, SetReadable and SetWritable mutate a descriptor in
// place; each corresponds to one sub-mode of the port-2 DMA control protocol
// (spec.md 4.6).
func (t *Table) SetStart(id, start uint64) {
	if r, ok := t.region(id); ok {
		d := r.At(0)
		d.Start = start
		t.checkWindow(d)
		r.Write(0, d)
	}
}

func (t *Table) SetLength(id, length uint64) {
	if r, ok := t.region(id); ok {
		d := r.At(0)
		d.Length = length
		t.checkWindow(d)
		r.Write(0, d)
	}
}

// checkWindow panics if a descriptor's window falls outside main memory - a
// host-side programming error per spec.md 4.8/9, not a guest-recoverable
// fault.
func (t *Table) checkWindow(d Descriptor) {
	if d.Start+d.Length > t.mem.Size() {
		panic(fmt.Sprintf("dma: descriptor window [%d,%d) exceeds memory size %d", d.Start, d.Start+d.Length, t.mem.Size()))
	}
}

func (t *Table) SetReadable(id uint64, readable bool) {
	if r, ok := t.region(id); ok {
		d := r.At(0)
		d.Readable = readable
		r.Write(0, d)
	}
}

func (t *Table) SetWritable(id uint64, writable bool) {
	if r, ok := t.region(id); ok {
		d := r.At(0)
		d.Writable = writable
		r.Write(0, d)
	}
}

// Get returns a copy of descriptor id.
func (t *Table) Get(id uint64) (Descriptor, bool) {
	r, ok := t.region(id)
	if !ok {
		return Descriptor{}, false
	}
	return r.At(0), true
}

// Device is a bound view over a single DMA descriptor and the shared main
// memory region it windows into. Devices are host-side collaborators
// (spec.md 1's Non-goals) - Device exists so ioport/dma tests can exercise
// the protocol without a real device driver.
type Device struct {
	desc *shared.Region[Descriptor]
	mem  *memory.Memory
}

// BindDevice binds descriptor id and the shared main memory region.
func BindDevice(id uint64, memSize uint64) (*Device, error) {
	desc, err := shared.Bind[Descriptor](regionName(id), 1)
	if err != nil {
		return nil, err
	}
	mem, err := memory.Bind(memSize)
	if err != nil {
		desc.Close()
		return nil, err
	}
	return &Device{desc: desc, mem: mem}, nil
}

// ReadByte reads offset bytes into the descriptor's window. An out-of-window
// access is a host-side programming error and panics, per spec.md 4.8/9.
func (d *Device) ReadByte(offset uint64) byte {
	desc := d.desc.At(0)
	if !desc.Readable || offset >= desc.Length {
		panic(fmt.Sprintf("dma: read offset %d out of window [0,%d)", offset, desc.Length))
	}
	return d.mem.GetByte(desc.Start + offset)
}

// WriteByte writes offset bytes into the descriptor's window, panicking on
// an out-of-window access.
func (d *Device) WriteByte(offset uint64, v byte) {
	desc := d.desc.At(0)
	if !desc.Writable || offset >= desc.Length {
		panic(fmt.Sprintf("dma: write offset %d out of window [0,%d)", offset, desc.Length))
	}
	d.mem.PutByte(desc.Start+offset, v)
}

// Close releases the device's bound handles (mem is bound, not owned, so it
// is unmapped but not unlinked).
func (d *Device) Close() error {
	if err := d.mem.Close(); err != nil {
		return err
	}
	return d.desc.Close()
}
