/*
   vcore - main memory.

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

// Package memory implements the VM's single flat byte-addressable RAM, a
// shared.Region[byte] named VcoreVriscMainMemory shared by every core
// process. Unlike the teacher's package-global mem singleton, Memory is an
// instance wrapping a region handle so the supervisor (owner) and each core
// process (binder) hold independent Go values over the same bytes.
package memory

import (
	"encoding/binary"

	"github.com/rwsvrisc/vcore/emu/shared"
)

// Memory is a byte-addressable linear RAM backed by a named shared region.
type Memory struct {
	region *shared.Region[byte]
}

const RegionName = "VcoreVriscMainMemory"

// New creates and owns the main memory region, sized in bytes.
func New(sizeBytes uint64) (*Memory, error) {
	r, err := shared.New[byte](RegionName, int(sizeBytes))
	if err != nil {
		return nil, err
	}
	return &Memory{region: r}, nil
}

// Bind maps the main memory region created by the supervisor.
func Bind(sizeBytes uint64) (*Memory, error) {
	r, err := shared.Bind[byte](RegionName, int(sizeBytes))
	if err != nil {
		return nil, err
	}
	return &Memory{region: r}, nil
}

// Close releases the underlying region.
func (m *Memory) Close() error {
	return m.region.Close()
}

// Size reports the memory size in bytes.
func (m *Memory) Size() uint64 {
	return uint64(m.region.Len())
}

// CheckAddr reports whether addr is a valid physical address.
func (m *Memory) CheckAddr(addr uint64) bool {
	return addr < m.Size()
}

// LoadROM copies data verbatim into memory starting at physical 0, per
// spec.md 6's ROM format (raw bytes, loaded at physical 0).
func (m *Memory) LoadROM(data []byte) {
	m.region.WriteSlice(0, data)
}

// GetByte reads a single byte; out-of-range reads return 0.
func (m *Memory) GetByte(addr uint64) byte {
	return m.region.At(int(addr))
}

// PutByte writes a single byte; out-of-range writes are silently ignored.
func (m *Memory) PutByte(addr uint64, v byte) {
	m.region.Write(int(addr), v)
}

// ReadBytes returns a view of n bytes starting at addr, clamped to the
// region's bounds (may return fewer than n bytes near the end of memory).
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	return m.region.Slice(int(addr), n)
}

// WriteBytes copies data into memory starting at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	m.region.WriteSlice(int(addr), data)
}

// widthBytes maps the instruction set's 2-bit width selector (spec.md 4.4)
// to a byte count.
func widthBytes(width int) int {
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

// ReadWidth reads a little-endian value of the given width (0..3, per
// spec.md 4.4) at addr, zero-extended into a uint64.
func (m *Memory) ReadWidth(addr uint64, width int) uint64 {
	n := widthBytes(width)
	buf := m.ReadBytes(addr, n)
	var tmp [8]byte
	copy(tmp[:], buf)
	return binary.LittleEndian.Uint64(tmp[:])
}

// WriteWidth writes the low width-bytes of v, little-endian, at addr.
func (m *Memory) WriteWidth(addr uint64, v uint64, width int) {
	n := widthBytes(width)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	m.WriteBytes(addr, tmp[:n])
}

// ReadU64 reads a little-endian 64-bit value at addr - used for the
// untranslated IVT lookup in spec.md 4.7 and the 8-byte page-table entry
// reads in spec.md 4.2.
func (m *Memory) ReadU64(addr uint64) uint64 {
	return m.ReadWidth(addr, 3)
}

// WriteU64 writes a little-endian 64-bit value at addr.
func (m *Memory) WriteU64(addr uint64, v uint64) {
	m.WriteWidth(addr, v, 3)
}
