/*
   vcore - 4-level address translator with a bounded translation cache.

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

// Package addr implements the logical-to-physical address translator of
// spec.md 4.2: a four-level demand-paging walk (9 bits per level, a 14-bit
// minimum-page offset) guarded by a 128-entry usage-counted cache with a
// 16-visit grace period that protects freshly inserted entries from
// premature eviction.
//
// The walk here uses 9-bit per-level indices, as spec.md 3/4.2 mandates;
// original_source's calculate_addr masks each level with &0x1f (5 bits),
// which is a bug in that draft and is not reproduced here.
package addr

import (
	"fmt"

	"github.com/rwsvrisc/vcore/emu/memory"
	"github.com/rwsvrisc/vcore/emu/regs"
)

// ErrorKind classifies a translation failure, spec.md 4.2/7.
type ErrorKind int

const (
	OverSized ErrorKind = iota
	WrongPrivilege
	Ineffective
	Unreadable
	Unwritable
)

// Error is the translator's error type; Addr is meaningful for OverSized.
type Error struct {
	Kind ErrorKind
	Addr uint64
}

func (e *Error) Error() string {
	switch e.Kind {
	case OverSized:
		return fmt.Sprintf("address translator: oversized physical address %#x", e.Addr)
	case WrongPrivilege:
		return "address translator: wrong privilege"
	case Ineffective:
		return "address translator: page-table entry not effective"
	case Unreadable:
		return "address translator: page not readable"
	case Unwritable:
		return "address translator: page not writable"
	default:
		return "address translator: unknown error"
	}
}

const (
	indexBits  = 9
	indexMask  = (uint64(1) << indexBits) - 1
	offsetBits = 14

	entryEffective = 1 << 0
	entryLarge     = 1 << 1
	entryReadable  = 1 << 2
	entryWritable  = 1 << 3
	entryFlagMask  = 0xF

	maxLevelEntries = 1024

	cacheMaxSize  = 128
	cacheNewerTTL = 16
)

// shiftFor returns the number of low-order virtual address bits covered by
// level (and everything below it): 14 for L1, 23 for L2, 32 for L3, 41 for
// L4, matching the [l4:9|l3:9|l2:9|l1:9|offset:14] layout of spec.md 3.
func shiftFor(level int) uint {
	return offsetBits + uint(level-1)*indexBits
}

func indexAt(logical uint64, level int) uint64 {
	return (logical >> shiftFor(level)) & indexMask
}

type cacheEntry struct {
	phys    uint64
	counter int64
	newer   int
}

// Translator performs logical->physical translation for one core and caches
// recent results.
type Translator struct {
	mem   *memory.Memory
	cache map[uint64]*cacheEntry
}

// New creates a translator over mem.
func New(mem *memory.Memory) *Translator {
	return &Translator{mem: mem, cache: make(map[uint64]*cacheEntry)}
}

// Flush empties the translation cache - called whenever kpt, upt, or the
// PagingEnabled flag changes (spec.md 3), and when the Privilege flag changes.
func (t *Translator) Flush() {
	t.cache = make(map[uint64]*cacheEntry)
}

// Translate maps a logical address to a physical one, per spec.md 4.2.
// write selects whether this is a write access (checked against the
// Writable bit) or a read access (checked against Readable).
func (t *Translator) Translate(logical, flag, kpt, upt uint64, write bool) (uint64, error) {
	if !regs.BitGet(flag, regs.FlagPagingEnabled) {
		return logical, nil
	}

	if e, ok := t.cache[logical]; ok {
		e.counter++
		return e.phys, nil
	}

	root := kpt
	if regs.BitGet(flag, regs.FlagPrivilege) {
		root = upt
	}

	phys, err := t.walk(logical, root, write)
	if err != nil {
		return 0, err
	}

	if phys >= t.mem.Size() {
		return 0, &Error{Kind: OverSized, Addr: phys}
	}
	if regs.BitGet(flag, regs.FlagPrivilege) && !regs.BitGet(logical, regs.FlagUserSpace) {
		return 0, &Error{Kind: WrongPrivilege}
	}

	t.insert(logical, phys)
	return phys, nil
}

func (t *Translator) walk(logical, root uint64, write bool) (uint64, error) {
	base := root
	for level := 4; level >= 1; level-- {
		index := indexAt(logical, level)
		if index >= maxLevelEntries {
			return 0, &Error{Kind: OverSized, Addr: logical}
		}

		entry := t.mem.ReadU64(base + index*8)
		if entry&entryEffective == 0 {
			return 0, &Error{Kind: Ineffective}
		}
		if write && entry&entryWritable == 0 {
			return 0, &Error{Kind: Unwritable}
		}
		if !write && entry&entryReadable == 0 {
			return 0, &Error{Kind: Unreadable}
		}

		terminal := level == 1 || entry&entryLarge != 0
		if terminal {
			shift := shiftFor(level)
			frameMask := ^((uint64(1) << shift) - 1)
			entryBase := (entry &^ entryFlagMask) & frameMask
			return entryBase | (logical & ((uint64(1) << shift) - 1)), nil
		}

		base = entry &^ entryFlagMask
	}
	// Unreachable: level 1 is always terminal.
	return 0, &Error{Kind: Ineffective}
}

// insert adds a fresh cache entry, evicting the least-used non-newer entry
// if the cache is already at capacity (spec.md 3/4.2).
func (t *Translator) insert(logical, phys uint64) {
	if len(t.cache) >= cacheMaxSize {
		t.evictOne()
	}
	t.cache[logical] = &cacheEntry{phys: phys, newer: cacheNewerTTL}
}

func (t *Translator) evictOne() {
	var victim uint64
	var victimCounter int64
	found := false

	for k, e := range t.cache {
		if e.newer > 0 {
			e.newer--
			continue
		}
		if !found || e.counter < victimCounter {
			victim, victimCounter = k, e.counter
			found = true
		}
	}
	if !found {
		// Every entry is still within its grace period; fall back to the
		// globally least-used entry so the cache can still make room.
		for k, e := range t.cache {
			if !found || e.counter < victimCounter {
				victim, victimCounter = k, e.counter
				found = true
			}
		}
	}
	if found {
		delete(t.cache, victim)
	}
}
