package addr

import (
	"testing"

	"github.com/rwsvrisc/vcore/emu/memory"
	"github.com/rwsvrisc/vcore/emu/regs"
)

func newTestMem(t *testing.T, size uint64) *memory.Memory {
	t.Helper()
	m, err := memory.New(size)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

const flagsRW = entryEffective | entryReadable | entryWritable

func TestTranslateFullFourLevelWalk(t *testing.T) {
	m := newTestMem(t, 1<<20)

	const l4, l3, l2, l1, offset = uint64(1), uint64(2), uint64(3), uint64(4), uint64(0x10)
	const l3Base, l2Base, l1Base, frameBase = uint64(0x10000), uint64(0x20000), uint64(0x30000), uint64(0x40000)

	m.WriteU64(0+8*l4, l3Base|flagsRW)
	m.WriteU64(l3Base+8*l3, l2Base|flagsRW)
	m.WriteU64(l2Base+8*l2, l1Base|flagsRW)
	m.WriteU64(l1Base+8*l1, frameBase|flagsRW)

	logical := (l4 << shiftFor(4)) | (l3 << shiftFor(3)) | (l2 << shiftFor(2)) | (l1 << shiftFor(1)) | offset

	tr := New(m)
	flag := uint64(0)
	flag = regs.BitSet(flag, regs.FlagPagingEnabled)

	phys, err := tr.Translate(logical, flag, 0, 0, false)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := frameBase | offset
	if phys != want {
		t.Fatalf("Translate = %#x, want %#x", phys, want)
	}
}

func TestTranslatePagingDisabledIsIdentity(t *testing.T) {
	m := newTestMem(t, 1<<20)
	tr := New(m)
	phys, err := tr.Translate(0x1234, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if phys != 0x1234 {
		t.Fatalf("Translate = %#x, want identity 0x1234", phys)
	}
}

func TestTranslateLargePageEarlyTermination(t *testing.T) {
	m := newTestMem(t, 1<<24)
	const l4, l3, l2 = uint64(5), uint64(1), uint64(2)
	const l3Base, l2Base = uint64(0x10000), uint64(0x20000)
	const frameBase = uint64(0x800000)
	m.WriteU64(0+8*l4, l3Base|flagsRW)
	m.WriteU64(l3Base+8*l3, l2Base|flagsRW)
	m.WriteU64(l2Base+8*l2, frameBase|flagsRW|entryLarge)

	logical := (l4 << shiftFor(4)) | (l3 << shiftFor(3)) | (l2 << shiftFor(2)) | 0x123456 // arbitrary low bits within the L2 frame

	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)
	phys, err := tr.Translate(logical, flag, 0, 0, false)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := frameBase | (logical & ((uint64(1) << shiftFor(2)) - 1))
	if phys != want {
		t.Fatalf("Translate = %#x, want %#x", phys, want)
	}
}

func TestTranslateIneffectiveEntryFaults(t *testing.T) {
	m := newTestMem(t, 1<<20)
	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)

	// Entry at index 0 of the L4 table is left zero (Effectivity clear).
	_, err := tr.Translate(0, flag, 0, 0, false)
	if err == nil {
		t.Fatal("expected an Ineffective translation error")
	}
	aerr, ok := err.(*Error)
	if !ok || aerr.Kind != Ineffective {
		t.Fatalf("err = %v, want Ineffective", err)
	}
}

func TestTranslateUnwritableOnWriteAccess(t *testing.T) {
	m := newTestMem(t, 1<<20)
	const frameBase = uint64(0x40000)
	// Effective + Readable, but not Writable, and terminal via LargePage.
	m.WriteU64(0, frameBase|entryEffective|entryReadable|entryLarge)

	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)
	_, err := tr.Translate(0, flag, 0, 0, true)
	aerr, ok := err.(*Error)
	if !ok || aerr.Kind != Unwritable {
		t.Fatalf("err = %v, want Unwritable", err)
	}
}

func TestTranslateCacheHitMatchesMiss(t *testing.T) {
	m := newTestMem(t, 1<<20)
	const frameBase = uint64(0x40000)
	m.WriteU64(0, frameBase|flagsRW|entryLarge)

	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)

	first, err := tr.Translate(0x10, flag, 0, 0, false)
	if err != nil {
		t.Fatalf("Translate (miss): %v", err)
	}
	second, err := tr.Translate(0x10, flag, 0, 0, false)
	if err != nil {
		t.Fatalf("Translate (hit): %v", err)
	}
	if first != second {
		t.Fatalf("cache hit %#x != miss %#x", second, first)
	}
}

func TestFlushClearsCache(t *testing.T) {
	m := newTestMem(t, 1<<20)
	const frameBase = uint64(0x40000)
	m.WriteU64(0, frameBase|flagsRW|entryLarge)

	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)
	if _, err := tr.Translate(0x10, flag, 0, 0, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(tr.cache) != 1 {
		t.Fatalf("cache size = %d, want 1", len(tr.cache))
	}
	tr.Flush()
	if len(tr.cache) != 0 {
		t.Fatalf("cache size after flush = %d, want 0", len(tr.cache))
	}
}

func TestCacheEvictsPastCapacity(t *testing.T) {
	m := newTestMem(t, 1<<24)
	const frameBase = uint64(0x800000)
	m.WriteU64(0, frameBase|flagsRW|entryLarge)

	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)

	// Insert more than cacheMaxSize distinct logical addresses (all mapped
	// via the same large page so the walk always succeeds).
	for i := 0; i < cacheMaxSize+32; i++ {
		logical := uint64(i) * 0x100
		if _, err := tr.Translate(logical, flag, 0, 0, false); err != nil {
			t.Fatalf("Translate(%d): %v", i, err)
		}
	}
	if len(tr.cache) > cacheMaxSize {
		t.Fatalf("cache size = %d, exceeds bound %d", len(tr.cache), cacheMaxSize)
	}
}

func TestTranslateWrongPrivilegeOnKernelSpaceFromUser(t *testing.T) {
	m := newTestMem(t, 1<<20)
	const frameBase = uint64(0x40000)
	m.WriteU64(0, frameBase|flagsRW|entryLarge)

	tr := New(m)
	flag := regs.BitSet(0, regs.FlagPagingEnabled)
	flag = regs.BitSet(flag, regs.FlagPrivilege) // user mode

	// logical bit 63 (UserSpace marker) is 0 => kernel space, inaccessible to user.
	_, err := tr.Translate(0x10, flag, 0, 0, false)
	aerr, ok := err.(*Error)
	if !ok || aerr.Kind != WrongPrivilege {
		t.Fatalf("err = %v, want WrongPrivilege", err)
	}
}
