package memory

import (
	"testing"
)

func newTestMemory(t *testing.T, size uint64) *Memory {
	t.Helper()
	m, err := New(size)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestLoadROMAndReadWidths(t *testing.T) {
	m := newTestMemory(t, 4096)

	rom := []byte{0x20, 0x03, 0x52, 0x57, 0x53, 0x20, 0x56, 0x72, 0x69, 0x73, 0x3C}
	m.LoadROM(rom)

	if got := m.GetByte(0); got != 0x20 {
		t.Fatalf("GetByte(0) = %#x, want 0x20", got)
	}
	if got := m.GetByte(10); got != 0x3C {
		t.Fatalf("GetByte(10) = %#x, want 0x3c", got)
	}
	if got := m.ReadWidth(2, 1); got != 0x5752 {
		t.Fatalf("ReadWidth(2, 1) = %#x, want 0x5752", got)
	}
}

func TestReadWriteWidthZeroExtends(t *testing.T) {
	m := newTestMemory(t, 64)

	m.WriteWidth(0, 0xAABBCCDD, 2) // 32-bit width
	got := m.ReadWidth(0, 2)
	if got != 0xAABBCCDD {
		t.Fatalf("ReadWidth(0,2) = %#x, want 0xaabbccdd", got)
	}

	// Bytes beyond the 32-bit write must be untouched (still zero).
	if m.GetByte(4) != 0 {
		t.Fatalf("byte 4 should be untouched by a 32-bit write")
	}
}

func TestReadU64LittleEndian(t *testing.T) {
	m := newTestMemory(t, 64)
	m.WriteU64(8, 0x0102030405060708)
	if got := m.ReadU64(8); got != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %#x", got)
	}
	if m.GetByte(8) != 0x08 {
		t.Fatalf("expected little-endian layout, byte 8 = %#x", m.GetByte(8))
	}
}

func TestCheckAddr(t *testing.T) {
	m := newTestMemory(t, 16)
	if !m.CheckAddr(15) {
		t.Fatal("addr 15 should be valid in a 16-byte region")
	}
	if m.CheckAddr(16) {
		t.Fatal("addr 16 should be out of range in a 16-byte region")
	}
}
