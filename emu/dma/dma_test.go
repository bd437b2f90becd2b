package dma

import (
	"fmt"
	"testing"

	"github.com/rwsvrisc/vcore/emu/memory"
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

func TestCreateStartsAtOne(t *testing.T) {
	m := newTestMem(t, 4096)
	table := NewTable(m)

	id, err := table.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 1 {
		t.Fatalf("first descriptor id = %d, want 1", id)
	}
	t.Cleanup(func() { table.Remove(id) })

	id2, err := table.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { table.Remove(id2) })
	if id2 != 2 {
		t.Fatalf("second descriptor id = %d, want 2", id2)
	}
}

func TestSetFieldsRoundTrip(t *testing.T) {
	m := newTestMem(t, 4096)
	table := NewTable(m)
	id, err := table.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { table.Remove(id) })

	table.SetStart(id, 100)
	table.SetLength(id, 200)
	table.SetReadable(id, true)
	table.SetWritable(id, false)

	d, ok := table.Get(id)
	if !ok {
		t.Fatal("Get: descriptor not found")
	}
	if d.Start != 100 || d.Length != 200 || !d.Readable || d.Writable {
		t.Fatalf("descriptor = %+v, unexpected", d)
	}
}

func TestWindowOverflowPanics(t *testing.T) {
	m := newTestMem(t, 256)
	table := NewTable(m)
	id, err := table.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { table.Remove(id) })

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on an out-of-window descriptor")
		}
	}()
	table.SetStart(id, 200)
	table.SetLength(id, 1000) // 200+1000 > memory size 256
}

func TestDeviceOutOfWindowAccessPanics(t *testing.T) {
	memSize := uint64(4096)
	m := newTestMem(t, memSize)
	table := NewTable(m)
	id, err := table.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { table.Remove(id) })
	table.SetStart(id, 0)
	table.SetLength(id, 16)
	table.SetReadable(id, true)
	table.SetWritable(id, true)

	dev, err := BindDevice(id, memSize)
	if err != nil {
		t.Fatalf("BindDevice: %v", err)
	}
	t.Cleanup(func() { dev.Close() })

	dev.WriteByte(0, 0xAB)
	if got := dev.ReadByte(0); got != 0xAB {
		t.Fatalf("ReadByte(0) = %#x, want 0xab", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic reading past the descriptor window")
		}
	}()
	dev.ReadByte(16) // exactly at length -> out of window
}

func TestRegionNameFormat(t *testing.T) {
	if got, want := regionName(7), fmt.Sprintf("VcoreDMA%dObj", 7); got != want {
		t.Fatalf("regionName(7) = %q, want %q", got, want)
	}
}
