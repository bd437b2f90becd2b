package instr

import (
	"testing"

	"github.com/rwsvrisc/vcore/emu/regs"
)

type fakeMachine struct {
	x                              [16]uint64
	ip, flag, ivt, kpt, upt, scp   uint64
	imsg, ipDump, flagDump         uint64
	mem                            map[uint64]uint64
	nop, transferred               bool
	lastIOPort                     uint16
	lastIOVal                      uint64
	terminal                       string
	coreCount, coreID              int
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{mem: make(map[uint64]uint64), coreCount: 1}
}

func (m *fakeMachine) X(i int) uint64        { return m.x[i] }
func (m *fakeMachine) SetX(i int, v uint64)  { m.x[i] = v }
func (m *fakeMachine) IP() uint64            { return m.ip }
func (m *fakeMachine) SetIP(v uint64)        { m.ip = v }
func (m *fakeMachine) Flag() uint64          { return m.flag }
func (m *fakeMachine) SetFlag(v uint64)      { m.flag = v }
func (m *fakeMachine) IVT() uint64           { return m.ivt }
func (m *fakeMachine) SetIVT(v uint64)       { m.ivt = v }
func (m *fakeMachine) KPT() uint64           { return m.kpt }
func (m *fakeMachine) SetKPT(v uint64)       { m.kpt = v }
func (m *fakeMachine) UPT() uint64           { return m.upt }
func (m *fakeMachine) SetUPT(v uint64)       { m.upt = v }
func (m *fakeMachine) SCP() uint64           { return m.scp }
func (m *fakeMachine) SetSCP(v uint64)       { m.scp = v }
func (m *fakeMachine) IMsg() uint64          { return m.imsg }
func (m *fakeMachine) SetIMsg(v uint64)      { m.imsg = v }
func (m *fakeMachine) IPDump() uint64        { return m.ipDump }
func (m *fakeMachine) SetIPDump(v uint64)    { m.ipDump = v }
func (m *fakeMachine) FlagDump() uint64      { return m.flagDump }
func (m *fakeMachine) SetFlagDump(v uint64)  { m.flagDump = v }

func (m *fakeMachine) ReadMem(addr uint64, width int) (uint64, error) { return m.mem[addr], nil }
func (m *fakeMachine) WriteMem(addr uint64, v uint64, width int) error {
	m.mem[addr] = zeroExtend(v, width)
	return nil
}

func (m *fakeMachine) RaiseInterrupt(id int)    {}
func (m *fakeMachine) AckInterrupt()            {}
func (m *fakeMachine) SetNop(b bool)            { m.nop = b }
func (m *fakeMachine) SetTransferred(b bool)    { m.transferred = b }

func (m *fakeMachine) IOIn(port uint16, width int) (uint64, error) {
	m.lastIOPort = port
	return m.lastIOVal, nil
}
func (m *fakeMachine) IOOut(port uint16, v uint64, width int) error {
	m.lastIOPort, m.lastIOVal = port, v
	return nil
}

func (m *fakeMachine) CoreCount() int        { return m.coreCount }
func (m *fakeMachine) CoreID() int           { return m.coreID }
func (m *fakeMachine) TerminalWrite(s string) { m.terminal += s }

// TestCPUIDVendorString pins spec.md 8 scenario 1: with x0 = 0, cpuid(0)
// loads x0 and x1 with the first 16 bytes of the 24-byte identifier.
func TestCPUIDVendorString(t *testing.T) {
	m := newFakeMachine()
	table := NewBaseTable()
	entry := table[0x3C]
	if entry == nil {
		t.Fatal("cpuid opcode 0x3C missing from table")
	}
	if _, err := entry.Handler(m, []byte{0x3C}); err != nil {
		t.Fatalf("cpuid: %v", err)
	}
	vs := []byte(VendorString)
	if got := leImm(vs[0:8], 8); m.x[0] != got {
		t.Fatalf("x0 = %#x, want %#x", m.x[0], got)
	}
	if got := leImm(vs[8:16], 8); m.x[1] != got {
		t.Fatalf("x1 = %#x, want %#x", m.x[1], got)
	}
}

// TestAddOverflow pins spec.md 8 scenario 2's literal operands via the
// encoding byte1=(width<<4)|srcA, byte2=(srcB<<4)|dest.
func TestAddOverflow(t *testing.T) {
	m := newFakeMachine()
	m.x[0] = 0xFFFFFFFFFFFFFFFE
	m.x[1] = 2
	table := NewBaseTable()
	entry := table[0x01]
	// width=3 (64-bit), srcA=x0, srcB=x1, dest=x3
	b := []byte{0x01, byte(3<<4) | 0, byte(1<<4) | 3}
	if _, err := entry.Handler(m, b); err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.x[3] != 0 {
		t.Fatalf("x3 = %#x, want 0", m.x[3])
	}
	if !regs.BitGet(m.flag, regs.FlagZero) {
		t.Fatal("Zero flag should be set")
	}
	if !regs.BitGet(m.flag, regs.FlagOverflow) {
		t.Fatal("Overflow flag should be set on wraparound")
	}
}

// TestCmpSignedVsUnsigned pins spec.md 8 scenario 3.
func TestCmpSignedVsUnsigned(t *testing.T) {
	m := newFakeMachine()
	m.x[0] = 0xFFFFFFFFFFFFFFFF
	m.x[1] = 1
	table := NewBaseTable()
	entry := table[0x09]
	b := []byte{0x09, byte(0<<4) | 1} // regA=x0, regB=x1
	if _, err := entry.Handler(m, b); err != nil {
		t.Fatalf("cmp: %v", err)
	}
	if !regs.BitGet(m.flag, regs.FlagHigher) {
		t.Fatal("Higher should be set: unsigned 2^64-1 > 1")
	}
	if !regs.BitGet(m.flag, regs.FlagSmaller) {
		t.Fatal("Smaller should be set: signed -1 < 1")
	}
}

func TestSubWidthZeroExtends(t *testing.T) {
	m := newFakeMachine()
	m.x[0] = 0xFF
	m.x[1] = 0x02
	table := NewBaseTable()
	entry := table[0x01]
	b := []byte{0x01, byte(0<<4) | 0, byte(1<<4) | 2} // width 0 (8-bit), dest x2
	if _, err := entry.Handler(m, b); err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.x[2] != 0x01 {
		t.Fatalf("x2 = %#x, want 0x01 (0xFF+0x02 truncated to 8 bits)", m.x[2])
	}
}

func TestLoopStandardSignExtension(t *testing.T) {
	m := newFakeMachine()
	m.x[0] = 1
	m.ip = 0x100
	table := NewBaseTable()
	entry := table[0x13]
	// imm32 = -16 (0xFFFFFFF0), little-endian bytes
	b := []byte{0x13, 0x00, 0xF0, 0xFF, 0xFF, 0xFF}
	adv, err := entry.Handler(m, b)
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if adv != 0 || !m.transferred {
		t.Fatal("loop should be a transfer instruction")
	}
	if m.ip != 0x100-16 {
		t.Fatalf("ip = %#x, want %#x", m.ip, 0x100-16)
	}
}

func TestLoopZeroRegisterFallsThrough(t *testing.T) {
	m := newFakeMachine()
	m.x[0] = 0
	table := NewBaseTable()
	entry := table[0x13]
	b := []byte{0x13, 0x00, 0xF0, 0xFF, 0xFF, 0xFF}
	adv, err := entry.Handler(m, b)
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if adv != 6 || m.transferred {
		t.Fatal("loop with a zero counter register should just advance past itself")
	}
}

func TestLdiZeroExtendsAtWidth(t *testing.T) {
	m := newFakeMachine()
	table := NewBaseTable()
	entry := table[0x20]
	b := append([]byte{0x20, byte(0<<4) | 1}, 0xFF, 0, 0, 0, 0, 0, 0, 0) // reg=x0, width=1 (16-bit)
	if _, err := entry.Handler(m, b); err != nil {
		t.Fatalf("ldi: %v", err)
	}
	if m.x[0] != 0xFF {
		t.Fatalf("x0 = %#x, want 0xFF", m.x[0])
	}
}

func TestEiDiTogglesInterruptEnabled(t *testing.T) {
	m := newFakeMachine()
	table := NewBaseTable()
	if _, err := table[0x30].Handler(m, []byte{0x30}); err != nil {
		t.Fatal(err)
	}
	if !regs.BitGet(m.flag, regs.FlagInterruptEnabled) {
		t.Fatal("ei should set InterruptEnabled")
	}
	if _, err := table[0x31].Handler(m, []byte{0x31}); err != nil {
		t.Fatal(err)
	}
	if regs.BitGet(m.flag, regs.FlagInterruptEnabled) {
		t.Fatal("di should clear InterruptEnabled")
	}
}

func TestLdmStmRoundTrip(t *testing.T) {
	m := newFakeMachine()
	m.x[1] = 0x40 // address register
	m.x[2] = 0xABCD
	table := NewBaseTable()

	stm := table[0x22]
	sb := []byte{0x22, byte(1<<4) | 3, byte(2 << 4)} // addrReg=x1, width=3, srcReg=x2
	if _, err := stm.Handler(m, sb); err != nil {
		t.Fatalf("stm: %v", err)
	}

	ldm := table[0x21]
	lb := []byte{0x21, byte(3<<4) | 3, byte(1 << 4)} // dest=x3, width=3, addrReg=x1
	if _, err := ldm.Handler(m, lb); err != nil {
		t.Fatalf("ldm: %v", err)
	}
	if m.x[3] != 0xABCD {
		t.Fatalf("x3 = %#x, want 0xABCD", m.x[3])
	}
}

func TestConditionSatisfiedTable(t *testing.T) {
	var flag uint64
	if !ConditionSatisfied(flag, 0) {
		t.Fatal("cc 0 (always) should be satisfied unconditionally")
	}
	flag = 1 << 0 // Zero
	if !ConditionSatisfied(flag, 1) {
		t.Fatal("cc 1 (zero) should match Zero flag")
	}
	if ConditionSatisfied(flag, 3) {
		t.Fatal("cc 3 (overflow) should not match when Overflow is clear")
	}
}

func TestInvalidOpcodeSlotIsNil(t *testing.T) {
	table := NewBaseTable()
	if table[0xFF] != nil {
		t.Fatal("unassigned opcode 0xFF should be a nil table entry")
	}
}
