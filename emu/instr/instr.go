/*
   vcore - instruction dispatch table and base opcode handlers.

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

// Package instr implements the 256-entry instruction dispatch table and the
// base set of 64 opcodes described in spec.md 4.4. Handlers operate against
// the Machine interface rather than a concrete core type, so this package
// never imports emu/core (which imports instr for the table type) - the
// same inversion the teacher uses between emu/cpu and emu/core.
//
// spec.md 4.4 only fixes the opcode byte and the general nibble-packing
// rule ("higher/lower nibbles of subsequent bytes select operand
// registers/widths"); the precise bit layout per opcode is left to the
// implementation. The layout adopted here is pinned by, and was derived
// from, the literal byte sequences in spec.md 8's end-to-end scenarios:
//
//	single-register+width operand byte: (reg<<4)|width
//	two-register operand byte (cmp):    (regA<<4)|regB
//	three-register ops (add et al.):    byte1=(width<<4)|srcA, byte2=(srcB<<4)|dest
//
// original_source/src/vrisc/base.rs uses a different, mid-draft opcode
// numbering (e.g. a stray mv at 0x1F) and is not reproduced; the table below
// follows spec.md 4.4's final numbering exactly.
package instr

import (
	"fmt"

	"github.com/rwsvrisc/vcore/emu/regs"
)

// Machine is everything a handler needs from the owning core.
type Machine interface {
	X(i int) uint64
	SetX(i int, v uint64)
	IP() uint64
	SetIP(v uint64)
	Flag() uint64
	SetFlag(v uint64)
	IVT() uint64
	SetIVT(v uint64)
	KPT() uint64
	SetKPT(v uint64)
	UPT() uint64
	SetUPT(v uint64)
	SCP() uint64
	SetSCP(v uint64)
	IMsg() uint64
	SetIMsg(v uint64)
	IPDump() uint64
	SetIPDump(v uint64)
	FlagDump() uint64
	SetFlagDump(v uint64)

	ReadMem(addr uint64, width int) (uint64, error)
	WriteMem(addr uint64, v uint64, width int) error

	RaiseInterrupt(id int)
	AckInterrupt()
	SetNop(bool)
	SetTransferred(bool)

	IOIn(port uint16, width int) (uint64, error)
	IOOut(port uint16, v uint64, width int) error

	CoreCount() int
	CoreID() int
	TerminalWrite(s string)
}

// Handler executes one instruction given its full byte sequence (opcode
// included) and returns the number of bytes hot_ip should advance by.
// Transfer instructions return 0 and call m.SetTransferred(true) themselves
// (spec.md 4.4).
type Handler func(m Machine, b []byte) (int, error)

// Entry is one dispatch-table slot: its fetch Length and its Handler. A nil
// Handler means the slot is empty (spec.md 4.4: raises InvalidInstruction).
type Entry struct {
	Length  int
	Handler Handler
}

// Table is the fixed 256-entry dispatch table, spec.md 9: reset to the base
// set on core reset, with 0x3D/0x3E reserved for future load/unload opcodes.
type Table [256]*Entry

// NewBaseTable returns the base 64-opcode table described in spec.md 4.4.
func NewBaseTable() *Table {
	var t Table
	set := func(op byte, length int, h Handler) { t[op] = &Entry{Length: length, Handler: h} }

	set(0x00, 1, iNop)
	set(0x01, 3, iAdd)
	set(0x02, 3, iSub)
	set(0x03, 2, iInc)
	set(0x04, 2, iDec)
	set(0x05, 3, iShl)
	set(0x06, 3, iShr)
	set(0x07, 3, iRol)
	set(0x08, 3, iRor)
	set(0x09, 2, iCmp)
	set(0x0A, 3, iAnd)
	set(0x0B, 3, iOr)
	set(0x0C, 2, iNot)
	set(0x0D, 3, iXor)
	set(0x10, 10, iJc)
	set(0x11, 10, iCc)
	set(0x12, 1, iRet)
	set(0x13, 6, iLoop)
	set(0x14, 2, iIr)
	set(0x15, 1, iSysc)
	set(0x16, 1, iSysr)
	set(0x20, 10, iLdi)
	set(0x21, 3, iLdm)
	set(0x22, 3, iStm)
	set(0x23, 3, iIn)
	set(0x24, 3, iOut)
	set(0x30, 1, iEi)
	set(0x31, 1, iDi)
	set(0x32, 1, iEp)
	set(0x33, 1, iDp)
	set(0x34, 2, iLivt)
	set(0x35, 2, iLkpt)
	set(0x36, 2, iLupt)
	set(0x37, 2, iLscp)
	set(0x38, 2, iLIPDump)
	set(0x39, 2, iSIPDump)
	set(0x3A, 2, iLFlagDump)
	set(0x3B, 2, iSFlagDump)
	set(0x3C, 1, iCPUID)
	return &t
}

func hi(b byte) int     { return int(b >> 4) }
func lo(b byte) int     { return int(b & 0x0F) }
func width(b byte) int  { return int(b & 0x3) }

// widthBits returns the operand size in bits (8, 16, 32 or 64) for width w.
func widthBits(w int) uint { return uint(8) << uint(w) }

func zeroExtend(v uint64, w int) uint64 { return regs.ZeroExtend(v, w) }
func markArith(flag, a, b, result uint64, w int, subLike bool) uint64 {
	return regs.MarkArith(flag, a, b, result, w, subLike)
}
func markCompare(flag, a, b uint64, w int) uint64 {
	return regs.MarkCompare(flag, a, b, w)
}

func iNop(m Machine, b []byte) (int, error) {
	m.SetNop(true)
	return 1, nil
}

func iAdd(m Machine, b []byte) (int, error) {
	w := width(b[1] >> 4)
	srcA, srcB, dest := lo(b[1]), hi(b[2]), lo(b[2])
	a, bb := m.X(srcA), m.X(srcB)
	result := a + bb
	m.SetX(dest, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, bb, result, w, false))
	return 3, nil
}

func iSub(m Machine, b []byte) (int, error) {
	w := width(b[1] >> 4)
	srcA, srcB, dest := lo(b[1]), hi(b[2]), lo(b[2])
	a, bb := m.X(srcA), m.X(srcB)
	result := a - bb
	m.SetX(dest, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, bb, result, w, true))
	return 3, nil
}

func iInc(m Machine, b []byte) (int, error) {
	reg, w := hi(b[1]), width(b[1])
	a := m.X(reg)
	result := a + 1
	m.SetX(reg, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, 1, result, w, false))
	return 2, nil
}

func iDec(m Machine, b []byte) (int, error) {
	reg, w := hi(b[1]), width(b[1])
	a := m.X(reg)
	result := a - 1
	m.SetX(reg, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, 1, result, w, true))
	return 2, nil
}

func shiftOp(m Machine, b []byte, op func(a uint64, n uint, w int) uint64) (int, error) {
	w := width(b[1] >> 4)
	srcA, srcB, dest := lo(b[1]), hi(b[2]), lo(b[2])
	a, n := m.X(srcA), uint(m.X(srcB))
	result := op(a, n, w)
	m.SetX(dest, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, a, result, w, false))
	return 3, nil
}

func iShl(m Machine, b []byte) (int, error) {
	return shiftOp(m, b, func(a uint64, n uint, w int) uint64 { return a << n })
}

func iShr(m Machine, b []byte) (int, error) {
	return shiftOp(m, b, func(a uint64, n uint, w int) uint64 { return zeroExtend(a, w) >> n })
}

func iRol(m Machine, b []byte) (int, error) {
	return shiftOp(m, b, func(a uint64, n uint, w int) uint64 {
		bits := widthBits(w)
		n %= bits
		v := zeroExtend(a, w)
		return zeroExtend((v<<n)|(v>>(bits-n)), w)
	})
}

func iRor(m Machine, b []byte) (int, error) {
	return shiftOp(m, b, func(a uint64, n uint, w int) uint64 {
		bits := widthBits(w)
		n %= bits
		v := zeroExtend(a, w)
		return zeroExtend((v>>n)|(v<<(bits-n)), w)
	})
}

func iCmp(m Machine, b []byte) (int, error) {
	regA, regB := hi(b[1]), lo(b[1])
	m.SetFlag(markCompare(m.Flag(), m.X(regA), m.X(regB), 3))
	return 2, nil
}

func iAnd(m Machine, b []byte) (int, error) {
	w := width(b[1] >> 4)
	srcA, srcB, dest := lo(b[1]), hi(b[2]), lo(b[2])
	a, bb := m.X(srcA), m.X(srcB)
	result := a & bb
	m.SetX(dest, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, bb, result, w, false))
	return 3, nil
}

func iOr(m Machine, b []byte) (int, error) {
	w := width(b[1] >> 4)
	srcA, srcB, dest := lo(b[1]), hi(b[2]), lo(b[2])
	a, bb := m.X(srcA), m.X(srcB)
	result := a | bb
	m.SetX(dest, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, bb, result, w, false))
	return 3, nil
}

func iNot(m Machine, b []byte) (int, error) {
	reg, w := hi(b[1]), width(b[1])
	a := m.X(reg)
	result := ^a
	m.SetX(reg, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, a, result, w, false))
	return 2, nil
}

func iXor(m Machine, b []byte) (int, error) {
	w := width(b[1] >> 4)
	srcA, srcB, dest := lo(b[1]), hi(b[2]), lo(b[2])
	a, bb := m.X(srcA), m.X(srcB)
	result := a ^ bb
	m.SetX(dest, zeroExtend(result, w))
	m.SetFlag(markArith(m.Flag(), a, bb, result, w, false))
	return 3, nil
}

// ConditionSatisfied reports whether flag satisfies condition code cc
// (spec.md 3); exported so emu/core's tests can probe it directly.
func ConditionSatisfied(flag uint64, cc int) bool {
	return regs.Satisfies(flag, regs.ConditionCode(cc))
}

func leImm(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

func iJc(m Machine, b []byte) (int, error) {
	cc, w := lo(b[1]), hi(b[1])
	target := zeroExtend(leImm(b[2:10], 8), w)
	if ConditionSatisfied(m.Flag(), cc) {
		m.SetIP(target)
		m.SetTransferred(true)
	}
	return 0, nil
}

func iCc(m Machine, b []byte) (int, error) {
	cc, w := lo(b[1]), hi(b[1])
	target := zeroExtend(leImm(b[2:10], 8), w)
	if ConditionSatisfied(m.Flag(), cc) {
		m.SetIPDump(m.IP())
		m.SetIP(target)
		m.SetTransferred(true)
	}
	return 0, nil
}

func iRet(m Machine, b []byte) (int, error) {
	m.SetIP(m.IPDump())
	m.SetTransferred(true)
	return 0, nil
}

// iLoop implements the corrected, standard two's-complement sign-extension
// of the 32-bit offset prescribed by spec.md 9; original_source conditionally
// negates the value based on its top bit instead, which is not standard
// sign-extension and is not reproduced.
func iLoop(m Machine, b []byte) (int, error) {
	reg := hi(b[1])
	if m.X(reg) == 0 {
		return 6, nil
	}
	raw := uint32(leImm(b[2:6], 4))
	delta := int64(int32(raw))
	m.SetIP(uint64(int64(m.IP()) + delta))
	m.SetTransferred(true)
	return 0, nil
}

func iIr(m Machine, b []byte) (int, error) {
	switch b[1] {
	case 0:
		m.AckInterrupt()
		return 2, nil
	case 1:
		m.SetIP(m.IPDump())
		m.SetFlag(m.FlagDump())
		m.SetTransferred(true)
		return 0, nil
	default:
		return 0, errInvalidInstruction
	}
}

func iSysc(m Machine, b []byte) (int, error) {
	m.SetIPDump(m.IP())
	m.SetFlagDump(m.Flag())
	m.SetIP(m.SCP())
	m.SetFlag(regs.BitReset(m.Flag(), regs.FlagPrivilege))
	m.SetTransferred(true)
	return 0, nil
}

func iSysr(m Machine, b []byte) (int, error) {
	m.SetIP(m.IPDump())
	m.SetFlag(m.FlagDump())
	m.SetTransferred(true)
	return 0, nil
}

func iLdi(m Machine, b []byte) (int, error) {
	reg, w := hi(b[1]), width(b[1])
	imm := leImm(b[2:10], 8)
	m.SetX(reg, zeroExtend(imm, w))
	return 10, nil
}

func iLdm(m Machine, b []byte) (int, error) {
	dest, w := hi(b[1]), width(b[1])
	addrReg := hi(b[2])
	v, err := m.ReadMem(m.X(addrReg), w)
	if err != nil {
		return 0, err
	}
	m.SetX(dest, zeroExtend(v, w))
	return 3, nil
}

func iStm(m Machine, b []byte) (int, error) {
	addrReg, w := hi(b[1]), width(b[1])
	srcReg := hi(b[2])
	if err := m.WriteMem(m.X(addrReg), m.X(srcReg), w); err != nil {
		return 0, err
	}
	return 3, nil
}

func iIn(m Machine, b []byte) (int, error) {
	dest, w := hi(b[1]), width(b[1])
	portReg := hi(b[2])
	v, err := m.IOIn(uint16(m.X(portReg)), w)
	if err != nil {
		return 0, err
	}
	m.SetX(dest, zeroExtend(v, w))
	return 3, nil
}

func iOut(m Machine, b []byte) (int, error) {
	src, w := hi(b[1]), width(b[1])
	portReg := hi(b[2])
	if err := m.IOOut(uint16(m.X(portReg)), m.X(src), w); err != nil {
		return 0, err
	}
	return 3, nil
}

func iEi(m Machine, b []byte) (int, error) {
	m.SetFlag(regs.BitSet(m.Flag(), regs.FlagInterruptEnabled))
	return 1, nil
}

func iDi(m Machine, b []byte) (int, error) {
	m.SetFlag(regs.BitReset(m.Flag(), regs.FlagInterruptEnabled))
	return 1, nil
}

func iEp(m Machine, b []byte) (int, error) {
	m.SetFlag(regs.BitSet(m.Flag(), regs.FlagPagingEnabled))
	return 1, nil
}

func iDp(m Machine, b []byte) (int, error) {
	m.SetFlag(regs.BitReset(m.Flag(), regs.FlagPagingEnabled))
	return 1, nil
}

func iLivt(m Machine, b []byte) (int, error) {
	m.SetIVT(m.X(hi(b[1])))
	return 2, nil
}

func iLkpt(m Machine, b []byte) (int, error) {
	m.SetKPT(m.X(hi(b[1])))
	return 2, nil
}

func iLupt(m Machine, b []byte) (int, error) {
	m.SetUPT(m.X(hi(b[1])))
	return 2, nil
}

func iLscp(m Machine, b []byte) (int, error) {
	m.SetSCP(m.X(hi(b[1])))
	return 2, nil
}

func iLIPDump(m Machine, b []byte) (int, error) {
	m.SetX(hi(b[1]), m.IPDump())
	return 2, nil
}

func iSIPDump(m Machine, b []byte) (int, error) {
	m.SetIPDump(m.X(hi(b[1])))
	return 2, nil
}

func iLFlagDump(m Machine, b []byte) (int, error) {
	m.SetX(hi(b[1]), m.FlagDump())
	return 2, nil
}

func iSFlagDump(m Machine, b []byte) (int, error) {
	m.SetFlagDump(m.X(hi(b[1])))
	return 2, nil
}

// VendorString is the 24-byte, NUL-padded identifier cpuid sub-function 0
// reports, packed little-endian 8 bytes per register across x[0..2]
// (spec.md 8 scenario 1).
const VendorString = "RWS Vrisc Vcore 0.2.0\x00\x00\x00"

func iCPUID(m Machine, b []byte) (int, error) {
	switch m.X(0) {
	case 0:
		vs := []byte(VendorString)
		m.SetX(0, leImm(vs[0:8], 8))
		m.SetX(1, leImm(vs[8:16], 8))
		m.SetX(2, leImm(vs[16:24], 8))
		m.SetX(3, 0)
	case 1:
		m.SetX(0, uint64(m.CoreCount()))
	case 2:
		m.SetX(0, uint64(m.CoreID()))
	case 3:
		addr := m.X(1)
		var sb []byte
		for i := 0; i < 4096; i++ {
			v, err := m.ReadMem(addr+uint64(i), 0)
			if err != nil {
				return 0, err
			}
			c := byte(v)
			if c == 0 {
				break
			}
			sb = append(sb, c)
		}
		m.TerminalWrite(string(sb))
	case 4:
		m.SetX(0, 1)
	}
	return 1, nil
}

var errInvalidInstruction = fmt.Errorf("instr: invalid instruction")

// ErrInvalidInstruction is returned by a handler when a sub-code is out of
// range (spec.md 7). An empty opcode slot is a nil Table entry, not an error.
var ErrInvalidInstruction = errInvalidInstruction
