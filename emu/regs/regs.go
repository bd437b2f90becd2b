/*
   vcore - register bank and flag/condition algebra.

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

// Package regs holds a core's general-purpose and control register bank and
// the flag-register bit algebra described in spec.md 3/4.4.
package regs

// Flag bit positions, spec.md 3.
const (
	FlagZero             = 0
	FlagSymbol           = 1
	FlagOverflow         = 2
	FlagEqual            = 3
	FlagHigher           = 4
	FlagLower            = 5
	FlagBigger           = 6
	FlagSmaller          = 7
	FlagInterruptEnabled = 8
	FlagPagingEnabled    = 9
	FlagPrivilege        = 10
	FlagUserSpace        = 63
)

// ConditionCode selects the condition tested by conditional transfer
// instructions (jc/cc), spec.md 3.
type ConditionCode int

const (
	CondNone ConditionCode = iota
	CondZero
	CondSigned
	CondOverflow
	CondEqual
	CondNonEqual
	CondHigher
	CondLower
	CondNonHigher
	CondNonLower
	CondBigger
	CondSmaller
	CondNonBigger
	CondNonSmaller
)

// Registers is the full per-core register bank, spec.md 3. All fields are
// zero at reset.
type Registers struct {
	X        [16]uint64
	IP       uint64
	Flag     uint64
	IVT      uint64
	KPT      uint64
	UPT      uint64
	SCP      uint64
	IMsg     uint64
	IPDump   uint64
	FlagDump uint64
}

// Reset zeroes every register, per spec.md 3.
func (r *Registers) Reset() {
	*r = Registers{}
}

// BitSet sets bit i of flag.
func BitSet(flag uint64, i uint) uint64 {
	return flag | (uint64(1) << i)
}

// BitReset clears bit i of flag.
func BitReset(flag uint64, i uint) uint64 {
	return flag &^ (uint64(1) << i)
}

// BitGet reports whether bit i of flag is set.
func BitGet(flag uint64, i uint) bool {
	return flag&(uint64(1)<<i) != 0
}

func setBit(flag uint64, i uint, v bool) uint64 {
	if v {
		return BitSet(flag, i)
	}
	return BitReset(flag, i)
}

// widthBits returns the operand size in bits (8*2^width), which MarkArith
// uses to locate the sign bit at the operation's width.
func widthBits(width int) uint {
	switch width {
	case 0:
		return 8
	case 1:
		return 16
	case 2:
		return 32
	default:
		return 64
	}
}

func widthMask(width int) uint64 {
	bits := widthBits(width)
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

// MarkArith computes the Zero/Symbol/Overflow bits for an arithmetic/logic
// result at the given width, per spec.md 4.4/8 invariant 1:
//
//	Zero     <=> r mod 2^w == 0
//	Symbol   <=> bit(w-1) of r == 1
//	Overflow <=> unsigned wrap (r < max(a,b) for an add-like op)
//
// subLike inverts the Overflow test's sense, since sub/dec semantically
// represent signed/borrow overflow (spec.md 4.4).
func MarkArith(flag uint64, a, b, result uint64, width int, subLike bool) uint64 {
	mask := widthMask(width)
	r := result & mask
	signBit := widthBits(width) - 1

	flag &^= (uint64(1) << FlagZero) | (uint64(1) << FlagSymbol) | (uint64(1) << FlagOverflow)

	if r == 0 {
		flag = BitSet(flag, FlagZero)
	}
	if r&(uint64(1)<<signBit) != 0 {
		flag = BitSet(flag, FlagSymbol)
	}

	maxOperand := a & mask
	if (b & mask) > maxOperand {
		maxOperand = b & mask
	}
	wrapped := r < maxOperand
	if subLike {
		wrapped = !wrapped
	}
	if wrapped {
		flag = BitSet(flag, FlagOverflow)
	}
	return flag
}

// MarkCompare sets Equal/Higher/Lower/Bigger/Smaller from an unsigned and a
// signed comparison of a and b at the given width (spec.md 4.4's cmp).
func MarkCompare(flag uint64, a, b uint64, width int) uint64 {
	mask := widthMask(width)
	ua, ub := a&mask, b&mask
	signBit := widthBits(width) - 1
	signMask := uint64(1) << signBit
	sa, sb := int64(ua^signMask)-int64(signMask), int64(ub^signMask)-int64(signMask)

	flag &^= (uint64(1) << FlagEqual) | (uint64(1) << FlagHigher) | (uint64(1) << FlagLower) |
		(uint64(1) << FlagBigger) | (uint64(1) << FlagSmaller)

	flag = setBit(flag, FlagEqual, ua == ub)
	flag = setBit(flag, FlagHigher, ua > ub)
	flag = setBit(flag, FlagLower, ua < ub)
	flag = setBit(flag, FlagBigger, sa > sb)
	flag = setBit(flag, FlagSmaller, sa < sb)
	return flag
}

// Satisfies reports whether flag satisfies condition code cc, per spec.md 3.
func Satisfies(flag uint64, cc ConditionCode) bool {
	switch cc {
	case CondNone:
		return true
	case CondZero:
		return BitGet(flag, FlagZero)
	case CondSigned:
		return BitGet(flag, FlagSymbol)
	case CondOverflow:
		return BitGet(flag, FlagOverflow)
	case CondEqual:
		return BitGet(flag, FlagEqual)
	case CondNonEqual:
		return !BitGet(flag, FlagEqual)
	case CondHigher:
		return BitGet(flag, FlagHigher)
	case CondLower:
		return BitGet(flag, FlagLower)
	case CondNonHigher:
		return !BitGet(flag, FlagHigher)
	case CondNonLower:
		return !BitGet(flag, FlagLower)
	case CondBigger:
		return BitGet(flag, FlagBigger)
	case CondSmaller:
		return BitGet(flag, FlagSmaller)
	case CondNonBigger:
		return !BitGet(flag, FlagBigger)
	case CondNonSmaller:
		return !BitGet(flag, FlagSmaller)
	default:
		return false
	}
}

// ZeroExtend masks v to the given width and zero-extends into a full 64-bit
// value. spec.md 9's open question on sub-width arithmetic prescribes
// zero-extension as the correct behavior (as opposed to an OR-merge into the
// destination's stale high bits); every handler that writes a narrower-than-64
// result must route it through this function.
func ZeroExtend(v uint64, width int) uint64 {
	return v & widthMask(width)
}
