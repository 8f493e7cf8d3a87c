/*
 * riscvcore - F/D extension: single- and double-precision floating point.
 *
 * Copyright 2026, riscvcore contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package hart

import (
	"math"

	"github.com/rvcore/machine/trap"
)

const nanBoxUpper = uint64(0xffff_ffff_0000_0000)

// canonicalNaN32/64 are the canonical quiet NaNs every NaN-producing
// result is normalized to, per the host-FPU-mirroring contract.
const (
	canonicalNaN32 = uint32(0x7fc0_0000)
	canonicalNaN64 = uint64(0x7ff8_0000_0000_0000)
)

func box32(v uint32) uint64 { return nanBoxUpper | uint64(v) }

func (h *Hart) getF32(i uint32) float32 {
	bits := h.fregs[i&0x1f]
	if bits&nanBoxUpper != nanBoxUpper {
		return math.Float32frombits(canonicalNaN32)
	}
	return math.Float32frombits(uint32(bits))
}

func (h *Hart) getF64(i uint32) float64 { return math.Float64frombits(h.fregs[i&0x1f]) }

func (h *Hart) setF32(i uint32, v float32) {
	bits := math.Float32bits(v)
	if math.IsNaN(float64(v)) {
		bits = canonicalNaN32
	}
	h.fregs[i&0x1f] = box32(bits)
	h.markFSDirty()
}

func (h *Hart) setF64(i uint32, v float64) {
	bits := math.Float64bits(v)
	if math.IsNaN(v) {
		bits = canonicalNaN64
	}
	h.fregs[i&0x1f] = bits
	h.markFSDirty()
}

func (h *Hart) markFSDirty() { h.mstatus = withFS(h.mstatus, fsDirty) }

func (h *Hart) fpEnabled() bool { return fsField(h.mstatus) != 0 }

func (h *Hart) execFP(inst inst32, pc uint64) bool {
	if !h.fpEnabled() {
		return h.illegal(pc, uint32(inst))
	}
	double := inst.funct7()&0x1 != 0 // fmt field bit0: 0=S, 1=D for the common encodings used here

	switch inst.opcode() {
	case opLoadFP:
		return h.execFLoad(inst, pc)
	case opStoreFP:
		return h.execFStore(inst, pc)
	case opFMADD, opFMSUB, opFNMSUB, opFNMADD:
		return h.execFMA(inst, pc, double)
	case opOPFP:
		return h.execFOp(inst, pc)
	}
	return h.illegal(pc, uint32(inst))
}

func (h *Hart) execFLoad(inst inst32, pc uint64) bool {
	addr := h.getReg(inst.rs1()) + inst.immI()
	switch inst.funct3() {
	case 2:
		v, ok := h.loadN(addr, 4, trap.AccessRead)
		if !ok {
			return false
		}
		h.fregs[inst.rd()&0x1f] = box32(uint32(v))
	case 3:
		v, ok := h.loadN(addr, 8, trap.AccessRead)
		if !ok {
			return false
		}
		h.fregs[inst.rd()&0x1f] = v
	default:
		return h.illegal(pc, uint32(inst))
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execFStore(inst inst32, pc uint64) bool {
	addr := h.getReg(inst.rs1()) + inst.immS()
	switch inst.funct3() {
	case 2:
		if !h.storeN(addr, 4, uint64(uint32(h.fregs[inst.rs2()&0x1f]))) {
			return false
		}
	case 3:
		if !h.storeN(addr, 8, h.fregs[inst.rs2()&0x1f]) {
			return false
		}
	default:
		return h.illegal(pc, uint32(inst))
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execFMA(inst inst32, pc uint64, double bool) bool {
	negA, negC := inst.opcode() == opFNMADD || inst.opcode() == opFNMSUB, inst.opcode() == opFMSUB || inst.opcode() == opFNMADD
	if double {
		a, b, c := h.getF64(inst.rs1()), h.getF64(inst.rs2()), h.getF64(inst.rs3())
		if negA {
			a = -a
		}
		if negC {
			c = -c
		}
		h.setF64(inst.rd(), math.FMA(a, b, c))
	} else {
		a, b, c := float64(h.getF32(inst.rs1())), float64(h.getF32(inst.rs2())), float64(h.getF32(inst.rs3()))
		if negA {
			a = -a
		}
		if negC {
			c = -c
		}
		h.setF32(inst.rd(), float32(math.FMA(a, b, c)))
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execFOp(inst inst32, pc uint64) bool {
	f7 := inst.funct7()
	switch f7 {
	case 0x20: // FCVT.S.D: widen-to-narrow, rs2 selects source format (D)
		h.setF32(inst.rd(), float32(h.getF64(inst.rs1())))
		h.pc = pc + 4
		return true
	case 0x21: // FCVT.D.S
		h.setF64(inst.rd(), float64(h.getF32(inst.rs1())))
		h.pc = pc + 4
		return true
	}

	double := f7&0x1 != 0
	base := f7 &^ 0x1

	switch base {
	case 0x00, 0x04: // FADD.S/D (0x00), FSUB.S/D (0x04)
		sub := base == 0x04
		if double {
			a, b := h.getF64(inst.rs1()), h.getF64(inst.rs2())
			if sub {
				h.setF64(inst.rd(), a-b)
			} else {
				h.setF64(inst.rd(), a+b)
			}
		} else {
			a, b := h.getF32(inst.rs1()), h.getF32(inst.rs2())
			if sub {
				h.setF32(inst.rd(), a-b)
			} else {
				h.setF32(inst.rd(), a+b)
			}
		}
	case 0x08: // FMUL
		if double {
			h.setF64(inst.rd(), h.getF64(inst.rs1())*h.getF64(inst.rs2()))
		} else {
			h.setF32(inst.rd(), h.getF32(inst.rs1())*h.getF32(inst.rs2()))
		}
	case 0x0c: // FDIV
		if double {
			h.setF64(inst.rd(), h.getF64(inst.rs1())/h.getF64(inst.rs2()))
		} else {
			h.setF32(inst.rd(), h.getF32(inst.rs1())/h.getF32(inst.rs2()))
		}
	case 0x2c: // FSQRT
		if double {
			h.setF64(inst.rd(), math.Sqrt(h.getF64(inst.rs1())))
		} else {
			h.setF32(inst.rd(), float32(math.Sqrt(float64(h.getF32(inst.rs1())))))
		}
	case 0x10: // FSGNJ family
		return h.execFSgnj(inst, pc, double)
	case 0x14: // FMIN/FMAX
		return h.execFMinMax(inst, pc, double)
	case 0x50: // FEQ/FLT/FLE
		return h.execFCompare(inst, pc, double)
	case 0x60: // FCVT.W[U]/L[U].S/D (float to int)
		return h.execFCvtToInt(inst, pc, double)
	case 0x68: // FCVT.S/D.W[U]/L[U] (int to float)
		return h.execFCvtFromInt(inst, pc, double)
	case 0x70: // FMV.X.W / FCLASS.S / FMV.X.D / FCLASS.D
		return h.execFMvToInt(inst, pc, double)
	case 0x78: // FMV.W.X / FMV.D.X
		if double {
			h.fregs[inst.rd()&0x1f] = h.getReg(inst.rs1())
		} else {
			h.fregs[inst.rd()&0x1f] = box32(uint32(h.getReg(inst.rs1())))
		}
	default:
		return h.illegal(pc, uint32(inst))
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execFSgnj(inst inst32, pc uint64, double bool) bool {
	if double {
		a, b := h.getF64(inst.rs1()), h.getF64(inst.rs2())
		sign := math.Signbit(b)
		switch inst.funct3() {
		case 1:
			sign = !sign
		case 2:
			sign = math.Signbit(a) != sign
		}
		h.setF64(inst.rd(), math.Copysign(a, signOf(sign)))
	} else {
		a, b := h.getF32(inst.rs1()), h.getF32(inst.rs2())
		sign := math.Signbit(float64(b))
		switch inst.funct3() {
		case 1:
			sign = !sign
		case 2:
			sign = math.Signbit(float64(a)) != sign
		}
		h.setF32(inst.rd(), float32(math.Copysign(float64(a), signOf(sign))))
	}
	h.pc = pc + 4
	return true
}

func signOf(negative bool) float64 {
	if negative {
		return -1
	}
	return 1
}

// fmin/fmax per IEEE-754-2008: min(-0,+0) == -0, max(-0,+0) == +0, and
// a single non-NaN operand wins over a NaN operand; signaling and quiet
// NaNs are treated alike and fflags is not updated.
func (h *Hart) execFMinMax(inst inst32, pc uint64, double bool) bool {
	max := inst.funct3() == 1
	if double {
		a, b := h.getF64(inst.rs1()), h.getF64(inst.rs2())
		h.setF64(inst.rd(), fMinMax64(a, b, max))
	} else {
		a, b := h.getF32(inst.rs1()), h.getF32(inst.rs2())
		h.setF32(inst.rd(), fMinMax32(a, b, max))
	}
	h.pc = pc + 4
	return true
}

func fMinMax64(a, b float64, max bool) float64 {
	if math.IsNaN(a) && math.IsNaN(b) {
		return math.Float64frombits(canonicalNaN64)
	}
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	if a == 0 && b == 0 {
		if max {
			if !math.Signbit(a) {
				return a
			}
			return b
		}
		if math.Signbit(a) {
			return a
		}
		return b
	}
	if max {
		return math.Max(a, b)
	}
	return math.Min(a, b)
}

func fMinMax32(a, b float32, max bool) float32 {
	return float32(fMinMax64(float64(a), float64(b), max))
}

func (h *Hart) execFCompare(inst inst32, pc uint64, double bool) bool {
	var eq, lt bool
	if double {
		a, b := h.getF64(inst.rs1()), h.getF64(inst.rs2())
		eq, lt = a == b, a < b
	} else {
		a, b := h.getF32(inst.rs1()), h.getF32(inst.rs2())
		eq, lt = a == b, a < b
	}
	var r bool
	switch inst.funct3() {
	case 0: // FLE
		r = lt || eq
	case 1: // FLT
		r = lt
	case 2: // FEQ
		r = eq
	default:
		return h.illegal(pc, uint32(inst))
	}
	h.setReg(inst.rd(), b2u(r))
	h.pc = pc + 4
	return true
}

// execFCvtToInt implements FCVT.W/WU/L/LU.S/D, saturating to the
// destination range on overflow or NaN per the host-FPU contract.
func (h *Hart) execFCvtToInt(inst inst32, pc uint64, double bool) bool {
	var v float64
	if double {
		v = h.getF64(inst.rs1())
	} else {
		v = float64(h.getF32(inst.rs1()))
	}
	unsigned := inst.rs2()&1 != 0
	wide := inst.rs2()&2 != 0 && h.XLen == 64
	var result uint64
	switch {
	case unsigned && wide:
		result = satU64(v)
	case unsigned:
		result = uint64(satU32(v))
	case wide:
		result = uint64(satI64(v))
	default:
		result = sext32(satI32(v))
	}
	h.setReg(inst.rd(), result)
	h.pc = pc + 4
	return true
}

func (h *Hart) execFCvtFromInt(inst inst32, pc uint64, double bool) bool {
	raw := h.getReg(inst.rs1())
	unsigned := inst.rs2()&1 != 0
	wide := inst.rs2()&2 != 0 && h.XLen == 64
	var v float64
	switch {
	case unsigned && wide:
		v = float64(raw)
	case unsigned:
		v = float64(uint32(raw))
	case wide:
		v = float64(int64(raw))
	default:
		v = float64(int32(uint32(raw)))
	}
	if double {
		h.setF64(inst.rd(), v)
	} else {
		h.setF32(inst.rd(), float32(v))
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execFMvToInt(inst inst32, pc uint64, double bool) bool {
	if inst.funct3() == 0 { // FMV.X.W / FMV.X.D
		if double {
			h.setReg(inst.rd(), h.fregs[inst.rs1()&0x1f])
		} else {
			h.setReg(inst.rd(), sext32(uint32(h.fregs[inst.rs1()&0x1f])))
		}
	} else { // FCLASS
		if double {
			h.setReg(inst.rd(), uint64(fclass64(h.getF64(inst.rs1()))))
		} else {
			h.setReg(inst.rd(), uint64(fclass32(h.getF32(inst.rs1()))))
		}
	}
	h.pc = pc + 4
	return true
}

// fclass64/32 return the one-hot 10-bit classification mask, bit order
// per the standard: -inf, -normal, -subnormal, -0, +0, +subnormal,
// +normal, +inf, sNaN, qNaN.
func fclass64(v float64) uint32 {
	bits := math.Float64bits(v)
	sign := bits>>63 != 0
	exp := (bits >> 52) & 0x7ff
	mant := bits & ((1 << 52) - 1)
	return classify(sign, exp == 0, exp == 0x7ff, mant == 0, mant&(1<<51) != 0)
}

func fclass32(v float32) uint32 {
	bits := math.Float32bits(v)
	sign := bits>>31 != 0
	exp := (bits >> 23) & 0xff
	mant := bits & ((1 << 23) - 1)
	return classify(sign, exp == 0, exp == 0xff, mant == 0, mant&(1<<22) != 0)
}

func classify(sign, zeroExp, maxExp, zeroMant, quietBit bool) uint32 {
	switch {
	case maxExp && !zeroMant:
		if quietBit {
			return 1 << 9 // qNaN
		}
		return 1 << 8 // sNaN
	case maxExp:
		if sign {
			return 1 << 0 // -inf
		}
		return 1 << 7 // +inf
	case zeroExp && zeroMant:
		if sign {
			return 1 << 3 // -0
		}
		return 1 << 4 // +0
	case zeroExp:
		if sign {
			return 1 << 2 // -subnormal
		}
		return 1 << 5 // +subnormal
	default:
		if sign {
			return 1 << 1 // -normal
		}
		return 1 << 6 // +normal
	}
}

func satI32(v float64) uint32 {
	if math.IsNaN(v) {
		return 0x7fff_ffff
	}
	if v >= math.MaxInt32 {
		return 0x7fff_ffff
	}
	if v <= math.MinInt32 {
		return 0x8000_0000
	}
	return uint32(int32(v))
}

func satU32(v float64) uint32 {
	if math.IsNaN(v) || v <= 0 {
		if math.IsNaN(v) {
			return 0xffff_ffff
		}
		return 0
	}
	if v >= math.MaxUint32 {
		return 0xffff_ffff
	}
	return uint32(v)
}

func satI64(v float64) int64 {
	if math.IsNaN(v) {
		return math.MaxInt64
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

func satU64(v float64) uint64 {
	if math.IsNaN(v) {
		return math.MaxUint64
	}
	if v <= 0 {
		return 0
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}
