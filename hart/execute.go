/*
 * riscvcore - RV32I/RV64I base interpreter, M extension, Zicsr, Zifencei.
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
	"github.com/rvcore/machine/csr"
	"github.com/rvcore/machine/trap"
	"github.com/rvcore/machine/xatomic"
)

const (
	opLoad    = 0x03
	opLoadFP  = 0x07
	opMiscMem = 0x0f
	opImm     = 0x13
	opAUIPC   = 0x17
	opImm32   = 0x1b
	opStore   = 0x23
	opStoreFP = 0x27
	opAMO     = 0x2f
	opOP      = 0x33
	opLUI     = 0x37
	opOP32    = 0x3b
	opFMADD   = 0x43
	opFMSUB   = 0x47
	opFNMSUB  = 0x4b
	opFNMADD  = 0x4f
	opOPFP    = 0x53
	opBranch  = 0x63
	opJALR    = 0x67
	opJAL     = 0x6f
	opSystem  = 0x73
)

// step fetches, decodes and executes exactly one instruction, advancing
// pc on success. On a fault, raiseTrap has already recorded trapPC and
// the caller (runUntilEvent) redirects pc there instead.
func (h *Hart) step() {
	pc := h.pc
	raw, ok := h.fetch(pc)
	if !ok {
		return
	}
	if raw&0x3 != 0x3 {
		if h.executeCompressed(uint16(raw), pc) {
			h.Stats.Retired++
		}
		return
	}
	if h.execute32(inst32(raw), pc) {
		h.Stats.Retired++
	}
}

func (h *Hart) illegal(pc uint64, raw uint32) bool {
	h.raiseTrap(trap.IllegalInstr, false, uint64(raw))
	return false
}

func (h *Hart) execute32(inst inst32, pc uint64) bool {
	switch inst.opcode() {
	case opLoad:
		return h.execLoad(inst, pc)
	case opMiscMem:
		return h.execMiscMem(inst, pc)
	case opImm:
		return h.execOpImm(inst, pc, false)
	case opImm32:
		if h.XLen != 64 {
			return h.illegal(pc, uint32(inst))
		}
		return h.execOpImm(inst, pc, true)
	case opAUIPC:
		h.setReg(inst.rd(), pc+inst.immU())
		h.pc = pc + 4
		return true
	case opStore:
		return h.execStore(inst, pc)
	case opAMO:
		return h.execAMO(inst, pc)
	case opOP:
		return h.execOp(inst, pc, false)
	case opOP32:
		if h.XLen != 64 {
			return h.illegal(pc, uint32(inst))
		}
		return h.execOp(inst, pc, true)
	case opLUI:
		h.setReg(inst.rd(), inst.immU())
		h.pc = pc + 4
		return true
	case opBranch:
		return h.execBranch(inst, pc)
	case opJALR:
		return h.execJALR(inst, pc)
	case opJAL:
		return h.execJAL(inst, pc)
	case opSystem:
		return h.execSystem(inst, pc)
	case opLoadFP, opStoreFP, opOPFP, opFMADD, opFMSUB, opFNMSUB, opFNMADD:
		return h.execFP(inst, pc)
	default:
		return h.illegal(pc, uint32(inst))
	}
}

func sext32(v uint32) uint64 { return uint64(int64(int32(v))) }

func (h *Hart) execLoad(inst inst32, pc uint64) bool {
	addr := h.getReg(inst.rs1()) + inst.immI()
	var n int
	var signed bool
	switch inst.funct3() {
	case 0:
		n, signed = 1, true
	case 1:
		n, signed = 2, true
	case 2:
		n, signed = 4, true
	case 3:
		if h.XLen != 64 {
			return h.illegal(pc, uint32(inst))
		}
		n, signed = 8, false
	case 4:
		n, signed = 1, false
	case 5:
		n, signed = 2, false
	case 6:
		if h.XLen != 64 {
			return h.illegal(pc, uint32(inst))
		}
		n, signed = 4, false
	default:
		return h.illegal(pc, uint32(inst))
	}
	v, ok := h.loadN(addr, n, trap.AccessRead)
	if !ok {
		return false
	}
	if signed {
		v = signExtend(uint32(v), uint(n*8))
	}
	h.setReg(inst.rd(), v)
	h.pc = pc + 4
	return true
}

func (h *Hart) execStore(inst inst32, pc uint64) bool {
	addr := h.getReg(inst.rs1()) + inst.immS()
	var n int
	switch inst.funct3() {
	case 0:
		n = 1
	case 1:
		n = 2
	case 2:
		n = 4
	case 3:
		if h.XLen != 64 {
			return h.illegal(pc, uint32(inst))
		}
		n = 8
	default:
		return h.illegal(pc, uint32(inst))
	}
	if !h.storeN(addr, n, h.getReg(inst.rs2())) {
		return false
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execMiscMem(inst inst32, pc uint64) bool {
	switch inst.funct3() {
	case 0: // FENCE: byte, halfword and misaligned guest stores are plain
		// host writes, so a process-wide host fence orders them.
		xatomic.Fence()
	case 1:
		xatomic.Fence()
		h.fenceI()
	default:
		return h.illegal(pc, uint32(inst))
	}
	h.pc = pc + 4
	return true
}

func (h *Hart) execOpImm(inst inst32, pc uint64, word bool) bool {
	a := h.getReg(inst.rs1())
	if word {
		a = uint64(uint32(a))
	}
	imm := inst.immI()
	var r uint64
	switch inst.funct3() {
	case 0:
		r = a + imm
	case 1:
		if word {
			r = sext32(uint32(a) << inst.shamt(32))
		} else {
			r = a << inst.shamt(h.XLen)
		}
	case 2:
		r = b2u(int64(a) < int64(imm))
	case 3:
		r = b2u(a < imm)
	case 4:
		r = a ^ imm
	case 5:
		arith := inst.funct7()&0x20 != 0
		if word {
			sh := inst.shamt(32)
			if arith {
				r = sext32(uint32(int32(uint32(a)) >> sh))
			} else {
				r = sext32(uint32(a) >> sh)
			}
		} else {
			sh := inst.shamt(h.XLen)
			if arith {
				signed := int64(a)
				if h.XLen == 32 {
					signed = int64(int32(a))
				}
				r = uint64(signed>>sh) & h.regMask()
			} else {
				r = a >> sh
			}
		}
	case 6:
		r = a | imm
	case 7:
		r = a & imm
	}
	if word {
		r = sext32(uint32(r))
	}
	h.setReg(inst.rd(), r)
	h.pc = pc + 4
	return true
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (h *Hart) execOp(inst inst32, pc uint64, word bool) bool {
	a := h.getReg(inst.rs1())
	b := h.getReg(inst.rs2())
	if word {
		a, b = uint64(uint32(a)), uint64(uint32(b))
	}
	f7 := inst.funct7()
	var r uint64
	switch {
	case f7 == 0x01:
		r = h.execMuldiv(inst.funct3(), a, b, word)
	case f7 == 0x00:
		r = h.execAlu(inst.funct3(), a, b, false, word)
	case f7 == 0x20:
		r = h.execAlu(inst.funct3(), a, b, true, word)
	default:
		return h.illegal(pc, uint32(inst))
	}
	if word {
		r = sext32(uint32(r))
	}
	h.setReg(inst.rd(), r)
	h.pc = pc + 4
	return true
}

func (h *Hart) execAlu(funct3 uint32, a, b uint64, sub, word bool) uint64 {
	switch funct3 {
	case 0:
		if sub {
			return a - b
		}
		return a + b
	case 1:
		sh := b & 0x3f
		if word {
			sh = b & 0x1f
			return sext32(uint32(a) << sh)
		}
		if h.XLen == 32 {
			sh = b & 0x1f
		}
		return a << sh
	case 2:
		return b2u(int64(a) < int64(b))
	case 3:
		return b2u(a < b)
	case 4:
		return a ^ b
	case 5:
		if sub {
			if word {
				sh := b & 0x1f
				return sext32(uint32(int32(uint32(a)) >> sh))
			}
			sh := b & 0x3f
			if h.XLen == 32 {
				sh = b & 0x1f
			}
			signed := int64(a)
			if h.XLen == 32 {
				signed = int64(int32(a))
			}
			return uint64(signed>>sh) & h.regMask()
		}
		if word {
			sh := b & 0x1f
			return sext32(uint32(a) >> sh)
		}
		sh := b & 0x3f
		if h.XLen == 32 {
			sh = b & 0x1f
		}
		return a >> sh
	case 6:
		return a | b
	case 7:
		return a & b
	}
	return 0
}

func (h *Hart) execMuldiv(funct3 uint32, a, b uint64, word bool) uint64 {
	if word {
		switch funct3 {
		case 0:
			return sext32(uint32(int32(uint32(a)) * int32(uint32(b))))
		case 4:
			return sext32(divS32(int32(uint32(a)), int32(uint32(b))))
		case 5:
			return sext32(divU32(uint32(a), uint32(b)))
		case 6:
			return sext32(remS32(int32(uint32(a)), int32(uint32(b))))
		case 7:
			return sext32(remU32(uint32(a), uint32(b)))
		}
		return 0
	}
	switch funct3 {
	case 0:
		return a * b
	case 1:
		return uint64(mulHi(int64(a), int64(b)))
	case 2:
		return uint64(mulHiSU(int64(a), b))
	case 3:
		return mulHiU(a, b)
	case 4:
		return uint64(divS64(int64(a), int64(b)))
	case 5:
		return divU64(a, b)
	case 6:
		return uint64(remS64(int64(a), int64(b)))
	case 7:
		return remU64(a, b)
	}
	return 0
}

func divS32(a, b int32) uint32 {
	if b == 0 {
		return 0xffff_ffff
	}
	if a == -2147483648 && b == -1 {
		return uint32(a)
	}
	return uint32(a / b)
}

func remS32(a, b int32) uint32 {
	if b == 0 {
		return uint32(a)
	}
	if a == -2147483648 && b == -1 {
		return 0
	}
	return uint32(a % b)
}

func divU32(a, b uint32) uint32 {
	if b == 0 {
		return 0xffff_ffff
	}
	return a / b
}

func remU32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}

func divS64(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == minInt64 && b == -1 {
		return a
	}
	return a / b
}

func remS64(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == minInt64 && b == -1 {
		return 0
	}
	return a % b
}

func divU64(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func remU64(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

const minInt64 = int64(-1) << 63

// mulHi computes the high 64 bits of a signed*signed 128-bit product
// via the standard unsigned-multiply-plus-correction identity.
func mulHi(a, b int64) int64 {
	hi := mulHiU(uint64(a), uint64(b))
	hi -= uint64(a>>63) & uint64(b)
	hi -= uint64(b>>63) & uint64(a)
	return int64(hi)
}

func mulHiSU(a int64, b uint64) int64 {
	hi := mulHiU(uint64(a), b)
	hi -= uint64(a>>63) & b
	return int64(hi)
}

// mulHiU returns the high 64 bits of the 128-bit product a*b, the
// schoolbook 32-bit-limb algorithm used by math/bits.Mul64.
func mulHiU(a, b uint64) uint64 {
	const mask32 = 1<<32 - 1
	a0, a1 := a&mask32, a>>32
	b0, b1 := b&mask32, b>>32
	w0 := a0 * b0
	t := a1*b0 + w0>>32
	w1 := t & mask32
	w2 := t >> 32
	w1 += a0 * b1
	return a1*b1 + w2 + w1>>32
}

func (h *Hart) execBranch(inst inst32, pc uint64) bool {
	a := h.getReg(inst.rs1())
	b := h.getReg(inst.rs2())
	var taken bool
	switch inst.funct3() {
	case 0:
		taken = a == b
	case 1:
		taken = a != b
	case 4:
		taken = int64(a) < int64(b)
	case 5:
		taken = int64(a) >= int64(b)
	case 6:
		taken = a < b
	case 7:
		taken = a >= b
	default:
		return h.illegal(pc, uint32(inst))
	}
	if !taken {
		h.pc = pc + 4
		return true
	}
	target := pc + inst.immB()
	if target&0x1 != 0 {
		h.raiseTrap(trap.InstrMisaligned, false, target)
		return false
	}
	h.pc = target
	return true
}

func (h *Hart) execJAL(inst inst32, pc uint64) bool {
	target := pc + inst.immJ()
	if target&0x1 != 0 {
		h.raiseTrap(trap.InstrMisaligned, false, target)
		return false
	}
	h.setReg(inst.rd(), pc+4)
	h.pc = target
	return true
}

func (h *Hart) execJALR(inst inst32, pc uint64) bool {
	target := (h.getReg(inst.rs1()) + inst.immI()) &^ 1
	if target&0x1 != 0 {
		h.raiseTrap(trap.InstrMisaligned, false, target)
		return false
	}
	link := pc + 4
	h.setReg(inst.rd(), link)
	h.pc = target
	return true
}

func (h *Hart) execSystem(inst inst32, pc uint64) bool {
	if inst.funct3() != 0 {
		return h.execCSR(inst, pc)
	}
	switch inst.csr() {
	case 0x000:
		cause := trap.ECallFromU
		switch h.priv {
		case trap.Supervisor:
			cause = trap.ECallFromS
		case trap.Machine:
			cause = trap.ECallFromM
		}
		h.raiseTrap(cause, false, 0)
		return false
	case 0x001:
		h.raiseTrap(trap.Breakpoint, false, pc)
		return false
	case 0x102:
		if h.priv == trap.User {
			return h.illegal(pc, uint32(inst))
		}
		h.sret()
		return true
	case 0x302:
		if h.priv != trap.Machine {
			return h.illegal(pc, uint32(inst))
		}
		h.mret()
		return true
	case 0x105:
		h.wfi()
		h.pc = pc + 4
		return true
	default:
		if inst.funct7() == 0x09 {
			if !h.sfenceVMA() {
				return h.illegal(pc, uint32(inst))
			}
			h.pc = pc + 4
			return true
		}
		return h.illegal(pc, uint32(inst))
	}
}

func (h *Hart) execCSR(inst inst32, pc uint64) bool {
	idx := inst.csr()
	var op csr.Op
	var word uint64
	var isWrite bool
	immForm := inst.funct3() >= 5
	switch inst.funct3() & 0x3 {
	case 1:
		op = csr.Swap
		isWrite = true
	case 2:
		op = csr.SetBits
		isWrite = inst.rs1() != 0
	case 3:
		op = csr.ClearBits
		isWrite = inst.rs1() != 0
	default:
		return h.illegal(pc, uint32(inst))
	}
	if immForm {
		word = uint64(inst.rs1())
	} else {
		word = h.getReg(inst.rs1())
	}
	if !h.csrs.Dispatch(h, idx, &word, op, h.priv, isWrite) {
		return h.illegal(pc, uint32(inst))
	}
	h.setReg(inst.rd(), word)
	h.pc = pc + 4
	return true
}
