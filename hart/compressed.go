/*
 * riscvcore - C extension: the 16-bit compressed instruction subset.
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

import "github.com/rvcore/machine/trap"

// inst16 is a 16-bit compressed instruction word.
type inst16 uint16

func (i inst16) op() uint16     { return uint16(i) & 0x3 }
func (i inst16) funct3() uint16 { return (uint16(i) >> 13) & 0x7 }
func (i inst16) rdRs1() uint32  { return uint32((i >> 7) & 0x1f) }
func (i inst16) rs2() uint32    { return uint32((i >> 2) & 0x1f) }

// compressed registers address x8-x15 via a 3-bit field.
func (i inst16) rdRs1c() uint32 { return uint32((i>>7)&0x7) + 8 }
func (i inst16) rs2c() uint32   { return uint32((i>>2)&0x7) + 8 }

// executeCompressed decodes and runs one 16-bit instruction, advancing
// pc by 2 on success. Unrecognized encodings (including the reserved
// all-zero word) trap illegal-instruction.
func (h *Hart) executeCompressed(raw uint16, pc uint64) bool {
	i := inst16(raw)
	if raw == 0 {
		h.raiseTrap(trap.IllegalInstr, false, 0)
		return false
	}
	switch i.op() {
	case 0:
		return h.execC0(i, pc)
	case 1:
		return h.execC1(i, pc)
	case 2:
		return h.execC2(i, pc)
	}
	h.raiseTrap(trap.IllegalInstr, false, uint64(raw))
	return false
}

func (h *Hart) illegal16(raw uint16) bool {
	h.raiseTrap(trap.IllegalInstr, false, uint64(raw))
	return false
}

func (h *Hart) execC0(i inst16, pc uint64) bool {
	switch i.funct3() {
	case 0: // C.ADDI4SPN
		nzuimm := c0Addi4spnImm(i)
		if nzuimm == 0 {
			return h.illegal16(uint16(i))
		}
		h.setReg(i.rdRs1c(), h.getReg(2)+nzuimm)
	case 1: // C.FLD (RV32/64) - treated as double load into fp regs
		addr := h.getReg(i.rdRs1c()) + cLdImm(i)
		v, ok := h.loadN(addr, 8, trap.AccessRead)
		if !ok {
			return false
		}
		h.fregs[i.rs2c()] = v
	case 2: // C.LW
		addr := h.getReg(i.rdRs1c()) + cLwImm(i)
		v, ok := h.loadN(addr, 4, trap.AccessRead)
		if !ok {
			return false
		}
		h.setReg(i.rs2c(), signExtend(uint32(v), 32))
	case 3: // C.LD (RV64) / C.FLW (RV32) - this core only implements the RV64 LD form
		if h.XLen != 64 {
			return h.illegal16(uint16(i))
		}
		addr := h.getReg(i.rdRs1c()) + cLdImm(i)
		v, ok := h.loadN(addr, 8, trap.AccessRead)
		if !ok {
			return false
		}
		h.setReg(i.rs2c(), v)
	case 5: // C.FSD
		addr := h.getReg(i.rdRs1c()) + cLdImm(i)
		if !h.storeN(addr, 8, h.fregs[i.rs2c()]) {
			return false
		}
	case 6: // C.SW
		addr := h.getReg(i.rdRs1c()) + cLwImm(i)
		if !h.storeN(addr, 4, h.getReg(i.rs2c())) {
			return false
		}
	case 7: // C.SD (RV64)
		if h.XLen != 64 {
			return h.illegal16(uint16(i))
		}
		addr := h.getReg(i.rdRs1c()) + cLdImm(i)
		if !h.storeN(addr, 8, h.getReg(i.rs2c())) {
			return false
		}
	default:
		return h.illegal16(uint16(i))
	}
	h.pc = pc + 2
	return true
}

func c0Addi4spnImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x30) | ((v >> 1) & 0x3c0) | ((v >> 4) & 0x4) | ((v >> 2) & 0x8)
	return uint64(imm)
}

func cLwImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x38) | ((v << 1) & 0x40) | ((v >> 4) & 0x4)
	return uint64(imm)
}

func cLdImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x38) | ((v << 1) & 0xc0)
	return uint64(imm)
}

func cImm6(i inst16) uint64 {
	v := uint16(i)
	bit5 := (v >> 12) & 0x1
	rest := (v >> 2) & 0x1f
	return signExtend(uint32(bit5<<5|rest), 6)
}

func (h *Hart) execC1(i inst16, pc uint64) bool {
	switch i.funct3() {
	case 0: // C.ADDI / C.NOP
		h.setReg(i.rdRs1(), h.getReg(i.rdRs1())+cImm6(i))
	case 1: // C.ADDIW (RV64) / C.JAL (RV32)
		if h.XLen == 64 {
			if i.rdRs1() == 0 {
				return h.illegal16(uint16(i))
			}
			h.setReg(i.rdRs1(), sext32(uint32(h.getReg(i.rdRs1())+cImm6(i))))
		} else {
			target := pc + cJImm(i)
			h.setReg(1, pc+2)
			h.pc = target
			return true
		}
	case 2: // C.LI
		h.setReg(i.rdRs1(), cImm6(i))
	case 3: // C.ADDI16SP / C.LUI
		if i.rdRs1() == 2 {
			imm := cAddi16spImm(i)
			if imm == 0 {
				return h.illegal16(uint16(i))
			}
			h.setReg(2, h.getReg(2)+imm)
		} else {
			imm := cImm6(i) << 12
			if imm == 0 {
				return h.illegal16(uint16(i))
			}
			h.setReg(i.rdRs1(), imm&h.regMask())
		}
	case 4:
		return h.execC1Alu(i, pc)
	case 5: // C.J
		target := pc + cJImm(i)
		h.pc = target
		return true
	case 6: // C.BEQZ
		if h.getReg(i.rdRs1c()) == 0 {
			h.pc = pc + cBImm(i)
		} else {
			h.pc = pc + 2
		}
		return true
	case 7: // C.BNEZ
		if h.getReg(i.rdRs1c()) != 0 {
			h.pc = pc + cBImm(i)
		} else {
			h.pc = pc + 2
		}
		return true
	}
	h.pc = pc + 2
	return true
}

func cJImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 1) & 0x800) | ((v << 2) & 0x400) | ((v >> 1) & 0x300) | ((v << 1) & 0x80) |
		((v >> 1) & 0x40) | ((v << 3) & 0x20) | ((v >> 7) & 0x10) | ((v >> 2) & 0xe)
	return signExtend(uint32(imm), 12)
}

func cBImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 4) & 0x100) | ((v << 1) & 0xc0) | ((v << 3) & 0x20) | ((v >> 7) & 0x18) | ((v >> 2) & 0x6)
	return signExtend(uint32(imm), 9)
}

func cAddi16spImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 3) & 0x200) | ((v >> 2) & 0x10) | ((v << 1) & 0x40) | ((v << 4) & 0x180) | ((v << 3) & 0x20)
	return signExtend(uint32(imm), 10)
}

func (h *Hart) execC1Alu(i inst16, pc uint64) bool {
	v := uint16(i)
	funct2 := (v >> 10) & 0x3
	switch funct2 {
	case 0: // C.SRLI
		sh := uint32(cImm6(i)) & 0x3f
		h.setReg(i.rdRs1c(), h.getReg(i.rdRs1c())>>sh)
	case 1: // C.SRAI
		sh := uint32(cImm6(i)) & 0x3f
		signed := int64(h.getReg(i.rdRs1c()))
		if h.XLen == 32 {
			signed = int64(int32(h.getReg(i.rdRs1c())))
		}
		h.setReg(i.rdRs1c(), uint64(signed>>sh)&h.regMask())
	case 2: // C.ANDI
		h.setReg(i.rdRs1c(), h.getReg(i.rdRs1c())&cImm6(i))
	case 3:
		funct6b := (v >> 5) & 0x3
		word := (v>>12)&0x1 != 0
		a, b := i.rdRs1c(), i.rs2c()
		switch {
		case !word && funct6b == 0: // C.SUB
			h.setReg(a, h.getReg(a)-h.getReg(b))
		case !word && funct6b == 1: // C.XOR
			h.setReg(a, h.getReg(a)^h.getReg(b))
		case !word && funct6b == 2: // C.OR
			h.setReg(a, h.getReg(a)|h.getReg(b))
		case !word && funct6b == 3: // C.AND
			h.setReg(a, h.getReg(a)&h.getReg(b))
		case word && funct6b == 0: // C.SUBW
			h.setReg(a, sext32(uint32(h.getReg(a)-h.getReg(b))))
		case word && funct6b == 1: // C.ADDW
			h.setReg(a, sext32(uint32(h.getReg(a)+h.getReg(b))))
		default:
			return h.illegal16(uint16(i))
		}
	}
	h.pc = pc + 2
	return true
}

func (h *Hart) execC2(i inst16, pc uint64) bool {
	switch i.funct3() {
	case 0: // C.SLLI
		sh := uint32(cImm6(i)) & 0x3f
		h.setReg(i.rdRs1(), h.getReg(i.rdRs1())<<sh)
	case 2: // C.LWSP
		addr := h.getReg(2) + cLwspImm(i)
		v, ok := h.loadN(addr, 4, trap.AccessRead)
		if !ok {
			return false
		}
		h.setReg(i.rdRs1(), signExtend(uint32(v), 32))
	case 3: // C.LDSP (RV64)
		if h.XLen != 64 {
			return h.illegal16(uint16(i))
		}
		addr := h.getReg(2) + cLdspImm(i)
		v, ok := h.loadN(addr, 8, trap.AccessRead)
		if !ok {
			return false
		}
		h.setReg(i.rdRs1(), v)
	case 4:
		return h.execC2High(i, pc)
	case 6: // C.SWSP
		addr := h.getReg(2) + cSwspImm(i)
		if !h.storeN(addr, 4, h.getReg(i.rs2())) {
			return false
		}
	case 7: // C.SDSP (RV64)
		if h.XLen != 64 {
			return h.illegal16(uint16(i))
		}
		addr := h.getReg(2) + cSdspImm(i)
		if !h.storeN(addr, 8, h.getReg(i.rs2())) {
			return false
		}
	default:
		return h.illegal16(uint16(i))
	}
	h.pc = pc + 2
	return true
}

func cLwspImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x20) | ((v >> 2) & 0x1c) | ((v << 4) & 0xc0)
	return uint64(imm)
}

func cLdspImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x20) | ((v >> 2) & 0x18) | ((v << 4) & 0x1c0)
	return uint64(imm)
}

func cSwspImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x3c) | ((v >> 1) & 0xc0)
	return uint64(imm)
}

func cSdspImm(i inst16) uint64 {
	v := uint16(i)
	imm := ((v >> 7) & 0x38) | ((v >> 1) & 0x1c0)
	return uint64(imm)
}

func (h *Hart) execC2High(i inst16, pc uint64) bool {
	v := uint16(i)
	bit12 := (v >> 12) & 0x1
	rd := i.rdRs1()
	rs2 := i.rs2()
	switch {
	case bit12 == 0 && rs2 == 0: // C.JR
		if rd == 0 {
			return h.illegal16(uint16(i))
		}
		h.pc = h.getReg(rd) &^ 1
		return true
	case bit12 == 0: // C.MV
		h.setReg(rd, h.getReg(rs2))
	case bit12 == 1 && rd == 0 && rs2 == 0: // C.EBREAK
		h.raiseTrap(trap.Breakpoint, false, pc)
		return false
	case bit12 == 1 && rs2 == 0: // C.JALR
		target := h.getReg(rd) &^ 1
		h.setReg(1, pc+2)
		h.pc = target
		return true
	default: // C.ADD
		h.setReg(rd, h.getReg(rd)+h.getReg(rs2))
	}
	h.pc = pc + 2
	return true
}
