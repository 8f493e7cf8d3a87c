/*
 * riscvcore - A extension: load-reserved/store-conditional and AMOs.
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
	"sync/atomic"

	"github.com/rvcore/machine/trap"
	"github.com/rvcore/machine/xatomic"
)

const (
	amoLR      = 0x02
	amoSC      = 0x03
	amoSwap    = 0x01
	amoAdd     = 0x00
	amoXor     = 0x04
	amoAnd     = 0x0c
	amoOr      = 0x08
	amoMin     = 0x10
	amoMax     = 0x14
	amoMinu    = 0x18
	amoMaxu    = 0x1c
)

func (h *Hart) execAMO(inst inst32, pc uint64) bool {
	addr := h.getReg(inst.rs1())
	var n int
	switch inst.funct3() {
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
	if addr%uint64(n) != 0 {
		h.raiseTrap(trap.StoreMisaligned, false, addr)
		return false
	}

	op := inst.funct5()
	switch op {
	case amoLR:
		v, ok := h.loadN(addr, n, trap.AccessRead)
		if !ok {
			return false
		}
		atomic.StoreUint32(&h.lrscValid, 1)
		h.lrscAddr, h.lrscSize = addr, n
		h.setReg(inst.rd(), signExtendAMO(v, n))
		h.pc = pc + 4
		return true
	case amoSC:
		ok := atomic.LoadUint32(&h.lrscValid) != 0 && h.lrscAddr == addr && h.lrscSize == n
		if ok {
			ok = h.storeN(addr, n, h.getReg(inst.rs2()))
			if !ok {
				return false
			}
		}
		atomic.StoreUint32(&h.lrscValid, 0)
		if ok {
			h.setReg(inst.rd(), 0)
		} else {
			h.setReg(inst.rd(), 1)
		}
		h.pc = pc + 4
		return true
	}

	// Translate for read and then for write permission (an AMO needs
	// both) and invalidate every other hart's LR reservation the way a
	// plain store would.
	if _, cause, ok := h.translate(addr, trap.AccessRead); !ok {
		h.raiseTrap(cause, false, addr)
		return false
	}
	phys, cause, ok := h.translate(addr, trap.AccessWrite)
	if !ok {
		h.raiseTrap(cause, false, addr)
		return false
	}
	if h.team != nil {
		h.team.ForEachOther(h, func(other *Hart) { other.invalidateReservation(phys, n) })
	}

	// The RMW proper has to be a single host atomic read-modify-write,
	// not a load followed by a separate store: two harts issuing
	// amoadd.w on the same address at once would otherwise both read the
	// same old value and the second store would clobber the first's
	// result. xatomic's Fetch*/Swap primitives give each AMO op its
	// matching host RMW instruction (or CAS-retry where the host has no
	// single instruction for it) directly on the RAM-backed byte slice,
	// which is why AMOs are restricted to RAM: there is no equivalent
	// primitive over an MMIO callback.
	ram := h.bus.RAM()
	if ram == nil || !ram.Contains(phys, uint64(n)) {
		h.faultDevice(trap.AccessWrite, addr)
		return false
	}
	buf, off := ram.Bytes(), ram.Offset(phys)
	rs2 := h.getReg(inst.rs2())

	old, validOp := amoApply(op, buf, off, rs2, n)
	if !validOp {
		return h.illegal(pc, uint32(inst))
	}
	ram.MarkDirty(phys)
	h.setReg(inst.rd(), signExtendAMO(old, n))
	h.pc = pc + 4
	return true
}

// amoApply dispatches op to the matching xatomic primitive on buf[off:],
// returning the previous n-byte value and whether op was recognized.
func amoApply(op uint32, buf []byte, off int, rs2 uint64, n int) (old uint64, ok bool) {
	if n == 4 {
		v := uint32(rs2)
		switch op {
		case amoSwap:
			return uint64(xatomic.Swap32(buf, off, v)), true
		case amoAdd:
			return uint64(xatomic.FetchAdd32(buf, off, v)), true
		case amoXor:
			return uint64(xatomic.FetchXor32(buf, off, v)), true
		case amoAnd:
			return uint64(xatomic.FetchAnd32(buf, off, v)), true
		case amoOr:
			return uint64(xatomic.FetchOr32(buf, off, v)), true
		case amoMin:
			return uint64(xatomic.FetchMinSigned32(buf, off, int32(v))), true
		case amoMax:
			return uint64(xatomic.FetchMaxSigned32(buf, off, int32(v))), true
		case amoMinu:
			return uint64(xatomic.FetchMinUnsigned32(buf, off, v)), true
		case amoMaxu:
			return uint64(xatomic.FetchMaxUnsigned32(buf, off, v)), true
		default:
			return 0, false
		}
	}
	switch op {
	case amoSwap:
		return xatomic.Swap64(buf, off, rs2), true
	case amoAdd:
		return xatomic.FetchAdd64(buf, off, rs2), true
	case amoXor:
		return xatomic.FetchXor64(buf, off, rs2), true
	case amoAnd:
		return xatomic.FetchAnd64(buf, off, rs2), true
	case amoOr:
		return xatomic.FetchOr64(buf, off, rs2), true
	case amoMin:
		return xatomic.FetchMinSigned64(buf, off, int64(rs2)), true
	case amoMax:
		return xatomic.FetchMaxSigned64(buf, off, int64(rs2)), true
	case amoMinu:
		return xatomic.FetchMinUnsigned64(buf, off, rs2), true
	case amoMaxu:
		return xatomic.FetchMaxUnsigned64(buf, off, rs2), true
	default:
		return 0, false
	}
}

func signExtendAMO(v uint64, n int) uint64 {
	if n == 4 {
		return sext32(uint32(v))
	}
	return v
}
