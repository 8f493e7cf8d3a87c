/*
 * riscvcore - CSR bank construction: one handler per architectural register.
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

	"github.com/rvcore/machine/csr"
	"github.com/rvcore/machine/trap"
)

const (
	sstatusMask = mstatusSIE | mstatusSPIE | mstatusSPP | mstatusFS | mstatusSUM | mstatusMXR

	sIntBits = uint64(1)<<1 | uint64(1)<<5 | uint64(1)<<9   // SSIP, STIP, SEIP
	mIntBits = sIntBits | uint64(1)<<3 | uint64(1)<<7 | uint64(1)<<11 // + MSIP, MTIP, MEIP

	fsDirty = 0x3
)

// NewCSRBank builds the dispatch table shared read-only by every hart
// of a machine. xlen selects misa's MXL field and whether the RV32-only
// high-half counters (cycleh, timeh, instreth, mcycleh, minstreth) are
// registered; satp is decoded per hart from the hart's own XLen.
func NewCSRBank(xlen int) *csr.Bank[Hart] {
	b := csr.NewBank[Hart]()

	regMasked(b, csr.Mstatus, mstatusWritableMask, func(h *Hart) *uint64 { return &h.mstatus })
	b.Register(csr.Sstatus, func(h *Hart, word *uint64, op csr.Op) bool {
		old := h.mstatus & sstatusMask
		nv := csr.Apply(old, *word, op) & sstatusMask
		h.mstatus = (h.mstatus &^ sstatusMask) | nv
		*word = old
		return true
	})
	regReadOnlyConst(b, csr.Misa, isaBits(xlen))

	regMasked(b, csr.Medeleg, ^uint64(0), func(h *Hart) *uint64 { return &h.medeleg })
	regMasked(b, csr.Mideleg, mIntBits, func(h *Hart) *uint64 { return &h.mideleg })

	regInterruptMasked(b, csr.Mie, mIntBits, func(h *Hart) *uint64 { return &h.mie })
	regInterruptMasked(b, csr.Mip, mIntBits, func(h *Hart) *uint64 { return &h.mip })
	b.Register(csr.Sie, func(h *Hart, word *uint64, op csr.Op) bool {
		old := h.mie & sIntBits & h.mideleg
		nv := csr.Apply(old, *word, op) & sIntBits & h.mideleg
		h.mie = (h.mie &^ (sIntBits & h.mideleg)) | nv
		atomic.StoreUint32(&h.waitEvent, 0)
		*word = old
		return true
	})
	b.Register(csr.Sip, func(h *Hart, word *uint64, op csr.Op) bool {
		old := h.mip & sIntBits & h.mideleg
		nv := csr.Apply(old, *word, op) & sIntBits & h.mideleg
		h.mip = (h.mip &^ (sIntBits & h.mideleg)) | nv
		atomic.StoreUint32(&h.waitEvent, 0)
		*word = old
		return true
	})

	regMasked(b, csr.Mtvec, ^uint64(0), func(h *Hart) *uint64 { return &h.mtvec })
	regMasked(b, csr.Stvec, ^uint64(0), func(h *Hart) *uint64 { return &h.stvec })
	regMasked(b, csr.Mscratch, ^uint64(0), func(h *Hart) *uint64 { return &h.mscratch })
	regMasked(b, csr.Sscratch, ^uint64(0), func(h *Hart) *uint64 { return &h.sscratch })
	regMasked(b, csr.Mepc, ^uint64(0)&^1, func(h *Hart) *uint64 { return &h.mepc })
	regMasked(b, csr.Sepc, ^uint64(0)&^1, func(h *Hart) *uint64 { return &h.sepc })
	regMasked(b, csr.Mcause, ^uint64(0), func(h *Hart) *uint64 { return &h.mcause })
	regMasked(b, csr.Scause, ^uint64(0), func(h *Hart) *uint64 { return &h.scause })
	regMasked(b, csr.Mtval, ^uint64(0), func(h *Hart) *uint64 { return &h.mtval })
	regMasked(b, csr.Stval, ^uint64(0), func(h *Hart) *uint64 { return &h.stval })
	regMasked(b, csr.Mcounteren, 0x7, func(h *Hart) *uint64 { return &h.mcounteren })
	regMasked(b, csr.Scounteren, 0x7, func(h *Hart) *uint64 { return &h.scounteren })

	b.Register(csr.Satp, func(h *Hart, word *uint64, op csr.Op) bool {
		old := h.satp
		nv := csr.Apply(old, *word, op)
		h.writeSatp(nv)
		*word = old
		return true
	})

	regCounter(b, csr.Cycle, 0, func(h *Hart) uint64 { return h.Stats.Retired })
	regCounter(b, csr.Instret, 2, func(h *Hart) uint64 { return h.Stats.Retired })
	regCounter(b, csr.Time, 1, func(h *Hart) uint64 {
		if h.timer == nil {
			return 0
		}
		return h.timer.Now()
	})
	if xlen == 32 {
		regCounter(b, csr.Cycleh, 0, func(h *Hart) uint64 { return h.Stats.Retired >> 32 })
		regCounter(b, csr.Instreth, 2, func(h *Hart) uint64 { return h.Stats.Retired >> 32 })
		regCounter(b, csr.Timeh, 1, func(h *Hart) uint64 {
			if h.timer == nil {
				return 0
			}
			return h.timer.Now() >> 32
		})
	}
	regReadOnly(b, csr.Mcycle, func(h *Hart) uint64 { return h.Stats.Retired })
	regReadOnly(b, csr.Minstret, func(h *Hart) uint64 { return h.Stats.Retired })
	if xlen == 32 {
		regReadOnly(b, csr.Mcycleh, func(h *Hart) uint64 { return h.Stats.Retired >> 32 })
		regReadOnly(b, csr.Minstreth, func(h *Hart) uint64 { return h.Stats.Retired >> 32 })
	}

	regReadOnly(b, csr.Mhartid, func(h *Hart) uint64 { return uint64(h.ID) })

	for idx := csr.HPMCounterBase; idx <= csr.HPMCounterTop; idx++ {
		regReadOnlyConst(b, idx, 0)
	}
	for idx := csr.HPMCounterHBase; idx <= csr.HPMCounterHTop; idx++ {
		regReadOnlyConst(b, idx, 0)
	}
	for idx := csr.MHPMCounterBase; idx <= csr.MHPMCounterTop; idx++ {
		regMasked(b, idx, 0, constField(0))
	}
	for idx := csr.MHPMEventBase; idx <= csr.MHPMEventTop; idx++ {
		regMasked(b, idx, 0, constField(0))
	}

	b.Register(csr.Fflags, func(h *Hart, word *uint64, op csr.Op) bool {
		old := h.fcsr & 0x1f
		nv := csr.Apply(old, *word, op) & 0x1f
		h.fcsr = (h.fcsr &^ 0x1f) | nv
		if nv != 0 {
			h.mstatus = withFS(h.mstatus, fsDirty)
		}
		*word = old
		return true
	})
	b.Register(csr.Frm, func(h *Hart, word *uint64, op csr.Op) bool {
		old := (h.fcsr >> 5) & 0x7
		nv := csr.Apply(old, *word, op) & 0x7
		h.fcsr = (h.fcsr &^ (0x7 << 5)) | (nv << 5)
		*word = old
		return true
	})
	b.Register(csr.Fcsr, func(h *Hart, word *uint64, op csr.Op) bool {
		old := h.fcsr & 0xff
		nv := csr.Apply(old, *word, op) & 0xff
		h.fcsr = nv
		if nv&0x1f != 0 {
			h.mstatus = withFS(h.mstatus, fsDirty)
		}
		*word = old
		return true
	})

	return b
}

func constField(v uint64) func(*Hart) *uint64 {
	cell := v
	return func(*Hart) *uint64 { return &cell }
}

// regMasked registers a plain read/modify/write CSR whose writable bits
// are exactly mask; all other bits always read back zero.
func regMasked(b *csr.Bank[Hart], idx uint16, mask uint64, field func(h *Hart) *uint64) {
	b.Register(idx, func(h *Hart, word *uint64, op csr.Op) bool {
		cell := field(h)
		old := *cell & mask
		nv := csr.Apply(old, *word, op) & mask
		*cell = (*cell &^ mask) | nv
		*word = old
		return true
	})
}

// regInterruptMasked is regMasked specialised for mie/mip, which also
// clear wait_event on any write so a newly enabled interrupt is
// rechecked immediately rather than after the next unrelated wakeup.
func regInterruptMasked(b *csr.Bank[Hart], idx uint16, mask uint64, field func(h *Hart) *uint64) {
	b.Register(idx, func(h *Hart, word *uint64, op csr.Op) bool {
		cell := field(h)
		old := *cell & mask
		nv := csr.Apply(old, *word, op) & mask
		*cell = (*cell &^ mask) | nv
		atomic.StoreUint32(&h.waitEvent, 0)
		*word = old
		return true
	})
}

// regCounter registers a read-only counter CSR gated by the matching
// bit of mcounteren/scounteren when accessed below M-mode. enableBit is
// the counter's bit position shared by both counteren registers
// (0=cycle, 1=time, 2=instret).
func regCounter(b *csr.Bank[Hart], idx uint16, enableBit uint, get func(h *Hart) uint64) {
	b.Register(idx, func(h *Hart, word *uint64, op csr.Op) bool {
		if h.priv != trap.Machine {
			if h.mcounteren&(1<<enableBit) == 0 {
				return false
			}
			if h.priv == trap.User && h.scounteren&(1<<enableBit) == 0 {
				return false
			}
		}
		*word = get(h)
		return true
	})
}

func regReadOnly(b *csr.Bank[Hart], idx uint16, get func(h *Hart) uint64) {
	b.Register(idx, func(h *Hart, word *uint64, op csr.Op) bool {
		*word = get(h)
		return true
	})
}

func regReadOnlyConst(b *csr.Bank[Hart], idx uint16, v uint64) {
	b.Register(idx, func(h *Hart, word *uint64, op csr.Op) bool {
		*word = v
		return true
	})
}

// isaBits encodes misa: MXL in the top two bits plus one bit per
// implemented standard extension (I, M, A, C, F, D, S, U).
func isaBits(xlen int) uint64 {
	var mxl uint64 = 1
	var shift uint = 30
	if xlen == 64 {
		mxl = 2
		shift = 62
	}
	extensions := uint64(0)
	for _, c := range "IMACDFSU" {
		extensions |= 1 << uint(c-'A')
	}
	return mxl<<shift | extensions
}
