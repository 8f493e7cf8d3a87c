/*
 * riscvcore - Address translation, TLB refill and guest memory access.
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
	"github.com/rvcore/machine/pagetable"
	"github.com/rvcore/machine/trap"
)

const pageSize = 4096

// translate resolves vaddr through the TLB, falling back to a page
// table walk (and a TLB install) on a miss. It never mutates the TLB
// on failure.
func (h *Hart) translate(vaddr uint64, access trap.Access) (uint64, trap.Cause, bool) {
	read, write, exec := access == trap.AccessRead, access == trap.AccessWrite, access == trap.AccessExec
	if phys, ok := h.tlb.Lookup(vaddr, read, write, exec); ok {
		return phys, 0, true
	}

	params := pagetable.Params{
		CurPriv: h.priv,
		MPRV:    getBit(h.mstatus, bitMPRV),
		MPP:     mpp(h.mstatus),
		MXR:     getBit(h.mstatus, bitMXR),
		SUM:     getBit(h.mstatus, bitSUM),
	}
	mode, rootPPN := h.satpFields()
	phys, cause, ok := pagetable.Walk(h.bus, mode, rootPPN, vaddr, access, params)
	if !ok {
		return 0, cause, false
	}
	h.tlb.Install(vaddr, phys, read, write, exec)
	return phys, 0, true
}

func (h *Hart) satpFields() (pagetable.Mode, uint64) {
	modeField := h.satp >> 60
	ppn := h.satp & ((uint64(1) << 44) - 1)
	if h.XLen == 32 {
		modeField = h.satp >> 31
		ppn = h.satp & ((uint64(1) << 22) - 1)
		if modeField != 0 {
			return pagetable.SV32, ppn
		}
		return pagetable.Bare, ppn
	}
	switch modeField {
	case 8:
		return pagetable.SV39, ppn
	case 9:
		return pagetable.SV48, ppn
	case 10:
		return pagetable.SV57, ppn
	default:
		return pagetable.Bare, ppn
	}
}

// writeSatp applies the WARL rule for satp: if the mode transitions
// between Bare and a paging mode, the TLB is flushed.
func (h *Hart) writeSatp(v uint64) {
	oldMode, _ := h.satpFields()
	h.satp = v
	newMode, _ := h.satpFields()
	if (oldMode == pagetable.Bare) != (newMode == pagetable.Bare) {
		h.tlb.Reset()
	}
}

// chunk is one page-bounded piece of a (possibly page-straddling) access.
type chunk struct {
	vaddr uint64
	phys  uint64
	size  int
}

// splitChunks walks [vaddr, vaddr+n) and breaks it at every page
// boundary it crosses, iteratively rather than recursively (a
// straddling access has at most two pieces for any size this core
// issues, but the loop handles the general case uniformly).
func splitChunks(vaddr uint64, n int) []chunk {
	var chunks []chunk
	v, remaining := vaddr, n
	for remaining > 0 {
		room := pageSize - int(v&(pageSize-1))
		size := remaining
		if size > room {
			size = room
		}
		chunks = append(chunks, chunk{vaddr: v, size: size})
		v += uint64(size)
		remaining -= size
	}
	return chunks
}

// loadN/storeN perform a guest memory access of n bytes, splitting at
// a page boundary when the access straddles one: every chunk's
// translation is resolved before any byte is read or written, so a
// fault on a later chunk never leaves an earlier one partially visible.
func (h *Hart) loadN(vaddr uint64, n int, access trap.Access) (uint64, bool) {
	chunks := splitChunks(vaddr, n)
	for i := range chunks {
		phys, cause, ok := h.translate(chunks[i].vaddr, access)
		if !ok {
			h.raiseTrap(cause, false, chunks[i].vaddr)
			return 0, false
		}
		chunks[i].phys = phys
	}
	buf := make([]byte, 0, n)
	for _, c := range chunks {
		piece := make([]byte, c.size)
		if !h.bus.Access(c.phys, piece, access, false) {
			h.faultDevice(access, c.vaddr)
			return 0, false
		}
		buf = append(buf, piece...)
	}
	return decodeLE(buf), true
}

func (h *Hart) storeN(vaddr uint64, n int, v uint64) bool {
	chunks := splitChunks(vaddr, n)
	for i := range chunks {
		phys, cause, ok := h.translate(chunks[i].vaddr, trap.AccessWrite)
		if !ok {
			h.raiseTrap(cause, false, chunks[i].vaddr)
			return false
		}
		chunks[i].phys = phys
	}
	buf := encodeLE(v, n)
	off := 0
	for _, c := range chunks {
		piece := buf[off : off+c.size]
		if h.team != nil {
			h.team.ForEachOther(h, func(other *Hart) { other.invalidateReservation(c.phys, c.size) })
		}
		if !h.bus.Access(c.phys, piece, trap.AccessWrite, true) {
			h.faultDevice(trap.AccessWrite, c.vaddr)
			return false
		}
		off += c.size
	}
	return true
}

func (h *Hart) faultDevice(access trap.Access, vaddr uint64) {
	_, fault, _ := trap.FaultCauses(access)
	h.raiseTrap(fault, false, vaddr)
}

func decodeLE(buf []byte) uint64 {
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func encodeLE(v uint64, n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

// fetch reads one 16-bit halfword at pc for compressed-instruction
// detection, and the full 32-bit word when bits[1:0]==0b11.
func (h *Hart) fetch(pc uint64) (uint32, bool) {
	lo, ok := h.loadN(pc, 2, trap.AccessExec)
	if !ok {
		return 0, false
	}
	if lo&0x3 != 0x3 {
		return uint32(lo), true
	}
	hi, ok := h.loadN(pc+2, 2, trap.AccessExec)
	if !ok {
		return 0, false
	}
	return uint32(lo) | uint32(hi)<<16, true
}
