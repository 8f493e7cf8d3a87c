/*
 * riscvcore - SV32/SV39/SV48/SV57 page table walker.
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

// Package pagetable implements the SV32/SV39/SV48/SV57 address
// translation walk. The walker is pure with respect to the TLB: it
// never installs a translation, only returns a physical address or a
// trap cause, so it can be exercised in isolation from caching.
package pagetable

import "github.com/rvcore/machine/trap"

// Mode selects the address-translation scheme. Its values are this
// package's own enumeration, not the satp.MODE encoding (RV32's satp
// has only Bare/SV32).
type Mode uint8

const (
	Bare Mode = iota
	SV32
	SV39
	SV48
	SV57
)

type level struct {
	vpnShift uint
	vpnBits  uint
}

// schemes describes each mode's level count, PTE size, and per-level VPN
// field layout: 4 KiB pages throughout, a 4-byte PTE for SV32 and an
// 8-byte PTE for SV39/48/57.
var schemes = map[Mode]struct {
	pteSize int
	levels  []level
}{
	SV32: {4, []level{{12, 10}, {22, 10}}},
	SV39: {8, []level{{12, 9}, {21, 9}, {30, 9}}},
	SV48: {8, []level{{12, 9}, {21, 9}, {30, 9}, {39, 9}}},
	SV57: {8, []level{{12, 9}, {21, 9}, {30, 9}, {39, 9}, {48, 9}}},
}

// PTE bit layout, common to all schemes: V,R,W,X,U,G,A,D in the low
// byte, PPN starting at bit 10.
const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7

	pteRWXMask = pteR | pteW | pteX
)

// Mem is the physical-memory surface the walker needs: read a PTE and
// attempt to set its A/D bits without retrying on contention.
type Mem interface {
	LoadPhys(addr uint64, n int) (uint64, bool)
	CASPhys(addr uint64, n int, old, new uint64) bool
}

// Params bundles the MSTATUS-derived bits the walker consults to
// compute the effective privilege and relaxed-permission modes.
type Params struct {
	CurPriv trap.Priv
	MPRV    bool
	MPP     trap.Priv
	MXR     bool
	SUM     bool
}

// Walk translates vaddr for the given access kind under scheme, rooted
// at rootPPN (satp.PPN, a page-frame number, i.e. physical root address
// is rootPPN<<12). It never touches the TLB.
func Walk(mem Mem, scheme Mode, rootPPN uint64, vaddr uint64, access trap.Access, p Params) (physAddr uint64, cause trap.Cause, ok bool) {
	effPriv := p.CurPriv
	if p.MPRV && access != trap.AccessExec {
		effPriv = p.MPP
	}

	if effPriv == trap.Machine || scheme == Bare {
		return vaddr, 0, true
	}

	sch, known := schemes[scheme]
	if !known {
		_, _, pf := trap.FaultCauses(access)
		return 0, pf, false
	}

	pageTable := rootPPN << 12
	n := len(sch.levels)

	for i := n - 1; i >= 0; i-- {
		lvl := sch.levels[i]
		vpn := (vaddr >> lvl.vpnShift) & (uint64(1)<<lvl.vpnBits - 1)
		pteAddr := pageTable + vpn*uint64(sch.pteSize)

		pte, loaded := mem.LoadPhys(pteAddr, sch.pteSize)
		if !loaded {
			_, fault, _ := trap.FaultCauses(access)
			return 0, fault, false
		}

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			_, _, pf := trap.FaultCauses(access)
			return 0, pf, false
		}

		isLeaf := pte&pteRWXMask != 0
		if !isLeaf {
			pageTable = ((pte >> 10) << 12)
			continue
		}

		if ok, cause := checkLeafPermissions(pte, access, effPriv, p); !ok {
			return 0, cause, false
		}

		// Misaligned superpage: low PPN bits below level i must be zero.
		ppn := pte >> 10
		for j := 0; j < i; j++ {
			bits := sch.levels[j].vpnBits
			if ppn&(uint64(1)<<bits-1) != 0 {
				_, _, pf := trap.FaultCauses(access)
				return 0, pf, false
			}
			ppn >>= bits
		}

		setAccessDirty(mem, pteAddr, sch.pteSize, pte, access)

		return composePhysAddr(sch, i, pte, vaddr), 0, true
	}

	_, _, pf := trap.FaultCauses(access)
	return 0, pf, false
}

func checkLeafPermissions(pte uint64, access trap.Access, effPriv trap.Priv, p Params) (bool, trap.Cause) {
	_, _, pf := trap.FaultCauses(access)

	switch access {
	case trap.AccessExec:
		if pte&pteX == 0 {
			return false, pf
		}
	case trap.AccessWrite:
		if pte&pteW == 0 {
			return false, pf
		}
	case trap.AccessRead:
		readable := pte&pteR != 0 || (p.MXR && pte&pteX != 0)
		if !readable {
			return false, pf
		}
	}

	if pte&pteU != 0 {
		if effPriv == trap.Supervisor && !(p.SUM && access != trap.AccessExec) {
			return false, pf
		}
	} else if effPriv == trap.User {
		return false, pf
	}
	return true, 0
}

// setAccessDirty sets PTE.A (and PTE.D on a write) via CAS, ignoring
// failure: another hart may have already set the bits.
func setAccessDirty(mem Mem, pteAddr uint64, pteSize int, pte uint64, access trap.Access) {
	want := pte | pteA
	if access == trap.AccessWrite {
		want |= pteD
	}
	if want == pte {
		return
	}
	mem.CASPhys(pteAddr, pteSize, pte, want)
}

// composePhysAddr builds the physical address from the PPN bits above
// level i (taken from the leaf PTE) and the VPN bits below level i plus
// the page offset. This implements superpages: for a superpage the
// PTE's low PPN bits are required to be zero (checked by the caller),
// and the actual physical page number borrows those low bits straight
// from the virtual address.
func composePhysAddr(sch struct {
	pteSize int
	levels  []level
}, leafLevel int, pte uint64, vaddr uint64) uint64 {
	ppn := pte >> 10
	if lowBits := lowLevelsBits(sch, leafLevel); lowBits > 0 {
		mask := uint64(1)<<lowBits - 1
		ppn = (ppn &^ mask) | ((vaddr >> 12) & mask)
	}
	return (ppn << 12) | (vaddr & 0xfff)
}

func lowLevelsBits(sch struct {
	pteSize int
	levels  []level
}, leafLevel int) uint {
	var total uint
	for j := 0; j < leafLevel; j++ {
		total += sch.levels[j].vpnBits
	}
	return total
}
