/*
 * riscvcore - Per-hart software TLB.
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

// Package tlb implements a direct-mapped per-hart software TLB. Each
// entry independently tracks read, write and execute permission for
// one virtual page, aliased onto a single slot so a page mapped RWX
// costs one entry instead of three. Entries are owned exclusively by
// the hart that installs them; nothing here is safe for concurrent use
// by more than one goroutine, since each hart's register file and TLB
// belong to exactly one goroutine.
package tlb

const (
	// Size is the number of direct-mapped slots, a power of two.
	Size = 256
	// pageShift is log2(4096), the guest page size for every supported
	// SV scheme.
	pageShift = 12
)

// sentinel is a VPN value no real virtual page number can equal, used
// to mark a permission field invalid in place of a separate valid bit,
// keeping the hot-path hit test to a single compare per permission
// instead of a compare-and-branch.
const sentinel = ^uint64(0)

// Entry is one direct-mapped slot. vpnR/vpnW/vpnE independently gate
// read/write/execute access to the same cached translation; a slot
// holding R-only, RW, or RWX access is indistinguishable in storage
// cost.
type Entry struct {
	VPNR       uint64
	VPNW       uint64
	VPNE       uint64
	HostOffset int64 // physAddr = uint64(int64(vaddr) + HostOffset)
}

// Table is the fixed-size array of Size entries belonging to one hart.
type Table struct {
	entries [Size]Entry
}

func index(vpn uint64) uint64 { return vpn & (Size - 1) }

// NewTable returns a table with every entry initialized to sentinel
// VPNs, including entry 0, so a lookup for virtual page 0 still misses
// on a fresh table.
func NewTable() *Table {
	t := &Table{}
	t.Reset()
	return t
}

// Reset invalidates every entry in O(Size) and is used both at
// construction and for every whole-TLB flush.
func (t *Table) Reset() {
	for i := range t.entries {
		t.entries[i] = Entry{VPNR: sentinel, VPNW: sentinel, VPNE: sentinel}
	}
}

// Lookup checks whether vaddr's page is cached with the requested
// permission. On a hit it returns the physical address by adding the
// cached host offset to vaddr, with no page-table arithmetic.
func (t *Table) Lookup(vaddr uint64, read, write, exec bool) (physAddr uint64, ok bool) {
	vpn := vaddr >> pageShift
	e := &t.entries[index(vpn)]
	switch {
	case exec:
		if e.VPNE != vpn {
			return 0, false
		}
	case write:
		if e.VPNW != vpn {
			return 0, false
		}
	case read:
		if e.VPNR != vpn {
			return 0, false
		}
	default:
		return 0, false
	}
	return uint64(int64(vaddr) + e.HostOffset), true
}

// Install records a translation for vaddr with the given access
// permission. A single slot may accumulate R, W and X permissions
// across separate Install calls as long as each call maps the same
// page to the same physical offset; installing a different page into an
// already-occupied slot invalidates the other two permission fields
// unless they already mapped the same page.
func (t *Table) Install(vaddr, physAddr uint64, read, write, exec bool) {
	vpn := vaddr >> pageShift
	offset := int64(physAddr) - int64(vaddr)
	e := &t.entries[index(vpn)]

	if e.VPNR != vpn {
		e.VPNR = sentinel
	}
	if e.VPNW != vpn {
		e.VPNW = sentinel
	}
	if e.VPNE != vpn {
		e.VPNE = sentinel
	}
	e.HostOffset = offset

	if read {
		e.VPNR = vpn
	}
	if write {
		e.VPNW = vpn
	}
	if exec {
		e.VPNE = vpn
	}
}

// FlushPage invalidates the permission fields of vaddr's slot that
// currently map vaddr's page; fields holding another page are left
// as they are (a direct-mapped cache holds at most one page per slot).
func (t *Table) FlushPage(vaddr uint64) {
	vpn := vaddr >> pageShift
	e := &t.entries[index(vpn)]
	if e.VPNR == vpn {
		e.VPNR = sentinel
	}
	if e.VPNW == vpn {
		e.VPNW = sentinel
	}
	if e.VPNE == vpn {
		e.VPNE = sentinel
	}
}

// Entries exposes the backing array for tests that want to assert on
// raw slot contents.
func (t *Table) Entries() *[Size]Entry { return &t.entries }
