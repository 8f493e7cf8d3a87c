/*
 * riscvcore - Physical memory region.
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

// Package memory implements the physical memory region and the MMIO
// registry that back a machine's address space. Guest RAM is one
// contiguous host allocation; devices are serviced through an ordered
// list of byte-granular callback regions.
package memory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// Region is one contiguous block of guest RAM.
type Region struct {
	Base uint64
	Size uint64
	data []byte
	// DirtyHook, if non-nil, is invoked after every committed store with
	// the physical address of the page that was written. It lets an
	// external JIT subsystem track dirty pages; the core itself never
	// sets it.
	DirtyHook func(pageAddr uint64)
}

// NewRegion allocates size bytes of guest RAM at physical base via an
// anonymous mmap, mirroring how a production VMM backs guest memory (as
// opposed to a plain Go slice, which the host GC is free to move or
// scan less predictably for a region this large).
func NewRegion(base, size uint64) (*Region, error) {
	if size == 0 || size%pageSize != 0 {
		return nil, fmt.Errorf("memory: size %d is not a nonzero multiple of the page size", size)
	}
	if base%pageSize != 0 {
		return nil, fmt.Errorf("memory: base %#x is not page aligned", base)
	}
	if base+size < base {
		return nil, fmt.Errorf("memory: base+size overflows the address space")
	}
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("memory: mmap %d bytes: %w", size, err)
	}
	return &Region{Base: base, Size: size, data: buf}, nil
}

// Close releases the host mapping backing the region.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// Contains reports whether the physical range [addr, addr+size) lies
// entirely within the region.
func (r *Region) Contains(addr, size uint64) bool {
	if addr < r.Base {
		return false
	}
	end := addr + size
	if end < addr {
		return false
	}
	return end <= r.Base+r.Size
}

// Bytes returns the raw backing slice, for use by xatomic and bits on
// the hot path. Callers must have already validated the access with
// Contains.
func (r *Region) Bytes() []byte { return r.data }

// Offset returns the byte offset of addr within the region's backing
// slice. Callers must have validated addr with Contains first.
func (r *Region) Offset(addr uint64) int { return int(addr - r.Base) }

// MarkDirty invokes DirtyHook (if set) with addr's containing page.
// StorePhys calls this after every RAM write; callers that write RAM
// through some other path (e.g. a host atomic RMW bypassing StorePhys)
// must call it themselves.
func (r *Region) MarkDirty(addr uint64) {
	if r.DirtyHook != nil {
		r.DirtyHook(addr &^ (pageSize - 1))
	}
}
