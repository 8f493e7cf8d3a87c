/*
 * riscvcore - Atomic primitives over little-endian memory views.
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

// Package xatomic implements the atomic primitives the A-extension
// emulation and inter-hart signalling (wait/wake flags, pending
// interrupt masks, LR/SC reservation validity) need on top of a plain
// byte-addressed memory buffer. Go guarantees sync/atomic operates on
// the host's native byte order; every host Go currently supports for
// this project (amd64, arm64) is little-endian, and guest memory is
// always stored in little-endian form (bits.StoreU32/64), so a plain
// *uint32/*uint64 pointed at the backing byte slice already gives the
// little-endian atomic view callers need. Every load and store here is
// sequentially consistent, the only ordering Go's memory model offers
// for sync/atomic; the package has no separate relaxed, acquire or
// release variants.
package xatomic

import (
	"sync/atomic"
	"unsafe"
)

// word32 returns a *uint32 aliasing buf[off:off+4]. Caller guarantees
// off is 4-byte aligned and within buf.
func word32(buf []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[off]))
}

// word64 returns a *uint64 aliasing buf[off:off+8]. Caller guarantees
// off is 8-byte aligned and within buf.
func word64(buf []byte, off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&buf[off]))
}

// LoadU32 performs a sequentially consistent load.
func LoadU32(buf []byte, off int) uint32 { return atomic.LoadUint32(word32(buf, off)) }

// LoadU64 performs a sequentially consistent load.
func LoadU64(buf []byte, off int) uint64 { return atomic.LoadUint64(word64(buf, off)) }

// StoreU32 performs a sequentially consistent store.
func StoreU32(buf []byte, off int, v uint32) { atomic.StoreUint32(word32(buf, off), v) }

// StoreU64 performs a sequentially consistent store.
func StoreU64(buf []byte, off int, v uint64) { atomic.StoreUint64(word64(buf, off), v) }

// CAS32 attempts to swap old for new at off, returning the prior value
// and whether the swap took effect.
func CAS32(buf []byte, off int, old, new uint32) (prev uint32, ok bool) {
	p := word32(buf, off)
	for {
		cur := atomic.LoadUint32(p)
		if cur != old {
			return cur, false
		}
		if atomic.CompareAndSwapUint32(p, old, new) {
			return cur, true
		}
	}
}

// CAS64 attempts to swap old for new at off, returning the prior value
// and whether the swap took effect.
func CAS64(buf []byte, off int, old, new uint64) (prev uint64, ok bool) {
	p := word64(buf, off)
	for {
		cur := atomic.LoadUint64(p)
		if cur != old {
			return cur, false
		}
		if atomic.CompareAndSwapUint64(p, old, new) {
			return cur, true
		}
	}
}

// Swap32 atomically stores new and returns the previous value.
func Swap32(buf []byte, off int, new uint32) uint32 {
	return atomic.SwapUint32(word32(buf, off), new)
}

// Swap64 atomically stores new and returns the previous value.
func Swap64(buf []byte, off int, new uint64) uint64 {
	return atomic.SwapUint64(word64(buf, off), new)
}

// FetchAdd32 atomically adds delta and returns the previous value.
func FetchAdd32(buf []byte, off int, delta uint32) uint32 {
	return atomic.AddUint32(word32(buf, off), delta) - delta
}

// FetchAdd64 atomically adds delta and returns the previous value.
func FetchAdd64(buf []byte, off int, delta uint64) uint64 {
	return atomic.AddUint64(word64(buf, off), delta) - delta
}

// genericFetch32 applies op via CAS loop and returns the previous value.
func genericFetch32(buf []byte, off int, op func(uint32) uint32) uint32 {
	p := word32(buf, off)
	for {
		cur := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, cur, op(cur)) {
			return cur
		}
	}
}

func genericFetch64(buf []byte, off int, op func(uint64) uint64) uint64 {
	p := word64(buf, off)
	for {
		cur := atomic.LoadUint64(p)
		if atomic.CompareAndSwapUint64(p, cur, op(cur)) {
			return cur
		}
	}
}

func FetchAnd32(buf []byte, off int, mask uint32) uint32 {
	return genericFetch32(buf, off, func(v uint32) uint32 { return v & mask })
}

func FetchOr32(buf []byte, off int, mask uint32) uint32 {
	return genericFetch32(buf, off, func(v uint32) uint32 { return v | mask })
}

func FetchXor32(buf []byte, off int, mask uint32) uint32 {
	return genericFetch32(buf, off, func(v uint32) uint32 { return v ^ mask })
}

func FetchAnd64(buf []byte, off int, mask uint64) uint64 {
	return genericFetch64(buf, off, func(v uint64) uint64 { return v & mask })
}

func FetchOr64(buf []byte, off int, mask uint64) uint64 {
	return genericFetch64(buf, off, func(v uint64) uint64 { return v | mask })
}

func FetchXor64(buf []byte, off int, mask uint64) uint64 {
	return genericFetch64(buf, off, func(v uint64) uint64 { return v ^ mask })
}

func FetchMaxSigned32(buf []byte, off int, v int32) uint32 {
	return genericFetch32(buf, off, func(cur uint32) uint32 {
		if int32(cur) >= v {
			return cur
		}
		return uint32(v)
	})
}

func FetchMinSigned32(buf []byte, off int, v int32) uint32 {
	return genericFetch32(buf, off, func(cur uint32) uint32 {
		if int32(cur) <= v {
			return cur
		}
		return uint32(v)
	})
}

func FetchMaxUnsigned32(buf []byte, off int, v uint32) uint32 {
	return genericFetch32(buf, off, func(cur uint32) uint32 {
		if cur >= v {
			return cur
		}
		return v
	})
}

func FetchMinUnsigned32(buf []byte, off int, v uint32) uint32 {
	return genericFetch32(buf, off, func(cur uint32) uint32 {
		if cur <= v {
			return cur
		}
		return v
	})
}

func FetchMaxSigned64(buf []byte, off int, v int64) uint64 {
	return genericFetch64(buf, off, func(cur uint64) uint64 {
		if int64(cur) >= v {
			return cur
		}
		return uint64(v)
	})
}

func FetchMinSigned64(buf []byte, off int, v int64) uint64 {
	return genericFetch64(buf, off, func(cur uint64) uint64 {
		if int64(cur) <= v {
			return cur
		}
		return uint64(v)
	})
}

func FetchMaxUnsigned64(buf []byte, off int, v uint64) uint64 {
	return genericFetch64(buf, off, func(cur uint64) uint64 {
		if cur >= v {
			return cur
		}
		return v
	})
}

func FetchMinUnsigned64(buf []byte, off int, v uint64) uint64 {
	return genericFetch64(buf, off, func(cur uint64) uint64 {
		if cur <= v {
			return cur
		}
		return v
	})
}

// Fence is a process-wide sequentially consistent fence. Go's memory
// model has no bare fence primitive; any sync/atomic op is already a
// full fence on every port this project targets, so Fence performs a
// throwaway CAS on a scratch cell to force the same instruction the
// rest of this package relies on, documenting intent at FENCE/FENCE.I
// call sites.
var fenceCell uint32

func Fence() {
	atomic.CompareAndSwapUint32(&fenceCell, atomic.LoadUint32(&fenceCell), 0)
}
