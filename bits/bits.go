/*
 * riscvcore - Bit and byte-buffer primitives.
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

// Package bits provides pure bitfield and little-endian byte-buffer
// primitives shared by the decoder, the page-table walker, and the CSR
// bank. Nothing here touches guest or host memory state.
package bits

import "math"

// SignExtend interprets the low n bits of value as a two's complement
// integer of width n and sign-extends it to 64 bits. n must be in 1..64.
func SignExtend(value uint64, n uint) int64 {
	shift := 64 - n
	return int64(value<<shift) >> shift
}

// Cut extracts the len-bit field starting at bit start (LSB-relative).
func Cut(value uint64, start, length uint) uint64 {
	if length >= 64 {
		return value >> start
	}
	mask := uint64(1)<<length - 1
	return (value >> start) & mask
}

// Replace returns value with its len-bit field at bit start replaced by
// the low len bits of newField.
func Replace(value uint64, start, length uint, newField uint64) uint64 {
	if length >= 64 {
		return newField
	}
	mask := uint64(1)<<length - 1
	value &^= mask << start
	value |= (newField & mask) << start
	return value
}

// Check reports whether bit pos of value is set.
func Check(value uint64, pos uint) bool {
	return (value>>pos)&1 != 0
}

// LoadU16 reads a little-endian uint16 from buf at off.
func LoadU16(buf []byte, off int) uint16 {
	_ = buf[off+1]
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

// LoadU32 reads a little-endian uint32 from buf at off.
func LoadU32(buf []byte, off int) uint32 {
	_ = buf[off+3]
	return uint32(buf[off]) | uint32(buf[off+1])<<8 |
		uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}

// LoadU64 reads a little-endian uint64 from buf at off.
func LoadU64(buf []byte, off int) uint64 {
	_ = buf[off+7]
	return uint64(LoadU32(buf, off)) | uint64(LoadU32(buf, off+4))<<32
}

// StoreU16 writes v to buf at off in little-endian order.
func StoreU16(buf []byte, off int, v uint16) {
	_ = buf[off+1]
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

// StoreU32 writes v to buf at off in little-endian order.
func StoreU32(buf []byte, off int, v uint32) {
	_ = buf[off+3]
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

// StoreU64 writes v to buf at off in little-endian order.
func StoreU64(buf []byte, off int, v uint64) {
	_ = buf[off+7]
	StoreU32(buf, off, uint32(v))
	StoreU32(buf, off+4, uint32(v>>32))
}

// LoadF32 reads a little-endian IEEE-754 single from buf at off.
func LoadF32(buf []byte, off int) float32 {
	return math.Float32frombits(LoadU32(buf, off))
}

// LoadF64 reads a little-endian IEEE-754 double from buf at off.
func LoadF64(buf []byte, off int) float64 {
	return math.Float64frombits(LoadU64(buf, off))
}

// StoreF32 writes v to buf at off in little-endian IEEE-754 single format.
func StoreF32(buf []byte, off int, v float32) {
	StoreU32(buf, off, math.Float32bits(v))
}

// StoreF64 writes v to buf at off in little-endian IEEE-754 double format.
func StoreF64(buf []byte, off int, v float64) {
	StoreU64(buf, off, math.Float64bits(v))
}

// LoadUnaligned reads an n-byte (1,2,4,8) little-endian unsigned value
// from buf at off without requiring off to be aligned to n.
func LoadUnaligned(buf []byte, off, n int) uint64 {
	switch n {
	case 1:
		return uint64(buf[off])
	case 2:
		return uint64(LoadU16(buf, off))
	case 4:
		return uint64(LoadU32(buf, off))
	case 8:
		return LoadU64(buf, off)
	default:
		panic("bits: unsupported access width")
	}
}

// StoreUnaligned writes the low n bytes (1,2,4,8) of v to buf at off in
// little-endian order without requiring off to be aligned to n.
func StoreUnaligned(buf []byte, off, n int, v uint64) {
	switch n {
	case 1:
		buf[off] = byte(v)
	case 2:
		StoreU16(buf, off, uint16(v))
	case 4:
		StoreU32(buf, off, uint32(v))
	case 8:
		StoreU64(buf, off, v)
	default:
		panic("bits: unsupported access width")
	}
}
