/*
 * riscvcore - Instruction field extraction and immediate decoding.
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

// inst32 is a raw 32-bit instruction word with RISC-V's standard
// field extractors. Every method name mirrors the field it reads.
type inst32 uint32

func (i inst32) opcode() uint32 { return uint32(i) & 0x7f }
func (i inst32) rd() uint32     { return (uint32(i) >> 7) & 0x1f }
func (i inst32) funct3() uint32 { return (uint32(i) >> 12) & 0x7 }
func (i inst32) rs1() uint32    { return (uint32(i) >> 15) & 0x1f }
func (i inst32) rs2() uint32    { return (uint32(i) >> 20) & 0x1f }
func (i inst32) rs3() uint32    { return (uint32(i) >> 27) & 0x1f }
func (i inst32) funct7() uint32 { return (uint32(i) >> 25) & 0x7f }
func (i inst32) funct5() uint32 { return (uint32(i) >> 27) & 0x1f }
func (i inst32) aq() bool       { return (uint32(i)>>26)&1 != 0 }
func (i inst32) rl() bool       { return (uint32(i)>>25)&1 != 0 }
func (i inst32) csr() uint16    { return uint16((uint32(i) >> 20) & 0xfff) }
func (i inst32) rm() uint32     { return i.funct3() }

func signExtend(v uint32, bits uint) uint64 {
	shift := 32 - bits
	return uint64(int64(int32(v<<shift)) >> shift)
}

func (i inst32) immI() uint64 {
	return signExtend(uint32(i)>>20, 12)
}

func (i inst32) immS() uint64 {
	v := ((uint32(i) >> 25) << 5) | i.rd()
	return signExtend(v, 12)
}

func (i inst32) immB() uint64 {
	b := uint32(i)
	v := ((b >> 31) << 12) | (((b >> 7) & 1) << 11) | (((b >> 25) & 0x3f) << 5) | (((b >> 8) & 0xf) << 1)
	return signExtend(v, 13)
}

func (i inst32) immU() uint64 {
	return uint64(uint32(i) & 0xffff_f000)
}

func (i inst32) immJ() uint64 {
	b := uint32(i)
	v := ((b >> 31) << 20) | (((b >> 12) & 0xff) << 12) | (((b >> 20) & 1) << 11) | (((b >> 21) & 0x3ff) << 1)
	return signExtend(v, 21)
}

func (i inst32) shamt(xlen int) uint32 {
	if xlen == 32 {
		return i.rs2()
	}
	return (uint32(i) >> 20) & 0x3f
}
