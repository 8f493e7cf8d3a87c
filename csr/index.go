/*
 * riscvcore - Named CSR indices.
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

package csr

const (
	Fflags Index = 0x001
	Frm    Index = 0x002
	Fcsr   Index = 0x003

	Cycle   Index = 0xc00
	Time    Index = 0xc01
	Instret Index = 0xc02
	Cycleh  Index = 0xc80
	Timeh   Index = 0xc81
	Instreth Index = 0xc82

	Sstatus    Index = 0x100
	Sie        Index = 0x104
	Stvec      Index = 0x105
	Scounteren Index = 0x106
	Sscratch   Index = 0x140
	Sepc       Index = 0x141
	Scause     Index = 0x142
	Stval      Index = 0x143
	Sip        Index = 0x144
	Satp       Index = 0x180

	Mstatus    Index = 0x300
	Misa       Index = 0x301
	Medeleg    Index = 0x302
	Mideleg    Index = 0x303
	Mie        Index = 0x304
	Mtvec      Index = 0x305
	Mcounteren Index = 0x306
	Mstatush   Index = 0x310
	Mscratch   Index = 0x340
	Mepc       Index = 0x341
	Mcause     Index = 0x342
	Mtval      Index = 0x343
	Mip        Index = 0x344

	Mhartid Index = 0xf14

	Mcycle   Index = 0xb00
	Minstret Index = 0xb02
	Mcycleh  Index = 0xb80
	Minstreth Index = 0xb82
)

// Index is a 12-bit CSR address.
type Index = uint16

// HPMCounterBase/HPMEventBase mark the start of the hardwired-zero
// counter ranges: mhpmcounter3..31, mhpmevent3..31, and their
// user-visible hpmcounter3..31 shadows are always zero, read or write,
// since this core implements no additional performance counters beyond
// cycle/time/instret.
const (
	HPMCounterBase  Index = 0xc03
	HPMCounterTop   Index = 0xc1f
	HPMCounterHBase Index = 0xc83
	HPMCounterHTop  Index = 0xc9f
	MHPMCounterBase Index = 0xb03
	MHPMCounterTop  Index = 0xb1f
	MHPMEventBase   Index = 0x323
	MHPMEventTop    Index = 0x33f
)
