/*
 * riscvcore - CSR index space and generic dispatch table.
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

// Package csr implements the 4096-slot CSR dispatch mechanics: the
// index-encoded privilege/writability rules, and a generic per-machine
// dispatch table built once at construction time rather than shared
// globally across machines. The table is generic over the hart type so
// that this package has no dependency on hart state, following the
// same per-instance function-table-by-index shape used for opcode
// dispatch elsewhere in this project.
package csr

import "github.com/rvcore/machine/trap"

// Op is the CSR read-modify-write operation encoded by CSRRW/S/C and
// their immediate forms.
type Op uint8

const (
	Swap Op = iota
	SetBits
	ClearBits
)

// MinPrivilege decodes bits [9:8] of a CSR index, the minimum privilege
// required to access it.
func MinPrivilege(index uint16) trap.Priv {
	switch (index >> 8) & 0x3 {
	case 0:
		return trap.User
	case 1:
		return trap.Supervisor
	default:
		return trap.Machine
	}
}

// ReadOnly decodes bits [11:10] of a CSR index: 0b11 means the CSR is
// read-only and any write (even of the current value) traps illegal
// instruction.
func ReadOnly(index uint16) bool {
	return (index>>10)&0x3 == 0x3
}

// Handler implements one CSR slot. word holds the write operand on
// entry (a replacement value for Swap, or a set/clear mask for
// SetBits/ClearBits) and must hold the pre-operation value on exit, so
// the CSRRx variants that read-then-modify a register get the correct
// old value. A handler returns false to signal an illegal access
// distinct from an unpopulated slot (e.g. a WARL field rejecting a
// value outright); unpopulated slots are already rejected by Bank
// before any handler runs.
type Handler[T any] func(hart *T, word *uint64, op Op) bool

// Bank is a machine-local (never global) dispatch table across the full
// 12-bit CSR index space.
type Bank[T any] struct {
	slots [4096]Handler[T]
}

// NewBank returns an empty bank; every slot reports "illegal CSR" until
// Register is called.
func NewBank[T any]() *Bank[T] {
	return &Bank[T]{}
}

// Register installs handler at index. Intended to run once during
// machine construction.
func (b *Bank[T]) Register(index uint16, handler Handler[T]) {
	b.slots[index&0xfff] = handler
}

// Dispatch performs the full access-check + handler sequence: privilege
// check, read-only check, then the handler itself. curPriv is the
// hart's current privilege level. Returns ok=false for
// any failure (unpopulated slot, insufficient privilege, or write to a
// read-only CSR), which the caller raises as TRAP_ILL_INSTR.
func (b *Bank[T]) Dispatch(hart *T, index uint16, word *uint64, op Op, curPriv trap.Priv, isWrite bool) bool {
	idx := index & 0xfff
	if curPriv < MinPrivilege(idx) {
		return false
	}
	if isWrite && ReadOnly(idx) {
		return false
	}
	h := b.slots[idx]
	if h == nil {
		return false
	}
	return h(hart, word, op)
}

// Apply computes the new register value from the pre-op value (left in
// word by the handler) and the write operand the caller captured before
// calling Dispatch, implementing SWAP/SETBITS/CLEARBITS uniformly. It
// does no masking; handlers mask its result themselves because the
// writable bits vary per CSR (WARL).
func Apply(old uint64, writeOperand uint64, op Op) uint64 {
	switch op {
	case SetBits:
		return old | writeOperand
	case ClearBits:
		return old &^ writeOperand
	default:
		return writeOperand
	}
}
