/*
 * riscvcore - Trap cause codes and privilege delegation.
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

// Package trap holds the RISC-V trap cause / interrupt code constants
// and the pure M-vs-S delegation rule used by the privilege engine. It
// has no dependency on hart or memory state so that both can import it
// without a cycle.
package trap

// Priv is a privilege level.
type Priv uint8

const (
	User       Priv = 0
	Supervisor Priv = 1
	Machine    Priv = 3
)

// Cause is a trap cause value as stored in xcause, without the
// interrupt bit (callers pass that separately as an isInterrupt flag,
// and InterruptBit marks it in xcause).
type Cause uint64

// Exception causes (mcause/scause low bits when the interrupt bit is 0).
const (
	InstrMisaligned Cause = 0
	InstrFault      Cause = 1
	IllegalInstr    Cause = 2
	Breakpoint      Cause = 3
	LoadMisaligned  Cause = 4
	LoadFault       Cause = 5
	StoreMisaligned Cause = 6
	StoreFault      Cause = 7
	ECallFromU      Cause = 8
	ECallFromS      Cause = 9
	ECallFromM      Cause = 11
	InstrPageFault  Cause = 12
	LoadPageFault   Cause = 13
	StorePageFault  Cause = 15
)

// Interrupt causes (mip/mie bit positions, also mcause low bits when the
// interrupt bit is 1).
const (
	SupervisorSoftware Cause = 1
	MachineSoftware    Cause = 3
	SupervisorTimer    Cause = 5
	MachineTimer       Cause = 7
	SupervisorExternal Cause = 9
	MachineExternal    Cause = 11
)

// InterruptBit is set in xcause to mark an asynchronous interrupt.
const InterruptBit = uint64(1) << 63

// Access is the kind of memory access being attempted, used to select
// among the three page-fault/fault/misalign causes during translation
// and the memory-access fault paths.
type Access uint8

const (
	AccessRead Access = iota
	AccessWrite
	AccessExec
)

// FaultCauses returns the (misaligned, fault, pagefault) cause triple
// appropriate to access.
func FaultCauses(access Access) (misaligned, fault, pagefault Cause) {
	switch access {
	case AccessWrite:
		return StoreMisaligned, StoreFault, StorePageFault
	case AccessExec:
		return InstrMisaligned, InstrFault, InstrPageFault
	default:
		return LoadMisaligned, LoadFault, LoadPageFault
	}
}

// SelectPrivilege walks the delegation chain for cause starting at
// Machine, descending to Supervisor while deleg has the corresponding
// bit set and curPriv is below Machine. It never delegates below
// curPriv and never delegates to a level the trap originated above.
func SelectPrivilege(cause Cause, isInterrupt bool, deleg uint64, curPriv Priv) Priv {
	if curPriv == Machine {
		return Machine
	}
	bit := uint(cause)
	if isInterrupt {
		// mideleg uses the same bit positions as mip/mie.
	}
	if bit < 64 && (deleg>>bit)&1 != 0 {
		return Supervisor
	}
	return Machine
}
