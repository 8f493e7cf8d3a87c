/*
 * riscvcore - Per-hart state, trap delivery and the run loop.
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

// Package hart implements a single hardware thread: its register file,
// CSR bank, TLB, the RV32I/RV64I interpreter (plus M, A, C, F, D,
// Zicsr, Zifencei), the privileged trap engine, and the per-hart run
// loop that multiplexes interrupts, pause/preempt requests and
// instruction dispatch. One goroutine owns exactly one Hart; the only
// state other goroutines touch directly is the atomic waitEvent,
// pendingIRQs and pendingEvents words plus the lrscValid flag invalidated
// by a remote store-conditional.
package hart

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rvcore/machine/csr"
	"github.com/rvcore/machine/memory"
	"github.com/rvcore/machine/timer"
	"github.com/rvcore/machine/tlb"
	"github.com/rvcore/machine/trap"
)

const (
	eventPause uint32 = 1 << iota
	eventPreempt
)

// Stats counts per-hart retired instructions and delivered traps for
// diagnostics; Retired backs the cycle/instret CSRs (time is read from
// the timer), not a general performance-counter framework.
type Stats struct {
	Retired    uint64
	Traps      uint64
	Interrupts uint64
}

// Hart is one RISC-V hardware thread.
type Hart struct {
	ID   int
	XLen int // 32 or 64

	log *slog.Logger

	xregs [32]uint64
	fregs [32]uint64 // raw bit patterns; 32-bit values are NaN-boxed per F/D convention
	pc    uint64

	priv trap.Priv

	mstatus uint64
	satp    uint64
	medeleg uint64
	mideleg uint64
	mie     uint64
	mip     uint64
	mtvec   uint64
	stvec   uint64
	mepc    uint64
	sepc    uint64
	mcause  uint64
	scause  uint64
	mtval   uint64
	stval   uint64
	mscratch   uint64
	sscratch   uint64
	mcounteren uint64
	scounteren uint64
	fcsr       uint64

	csrs *csr.Bank[Hart]

	tlb *tlb.Table
	bus *memory.Bus

	lrscValid uint32 // atomic: other harts clear this on a conflicting SC
	lrscAddr  uint64
	lrscSize  int

	waitEvent     uint32
	pendingIRQs   uint64
	pendingEvents uint32

	preemptBudget time.Duration

	wfiMu   sync.Mutex
	wfiCond *sync.Cond

	timer *timer.Timer

	fenceGen uint64 // bumped by fence.i; observable proxy for "instruction stream invalidated"

	trapPending bool
	trapPC      uint64

	team siblings

	Stats Stats
}

// siblings lets a hart broadcast an LR/SC invalidation to every other
// hart sharing the machine, without holding a reference to the whole
// Machine (import-cycle avoidance: machine owns hart, not vice versa).
type siblings interface {
	ForEachOther(self *Hart, fn func(*Hart))
}

// New constructs a hart in machine reset state: M-mode, MMU off, pc at
// resetPC. bank is the CSR dispatch table built once by the owning
// machine and shared (read-only after construction) by every hart.
func New(id, xlen int, resetPC uint64, bus *memory.Bus, bank *csr.Bank[Hart], tm *timer.Timer, log *slog.Logger) *Hart {
	h := &Hart{
		ID:            id,
		XLen:          xlen,
		log:           log,
		pc:            resetPC,
		priv:          trap.Machine,
		csrs:          bank,
		tlb:           tlb.NewTable(),
		bus:           bus,
		timer:         tm,
		preemptBudget: time.Millisecond,
	}
	h.wfiCond = sync.NewCond(&h.wfiMu)
	if tm != nil {
		tm.Register(id, h)
	}
	return h
}

// regMask returns the bits of a general register that are architecturally
// defined for the hart's current XLEN.
func (h *Hart) regMask() uint64 {
	if h.XLen == 32 {
		return 0xffff_ffff
	}
	return ^uint64(0)
}

func (h *Hart) getReg(i uint32) uint64 { return h.xregs[i&0x1f] }

func (h *Hart) setReg(i uint32, v uint64) {
	i &= 0x1f
	if i == 0 {
		return
	}
	h.xregs[i] = v & h.regMask()
}

// PC returns the hart's current program counter, for tests and logging.
func (h *Hart) PC() uint64 { return h.pc }

// Priv returns the hart's current privilege level.
func (h *Hart) Priv() trap.Priv { return h.priv }

// SetReg/GetReg exported for test harnesses constructing scenarios.
func (h *Hart) SetReg(i uint32, v uint64) { h.setReg(i, v) }
func (h *Hart) GetReg(i uint32) uint64    { return h.getReg(i) }

// SetPC seeds the program counter, used by scenario tests.
func (h *Hart) SetPC(pc uint64) { h.pc = pc }

// RaiseIRQ sets external interrupt line irq (0..12) pending and wakes
// the hart if it is blocked in WFI. Safe to call from any goroutine.
func (h *Hart) RaiseIRQ(irq uint) {
	if irq > 12 {
		return
	}
	for {
		old := atomic.LoadUint64(&h.pendingIRQs)
		new := old | (uint64(1) << irq)
		if atomic.CompareAndSwapUint64(&h.pendingIRQs, old, new) {
			break
		}
	}
	h.wake()
}

// ClearIRQ clears external interrupt line irq.
func (h *Hart) ClearIRQ(irq uint) {
	if irq > 12 {
		return
	}
	for {
		old := atomic.LoadUint64(&h.pendingIRQs)
		new := old &^ (uint64(1) << irq)
		if atomic.CompareAndSwapUint64(&h.pendingIRQs, old, new) {
			break
		}
	}
}

// RaiseTimerInterrupt implements timer.Waker: it sets MTIP and wakes
// the hart. The timer interrupt is a fixed bit, distinct from the
// numbered external lines RaiseIRQ manages.
func (h *Hart) RaiseTimerInterrupt() {
	for {
		old := atomic.LoadUint64(&h.pendingIRQs)
		new := old | (uint64(1) << timerPendingBit)
		if atomic.CompareAndSwapUint64(&h.pendingIRQs, old, new) {
			break
		}
	}
	h.wake()
}

const timerPendingBit = 63 // reserved slot distinct from external IRQ lines 0..12

// wake clears wait_event with release semantics and signals any WFI
// waiter. The signaller clears the flag before signalling and the
// waiter re-checks it under the condvar mutex, so a wakeup that races
// the waiter going to sleep is never lost.
func (h *Hart) wake() {
	atomic.StoreUint32(&h.waitEvent, 0)
	h.wfiMu.Lock()
	h.wfiCond.Broadcast()
	h.wfiMu.Unlock()
}

// Pause requests the run loop exit at the next instruction boundary.
func (h *Hart) Pause() {
	h.setEvent(eventPause)
	h.wake()
}

// Preempt asks the hart to sleep for budget before its next instruction.
func (h *Hart) Preempt(budget time.Duration) {
	h.preemptBudget = budget
	h.setEvent(eventPreempt)
	h.wake()
}

func (h *Hart) setEvent(bit uint32) {
	for {
		old := atomic.LoadUint32(&h.pendingEvents)
		new := old | bit
		if atomic.CompareAndSwapUint32(&h.pendingEvents, old, new) {
			return
		}
	}
}

func (h *Hart) clearEvent(bit uint32) {
	for {
		old := atomic.LoadUint32(&h.pendingEvents)
		new := old &^ bit
		if atomic.CompareAndSwapUint32(&h.pendingEvents, old, new) {
			return
		}
	}
}

// invalidateReservation is called on this hart by another hart's
// successful store-conditional (or any store) to an overlapping
// address; release-ordered so the invalidation is visible before the
// other hart's SC result is.
func (h *Hart) invalidateReservation(addr uint64, size int) {
	if atomic.LoadUint32(&h.lrscValid) == 0 {
		return
	}
	if overlap(h.lrscAddr, h.lrscSize, addr, size) {
		atomic.StoreUint32(&h.lrscValid, 0)
	}
}

func overlap(aAddr uint64, aSize int, bAddr uint64, bSize int) bool {
	aEnd := aAddr + uint64(aSize)
	bEnd := bAddr + uint64(bSize)
	return aAddr < bEnd && bAddr < aEnd
}

// Run executes the hart loop until a Pause request is observed. It is
// meant to be the body of the goroutine the owning machine spawns.
func (h *Hart) Run(team siblings) {
	h.team = team
	for {
		atomic.StoreUint32(&h.waitEvent, 1)
		h.absorbPendingIRQs()

		events := atomic.LoadUint32(&h.pendingEvents)
		if events&eventPause != 0 {
			return
		}
		if events&eventPreempt != 0 {
			time.Sleep(h.preemptBudget)
			h.clearEvent(eventPreempt)
		}

		h.handleInterrupts()
		h.runUntilEvent()
	}
}

func (h *Hart) runUntilEvent() {
	for atomic.LoadUint32(&h.waitEvent) != 0 {
		if atomic.LoadUint32(&h.pendingEvents) != 0 {
			return
		}
		h.step()
		if h.trapPending {
			h.pc = h.trapPC
			h.trapPending = false
		}
	}
}

// absorbPendingIRQs folds externally-raised interrupt lines into mip
// before computing which interrupts are effective this cycle. These
// are level-triggered: absorbing does not clear the source bit, only
// ClearIRQ or the timer's own Pending() becoming false does that.
func (h *Hart) absorbPendingIRQs() {
	pending := atomic.LoadUint64(&h.pendingIRQs)
	if pending&(uint64(1)<<timerPendingBit) != 0 && h.timer != nil && !h.timer.Pending(h.ID) {
		atomic.AndUint64(&h.pendingIRQs, ^(uint64(1) << timerPendingBit))
		pending &^= uint64(1) << timerPendingBit
	}
	if pending&(uint64(1)<<timerPendingBit) != 0 {
		h.mip |= uint64(1) << uint(trap.MachineTimer)
	} else {
		h.mip &^= uint64(1) << uint(trap.MachineTimer)
	}
	if pending&^(uint64(1)<<timerPendingBit) != 0 {
		h.mip |= uint64(1) << uint(trap.MachineExternal)
	} else {
		h.mip &^= uint64(1) << uint(trap.MachineExternal)
	}
}

// handleInterrupts checks the effective pending-and-enabled interrupt
// set and, if any is set, delivers the highest-priority one via raiseTrap.
func (h *Hart) handleInterrupts() {
	globallyEnabled := func(p trap.Priv) bool {
		switch p {
		case trap.Machine:
			return h.priv != trap.Machine || h.mstatus&mstatusMIE != 0
		case trap.Supervisor:
			return h.priv == trap.User || (h.priv == trap.Supervisor && h.mstatus&mstatusSIE != 0)
		}
		return false
	}

	pendingEnabled := h.mip & h.mie
	if pendingEnabled == 0 {
		return
	}
	for _, line := range interruptPriority {
		bit := uint64(1) << uint(line)
		if pendingEnabled&bit == 0 {
			continue
		}
		target := trap.SelectPrivilege(line, true, h.mideleg, h.priv)
		if !globallyEnabled(target) {
			continue
		}
		h.raiseTrap(line, true, 0)
		h.Stats.Interrupts++
		return
	}
}

// interruptPriority lists interrupt causes from highest to lowest
// priority, matching the conventional machine/supervisor external >
// software > timer ordering.
var interruptPriority = []trap.Cause{
	trap.MachineExternal, trap.MachineSoftware, trap.MachineTimer,
	trap.SupervisorExternal, trap.SupervisorSoftware, trap.SupervisorTimer,
}

// raiseTrap implements the privileged trap-delivery algorithm: select
// target privilege via delegation, save epc/cause/tval, update status,
// and set pc to the vector (adding cause*4 for a vectored interrupt).
func (h *Hart) raiseTrap(cause trap.Cause, isInterrupt bool, tval uint64) {
	deleg := h.medeleg
	if isInterrupt {
		deleg = h.mideleg
	}
	target := trap.SelectPrivilege(cause, isInterrupt, deleg, h.priv)

	causeVal := uint64(cause)
	if isInterrupt {
		causeVal |= trap.InterruptBit
	}

	var tvec uint64
	if target == trap.Supervisor {
		h.sepc, h.scause, h.stval = h.pc, causeVal, tval
		h.mstatus = setBit(h.mstatus, bitSPIE, getBit(h.mstatus, bitSIE))
		h.mstatus = setBit(h.mstatus, bitSIE, false)
		h.mstatus = withSPP(h.mstatus, h.priv)
		tvec = h.stvec
	} else {
		h.mepc, h.mcause, h.mtval = h.pc, causeVal, tval
		h.mstatus = setBit(h.mstatus, bitMPIE, getBit(h.mstatus, bitMIE))
		h.mstatus = setBit(h.mstatus, bitMIE, false)
		h.mstatus = withMPP(h.mstatus, h.priv)
		tvec = h.mtvec
	}

	base := tvec &^ 0x3
	if !isInterrupt || tvec&0x3 == 0 {
		h.trapPC = base
	} else {
		h.trapPC = base + uint64(cause)*4
	}
	h.trapPending = true
	h.priv = target
	h.Stats.Traps++
	if h.log != nil {
		h.log.Debug("trap", "hart", h.ID, "cause", causeVal, "priv", target, "pc", h.trapPC)
	}
}

// mret/sret restore the saved privilege and status bits and resume at
// xepc; SFENCE.VMA flushes the whole TLB (rs1/rs2 qualifiers ignored).
func (h *Hart) mret() {
	h.mstatus = setBit(h.mstatus, bitMIE, getBit(h.mstatus, bitMPIE))
	h.mstatus = setBit(h.mstatus, bitMPIE, true)
	h.priv = mpp(h.mstatus)
	h.mstatus = withMPP(h.mstatus, trap.User)
	h.pc = h.mepc
	h.tlb.Reset()
}

func (h *Hart) sret() {
	h.mstatus = setBit(h.mstatus, bitSIE, getBit(h.mstatus, bitSPIE))
	h.mstatus = setBit(h.mstatus, bitSPIE, true)
	h.priv = spp(h.mstatus)
	h.mstatus = withSPP(h.mstatus, trap.User)
	h.pc = h.sepc
	h.tlb.Reset()
}

func (h *Hart) sfenceVMA() bool {
	if h.priv == trap.User {
		return false
	}
	h.tlb.Reset()
	return true
}

// fenceI bumps the instruction-stream-invalidated counter. A no-op for
// correctness on this JIT-less core, but a real observable signal a
// future recompiler hook can watch.
func (h *Hart) fenceI() { atomic.AddUint64(&h.fenceGen, 1) }

// wfi blocks until an enabled interrupt is pending or the timer's next
// deadline elapses, whichever comes first, per the condvar pattern: the
// waiter re-reads the wake condition under the mutex before sleeping so
// a concurrent wake() can never be missed.
func (h *Hart) wfi() {
	if h.mip&h.mie != 0 {
		return
	}
	var deadline time.Duration = 50 * time.Millisecond
	if h.timer != nil {
		if d := h.timer.NextDeadline(h.ID); d > 0 && d < deadline {
			deadline = d
		}
	}

	done := make(chan struct{})
	t := time.AfterFunc(deadline, func() { close(done); h.wake() })
	defer t.Stop()

	h.wfiMu.Lock()
	for atomic.LoadUint32(&h.waitEvent) != 0 && h.mip&h.mie == 0 {
		select {
		case <-done:
			h.wfiMu.Unlock()
			return
		default:
		}
		h.wfiCond.Wait()
	}
	h.wfiMu.Unlock()
}
