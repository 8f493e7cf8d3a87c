/*
 * riscvcore - end-to-end interpreter scenarios and core invariants.
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

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rvcore/machine/memory"
	"github.com/rvcore/machine/timer"
	"github.com/rvcore/machine/trap"
)

func atomicStoreWaitEvent(h *Hart, v uint32) { atomic.StoreUint32(&h.waitEvent, v) }

// PTE flag bits, mirrored from the page-table walker's own (unexported)
// encoding since tests build leaves by hand.
const (
	ptePresentV = 1 << 0
	pteR        = 1 << 1
	pteW        = 1 << 2
	pteX        = 1 << 3
	pteU        = 1 << 4
)

func newTestHart(t *testing.T, xlen int) *Hart {
	t.Helper()
	region, err := memory.NewRegion(0, 1<<20)
	require.NoError(t, err)
	bus := memory.NewBus(region)
	bank := NewCSRBank(xlen)
	h := New(0, xlen, 0x1000, bus, bank, nil, nil)
	return h
}

func storeWord(t *testing.T, h *Hart, addr uint64, v uint32) {
	t.Helper()
	ok := h.bus.StorePhys(addr, 4, uint64(v))
	require.True(t, ok)
}

func runN(h *Hart, n int) {
	for i := 0; i < n; i++ {
		h.step()
		if h.trapPending {
			h.pc = h.trapPC
			h.trapPending = false
		}
	}
}

func TestIntegerArithmetic(t *testing.T) {
	h := newTestHart(t, 64)
	storeWord(t, h, 0x1000, 0x00a00513) // addi a0, zero, 10
	storeWord(t, h, 0x1004, 0x00a50533) // add a0, a0, a0
	runN(h, 2)
	require.EqualValues(t, 20, h.getReg(10))
	require.EqualValues(t, 0x1008, h.pc)
}

func TestBranchNotTaken(t *testing.T) {
	h := newTestHart(t, 64)
	h.setReg(10, 1)
	storeWord(t, h, 0x1000, 0x00000593) // addi a1, zero, 0
	storeWord(t, h, 0x1004, 0x00b50463) // beq a0, a1, +8
	storeWord(t, h, 0x1008, 0x00100613) // addi a2, zero, 1
	runN(h, 3)
	require.EqualValues(t, 1, h.getReg(12))
	require.EqualValues(t, 0x100c, h.pc)
}

// buildSV39Identity installs a single SV39 leaf mapping vaddr to the
// same physical address, one page table per level, rooted at 0x2000.
func buildSV39Identity(t *testing.T, h *Hart, vaddr uint64, flags uint64) {
	t.Helper()
	root := uint64(0x2000)
	l2 := uint64(0x3000)
	l1 := uint64(0x4000)

	vpn2 := (vaddr >> 30) & 0x1ff
	vpn1 := (vaddr >> 21) & 0x1ff
	vpn0 := (vaddr >> 12) & 0x1ff

	ok := h.bus.StorePhys(root+vpn2*8, 8, ((l2>>12)<<10)|ptePresentV)
	require.True(t, ok)
	ok = h.bus.StorePhys(l2+vpn1*8, 8, ((l1>>12)<<10)|ptePresentV)
	require.True(t, ok)
	ok = h.bus.StorePhys(l1+vpn0*8, 8, ((vaddr>>12)<<10)|flags|ptePresentV)
	require.True(t, ok)

	h.writeSatp((uint64(8) << 60) | (root >> 12)) // mode 8 == SV39
}

func TestMisalignedStoreStraddlesViaPagedIdentity(t *testing.T) {
	h := newTestHart(t, 64)
	buildSV39Identity(t, h, 0, pteR|pteW|pteX|pteU)
	h.priv = trap.User

	h.setReg(10, 0xdeadbeef)
	ok := h.storeN(1, 4, h.getReg(10))
	require.True(t, ok)

	v, ok := h.bus.LoadPhys(1, 4)
	require.True(t, ok)
	require.EqualValues(t, 0xdeadbeef, v)

	raw, ok := h.bus.LoadPhys(1, 1)
	require.True(t, ok)
	require.EqualValues(t, 0xef, raw)
}

type pairTeam struct {
	harts []*Hart
}

func (p *pairTeam) ForEachOther(self *Hart, fn func(*Hart)) {
	for _, other := range p.harts {
		if other != self {
			fn(other)
		}
	}
}

func TestLRSCSuccessThenFailureAcrossHarts(t *testing.T) {
	region, err := memory.NewRegion(0x8000_0000, 1<<20)
	require.NoError(t, err)
	bus := memory.NewBus(region)
	bank := NewCSRBank(64)

	h0 := New(0, 64, 0x1000, bus, bank, nil, nil)
	h1 := New(1, 64, 0x1000, bus, bank, nil, nil)
	team := &pairTeam{harts: []*Hart{h0, h1}}
	h0.team, h1.team = team, team

	const addr = uint64(0x80001000)
	ok := bus.StorePhys(addr, 4, 0)
	require.True(t, ok)

	h0.setReg(11, addr)
	lrInst := inst32(0x0005a52f | (amoLR << 27))
	h0.execAMO(lrInst, 0x1000)
	require.EqualValues(t, 0, h0.getReg(10))

	h0.setReg(12, 42)
	scInst := inst32(0x0005a52f | (amoSC << 27) | (12 << 20))
	h0.execAMO(scInst, 0x1000)
	require.EqualValues(t, 0, h0.getReg(10)) // success
	v, _ := bus.LoadPhys(addr, 4)
	require.EqualValues(t, 42, v)

	h1.setReg(11, addr)
	h1.execAMO(lrInst, 0x1000)
	require.EqualValues(t, 42, h1.getReg(10))

	h0.setReg(12, 99)
	h0.execAMO(scInst, 0x1000)
	require.EqualValues(t, 1, h0.getReg(10)) // failure: h1's lr.w invalidated it
}

func TestUModePagefaultOnSupervisorOnlyPage(t *testing.T) {
	h := newTestHart(t, 64)
	buildSV39Identity(t, h, 0x10000, pteR|pteW) // U==0
	h.priv = trap.User

	_, ok := h.loadN(0x10000, 4, trap.AccessRead)
	require.False(t, ok)
	require.EqualValues(t, trap.LoadPageFault, trap.Cause(h.mcause&^trap.InterruptBit))
	require.EqualValues(t, 0x10000, h.mtval)

	h.mstatus = setBit(h.mstatus, bitSUM, true)
	h.priv = trap.User // the page fault above moved the hart to M-mode
	h.tlb.Reset()
	_, ok = h.loadN(0x10000, 4, trap.AccessRead)
	require.False(t, ok, "SUM must not grant U-mode access to an S-only page")
}

func TestWFIWakesOnTimer(t *testing.T) {
	tm := timer.New(1_000_000_000) // 1 GHz
	h := New(0, 64, 0x1000, nil, NewCSRBank(64), tm, nil)
	h.mie = uint64(1) << uint(trap.MachineTimer)

	tm.SetTimeCmp(0, tm.Now()+5_000_000)

	done := make(chan struct{})
	go func() {
		atomicStoreWaitEvent(h, 1)
		h.wfi()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("wfi did not return within the bounded window")
	}
}

func TestX0AlwaysZero(t *testing.T) {
	h := newTestHart(t, 64)
	h.setReg(0, 0xdeadbeef)
	require.EqualValues(t, 0, h.getReg(0))
}

func TestCSRWriteMaskIsStableAcrossWrites(t *testing.T) {
	h := newTestHart(t, 32)
	var word uint64
	ok := h.csrs.Dispatch(h, 0x301, &word, 0, trap.Machine, false) // misa, read-only
	require.True(t, ok)
	first := word
	word = ^uint64(0)
	ok = h.csrs.Dispatch(h, 0x301, &word, 2, trap.Machine, true) // op=2 is csr.ClearBits (CSRRC)
	require.True(t, ok)
	require.Equal(t, first, word)
}

func TestLRSCForwardProgressUncontended(t *testing.T) {
	h := newTestHart(t, 64)
	const addr = uint64(0x2000)
	ok := h.bus.StorePhys(addr, 4, 0)
	require.True(t, ok)
	h.setReg(11, addr)
	lrInst := inst32(0x0005a52f | (amoLR << 27))
	scInst := inst32(0x0005a52f | (amoSC << 27) | (13 << 20))
	h.setReg(13, 7)

	for i := 0; i < 8; i++ {
		h.execAMO(lrInst, 0x1000)
		h.execAMO(scInst, 0x1000)
		if h.getReg(10) == 0 {
			return
		}
	}
	t.Fatal("lr/sc on an uncontended address never succeeded")
}
