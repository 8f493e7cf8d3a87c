/*
 * riscvcore - Machine: the owning object for memory, harts and the clock.
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

// Package machine assembles a memory bus, a clock and a set of harts
// into a runnable system: one goroutine per hart, a shared timer
// goroutine, and the broadcast hook each hart's LR/SC implementation
// needs to invalidate a sibling's reservation. This is the library
// surface cmd/riscvcore (and any other embedder) drives; it owns no
// device models of its own beyond the MMIO stub regions a caller
// attaches.
package machine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvcore/machine/hart"
	"github.com/rvcore/machine/memory"
	"github.com/rvcore/machine/timer"
)

// ResetHandler is invoked once per hart by Start, in the order
// registered, before the hart goroutines are launched. A device model (e.g. a PLIC stub) registers one to
// initialize per-hart state it owns.
type ResetHandler func(h *hart.Hart)

// Machine owns the shared memory bus, the hart set and the clock, and
// brokers the one piece of cross-hart state a hart cannot reach on its
// own: broadcasting an LR/SC invalidation to every other hart.
type Machine struct {
	bus   *memory.Bus
	harts []*hart.Hart
	clock *timer.Timer

	xlen int
	log  *slog.Logger

	resetHandlers []ResetHandler

	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New builds a machine with hartCount harts of the given XLEN sharing
// memBase/memSize bytes of RAM, and a clock ticking at 10 MHz (the
// conventional CLINT default). Harts start in machine mode at
// memBase, MMU off, and are not yet running: call Start.
func New(memBase, memSize uint64, hartCount int, xlen int, log *slog.Logger) (*Machine, error) {
	if hartCount < 1 {
		return nil, fmt.Errorf("machine: hart count must be at least 1, got %d", hartCount)
	}
	region, err := memory.NewRegion(memBase, memSize)
	if err != nil {
		return nil, fmt.Errorf("machine: allocate RAM: %w", err)
	}
	bus := memory.NewBus(region)
	clock := timer.New(10_000_000)
	bank := hart.NewCSRBank(xlen)

	m := &Machine{
		bus:   bus,
		clock: clock,
		xlen:  xlen,
		log:   log,
	}
	for i := 0; i < hartCount; i++ {
		h := hart.New(i, xlen, memBase, bus, bank, clock, log)
		m.harts = append(m.harts, h)
	}
	return m, nil
}

// AttachMMIO wires a caller-provided MMIO window into the shared bus;
// read/write are the stub's callbacks, opaque is passed through
// unmodified so the caller's closure state doesn't need a global.
func (m *Machine) AttachMMIO(name string, base, size uint64, read memory.ReadOp, write memory.WriteOp, opaque any) error {
	return m.bus.Attach(memory.MMIORegion{
		Name: name, Base: base, Size: size,
		Read: read, Write: write, Opaque: opaque,
	})
}

// OnReset registers a hook that Start runs against every hart before
// launching the hart goroutines, in registration order.
func (m *Machine) OnReset(fn ResetHandler) {
	m.resetHandlers = append(m.resetHandlers, fn)
}

// Harts returns the machine's hart slice, for tests and an embedder
// that wants direct register/IRQ access.
func (m *Machine) Harts() []*hart.Hart { return m.harts }

// Bus returns the shared memory bus, for tests and MMIO wiring.
func (m *Machine) Bus() *memory.Bus { return m.bus }

// Clock returns the shared machine timer.
func (m *Machine) Clock() *timer.Timer { return m.clock }

// RaiseIRQ/ClearIRQ forward an external interrupt line to the one hart
// hartID; an out-of-range hartID is ignored. Routing a line to a hart
// is left to the embedder; delivery is level-triggered per hart.
func (m *Machine) RaiseIRQ(hartID int, irq uint) {
	if hartID < 0 || hartID >= len(m.harts) {
		return
	}
	m.harts[hartID].RaiseIRQ(irq)
}

func (m *Machine) ClearIRQ(hartID int, irq uint) {
	if hartID < 0 || hartID >= len(m.harts) {
		return
	}
	m.harts[hartID].ClearIRQ(irq)
}

// ForEachOther implements the sibling-broadcast interface hart.Run
// expects, letting a hart invalidate every other hart's LR/SC
// reservation on a store without holding a reference to Machine.
func (m *Machine) ForEachOther(self *hart.Hart, fn func(*hart.Hart)) {
	for _, h := range m.harts {
		if h != self {
			fn(h)
		}
	}
}

// Start runs every hart's fetch-decode-execute loop in its own
// goroutine. Returns immediately; call Wait or Stop to join.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	for _, fn := range m.resetHandlers {
		for _, h := range m.harts {
			fn(h)
		}
	}
	m.running = true
	for _, h := range m.harts {
		h := h
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			h.Run(m)
		}()
	}
}

// Stop asks every hart to pause at its next instruction boundary and
// waits up to 2 seconds for all hart goroutines to exit.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	for _, h := range m.harts {
		h.Pause()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if m.log != nil {
			m.log.Warn("timed out waiting for harts to pause")
		}
	}
	m.clock.Close()
}

// Wait blocks until every hart goroutine has exited (e.g. because it
// paused itself, as opposed to being asked to via Stop).
func (m *Machine) Wait() {
	m.wg.Wait()
}
