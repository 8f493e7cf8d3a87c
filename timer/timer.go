/*
 * riscvcore - Monotonic machine timer.
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

// Package timer implements the machine's monotonic clock: time is read
// as elapsed host nanoseconds scaled by freq, and a per-hart timecmp
// register determines when the timer interrupt is pending. A
// background goroutine delivering regular pulses scans every
// registered hart and raises MTIP without each hart having to poll,
// generalized from a fixed-interval pulse to a configurable-frequency
// mtime/mtimecmp model.
package timer

import (
	"sync"
	"time"
)

// Waker is the subset of hart behavior the timer goroutine needs in
// order to deliver a timer interrupt: set the pending bit and break it
// out of WFI. hart.Hart implements this.
type Waker interface {
	RaiseTimerInterrupt()
}

// Timer is one machine's monotonic clock, shared read-only by every
// hart via Now/Pending, and written only by SetTimeCmp (per-hart) and
// the background scan goroutine.
type Timer struct {
	freq  uint64 // ticks per second
	start time.Time

	mu       sync.Mutex
	timecmps map[int]uint64
	wakers   map[int]Waker

	wg   sync.WaitGroup
	quit chan struct{}
}

// New creates a timer ticking at freq Hz (10_000_000 is a common CLINT
// default) and starts its background scan goroutine.
func New(freq uint64) *Timer {
	t := &Timer{
		freq:     freq,
		start:    time.Now(),
		timecmps: make(map[int]uint64),
		wakers:   make(map[int]Waker),
		quit:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Now returns the current guest time value: elapsed host nanoseconds
// since the timer started, scaled to freq ticks per second.
func (t *Timer) Now() uint64 {
	elapsed := uint64(time.Since(t.start).Nanoseconds())
	return elapsed * t.freq / 1_000_000_000
}

// Register associates a hart id with its waker so the scan goroutine
// can deliver MTIP; SetTimeCmp installs/updates that hart's deadline.
func (t *Timer) Register(hartID int, w Waker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wakers[hartID] = w
}

// SetTimeCmp updates hartID's timecmp. A timecmp of all-ones disables
// the timer interrupt for that hart, matching the conventional
// CLINT reset value.
func (t *Timer) SetTimeCmp(hartID int, value uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timecmps[hartID] = value
}

// TimeCmp returns hartID's current comparator value.
func (t *Timer) TimeCmp(hartID int) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timecmps[hartID]
}

// Pending reports whether hartID's timer interrupt condition currently
// holds: time >= timecmp.
func (t *Timer) Pending(hartID int) bool {
	return t.Now() >= t.TimeCmp(hartID)
}

// NextDeadline returns the host duration until hartID's timecmp is
// reached, used by WFI to bound its sleep to at most until timecmp
// instead of blocking forever. A non-positive result means the
// deadline has passed.
func (t *Timer) NextDeadline(hartID int) time.Duration {
	cmp := t.TimeCmp(hartID)
	now := t.Now()
	if cmp <= now {
		return 0
	}
	ticks := cmp - now
	ns := ticks * 1_000_000_000 / t.freq
	return time.Duration(ns)
}

// Close stops the scan goroutine.
func (t *Timer) Close() {
	close(t.quit)
	t.wg.Wait()
}

func (t *Timer) run() {
	defer t.wg.Done()
	ticker := time.NewTicker(500 * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.scan()
		case <-t.quit:
			return
		}
	}
}

func (t *Timer) scan() {
	now := t.Now()
	t.mu.Lock()
	due := make([]Waker, 0, len(t.wakers))
	for id, cmp := range t.timecmps {
		if now >= cmp {
			if w, ok := t.wakers[id]; ok {
				due = append(due, w)
			}
		}
	}
	t.mu.Unlock()
	for _, w := range due {
		w.RaiseTimerInterrupt()
	}
}
