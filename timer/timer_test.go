package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingWaker struct {
	n int32
}

func (w *countingWaker) RaiseTimerInterrupt() {
	atomic.AddInt32(&w.n, 1)
}

func TestNowIsMonotonicallyIncreasing(t *testing.T) {
	tm := New(1_000_000_000)
	defer tm.Close()
	a := tm.Now()
	time.Sleep(2 * time.Millisecond)
	b := tm.Now()
	if b <= a {
		t.Fatalf("expected time to advance, got a=%d b=%d", a, b)
	}
}

func TestPendingFiresAfterDeadline(t *testing.T) {
	tm := New(1_000_000_000)
	defer tm.Close()
	tm.SetTimeCmp(0, tm.Now()+1_000_000) // ~1ms out
	if tm.Pending(0) {
		t.Fatal("should not be pending immediately")
	}
	time.Sleep(5 * time.Millisecond)
	if !tm.Pending(0) {
		t.Fatal("expected timer to become pending")
	}
}

func TestScanWakesRegisteredHart(t *testing.T) {
	tm := New(1_000_000_000)
	defer tm.Close()
	w := &countingWaker{}
	tm.Register(0, w)
	tm.SetTimeCmp(0, tm.Now()+1_000_000)

	deadline := time.Now().Add(100 * time.Millisecond)
	for atomic.LoadInt32(&w.n) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&w.n) == 0 {
		t.Fatal("expected background scan to wake the registered hart")
	}
}

func TestNextDeadlineZeroWhenPast(t *testing.T) {
	tm := New(1_000_000_000)
	defer tm.Close()
	tm.SetTimeCmp(0, 0)
	if tm.NextDeadline(0) != 0 {
		t.Fatalf("expected zero duration once deadline has passed, got %v", tm.NextDeadline(0))
	}
}
