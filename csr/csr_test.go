package csr

import (
	"testing"

	"github.com/rvcore/machine/trap"
)

func TestMinPrivilegeBits(t *testing.T) {
	if MinPrivilege(Sstatus) != trap.Supervisor {
		t.Errorf("sstatus should require S, got %v", MinPrivilege(Sstatus))
	}
	if MinPrivilege(Mstatus) != trap.Machine {
		t.Errorf("mstatus should require M, got %v", MinPrivilege(Mstatus))
	}
	if MinPrivilege(Cycle) != trap.User {
		t.Errorf("cycle should be user accessible, got %v", MinPrivilege(Cycle))
	}
}

func TestReadOnly(t *testing.T) {
	if !ReadOnly(Cycle) || !ReadOnly(Time) || !ReadOnly(Instret) {
		t.Fatal("cycle/time/instret must be read-only (bits[11:10]==0b11)")
	}
	if ReadOnly(Mstatus) {
		t.Fatal("mstatus must be writable")
	}
}

type fakeHart struct {
	mstatus uint64
}

func TestBankDispatchWARL(t *testing.T) {
	bank := NewBank[fakeHart]()
	const writableMask = 0x0000_0000_0008_0000 // arbitrary single-bit WARL mask for this test
	bank.Register(Mstatus, func(h *fakeHart, word *uint64, op Op) bool {
		old := h.mstatus
		h.mstatus = Apply(old, *word, op) & writableMask
		*word = old
		return true
	})

	h := &fakeHart{}
	w := uint64(^uint64(0))
	if !bank.Dispatch(h, Mstatus, &w, Swap, trap.Machine, true) {
		t.Fatal("expected dispatch to succeed")
	}
	if h.mstatus != writableMask {
		t.Fatalf("mstatus = %#x, want only WARL bits set (%#x)", h.mstatus, writableMask)
	}
	if w != 0 {
		t.Fatalf("pre-op value returned = %#x, want 0", w)
	}

	// Back-to-back writes of the same illegal bits must stay stable.
	w = ^uint64(0)
	bank.Dispatch(h, Mstatus, &w, Swap, trap.Machine, true)
	if h.mstatus != writableMask {
		t.Fatalf("WARL mask unstable across writes: %#x", h.mstatus)
	}
}

func TestBankDispatchPrivilegeAndReadOnly(t *testing.T) {
	bank := NewBank[fakeHart]()
	bank.Register(Mstatus, func(h *fakeHart, word *uint64, op Op) bool { return true })
	bank.Register(Cycle, func(h *fakeHart, word *uint64, op Op) bool { *word = 0; return true })

	h := &fakeHart{}
	w := uint64(1)
	if bank.Dispatch(h, Mstatus, &w, Swap, trap.Supervisor, true) {
		t.Fatal("expected S-mode write to mstatus to be rejected")
	}
	if bank.Dispatch(h, Cycle, &w, Swap, trap.Machine, true) {
		t.Fatal("expected write to read-only cycle CSR to be rejected")
	}
	if !bank.Dispatch(h, Cycle, &w, Swap, trap.Machine, false) {
		t.Fatal("expected read of cycle CSR to succeed")
	}
}

func TestBankDispatchUnpopulatedSlot(t *testing.T) {
	bank := NewBank[fakeHart]()
	h := &fakeHart{}
	w := uint64(0)
	if bank.Dispatch(h, 0x7ff, &w, Swap, trap.Machine, false) {
		t.Fatal("expected unpopulated slot to report illegal CSR")
	}
}
