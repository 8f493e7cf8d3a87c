package pagetable

import (
	"testing"

	"github.com/rvcore/machine/bits"
	"github.com/rvcore/machine/trap"
)

// fakeMem is a flat byte-addressed physical memory for walker tests.
type fakeMem struct {
	buf []byte
}

func newFakeMem(size int) *fakeMem { return &fakeMem{buf: make([]byte, size)} }

func (m *fakeMem) LoadPhys(addr uint64, n int) (uint64, bool) {
	if int(addr)+n > len(m.buf) {
		return 0, false
	}
	return bits.LoadUnaligned(m.buf, int(addr), n), true
}

func (m *fakeMem) CASPhys(addr uint64, n int, old, new uint64) bool {
	cur, ok := m.LoadPhys(addr, n)
	if !ok || cur != old {
		return false
	}
	bits.StoreUnaligned(m.buf, int(addr), n, new)
	return true
}

func (m *fakeMem) writePTE64(addr uint64, pte uint64) {
	bits.StoreUnaligned(m.buf, int(addr), 8, pte)
}

func TestBareIdentity(t *testing.T) {
	mem := newFakeMem(4096)
	phys, _, ok := Walk(mem, Bare, 0, 0x1234_5678, trap.AccessRead, Params{CurPriv: trap.User})
	if !ok || phys != 0x1234_5678 {
		t.Fatalf("Bare walk = (%#x,%v)", phys, ok)
	}
}

func TestMachinePrivIdentity(t *testing.T) {
	mem := newFakeMem(4096)
	phys, _, ok := Walk(mem, SV39, 0, 0xdead_beef, trap.AccessRead, Params{CurPriv: trap.Machine})
	if !ok || phys != 0xdead_beef {
		t.Fatalf("M-mode walk = (%#x,%v)", phys, ok)
	}
}

// buildSV39Leaf sets up a three-level SV39 mapping of vaddr to paddr
// (tables at 0x1000, 0x2000 and 0x3000) with one leaf PTE at level 0.
func buildSV39Leaf(t *testing.T, mem *fakeMem, vaddr, paddr uint64, flags uint64) (rootPPN uint64) {
	t.Helper()
	root := uint64(0x1000)
	l2 := uint64(0x2000)
	l1 := uint64(0x3000)

	vpn2 := (vaddr >> 30) & 0x1ff
	vpn1 := (vaddr >> 21) & 0x1ff
	vpn0 := (vaddr >> 12) & 0x1ff

	mem.writePTE64(root+vpn2*8, ((l2>>12)<<10)|pteV)
	mem.writePTE64(l2+vpn1*8, ((l1>>12)<<10)|pteV)
	mem.writePTE64(l1+vpn0*8, ((paddr>>12)<<10)|flags|pteV)

	return root >> 12
}

func TestSV39LeafTranslation(t *testing.T) {
	mem := newFakeMem(0x10000)
	root := buildSV39Leaf(t, mem, 0x1_0000, 0x1_0000, pteR|pteW)

	phys, cause, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.Supervisor})
	if !ok {
		t.Fatalf("expected success, got cause %d", cause)
	}
	if phys != 0x1_0000 {
		t.Fatalf("phys = %#x, want 0x10000", phys)
	}
}

func TestSV39UModePageFaultOnSPage(t *testing.T) {
	mem := newFakeMem(0x10000)
	// U bit clear: S-only page.
	root := buildSV39Leaf(t, mem, 0x1_0000, 0x1_0000, pteR|pteW)

	_, cause, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.User})
	if ok {
		t.Fatal("expected U-mode access to S-only page to fault")
	}
	if cause != trap.LoadPageFault {
		t.Fatalf("cause = %d, want LoadPageFault", cause)
	}
}

func TestSV39SUMDoesNotAllowReverse(t *testing.T) {
	// S-mode page (U=0), SUM=1 must not affect a U-mode access: SUM
	// only lets S touch U pages, not the reverse.
	mem := newFakeMem(0x10000)
	root := buildSV39Leaf(t, mem, 0x1_0000, 0x1_0000, pteR|pteW)

	_, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.User, SUM: true})
	if ok {
		t.Fatal("SUM must not grant U-mode access to an S-only page")
	}
}

func TestSV39SModeNeedsSUMForUPage(t *testing.T) {
	mem := newFakeMem(0x10000)
	root := buildSV39Leaf(t, mem, 0x1_0000, 0x1_0000, pteR|pteW|pteU)

	if _, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.Supervisor}); ok {
		t.Fatal("expected S-mode access to U page to fault without SUM")
	}
	if _, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.Supervisor, SUM: true}); !ok {
		t.Fatal("expected SUM to permit S-mode access to U page")
	}
}

func TestSV39MXRAllowsReadOfExecOnly(t *testing.T) {
	mem := newFakeMem(0x10000)
	root := buildSV39Leaf(t, mem, 0x1_0000, 0x1_0000, pteX|pteU)

	if _, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.User}); ok {
		t.Fatal("expected read of exec-only page to fault without MXR")
	}
	if _, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.User, MXR: true}); !ok {
		t.Fatal("expected MXR to permit read of exec-only page")
	}
}

func TestSV39SetsAccessedAndDirtyBits(t *testing.T) {
	mem := newFakeMem(0x10000)
	root := buildSV39Leaf(t, mem, 0x1_0000, 0x1_0000, pteR|pteW|pteU)

	vpn0 := (uint64(0x1_0000) >> 12) & 0x1ff
	pteAddr := uint64(0x3000) + vpn0*8

	if _, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessWrite, Params{CurPriv: trap.User}); !ok {
		t.Fatal("expected write to succeed")
	}
	pte, _ := mem.LoadPhys(pteAddr, 8)
	if pte&pteA == 0 || pte&pteD == 0 {
		t.Fatalf("expected A and D set after write, pte=%#x", pte)
	}
}

func TestSV39InvalidPTEFaults(t *testing.T) {
	mem := newFakeMem(0x10000)
	// Root table all zero -> PTE.V == 0 at level 2.
	_, cause, ok := Walk(mem, SV39, 0x1000>>12, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.Supervisor})
	if ok {
		t.Fatal("expected fault on invalid root PTE")
	}
	if cause != trap.LoadPageFault {
		t.Fatalf("cause = %d, want LoadPageFault", cause)
	}
}

func TestSV39WriteOnlyReservedEncodingFaults(t *testing.T) {
	mem := newFakeMem(0x10000)
	root := uint64(0x1000 >> 12)
	vpn2 := (uint64(0x1_0000) >> 30) & 0x1ff
	// R=0, W=1 is a reserved leaf encoding.
	mem.writePTE64(0x1000+vpn2*8, pteV|pteW)

	_, _, ok := Walk(mem, SV39, root, 0x1_0000, trap.AccessRead, Params{CurPriv: trap.Supervisor})
	if ok {
		t.Fatal("expected reserved R=0,W=1 encoding to fault")
	}
}
