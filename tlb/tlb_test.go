package tlb

import "testing"

func TestNewTableAllSentinel(t *testing.T) {
	tb := NewTable()
	if _, ok := tb.Lookup(0, true, false, false); ok {
		t.Fatal("expected zero-page lookup to miss on a fresh table")
	}
	if _, ok := tb.Lookup(0x1000, true, false, false); ok {
		t.Fatal("expected miss on fresh table")
	}
}

func TestInstallAndHit(t *testing.T) {
	tb := NewTable()
	tb.Install(0x4000, 0x80004000, true, true, false)
	phys, ok := tb.Lookup(0x4008, true, false, false)
	if !ok || phys != 0x80004008 {
		t.Fatalf("Lookup read = (%#x,%v), want (0x80004008,true)", phys, ok)
	}
	phys, ok = tb.Lookup(0x4008, false, true, false)
	if !ok || phys != 0x80004008 {
		t.Fatalf("Lookup write = (%#x,%v)", phys, ok)
	}
	if _, ok := tb.Lookup(0x4008, false, false, true); ok {
		t.Fatal("expected exec miss on RW-only entry")
	}
}

func TestInstallIndependentPermissions(t *testing.T) {
	tb := NewTable()
	tb.Install(0x5000, 0x90005000, true, false, false)
	tb.Install(0x5000, 0x90005000, false, true, false)
	// Both permissions should now be live since they mapped the same page.
	if _, ok := tb.Lookup(0x5004, true, false, false); !ok {
		t.Fatal("expected read permission retained after installing write")
	}
	if _, ok := tb.Lookup(0x5004, false, true, false); !ok {
		t.Fatal("expected write permission installed")
	}
}

func TestInstallDifferentPageEvictsOtherPermissions(t *testing.T) {
	tb := NewTable()
	tb.Install(0x6000, 0xa0006000, true, true, true)
	// A second page that collides on the same direct-mapped index
	// (same low bits of VPN) evicts all three permissions of the first.
	aliasVaddr := uint64(0x6000 + Size*0x1000)
	tb.Install(aliasVaddr, 0xb0000000, true, false, false)
	if _, ok := tb.Lookup(0x6000, true, false, false); ok {
		t.Fatal("expected original page's read permission evicted")
	}
	if _, ok := tb.Lookup(0x6000, false, true, false); ok {
		t.Fatal("expected original page's write permission evicted")
	}
}

func TestFlushPage(t *testing.T) {
	tb := NewTable()
	tb.Install(0x7000, 0xc0007000, true, true, true)
	tb.FlushPage(0x7000)
	if _, ok := tb.Lookup(0x7000, true, false, false); ok {
		t.Fatal("expected FlushPage to invalidate the entry")
	}
}

func TestResetIdempotent(t *testing.T) {
	tb := NewTable()
	tb.Install(0x8000, 0xd0008000, true, true, true)
	tb.Reset()
	tb.Reset()
	if _, ok := tb.Lookup(0x8000, true, false, false); ok {
		t.Fatal("expected Reset to invalidate all entries")
	}
}
