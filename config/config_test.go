package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "machine.yaml")
	doc := "hart_count: 4\nxlen: 32\nmmio:\n  - name: uart\n    base: 0x10000000\n    size: 256\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.HartCount != 4 || m.XLen != 32 {
		t.Fatalf("m = %+v", m)
	}
	if m.MemorySize != Default().MemorySize {
		t.Fatalf("expected default memory_size to be preserved, got %d", m.MemorySize)
	}
	if len(m.MMIO) != 1 || m.MMIO[0].Name != "uart" || m.MMIO[0].Base != 0x10000000 {
		t.Fatalf("mmio = %+v", m.MMIO)
	}
}

func TestValidateRejectsBadXLen(t *testing.T) {
	m := Default()
	m.XLen = 16
	if err := m.Validate(); err == nil {
		t.Fatal("expected xlen=16 to be rejected")
	}
}

func TestValidateRejectsDuplicateMMIOName(t *testing.T) {
	m := Default()
	m.MMIO = []MMIOStub{{Name: "x", Size: 4}, {Name: "x", Size: 4}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected duplicate mmio name to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
