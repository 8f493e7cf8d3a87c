/*
 * riscvcore - YAML machine configuration loader.
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

// Package config loads the YAML machine descriptor consumed by
// cmd/riscvcore: memory layout, hart count/width, and any MMIO stub
// regions to attach. A plain structured document parsed with
// gopkg.in/yaml.v3, favored over a bespoke line-oriented grammar
// because the schema here is small and has no per-device variants to
// special-case.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MMIOStub describes a placeholder MMIO window the demo CLI attaches
// as a direct memory mirror; real device models are external
// collaborators wired in by an embedder, not built here.
type MMIOStub struct {
	Name string `yaml:"name"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// Machine is the top-level document.
type Machine struct {
	MemoryBase uint64     `yaml:"memory_base"`
	MemorySize uint64     `yaml:"memory_size"`
	HartCount  int        `yaml:"hart_count"`
	XLen       int        `yaml:"xlen"`
	LogLevel   string     `yaml:"log_level"`
	LogFile    string     `yaml:"log_file"`
	MMIO       []MMIOStub `yaml:"mmio"`
}

// Default returns the configuration cmd/riscvcore uses when no file is
// given: a single RV64 hart with 64 MiB of RAM at the conventional
// 0x8000_0000 base.
func Default() Machine {
	return Machine{
		MemoryBase: 0x8000_0000,
		MemorySize: 64 * 1024 * 1024,
		HartCount:  1,
		XLen:       64,
		LogLevel:   "info",
	}
}

// Load parses a YAML machine descriptor from path, starting from
// Default() so a file only needs to mention the fields it overrides.
func Load(path string) (Machine, error) {
	m := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Machine{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Machine{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Machine{}, err
	}
	return m, nil
}

// Validate rejects a descriptor whose fields can't build a machine.
func (m Machine) Validate() error {
	if m.XLen != 32 && m.XLen != 64 {
		return fmt.Errorf("config: xlen must be 32 or 64, got %d", m.XLen)
	}
	if m.HartCount < 1 {
		return fmt.Errorf("config: hart_count must be at least 1, got %d", m.HartCount)
	}
	if m.MemorySize == 0 || m.MemorySize%4096 != 0 {
		return fmt.Errorf("config: memory_size must be a nonzero multiple of 4096, got %d", m.MemorySize)
	}
	if m.MemoryBase%4096 != 0 {
		return fmt.Errorf("config: memory_base must be page aligned, got %#x", m.MemoryBase)
	}
	seen := make(map[string]bool, len(m.MMIO))
	for _, r := range m.MMIO {
		if seen[r.Name] {
			return fmt.Errorf("config: duplicate mmio region name %q", r.Name)
		}
		seen[r.Name] = true
		if r.Size == 0 {
			return fmt.Errorf("config: mmio region %q has zero size", r.Name)
		}
	}
	return nil
}
