/*
 * riscvcore - Main process.
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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rvcore/machine/config"
	"github.com/rvcore/machine/logger"
	"github.com/rvcore/machine/machine"
)

var (
	optConfig string
	optHarts  int
	optXLen   int
	optLog    string
)

func main() {
	root := &cobra.Command{
		Use:   "riscvcore",
		Short: "Run a RISC-V system-level core as a standalone process",
		RunE:  run,
	}
	root.Flags().StringVar(&optConfig, "config", "", "machine YAML config file (defaults to a single RV64 hart, 64MiB RAM)")
	root.Flags().IntVar(&optHarts, "harts", 0, "override hart count from config")
	root.Flags().IntVar(&optXLen, "xlen", 0, "override XLEN (32 or 64) from config")
	root.Flags().StringVar(&optLog, "log", "", "log file (stderr-only if omitted)")
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("riscvcore (dev)")
			return nil
		},
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if optConfig != "" {
		loaded, err := config.Load(optConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if optHarts > 0 {
		cfg.HartCount = optHarts
	}
	if optXLen > 0 {
		cfg.XLen = optXLen
	}
	if optLog != "" {
		cfg.LogFile = optLog
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var out io.Writer
	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("riscvcore: open log file: %w", err)
		}
		out = f
		defer f.Close()
	}
	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	log := logger.New(out, level)
	log.Info("riscvcore starting", "harts", cfg.HartCount, "xlen", cfg.XLen, "memory_size", cfg.MemorySize)

	m, err := machine.New(cfg.MemoryBase, cfg.MemorySize, cfg.HartCount, cfg.XLen, log)
	if err != nil {
		return fmt.Errorf("riscvcore: build machine: %w", err)
	}

	for _, stub := range cfg.MMIO {
		stub := stub
		mirror := make([]byte, stub.Size)
		read := func(opaque any, addr uint64, size int) (uint64, bool) {
			off := addr - stub.Base
			var v uint64
			for i := size - 1; i >= 0; i-- {
				v = v<<8 | uint64(mirror[off+uint64(i)])
			}
			return v, true
		}
		write := func(opaque any, addr uint64, size int, data uint64) bool {
			off := addr - stub.Base
			for i := 0; i < size; i++ {
				mirror[off+uint64(i)] = byte(data)
				data >>= 8
			}
			return true
		}
		if err := m.AttachMMIO(stub.Name, stub.Base, stub.Size, read, write, nil); err != nil {
			return fmt.Errorf("riscvcore: attach mmio %q: %w", stub.Name, err)
		}
	}

	m.Start()
	log.Info("harts running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	m.Stop()
	return nil
}
