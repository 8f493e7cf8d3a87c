/*
 * riscvcore - disassembler table tests.
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

package disasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatRType(t *testing.T) {
	s, n := Format(0x00a50533) // add a0, a0, a0
	require.Equal(t, 4, n)
	require.True(t, strings.HasPrefix(s, "add/sub"))
	require.Contains(t, s, "x10, x10, x10")
}

func TestFormatIType(t *testing.T) {
	s, n := Format(0x00a00513) // addi a0, zero, 10
	require.Equal(t, 4, n)
	require.Contains(t, s, "addi")
	require.Contains(t, s, "10")
}

func TestFormatBType(t *testing.T) {
	s, n := Format(0x00b50463) // beq a0, a1, +8
	require.Equal(t, 4, n)
	require.Contains(t, s, "beq")
	require.Contains(t, s, "+8")
}

func TestFormatUnknownOpcode(t *testing.T) {
	s, n := Format(0x00000000 | 0x7b) // opcode 0x7b is unassigned in the base ISA
	require.Equal(t, 4, n)
	require.Contains(t, s, "unknown")
}

func TestFormatCompressedReportsLengthTwo(t *testing.T) {
	s, n := Format(0x4505) // c.li a0, 1
	require.Equal(t, 2, n)
	require.Contains(t, s, "c.?")
}
