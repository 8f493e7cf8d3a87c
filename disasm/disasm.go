/*
 * riscvcore - RISC-V mnemonic disassembler for trap diagnostics and logging.
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

// Package disasm renders a fetched instruction word as a mnemonic
// string for illegal-instruction diagnostics and hart trace logging.
// It is never on the execution hot path: the interpreter decodes
// instructions itself and only calls here to explain a fault or print
// a trace line.
package disasm

import "fmt"

const (
	tyR = 1 + iota
	tyI
	tyS
	tyB
	tyU
	tyJ
	tyR4
	tySystem
)

type opcode struct {
	name string
	ty   int
}

// opMap keys on (opcode, funct3) for the formats that need funct3 to
// disambiguate and on opcode alone for the rest; funct3 is folded into
// the key as opcode|funct3<<8 for a single flat map, mirroring a
// table-per-instruction-family approach over a cascade of switches.
var opMap = map[uint32]opcode{
	key(0x37, 0):       {"lui", tyU},
	key(0x17, 0):       {"auipc", tyU},
	key(0x6f, 0):       {"jal", tyJ},
	key(0x67, 0):       {"jalr", tyI},
	key(0x63, 0):       {"beq", tyB},
	key(0x63, 1):       {"bne", tyB},
	key(0x63, 4):       {"blt", tyB},
	key(0x63, 5):       {"bge", tyB},
	key(0x63, 6):       {"bltu", tyB},
	key(0x63, 7):       {"bgeu", tyB},
	key(0x03, 0):       {"lb", tyI},
	key(0x03, 1):       {"lh", tyI},
	key(0x03, 2):       {"lw", tyI},
	key(0x03, 3):       {"ld", tyI},
	key(0x03, 4):       {"lbu", tyI},
	key(0x03, 5):       {"lhu", tyI},
	key(0x03, 6):       {"lwu", tyI},
	key(0x23, 0):       {"sb", tyS},
	key(0x23, 1):       {"sh", tyS},
	key(0x23, 2):       {"sw", tyS},
	key(0x23, 3):       {"sd", tyS},
	key(0x13, 0):       {"addi", tyI},
	key(0x13, 1):       {"slli", tyI},
	key(0x13, 2):       {"slti", tyI},
	key(0x13, 3):       {"sltiu", tyI},
	key(0x13, 4):       {"xori", tyI},
	key(0x13, 5):       {"srli/srai", tyI},
	key(0x13, 6):       {"ori", tyI},
	key(0x13, 7):       {"andi", tyI},
	key(0x33, 0):       {"add/sub", tyR},
	key(0x33, 1):       {"sll", tyR},
	key(0x33, 2):       {"slt", tyR},
	key(0x33, 3):       {"sltu", tyR},
	key(0x33, 4):       {"xor", tyR},
	key(0x33, 5):       {"srl/sra", tyR},
	key(0x33, 6):       {"or", tyR},
	key(0x33, 7):       {"and", tyR},
	key(0x1b, 0):       {"addiw", tyI},
	key(0x1b, 1):       {"slliw", tyI},
	key(0x1b, 5):       {"srliw/sraiw", tyI},
	key(0x3b, 0):       {"addw/subw", tyR},
	key(0x3b, 1):       {"sllw", tyR},
	key(0x3b, 5):       {"srlw/sraw", tyR},
	key(0x0f, 0):       {"fence", tySystem},
	key(0x0f, 1):       {"fence.i", tySystem},
	key(0x73, 0):       {"ecall/ebreak/sret/mret/wfi/sfence.vma", tySystem},
	key(0x73, 1):       {"csrrw", tyI},
	key(0x73, 2):       {"csrrs", tyI},
	key(0x73, 3):       {"csrrc", tyI},
	key(0x73, 5):       {"csrrwi", tyI},
	key(0x73, 6):       {"csrrsi", tyI},
	key(0x73, 7):       {"csrrci", tyI},
	key(0x2f, 2):       {"amo.w", tyR4},
	key(0x2f, 3):       {"amo.d", tyR4},
	key(0x07, 2):       {"flw", tyI},
	key(0x07, 3):       {"fld", tyI},
	key(0x27, 2):       {"fsw", tyS},
	key(0x27, 3):       {"fsd", tyS},
	key(0x43, 0):       {"fmadd", tyR4},
	key(0x47, 0):       {"fmsub", tyR4},
	key(0x4b, 0):       {"fnmsub", tyR4},
	key(0x4f, 0):       {"fnmadd", tyR4},
	key(0x53, 0):       {"fp.op", tyR},
}

func key(opcode, funct3 uint32) uint32 { return opcode | funct3<<8 }

// Format decodes one instruction word: if raw's low two bits are not
// both set it is treated as a 16-bit compressed word (only reported by
// class, full compressed disassembly is out of scope for a diagnostic
// string) and the returned length is 2; otherwise it is a 32-bit word
// decoded via opMap and the returned length is 4.
func Format(raw uint32) (string, int) {
	if raw&0x3 != 0x3 {
		return fmt.Sprintf("c.? (0x%04x)", uint16(raw)), 2
	}

	opc := raw & 0x7f
	funct3 := (raw >> 12) & 0x7
	rd := (raw >> 7) & 0x1f
	rs1 := (raw >> 15) & 0x1f
	rs2 := (raw >> 20) & 0x1f

	op, ok := opMap[key(opc, funct3)]
	if !ok {
		op, ok = opMap[key(opc, 0)]
	}
	if !ok {
		return fmt.Sprintf("unknown (0x%08x)", raw), 4
	}

	switch op.ty {
	case tyR, tyR4:
		funct7 := raw >> 25
		return fmt.Sprintf("%-12s x%d, x%d, x%d  (funct7=0x%02x)", op.name, rd, rs1, rs2, funct7), 4
	case tyI:
		imm := signExtend(raw>>20, 12)
		return fmt.Sprintf("%-12s x%d, x%d, %d", op.name, rd, rs1, int64(imm)), 4
	case tyS:
		imm := signExtend(((raw>>25)<<5)|((raw>>7)&0x1f), 12)
		return fmt.Sprintf("%-12s x%d, %d(x%d)", op.name, rs2, int64(imm), rs1), 4
	case tyB:
		imm := bImm(raw)
		return fmt.Sprintf("%-12s x%d, x%d, %+d", op.name, rs1, rs2, int64(imm)), 4
	case tyU:
		return fmt.Sprintf("%-12s x%d, 0x%x", op.name, rd, raw>>12), 4
	case tyJ:
		imm := jImm(raw)
		return fmt.Sprintf("%-12s x%d, %+d", op.name, rd, int64(imm)), 4
	case tySystem:
		return fmt.Sprintf("%-12s (raw=0x%08x)", op.name, raw), 4
	}
	return fmt.Sprintf("unknown (0x%08x)", raw), 4
}

func signExtend(v uint32, bits uint) uint64 {
	shift := 32 - bits
	return uint64(int64(int32(v<<shift)) >> shift)
}

func bImm(raw uint32) uint64 {
	imm := ((raw >> 31) << 12) | (((raw >> 7) & 0x1) << 11) | (((raw >> 25) & 0x3f) << 5) | (((raw >> 8) & 0xf) << 1)
	return signExtend(imm, 13)
}

func jImm(raw uint32) uint64 {
	imm := ((raw >> 31) << 20) | (((raw >> 12) & 0xff) << 12) | (((raw >> 20) & 0x1) << 11) | (((raw >> 21) & 0x3ff) << 1)
	return signExtend(imm, 21)
}
