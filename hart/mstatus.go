/*
 * riscvcore - mstatus/sstatus bit layout helpers.
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

package hart

import "github.com/rvcore/machine/trap"

// mstatus/sstatus bit positions, privileged ISA v1.12. Audited to
// cover exactly the fields this core implements (MPRV, MXR, SUM, MPP,
// SPP, xIE/xPIE, FS) and nothing from the H or V extensions.
const (
	bitSIE  = 1
	bitMIE  = 3
	bitSPIE = 5
	bitUBE  = 6
	bitMPIE = 7
	bitSPP  = 8
	bitMPPLo = 11
	bitMPPHi = 12
	bitFSLo  = 13
	bitFSHi  = 14
	bitMPRV  = 17
	bitSUM   = 18
	bitMXR   = 19

	mstatusSIE  = uint64(1) << bitSIE
	mstatusMIE  = uint64(1) << bitMIE
	mstatusSPIE = uint64(1) << bitSPIE
	mstatusMPIE = uint64(1) << bitMPIE
	mstatusSPP  = uint64(1) << bitSPP
	mstatusMPP  = uint64(0x3) << bitMPPLo
	mstatusFS   = uint64(0x3) << bitFSLo
	mstatusMPRV = uint64(1) << bitMPRV
	mstatusSUM  = uint64(1) << bitSUM
	mstatusMXR  = uint64(1) << bitMXR

	// mstatusWritableMask is the WARL mask: everything else reads back 0
	// regardless of what was written.
	mstatusWritableMask = mstatusSIE | mstatusMIE | mstatusSPIE | mstatusMPIE |
		mstatusSPP | mstatusMPP | mstatusFS | mstatusMPRV | mstatusSUM | mstatusMXR
)

func getBit(word uint64, bit uint) bool { return word&(uint64(1)<<bit) != 0 }

func setBit(word uint64, bit uint, v bool) uint64 {
	if v {
		return word | (uint64(1) << bit)
	}
	return word &^ (uint64(1) << bit)
}

// mpp/spp pack/unpack the two- and one-bit privilege fields of mstatus.
func mpp(mstatus uint64) trap.Priv {
	return trap.Priv((mstatus >> bitMPPLo) & 0x3)
}

func withMPP(mstatus uint64, p trap.Priv) uint64 {
	return (mstatus &^ mstatusMPP) | (uint64(p) << bitMPPLo)
}

func spp(mstatus uint64) trap.Priv {
	if getBit(mstatus, bitSPP) {
		return trap.Supervisor
	}
	return trap.User
}

func withSPP(mstatus uint64, p trap.Priv) uint64 {
	return setBit(mstatus, bitSPP, p == trap.Supervisor)
}

func fsField(mstatus uint64) uint64 { return (mstatus & mstatusFS) >> bitFSLo }

func withFS(mstatus uint64, fs uint64) uint64 {
	return (mstatus &^ mstatusFS) | ((fs & 0x3) << bitFSLo)
}
