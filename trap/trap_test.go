/*
 * riscvcore - delegation rule tests.
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

package trap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectPrivilegeNeverLeavesMachine(t *testing.T) {
	require.Equal(t, Machine, SelectPrivilege(LoadPageFault, false, ^uint64(0), Machine))
}

func TestSelectPrivilegeDelegatedFromUser(t *testing.T) {
	deleg := uint64(1) << uint(LoadPageFault)
	require.Equal(t, Supervisor, SelectPrivilege(LoadPageFault, false, deleg, User))
}

func TestSelectPrivilegeUndelegatedDefaultsToMachine(t *testing.T) {
	require.Equal(t, Machine, SelectPrivilege(LoadPageFault, false, 0, User))
}

func TestSelectPrivilegeInterruptUsesSameBitPositions(t *testing.T) {
	deleg := uint64(1) << uint(SupervisorTimer)
	require.Equal(t, Supervisor, SelectPrivilege(SupervisorTimer, true, deleg, Supervisor))
}

func TestFaultCausesPerAccessKind(t *testing.T) {
	misaligned, fault, pagefault := FaultCauses(AccessWrite)
	require.Equal(t, StoreMisaligned, misaligned)
	require.Equal(t, StoreFault, fault)
	require.Equal(t, StorePageFault, pagefault)

	misaligned, fault, pagefault = FaultCauses(AccessExec)
	require.Equal(t, InstrMisaligned, misaligned)
	require.Equal(t, InstrFault, fault)
	require.Equal(t, InstrPageFault, pagefault)

	misaligned, fault, pagefault = FaultCauses(AccessRead)
	require.Equal(t, LoadMisaligned, misaligned)
	require.Equal(t, LoadFault, fault)
	require.Equal(t, LoadPageFault, pagefault)
}
